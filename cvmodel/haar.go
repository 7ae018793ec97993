package cvmodel

import (
	"context"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"thaitanloi365/go-face-privacy/detector"
)

const haarMinSize = 30

// Haar is the classic Viola-Jones cascade. It has no score, so every face
// gets confidence 1.
type Haar struct {
	classifier gocv.CascadeClassifier
	cfg        detector.Config
	mu         sync.Mutex
}

// NewHaar loads the cascade XML at cfg.ModelPath.
func NewHaar(cfg detector.Config) (*Haar, error) {
	cfg = cfg.WithDefaults()
	if err := requireFile(cfg.ModelPath); err != nil {
		return nil, err
	}
	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(cfg.ModelPath) {
		classifier.Close()
		return nil, fmt.Errorf("%w: cannot read cascade %s", detector.ErrModelNotLoaded, cfg.ModelPath)
	}
	return &Haar{classifier: classifier, cfg: cfg}, nil
}

// Name implements detector.Detector.
func (d *Haar) Name() string { return "haar" }

// Info implements detector.Describer.
func (d *Haar) Info() detector.Info {
	return detector.Info{
		Name:      d.Name(),
		ModelPath: d.cfg.ModelPath,
		ModelType: "Haar cascade",
		Framework: "OpenCV",
		Threshold: 1,
		Loaded:    true,
	}
}

// Detect implements detector.Detector.
func (d *Haar) Detect(ctx context.Context, img image.Image) ([]detector.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	src, err := NRGBAToMat(img)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(src, &gray, gocv.ColorBGRToGray)

	d.mu.Lock()
	rects := d.classifier.DetectMultiScaleWithParams(gray, d.cfg.ScaleFactor, d.cfg.MinNeighbors, 0,
		image.Pt(haarMinSize, haarMinSize), image.Point{})
	d.mu.Unlock()

	return toFrame(detector.FromRects(rects, 1.0), img.Bounds()), nil
}

// Close implements detector.Detector.
func (d *Haar) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.classifier.Close()
}
