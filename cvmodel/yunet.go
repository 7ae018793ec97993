package cvmodel

import (
	"context"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"thaitanloi365/go-face-privacy/detector"
)

// YuNet wraps OpenCV's FaceDetectorYN. It is the lightweight real-time
// detector and also reports eye positions.
type YuNet struct {
	det gocv.FaceDetectorYN
	cfg detector.Config
	mu  sync.Mutex
}

// NewYuNet loads cfg.ModelPath.
func NewYuNet(cfg detector.Config) (*YuNet, error) {
	cfg = cfg.WithDefaults()
	if err := requireFile(cfg.ModelPath); err != nil {
		return nil, err
	}
	// initial size is replaced per frame
	det := gocv.NewFaceDetectorYN(cfg.ModelPath, "", image.Pt(320, 320))
	det.SetScoreThreshold(float32(cfg.Threshold))
	det.SetNMSThreshold(float32(cfg.IouThreshold))
	return &YuNet{det: det, cfg: cfg}, nil
}

// Name implements detector.Detector.
func (d *YuNet) Name() string { return "yunet" }

// Info implements detector.Describer.
func (d *YuNet) Info() detector.Info {
	return detector.Info{
		Name:      d.Name(),
		ModelPath: d.cfg.ModelPath,
		ModelType: "YuNet",
		Framework: "OpenCV FaceDetectorYN",
		Threshold: d.cfg.Threshold,
		Loaded:    true,
	}
}

// Detect implements detector.Detector.
func (d *YuNet) Detect(ctx context.Context, img image.Image) ([]detector.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	src, err := NRGBAToMat(img)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	faces := gocv.NewMat()
	defer faces.Close()

	d.mu.Lock()
	d.det.SetInputSize(image.Pt(src.Cols(), src.Rows()))
	d.det.Detect(src, &faces)
	d.mu.Unlock()

	if faces.Cols() < detector.YuNetColumns && faces.Rows() > 0 {
		return nil, fmt.Errorf("yunet: output has %d columns", faces.Cols())
	}
	rows := make([][]float32, faces.Rows())
	for r := range rows {
		row := make([]float32, detector.YuNetColumns)
		for c := range row {
			row[c] = faces.GetFloatAt(r, c)
		}
		rows[r] = row
	}
	return toFrame(detector.DecodeYuNet(rows, d.cfg.Threshold), img.Bounds()), nil
}

// Close implements detector.Detector.
func (d *YuNet) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.det.Close()
	return nil
}
