package cvmodel

import (
	"context"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"thaitanloi365/go-face-privacy/detector"
)

const ssdInput = 300

var ssdMean = gocv.NewScalar(104, 177, 123, 0)

// SSD runs the ResNet-10 SSD face detector from the OpenCV samples.
type SSD struct {
	net gocv.Net
	cfg detector.Config
	mu  sync.Mutex
}

// NewSSD loads cfg.ModelPath (caffemodel) and cfg.ConfigPath (prototxt).
func NewSSD(cfg detector.Config) (*SSD, error) {
	cfg = cfg.WithDefaults()
	if err := requireFile(cfg.ModelPath); err != nil {
		return nil, err
	}
	if err := requireFile(cfg.ConfigPath); err != nil {
		return nil, err
	}
	net := gocv.ReadNetFromCaffe(cfg.ConfigPath, cfg.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("%w: cannot read network %s", detector.ErrModelNotLoaded, cfg.ModelPath)
	}
	return &SSD{net: net, cfg: cfg}, nil
}

// Name implements detector.Detector.
func (d *SSD) Name() string { return "ssd" }

// Info implements detector.Describer.
func (d *SSD) Info() detector.Info {
	return detector.Info{
		Name:      d.Name(),
		ModelPath: d.cfg.ModelPath,
		ModelType: "ResNet-10 SSD (Caffe)",
		Framework: "OpenCV DNN",
		Threshold: d.cfg.Threshold,
		Loaded:    !d.net.Empty(),
	}
}

// Detect implements detector.Detector.
func (d *SSD) Detect(ctx context.Context, img image.Image) ([]detector.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	src, err := NRGBAToMat(img)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	blob := gocv.BlobFromImage(src, 1.0, image.Pt(ssdInput, ssdInput), ssdMean, false, false)
	defer blob.Close()

	d.mu.Lock()
	d.net.SetInput(blob, "")
	out := d.net.Forward("detection_out")
	d.mu.Unlock()
	defer out.Close()

	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("ssd: read output: %w", err)
	}
	return toFrame(detector.DecodeSSD(data, src.Cols(), src.Rows(), d.cfg.Threshold), img.Bounds()), nil
}

// Close implements detector.Detector.
func (d *SSD) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}
