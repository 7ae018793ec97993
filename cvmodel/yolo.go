package cvmodel

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"sync"

	"gocv.io/x/gocv"

	"thaitanloi365/go-face-privacy/detector"
)

// YOLO runs a YOLOv8/v11 face model exported to ONNX.
type YOLO struct {
	net gocv.Net
	cfg detector.Config
	mu  sync.Mutex
}

// NewYOLO loads cfg.ModelPath.
func NewYOLO(cfg detector.Config) (*YOLO, error) {
	cfg = cfg.WithDefaults()
	if err := requireFile(cfg.ModelPath); err != nil {
		return nil, err
	}
	net := gocv.ReadNet(cfg.ModelPath, "")
	if net.Empty() {
		return nil, fmt.Errorf("%w: cannot read network %s", detector.ErrModelNotLoaded, cfg.ModelPath)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)
	return &YOLO{net: net, cfg: cfg}, nil
}

// Name implements detector.Detector.
func (d *YOLO) Name() string { return "yolo" }

// Info implements detector.Describer.
func (d *YOLO) Info() detector.Info {
	return detector.Info{
		Name:      d.Name(),
		ModelPath: d.cfg.ModelPath,
		ModelType: "YOLO face (ONNX)",
		Framework: "OpenCV DNN",
		Threshold: d.cfg.Threshold,
		Loaded:    !d.net.Empty(),
	}
}

// Detect pads the frame to a square, runs the network at the configured
// input size and keeps the boxes that survive non-maximum suppression.
func (d *YOLO) Detect(ctx context.Context, img image.Image) ([]detector.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	src, err := NRGBAToMat(img)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	cols, rows := src.Cols(), src.Rows()
	side := max(cols, rows)
	square := gocv.NewMat()
	defer square.Close()
	gocv.CopyMakeBorder(src, &square, 0, side-rows, 0, side-cols, gocv.BorderConstant, color.RGBA{})

	size := d.cfg.InputSize
	blob := gocv.BlobFromImage(square, 1.0/255, image.Pt(size, size), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.mu.Lock()
	d.net.SetInput(blob, "")
	out := d.net.Forward("")
	d.mu.Unlock()
	defer out.Close()

	dims := out.Size()
	if len(dims) != 3 {
		return nil, fmt.Errorf("yolo: unexpected output shape %v", dims)
	}
	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("yolo: read output: %w", err)
	}
	dets, err := detector.DecodeYOLO(data, dims[1], dims[2], detector.SquareScale(cols, rows, size), d.cfg.Threshold)
	if err != nil {
		return nil, err
	}
	return toFrame(suppress(dets, d.cfg.Threshold, d.cfg.IouThreshold), img.Bounds()), nil
}

// Close releases the network.
func (d *YOLO) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}

// suppress runs OpenCV's non-maximum suppression over dets.
func suppress(dets []detector.Detection, threshold, iou float64) []detector.Detection {
	if len(dets) < 2 {
		return dets
	}
	boxes := make([]image.Rectangle, len(dets))
	scores := make([]float32, len(dets))
	for i, det := range dets {
		boxes[i] = det.Box
		scores[i] = float32(det.Confidence)
	}
	indices := gocv.NMSBoxes(boxes, scores, float32(threshold), float32(iou))
	out := make([]detector.Detection, 0, len(indices))
	for _, i := range indices {
		out = append(out, dets[i])
	}
	return out
}

// toFrame moves detections from Mat coordinates (origin at 0,0) into the
// coordinate space of bounds and clamps them.
func toFrame(dets []detector.Detection, bounds image.Rectangle) []detector.Detection {
	if off := bounds.Min; off != (image.Point{}) {
		for i := range dets {
			dets[i].Box = dets[i].Box.Add(off)
			for j := range dets[i].Eyes {
				dets[i].Eyes[j] = dets[i].Eyes[j].Add(off)
			}
		}
	}
	return detector.Clamp(dets, bounds)
}
