// Package cvmodel runs the OpenCV-backed face and age models through gocv.
package cvmodel

import (
	"context"
	"fmt"
	"image"
	"os"

	"github.com/disintegration/imaging"
	"gocv.io/x/gocv"

	"thaitanloi365/go-face-privacy/detector"
)

// MatToNRGBA copies a BGR Mat into an NRGBA image.
func MatToNRGBA(m gocv.Mat) (*image.NRGBA, error) {
	if m.Empty() {
		return nil, detector.ErrEmptyImage
	}
	img, err := m.ToImage()
	if err != nil {
		return nil, fmt.Errorf("mat to image: %w", err)
	}
	if n, ok := img.(*image.NRGBA); ok {
		return n, nil
	}
	return imaging.Clone(img), nil
}

// NRGBAToMat copies img into a new BGR Mat. The caller closes it.
func NRGBAToMat(img image.Image) (gocv.Mat, error) {
	if img.Bounds().Empty() {
		return gocv.NewMat(), detector.ErrEmptyImage
	}
	m, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("image to mat: %w", err)
	}
	return m, nil
}

func requireFile(path string) error {
	if path == "" {
		return fmt.Errorf("%w: no model path configured", detector.ErrModelNotLoaded)
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%w: %s: %w", detector.ErrModelNotLoaded, path, err)
	}
	return nil
}

// Register adds the OpenCV backends to reg.
func Register(reg *detector.Registry) {
	reg.Register("yolo", func(_ context.Context, cfg detector.Config) (detector.Detector, error) {
		return NewYOLO(cfg)
	})
	reg.Register("yunet", func(_ context.Context, cfg detector.Config) (detector.Detector, error) {
		return NewYuNet(cfg)
	})
	reg.Register("ssd", func(_ context.Context, cfg detector.Config) (detector.Detector, error) {
		return NewSSD(cfg)
	})
	reg.Register("haar", func(_ context.Context, cfg detector.Config) (detector.Detector, error) {
		return NewHaar(cfg)
	})
}
