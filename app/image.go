package app

import (
	"context"
	"errors"
	"fmt"
	"image"

	"thaitanloi365/go-face-privacy/privacy"
)

// ImageOptions configures RunImage.
type ImageOptions struct {
	Input  string
	Output string
	// Display shows the result until a key is pressed.
	Display bool
}

// RunImage anonymizes a single image file.
func (a *App) RunImage(ctx context.Context, opts ImageOptions) (privacy.FrameResult, error) {
	img, err := a.loadImage(opts.Input)
	if err != nil {
		return privacy.FrameResult{}, err
	}
	a.log.Info("Input image", "path", opts.Input, "resolution", fmt.Sprintf("%dx%d", img.Bounds().Dx(), img.Bounds().Dy()))

	anon, err := a.NewAnonymizer(ctx)
	if err != nil {
		return privacy.FrameResult{}, err
	}
	defer anon.Detector().Close()

	res, err := anon.Process(ctx, img)
	if err != nil {
		return privacy.FrameResult{}, err
	}
	a.log.Info("Faces detected", "count", len(res.Detections), "effect", res.Effect, "level", res.Level)

	if err := privacy.Save(opts.Output, img); err != nil {
		return res, err
	}
	a.log.Info("Image processing complete", "output", opts.Output)

	if opts.Display {
		a.showUntilKey(img)
	}
	return res, nil
}

// loadImage decodes path with the Go decoders and falls back to OpenCV for
// formats they do not know.
func (a *App) loadImage(path string) (*image.NRGBA, error) {
	img, err := privacy.Open(path)
	if err == nil || errors.Is(err, privacy.ErrSourceNotFound) {
		return img, err
	}
	a.log.Debug("Falling back to OpenCV decoder", "path", path, "error", err)
	return a.readImage(path)
}

func (a *App) showUntilKey(img image.Image) {
	win := a.newDisplay(WindowTitle)
	defer win.Close()
	if err := win.Show(img); err != nil {
		a.log.Warn("Cannot display image", "error", err)
		return
	}
	a.log.Info("Press any key to close")
	win.WaitKey(0)
}
