package app

import (
	"context"
	"errors"
	"fmt"
	"image"

	"thaitanloi365/go-face-privacy/age"
	"thaitanloi365/go-face-privacy/compose"
	"thaitanloi365/go-face-privacy/controls"
	"thaitanloi365/go-face-privacy/detector"
	"thaitanloi365/go-face-privacy/privacy"
)

const ageCropMargin = 0.2

// AgeOptions configures RunAge. An empty Input runs on the webcam.
type AgeOptions struct {
	Input   string
	Output  string
	Display bool
}

// AgeResult is the estimate for one face.
type AgeResult struct {
	Box        image.Rectangle `json:"box"`
	Confidence float64         `json:"confidence"`
	Age        age.Prediction  `json:"age"`
}

// RunAge estimates the age of every face in an image, or live on the
// webcam when opts.Input is empty.
func (a *App) RunAge(ctx context.Context, opts AgeOptions) ([]AgeResult, error) {
	d, err := a.NewDetector(ctx, a.cfg.DetectorName(), 0)
	if err != nil {
		return nil, err
	}
	defer d.Close()

	est, err := a.NewEstimator(ctx)
	if err != nil {
		return nil, err
	}
	defer est.Close()

	if opts.Input == "" {
		return nil, a.ageLive(ctx, d, est)
	}

	img, err := a.loadImage(opts.Input)
	if err != nil {
		return nil, err
	}
	results, err := estimateAges(ctx, d, est, img)
	if err != nil {
		return nil, err
	}
	for i, r := range results {
		a.log.Info("Face age", "face", i+1, "age", r.Age.Label, "score", fmt.Sprintf("%.2f", r.Age.Score))
	}
	annotateAges(img, results)

	if opts.Output != "" {
		if err := privacy.Save(opts.Output, img); err != nil {
			return results, err
		}
		a.log.Info("Annotated image saved", "output", opts.Output)
	}
	if opts.Display {
		a.showUntilKey(img)
	}
	return results, nil
}

func (a *App) ageLive(ctx context.Context, d detector.Detector, est age.Estimator) error {
	cam, err := a.openCamera(a.cfg.Camera.ID, a.cfg.Camera.Width, a.cfg.Camera.Height)
	if err != nil {
		return err
	}
	defer cam.Close()

	win := a.newDisplay(WindowTitle + " - Age")
	defer win.Close()

	fps := privacy.NewFPSCounter()
	for ctx.Err() == nil {
		frame, err := cam.Read()
		if err != nil {
			a.log.Error("Failed to grab frame", "error", err)
			return nil
		}
		results, err := estimateAges(ctx, d, est, frame)
		if err != nil {
			return err
		}
		annotateAges(frame, results)
		compose.InfoOverlay(frame, compose.Info{FPS: fps.Tick(), Faces: len(results), Detector: d.Name()})
		if err := win.Show(frame); err != nil {
			return err
		}
		if k := win.WaitKey(1); k != controls.KeyNone && (k&0xFF == 'q' || k&0xFF == controls.KeyEsc) {
			return nil
		}
	}
	return nil
}

// estimateAges crops every detected face with a margin and classifies it.
// Faces the estimator cannot see are skipped.
func estimateAges(ctx context.Context, d detector.Detector, est age.Estimator, img image.Image) ([]AgeResult, error) {
	dets, err := d.Detect(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("%s: detect: %w", d.Name(), err)
	}
	dets = detector.Clamp(dets, img.Bounds())

	out := make([]AgeResult, 0, len(dets))
	for _, det := range dets {
		crop, err := age.Crop(img, det.Box, ageCropMargin)
		if err != nil {
			continue
		}
		p, err := est.Estimate(ctx, crop)
		if errors.Is(err, age.ErrNoFace) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("estimate age: %w", err)
		}
		out = append(out, AgeResult{Box: det.Box, Confidence: det.Confidence, Age: p})
	}
	return out, nil
}

func annotateAges(dst *image.NRGBA, results []AgeResult) {
	for _, r := range results {
		compose.DrawDetections(dst, []detector.Detection{{Box: r.Box, Confidence: r.Confidence}}, compose.Green, r.Age.String())
	}
}
