package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"

	"thaitanloi365/go-face-privacy/privacy"
)

const defaultBenchmarkFrames = 100

// BenchmarkOptions configures RunBenchmark.
type BenchmarkOptions struct {
	// Input is an image, a video file, or empty for the webcam.
	Input  string
	Frames int
	// Detectors defaults to the configured and compare detectors.
	Detectors []string
}

// BenchmarkResult is the timing of one detector.
type BenchmarkResult struct {
	Detector string        `json:"detector"`
	Frames   int           `json:"frames"`
	Faces    int           `json:"faces"`
	Mean     time.Duration `json:"mean"`
	Min      time.Duration `json:"min"`
	Max      time.Duration `json:"max"`
}

// FPS is the detection rate implied by the mean.
func (r BenchmarkResult) FPS() float64 {
	if r.Mean <= 0 {
		return 0
	}
	return float64(time.Second) / float64(r.Mean)
}

func (r BenchmarkResult) String() string {
	ms := func(d time.Duration) float64 { return float64(d.Microseconds()) / 1000 }
	return fmt.Sprintf("%-12s mean %7.2f ms  min %7.2f ms  max %7.2f ms  %6.1f FPS  %d faces",
		r.Detector, ms(r.Mean), ms(r.Min), ms(r.Max), r.FPS(), r.Faces)
}

// Summarize reduces per-frame timings to a result.
func Summarize(name string, took []time.Duration, faces int) BenchmarkResult {
	r := BenchmarkResult{Detector: name, Frames: len(took), Faces: faces}
	if len(took) == 0 {
		return r
	}
	var total time.Duration
	r.Min = took[0]
	for _, d := range took {
		total += d
		r.Min = min(r.Min, d)
		r.Max = max(r.Max, d)
	}
	r.Mean = total / time.Duration(len(took))
	return r
}

// RunBenchmark times every detector over the same frames.
func (a *App) RunBenchmark(ctx context.Context, opts BenchmarkOptions) ([]BenchmarkResult, error) {
	if opts.Frames <= 0 {
		opts.Frames = defaultBenchmarkFrames
	}
	if len(opts.Detectors) == 0 {
		opts.Detectors = a.selectableDetectors()
	}

	frames, err := a.benchmarkFrames(ctx, opts)
	if err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("%w: no frames to benchmark", privacy.ErrSourceNotFound)
	}
	a.log.Info("Benchmarking", "detectors", opts.Detectors, "frames", len(frames))

	results := make([]BenchmarkResult, 0, len(opts.Detectors))
	for _, name := range opts.Detectors {
		d, err := a.NewDetector(ctx, name, 0)
		if err != nil {
			a.log.Warn("Skipping detector", "detector", name, "error", err)
			continue
		}
		took := make([]time.Duration, 0, len(frames))
		faces := 0
		for _, f := range frames {
			if err := ctx.Err(); err != nil {
				_ = d.Close()
				return results, err
			}
			began := a.now()
			dets, err := d.Detect(ctx, f)
			if err != nil {
				_ = d.Close()
				return results, fmt.Errorf("%s: %w", name, err)
			}
			took = append(took, a.now().Sub(began))
			faces += len(dets)
		}
		_ = d.Close()

		r := Summarize(d.Name(), took, faces)
		a.log.Info("Benchmark result", "detector", r.Detector, "mean", r.Mean, "min", r.Min, "max", r.Max)
		results = append(results, r)
	}
	return results, nil
}

// benchmarkFrames repeats a still image or reads up to opts.Frames frames
// from a video or the camera.
func (a *App) benchmarkFrames(ctx context.Context, opts BenchmarkOptions) ([]*image.NRGBA, error) {
	if isImagePath(opts.Input) {
		img, err := a.loadImage(opts.Input)
		if err != nil {
			return nil, err
		}
		frames := make([]*image.NRGBA, opts.Frames)
		for i := range frames {
			frames[i] = img
		}
		return frames, nil
	}

	var (
		src Source
		err error
	)
	if opts.Input == "" {
		src, err = a.openCamera(a.cfg.Camera.ID, a.cfg.Camera.Width, a.cfg.Camera.Height)
	} else {
		src, err = a.openInput(opts.Input)
	}
	if err != nil {
		return nil, err
	}
	defer src.Close()

	frames := make([]*image.NRGBA, 0, opts.Frames)
	err = eachFrame(ctx, src, func(n int, frame *image.NRGBA) error {
		frames = append(frames, frame)
		if len(frames) == opts.Frames {
			return errEnough
		}
		return nil
	})
	if err != nil && !errors.Is(err, errEnough) {
		return nil, err
	}
	return frames, nil
}

func isImagePath(path string) bool {
	if filepath.Ext(path) == "" {
		return false
	}
	_, err := imaging.FormatFromFilename(path)
	return err == nil
}
