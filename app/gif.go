package app

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"thaitanloi365/go-face-privacy/gifconv"
	"thaitanloi365/go-face-privacy/media"
)

// GIFOptions configures ConvertGIF. Zero FPS, Width and MaxFrames take the
// configured values.
type GIFOptions struct {
	Input     string
	Output    string
	FPS       int
	Width     int
	MaxFrames int
	// Anonymize hides faces before the frames are encoded.
	Anonymize bool
}

// ConvertGIF turns a video into an endlessly looping GIF.
func (a *App) ConvertGIF(ctx context.Context, opts GIFOptions) (res gifconv.Result, err error) {
	src, err := a.openInput(opts.Input)
	if err != nil {
		return res, err
	}
	defer src.Close()
	info := src.Info()

	var process func(context.Context, *image.NRGBA) error
	if opts.Anonymize {
		anon, err := a.NewAnonymizer(ctx)
		if err != nil {
			return res, err
		}
		defer anon.Detector().Close()
		process = func(ctx context.Context, frame *image.NRGBA) error {
			_, err := anon.Process(ctx, frame)
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(opts.Output), 0o755); err != nil {
		return res, fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.Create(opts.Output)
	if err != nil {
		return res, fmt.Errorf("%w: %s: %w", media.ErrOpen, opts.Output, err)
	}
	defer func() {
		closeWith(&err, f)
		if err != nil {
			_ = os.Remove(opts.Output)
		}
	}()

	conv := gifconv.Options{
		FPS:       firstPositive(opts.FPS, a.cfg.GIF.FPS),
		Width:     firstPositive(opts.Width, a.cfg.GIF.Width),
		MaxFrames: firstPositive(opts.MaxFrames, a.cfg.GIF.MaxFrames),
		Logger:    a.log,
		Process:   process,
	}
	a.log.Info("Converting to GIF", "input", opts.Input, "output", opts.Output,
		"fps", conv.FPS, "width", conv.Width, "max_frames", conv.MaxFrames)

	res, err = gifconv.Convert(ctx, src, info.FPS, f, conv)
	if err != nil {
		return res, err
	}
	a.log.Info("GIF created", "output", opts.Output, "frames", res.Frames,
		"size_mb", fmt.Sprintf("%.2f", float64(res.Size)/(1<<20)), "duration_s", fmt.Sprintf("%.1f", float64(res.Frames*res.Delay)/100))
	return res, nil
}

func firstPositive(vals ...int) int {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}
