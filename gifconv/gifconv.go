// Package gifconv turns a video into a looping, downscaled GIF.
package gifconv

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"io"
	"log/slog"

	"github.com/disintegration/imaging"
)

// WarnSize is the output size above which a warning is reported.
const WarnSize = 10 << 20

// ErrNoFrames is returned when the source produced nothing to encode.
var ErrNoFrames = errors.New("no frames extracted")

// Source yields frames in order and returns io.EOF after the last one.
type Source interface {
	Read() (*image.NRGBA, error)
}

// Options controls the conversion.
type Options struct {
	FPS       int
	Width     int
	MaxFrames int
	Logger    *slog.Logger
	// Process, when set, edits each kept frame before it is scaled.
	// Frames dropped by the frame skip never reach it.
	Process func(ctx context.Context, frame *image.NRGBA) error
}

// DefaultOptions returns 10 fps, 800px wide, at most 100 frames.
func DefaultOptions() Options {
	return Options{FPS: 10, Width: 800, MaxFrames: 100}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.FPS <= 0 {
		o.FPS = d.FPS
	}
	if o.Width <= 0 {
		o.Width = d.Width
	}
	if o.MaxFrames <= 0 {
		o.MaxFrames = d.MaxFrames
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Result summarises a conversion.
type Result struct {
	Frames int
	Size   int64
	Delay  int
	// Large is set when Size exceeds WarnSize.
	Large bool
}

// FrameSkip is how many source frames are consumed per kept frame.
func FrameSkip(srcFPS float64, fps int) int {
	if fps <= 0 {
		return 1
	}
	return max(1, int(srcFPS/float64(fps)))
}

// Delay is the per-frame delay in hundredths of a second.
func Delay(fps int) int {
	if fps <= 0 {
		return 0
	}
	return 100 / fps
}

// Convert reads src, keeps every FrameSkip-th frame, resizes it to
// opts.Width keeping the aspect ratio and writes an endlessly looping GIF to
// w.
func Convert(ctx context.Context, src Source, srcFPS float64, w io.Writer, opts Options) (Result, error) {
	opts = opts.withDefaults()
	skip := FrameSkip(srcFPS, opts.FPS)
	delay := Delay(opts.FPS)

	anim := &gif.GIF{LoopCount: 0}
	for n := 0; len(anim.Image) < opts.MaxFrames; n++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		frame, err := src.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Result{}, fmt.Errorf("read frame %d: %w", n, err)
		}
		if n%skip != 0 {
			continue
		}
		if opts.Process != nil {
			if err := opts.Process(ctx, frame); err != nil {
				return Result{}, fmt.Errorf("process frame %d: %w", n, err)
			}
		}

		anim.Image = append(anim.Image, Quantize(Scale(frame, opts.Width)))
		anim.Delay = append(anim.Delay, delay)
		if saved := len(anim.Image); saved%10 == 0 {
			opts.Logger.Info("Processed frames", "count", saved)
		}
	}
	if len(anim.Image) == 0 {
		return Result{}, ErrNoFrames
	}

	cw := &countingWriter{w: w}
	if err := gif.EncodeAll(cw, anim); err != nil {
		return Result{}, fmt.Errorf("encode gif: %w", err)
	}

	res := Result{Frames: len(anim.Image), Size: cw.n, Delay: delay, Large: cw.n > WarnSize}
	if res.Large {
		opts.Logger.Warn("GIF is large, consider fewer frames or a smaller width",
			"size_mb", fmt.Sprintf("%.2f", float64(res.Size)/(1<<20)))
	}
	return res, nil
}

// Scale resizes img to width, keeping the aspect ratio.
func Scale(img image.Image, width int) *image.NRGBA {
	b := img.Bounds()
	if b.Dx() == width {
		return imaging.Clone(img)
	}
	return imaging.Resize(img, width, 0, imaging.Lanczos)
}

// Quantize maps img onto the Plan 9 palette with Floyd-Steinberg dithering.
func Quantize(img image.Image) *image.Paletted {
	b := img.Bounds()
	dst := image.NewPaletted(image.Rect(0, 0, b.Dx(), b.Dy()), palette.Plan9)
	draw.FloydSteinberg.Draw(dst, dst.Bounds(), img, b.Min)
	return dst
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
