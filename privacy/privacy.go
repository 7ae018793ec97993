// Package privacy ties a face detector to an anonymization effect.
package privacy

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/disintegration/imaging"

	"thaitanloi365/go-face-privacy/detector"
	"thaitanloi365/go-face-privacy/effects"
)

// Errors.
var (
	ErrSourceNotFound    = errors.New("source not found")
	ErrUnsupportedFormat = errors.New("unsupported image format")
)

// Config config
type Config struct {
	Effect effects.Name
	Level  int
	// Threshold overrides the detector's own confidence threshold when > 0.
	Threshold float64
}

// FrameResult describes what Process did to one frame.
type FrameResult struct {
	Detections []detector.Detection
	Effect     effects.Name
	Level      int
}

// Anonymizer detects faces and hides them.
type Anonymizer struct {
	detector detector.Detector

	mu        sync.RWMutex
	effect    effects.Name
	level     int
	threshold float64
}

// New init
func New(d detector.Detector, config *Config) *Anonymizer {
	if config == nil {
		config = &Config{}
	}
	a := &Anonymizer{
		detector:  d,
		effect:    config.Effect,
		level:     config.Level,
		threshold: config.Threshold,
	}
	if a.effect == "" {
		a.effect = effects.Pixelation
	}
	if a.level == 0 {
		a.level = effects.DefaultLevel
	}
	a.level = effects.ClampLevel(a.level)
	return a
}

// Detector returns the underlying detector.
func (a *Anonymizer) Detector() detector.Detector { return a.detector }

// Effect returns the current effect and level.
func (a *Anonymizer) Effect() (effects.Name, int) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.effect, a.level
}

// SetEffect changes the effect used for following frames.
func (a *Anonymizer) SetEffect(name effects.Name) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.effect = name
}

// SetLevel changes the intensity, clamped to the valid range.
func (a *Anonymizer) SetLevel(level int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.level = effects.ClampLevel(level)
}

// Detect runs the detector and clamps the boxes to the frame.
func (a *Anonymizer) Detect(ctx context.Context, frame image.Image) ([]detector.Detection, error) {
	dets, err := a.detector.Detect(ctx, frame)
	if err != nil {
		return nil, fmt.Errorf("%s: detect: %w", a.detector.Name(), err)
	}
	a.mu.RLock()
	threshold := a.threshold
	a.mu.RUnlock()
	if threshold > 0 {
		dets = detector.FilterByConfidence(dets, threshold)
	}
	return detector.Clamp(dets, frame.Bounds()), nil
}

// Process detects faces in frame and applies the current effect to each
// one, in place.
func (a *Anonymizer) Process(ctx context.Context, frame *image.NRGBA) (FrameResult, error) {
	dets, err := a.Detect(ctx, frame)
	if err != nil {
		return FrameResult{}, err
	}
	effect, level := a.Effect()
	Hide(frame, dets, effect, level)
	return FrameResult{Detections: dets, Effect: effect, Level: level}, nil
}

// Hide applies effect to every detection.
func Hide(frame *image.NRGBA, dets []detector.Detection, effect effects.Name, level int) {
	effects.ApplyAll(frame, detector.Boxes(dets), effect, level)
}

// BlurFaces reads the image at source, hides every face and writes the
// result to dst. Files get the format of their extension; other writers
// get JPEG.
func (a *Anonymizer) BlurFaces(ctx context.Context, source string, dst io.Writer) (FrameResult, error) {
	src, err := Open(source)
	if err != nil {
		return FrameResult{}, err
	}
	res, err := a.Process(ctx, src)
	if err != nil {
		return FrameResult{}, err
	}
	return res, Encode(dst, src)
}

// Open decodes an image file into an NRGBA buffer, honouring EXIF
// orientation.
func Open(path string) (*image.NRGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, path)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode reads any registered image format into an NRGBA buffer.
func Decode(r io.Reader) (*image.NRGBA, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return imaging.Clone(img), nil
}

// Encode writes img to dst, choosing the format from the file name when dst
// is a file.
func Encode(dst io.Writer, img image.Image) error {
	format := imaging.JPEG
	if f, ok := dst.(*os.File); ok {
		var err error
		if format, err = FormatFor(f.Name()); err != nil {
			return err
		}
	}
	return EncodeFormat(dst, img, format)
}

// EncodeFormat writes img to dst in the given format.
func EncodeFormat(dst io.Writer, img image.Image, format imaging.Format) error {
	if err := imaging.Encode(dst, img, format, imaging.JPEGQuality(100)); err != nil {
		return fmt.Errorf("encode %s: %w", format, err)
	}
	return nil
}

// FormatFor maps a file name to an output format: JPEG, PNG or GIF. A
// missing extension means JPEG.
func FormatFor(name string) (imaging.Format, error) {
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case "", ".jpg", ".jpeg":
		return imaging.JPEG, nil
	case ".png":
		return imaging.PNG, nil
	case ".gif":
		return imaging.GIF, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

// Save writes img to path, creating parent directories.
func Save(path string, img image.Image) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	format, err := FormatFor(path)
	if err != nil {
		return err
	}
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := EncodeFormat(out, img, format); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
