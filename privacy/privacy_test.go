package privacy

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thaitanloi365/go-face-privacy/detector"
	"thaitanloi365/go-face-privacy/effects"
)

type fakeDetector struct {
	dets []detector.Detection
	err  error
}

func (f *fakeDetector) Name() string { return "fake" }
func (f *fakeDetector) Detect(context.Context, image.Image) ([]detector.Detection, error) {
	return f.dets, f.err
}
func (f *fakeDetector) Close() error { return nil }

func whiteImage(w, h int) *image.NRGBA {
	return imaging.New(w, h, color.White)
}

func TestNewDefaults(t *testing.T) {
	a := New(&fakeDetector{}, nil)
	effect, level := a.Effect()
	assert.Equal(t, effects.Pixelation, effect)
	assert.Equal(t, effects.DefaultLevel, level)

	a = New(&fakeDetector{}, &Config{Effect: effects.Blackout, Level: 200})
	effect, level = a.Effect()
	assert.Equal(t, effects.Blackout, effect)
	assert.Equal(t, effects.MaxLevel, level)
}

func TestSetLevelClamps(t *testing.T) {
	a := New(&fakeDetector{}, nil)
	a.SetLevel(1)
	_, level := a.Effect()
	assert.Equal(t, effects.MinLevel, level)
}

func TestProcessAppliesEffect(t *testing.T) {
	d := &fakeDetector{dets: []detector.Detection{
		{Box: image.Rect(10, 10, 30, 30), Confidence: 0.9},
		{Box: image.Rect(-20, -20, -5, -5), Confidence: 0.9},
	}}
	a := New(d, &Config{Effect: effects.Blackout})
	frame := whiteImage(64, 64)

	res, err := a.Process(context.Background(), frame)

	require.NoError(t, err)
	require.Len(t, res.Detections, 1, "boxes outside the frame are dropped")
	assert.Equal(t, effects.Blackout, res.Effect)
	assert.Equal(t, color.NRGBA{0, 0, 0, 255}, frame.NRGBAAt(20, 20))
	assert.Equal(t, color.NRGBA{255, 255, 255, 255}, frame.NRGBAAt(50, 50))
}

func TestProcessThreshold(t *testing.T) {
	d := &fakeDetector{dets: []detector.Detection{
		{Box: image.Rect(0, 0, 10, 10), Confidence: 0.3},
		{Box: image.Rect(20, 20, 30, 30), Confidence: 0.8},
	}}
	a := New(d, &Config{Threshold: 0.5})

	res, err := a.Process(context.Background(), whiteImage(40, 40))

	require.NoError(t, err)
	require.Len(t, res.Detections, 1)
	assert.Equal(t, 0.8, res.Detections[0].Confidence)
}

func TestProcessDetectorError(t *testing.T) {
	boom := errors.New("boom")
	a := New(&fakeDetector{err: boom}, nil)

	_, err := a.Process(context.Background(), whiteImage(8, 8))

	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "fake")
}

func TestBlurFaces(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.png")
	require.NoError(t, Save(src, whiteImage(32, 32)))

	a := New(&fakeDetector{dets: []detector.Detection{{Box: image.Rect(0, 0, 16, 16), Confidence: 1}}}, &Config{Effect: effects.Blackout})

	out, err := os.Create(filepath.Join(dir, "out.png"))
	require.NoError(t, err)
	res, err := a.BlurFaces(context.Background(), src, out)
	require.NoError(t, err)
	require.NoError(t, out.Close())
	assert.Len(t, res.Detections, 1)

	got, err := Open(out.Name())
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{0, 0, 0, 255}, got.NRGBAAt(4, 4))
	assert.Equal(t, color.NRGBA{255, 255, 255, 255}, got.NRGBAAt(28, 28))
}

func TestBlurFacesToBufferIsJPEG(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.png")
	require.NoError(t, Save(src, whiteImage(16, 16)))

	var buf bytes.Buffer
	_, err := New(&fakeDetector{}, nil).BlurFaces(context.Background(), src, &buf)

	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xD8}, buf.Bytes()[:2])
}

func TestBlurFacesMissingSource(t *testing.T) {
	_, err := New(&fakeDetector{}, nil).BlurFaces(context.Background(), "does/not/exist.jpg", &bytes.Buffer{})
	assert.ErrorIs(t, err, ErrSourceNotFound)
}

func TestFormatFor(t *testing.T) {
	tests := []struct {
		name string
		want imaging.Format
		err  error
	}{
		{"out.jpg", imaging.JPEG, nil},
		{"out.JPEG", imaging.JPEG, nil},
		{"out", imaging.JPEG, nil},
		{"out.png", imaging.PNG, nil},
		{"out.gif", imaging.GIF, nil},
		{"out.webp", 0, ErrUnsupportedFormat},
		{"out.bmp", 0, ErrUnsupportedFormat},
		{"out.tif", 0, ErrUnsupportedFormat},
		{"out.tiff", 0, ErrUnsupportedFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FormatFor(tt.name)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSaveRejectsUnknownExtension(t *testing.T) {
	err := Save(filepath.Join(t.TempDir(), "x.webp"), whiteImage(2, 2))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func fixedClock(times ...time.Time) func() time.Time {
	i := 0
	return func() time.Time {
		t := times[i]
		if i < len(times)-1 {
			i++
		}
		return t
	}
}

func TestStats(t *testing.T) {
	t0 := time.Unix(0, 0)
	s := &Stats{now: fixedClock(t0.Add(time.Second), t0.Add(2*time.Second)), start: t0}

	s.Add(2)
	s.Add(1)

	assert.Equal(t, 2, s.Frames)
	assert.Equal(t, 3, s.Faces)
	assert.Equal(t, 2*time.Second, s.Elapsed)
	assert.InDelta(t, 1.0, s.FPS(), 1e-9)
	assert.InDelta(t, 1.5, s.AvgFaces(), 1e-9)
}

func TestStatsEmpty(t *testing.T) {
	s := NewStats()
	assert.Zero(t, s.FPS())
	assert.Zero(t, s.AvgFaces())
}

func TestProgressOf(t *testing.T) {
	p := ProgressOf(30, 120, 3*time.Second)

	assert.InDelta(t, 25.0, p.Percent, 1e-9)
	assert.InDelta(t, 10.0, p.FPS, 1e-9)
	assert.Equal(t, 9*time.Second, p.ETA)
	assert.Equal(t, "Frame 30/120 (25.0%) - 10.0 FPS - ETA 9s", p.String())

	p = ProgressOf(30, 0, 3*time.Second)
	assert.Zero(t, p.Percent)
	assert.Equal(t, "Frame 30 - 10.0 FPS", p.String())
}

func TestFPSCounter(t *testing.T) {
	t0 := time.Unix(0, 0)
	c := &FPSCounter{last: t0, now: fixedClock(
		t0.Add(200*time.Millisecond),
		t0.Add(500*time.Millisecond),
		t0.Add(time.Second),
	)}

	assert.Zero(t, c.Tick())
	assert.Zero(t, c.Tick())
	assert.InDelta(t, 3.0, c.Tick(), 1e-9)
	assert.InDelta(t, 3.0, c.FPS(), 1e-9)
}
