package gifconv

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"io"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sliceSource struct {
	frames []*image.NRGBA
	read   int
	err    error
}

func (s *sliceSource) Read() (*image.NRGBA, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.read >= len(s.frames) {
		return nil, io.EOF
	}
	f := s.frames[s.read]
	s.read++
	return f, nil
}

func frames(n, w, h int) []*image.NRGBA {
	out := make([]*image.NRGBA, n)
	for i := range out {
		out[i] = imaging.New(w, h, color.NRGBA{uint8(i * 10), 0, 0, 255})
	}
	return out
}

func TestFrameSkip(t *testing.T) {
	assert.Equal(t, 3, FrameSkip(30, 10))
	assert.Equal(t, 2, FrameSkip(29.97, 10))
	assert.Equal(t, 1, FrameSkip(5, 10))
	assert.Equal(t, 1, FrameSkip(0, 10))
	assert.Equal(t, 1, FrameSkip(30, 0))
}

func TestDelay(t *testing.T) {
	assert.Equal(t, 10, Delay(10))
	assert.Equal(t, 4, Delay(25))
	assert.Zero(t, Delay(0))
}

func TestConvert(t *testing.T) {
	src := &sliceSource{frames: frames(30, 160, 90)}
	var buf bytes.Buffer

	res, err := Convert(context.Background(), src, 30, &buf, Options{FPS: 10, Width: 80})

	require.NoError(t, err)
	assert.Equal(t, 10, res.Frames)
	assert.Equal(t, int64(buf.Len()), res.Size)
	assert.False(t, res.Large)

	out, err := gif.DecodeAll(&buf)
	require.NoError(t, err)
	require.Len(t, out.Image, 10)
	assert.Equal(t, 0, out.LoopCount)
	assert.Equal(t, 10, out.Delay[0])
	assert.Equal(t, image.Rect(0, 0, 80, 45), out.Image[0].Bounds())
}

func TestConvertStopsAtMaxFrames(t *testing.T) {
	src := &sliceSource{frames: frames(50, 20, 20)}

	res, err := Convert(context.Background(), src, 10, io.Discard, Options{FPS: 10, Width: 20, MaxFrames: 5})

	require.NoError(t, err)
	assert.Equal(t, 5, res.Frames)
	assert.Equal(t, 5, src.read)
}

func TestConvertProcessesKeptFramesOnly(t *testing.T) {
	src := &sliceSource{frames: frames(9, 20, 20)}
	var seen []uint8

	res, err := Convert(context.Background(), src, 30, io.Discard, Options{
		FPS:   10,
		Width: 20,
		Process: func(_ context.Context, f *image.NRGBA) error {
			seen = append(seen, f.Pix[0])
			return nil
		},
	})

	require.NoError(t, err)
	assert.Equal(t, 3, res.Frames)
	assert.Equal(t, []uint8{0, 30, 60}, seen, "frames 0, 3 and 6")
}

func TestConvertProcessError(t *testing.T) {
	boom := errors.New("detector failed")
	_, err := Convert(context.Background(), &sliceSource{frames: frames(3, 4, 4)}, 10, io.Discard, Options{
		Process: func(context.Context, *image.NRGBA) error { return boom },
	})
	assert.ErrorIs(t, err, boom)
}

func TestConvertErrors(t *testing.T) {
	_, err := Convert(context.Background(), &sliceSource{}, 30, io.Discard, DefaultOptions())
	assert.ErrorIs(t, err, ErrNoFrames)

	boom := errors.New("decoder failed")
	_, err = Convert(context.Background(), &sliceSource{err: boom}, 30, io.Discard, DefaultOptions())
	assert.ErrorIs(t, err, boom)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Convert(ctx, &sliceSource{frames: frames(3, 4, 4)}, 30, io.Discard, DefaultOptions())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScaleKeepsAspect(t *testing.T) {
	img := Scale(imaging.New(1600, 900, color.White), 800)
	assert.Equal(t, image.Rect(0, 0, 800, 450), img.Bounds())
}

func TestQuantize(t *testing.T) {
	p := Quantize(imaging.New(8, 8, color.White))
	r, g, b, _ := p.At(3, 3).RGBA()
	assert.Equal(t, [3]uint32{0xffff, 0xffff, 0xffff}, [3]uint32{r, g, b})
}
