package cvmodel

import (
	"context"
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thaitanloi365/go-face-privacy/detector"
)

func TestConstructorsRequireModelFiles(t *testing.T) {
	missing := detector.Config{ModelPath: filepath.Join(t.TempDir(), "missing.onnx")}

	_, err := NewYOLO(missing)
	assert.ErrorIs(t, err, detector.ErrModelNotLoaded)

	_, err = NewYuNet(missing)
	assert.ErrorIs(t, err, detector.ErrModelNotLoaded)

	_, err = NewSSD(missing)
	assert.ErrorIs(t, err, detector.ErrModelNotLoaded)

	_, err = NewHaar(detector.Config{})
	assert.ErrorIs(t, err, detector.ErrModelNotLoaded)

	_, err = NewViTAge("")
	assert.ErrorIs(t, err, detector.ErrModelNotLoaded)

	_, err = NewCaffeAge(missing.ModelPath, "")
	assert.ErrorIs(t, err, detector.ErrModelNotLoaded)
}

func TestRegister(t *testing.T) {
	reg := detector.NewRegistry()
	Register(reg)

	for _, name := range []string{"yolo", "yunet", "ssd", "haar", "pigo", "rekognition"} {
		assert.True(t, reg.Has(name), name)
	}

	_, err := reg.New(context.Background(), "haar", detector.Config{ModelPath: "nope.xml"})
	assert.ErrorIs(t, err, detector.ErrModelNotLoaded)
}

func TestMatRoundTrip(t *testing.T) {
	src := imaging.New(12, 6, color.NRGBA{10, 200, 30, 255})

	m, err := NRGBAToMat(src)
	require.NoError(t, err)
	defer m.Close()
	assert.Equal(t, 12, m.Cols())
	assert.Equal(t, 6, m.Rows())

	back, err := MatToNRGBA(m)
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{10, 200, 30, 255}, back.NRGBAAt(3, 3))
}

func TestNRGBAToMatEmpty(t *testing.T) {
	m, err := NRGBAToMat(image.NewNRGBA(image.Rectangle{}))
	defer m.Close()
	assert.ErrorIs(t, err, detector.ErrEmptyImage)
}

func TestToFrameOffsetsAndClamps(t *testing.T) {
	dets := []detector.Detection{{Box: image.Rect(0, 0, 10, 10), Eyes: []image.Point{{2, 3}}}}

	got := toFrame(dets, image.Rect(5, 5, 12, 12))

	require.Len(t, got, 1)
	assert.Equal(t, image.Rect(5, 5, 12, 12), got[0].Box)
	assert.Equal(t, image.Pt(7, 8), got[0].Eyes[0])
}
