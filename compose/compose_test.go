package compose

import (
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thaitanloi365/go-face-privacy/detector"
	"thaitanloi365/go-face-privacy/effects"
)

func solid(w, h int, c color.Color) *image.NRGBA {
	return imaging.New(w, h, c)
}

func TestSideBySide(t *testing.T) {
	left := solid(40, 30, Red)
	right := solid(80, 60, Blue)

	out := SideBySide(left, right)

	assert.Equal(t, image.Rect(0, 0, 80, 30), out.Bounds())
	assert.Equal(t, Red, out.NRGBAAt(10, 10))
	assert.Equal(t, Blue, out.NRGBAAt(60, 10))
}

func TestGrid2x2(t *testing.T) {
	out := Grid2x2(solid(20, 10, Red), solid(5, 5, Green), solid(20, 10, Blue), solid(40, 20, White))

	require.Equal(t, image.Rect(0, 0, 40, 20), out.Bounds())
	assert.Equal(t, Red, out.NRGBAAt(5, 5))
	assert.Equal(t, Green, out.NRGBAAt(25, 5))
	assert.Equal(t, Blue, out.NRGBAAt(5, 15))
	assert.Equal(t, White, out.NRGBAAt(35, 15))
}

func TestWithTitleBar(t *testing.T) {
	out := WithTitleBar(solid(200, 50, Green), "Original vs Pixelate", "press q to quit", 100)

	require.Equal(t, image.Rect(0, 0, 200, 150), out.Bounds())
	assert.Equal(t, barColor, out.NRGBAAt(1, 1))
	assert.Equal(t, Green, out.NRGBAAt(100, 140))
}

func TestLabelDarkensHeader(t *testing.T) {
	img := solid(200, 100, White)

	Label(img, "", Green)

	top := img.NRGBAAt(150, 5)
	assert.Less(t, top.R, uint8(100), "header is darkened")
	assert.Equal(t, White, img.NRGBAAt(150, LabelHeight+10), "below the header is untouched")
}

func TestCaptionDrawsNearBottom(t *testing.T) {
	img := solid(200, 100, color.Black)

	Caption(img, "Faces: 3", Green)

	var lit int
	for y := 60; y < 100; y++ {
		for x := 0; x < 200; x++ {
			if img.NRGBAAt(x, y).G > 100 {
				lit++
			}
		}
	}
	assert.Positive(t, lit)
	assert.Equal(t, color.NRGBA{0, 0, 0, 255}, img.NRGBAAt(100, 10), "top is untouched")
}

func TestDrawDetections(t *testing.T) {
	img := solid(100, 100, color.Black)

	DrawDetections(img, []detector.Detection{{Box: image.Rect(20, 30, 60, 80), Confidence: 0.9}}, Red, "yolo")

	edge := img.NRGBAAt(40, 31)
	assert.Greater(t, edge.R, uint8(200))
	assert.Equal(t, color.NRGBA{0, 0, 0, 255}, img.NRGBAAt(40, 55), "inside the box is untouched")
}

func TestDrawDetectionsNoop(t *testing.T) {
	img := solid(10, 10, White)
	DrawDetections(img, nil, Red, "")
	assert.Equal(t, White, img.NRGBAAt(5, 5))
}

func TestLevelBar(t *testing.T) {
	img := solid(120, 60, color.Black)

	LevelBar(img, effects.MaxLevel)
	assert.Equal(t, Green, img.NRGBAAt(60, 60-10-6))

	img = solid(120, 60, color.Black)
	LevelBar(img, effects.MinLevel)
	assert.Equal(t, barColor, img.NRGBAAt(60, 60-10-6))
}

func TestInfoLines(t *testing.T) {
	lines := Info{FPS: 29.97, Faces: 2, Effect: effects.GaussBlur, Level: 15, Detector: "yolo", Extra: []string{"REC"}}.Lines()
	assert.Equal(t, []string{"FPS: 30.0", "Faces: 2", "Effect: blur (15)", "Detector: yolo", "REC"}, lines)
}

func TestInfoAndHelpOverlayDraw(t *testing.T) {
	img := solid(400, 300, White)
	InfoOverlay(img, Info{FPS: 10, Faces: 1})
	assert.NotEqual(t, White, img.NRGBAAt(12, 12))

	img = solid(400, 300, White)
	HelpOverlay(img, []string{"q: quit"})
	assert.NotEqual(t, White, img.NRGBAAt(400/6+2, 300/2))
}

func TestDetectorColor(t *testing.T) {
	assert.Equal(t, Red, DetectorColor("haar"))
	assert.Equal(t, Green, DetectorColor("unknown"))
}

func TestFont(t *testing.T) {
	f := Font(12)
	require.NotNil(t, f)
	assert.Positive(t, f.Metrics().Height.Ceil())
	assert.NotNil(t, BoldFont(12))
}
