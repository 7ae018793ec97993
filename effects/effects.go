// Package effects implements the per-face anonymization effects.
//
// Every effect works in place on an *image.NRGBA and only touches the pixels
// inside the given box. Boxes are clamped to the image bounds first; a box that
// is empty after clamping leaves the image unchanged.
package effects

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
)

// Intensity limits shared by the front ends.
const (
	MinLevel     = 5
	MaxLevel     = 50
	DefaultLevel = 15
	LevelStep    = 2
)

var (
	black        = color.NRGBA{0, 0, 0, 255}
	boxBorder    = color.NRGBA{50, 50, 50, 255}
	teal         = color.NRGBA{0, 128, 128, 255}
	tealBorder   = color.NRGBA{0, 100, 100, 255}
	emojiYellow  = color.NRGBA{255, 255, 0, 255}
	colorizeMix  = 0.8
	borderWeight = 2
)

// ClampLevel bounds an intensity to [MinLevel, MaxLevel].
func ClampLevel(level int) int {
	if level < MinLevel {
		return MinLevel
	}
	if level > MaxLevel {
		return MaxLevel
	}
	return level
}

// clip intersects box with the image bounds. ok is false when nothing is left.
func clip(dst *image.NRGBA, box image.Rectangle) (image.Rectangle, bool) {
	r := box.Canon().Intersect(dst.Bounds())
	return r, !r.Empty()
}

func paste(dst *image.NRGBA, box image.Rectangle, src image.Image) {
	draw.Draw(dst, box, src, src.Bounds().Min, draw.Src)
}

// Pixelate replaces the box with a block mosaic. The block size is level,
// capped at half the shorter side of the box.
func Pixelate(dst *image.NRGBA, box image.Rectangle, level int) {
	r, ok := clip(dst, box)
	if !ok {
		return
	}
	w, h := r.Dx(), r.Dy()
	size := PixelSize(w, h, level)

	face := imaging.Crop(dst, r)
	small := imaging.Resize(face, max(1, w/size), max(1, h/size), imaging.Linear)
	paste(dst, r, imaging.Resize(small, w, h, imaging.NearestNeighbor))
}

// PixelSize returns the mosaic block size used by Pixelate for a w x h box.
func PixelSize(w, h, level int) int {
	return max(1, min(level, min(w, h)/2))
}

// Blur applies a Gaussian blur whose kernel is 2*level+1 pixels wide.
func Blur(dst *image.NRGBA, box image.Rectangle, level int) {
	r, ok := clip(dst, box)
	if !ok {
		return
	}
	face := imaging.Crop(dst, r)
	paste(dst, r, imaging.Blur(face, BlurSigma(level)))
}

// BlurSigma derives the Gaussian sigma for a kernel of 2*level+1, using the
// same rule OpenCV applies when sigma is left at zero.
func BlurSigma(level int) float64 {
	if level < 0 {
		level = 0
	}
	k := float64(2*level + 1)
	return 0.3*((k-1)*0.5-1) + 0.8
}

// BlackBox fills the box with black and outlines it in dark grey.
func BlackBox(dst *image.NRGBA, box image.Rectangle, _ int) {
	r, ok := clip(dst, box)
	if !ok {
		return
	}
	draw.Draw(dst, r, image.NewUniform(black), image.Point{}, draw.Src)
	StrokeRect(dst, r, boxBorder, borderWeight)
}

// Witness draws a black bar across the eyes: it starts a third of the way
// down the box and is a quarter of the box high.
func Witness(dst *image.NRGBA, box image.Rectangle, _ int) {
	r, ok := clip(dst, box)
	if !ok {
		return
	}
	bar := WitnessBar(r)
	draw.Draw(dst, bar.Intersect(r), image.NewUniform(black), image.Point{}, draw.Src)
}

// WitnessBar returns the eye bar rectangle for a face box.
func WitnessBar(r image.Rectangle) image.Rectangle {
	h := r.Dy()
	top := r.Min.Y + h/3
	return image.Rect(r.Min.X, top, r.Max.X, top+h/4)
}

// Colorize tints the box teal at 80% opacity and outlines it.
func Colorize(dst *image.NRGBA, box image.Rectangle, _ int) {
	r, ok := clip(dst, box)
	if !ok {
		return
	}
	face := imaging.Crop(dst, r)
	tint := imaging.New(r.Dx(), r.Dy(), teal)
	paste(dst, r, imaging.Overlay(face, tint, image.Pt(0, 0), colorizeMix))
	StrokeRect(dst, r, tealBorder, borderWeight)
}

// Emoji covers the box with a drawn smiley, stretched to the box size.
func Emoji(dst *image.NRGBA, box image.Rectangle, _ int) {
	r, ok := clip(dst, box)
	if !ok {
		return
	}
	face := Smiley(min(r.Dx(), r.Dy()))
	paste(dst, r, imaging.Resize(face, r.Dx(), r.Dy(), imaging.Linear))
}

// Smiley renders a size x size yellow smiley face.
func Smiley(size int) image.Image {
	size = max(size, 1)
	s := float64(size)

	dc := gg.NewContext(size, size)
	dc.SetColor(emojiYellow)
	dc.Clear()

	dc.SetColor(black)
	eyeY := float64(size / 3)
	eyeR := float64(size / 12)
	dc.DrawCircle(float64(size/3), eyeY, eyeR)
	dc.DrawCircle(float64(size*2/3), eyeY, eyeR)
	dc.Fill()

	mouthY := float64(size * 2 / 3)
	mouthR := float64(size / 4)
	dc.SetLineWidth(math.Max(1, float64(size/25)))
	dc.DrawArc(s/2, mouthY, mouthR, 0, math.Pi)
	dc.Stroke()

	return dc.Image()
}

// StrokeRect draws a border of the given thickness just inside r.
func StrokeRect(dst *image.NRGBA, r image.Rectangle, c color.Color, thickness int) {
	r = r.Intersect(dst.Bounds())
	if r.Empty() || thickness <= 0 {
		return
	}
	u := image.NewUniform(c)
	t := min(thickness, r.Dx(), r.Dy())
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+t),
		image.Rect(r.Min.X, r.Max.Y-t, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+t, r.Max.Y),
		image.Rect(r.Max.X-t, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(dst, e, u, image.Point{}, draw.Src)
	}
}
