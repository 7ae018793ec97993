// Package compose builds the frames shown by the front ends: side by side
// and grid layouts, title bars and text overlays.
package compose

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"

	"thaitanloi365/go-face-privacy/detector"
	"thaitanloi365/go-face-privacy/effects"
)

// Palette used by the overlays.
var (
	White  = color.NRGBA{255, 255, 255, 255}
	Gray   = color.NRGBA{180, 180, 180, 255}
	Green  = color.NRGBA{0, 255, 0, 255}
	Red    = color.NRGBA{255, 0, 0, 255}
	Blue   = color.NRGBA{0, 128, 255, 255}
	Yellow = color.NRGBA{255, 255, 0, 255}
	Orange = color.NRGBA{255, 165, 0, 255}

	barColor = color.NRGBA{30, 30, 30, 255}
)

// Layout sizes.
const (
	LabelHeight  = 60
	labelOpacity = 0.7
	lineHeight   = 26
)

var detectorColors = map[string]color.NRGBA{
	"yolo":        Green,
	"yunet":       Blue,
	"ssd":         Orange,
	"haar":        Red,
	"pigo":        Yellow,
	"rekognition": White,
}

// DetectorColor is the box colour a detector is drawn with.
func DetectorColor(name string) color.NRGBA {
	if c, ok := detectorColors[name]; ok {
		return c
	}
	return Green
}

// Fit resizes img to exactly w x h.
func Fit(img image.Image, w, h int) *image.NRGBA {
	b := img.Bounds()
	if b.Dx() == w && b.Dy() == h {
		return imaging.Clone(img)
	}
	return imaging.Resize(img, w, h, imaging.Linear)
}

// SideBySide places right next to left. right is scaled to the height of
// left.
func SideBySide(left, right image.Image) *image.NRGBA {
	lb := left.Bounds()
	rb := right.Bounds()
	if rb.Dy() != lb.Dy() && rb.Dy() > 0 {
		w := rb.Dx() * lb.Dy() / rb.Dy()
		right = Fit(right, max(w, 1), lb.Dy())
		rb = right.Bounds()
	}
	dst := imaging.New(lb.Dx()+rb.Dx(), lb.Dy(), color.Black)
	dst = imaging.Paste(dst, left, image.Pt(0, 0))
	return imaging.Paste(dst, right, image.Pt(lb.Dx(), 0))
}

// Grid2x2 arranges four panels, each scaled to the size of a.
func Grid2x2(a, b, c, d image.Image) *image.NRGBA {
	w, h := a.Bounds().Dx(), a.Bounds().Dy()
	dst := imaging.New(2*w, 2*h, color.Black)
	for i, p := range []image.Image{a, b, c, d} {
		at := image.Pt((i%2)*w, (i/2)*h)
		dst = imaging.Paste(dst, Fit(p, w, h), at)
	}
	return dst
}

// WithTitleBar adds a dark bar of the given height above img with a centred
// title and an optional subtitle.
func WithTitleBar(img image.Image, title, subtitle string, height int) *image.NRGBA {
	b := img.Bounds()
	dst := imaging.New(b.Dx(), b.Dy()+height, barColor)
	dst = imaging.Paste(dst, img, image.Pt(0, height))

	drawOn(dst, func(dc *gg.Context) {
		w := float64(b.Dx())
		dc.SetFontFace(BoldFont(float64(height) * 0.3))
		dc.SetColor(White)
		titleY := float64(height) * 0.4
		if subtitle == "" {
			titleY = float64(height) / 2
		}
		dc.DrawStringAnchored(title, w/2, titleY, 0.5, 0.5)
		if subtitle != "" {
			dc.SetFontFace(Font(float64(height) * 0.18))
			dc.SetColor(Gray)
			dc.DrawStringAnchored(subtitle, w/2, float64(height)*0.75, 0.5, 0.5)
		}
	})
	return dst
}

// Label darkens the top LabelHeight pixels of dst and writes text there.
func Label(dst *image.NRGBA, text string, c color.Color) {
	drawOn(dst, func(dc *gg.Context) {
		dc.SetRGBA(0, 0, 0, labelOpacity)
		dc.DrawRectangle(0, 0, float64(dc.Width()), LabelHeight)
		dc.Fill()
		dc.SetFontFace(BoldFont(24))
		dc.SetColor(c)
		dc.DrawStringAnchored(text, 12, LabelHeight/2, 0, 0.5)
	})
}

// Caption writes text in the bottom left corner of dst.
func Caption(dst *image.NRGBA, text string, c color.Color) {
	drawOn(dst, func(dc *gg.Context) {
		dc.SetFontFace(Font(18))
		dc.SetColor(c)
		dc.DrawStringAnchored(text, 20, float64(dc.Height())-20, 0, 0)
	})
}

// Info is the status shown in the corner of live frames.
type Info struct {
	FPS      float64
	Faces    int
	Effect   effects.Name
	Level    int
	Detector string
	Extra    []string
}

// Lines renders the info as overlay text.
func (i Info) Lines() []string {
	lines := []string{
		fmt.Sprintf("FPS: %.1f", i.FPS),
		fmt.Sprintf("Faces: %d", i.Faces),
	}
	if i.Effect != "" {
		lines = append(lines, fmt.Sprintf("Effect: %s (%d)", i.Effect, i.Level))
	}
	if i.Detector != "" {
		lines = append(lines, "Detector: "+i.Detector)
	}
	return append(lines, i.Extra...)
}

// InfoOverlay writes the status block in the top left corner.
func InfoOverlay(dst *image.NRGBA, info Info) {
	textPanel(dst, info.Lines(), image.Pt(10, 10), Green)
}

// HelpOverlay draws lines on a translucent panel in the middle of dst.
func HelpOverlay(dst *image.NRGBA, lines []string) {
	if len(lines) == 0 {
		return
	}
	b := dst.Bounds()
	h := len(lines)*lineHeight + 20
	top := max((b.Dy()-h)/2, 0)
	textPanel(dst, lines, image.Pt(b.Dx()/6, top), White)
}

func textPanel(dst *image.NRGBA, lines []string, at image.Point, c color.Color) {
	drawOn(dst, func(dc *gg.Context) {
		dc.SetFontFace(Font(18))
		var w float64
		for _, l := range lines {
			lw, _ := dc.MeasureString(l)
			w = max(w, lw)
		}
		x, y := float64(at.X), float64(at.Y)
		dc.SetRGBA(0, 0, 0, 0.6)
		dc.DrawRectangle(x, y, w+20, float64(len(lines)*lineHeight)+20)
		dc.Fill()
		dc.SetColor(c)
		for i, l := range lines {
			dc.DrawStringAnchored(l, x+10, y+10+float64(i*lineHeight)+lineHeight/2, 0, 0.5)
		}
	})
}

// DrawDetections outlines each face and prints its confidence above the box,
// prefixed by prefix when set.
func DrawDetections(dst *image.NRGBA, dets []detector.Detection, c color.Color, prefix string) {
	if len(dets) == 0 {
		return
	}
	drawOn(dst, func(dc *gg.Context) {
		dc.SetFontFace(Font(14))
		dc.SetLineWidth(2)
		for _, d := range dets {
			r := d.Box
			dc.SetColor(c)
			dc.DrawRectangle(float64(r.Min.X)+1, float64(r.Min.Y)+1, float64(r.Dx())-2, float64(r.Dy())-2)
			dc.Stroke()

			text := fmt.Sprintf("%.2f", d.Confidence)
			if prefix != "" {
				text = prefix + " " + text
			}
			y := float64(r.Min.Y) - 4
			if y < 14 {
				y = float64(r.Max.Y) + 14
			}
			dc.DrawString(text, float64(r.Min.X), y)
		}
	})
}

// LevelBar draws the intensity gauge along the bottom of dst.
func LevelBar(dst *image.NRGBA, level int) {
	level = effects.ClampLevel(level)
	b := dst.Bounds()
	const height, margin = 12, 10
	track := image.Rect(margin, b.Dy()-margin-height, b.Dx()-margin, b.Dy()-margin)
	if track.Empty() {
		return
	}
	frac := float64(level-effects.MinLevel) / float64(effects.MaxLevel-effects.MinLevel)
	fill := track
	fill.Max.X = track.Min.X + int(frac*float64(track.Dx()))

	draw.Draw(dst, track, image.NewUniform(barColor), image.Point{}, draw.Src)
	draw.Draw(dst, fill, image.NewUniform(Green), image.Point{}, draw.Src)
	effects.StrokeRect(dst, track, White, 1)
}

// drawOn runs fn on a gg context holding a copy of dst, then writes the
// result back.
func drawOn(dst *image.NRGBA, fn func(dc *gg.Context)) {
	dc := gg.NewContextForImage(dst)
	fn(dc)
	out := dc.Image()
	draw.Draw(dst, dst.Bounds(), out, out.Bounds().Min, draw.Src)
}
