package detector

import (
	"context"
	"fmt"
	"image"
	"os"

	"github.com/disintegration/imaging"
	pigo "github.com/esimov/pigo/core"
)

// Pigo is a pure-Go pixel-intensity-comparison face detector. Its
// confidence is the raw cascade score, not a probability.
type Pigo struct {
	cfg        Config
	classifier *pigo.Pigo
	plc        *pigo.PuplocCascade
}

// NewPigo unpacks the facefinder cascade at cfg.ModelPath and, when
// cfg.Puploc is set, the pupil localization cascade.
func NewPigo(cfg Config) (*Pigo, error) {
	cfg = cfg.WithDefaults()

	cascadeFile, err := os.ReadFile(cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("read cascade file %s: %w: %w", cfg.ModelPath, ErrModelNotLoaded, err)
	}
	return NewPigoFromBytes(cascadeFile, cfg)
}

// NewPigoFromBytes builds the detector from an in-memory cascade.
func NewPigoFromBytes(cascade []byte, cfg Config) (*Pigo, error) {
	cfg = cfg.WithDefaults()

	p := pigo.NewPigo()
	// Unpack returns the cascade trees, their depth, threshold and leaf predictions.
	classifier, err := p.Unpack(cascade)
	if err != nil {
		return nil, fmt.Errorf("unpack cascade: %w: %w", ErrModelNotLoaded, err)
	}

	d := &Pigo{cfg: cfg, classifier: classifier}

	if len(cfg.Puploc) > 0 {
		data, err := os.ReadFile(cfg.Puploc)
		if err != nil {
			return nil, fmt.Errorf("read puploc file %s: %w", cfg.Puploc, err)
		}
		plc, err := pigo.NewPuplocCascade().UnpackCascade(data)
		if err != nil {
			return nil, fmt.Errorf("unpack puploc cascade: %w", err)
		}
		d.plc = plc
	}

	return d, nil
}

// Name implements Detector.
func (d *Pigo) Name() string { return "pigo" }

// Info implements Describer.
func (d *Pigo) Info() Info {
	return Info{
		Name:      d.Name(),
		ModelPath: d.cfg.ModelPath,
		ModelType: "facefinder cascade",
		Framework: "pigo",
		Threshold: d.cfg.Threshold,
		Loaded:    d.classifier != nil,
	}
}

// Detect implements Detector.
func (d *Pigo) Detect(ctx context.Context, img image.Image) ([]Detection, error) {
	if d.classifier == nil {
		return nil, ErrModelNotLoaded
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, ErrEmptyImage
	}

	// RgbToGrayscale reads from (0, 0), so sub-images are rebased first.
	if b.Min != (image.Point{}) {
		img = imaging.Clone(img)
	}

	cols, rows := b.Dx(), b.Dy()
	imgParams := pigo.ImageParams{
		Pixels: pigo.RgbToGrayscale(img),
		Rows:   rows,
		Cols:   cols,
		Dim:    cols,
	}

	cParams := pigo.CascadeParams{
		MinSize:     d.cfg.MinSize,
		MaxSize:     min(d.cfg.MaxSize, max(cols, rows)),
		ShiftFactor: d.cfg.ShiftFactor,
		ScaleFactor: d.cfg.ScaleFactor,
		ImageParams: imgParams,
	}

	// Results are (row, col, scale, score) quadruplets.
	faces := d.classifier.RunCascade(cParams, d.cfg.Angle)
	faces = d.classifier.ClusterDetections(faces, d.cfg.IouThreshold)

	dets := make([]Detection, 0, len(faces))
	for _, f := range faces {
		if float64(f.Q) < d.cfg.Threshold {
			continue
		}
		det := Detection{
			Box:        PigoBox(f.Row, f.Col, f.Scale).Add(b.Min),
			Confidence: float64(f.Q),
		}
		if d.plc != nil {
			det.Eyes = d.eyes(f, imgParams, b.Min)
		}
		dets = append(dets, det)
	}
	return Clamp(dets, b), nil
}

func (d *Pigo) eyes(f pigo.Detection, params pigo.ImageParams, offset image.Point) []image.Point {
	var out []image.Point
	for _, dx := range []float32{-0.175, 0.185} {
		pl := pigo.Puploc{
			Row:      f.Row - int(0.075*float32(f.Scale)),
			Col:      f.Col + int(dx*float32(f.Scale)),
			Scale:    float32(f.Scale) * 0.25,
			Perturbs: 63,
		}
		eye := d.plc.RunDetector(pl, params, d.cfg.Angle, false)
		if eye != nil && eye.Row > 0 && eye.Col > 0 {
			out = append(out, image.Pt(eye.Col, eye.Row).Add(offset))
		}
	}
	return out
}

// Close implements Detector.
func (d *Pigo) Close() error { return nil }

// PigoBox converts a pigo centre/scale detection into a rectangle.
func PigoBox(row, col, scale int) image.Rectangle {
	half := scale / 2
	return image.Rect(col-half, row-half, col+half, row+half)
}
