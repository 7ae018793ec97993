package detector

import (
	"context"
	"image"

	"thaitanloi365/go-face-privacy/rekog"
)

// FaceFinder is satisfied by *rekog.Client.
type FaceFinder interface {
	DetectFaces(ctx context.Context, img image.Image) ([]rekog.Face, error)
}

// Rekognition detects faces with the AWS Rekognition service.
type Rekognition struct {
	client    FaceFinder
	threshold float64
	region    string
}

// NewRekognition connects to Rekognition in cfg.Region.
func NewRekognition(ctx context.Context, cfg Config) (*Rekognition, error) {
	cfg = cfg.WithDefaults()
	c, err := rekog.New(ctx, cfg.Region)
	if err != nil {
		return nil, err
	}
	return NewRekognitionWithClient(c, cfg), nil
}

// NewRekognitionWithClient uses an existing client.
func NewRekognitionWithClient(c FaceFinder, cfg Config) *Rekognition {
	cfg = cfg.WithDefaults()
	return &Rekognition{client: c, threshold: cfg.Threshold, region: cfg.Region}
}

// Name implements Detector.
func (r *Rekognition) Name() string { return "rekognition" }

// Info implements Describer.
func (r *Rekognition) Info() Info {
	return Info{
		Name:      r.Name(),
		ModelType: "AWS Rekognition DetectFaces (" + r.region + ")",
		Framework: "aws-sdk-go-v2",
		Threshold: r.threshold,
		Loaded:    r.client != nil,
	}
}

// Detect implements Detector.
func (r *Rekognition) Detect(ctx context.Context, img image.Image) ([]Detection, error) {
	if r.client == nil {
		return nil, ErrModelNotLoaded
	}
	if img.Bounds().Empty() {
		return nil, ErrEmptyImage
	}
	faces, err := r.client.DetectFaces(ctx, img)
	if err != nil {
		return nil, err
	}
	dets := make([]Detection, 0, len(faces))
	for _, f := range faces {
		dets = append(dets, Detection{Box: f.Box, Confidence: f.Confidence, Eyes: f.Eyes})
	}
	return Clamp(FilterByConfidence(dets, r.threshold), img.Bounds()), nil
}

// Close implements Detector.
func (r *Rekognition) Close() error { return nil }
