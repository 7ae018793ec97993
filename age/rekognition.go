package age

import (
	"context"
	"fmt"
	"image"

	"thaitanloi365/go-face-privacy/rekog"
)

// FaceFinder is satisfied by *rekog.Client.
type FaceFinder interface {
	DetectFaces(ctx context.Context, img image.Image) ([]rekog.Face, error)
}

// Rekognition estimates age with the AgeRange attribute of AWS Rekognition.
type Rekognition struct {
	client FaceFinder
}

// NewRekognition connects to Rekognition in region with AgeRange enabled.
func NewRekognition(ctx context.Context, region string) (*Rekognition, error) {
	c, err := rekog.New(ctx, region, rekog.WithAgeRange())
	if err != nil {
		return nil, err
	}
	return &Rekognition{client: c}, nil
}

// NewRekognitionWithClient uses an existing client.
func NewRekognitionWithClient(c FaceFinder) *Rekognition {
	return &Rekognition{client: c}
}

// Estimate implements Estimator using the most confident face in the crop.
func (r *Rekognition) Estimate(ctx context.Context, face image.Image) (Prediction, error) {
	faces, err := r.client.DetectFaces(ctx, face)
	if err != nil {
		return Prediction{}, err
	}
	if len(faces) == 0 {
		return Prediction{}, ErrNoFace
	}

	best := faces[0]
	for _, f := range faces[1:] {
		if f.Confidence > best.Confidence {
			best = f
		}
	}
	return Prediction{
		Label: fmt.Sprintf("%d-%d", best.AgeLow, best.AgeHigh),
		Index: -1,
		Score: best.Confidence,
		Low:   best.AgeLow,
		High:  best.AgeHigh,
	}, nil
}

// Close implements Estimator.
func (r *Rekognition) Close() error { return nil }
