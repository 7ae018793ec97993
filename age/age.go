// Package age estimates an age bracket from a cropped face.
package age

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"regexp"
	"strconv"

	"github.com/disintegration/imaging"
)

// Label sets for the supported classifiers.
var (
	// ViTLabels are the classes of the nateraw/vit-age-classifier model.
	ViTLabels = []string{"0-2", "3-9", "10-19", "20-29", "30-39", "40-49", "50-59", "60-69", "more than 70"}

	// CaffeLabels are the classes of the Levi-Hassner age_net model.
	CaffeLabels = []string{"0-2", "4-6", "8-12", "15-20", "25-32", "38-43", "48-53", "60-100"}
)

// Errors.
var (
	ErrNoLogits      = errors.New("age: empty model output")
	ErrLabelMismatch = errors.New("age: output size does not match labels")
	ErrNoFace        = errors.New("age: no face in crop")
)

// Prediction is the estimated age bracket. High is 0 for open-ended
// brackets such as "more than 70".
type Prediction struct {
	Label string  `json:"label"`
	Index int     `json:"index"`
	Score float64 `json:"score"`
	Low   int     `json:"low"`
	High  int     `json:"high"`
}

// String renders the prediction for on-frame labels.
func (p Prediction) String() string {
	if p.Score > 0 {
		return fmt.Sprintf("Age: %s (%.0f%%)", p.Label, p.Score*100)
	}
	return "Age: " + p.Label
}

// Estimator predicts age from a face crop.
type Estimator interface {
	Estimate(ctx context.Context, face image.Image) (Prediction, error)
	Close() error
}

// Classify turns raw class scores into a prediction: softmax, then argmax.
func Classify(logits []float32, labels []string) (Prediction, error) {
	if len(logits) == 0 {
		return Prediction{}, ErrNoLogits
	}
	if len(logits) != len(labels) {
		return Prediction{}, fmt.Errorf("%w: %d scores, %d labels", ErrLabelMismatch, len(logits), len(labels))
	}

	probs := Softmax(logits)
	best := 0
	for i, p := range probs {
		if p > probs[best] {
			best = i
		}
	}

	low, high := ParseRange(labels[best])
	return Prediction{
		Label: labels[best],
		Index: best,
		Score: probs[best],
		Low:   low,
		High:  high,
	}, nil
}

// ClassifyProbabilities is Classify for models whose output is already a
// probability distribution.
func ClassifyProbabilities(probs []float32, labels []string) (Prediction, error) {
	logits := make([]float32, len(probs))
	for i, p := range probs {
		logits[i] = float32(math.Log(math.Max(float64(p), 1e-12)))
	}
	return Classify(logits, labels)
}

// Softmax normalises scores into probabilities.
func Softmax(logits []float32) []float64 {
	out := make([]float64, len(logits))
	if len(logits) == 0 {
		return out
	}
	m := float64(logits[0])
	for _, v := range logits[1:] {
		m = math.Max(m, float64(v))
	}
	var sum float64
	for i, v := range logits {
		out[i] = math.Exp(float64(v) - m)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

var rangeRe = regexp.MustCompile(`\d+`)

// ParseRange extracts the bounds of a bracket label such as "20-29" or
// "more than 70".
func ParseRange(label string) (low, high int) {
	nums := rangeRe.FindAllString(label, 2)
	switch len(nums) {
	case 0:
		return 0, 0
	case 1:
		low, _ = strconv.Atoi(nums[0])
		return low, 0
	default:
		low, _ = strconv.Atoi(nums[0])
		high, _ = strconv.Atoi(nums[1])
		return low, high
	}
}

// Crop cuts the face out of img, growing the box by margin (a fraction of
// the box size) on every side and clamping to the image.
func Crop(img image.Image, box image.Rectangle, margin float64) (*image.NRGBA, error) {
	dx := int(float64(box.Dx()) * margin)
	dy := int(float64(box.Dy()) * margin)
	r := image.Rect(box.Min.X-dx, box.Min.Y-dy, box.Max.X+dx, box.Max.Y+dy).Intersect(img.Bounds())
	if r.Empty() {
		return nil, ErrNoFace
	}
	return imaging.Crop(img, r), nil
}
