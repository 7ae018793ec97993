package cvmodel

import (
	"context"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"thaitanloi365/go-face-privacy/age"
	"thaitanloi365/go-face-privacy/detector"
)

// AgeNet classifies a face crop into an age bracket with an OpenCV DNN.
type AgeNet struct {
	net    gocv.Net
	labels []string
	size   image.Point
	scale  float64
	mean   gocv.Scalar
	swapRB bool
	// probs is set when the network already ends in a softmax.
	probs bool
	mu    sync.Mutex
}

// NewViTAge loads an ONNX export of the nateraw/vit-age-classifier model.
func NewViTAge(modelPath string) (*AgeNet, error) {
	if err := requireFile(modelPath); err != nil {
		return nil, err
	}
	net := gocv.ReadNet(modelPath, "")
	if net.Empty() {
		return nil, fmt.Errorf("%w: cannot read network %s", detector.ErrModelNotLoaded, modelPath)
	}
	// ViT image processor: resize to 224, normalise with mean 0.5 and std 0.5
	return &AgeNet{
		net:    net,
		labels: age.ViTLabels,
		size:   image.Pt(224, 224),
		scale:  1.0 / 127.5,
		mean:   gocv.NewScalar(127.5, 127.5, 127.5, 0),
		swapRB: true,
	}, nil
}

// NewCaffeAge loads the Levi-Hassner age_net.
func NewCaffeAge(modelPath, prototxt string) (*AgeNet, error) {
	if err := requireFile(modelPath); err != nil {
		return nil, err
	}
	if err := requireFile(prototxt); err != nil {
		return nil, err
	}
	net := gocv.ReadNet(modelPath, prototxt)
	if net.Empty() {
		return nil, fmt.Errorf("%w: cannot read network %s", detector.ErrModelNotLoaded, modelPath)
	}
	return &AgeNet{
		net:    net,
		labels: age.CaffeLabels,
		size:   image.Pt(227, 227),
		scale:  1.0,
		mean:   gocv.NewScalar(78.4263377603, 87.7689143744, 114.895847746, 0),
		probs:  true,
	}, nil
}

// Estimate implements age.Estimator.
func (a *AgeNet) Estimate(ctx context.Context, face image.Image) (age.Prediction, error) {
	if err := ctx.Err(); err != nil {
		return age.Prediction{}, err
	}
	src, err := NRGBAToMat(face)
	if err != nil {
		return age.Prediction{}, err
	}
	defer src.Close()

	blob := gocv.BlobFromImage(src, a.scale, a.size, a.mean, a.swapRB, false)
	defer blob.Close()

	a.mu.Lock()
	a.net.SetInput(blob, "")
	out := a.net.Forward("")
	a.mu.Unlock()
	defer out.Close()

	scores, err := out.DataPtrFloat32()
	if err != nil {
		return age.Prediction{}, fmt.Errorf("age: read output: %w", err)
	}
	// the slice aliases out, which is closed on return
	scores = append([]float32(nil), scores...)
	if a.probs {
		return age.ClassifyProbabilities(scores, a.labels)
	}
	return age.Classify(scores, a.labels)
}

// Close implements age.Estimator.
func (a *AgeNet) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.net.Close()
}
