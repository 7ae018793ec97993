package detector

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDetector struct {
	name string
	cfg  Config
}

func (s *stubDetector) Name() string { return s.name }
func (s *stubDetector) Detect(context.Context, image.Image) ([]Detection, error) {
	return nil, nil
}
func (s *stubDetector) Close() error { return nil }

func TestRegistryBuiltins(t *testing.T) {
	reg := NewRegistry()

	assert.True(t, reg.Has("pigo"))
	assert.True(t, reg.Has("REKOGNITION"))
	assert.Equal(t, []string{"pigo", "rekognition"}, reg.Names())
}

func TestRegistryRegisterAndNew(t *testing.T) {
	reg := NewRegistry()
	reg.Register("Stub", func(_ context.Context, cfg Config) (Detector, error) {
		return &stubDetector{name: "stub", cfg: cfg}, nil
	})

	d, err := reg.New(context.Background(), "stub", Config{Threshold: 0.7})
	require.NoError(t, err)

	stub, ok := d.(*stubDetector)
	require.True(t, ok)
	assert.Equal(t, 0.7, stub.cfg.Threshold)
	assert.Equal(t, 640, stub.cfg.InputSize, "defaults are applied before the factory runs")
}

func TestRegistryUnknown(t *testing.T) {
	_, err := NewRegistry().New(context.Background(), "mediapipe", Config{})
	assert.ErrorIs(t, err, ErrUnknownDetector)
	assert.Contains(t, err.Error(), "pigo")
}

func TestRegistryFactoryError(t *testing.T) {
	reg := NewRegistry()
	boom := errors.New("boom")
	reg.Register("broken", func(context.Context, Config) (Detector, error) { return nil, boom })

	_, err := reg.New(context.Background(), "broken", Config{})
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "create broken detector")
}

func TestRegistryPigoMissingModel(t *testing.T) {
	_, err := NewRegistry().New(context.Background(), "pigo", Config{ModelPath: "testdata/missing"})
	assert.ErrorIs(t, err, ErrModelNotLoaded)
}
