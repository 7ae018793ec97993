package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thaitanloi365/go-face-privacy/app"
	"thaitanloi365/go-face-privacy/config"
	"thaitanloi365/go-face-privacy/detector"
	"thaitanloi365/go-face-privacy/effects"
	"thaitanloi365/go-face-privacy/media"
	"thaitanloi365/go-face-privacy/models"
	"thaitanloi365/go-face-privacy/privacy"
	"thaitanloi365/go-face-privacy/rekog"
)

type stubDetector struct{}

func (stubDetector) Name() string { return "stub" }

func (stubDetector) Detect(context.Context, image.Image) ([]detector.Detection, error) {
	return []detector.Detection{{Box: image.Rect(8, 8, 40, 40), Confidence: 0.9}}, nil
}

func (stubDetector) Close() error { return nil }

func stubRegistry() *detector.Registry {
	r := detector.NewRegistry()
	r.Register("stub", func(context.Context, detector.Config) (detector.Detector, error) {
		return stubDetector{}, nil
	})
	return r
}

// writeConfig writes a config that keeps models in a temp dir and never
// downloads.
func writeConfig(t *testing.T) (path, modelsDir string) {
	t.Helper()
	dir := t.TempDir()
	modelsDir = filepath.Join(dir, "models")
	path = filepath.Join(dir, "config.yaml")
	data := fmt.Sprintf("models:\n  dir: %s\n  auto_download: false\nlog:\n  level: error\n", modelsDir)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path, modelsDir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewCommand(app.WithRegistry(stubRegistry()))
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"generic", errors.New("boom"), ExitGeneralError},
		{"usage", fmt.Errorf("%w: bad flag", ErrUsage), ExitInvalidArgs},
		{"invalid config", config.ErrInvalid, ExitInvalidArgs},
		{"unknown effect", effects.ErrUnknownEffect, ExitInvalidArgs},
		{"unknown detector", detector.ErrUnknownDetector, ExitInvalidArgs},
		{"unsupported format", privacy.ErrUnsupportedFormat, ExitInvalidArgs},
		{"missing source", fmt.Errorf("open: %w", privacy.ErrSourceNotFound), ExitNotFound},
		{"no camera", media.ErrCameraUnavailable, ExitNotFound},
		{"missing config", config.ErrNotFound, ExitNotFound},
		{"model not loaded", detector.ErrModelNotLoaded, ExitModelNotLoaded},
		{"download disabled", models.ErrNoDownload, ExitModelNotLoaded},
		{"download failed", fmt.Errorf("%w: %w", detector.ErrModelNotLoaded, models.ErrDownload), ExitNetworkError},
		{"throttled", rekog.ErrThrottled, ExitNetworkError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestEffectsListsMenuOrder(t *testing.T) {
	cfg, _ := writeConfig(t)
	out, err := execute(t, "--config", cfg, "effects")
	require.NoError(t, err)

	for i, name := range effects.Available() {
		assert.Contains(t, out, fmt.Sprintf("%d  %s\n", i+1, name))
	}
}

func TestModelsListJSON(t *testing.T) {
	cfg, modelsDir := writeConfig(t)
	require.NoError(t, os.MkdirAll(modelsDir, 0o755))

	out, err := execute(t, "--config", cfg, "models", "list", "--json")
	require.NoError(t, err)

	var list []models.Status
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	require.Len(t, list, len(models.DefaultCatalog))
	for _, m := range list {
		assert.False(t, m.Present, m.Name)
	}
}

func TestModelsPathUnknown(t *testing.T) {
	cfg, _ := writeConfig(t)
	_, err := execute(t, "--config", cfg, "models", "path", "nope")
	require.Error(t, err)
	assert.Equal(t, ExitInvalidArgs, ExitCode(err))
}

func TestUnknownFlagIsUsageError(t *testing.T) {
	cfg, _ := writeConfig(t)
	_, err := execute(t, "--config", cfg, "image", "--bogus", "x.jpg")
	require.Error(t, err)
	assert.Equal(t, ExitInvalidArgs, ExitCode(err))
}

func TestMissingArgumentIsUsageError(t *testing.T) {
	cfg, _ := writeConfig(t)
	_, err := execute(t, "--config", cfg, "image")
	require.Error(t, err)
	assert.Equal(t, ExitInvalidArgs, ExitCode(err))
}

func TestMissingConfigFile(t *testing.T) {
	_, err := execute(t, "--config", filepath.Join(t.TempDir(), "absent.yaml"), "effects")
	require.Error(t, err)
	assert.Equal(t, ExitNotFound, ExitCode(err))
}

func TestBadEffect(t *testing.T) {
	cfg, _ := writeConfig(t)
	_, err := execute(t, "--config", cfg, "image", "-e", "sparkle", "-d", "stub", "in.png")
	require.Error(t, err)
	assert.Equal(t, ExitInvalidArgs, ExitCode(err))
}

func TestImageMissingInput(t *testing.T) {
	cfg, _ := writeConfig(t)
	_, err := execute(t, "--config", cfg, "image", "-d", "stub", filepath.Join(t.TempDir(), "absent.png"))
	require.Error(t, err)
	assert.Equal(t, ExitNotFound, ExitCode(err))
}

func TestImageAnonymizes(t *testing.T) {
	cfg, _ := writeConfig(t)
	dir := t.TempDir()
	in := filepath.Join(dir, "in.png")
	outPath := filepath.Join(dir, "out.png")
	require.NoError(t, imaging.Save(imaging.New(64, 48, color.White), in))

	out, err := execute(t, "--config", cfg, "image", "-d", "stub", "-e", "blackbox", "-o", outPath, in)
	require.NoError(t, err)
	assert.Contains(t, out, "1 faces hidden with blackbox")

	img, err := imaging.Open(outPath)
	require.NoError(t, err)
	r, g, b, _ := img.At(24, 24).RGBA()
	assert.Zero(t, r+g+b)
	r, _, _, _ = img.At(60, 44).RGBA()
	assert.NotZero(t, r)
}

func TestIntensityIsClamped(t *testing.T) {
	cfg := config.Default()
	o := overrides{intensity: 500, effect: "BLUR"}
	require.NoError(t, o.apply(cfg))
	assert.Equal(t, effects.MaxLevel, cfg.Effect.Intensity)
	assert.Equal(t, string(effects.GaussBlur), cfg.Effect.Name)
}

func TestDefaultOutput(t *testing.T) {
	assert.Equal(t, filepath.Join("output", "photo_protected.jpg"), defaultOutput("/tmp/photo.jpg", "_protected", ""))
	assert.Equal(t, filepath.Join("output", "clip.gif"), defaultOutput("clip.mp4", "", ".gif"))
}

func TestInfoPrintsConfig(t *testing.T) {
	cfg, modelsDir := writeConfig(t)
	out, err := execute(t, "--config", cfg, "info")
	require.NoError(t, err)
	assert.Contains(t, out, "models:    "+modelsDir)
	assert.Contains(t, out, "stub")
	assert.Contains(t, out, "auto_download: false")
}
