// Package config loads the application settings from a YAML file, validated
// against an embedded JSON schema, with FACEPRIV_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"strings"

	"thaitanloi365/go-face-privacy/detector"
	"thaitanloi365/go-face-privacy/effects"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "FACEPRIV"

// ErrInvalid wraps semantic validation failures.
var ErrInvalid = errors.New("invalid config")

// Config holds the main configuration for the application.
type Config struct {
	Detector DetectorConfig `json:"detector" yaml:"detector" envconfig:"DETECTOR"`
	Effect   EffectConfig   `json:"effect"   yaml:"effect"   envconfig:"EFFECT"`
	Camera   CameraConfig   `json:"camera"   yaml:"camera"   envconfig:"CAMERA"`
	Video    VideoConfig    `json:"video"    yaml:"video"    envconfig:"VIDEO"`
	Demo     DemoConfig     `json:"demo"     yaml:"demo"     envconfig:"DEMO"`
	GIF      GIFConfig      `json:"gif"      yaml:"gif"      envconfig:"GIF"`
	Age      AgeConfig      `json:"age"      yaml:"age"      envconfig:"AGE"`
	Models   ModelsConfig   `json:"models"   yaml:"models"   envconfig:"MODELS"`
	Server   ServerConfig   `json:"server"   yaml:"server"   envconfig:"SERVER"`
	Log      LogConfig      `json:"log"      yaml:"log"      envconfig:"LOG"`
}

// DetectorConfig selects and tunes the face detector.
type DetectorConfig struct {
	Name       string  `json:"name"                 yaml:"name"                 envconfig:"NAME"`
	Confidence float64 `json:"confidence"           yaml:"confidence"           envconfig:"CONFIDENCE"`
	IoU        float64 `json:"iou"                  yaml:"iou"                  envconfig:"IOU"`
	InputSize  int     `json:"input_size"           yaml:"input_size"           envconfig:"INPUT_SIZE"`
	ModelPath  string  `json:"model_path,omitempty" yaml:"model_path,omitempty" envconfig:"MODEL_PATH"`
	Region     string  `json:"region,omitempty"     yaml:"region,omitempty"     envconfig:"REGION"`
	// Compare lists the detectors shown by the comparison views.
	Compare []string `json:"compare" yaml:"compare" envconfig:"COMPARE"`
}

// EffectConfig is the anonymization applied to faces.
type EffectConfig struct {
	Name      string `json:"name"      yaml:"name"      envconfig:"NAME"`
	Intensity int    `json:"intensity" yaml:"intensity" envconfig:"INTENSITY"`
}

// CameraConfig selects the webcam and its capture size.
type CameraConfig struct {
	ID     int `json:"id"     yaml:"id"     envconfig:"ID"`
	Width  int `json:"width"  yaml:"width"  envconfig:"WIDTH"`
	Height int `json:"height" yaml:"height" envconfig:"HEIGHT"`
}

// VideoConfig controls file processing.
type VideoConfig struct {
	Codec         string `json:"codec"          yaml:"codec"          envconfig:"CODEC"`
	ProgressEvery int    `json:"progress_every" yaml:"progress_every" envconfig:"PROGRESS_EVERY"`
}

// DemoConfig sizes the comparison layouts.
type DemoConfig struct {
	PanelWidth  int `json:"panel_width"  yaml:"panel_width"  envconfig:"PANEL_WIDTH"`
	PanelHeight int `json:"panel_height" yaml:"panel_height" envconfig:"PANEL_HEIGHT"`
	TitleHeight int `json:"title_height" yaml:"title_height" envconfig:"TITLE_HEIGHT"`
	// Confidence is the threshold used when detectors are compared.
	Confidence float64 `json:"confidence" yaml:"confidence" envconfig:"CONFIDENCE"`
}

// GIFConfig holds the video to GIF defaults.
type GIFConfig struct {
	FPS       int `json:"fps"        yaml:"fps"        envconfig:"FPS"`
	Width     int `json:"width"      yaml:"width"      envconfig:"WIDTH"`
	MaxFrames int `json:"max_frames" yaml:"max_frames" envconfig:"MAX_FRAMES"`
}

// AgeConfig selects the age classifier.
type AgeConfig struct {
	Backend   string `json:"backend"              yaml:"backend"              envconfig:"BACKEND"`
	ModelPath string `json:"model_path,omitempty" yaml:"model_path,omitempty" envconfig:"MODEL_PATH"`
}

// ModelsConfig holds configuration for the weights cache.
type ModelsConfig struct {
	Dir          string `json:"dir,omitempty" yaml:"dir,omitempty" envconfig:"DIR"`
	AutoDownload bool   `json:"auto_download" yaml:"auto_download" envconfig:"AUTO_DOWNLOAD"`
}

// ServerConfig configures the HTTP service.
type ServerConfig struct {
	Addr        string `json:"addr"          yaml:"addr"          envconfig:"ADDR"`
	MaxUploadMB int    `json:"max_upload_mb" yaml:"max_upload_mb" envconfig:"MAX_UPLOAD_MB"`
}

// LogConfig configures logging.
type LogConfig struct {
	Env   string `json:"env"            yaml:"env"            envconfig:"ENV"`
	Level string `json:"level"          yaml:"level"          envconfig:"LEVEL"`
	File  string `json:"file,omitempty" yaml:"file,omitempty" envconfig:"FILE"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Detector: DetectorConfig{
			Name:       "yolo",
			Confidence: 0.4,
			IoU:        0.45,
			InputSize:  640,
			Region:     "us-east-1",
			Compare:    []string{"yolo", "yunet", "haar"},
		},
		Effect: EffectConfig{Name: string(effects.Pixelation), Intensity: effects.DefaultLevel},
		Camera: CameraConfig{ID: 0, Width: 1280, Height: 720},
		Video:  VideoConfig{Codec: "XVID", ProgressEvery: 30},
		Demo:   DemoConfig{PanelWidth: 640, PanelHeight: 480, TitleHeight: 100, Confidence: 0.5},
		GIF:    GIFConfig{FPS: 10, Width: 800, MaxFrames: 100},
		Age:    AgeConfig{Backend: "vit"},
		Models: ModelsConfig{Dir: DefaultModelsPath(), AutoDownload: true},
		Server: ServerConfig{Addr: ":8080", MaxUploadMB: 10},
		Log:    LogConfig{Env: "development", Level: "info"},
	}
}

// Validate checks the values the schema cannot express.
func (c *Config) Validate() error {
	var errs []error
	if c.Detector.Confidence <= 0 || c.Detector.Confidence > 1 {
		errs = append(errs, fmt.Errorf("detector.confidence %v not in (0, 1]", c.Detector.Confidence))
	}
	if c.Detector.IoU <= 0 || c.Detector.IoU > 1 {
		errs = append(errs, fmt.Errorf("detector.iou %v not in (0, 1]", c.Detector.IoU))
	}
	if _, err := effects.Parse(c.Effect.Name); err != nil {
		errs = append(errs, err)
	}
	if c.Effect.Intensity < effects.MinLevel || c.Effect.Intensity > effects.MaxLevel {
		errs = append(errs, fmt.Errorf("effect.intensity %d not in [%d, %d]", c.Effect.Intensity, effects.MinLevel, effects.MaxLevel))
	}
	if len(c.Video.Codec) != 4 {
		errs = append(errs, fmt.Errorf("video.codec %q must be a four character code", c.Video.Codec))
	}
	if c.GIF.FPS <= 0 {
		errs = append(errs, errors.New("gif.fps must be positive"))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}

// EffectName returns the configured effect, falling back to pixelate.
func (c *Config) EffectName() effects.Name {
	name, err := effects.Parse(c.Effect.Name)
	if err != nil {
		return effects.Pixelation
	}
	return name
}

// DetectorSettings converts the settings for the detector registry. The
// model path is resolved against the models directory by the caller.
func (c *Config) DetectorSettings() detector.Config {
	return detector.Config{
		ModelPath:    c.Detector.ModelPath,
		Threshold:    c.Detector.Confidence,
		IouThreshold: c.Detector.IoU,
		InputSize:    c.Detector.InputSize,
		Region:       c.Detector.Region,
	}.WithDefaults()
}

// DetectorName is the lower-cased detector name.
func (c *Config) DetectorName() string {
	return strings.ToLower(strings.TrimSpace(c.Detector.Name))
}
