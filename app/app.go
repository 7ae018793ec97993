// Package app implements the front ends: image and video files, the live
// webcam session, the comparison views, the benchmark, age estimation and
// GIF export. Every runner owns its capture and window handles and releases
// them before it returns.
package app

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"strings"
	"time"

	"thaitanloi365/go-face-privacy/age"
	"thaitanloi365/go-face-privacy/config"
	"thaitanloi365/go-face-privacy/cvmodel"
	"thaitanloi365/go-face-privacy/detector"
	"thaitanloi365/go-face-privacy/media"
	"thaitanloi365/go-face-privacy/models"
	"thaitanloi365/go-face-privacy/privacy"
)

// WindowTitle is the title of every on-screen window.
const WindowTitle = "Face Privacy Protection"

// Source yields frames until io.EOF. *media.Capture implements it.
type Source interface {
	Read() (*image.NRGBA, error)
	Info() media.Info
	Close() error
}

// Sink receives encoded frames. *media.Writer implements it.
type Sink interface {
	Write(img image.Image) error
	Close() error
}

// Display shows frames and reports key presses. *media.Window implements
// it.
type Display interface {
	Show(img image.Image) error
	WaitKey(ms int) int
	Close() error
}

// App builds detectors from the configuration and runs the front ends.
type App struct {
	cfg      *config.Config
	log      *slog.Logger
	registry *detector.Registry
	store    *models.Store

	openCamera func(id, width, height int) (Source, error)
	openFile   func(path string) (Source, error)
	newWriter  func(path, codec string, fps float64, width, height int) (Sink, error)
	newDisplay func(title string) Display
	readImage  func(path string) (*image.NRGBA, error)
	now        func() time.Time
}

// Option configures an App.
type Option func(*App)

// WithRegistry replaces the detector registry.
func WithRegistry(r *detector.Registry) Option {
	return func(a *App) { a.registry = r }
}

// WithStore replaces the model store.
func WithStore(s *models.Store) Option {
	return func(a *App) { a.store = s }
}

// WithCamera replaces the webcam opener.
func WithCamera(open func(id, width, height int) (Source, error)) Option {
	return func(a *App) { a.openCamera = open }
}

// WithFileSource replaces the video file opener.
func WithFileSource(open func(path string) (Source, error)) Option {
	return func(a *App) { a.openFile = open }
}

// WithWriter replaces the video encoder.
func WithWriter(create func(path, codec string, fps float64, width, height int) (Sink, error)) Option {
	return func(a *App) { a.newWriter = create }
}

// WithDisplay replaces the on-screen window.
func WithDisplay(create func(title string) Display) Option {
	return func(a *App) { a.newDisplay = create }
}

// New returns an App for cfg. A nil cfg means config.Default and a nil
// logger means slog.Default.
func New(cfg *config.Config, log *slog.Logger, opts ...Option) *App {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = slog.Default()
	}
	a := &App{
		cfg: cfg,
		log: log,
		openCamera: func(id, width, height int) (Source, error) {
			return media.OpenCamera(id, width, height)
		},
		openFile: func(path string) (Source, error) {
			return media.OpenFile(path)
		},
		newWriter: func(path, codec string, fps float64, width, height int) (Sink, error) {
			return media.NewWriter(path, codec, fps, width, height)
		},
		newDisplay: func(title string) Display {
			return media.NewWindow(title)
		},
		readImage: media.ReadImage,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.registry == nil {
		a.registry = detector.NewRegistry()
		cvmodel.Register(a.registry)
	}
	if a.store == nil {
		a.store = models.NewStore(cfg.Models.Dir)
	}
	return a
}

// Config returns the settings the app was built with.
func (a *App) Config() *config.Config { return a.cfg }

// Registry returns the detector registry.
func (a *App) Registry() *detector.Registry { return a.registry }

// Store returns the model store.
func (a *App) Store() *models.Store { return a.store }

// NewDetector builds the named detector. Its weights come from the
// configured model path when name is the configured detector, otherwise
// from the model store. threshold overrides the configured confidence when
// it is positive.
func (a *App) NewDetector(ctx context.Context, name string, threshold float64) (detector.Detector, error) {
	name = strings.ToLower(name)
	cfg := a.cfg.DetectorSettings()
	if threshold > 0 {
		cfg.Threshold = threshold
	}
	if name != a.cfg.DetectorName() {
		cfg.ModelPath = ""
	}
	if err := a.resolveDetectorModel(ctx, name, &cfg); err != nil {
		return nil, err
	}

	d, err := a.registry.New(ctx, name, cfg)
	if err != nil {
		return nil, err
	}
	a.log.Info("Detector ready", "detector", d.Name(), "threshold", cfg.Threshold, "model", cfg.ModelPath)
	return d, nil
}

// NewDetectors builds every named detector. Detectors built before a
// failure are closed.
func (a *App) NewDetectors(ctx context.Context, names []string, threshold float64) ([]detector.Detector, error) {
	out := make([]detector.Detector, 0, len(names))
	for _, name := range names {
		d, err := a.NewDetector(ctx, name, threshold)
		if err != nil {
			closeAll(out)
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func (a *App) resolveDetectorModel(ctx context.Context, name string, cfg *detector.Config) error {
	m, ok := a.store.Catalog()[name]
	if !ok || m.Kind != models.KindDetector || cfg.ModelPath != "" {
		return nil
	}
	paths, err := a.modelFiles(ctx, name)
	if err != nil {
		return err
	}
	cfg.ModelPath = paths[0]
	if len(paths) < 2 {
		return nil
	}
	switch name {
	case "ssd":
		cfg.ConfigPath = paths[1]
	case "pigo":
		// pupil localization is optional
		if _, err := os.Stat(paths[1]); err == nil {
			cfg.Puploc = paths[1]
		}
	}
	return nil
}

// modelFiles returns the local files of model, downloading them first when
// auto download is on.
func (a *App) modelFiles(ctx context.Context, model string) ([]string, error) {
	if a.cfg.Models.AutoDownload {
		if _, err := a.store.Ensure(ctx, model); err != nil {
			return nil, fmt.Errorf("%w: %w", detector.ErrModelNotLoaded, err)
		}
	}
	return a.store.Paths(model)
}

// NewAnonymizer builds the configured detector wrapped with the configured
// effect.
func (a *App) NewAnonymizer(ctx context.Context) (*privacy.Anonymizer, error) {
	d, err := a.NewDetector(ctx, a.cfg.DetectorName(), 0)
	if err != nil {
		return nil, err
	}
	return privacy.New(d, &privacy.Config{
		Effect: a.cfg.EffectName(),
		Level:  a.cfg.Effect.Intensity,
	}), nil
}

// NewEstimator builds the configured age estimator.
func (a *App) NewEstimator(ctx context.Context) (age.Estimator, error) {
	switch backend := strings.ToLower(a.cfg.Age.Backend); backend {
	case "rekognition":
		return age.NewRekognition(ctx, a.cfg.Detector.Region)
	case "caffe":
		paths, err := a.ageFiles(ctx, "age-caffe")
		if err != nil {
			return nil, err
		}
		if len(paths) < 2 {
			return nil, fmt.Errorf("%w: age-caffe needs a prototxt", detector.ErrModelNotLoaded)
		}
		return cvmodel.NewCaffeAge(paths[0], paths[1])
	case "vit", "":
		paths, err := a.ageFiles(ctx, "age-vit")
		if err != nil {
			return nil, err
		}
		return cvmodel.NewViTAge(paths[0])
	default:
		return nil, fmt.Errorf("unknown age backend %q", backend)
	}
}

func (a *App) ageFiles(ctx context.Context, model string) ([]string, error) {
	if p := a.cfg.Age.ModelPath; p != "" {
		paths, err := a.store.Paths(model)
		if err != nil {
			return nil, err
		}
		paths[0] = p
		return paths, nil
	}
	return a.modelFiles(ctx, model)
}

// openInput opens a video file, mapping a missing file to
// privacy.ErrSourceNotFound.
func (a *App) openInput(path string) (Source, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s", privacy.ErrSourceNotFound, path)
	}
	src, err := a.openFile(path)
	if err != nil {
		return nil, err
	}
	info := src.Info()
	a.log.Info("Input video", "path", path, "resolution", fmt.Sprintf("%dx%d", info.Width, info.Height),
		"fps", fmt.Sprintf("%.2f", info.FPS), "frames", info.Frames)
	return src, nil
}

func (a *App) logProgress(frame, total int, start time.Time) {
	every := a.cfg.Video.ProgressEvery
	if every <= 0 || frame%every != 0 {
		return
	}
	p := privacy.ProgressOf(frame, total, a.now().Sub(start))
	a.log.Info(p.String(), "frame", p.Frame, "total", p.Total)
}

func closeAll(ds []detector.Detector) {
	for _, d := range ds {
		_ = d.Close()
	}
}

// closeWith closes c and keeps the first error.
func closeWith(err *error, c interface{ Close() error }) {
	if cerr := c.Close(); cerr != nil && *err == nil {
		*err = cerr
	}
}
