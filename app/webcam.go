package app

import (
	"context"
	"fmt"
	"image"
	"path/filepath"
	"slices"
	"time"

	"github.com/disintegration/imaging"

	"thaitanloi365/go-face-privacy/compose"
	"thaitanloi365/go-face-privacy/config"
	"thaitanloi365/go-face-privacy/controls"
	"thaitanloi365/go-face-privacy/detector"
	"thaitanloi365/go-face-privacy/effects"
	"thaitanloi365/go-face-privacy/privacy"
)

const (
	splitPanelWidth  = 640
	splitPanelHeight = 480
	screenshotLayout = "20060102_150405"
)

// WebcamOptions configures RunWebcam.
type WebcamOptions struct {
	// ConfigPath is watched and reloaded while the session runs when set.
	ConfigPath string
	// ShowInfo draws the FPS, face count and effect overlay.
	ShowInfo bool
	// ScreenshotDir receives the frames saved with the s key.
	ScreenshotDir string
}

// session is the state of one interactive webcam run.
type session struct {
	app     *App
	state   *controls.State
	anons   map[string]*privacy.Anonymizer
	reloads chan *config.Config
}

// RunWebcam runs the interactive anonymization loop on the configured
// camera until q or Esc is pressed or ctx is done.
func (a *App) RunWebcam(ctx context.Context, opts WebcamOptions) error {
	cam, err := a.openCamera(a.cfg.Camera.ID, a.cfg.Camera.Width, a.cfg.Camera.Height)
	if err != nil {
		return err
	}
	defer cam.Close()
	a.log.Info("Webcam opened", "camera", a.cfg.Camera.ID, "info", cam.Info().String())

	s := a.newSession()
	defer s.close()

	anon, err := s.anonymizer(ctx)
	if err != nil {
		return err
	}

	if opts.ConfigPath != "" {
		w, err := config.NewWatcher(ctx, opts.ConfigPath, s.onReload)
		if err != nil {
			a.log.Warn("Config hot reload disabled", "path", opts.ConfigPath, "error", err)
		} else {
			defer w.Close()
		}
	}

	win := a.newDisplay(WindowTitle)
	defer win.Close()
	for _, line := range controls.HelpLines() {
		a.log.Info("Control", "key", line)
	}

	fps := privacy.NewFPSCounter()
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		anon = s.applyReload(ctx, anon)

		frame, err := cam.Read()
		if err != nil {
			a.log.Error("Failed to grab frame", "error", err)
			break
		}
		var original *image.NRGBA
		if s.state.Split {
			original = imaging.Clone(frame)
		}

		began := a.now()
		faces, err := s.render(ctx, anon, frame)
		if err != nil {
			return err
		}
		took := a.now().Sub(began)

		info := compose.Info{
			FPS:      fps.Tick(),
			Faces:    faces,
			Effect:   s.state.Effect,
			Level:    s.state.Level,
			Detector: anon.Detector().Name(),
		}
		if s.state.Benchmark {
			info.Extra = append(info.Extra, fmt.Sprintf("Detect: %.1f ms", float64(took.Microseconds())/1000))
		}
		if opts.ShowInfo {
			compose.InfoOverlay(frame, info)
			compose.LevelBar(frame, s.state.Level)
		}
		if s.state.Help {
			compose.HelpOverlay(frame, controls.HelpLines())
		}

		view := frame
		if original != nil {
			view = compose.SideBySide(
				compose.Fit(original, splitPanelWidth, splitPanelHeight),
				compose.Fit(frame, splitPanelWidth, splitPanelHeight))
		}
		if err := win.Show(view); err != nil {
			return err
		}

		switch action := s.state.Handle(win.WaitKey(1)); action {
		case controls.Quit:
			a.log.Info("Webcam session ended")
			return nil
		case controls.Screenshot:
			path := filepath.Join(opts.ScreenshotDir, "screenshot_"+a.now().Format(screenshotLayout)+".jpg")
			if err := privacy.Save(path, frame); err != nil {
				a.log.Error("Cannot save screenshot", "error", err)
				continue
			}
			a.log.Info("Screenshot saved", "path", path)
		case controls.LevelChanged:
			anon.SetLevel(s.state.Level)
			a.log.Info("Intensity changed", "level", s.state.Level)
		case controls.EffectChanged:
			anon.SetEffect(s.state.Effect)
			a.log.Info("Effect changed", "effect", s.state.Effect)
		case controls.DetectorChanged:
			next, err := s.anonymizer(ctx)
			if err != nil {
				a.log.Error("Cannot switch detector", "detector", s.state.Detector(), "error", err)
				s.state.SelectDetector(anon.Detector().Name())
				continue
			}
			anon = next
			a.log.Info("Detector changed", "detector", s.state.Detector())
		case controls.None:
		default:
			a.log.Debug("Toggled", "action", action.String())
		}
	}
	return nil
}

func (a *App) newSession() *session {
	s := &session{
		app:     a,
		state:   controls.New(a.cfg.EffectName(), a.cfg.Effect.Intensity, a.selectableDetectors()),
		anons:   make(map[string]*privacy.Anonymizer),
		reloads: make(chan *config.Config, 1),
	}
	s.state.SelectDetector(a.cfg.DetectorName())
	return s
}

// render hides the faces in frame, or outlines them when anonymization is
// switched off, and returns how many there were.
func (s *session) render(ctx context.Context, anon *privacy.Anonymizer, frame *image.NRGBA) (int, error) {
	if s.state.Pixelate {
		res, err := anon.Process(ctx, frame)
		if err != nil {
			return 0, err
		}
		return len(res.Detections), nil
	}
	dets, err := anon.Detect(ctx, frame)
	if err != nil {
		return 0, err
	}
	compose.DrawDetections(frame, dets, compose.DetectorColor(anon.Detector().Name()), "")
	return len(dets), nil
}

// anonymizer returns the anonymizer of the selected detector, building it
// on first use.
func (s *session) anonymizer(ctx context.Context) (*privacy.Anonymizer, error) {
	name := s.state.Detector()
	if anon, ok := s.anons[name]; ok {
		anon.SetEffect(s.state.Effect)
		anon.SetLevel(s.state.Level)
		return anon, nil
	}
	d, err := s.app.NewDetector(ctx, name, 0)
	if err != nil {
		return nil, err
	}
	anon := privacy.New(d, &privacy.Config{Effect: s.state.Effect, Level: s.state.Level})
	s.anons[name] = anon
	return anon, nil
}

// onReload runs on the watcher goroutine. Only the latest config is kept
// and it never blocks.
func (s *session) onReload(cfg *config.Config, err error) {
	if err != nil {
		return
	}
	select {
	case <-s.reloads:
	default:
	}
	select {
	case s.reloads <- cfg:
	default:
	}
}

// applyReload moves the effect, intensity and detector of a pending
// reloaded config into the session and returns the anonymizer to use. When
// the new detector cannot be built, current is kept and stays selected.
func (s *session) applyReload(ctx context.Context, current *privacy.Anonymizer) *privacy.Anonymizer {
	var cfg *config.Config
	select {
	case cfg = <-s.reloads:
	default:
		return current
	}
	s.state.Effect = cfg.EffectName()
	s.state.Level = effects.ClampLevel(cfg.Effect.Intensity)
	if !s.state.SelectDetector(cfg.DetectorName()) {
		s.app.log.Warn("Reloaded detector is not selectable", "detector", cfg.DetectorName())
	}
	anon, err := s.anonymizer(ctx)
	if err != nil {
		s.app.log.Error("Cannot apply reloaded detector", "detector", s.state.Detector(), "error", err)
		s.state.SelectDetector(current.Detector().Name())
		current.SetEffect(s.state.Effect)
		current.SetLevel(s.state.Level)
		return current
	}
	s.app.log.Info("Applied reloaded config", "effect", s.state.Effect, "level", s.state.Level, "detector", anon.Detector().Name())
	return anon
}

func (s *session) close() {
	for _, anon := range s.anons {
		_ = anon.Detector().Close()
	}
}

// selectableDetectors is the configured detector followed by the compare
// detectors, without duplicates.
func (a *App) selectableDetectors() []string {
	names := []string{a.cfg.DetectorName()}
	for _, n := range a.cfg.Detector.Compare {
		if !slices.Contains(names, n) {
			names = append(names, n)
		}
	}
	return names
}

// compareDetector is one column of the live comparison.
type compareDetector struct {
	d     detector.Detector
	fps   *privacy.FPSCounter
	spent time.Duration
}

// RunCompare shows the compare detectors side by side on the live camera,
// each outlining the faces it finds with its own FPS, plus the original
// frame.
func (a *App) RunCompare(ctx context.Context) error {
	cam, err := a.openCamera(a.cfg.Camera.ID, a.cfg.Camera.Width, a.cfg.Camera.Height)
	if err != nil {
		return err
	}
	defer cam.Close()

	ds, err := a.NewDetectors(ctx, a.compareNames(), a.cfg.Demo.Confidence)
	if err != nil {
		return err
	}
	defer closeAll(ds)
	cols := make([]*compareDetector, len(ds))
	for i, d := range ds {
		cols[i] = &compareDetector{d: d, fps: privacy.NewFPSCounter()}
	}

	win := a.newDisplay(WindowTitle + " - Detector Comparison")
	defer win.Close()

	frames := 0
	for {
		if err := ctx.Err(); err != nil {
			break
		}
		frame, err := cam.Read()
		if err != nil {
			a.log.Error("Failed to grab frame", "error", err)
			break
		}
		frames++
		frame = compose.Fit(frame, splitPanelWidth, splitPanelHeight)

		views := make([]image.Image, 0, 4)
		for _, c := range cols {
			view := imaging.Clone(frame)
			began := a.now()
			dets, err := c.d.Detect(ctx, view)
			if err != nil {
				return fmt.Errorf("%s: %w", c.d.Name(), err)
			}
			c.spent += a.now().Sub(began)
			dets = detector.Clamp(dets, view.Bounds())
			color := compose.DetectorColor(c.d.Name())
			compose.DrawDetections(view, dets, color, "")
			compose.InfoOverlay(view, compose.Info{FPS: c.fps.Tick(), Faces: len(dets), Detector: c.d.Name()})
			views = append(views, view)
		}
		original := imaging.Clone(frame)
		compose.Label(original, "Original", compose.White)
		views = append(views, original)

		if err := win.Show(compose.Grid2x2(views[0], views[1], views[2], views[3])); err != nil {
			return err
		}
		if k := win.WaitKey(1); k != controls.KeyNone && (k&0xFF == 'q' || k&0xFF == controls.KeyEsc) {
			break
		}
	}

	for _, c := range cols {
		avg := time.Duration(0)
		if frames > 0 {
			avg = c.spent / time.Duration(frames)
		}
		a.log.Info("Detector summary", "detector", c.d.Name(), "frames", frames, "avg_ms", fmt.Sprintf("%.1f", float64(avg.Microseconds())/1000))
	}
	return nil
}
