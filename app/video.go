package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"strings"

	"github.com/disintegration/imaging"

	"thaitanloi365/go-face-privacy/compose"
	"thaitanloi365/go-face-privacy/detector"
	"thaitanloi365/go-face-privacy/privacy"
)

const (
	gridPanelWidth  = 960
	gridPanelHeight = 540
	gridTitleHeight = 80
)

// errEnough stops eachFrame early without an error.
var errEnough = errors.New("enough frames")

// VideoOptions names the input and output of the file front ends.
type VideoOptions struct {
	Input  string
	Output string
}

// eachFrame calls fn with every frame of src until EOF, ctx is done or fn
// fails.
func eachFrame(ctx context.Context, src Source, fn func(n int, frame *image.NRGBA) error) error {
	for n := 1; ; n++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		frame, err := src.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read frame %d: %w", n, err)
		}
		if err := fn(n, frame); err != nil {
			return err
		}
	}
}

// RunVideo anonymizes every frame of a video file.
func (a *App) RunVideo(ctx context.Context, opts VideoOptions) (stats *privacy.Stats, err error) {
	src, err := a.openInput(opts.Input)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	anon, err := a.NewAnonymizer(ctx)
	if err != nil {
		return nil, err
	}
	defer anon.Detector().Close()

	info := src.Info()
	out, err := a.newWriter(opts.Output, a.cfg.Video.Codec, info.FPS, info.Width, info.Height)
	if err != nil {
		return nil, err
	}
	defer closeWith(&err, out)
	a.log.Info("Processing video", "output", opts.Output, "codec", a.cfg.Video.Codec)

	stats = privacy.NewStats()
	start := a.now()
	err = eachFrame(ctx, src, func(n int, frame *image.NRGBA) error {
		res, err := anon.Process(ctx, frame)
		if err != nil {
			return err
		}
		if err := out.Write(frame); err != nil {
			return err
		}
		stats.Add(len(res.Detections))
		a.logProgress(n, info.Frames, start)
		return nil
	})
	if err != nil {
		return stats, err
	}
	a.log.Info("Video processing complete", "output", opts.Output, "stats", stats)
	return stats, nil
}

// RunDemo writes a side by side video: the original on the left, the
// anonymized frame on the right, under a title bar.
func (a *App) RunDemo(ctx context.Context, opts VideoOptions) (stats *privacy.Stats, err error) {
	src, err := a.openInput(opts.Input)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	anon, err := a.NewAnonymizer(ctx)
	if err != nil {
		return nil, err
	}
	defer anon.Detector().Close()

	demo := a.cfg.Demo
	width, height := 2*demo.PanelWidth, demo.PanelHeight+demo.TitleHeight
	out, err := a.newWriter(opts.Output, a.cfg.Video.Codec, src.Info().FPS, width, height)
	if err != nil {
		return nil, err
	}
	defer closeWith(&err, out)
	a.log.Info("Creating side by side demo", "output", opts.Output, "resolution", fmt.Sprintf("%dx%d", width, height))

	name := anon.Detector().Name()
	title := "Face Privacy Protection - " + strings.ToUpper(name)
	stats = privacy.NewStats()
	start := a.now()
	total := src.Info().Frames
	err = eachFrame(ctx, src, func(n int, frame *image.NRGBA) error {
		original := compose.Fit(frame, demo.PanelWidth, demo.PanelHeight)
		protected := imaging.Clone(original)
		res, err := anon.Process(ctx, protected)
		if err != nil {
			return err
		}
		compose.Label(original, "ORIGINAL", compose.White)
		compose.Label(protected, "PROTECTED", compose.Yellow)
		compose.Caption(protected, fmt.Sprintf("%s | Faces: %d", name, len(res.Detections)), compose.Green)

		combined := compose.WithTitleBar(compose.SideBySide(original, protected), title,
			"Real-Time Face Anonymization", demo.TitleHeight)
		if err := out.Write(combined); err != nil {
			return err
		}
		stats.Add(len(res.Detections))
		a.logProgress(n, total, start)
		return nil
	})
	if err != nil {
		return stats, err
	}
	a.log.Info("Demo video created", "output", opts.Output, "stats", stats)
	return stats, nil
}

// gridPanel is one detector of the comparison grid. d is nil when the
// detector could not be loaded.
type gridPanel struct {
	name string
	d    detector.Detector
}

// RunGrid writes a 2x2 comparison video: the original plus the compare
// detectors, each hiding faces with the configured effect.
func (a *App) RunGrid(ctx context.Context, opts VideoOptions) (stats *privacy.Stats, err error) {
	src, err := a.openInput(opts.Input)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	panels := a.gridPanels(ctx)
	defer func() {
		for _, p := range panels {
			if p.d != nil {
				_ = p.d.Close()
			}
		}
	}()

	width, height := 2*gridPanelWidth, 2*gridPanelHeight+gridTitleHeight
	out, err := a.newWriter(opts.Output, a.cfg.Video.Codec, src.Info().FPS, width, height)
	if err != nil {
		return nil, err
	}
	defer closeWith(&err, out)

	effect, level := a.cfg.EffectName(), a.cfg.Effect.Intensity
	stats = privacy.NewStats()
	start := a.now()
	total := src.Info().Frames
	err = eachFrame(ctx, src, func(n int, frame *image.NRGBA) error {
		original := compose.Fit(frame, gridPanelWidth, gridPanelHeight)
		views := []image.Image{original}
		faces := 0
		for _, p := range panels {
			view := imaging.Clone(original)
			if p.d == nil {
				compose.Label(view, p.name+" (unavailable)", compose.Gray)
				views = append(views, view)
				continue
			}
			dets, err := p.d.Detect(ctx, view)
			if err != nil {
				return fmt.Errorf("%s: %w", p.name, err)
			}
			dets = detector.Clamp(dets, view.Bounds())
			privacy.Hide(view, dets, effect, level)
			compose.Label(view, fmt.Sprintf("%s: %d faces", strings.ToUpper(p.name), len(dets)), compose.DetectorColor(p.name))
			views = append(views, view)
			faces = max(faces, len(dets))
		}
		compose.Label(original, "ORIGINAL", compose.White)

		grid := compose.Grid2x2(views[0], views[1], views[2], views[3])
		if err := out.Write(compose.WithTitleBar(grid, "Face Privacy Protection - Method Comparison", "", gridTitleHeight)); err != nil {
			return err
		}
		stats.Add(faces)
		a.logProgress(n, total, start)
		return nil
	})
	if err != nil {
		return stats, err
	}
	a.log.Info("Comparison video created", "output", opts.Output, "stats", stats)
	return stats, nil
}

// gridPanels loads the first three compare detectors. A detector that fails
// to load keeps its panel and shows the original frame.
func (a *App) gridPanels(ctx context.Context) []gridPanel {
	names := a.compareNames()
	panels := make([]gridPanel, 0, 3)
	for _, name := range names {
		d, err := a.NewDetector(ctx, name, a.cfg.Demo.Confidence)
		if err != nil {
			a.log.Warn("Detector unavailable", "detector", name, "error", err)
		}
		panels = append(panels, gridPanel{name: name, d: d})
	}
	return panels
}

// compareNames returns exactly three detector names for the comparison
// views, padding with the configured detector.
func (a *App) compareNames() []string {
	names := append([]string(nil), a.cfg.Detector.Compare...)
	for len(names) < 3 {
		names = append(names, a.cfg.DetectorName())
	}
	return names[:3]
}
