package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"thaitanloi365/go-face-privacy/app"
	"thaitanloi365/go-face-privacy/config"
	"thaitanloi365/go-face-privacy/effects"
)

const outputDir = "output"

// overrides are the flags that adjust the loaded config for one run.
type overrides struct {
	effect     string
	intensity  int
	detector   string
	confidence float64
}

func (o *overrides) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.effect, "effect", "e", "", "Effect: "+effectNames())
	cmd.Flags().IntVarP(&o.intensity, "intensity", "i", 0,
		fmt.Sprintf("Effect intensity, clamped to %d-%d", effects.MinLevel, effects.MaxLevel))
	cmd.Flags().StringVarP(&o.detector, "detector", "d", "", "Face detector: yolo, yunet, ssd, haar, pigo or rekognition")
	cmd.Flags().Float64Var(&o.confidence, "confidence", 0, "Detection confidence threshold")
}

// apply writes the flags that were set into cfg and validates the result.
func (o *overrides) apply(cfg *config.Config) error {
	if o.effect != "" {
		name, err := effects.Parse(o.effect)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrUsage, err)
		}
		cfg.Effect.Name = string(name)
	}
	if o.intensity != 0 {
		cfg.Effect.Intensity = effects.ClampLevel(o.intensity)
	}
	if o.detector != "" {
		cfg.Detector.Name = strings.ToLower(o.detector)
		cfg.Detector.ModelPath = ""
	}
	if o.confidence != 0 {
		cfg.Detector.Confidence = o.confidence
	}
	return cfg.Validate()
}

func effectNames() string {
	names := make([]string, 0, len(effects.Available()))
	for _, n := range effects.Available() {
		names = append(names, string(n))
	}
	return strings.Join(names, ", ")
}

// defaultOutput is output/<input name><suffix><ext>. An empty ext keeps the
// input extension.
func defaultOutput(input, suffix, ext string) string {
	base := filepath.Base(input)
	if ext == "" {
		ext = filepath.Ext(base)
	}
	return filepath.Join(outputDir, strings.TrimSuffix(base, filepath.Ext(base))+suffix+ext)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func imageCmd(e *env) *cobra.Command {
	var (
		o       overrides
		output  string
		display bool
	)

	cmd := &cobra.Command{
		Use:   "image <input>",
		Short: "Anonymize faces in an image",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.apply(e.cfg); err != nil {
				return err
			}
			if output == "" {
				output = defaultOutput(args[0], "_protected", "")
			}
			res, err := e.app.RunImage(cmd.Context(), app.ImageOptions{Input: args[0], Output: output, Display: display})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d faces hidden with %s (%d)\n", output, len(res.Detections), res.Effect, res.Level)
			return nil
		},
	}

	o.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default output/<input>_protected.<ext>)")
	cmd.Flags().BoolVar(&display, "display", false, "Show the result in a window")
	return cmd
}

// videoFileCmd builds the commands that read one video and write another.
func videoFileCmd(e *env, use, short, defaultName string, run func(cmd *cobra.Command, a *app.App, opts app.VideoOptions) (string, error)) *cobra.Command {
	var (
		o      overrides
		output string
	)

	cmd := &cobra.Command{
		Use:   use + " <input>",
		Short: short,
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.apply(e.cfg); err != nil {
				return err
			}
			if output == "" {
				output = filepath.Join(outputDir, defaultName)
			}
			summary, err := run(cmd, e.app, app.VideoOptions{Input: args[0], Output: output})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), summary)
			return nil
		},
	}

	o.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output video (default output/"+defaultName+")")
	return cmd
}

func videoCmd(e *env) *cobra.Command {
	return videoFileCmd(e, "video", "Anonymize faces in every frame of a video", "result.avi",
		func(cmd *cobra.Command, a *app.App, opts app.VideoOptions) (string, error) {
			stats, err := a.RunVideo(cmd.Context(), opts)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%s: %d frames, %.1f FPS", opts.Output, stats.Frames, stats.FPS()), nil
		})
}

func demoCmd(e *env) *cobra.Command {
	return videoFileCmd(e, "demo", "Create a side by side original vs protected video", "demo.avi",
		func(cmd *cobra.Command, a *app.App, opts app.VideoOptions) (string, error) {
			stats, err := a.RunDemo(cmd.Context(), opts)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%s: %d frames, %d faces (%.2f per frame)", opts.Output, stats.Frames, stats.Faces, stats.AvgFaces()), nil
		})
}

func gridCmd(e *env) *cobra.Command {
	return videoFileCmd(e, "grid", "Create a 2x2 video comparing three detectors", "comparison.avi",
		func(cmd *cobra.Command, a *app.App, opts app.VideoOptions) (string, error) {
			stats, err := a.RunGrid(cmd.Context(), opts)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%s: %d frames", opts.Output, stats.Frames), nil
		})
}

func webcamCmd(e *env) *cobra.Command {
	var (
		o           overrides
		camera      int
		noInfo      bool
		noReload    bool
		screenshots string
	)

	cmd := &cobra.Command{
		Use:   "webcam",
		Short: "Anonymize the live camera feed",
		Long: "Anonymize the live camera feed. Keys: q quit, s screenshot, space split view, " +
			"+/- intensity, 1-6 effect, d detector, p anonymization on/off, b benchmark, h help. " +
			"The config file is reloaded when it changes.",
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.apply(e.cfg); err != nil {
				return err
			}
			if cmd.Flags().Changed("camera") {
				e.cfg.Camera.ID = camera
			}
			opts := app.WebcamOptions{ShowInfo: !noInfo, ScreenshotDir: screenshots}
			if !noReload {
				opts.ConfigPath = e.watchPath()
			}
			return e.app.RunWebcam(cmd.Context(), opts)
		},
	}

	o.register(cmd)
	cmd.Flags().IntVar(&camera, "camera", 0, "Camera index")
	cmd.Flags().BoolVar(&noInfo, "no-info", false, "Hide the FPS and effect overlay")
	cmd.Flags().BoolVar(&noReload, "no-reload", false, "Do not watch the config file")
	cmd.Flags().StringVar(&screenshots, "screenshots", outputDir, "Screenshot directory")
	return cmd
}

func compareCmd(e *env) *cobra.Command {
	var detectors []string

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare three detectors side by side on the live camera",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(detectors) > 0 {
				e.cfg.Detector.Compare = detectors
			}
			return e.app.RunCompare(cmd.Context())
		},
	}

	cmd.Flags().StringSliceVar(&detectors, "detectors", nil, "Detectors to compare (default from config)")
	return cmd
}

func benchmarkCmd(e *env) *cobra.Command {
	var (
		frames     int
		detectors  []string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "benchmark [input]",
		Short: "Time detectors on an image, a video or the camera",
		Args:  usageArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := app.BenchmarkOptions{Frames: frames, Detectors: detectors}
			if len(args) == 1 {
				opts.Input = args[0]
			}
			results, err := e.app.RunBenchmark(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(results)
			}
			for _, r := range results {
				fmt.Fprintln(cmd.OutOrStdout(), r.String())
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&frames, "frames", "n", 100, "Frames per detector")
	cmd.Flags().StringSliceVar(&detectors, "detectors", nil, "Detectors to time (default: configured and compare detectors)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	return cmd
}

func ageCmd(e *env) *cobra.Command {
	var (
		o          overrides
		backend    string
		output     string
		display    bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "age [input]",
		Short: "Estimate the age of faces in an image, or live on the camera",
		Args:  usageArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.apply(e.cfg); err != nil {
				return err
			}
			if backend != "" {
				e.cfg.Age.Backend = backend
			}
			opts := app.AgeOptions{Output: output, Display: display}
			if len(args) == 1 {
				opts.Input = args[0]
			}
			results, err := e.app.RunAge(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if opts.Input == "" {
				return nil
			}
			if jsonOutput {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(results)
			}
			for i, r := range results {
				fmt.Fprintf(cmd.OutOrStdout(), "face %d at %v: %s\n", i+1, r.Box, r.Age)
			}
			return nil
		},
	}

	o.register(cmd)
	cmd.Flags().StringVar(&backend, "backend", "", "Age model: vit, caffe or rekognition")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Save the annotated image")
	cmd.Flags().BoolVar(&display, "display", false, "Show the annotated image in a window")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	return cmd
}

func gifCmd(e *env) *cobra.Command {
	var (
		o         overrides
		output    string
		fps       int
		width     int
		maxFrames int
		anonymize bool
	)

	cmd := &cobra.Command{
		Use:   "gif <input>",
		Short: "Convert a video to an animated GIF",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.apply(e.cfg); err != nil {
				return err
			}
			if output == "" {
				output = defaultOutput(args[0], "", ".gif")
			}
			res, err := e.app.ConvertGIF(cmd.Context(), app.GIFOptions{
				Input:     args[0],
				Output:    output,
				FPS:       fps,
				Width:     width,
				MaxFrames: maxFrames,
				Anonymize: anonymize,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d frames, %.2f MB\n", output, res.Frames, float64(res.Size)/(1<<20))
			return nil
		},
	}

	o.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output GIF (default output/<input>.gif)")
	cmd.Flags().IntVar(&fps, "fps", 0, "GIF frame rate (default from config)")
	cmd.Flags().IntVar(&width, "width", 0, "GIF width in pixels (default from config)")
	cmd.Flags().IntVar(&maxFrames, "max-frames", 0, "Maximum number of frames (default from config)")
	cmd.Flags().BoolVar(&anonymize, "anonymize", false, "Hide faces before encoding")
	return cmd
}
