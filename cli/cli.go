// Package cli is the face-privacy command tree.
package cli

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"thaitanloi365/go-face-privacy/app"
	"thaitanloi365/go-face-privacy/config"
	"thaitanloi365/go-face-privacy/detector"
	"thaitanloi365/go-face-privacy/effects"
	"thaitanloi365/go-face-privacy/logger"
	"thaitanloi365/go-face-privacy/media"
	"thaitanloi365/go-face-privacy/models"
	"thaitanloi365/go-face-privacy/privacy"
	"thaitanloi365/go-face-privacy/rekog"
)

// CLI exit codes for standardized error reporting.
const (
	ExitSuccess        = 0
	ExitGeneralError   = 1
	ExitInvalidArgs    = 2
	ExitNotFound       = 3
	ExitModelNotLoaded = 4
	ExitNetworkError   = 5
)

// ErrUsage marks bad flags or arguments.
var ErrUsage = errors.New("invalid usage")

// env is shared by every subcommand. It is filled in by the root
// PersistentPreRunE.
type env struct {
	configPath string
	logLevel   string
	appOpts    []app.Option

	cfg *config.Config
	log *slog.Logger
	app *app.App
}

// NewCommand creates the root command. appOpts are passed to every App the
// commands build.
//
// Commands provided:
//   - image, video, demo, grid, gif: file front ends
//   - webcam, compare, age: live front ends
//   - benchmark: detector timings
//   - serve: HTTP service
//   - models list|pull|path, effects, info
//
// Global flags: --config, --log-level
func NewCommand(appOpts ...app.Option) *cobra.Command {
	e := &env{appOpts: appOpts}

	cmd := &cobra.Command{
		Use:   "face-privacy",
		Short: "Detect and anonymize faces in images, video and live camera feeds",
		Long: "Face privacy protection: detect faces with a choice of detectors and hide them " +
			"with pixelation, blur, a black box, an emoji, a witness bar or a tint.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" {
				return nil
			}
			return e.init(cmd)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	})

	cmd.PersistentFlags().StringVarP(&e.configPath, "config", "c", "", "Config file (default "+config.DefaultPath()+")")
	cmd.PersistentFlags().StringVar(&e.logLevel, "log-level", "", "Log level: debug, info, warn or error")

	cmd.AddCommand(imageCmd(e))
	cmd.AddCommand(videoCmd(e))
	cmd.AddCommand(demoCmd(e))
	cmd.AddCommand(gridCmd(e))
	cmd.AddCommand(webcamCmd(e))
	cmd.AddCommand(compareCmd(e))
	cmd.AddCommand(benchmarkCmd(e))
	cmd.AddCommand(ageCmd(e))
	cmd.AddCommand(gifCmd(e))
	cmd.AddCommand(serveCmd(e))
	cmd.AddCommand(modelsCmd(e))
	cmd.AddCommand(effectsCmd())
	cmd.AddCommand(infoCmd(e))

	return cmd
}

func (e *env) init(cmd *cobra.Command) error {
	cfg, err := config.Load(e.configPath)
	if err != nil {
		return err
	}
	if e.logLevel != "" {
		cfg.Log.Level = e.logLevel
	}

	e.log = logger.New(cfg.Log.Env,
		logger.WithLevel(logger.ParseLevel(cfg.Log.Level)),
		logger.WithLogFile(cfg.Log.File),
		logger.WithOutput(cmd.ErrOrStderr()),
	)
	slog.SetDefault(e.log)

	e.cfg = cfg
	e.app = app.New(cfg, e.log, e.appOpts...)
	return nil
}

// watchPath is the config file to hot reload, or "" when there is none.
func (e *env) watchPath() string {
	if e.configPath != "" {
		return e.configPath
	}
	if fileExists(config.DefaultPath()) {
		return config.DefaultPath()
	}
	return ""
}

// usageArgs wraps a positional argument validator so its errors map to
// ExitInvalidArgs.
func usageArgs(v cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := v(cmd, args); err != nil {
			return fmt.Errorf("%w: %w", ErrUsage, err)
		}
		return nil
	}
}

// ExitCode maps error types to exit codes.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	switch {
	case errors.Is(err, models.ErrDownload),
		errors.Is(err, models.ErrChecksumMismatch),
		errors.Is(err, rekog.ErrThrottled),
		errors.Is(err, rekog.ErrInvalidCredentials):
		return ExitNetworkError
	case errors.Is(err, ErrUsage),
		errors.Is(err, config.ErrInvalid),
		errors.Is(err, effects.ErrUnknownEffect),
		errors.Is(err, detector.ErrUnknownDetector),
		errors.Is(err, models.ErrUnknownModel),
		errors.Is(err, privacy.ErrUnsupportedFormat):
		return ExitInvalidArgs
	case errors.Is(err, privacy.ErrSourceNotFound),
		errors.Is(err, media.ErrNotFound),
		errors.Is(err, media.ErrCameraUnavailable),
		errors.Is(err, config.ErrNotFound):
		return ExitNotFound
	case errors.Is(err, detector.ErrModelNotLoaded),
		errors.Is(err, models.ErrNoDownload):
		return ExitModelNotLoaded
	default:
		return ExitGeneralError
	}
}
