// Package logger builds the application's slog logger.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures New.
type Options struct {
	Level     slog.Level
	LogToFile bool
	File      string
	Output    io.Writer
	NoColor   bool
}

// Option mutates Options.
type Option func(*Options)

// WithLevel sets the minimum level.
func WithLevel(level slog.Level) Option {
	return func(o *Options) { o.Level = level }
}

// WithLogToFile also writes JSON records to the rotating log file.
func WithLogToFile(enabled bool) Option {
	return func(o *Options) { o.LogToFile = enabled }
}

// WithLogFile sets the rotating log file path and enables file output.
func WithLogFile(path string) Option {
	return func(o *Options) {
		o.File = path
		o.LogToFile = path != ""
	}
}

// WithOutput replaces stderr as the console destination.
func WithOutput(w io.Writer) Option {
	return func(o *Options) { o.Output = w }
}

// WithNoColor disables ANSI colours in development output.
func WithNoColor() Option {
	return func(o *Options) { o.NoColor = true }
}

// New returns a logger for env. Production logs JSON; anything else logs
// coloured text through tint.
func New(env string, opts ...Option) *slog.Logger {
	o := Options{Level: slog.LevelInfo, Output: os.Stderr, File: "face-privacy.log"}
	for _, opt := range opts {
		opt(&o)
	}

	var handler slog.Handler
	if env == "production" {
		handler = slog.NewJSONHandler(o.Output, &slog.HandlerOptions{Level: o.Level})
	} else {
		handler = tint.NewHandler(o.Output, &tint.Options{
			Level:      o.Level,
			TimeFormat: time.TimeOnly,
			NoColor:    o.NoColor,
		})
	}

	if o.LogToFile {
		file := &lumberjack.Logger{
			Filename:   o.File,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
		}
		handler = fanout{handler, slog.NewJSONHandler(file, &slog.HandlerOptions{Level: o.Level})}
	}
	return slog.New(handler)
}

// ParseLevel maps a config string to a level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
