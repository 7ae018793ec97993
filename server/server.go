// Package server exposes face anonymization over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"thaitanloi365/go-face-privacy/age"
	"thaitanloi365/go-face-privacy/detector"
	"thaitanloi365/go-face-privacy/effects"
)

const (
	defaultMaxUpload = 10 << 20
	shutdownTimeout  = 10 * time.Second
)

// Server holds the models shared by the handlers. Detectors and estimators
// are not safe for concurrent use, so inference is serialised.
type Server struct {
	detector  detector.Detector
	estimator age.Estimator
	effect    effects.Name
	level     int
	maxUpload int64
	log       *slog.Logger

	mu sync.Mutex
}

// Option configures a Server.
type Option func(*Server)

// WithEstimator enables POST /v1/age.
func WithEstimator(e age.Estimator) Option {
	return func(s *Server) { s.estimator = e }
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithMaxUpload limits the size of uploaded images in bytes.
func WithMaxUpload(n int64) Option {
	return func(s *Server) { s.maxUpload = n }
}

// WithDefaultEffect is used when a request names no effect or level.
func WithDefaultEffect(name effects.Name, level int) Option {
	return func(s *Server) {
		s.effect = name
		s.level = effects.ClampLevel(level)
	}
}

// New creates a server around d.
func New(d detector.Detector, opts ...Option) *Server {
	s := &Server{
		detector:  d,
		effect:    effects.Pixelation,
		level:     effects.DefaultLevel,
		maxUpload: defaultMaxUpload,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the gin engine.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), Logger(s.log))
	r.MaxMultipartMemory = s.maxUpload

	r.GET("/healthz", s.Health)
	s.RegisterRoutes(r.Group("/v1"))
	return r
}

// RegisterRoutes mounts the API on g.
func (s *Server) RegisterRoutes(g *gin.RouterGroup) {
	g.GET("/effects", s.ListEffects)
	g.POST("/anonymize", s.Anonymize)
	g.POST("/detect", s.Detect)
	g.POST("/age", s.Age)
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("HTTP server listening", "addr", addr, "detector", s.detector.Name())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen %s: %w", addr, err)
	case <-ctx.Done():
	}

	s.log.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
