package models

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	defaultRetryDelay = 2 * time.Second
	defaultMaxRetries = 3
	defaultTimeout    = 5 * time.Minute
	pullConcurrency   = 4
)

// Errors.
var (
	ErrUnknownModel     = errors.New("unknown model")
	ErrNoDownload       = errors.New("model has no download URL")
	ErrChecksumMismatch = errors.New("checksum mismatch")
	ErrDownload         = errors.New("download failed")
)

// Store is a directory of downloaded model files.
type Store struct {
	dir        string
	catalog    Catalog
	client     *http.Client
	retryDelay time.Duration
	maxRetries int
}

// Option configures a Store.
type Option func(*Store)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Store) { s.client = c }
}

// WithCatalog replaces DefaultCatalog.
func WithCatalog(models []Model) Option {
	return func(s *Store) { s.catalog = NewCatalog(models) }
}

// WithRetry sets the attempts per file and the pause between them.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(s *Store) {
		s.maxRetries = max(attempts, 1)
		s.retryDelay = delay
	}
}

// NewStore returns a store rooted at dir.
func NewStore(dir string, opts ...Option) *Store {
	s := &Store{
		dir:        dir,
		catalog:    NewCatalog(DefaultCatalog),
		client:     &http.Client{Timeout: defaultTimeout},
		retryDelay: defaultRetryDelay,
		maxRetries: defaultMaxRetries,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dir is the cache directory.
func (s *Store) Dir() string { return s.dir }

// Catalog returns the models the store knows about.
func (s *Store) Catalog() Catalog { return s.catalog }

// Model looks up name.
func (s *Store) Model(name string) (Model, error) {
	m, ok := s.catalog[name]
	if !ok {
		return Model{}, fmt.Errorf("%w: %s", ErrUnknownModel, name)
	}
	return m, nil
}

// Paths returns the local path of every file of name.
func (s *Store) Paths(name string) ([]string, error) {
	m, err := s.Model(name)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(m.Files))
	for i, f := range m.Files {
		out[i] = filepath.Join(s.dir, f.Name)
	}
	return out, nil
}

// Path returns the local path of the weights of name.
func (s *Store) Path(name string) (string, error) {
	paths, err := s.Paths(name)
	if err != nil {
		return "", err
	}
	return paths[0], nil
}

// Exists reports whether every file of name is present.
func (s *Store) Exists(name string) bool {
	paths, err := s.Paths(name)
	if err != nil {
		return false
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			return false
		}
	}
	return true
}

// Ensure downloads the files of name that are missing and returns the
// weights path.
func (s *Store) Ensure(ctx context.Context, name string) (string, error) {
	m, err := s.Model(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	for _, f := range m.Files {
		path := filepath.Join(s.dir, f.Name)
		if _, err := os.Stat(path); err == nil {
			slog.Debug("Model file present, skipping", "model", name, "path", path)
			continue
		}
		if f.URL == "" {
			return "", fmt.Errorf("%w: %s (place %s in %s)", ErrNoDownload, name, f.Name, s.dir)
		}
		if err := s.fetch(ctx, name, f, path); err != nil {
			return "", err
		}
	}
	return filepath.Join(s.dir, m.Files[0].Name), nil
}

func (s *Store) fetch(ctx context.Context, model string, f File, path string) error {
	var lastErr error
	for attempt := range s.maxRetries {
		if attempt > 0 {
			slog.Info("Retrying download", "model", model, "file", f.Name, "attempt", attempt+1, "last_error", lastErr)
			select {
			case <-ctx.Done():
				return fmt.Errorf("download canceled: %w", ctx.Err())
			case <-time.After(s.retryDelay):
			}
		} else {
			slog.Info("Downloading model", "model", model, "file", f.Name, "url", f.URL)
		}

		lastErr = s.download(ctx, f, path)
		if lastErr == nil {
			slog.Info("Model downloaded successfully", "model", model, "path", path, "attempt", attempt+1)
			return nil
		}
		// a bad checksum will not fix itself
		if errors.Is(lastErr, ErrChecksumMismatch) || ctx.Err() != nil {
			return lastErr
		}
		slog.Error("Failed to download model", "model", model, "attempt", attempt+1, "error", lastErr)
	}
	return lastErr
}

// download writes to a temporary file next to path and renames it into
// place once complete and verified.
func (s *Store) download(ctx context.Context, f File, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDownload, err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDownload, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s: %s", ErrDownload, f.URL, resp.Status)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+f.Name+".*.part")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	h := sha256.New()
	if _, err := io.Copy(tmp, io.TeeReader(resp.Body, h)); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %w", ErrDownload, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if f.SHA256 != "" {
		if got := hex.EncodeToString(h.Sum(nil)); got != f.SHA256 {
			return fmt.Errorf("%w: %s: got %s, want %s", ErrChecksumMismatch, f.Name, got, f.SHA256)
		}
	}
	return os.Rename(tmp.Name(), path)
}

// Pull ensures every named model concurrently. No names means the whole
// catalog.
func (s *Store) Pull(ctx context.Context, names ...string) error {
	if len(names) == 0 {
		names = s.catalog.Names()
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(pullConcurrency)
	for _, name := range names {
		g.Go(func() error {
			if _, err := s.Ensure(ctx, name); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Status is one row of List.
type Status struct {
	Model
	Present bool  `json:"present"`
	Size    int64 `json:"size"`
}

// List reports every catalog model and whether it is cached.
func (s *Store) List() []Status {
	out := make([]Status, 0, len(s.catalog))
	for _, name := range s.catalog.Names() {
		m := s.catalog[name]
		st := Status{Model: m, Present: true}
		for _, f := range m.Files {
			info, err := os.Stat(filepath.Join(s.dir, f.Name))
			if err != nil {
				st.Present = false
				continue
			}
			st.Size += info.Size()
		}
		out = append(out, st)
	}
	return out
}
