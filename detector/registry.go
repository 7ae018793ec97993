package detector

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Factory builds a detector from configuration.
type Factory func(ctx context.Context, cfg Config) (Detector, error)

// Registry maps backend names to factories.
type Registry struct {
	factories map[string]Factory
	mu        sync.RWMutex
}

// NewRegistry creates a registry holding the pure-Go backends.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register("pigo", func(_ context.Context, cfg Config) (Detector, error) {
		return NewPigo(cfg)
	})
	r.Register("rekognition", func(ctx context.Context, cfg Config) (Detector, error) {
		return NewRekognition(ctx, cfg)
	})
	return r
}

// Register adds or replaces a factory.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories[strings.ToLower(name)] = f
}

// New builds the named detector.
func (r *Registry) New(ctx context.Context, name string, cfg Config) (Detector, error) {
	r.mu.RLock()
	f, ok := r.factories[strings.ToLower(name)]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownDetector, name, strings.Join(r.Names(), ", "))
	}
	d, err := f(ctx, cfg.WithDefaults())
	if err != nil {
		return nil, fmt.Errorf("create %s detector: %w", name, err)
	}
	return d, nil
}

// Names lists the registered backends alphabetically.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.factories[strings.ToLower(name)]
	return ok
}
