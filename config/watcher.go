package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Debounce is how long the watcher waits after the last change before it
// reloads.
const Debounce = 500 * time.Millisecond

// Watcher watches for configuration changes.
type Watcher struct {
	path     string
	onReload func(*Config, error)
	current  *Config
	mu       sync.RWMutex
	reloadMu sync.Mutex // serializes reload and onReload
	reloads  atomic.Uint32
	fsw      *fsnotify.Watcher
	done     chan struct{}
}

// NewWatcher loads path and reloads it whenever it changes, until ctx is
// done or Close is called. onReload may be nil.
func NewWatcher(ctx context.Context, path string, onReload func(*Config, error)) (*Watcher, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load initial config: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	// Watch the directory so editors that replace the file are seen too.
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}

	if onReload == nil {
		onReload = func(*Config, error) {}
	}
	w := &Watcher{
		path:     filepath.Clean(path),
		onReload: onReload,
		current:  cfg,
		fsw:      fsw,
		done:     make(chan struct{}),
	}
	go w.watch(ctx)
	return w, nil
}

func (w *Watcher) watch(ctx context.Context) {
	defer close(w.done)
	defer w.fsw.Close()

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(Debounce, w.reload)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Error("Watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	w.reloadMu.Lock()
	defer w.reloadMu.Unlock()

	count := w.reloads.Add(1)
	slog.Info("Reloading config file", "path", w.path, "count", count)

	cfg, err := Load(w.path)
	if err != nil {
		slog.Error("Failed to reload config", "error", err)
		w.onReload(nil, err)
		return
	}

	w.mu.Lock()
	w.current = cfg
	w.mu.Unlock()

	slog.Info("Config reloaded successfully", "count", count)
	w.onReload(cfg, nil)
}

// Snapshot returns the current config (thread-safe).
func (w *Watcher) Snapshot() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// ReloadCount returns the number of reload attempts.
func (w *Watcher) ReloadCount() uint32 {
	return w.reloads.Load()
}

// Close stops watching and waits for the watch loop to exit.
func (w *Watcher) Close() error {
	err := w.fsw.Close()
	<-w.done
	return err
}
