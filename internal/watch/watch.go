// Package watch re-runs a callback when template or data files change.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/goliatone/go-domtpl/internal/debounce"
)

// ErrRunning is returned when Watch is called twice.
var ErrRunning = errors.New("watch: already running")

// Config selects what to watch.
type Config struct {
	// Paths are files or directories. Files are watched through their parent
	// directory so editors that replace files on save keep being tracked.
	Paths []string
	// Debounce is the quiet period before the callback runs.
	Debounce time.Duration
	// Extensions filters events inside watched directories. Empty means all.
	Extensions []string
}

// Watcher wraps fsnotify with path filtering and debouncing.
type Watcher struct {
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	config   Config
	debounce *debounce.Debouncer

	files map[string]struct{}
	dirs  map[string]struct{}

	mu      sync.Mutex
	running bool
}

// New creates a watcher. Close releases it.
func New(cfg Config, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 100 * time.Millisecond
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}
	w := &Watcher{
		watcher:  fsw,
		logger:   logger.With("component", "watch"),
		config:   cfg,
		debounce: debounce.New(cfg.Debounce),
		files:    make(map[string]struct{}),
		dirs:     make(map[string]struct{}),
	}
	for _, p := range cfg.Paths {
		if err := w.add(p); err != nil {
			_ = fsw.Close()
			return nil, err
		}
	}
	return w, nil
}

// Watch blocks until ctx is done, calling onChange after each burst of
// relevant events. Callback errors are logged and watching continues.
func (w *Watcher) Watch(ctx context.Context, onChange func(ctx context.Context) error) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return ErrRunning
	}
	w.running = true
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}()

	w.logger.Info("watching for changes", "paths", w.config.Paths, "debounce", w.config.Debounce)
	for {
		select {
		case <-ctx.Done():
			w.debounce.Stop()
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return errors.New("watch: events channel closed")
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("file event", "path", event.Name, "op", event.Op.String())
			w.debounce.Trigger(func() {
				if err := onChange(ctx); err != nil {
					w.logger.Error("change handler failed", "path", event.Name, "error", err)
				}
			})
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return errors.New("watch: errors channel closed")
			}
			w.logger.Error("watcher error", "error", err)
		}
	}
}

// Close stops the debouncer and releases the fsnotify watcher.
func (w *Watcher) Close() error {
	w.debounce.Stop()
	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("watch: close: %w", err)
	}
	return nil
}

func (w *Watcher) add(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("watch: resolve %q: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("watch: stat %q: %w", path, err)
	}
	dir := abs
	if info.IsDir() {
		w.dirs[abs] = struct{}{}
	} else {
		w.files[abs] = struct{}{}
		dir = filepath.Dir(abs)
	}
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("watch: add %q: %w", dir, err)
	}
	return nil
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	name, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}
	if strings.HasPrefix(filepath.Base(name), ".") {
		return false
	}
	if _, ok := w.files[name]; ok {
		return true
	}
	if _, ok := w.dirs[filepath.Dir(name)]; !ok {
		return false
	}
	if len(w.config.Extensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, want := range w.config.Extensions {
		if ext == strings.ToLower(want) {
			return true
		}
	}
	return false
}
