package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long Watch waits after the last change before
// reloading, so editors that write in several steps trigger one reload.
const DefaultDebounce = 250 * time.Millisecond

// Watcher reloads a config file when it changes.
type Watcher struct {
	path     string
	debounce time.Duration
	logger   *slog.Logger
	lookup   func(string) (string, bool)

	mu   sync.Mutex
	last *Config
}

// NewWatcher creates a watcher for path. current is the configuration in
// effect; reloads equal to it are not published.
func NewWatcher(path string, current *Config, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		path:     path,
		debounce: DefaultDebounce,
		logger:   logger,
		lookup:   lookupEnv,
		last:     current,
	}
}

// Watch watches the file's directory until ctx is done and calls fn with
// every valid configuration that differs from the previous one. Invalid
// files are logged and ignored.
func (w *Watcher) Watch(ctx context.Context, fn func(*Config)) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	dir := filepath.Dir(w.path)
	file := filepath.Base(w.path)
	if err := fsw.Add(dir); err != nil {
		return err
	}
	w.logger.Debug("config watcher started", "path", w.path)

	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	defer func() {
		timerMu.Lock()
		if timer != nil {
			timer.Stop()
		}
		timerMu.Unlock()
	}()
	schedule := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(w.debounce, func() {
			if ctx.Err() != nil {
				return
			}
			w.reload(fn)
		})
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !strings.EqualFold(filepath.Base(ev.Name), file) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				schedule()
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("config watch error", "path", w.path, "error", err)
		}
	}
}

func (w *Watcher) reload(fn func(*Config)) {
	cfg, err := load(w.path, w.lookup)
	if err != nil {
		w.logger.Warn("config reload rejected", "path", w.path, "error", err)
		return
	}

	w.mu.Lock()
	unchanged := w.last != nil && reflect.DeepEqual(w.last, cfg)
	if !unchanged {
		w.last = cfg
	}
	w.mu.Unlock()

	if unchanged {
		w.logger.Debug("config unchanged; skipping publish", "path", w.path)
		return
	}
	w.logger.Info("config reloaded", "path", w.path)
	fn(cfg)
}
