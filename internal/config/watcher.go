package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"poe2openai/internal/core"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a Store whenever its file changes on disk.
// The parent directory is watched so editor rename-and-replace saves are seen.
type Watcher struct {
	store    *Store
	logger   core.Logger
	debounce time.Duration
	onReload func(*core.ModelsConfig)

	watcher *fsnotify.Watcher

	mu    sync.Mutex
	timer *time.Timer
}

// NewWatcher creates a watcher for store. onReload is called after each successful reload.
func NewWatcher(store *Store, logger core.Logger, onReload func(*core.ModelsConfig)) (*Watcher, error) {
	if store.Path() == "" {
		return nil, fmt.Errorf("store has no backing file")
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	dir := filepath.Dir(store.Path())
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	return &Watcher{
		store:    store,
		logger:   logger,
		debounce: core.ConfigReloadDebounce,
		onReload: onReload,
		watcher:  fw,
	}, nil
}

// Run processes file events until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	defer func() {
		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
		_ = w.watcher.Close()
	}()

	target := filepath.Clean(w.store.Path())
	w.logger.Info("Watching %s for changes", target)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
				continue
			}
			w.logger.Debug("Config file event: %s %s", event.Op, event.Name)
			w.schedule()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Config watcher error: %v", err)
		}
	}
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) reload() {
	if err := w.store.Reload(); err != nil {
		w.logger.Error("Failed to reload %s, keeping previous config: %v", w.store.Path(), err)
		return
	}
	if w.onReload != nil {
		w.onReload(w.store.Get())
	}
}
