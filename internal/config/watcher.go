package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/manthysbr/localagent/internal/core/domain"
)

const defaultDebounce = 250 * time.Millisecond

// OnChangeFunc is called with the freshly loaded config after the file changes.
type OnChangeFunc func(cfg *domain.AppConfig)

// Watcher reloads the config file when it changes on disk and notifies
// subscribers. Editors often replace files instead of writing in place, so
// the parent directory is watched and events are filtered by file name.
type Watcher struct {
	mu        sync.RWMutex
	logger    *slog.Logger
	path      string
	lookup    LookupFunc
	overrides []Override
	debounce  time.Duration
	current   *domain.AppConfig
	onChange  []OnChangeFunc
}

// NewWatcher creates a watcher for path starting from an already-loaded config.
func NewWatcher(logger *slog.Logger, path string, lookup LookupFunc, initial *domain.AppConfig, overrides ...Override) *Watcher {
	return &Watcher{
		logger:    logger,
		path:      filepath.Clean(path),
		lookup:    lookup,
		overrides: overrides,
		debounce:  defaultDebounce,
		current:   initial,
	}
}

// OnChange registers a callback for config reloads.
// Used by main to hot-swap the LLM provider.
func (w *Watcher) OnChange(fn OnChangeFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = append(w.onChange, fn)
}

// latest returns the last successfully loaded config.
func (w *Watcher) latest() *domain.AppConfig {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Run watches until ctx is cancelled. Invalid edits are logged and ignored;
// the previous config stays active.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", w.path, err)
	}
	w.logger.Info("watching config file", "path", w.path)

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			w.reload()
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("config watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path, w.lookup, w.overrides...)
	if err != nil {
		w.logger.Warn("config reload rejected, keeping previous config", "error", err)
		return
	}

	w.mu.Lock()
	w.current = cfg
	callbacks := make([]OnChangeFunc, len(w.onChange))
	copy(callbacks, w.onChange)
	w.mu.Unlock()

	w.logger.Info("config reloaded", "path", w.path, "model", cfg.LLM.Model, "provider", cfg.LLM.Provider)
	for _, fn := range callbacks {
		fn(cfg)
	}
}
