package config

import (
	"fmt"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reloads a Store whenever its backing file changes on disk.
type Watcher struct {
	store   *Store
	log     *zap.Logger
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewWatcher builds a Watcher over store. Call Start to begin watching.
func NewWatcher(store *Store, log *zap.Logger) *Watcher {
	return &Watcher{store: store, log: log, done: make(chan struct{})}
}

// Start begins watching the store's config file for writes, reloading the
// Store each time one is observed.
func (w *Watcher) Start() error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: new watcher: %w", err)
	}
	if err := fw.Add(w.store.path); err != nil {
		fw.Close()
		return fmt.Errorf("config: watch %s: %w", w.store.path, err)
	}
	w.watcher = fw

	go w.run()
	return nil
}

// Stop ends the watch goroutine and releases the underlying fsnotify handle.
func (w *Watcher) Stop() {
	if w.watcher == nil {
		return
	}
	close(w.done)
	w.watcher.Close()
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := w.store.Reload(); err != nil {
				w.log.Warn("config reload failed, keeping previous configuration",
					zap.String("path", w.store.path), zap.Error(err))
				continue
			}
			w.log.Info("config reloaded", zap.String("path", w.store.path))
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("config watcher error", zap.Error(err))
		case <-w.done:
			return
		}
	}
}
