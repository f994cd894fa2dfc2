package main

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/danmuck/regis/internal/logging"
	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 100 * time.Millisecond

// configWatcher re-applies the daemon config when its file changes. The parent
// directory is watched so editors that replace the file are still seen.
type configWatcher struct {
	path   string
	reload func() error

	mu       sync.Mutex
	debounce *time.Timer
}

func newConfigWatcher(path string, reload func() error) *configWatcher {
	return &configWatcher{path: path, reload: reload}
}

func (w *configWatcher) Run(ctx context.Context) error {
	log := logging.Component("watch")
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		return err
	}
	log.Debug().Str("path", w.path).Msg("watching config")

	name := filepath.Base(w.path)
	for {
		select {
		case <-ctx.Done():
			w.stop()
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.schedule(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("config watcher error")
		}
	}
}

func (w *configWatcher) schedule(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = time.AfterFunc(reloadDebounce, func() {
		if ctx.Err() != nil {
			return
		}
		if err := w.reload(); err != nil {
			log := logging.Component("watch")
			log.Error().Err(err).Msg("config reload failed; keeping previous settings")
		}
	})
}

func (w *configWatcher) stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.debounce != nil {
		w.debounce.Stop()
	}
}
