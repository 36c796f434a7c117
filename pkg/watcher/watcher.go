// Package watcher reloads the engine when skill directories change on
// disk. Events are debounced so an editor save burst triggers one reload;
// a reload that fails validation keeps the previous snapshot active.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	"github.com/opus67/skillctx/pkg/engine"
	"github.com/opus67/skillctx/pkg/logger"
	"github.com/opus67/skillctx/pkg/registry"
)

// DefaultDebounce is the quiet period after the last event before reloading.
const DefaultDebounce = 500 * time.Millisecond

// Watcher ties a filesystem watch to engine reloads.
type Watcher struct {
	engine   *engine.Engine
	source   registry.Source
	dirs     []string
	debounce time.Duration
}

// New creates a watcher over the given directories. source is what the
// triggered reload reads; it normally covers the same directories.
func New(eng *engine.Engine, source registry.Source, dirs []string, debounce time.Duration) (*Watcher, error) {
	if len(dirs) == 0 {
		return nil, errors.New("at least one directory to watch is required")
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{engine: eng, source: source, dirs: dirs, debounce: debounce}, nil
}

// Run watches until the context is canceled.
func (w *Watcher) Run(ctx context.Context) error {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create file watcher")
	}
	defer fsWatcher.Close()

	watched := 0
	for _, dir := range w.dirs {
		if err := addRecursive(fsWatcher, dir); err != nil {
			logger.G(ctx).WithError(err).WithField("dir", dir).Debug("skipping unwatchable directory")
			continue
		}
		watched++
	}
	if watched == 0 {
		return errors.New("none of the skill directories could be watched")
	}

	var timer *time.Timer
	var timerCh <-chan time.Time

	for {
		select {
		case event, ok := <-fsWatcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			// New skill directories need their own watch entry.
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = fsWatcher.Add(event.Name)
				}
			}
			logger.G(ctx).WithField("file", event.Name).
				WithField("op", event.Op.String()).
				Debug("skill directory change detected")

			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerCh = timer.C
			} else {
				timer.Reset(w.debounce)
			}

		case <-timerCh:
			if err := w.engine.Reload(ctx, w.source); err != nil {
				logger.G(ctx).WithError(err).Warn("skill reload failed, keeping previous snapshot")
			} else {
				logger.G(ctx).Info("skill registry reloaded after directory change")
			}

		case err, ok := <-fsWatcher.Errors:
			if !ok {
				return nil
			}
			logger.G(ctx).WithError(err).Warn("file watcher error")

		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		}
	}
}

func addRecursive(fsWatcher *fsnotify.Watcher, root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return fsWatcher.Add(path)
		}
		return nil
	})
}
