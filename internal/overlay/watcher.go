package overlay

import (
	"context"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/roster/internal/storage"
)

const reloadDebounce = 200 * time.Millisecond

// ReloadCallback is called after an external change was loaded into the store.
type ReloadCallback func()

// Watch observes the FS backend directory and reloads the store when the
// records or tombstones files change on disk, e.g. when another process or a
// person edits them. It returns when ctx is cancelled.
//
// Bursts of events are debounced; reloads that find identical payloads
// (our own writes) don't trigger cb.
func Watch(ctx context.Context, store *Store, fs *storage.FS, logger *slog.Logger, cb ReloadCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(fs.Root()); err != nil {
		return err
	}

	logger.Info("overlay watcher: started", slog.String("root", fs.Root()))

	var timer *time.Timer
	var timerCh <-chan time.Time

	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(reloadDebounce)
			timerCh = timer.C
		} else {
			timer.Reset(reloadDebounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("overlay watcher: stopped")
			return nil

		case <-timerCh:
			if store.Reload() {
				logger.Info("overlay watcher: reloaded external change")
				if cb != nil {
					cb()
				}
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			key, owned := fs.KeyFromPath(ev.Name)
			if !owned || (key != RecordsKey && key != TombstonesKey) {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				logger.Debug("overlay watcher: change", slog.String("key", key), slog.String("op", ev.Op.String()))
				schedule()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("overlay watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
