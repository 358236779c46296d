package kv

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Change kinds reported by Watch.
const (
	ChangeWritten = "written"
	ChangeRemoved = "removed"
)

// ChangeCallback is invoked once per settled key change.
type ChangeCallback func(kind, key string)

// watchSettle coalesces bursts of events for one key.
const watchSettle = 100 * time.Millisecond

// Watch observes an FS backend root and reports external key changes until
// ctx is cancelled. Writes done through FS itself are reported as well;
// callers that care filter on their own state.
func Watch(ctx context.Context, root string, logger *slog.Logger, cb ChangeCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(root); err != nil {
		return err
	}
	logger.Info("watcher: started", slog.String("root", root))

	pending := make(map[string]string)
	var timer *time.Timer
	var timerCh <-chan time.Time

	schedule := func(kind, key string) {
		pending[key] = kind
		if timer == nil {
			timer = time.NewTimer(watchSettle)
			timerCh = timer.C
		} else {
			timer.Reset(watchSettle)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-timerCh:
			for key, kind := range pending {
				logger.Debug("watcher: change", slog.String("key", key), slog.String("op", kind))
				if cb != nil {
					cb(kind, key)
				}
			}
			clear(pending)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			key, isKey := keyFromFile(filepath.Base(ev.Name))
			if !isKey {
				continue
			}
			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				schedule(ChangeWritten, key)
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				schedule(ChangeRemoved, key)
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
