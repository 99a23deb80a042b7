package params

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/specmon/pkg/config"
)

const reloadDebounce = 150 * time.Millisecond

// LoadFile reads a YAML params file ("gain:" and "offset:" keys). Keys
// missing from the file keep the values of base.
func LoadFile(path string, base Params) (Params, error) {
	p := base
	if err := config.Load(path, &p); err != nil {
		return Params{}, err
	}
	return p, nil
}

// WatchFile applies path to c once, then re-applies it on every change until
// ctx is cancelled. The parent directory is watched so editors that replace
// the file by rename are picked up. Malformed files are logged and ignored.
func WatchFile(ctx context.Context, c *Controller, path string, logger *slog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return err
	}

	reload := func() {
		p, err := LoadFile(abs, c.Snapshot())
		if err != nil {
			logger.Warn("params: reload failed", slog.String("path", abs), slog.String("error", err.Error()))
			return
		}
		applied := c.Set(p)
		logger.Info("params: reloaded",
			slog.String("path", abs),
			slog.Float64("gain", applied.Gain),
			slog.Float64("offset", applied.Offset))
	}

	reload()
	logger.Info("params: watching", slog.String("path", abs))

	var timer *time.Timer
	var timerCh <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("params: watcher stopped")
			return nil

		case <-timerCh:
			reload()

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
				timerCh = timer.C
			} else {
				timer.Reset(reloadDebounce)
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("params: watcher error", slog.String("error", watchErr.Error()))
		}
	}
}
