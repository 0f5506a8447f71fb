// Package watch re-runs a render whenever its input files change.
package watch

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// DefaultDebounce is the quiet period after the last change before a run.
const DefaultDebounce = 200 * time.Millisecond

// Watch calls onChange after files change, until ctx is done. Changes
// closer together than debounce result in a single call. A failing onChange
// is logged and watching goes on.
//
// The directories holding files are watched rather than the files, so editors
// that replace a file on save keep triggering runs.
func Watch(ctx context.Context, files []string, debounce time.Duration, onChange func() error, logger logrus.FieldLogger) error {
	if len(files) == 0 {
		return errors.New("nothing to watch")
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	watched, err := fileSet(files)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create watcher")
	}
	defer watcher.Close()

	dirs := make(map[string]bool)
	for file := range watched {
		dir := filepath.Dir(file)
		if dirs[dir] {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			return errors.Wrapf(err, "failed to watch %s", dir)
		}
		dirs[dir] = true
	}
	logger.WithFields(logrus.Fields{"files": len(watched), "debounce": debounce}).Info("watching for changes")

	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)
	resetTimer := func() {
		if timer == nil {
			timer = time.NewTimer(debounce)
			timerC = timer.C
			return
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(debounce)
		timerC = timer.C
	}
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timerC:
			timerC = nil
			if err := onChange(); err != nil {
				logger.WithError(err).Error("render failed")
				continue
			}
			logger.Info("render ok")
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.WithError(err).Warn("watcher error")
		case evt, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if shouldTrigger(evt, watched) {
				logger.WithFields(logrus.Fields{"file": evt.Name, "op": evt.Op.String()}).Debug("change detected")
				resetTimer()
			}
		}
	}
}

// fileSet returns the absolute, cleaned names of files.
func fileSet(files []string) (map[string]bool, error) {
	set := make(map[string]bool, len(files))
	for _, file := range files {
		abs, err := filepath.Abs(file)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to resolve %s", file)
		}
		set[abs] = true
	}
	return set, nil
}

func shouldTrigger(evt fsnotify.Event, watched map[string]bool) bool {
	if evt.Name == "" {
		return false
	}
	if evt.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	abs, err := filepath.Abs(evt.Name)
	if err != nil {
		return false
	}
	return watched[abs]
}
