package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// WatchDebounce is how long Watch waits after the last change before
// reloading.
var WatchDebounce = 100 * time.Millisecond

// Load loads path, which may be a single document or a directory of
// documents matching Patterns.
func (l *ConfigLoader) Load(path string) ([]Loaded, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return l.LoadDir(path)
	}
	spec, err := l.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return []Loaded{{Path: path, Spec: spec}}, nil
}

// Watch loads path, calls onChange with the result, and calls it again
// after every change to the watched documents until ctx is done. A load
// failure is passed to onChange and does not stop the watch. Watch returns
// ctx.Err() once ctx is done.
func (l *ConfigLoader) Watch(ctx context.Context, path string, onChange func([]Loaded, error)) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	dir, file := path, ""
	if !info.IsDir() {
		// Editors replace files on save, so the parent directory is watched.
		dir, file = filepath.Dir(path), filepath.Clean(path)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	l.Logger.Debug("watching configuration", zap.String("path", path))

	onChange(l.Load(path))

	relevant := func(name string) bool {
		if file != "" {
			return filepath.Clean(name) == file
		}
		for _, pattern := range Patterns {
			if ok, _ := filepath.Match(pattern, filepath.Base(name)); ok {
				return true
			}
		}
		return false
	}

	debounce := time.NewTimer(WatchDebounce)
	debounce.Stop()
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op == fsnotify.Chmod || !relevant(event.Name) {
				continue
			}
			l.Logger.Debug("configuration changed",
				zap.String("path", event.Name),
				zap.String("op", event.Op.String()))
			debounce.Reset(WatchDebounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			l.Logger.Warn("watcher error", zap.Error(err))

		case <-debounce.C:
			onChange(l.Load(path))
		}
	}
}
