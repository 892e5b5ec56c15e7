package display

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// WatchIconMap reloads the icon mapping at path whenever it changes and hands
// each successfully parsed map to apply. The parent directory is watched so
// editors that replace the file by rename are picked up. A file that fails to
// parse is logged and the previous mapping stays in effect.
//
// The watch runs until ctx is done.
func WatchIconMap(ctx context.Context, path string, apply func(*IconMap), logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	path = filepath.Clean(path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	go func() {
		defer func() { _ = watcher.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != path {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				m, err := LoadIconMap(path)
				if err != nil {
					logger.Warn("icon map reload failed; keeping previous mapping", "path", path, "error", err)
					continue
				}
				apply(m)
				logger.Info("icon map reloaded", "path", path, "mappings", len(m.Mappings))
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Error("icon map watch error", "error", err)
			}
		}
	}()
	return nil
}
