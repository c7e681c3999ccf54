package cache

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch schedules a refresh whenever one of the given files is written,
// created, renamed or removed. Directories are watched so that editors
// replacing a file are noticed too.
func (c *Controller) Watch(files ...string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	watched := make(map[string]bool, len(files))
	dirs := make(map[string]bool)
	for _, file := range files {
		if file == "" {
			continue
		}
		abs, err := filepath.Abs(file)
		if err != nil {
			watcher.Close()
			return fmt.Errorf("failed to resolve %s: %w", file, err)
		}
		watched[abs] = true
		dir := filepath.Dir(abs)
		if dirs[dir] {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			slog.Warn("Failed to watch directory", "dir", dir, "error", err)
			continue
		}
		dirs[dir] = true
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer watcher.Close()

		for {
			select {
			case <-c.ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				name, err := filepath.Abs(event.Name)
				if err != nil || !watched[name] {
					continue
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
					event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
					slog.Debug("Config file changed", "file", name, "op", event.Op.String())
					c.Schedule()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("File watcher error", "error", err)
			}
		}
	}()

	return nil
}
