package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"tradeguard/internal/logger"
)

// Watch re-loads the config file whenever it changes on disk and calls onLoad
// with the freshly validated result. Invalid edits are logged and dropped, so
// the running configuration is never replaced by a broken one.
//
// Editors often emit several write/rename events per save; changes are
// debounced before re-loading.
func Watch(ctx context.Context, path string, onLoad func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// Watch the directory: editors that write-and-rename replace the inode,
	// which silently drops a watch on the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		var debounce *time.Timer
		target := filepath.Clean(path)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
					continue
				}
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(250*time.Millisecond, func() {
					cfg, err := Load(path)
					if err != nil {
						logger.Warnf("config: reload rejected: %v", err)
						return
					}
					logger.Infof("config: reloaded from %s", path)
					onLoad(cfg)
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warnf("config: watcher error: %v", err)
			}
		}
	}()
	return nil
}
