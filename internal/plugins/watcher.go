package plugins

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"aetherd/internal/config"
	"aetherd/pkg/logging"
)

// settleDelay gives an installer time to finish writing a new plugin
// directory before the manifest is read.
const settleDelay = 500 * time.Millisecond

// WatchFuncs receives plugin install/uninstall notifications. Callbacks run
// on the watcher goroutine and are handed the plugin directory name.
type WatchFuncs struct {
	OnInstalled func(dirName string)
	OnRemoved   func(dirName string)
}

// Watch observes the plugins root and invokes the callbacks when plugin
// directories appear or disappear. It blocks until ctx is done.
func (r *Registry) Watch(ctx context.Context, funcs WatchFuncs) error {
	if err := os.MkdirAll(r.root, 0o755); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(r.root); err != nil {
		return err
	}

	logging.Debug("PluginWatcher", "Watching %s", r.root)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// Only top-level entries of the plugins root are interesting
			if filepath.Dir(event.Name) != filepath.Clean(r.root) {
				continue
			}
			dirName := filepath.Base(event.Name)

			switch {
			case event.Has(fsnotify.Create):
				time.Sleep(settleDelay)
				manifestPath := filepath.Join(event.Name, config.ManifestName)
				if info, err := os.Stat(event.Name); err != nil || !info.IsDir() {
					continue
				}
				if _, err := os.Stat(manifestPath); err != nil {
					continue
				}
				logging.Info("PluginWatcher", "Detected new plugin directory: %s", dirName)
				if funcs.OnInstalled != nil {
					funcs.OnInstalled(dirName)
				}

			case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
				logging.Info("PluginWatcher", "Plugin directory removed: %s", dirName)
				if funcs.OnRemoved != nil {
					funcs.OnRemoved(dirName)
				}
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Warn("PluginWatcher", "Watch error: %v", err)
		}
	}
}
