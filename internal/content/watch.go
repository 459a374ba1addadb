package content

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch reloads the library's dynamic files (triggers.json,
// templates.json) when they change on disk, so evolved rules take
// effect without a restart. Blocks until ctx is done.
func Watch(ctx context.Context, lib *Library, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("watch")

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(lib.Dir()); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			name := filepath.Base(ev.Name)
			if name != triggersFile && name != templatesFile {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			log.Debug("dynamic file changed", zap.String("file", name))
			lib.Reload()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("watcher error", zap.Error(err))
		}
	}
}
