package bridgeagent

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/autopeer-io/drivelink/pkg/log"
)

// deviceWatcher reports when a serial device node disappears or comes back.
// It watches the parent directory since the node itself vanishes on unplug.
type deviceWatcher struct {
	path     string
	watcher  *fsnotify.Watcher
	onRemove func()
	onCreate func()
	logger   log.Logger
}

func newDeviceWatcher(path string, onRemove, onCreate func(), logger log.Logger) (*deviceWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	path = filepath.Clean(path)
	if err := w.Add(filepath.Dir(path)); err != nil {
		_ = w.Close()
		return nil, err
	}
	return &deviceWatcher{
		path:     path,
		watcher:  w,
		onRemove: onRemove,
		onCreate: onCreate,
		logger:   logger.WithValues("device", path),
	}, nil
}

// run dispatches events until ctx is done, then releases the watcher.
func (d *deviceWatcher) run(ctx context.Context) {
	defer d.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-d.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != d.path {
				continue
			}
			switch {
			case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
				d.logger.Warn("Vehicle device removed")
				d.onRemove()
			case ev.Has(fsnotify.Create):
				d.logger.Info("Vehicle device appeared")
				d.onCreate()
			}
		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			d.logger.Error(err, "Device watcher error")
		}
	}
}
