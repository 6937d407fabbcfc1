package synonym

import (
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch starts watching path for writes and calls Reload on each one,
// mirroring the teacher's general fsnotify-driven config-reload
// convention (spec §4.14). It returns a stop function; path must be
// non-empty. Reload errors are logged and do not stop the watch — a
// malformed overlay simply leaves the previous glossary in place.
func (d *Dictionary) Watch(path string, log *zap.Logger) (stop func(), err error) {
	if log == nil {
		log = zap.NewNop()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(path); err != nil {
		_ = watcher.Close()
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := d.Reload(path); err != nil {
					log.Warn("synonym: reload failed", zap.Error(err), zap.String("path", path))
				} else {
					log.Info("synonym: reloaded overlay", zap.String("path", path))
				}
			case werr, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn("synonym: watch error", zap.Error(werr))
			case <-done:
				return
			}
		}
	}()

	return func() {
		close(done)
		_ = watcher.Close()
	}, nil
}
