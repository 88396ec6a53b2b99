// Package watch reports changes below a set of source directories.
package watch

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tildeio/routerbuild/internal/logging"
)

type Watcher struct {
	dirs     []string
	debounce time.Duration
	log      *logging.Logger
}

// New returns a watcher for dirs and everything below them. Bursts of events
// closer together than debounce are reported once.
func New(dirs []string, debounce time.Duration) *Watcher {
	return &Watcher{dirs: dirs, debounce: debounce}
}

func (w *Watcher) WithLogger(log *logging.Logger) *Watcher {
	w.log = log
	return w
}

// Run calls onChange after every settled burst of changes until ctx is done.
// Directories created while running are watched as well.
func (w *Watcher) Run(ctx context.Context, onChange func()) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	for _, dir := range w.dirs {
		if err := addTree(fw, dir); err != nil {
			return err
		}
	}

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.log.Debugf("%s", ev)
			if ev.Has(fsnotify.Create) {
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
					if err := addTree(fw, ev.Name); err != nil {
						w.log.Warnf("watch %s: %v", ev.Name, err)
					}
				}
			}
			if ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) {
				continue
			}
			timer.Reset(w.debounce)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warnf("watch: %v", err)
		case <-timer.C:
			onChange()
		}
	}
}

func addTree(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			// Removed again before we got to it.
			if errors.Is(err, fs.ErrNotExist) && p != root {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return fw.Add(p)
		}
		return nil
	})
}
