package fairing

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the store whenever something under the template directory
// changes. Bursts of events are coalesced into one reload after the
// debounce interval. New subdirectories are watched as they appear. Reload
// failures are logged and the previous store stays current.
//
// Watch blocks until ctx is done, then returns nil.
func (f *Fairing) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fairing: watch: %w", err)
	}
	defer w.Close()

	if err := watchTree(w, f.dir); err != nil {
		return fmt.Errorf("fairing: watch %s: %w", f.dir, err)
	}
	f.logger.InfoContext(ctx, "watching templates", "dir", f.dir)

	timer := time.NewTimer(f.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()
	pending := false

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op == fsnotify.Chmod {
				continue
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := watchTree(w, ev.Name); err != nil {
						f.logger.WarnContext(ctx, "cannot watch new directory", "dir", ev.Name, "error", err)
					}
				}
			}
			f.logger.DebugContext(ctx, "template change", "path", ev.Name, "op", ev.Op.String())
			timer.Reset(f.debounce)
			pending = true
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			f.logger.WarnContext(ctx, "template watcher error", "error", err)
		case <-timer.C:
			if pending {
				pending = false
				_ = f.Reload(ctx)
			}
		}
	}
}

// watchTree adds dir and every non-hidden directory below it to w.
func watchTree(w *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != dir && strings.HasPrefix(d.Name(), ".") {
			return fs.SkipDir
		}
		return w.Add(p)
	})
}
