package worktree

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher invalidates a Worktree's cached scan when the filesystem
// changes, so repeated List calls between changes stay cheap.
type Watcher struct {
	fsw    *fsnotify.Watcher
	wt     *Worktree
	logger *zap.Logger
	done   chan struct{}
}

// Watch starts watching the work tree recursively. Close the returned
// Watcher to stop.
func (w *Worktree) Watch() (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}

	watcher := &Watcher{
		fsw:    fsw,
		wt:     w,
		logger: w.logger,
		done:   make(chan struct{}),
	}
	if err := watcher.addRecursive(w.root); err != nil {
		fsw.Close()
		return nil, err
	}

	w.mu.Lock()
	w.watcher = watcher
	w.mu.Unlock()

	go watcher.run()
	return watcher, nil
}

func (wa *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if d.Name() == wa.wt.skip && path != root {
			return fs.SkipDir
		}
		if err := wa.fsw.Add(path); err != nil {
			return fmt.Errorf("watching %q: %w", path, err)
		}
		return nil
	})
}

func (wa *Watcher) run() {
	for {
		select {
		case <-wa.done:
			return
		case event, ok := <-wa.fsw.Events:
			if !ok {
				return
			}
			if wa.inSkipDir(event.Name) {
				continue
			}
			wa.wt.invalidate()
			if event.Op.Has(fsnotify.Create) {
				// A new directory must be watched before events inside
				// it can be seen.
				wa.addRecursive(event.Name)
			}
		case err, ok := <-wa.fsw.Errors:
			if !ok {
				return
			}
			wa.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

func (wa *Watcher) inSkipDir(path string) bool {
	rel, err := filepath.Rel(wa.wt.root, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	return rel == wa.wt.skip || strings.HasPrefix(rel, wa.wt.skip+"/")
}

// Close stops the watcher. The work tree falls back to scanning on every
// List.
func (wa *Watcher) Close() error {
	close(wa.done)
	err := wa.fsw.Close()

	wa.wt.mu.Lock()
	wa.wt.watcher = nil
	wa.wt.dirty = true
	wa.wt.mu.Unlock()
	return err
}
