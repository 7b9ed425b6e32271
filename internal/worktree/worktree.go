// Package worktree enumerates and reads files under a repository's work
// tree on behalf of the index. It implements index.Worktree.
package worktree

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"keel/internal/index"
)

// Worktree walks a root directory, skipping the repository metadata
// directory, and serves file content for staging. A Watcher (see
// watcher.go) can keep the scan cached between filesystem changes.
type Worktree struct {
	root   string
	skip   string // metadata directory name, e.g. ".keel"
	logger *zap.Logger

	mu      sync.Mutex
	cached  []index.WorkFile
	dirty   bool
	watcher *Watcher
}

// Options configures a Worktree.
type Options struct {
	// Skip is the repository metadata directory excluded from scans.
	Skip string

	Logger *zap.Logger
}

func New(root string, opts Options) *Worktree {
	if opts.Skip == "" {
		opts.Skip = ".keel"
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Worktree{
		root:   root,
		skip:   opts.Skip,
		logger: opts.Logger,
		dirty:  true,
	}
}

// List enumerates every regular file and symlink under the root with
// slash-separated relative paths, sorted. With a running watcher the scan
// is cached until an event marks it dirty.
func (w *Worktree) List() ([]index.WorkFile, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.watcher != nil && !w.dirty {
		out := make([]index.WorkFile, len(w.cached))
		copy(out, w.cached)
		return out, nil
	}

	files, err := w.scan()
	if err != nil {
		return nil, err
	}
	w.cached = files
	w.dirty = false

	out := make([]index.WorkFile, len(files))
	copy(out, files)
	return out, nil
}

func (w *Worktree) scan() ([]index.WorkFile, error) {
	var files []index.WorkFile
	err := filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == w.skip && path != w.root {
				return fs.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(w.root, path)
		if err != nil {
			return err
		}
		f, err := w.statRel(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		files = append(files, f)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning work tree: %w", err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	w.logger.Debug("scanned work tree", zap.Int("files", len(files)))
	return files, nil
}

// Stat describes a single path relative to the root.
func (w *Worktree) Stat(path string) (index.WorkFile, error) {
	return w.statRel(path)
}

func (w *Worktree) statRel(path string) (index.WorkFile, error) {
	abs, err := w.abs(path)
	if err != nil {
		return index.WorkFile{}, err
	}
	info, err := os.Lstat(abs)
	if err != nil {
		return index.WorkFile{}, err
	}

	mode := index.ModeRegular
	switch {
	case info.Mode()&os.ModeSymlink != 0:
		mode = index.ModeSymlink
	case info.Mode().Perm()&0111 != 0:
		mode = index.ModeExecutable
	}
	return index.WorkFile{Path: path, Mode: mode, Size: info.Size()}, nil
}

// Read returns the bytes to stage for path. For a symlink that is the
// link target, matching how git hashes symlinks.
func (w *Worktree) Read(path string) ([]byte, error) {
	abs, err := w.abs(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Lstat(abs)
	if err != nil {
		return nil, err
	}
	if info.Mode()&os.ModeSymlink != 0 {
		target, err := os.Readlink(abs)
		if err != nil {
			return nil, err
		}
		return []byte(target), nil
	}
	return os.ReadFile(abs)
}

// abs resolves a slash-separated relative path, refusing escapes from the
// root.
func (w *Worktree) abs(path string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(path))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes work tree", path)
	}
	return filepath.Join(w.root, clean), nil
}

// invalidate marks the cached scan stale. Called by the watcher.
func (w *Worktree) invalidate() {
	w.mu.Lock()
	w.dirty = true
	w.mu.Unlock()
}
