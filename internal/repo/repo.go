// Package repo ties the pieces of a keel repository together: the
// metadata directory layout, the badger-backed object store, the work
// tree, and the staging index bound to them.
package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"keel/internal/index"
	"keel/internal/object"
	"keel/internal/worktree"
)

const (
	// MetaDir is the repository metadata directory under the work tree root.
	MetaDir = ".keel"

	objectsDir = "objects"
	dbDir      = "meta"
	indexFile  = "index"
)

var ErrNotARepository = errors.New("not a keel repository")

// Repository is an opened repository. Close it when done to release the
// metadata database.
type Repository struct {
	Root  string
	Store *object.FileStore

	db     *badger.DB
	logger *zap.Logger
}

// Options configures Open.
type Options struct {
	Logger *zap.Logger
}

// Init creates the metadata layout under root and writes an empty index.
// Initializing an existing repository is an error.
func Init(root string) error {
	meta := filepath.Join(root, MetaDir)
	if _, err := os.Stat(meta); err == nil {
		return fmt.Errorf("repository already exists at %s", meta)
	}
	for _, dir := range []string{objectsDir, dbDir} {
		if err := os.MkdirAll(filepath.Join(meta, dir), 0755); err != nil {
			return fmt.Errorf("creating repository layout: %w", err)
		}
	}

	idx := index.New(index.Options{Path: filepath.Join(meta, indexFile)})
	if err := idx.Write(); err != nil {
		return fmt.Errorf("writing empty index: %w", err)
	}
	return nil
}

// Open discovers the repository containing dir by walking upward until a
// metadata directory is found, then opens the object store on top of it.
func Open(dir string, opts Options) (*Repository, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	root, err := discover(dir)
	if err != nil {
		return nil, err
	}
	meta := filepath.Join(root, MetaDir)

	dbOpts := badger.DefaultOptions(filepath.Join(meta, dbDir))
	dbOpts.Logger = nil
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("opening metadata database: %w", err)
	}

	store, err := object.NewFileStore(db, object.Options{
		Root: filepath.Join(meta, objectsDir),
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	opts.Logger.Debug("opened repository", zap.String("root", root))
	return &Repository{
		Root:   root,
		Store:  store,
		db:     db,
		logger: opts.Logger,
	}, nil
}

func discover(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		info, err := os.Stat(filepath.Join(abs, MetaDir))
		if err == nil && info.IsDir() {
			return abs, nil
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return "", fmt.Errorf("%w: searched from %s upward", ErrNotARepository, dir)
		}
		abs = parent
	}
}

// IndexPath is the repository's on-disk index file.
func (r *Repository) IndexPath() string {
	return filepath.Join(r.Root, MetaDir, indexFile)
}

// Worktree returns an enumerator over the repository's work tree.
func (r *Repository) Worktree() *worktree.Worktree {
	return worktree.New(r.Root, worktree.Options{Skip: MetaDir, Logger: r.logger})
}

// Index opens the staging index bound to this repository's store and work
// tree. A missing index file yields a fresh empty index.
func (r *Repository) Index() (*index.Index, error) {
	opts := index.Options{
		Path:     r.IndexPath(),
		Store:    r.Store,
		Worktree: r.Worktree(),
	}
	if _, err := os.Stat(opts.Path); os.IsNotExist(err) {
		return index.New(opts), nil
	}
	return index.Open(opts.Path, opts)
}

func (r *Repository) Close() error {
	return r.db.Close()
}
