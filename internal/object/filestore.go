package object

import (
	"bytes"
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v4"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/klauspost/compress/zlib"
)

// meta is the per-object record kept in the badger database next to the
// loose files. It lets Exists answer without touching the filesystem and
// records what Load should expect.
type meta struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// FileStore is a content-addressed object database backed by zlib-compressed
// loose files, with a badger metadata database and an LRU cache of
// decompressed bodies.
type FileStore struct {
	root  string
	db    *badger.DB
	cache *lru.Cache[ID, []byte]
}

// Options configures a FileStore.
type Options struct {
	Root      string // directory holding the loose object files
	CacheSize int    // number of decompressed bodies to cache
}

// NewFileStore opens (or creates) an object database rooted at opts.Root.
func NewFileStore(db *badger.DB, opts Options) (*FileStore, error) {
	if opts.Root == "" {
		return nil, fmt.Errorf("object store root directory is required")
	}
	if err := os.MkdirAll(opts.Root, 0755); err != nil {
		return nil, fmt.Errorf("creating object store directory: %w", err)
	}
	if opts.CacheSize == 0 {
		opts.CacheSize = 512
	}

	cache, err := lru.New[ID, []byte](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating object cache: %w", err)
	}

	return &FileStore{
		root:  opts.Root,
		db:    db,
		cache: cache,
	}, nil
}

// HashAndStore writes an object as a compressed loose file and returns its id.
// Storing an object that already exists is a no-op.
func (s *FileStore) HashAndStore(t Type, data []byte) (ID, error) {
	if !t.valid() {
		return ID{}, fmt.Errorf("storing object: unknown type %q", string(t))
	}
	framed := frame(t, data)
	id := ID(sha1.Sum(framed))

	if s.Exists(id) {
		return id, nil
	}

	path := s.objectPath(id)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return ID{}, fmt.Errorf("creating object directory: %w", err)
	}

	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(framed); err != nil {
		return ID{}, fmt.Errorf("compressing object: %w", err)
	}
	if err := zw.Close(); err != nil {
		return ID{}, fmt.Errorf("compressing object: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0444); err != nil {
		return ID{}, fmt.Errorf("writing object file: %w", err)
	}

	m := meta{
		ID:        id.Hex(),
		Type:      t,
		Size:      int64(len(data)),
		CreatedAt: time.Now(),
	}
	if err := s.storeMeta(m); err != nil {
		os.Remove(path)
		return ID{}, fmt.Errorf("storing object metadata: %w", err)
	}

	s.cache.Add(id, framed)
	return id, nil
}

// Load reads an object back, verifying its id against the stored bytes.
func (s *FileStore) Load(id ID) (Type, []byte, error) {
	framed, ok := s.cache.Get(id)
	if !ok {
		compressed, err := os.ReadFile(s.objectPath(id))
		if err != nil {
			if os.IsNotExist(err) {
				return "", nil, fmt.Errorf("%w: %s", ErrMissingObject, id.Hex())
			}
			return "", nil, fmt.Errorf("reading object file: %w", err)
		}

		zr, err := zlib.NewReader(bytes.NewReader(compressed))
		if err != nil {
			return "", nil, fmt.Errorf("%w: %s: %v", ErrCorruptObject, id.Hex(), err)
		}
		framed, err = io.ReadAll(zr)
		zr.Close()
		if err != nil {
			return "", nil, fmt.Errorf("%w: %s: %v", ErrCorruptObject, id.Hex(), err)
		}

		if sha1.Sum(framed) != id {
			return "", nil, fmt.Errorf("%w: %s: content hash mismatch", ErrCorruptObject, id.Hex())
		}
		s.cache.Add(id, framed)
	}

	return unframe(framed)
}

// Exists checks the cache, then the metadata database, then the filesystem.
func (s *FileStore) Exists(id ID) bool {
	if s.cache.Contains(id) {
		return true
	}
	if s.db != nil {
		if _, err := s.getMeta(id); err == nil {
			return true
		}
	}
	_, err := os.Stat(s.objectPath(id))
	return err == nil
}

func (s *FileStore) objectPath(id ID) string {
	hex := id.Hex()
	return filepath.Join(s.root, hex[:2], hex[2:])
}

func (s *FileStore) storeMeta(m meta) error {
	if s.db == nil {
		return nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(metaKey(m.ID), data)
	})
}

func (s *FileStore) getMeta(id ID) (meta, error) {
	var m meta
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(metaKey(id.Hex()))
		if err == badger.ErrKeyNotFound {
			return ErrMissingObject
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &m)
		})
	})
	return m, err
}

func metaKey(hex string) []byte {
	return []byte("object:" + hex)
}
