package index

import "errors"

var (
	// ErrInvalidEntry means a malformed path, id, or mode was supplied to
	// an entry mutation. The caller must fix its input.
	ErrInvalidEntry = errors.New("invalid index entry")

	// ErrNotFound means a lookup or removal named a path that is not staged.
	ErrNotFound = errors.New("path not in index")

	// ErrOutOfRange means a positional access fell outside [0, len).
	ErrOutOfRange = errors.New("entry position out of range")

	// ErrInvalidArgument means a positional access used a negative position
	// or an operation received an argument of the wrong shape.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrReadOnlyIndex means Write was called on an index with no writable
	// on-disk path.
	ErrReadOnlyIndex = errors.New("index is read-only")

	// ErrNoBackingStore means an operation needed an object store but the
	// index was constructed without one.
	ErrNoBackingStore = errors.New("index has no backing object store")

	// ErrMalformedIndex means the on-disk index file failed checksum or
	// structural validation. It is surfaced, never auto-repaired.
	ErrMalformedIndex = errors.New("malformed index file")

	// ErrUnmergedEntries means a tree cannot be written while conflict
	// stages remain in the table.
	ErrUnmergedEntries = errors.New("unmerged entries in index")
)
