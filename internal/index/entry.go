package index

import (
	"fmt"
	"strings"

	"keel/internal/object"
)

// Mode is a POSIX-style file mode as git encodes it in tree objects and
// index entries.
type Mode uint32

const (
	ModeRegular    Mode = 0o100644
	ModeExecutable Mode = 0o100755
	ModeSymlink    Mode = 0o120000
	ModeGitlink    Mode = 0o160000
	ModeTree       Mode = 0o040000
)

// fileMode reports whether m is valid for an index row. Tree entries are
// structural and never appear as index rows.
func (m Mode) fileMode() bool {
	switch m {
	case ModeRegular, ModeExecutable, ModeSymlink, ModeGitlink:
		return true
	}
	return false
}

func (m Mode) String() string {
	return fmt.Sprintf("%06o", uint32(m))
}

// Stage distinguishes a resolved path (0) from the ancestor/ours/theirs
// variants (1/2/3) of an unresolved merge.
type Stage int

const (
	StageNormal   Stage = 0
	StageAncestor Stage = 1
	StageOurs     Stage = 2
	StageTheirs   Stage = 3
)

// Entry is one staged path at one merge stage. Entries are values: editing
// a copy obtained from the index changes nothing until it is re-inserted
// or written back through Update.
type Entry struct {
	Path  string
	ID    object.ID
	Mode  Mode
	Stage Stage

	// Filesystem metadata, used only for change detection against the
	// working tree. Zero for synthetic entries.
	CtimeSec  uint32
	CtimeNsec uint32
	MtimeSec  uint32
	MtimeNsec uint32
	Dev       uint32
	Ino       uint32
	UID       uint32
	GID       uint32
	Size      uint32
}

// NewEntry builds a stage-0 entry with no filesystem metadata.
func NewEntry(path string, id object.ID, mode Mode) Entry {
	return Entry{Path: path, ID: id, Mode: mode}
}

// Validate checks the fields an entry must get right before it can enter
// the table.
func (e *Entry) Validate() error {
	if err := validatePath(e.Path); err != nil {
		return err
	}
	if e.ID.IsZero() {
		return fmt.Errorf("%w: zero object id for %q", ErrInvalidEntry, e.Path)
	}
	if !e.Mode.fileMode() {
		return fmt.Errorf("%w: mode %o is not a file mode", ErrInvalidEntry, uint32(e.Mode))
	}
	if e.Stage < StageNormal || e.Stage > StageTheirs {
		return fmt.Errorf("%w: stage %d out of range", ErrInvalidEntry, e.Stage)
	}
	return nil
}

func validatePath(p string) error {
	if p == "" {
		return fmt.Errorf("%w: empty path", ErrInvalidEntry)
	}
	if strings.HasPrefix(p, "/") || strings.HasSuffix(p, "/") {
		return fmt.Errorf("%w: path %q must be relative with no trailing slash", ErrInvalidEntry, p)
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return fmt.Errorf("%w: path %q contains invalid segment", ErrInvalidEntry, p)
		}
	}
	return nil
}

// less orders entries byte-wise by path, then by stage ascending. This
// ordering is part of the on-disk contract, not a convenience.
func (e *Entry) less(other *Entry) bool {
	if e.Path != other.Path {
		return e.Path < other.Path
	}
	return e.Stage < other.Stage
}
