package index

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"keel/internal/object"
)

// treeRow is one (mode, name, id) line of a tree object.
type treeRow struct {
	mode Mode
	name string
	id   object.ID
}

// sortKey implements git's tree ordering: a directory name compares as if
// it were suffixed with '/'. Both build directions must use this rule or
// hashes silently diverge from the canonical format.
func (r *treeRow) sortKey() string {
	if r.mode == ModeTree {
		return r.name + "/"
	}
	return r.name
}

// buildTree recursively writes the tree hierarchy for a sorted run of
// entries sharing the directory prefix, children before parents, and
// returns the id of the tree at that level.
func buildTree(entries []Entry, prefix string, store object.Store) (object.ID, error) {
	rows := make([]treeRow, 0, len(entries))

	for i := 0; i < len(entries); {
		rel := entries[i].Path[len(prefix):]
		slash := strings.IndexByte(rel, '/')
		if slash < 0 {
			rows = append(rows, treeRow{
				mode: entries[i].Mode,
				name: rel,
				id:   entries[i].ID,
			})
			i++
			continue
		}

		dir := rel[:slash]
		sub := prefix + dir + "/"
		j := i
		for j < len(entries) && strings.HasPrefix(entries[j].Path, sub) {
			j++
		}
		id, err := buildTree(entries[i:j], sub, store)
		if err != nil {
			return object.ID{}, err
		}
		rows = append(rows, treeRow{mode: ModeTree, name: dir, id: id})
		i = j
	}

	sort.Slice(rows, func(a, b int) bool {
		return rows[a].sortKey() < rows[b].sortKey()
	})

	id, err := store.HashAndStore(object.Tree, encodeTree(rows))
	if err != nil {
		return object.ID{}, fmt.Errorf("storing tree for %q: %w", prefix, err)
	}
	return id, nil
}

// encodeTree serializes rows in the canonical form: octal mode without
// leading zeros, space, name, NUL, raw 20-byte id.
func encodeTree(rows []treeRow) []byte {
	var buf bytes.Buffer
	for i := range rows {
		buf.WriteString(strconv.FormatUint(uint64(rows[i].mode), 8))
		buf.WriteByte(' ')
		buf.WriteString(rows[i].name)
		buf.WriteByte(0)
		buf.Write(rows[i].id[:])
	}
	return buf.Bytes()
}

func decodeTree(data []byte) ([]treeRow, error) {
	var rows []treeRow
	for len(data) > 0 {
		sp := bytes.IndexByte(data, ' ')
		if sp < 0 {
			return nil, fmt.Errorf("%w: tree row missing mode", object.ErrCorruptObject)
		}
		mode, err := strconv.ParseUint(string(data[:sp]), 8, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: bad tree mode %q", object.ErrCorruptObject, string(data[:sp]))
		}
		data = data[sp+1:]

		nul := bytes.IndexByte(data, 0)
		if nul < 0 {
			return nil, fmt.Errorf("%w: tree row missing name terminator", object.ErrCorruptObject)
		}
		name := string(data[:nul])
		data = data[nul+1:]

		if len(data) < object.IDLen {
			return nil, fmt.Errorf("%w: tree row truncated id", object.ErrCorruptObject)
		}
		var id object.ID
		copy(id[:], data[:object.IDLen])
		data = data[object.IDLen:]

		rows = append(rows, treeRow{mode: Mode(mode), name: name, id: id})
	}
	return rows, nil
}

// validTreeName rejects row names no canonical tree contains: a name is
// one path segment, never empty, a dot entry, or slash-bearing.
func validTreeName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsRune(name, '/')
}

// flattenTree recursively descends the tree at id, appending stage-0
// entries with slash-joined paths to out.
func flattenTree(id object.ID, prefix string, store object.Store, out *[]Entry) error {
	typ, data, err := store.Load(id)
	if err != nil {
		return err
	}
	if typ != object.Tree {
		return fmt.Errorf("%w: %s is a %s, not a tree", object.ErrCorruptObject, id.Hex(), typ)
	}

	rows, err := decodeTree(data)
	if err != nil {
		return err
	}
	for i := range rows {
		if !validTreeName(rows[i].name) {
			return fmt.Errorf("%w: %s: bad tree entry name %q", object.ErrCorruptObject, id.Hex(), rows[i].name)
		}
		path := prefix + rows[i].name
		if rows[i].mode == ModeTree {
			if err := flattenTree(rows[i].id, path+"/", store, out); err != nil {
				return err
			}
			continue
		}
		*out = append(*out, Entry{
			Path: path,
			ID:   rows[i].id,
			Mode: rows[i].mode,
		})
	}
	return nil
}
