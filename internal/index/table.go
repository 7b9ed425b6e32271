package index

import "sort"

// table is the sorted, unique-by-(path, stage) entry sequence behind an
// Index. All mutation funnels through upsert and remove so the ordering
// and uniqueness invariants can only be maintained, never repaired.
type table struct {
	entries []Entry
}

// search returns the insertion point for (path, stage) and whether an
// entry with exactly that key is already there.
func (t *table) search(path string, stage Stage) (int, bool) {
	key := Entry{Path: path, Stage: stage}
	i := sort.Search(len(t.entries), func(i int) bool {
		return !t.entries[i].less(&key)
	})
	found := i < len(t.entries) && t.entries[i].Path == path && t.entries[i].Stage == stage
	return i, found
}

// get returns a copy of the entry at (path, stage).
func (t *table) get(path string, stage Stage) (Entry, bool) {
	i, ok := t.search(path, stage)
	if !ok {
		return Entry{}, false
	}
	return t.entries[i], true
}

// contains reports whether any stage of path is present.
func (t *table) contains(path string) bool {
	i, ok := t.search(path, StageNormal)
	if ok {
		return true
	}
	return i < len(t.entries) && t.entries[i].Path == path
}

// upsert inserts e in order, replacing an existing entry with the same
// (path, stage). A stage-0 insert evicts conflict stages for the path and
// a conflict-stage insert evicts the stage-0 entry, keeping the two
// mutually exclusive. It is the single mutation primitive used by add.
func (t *table) upsert(e Entry) {
	if e.Stage == StageNormal {
		t.dropStages(e.Path, StageAncestor, StageTheirs)
	} else {
		t.dropStages(e.Path, StageNormal, StageNormal)
	}
	i, found := t.search(e.Path, e.Stage)
	if found {
		t.entries[i] = e
		return
	}
	t.entries = append(t.entries, Entry{})
	copy(t.entries[i+1:], t.entries[i:])
	t.entries[i] = e
}

// dropStages removes entries for path whose stage lies in [lo, hi].
func (t *table) dropStages(path string, lo, hi Stage) {
	i, _ := t.search(path, lo)
	j := i
	for j < len(t.entries) && t.entries[j].Path == path && t.entries[j].Stage <= hi {
		j++
	}
	if j > i {
		t.entries = append(t.entries[:i], t.entries[j:]...)
	}
}

// remove drops every stage of path, reporting whether anything was there.
func (t *table) remove(path string) bool {
	i, _ := t.search(path, StageNormal)
	j := i
	for j < len(t.entries) && t.entries[j].Path == path {
		j++
	}
	if j == i {
		return false
	}
	t.entries = append(t.entries[:i], t.entries[j:]...)
	return true
}

func (t *table) clear() {
	t.entries = t.entries[:0]
}

func (t *table) len() int {
	return len(t.entries)
}

// snapshot copies the entry sequence. Iteration works over snapshots so
// mutating the table never disturbs an iteration already begun.
func (t *table) snapshot() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// unmerged reports whether any conflict-stage entry remains.
func (t *table) unmerged() bool {
	for i := range t.entries {
		if t.entries[i].Stage != StageNormal {
			return true
		}
	}
	return false
}
