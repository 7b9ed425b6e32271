package object

import (
	"fmt"
	"sync"
)

// Store is the narrow interface the index core depends on. Implementations
// must be content-addressed: storing identical framed bytes twice yields
// the same id and is harmless.
type Store interface {
	// HashAndStore writes an object and returns its id.
	HashAndStore(t Type, data []byte) (ID, error)

	// Load returns an object's type and body, or ErrMissingObject.
	Load(id ID) (Type, []byte, error)

	// Exists reports whether an object is present.
	Exists(id ID) bool
}

// MemStore keeps objects in memory. Used by standalone indexes and tests.
type MemStore struct {
	mu      sync.RWMutex
	objects map[ID][]byte
}

func NewMemStore() *MemStore {
	return &MemStore{objects: make(map[ID][]byte)}
}

func (s *MemStore) HashAndStore(t Type, data []byte) (ID, error) {
	if !t.valid() {
		return ID{}, fmt.Errorf("storing object: unknown type %q", string(t))
	}
	framed := frame(t, data)
	id := Hash(t, data)

	s.mu.Lock()
	if _, ok := s.objects[id]; !ok {
		s.objects[id] = framed
	}
	s.mu.Unlock()
	return id, nil
}

func (s *MemStore) Load(id ID) (Type, []byte, error) {
	s.mu.RLock()
	framed, ok := s.objects[id]
	s.mu.RUnlock()
	if !ok {
		return "", nil, fmt.Errorf("%w: %s", ErrMissingObject, id.Hex())
	}
	return unframe(framed)
}

func (s *MemStore) Exists(id ID) bool {
	s.mu.RLock()
	_, ok := s.objects[id]
	s.mu.RUnlock()
	return ok
}

// Len reports the number of stored objects.
func (s *MemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
