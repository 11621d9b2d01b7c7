package backup

import (
	"sync"

	"github.com/mohae/deepcopy"
)

// ResultStore holds the most recent snapshot. Every value going in or out is
// a deep copy, so callers can keep mutating their maps without affecting a
// backup that is being written.
type ResultStore struct {
	mu       sync.RWMutex
	snapshot Snapshot
	updated  bool
}

// NewResultStore returns an empty store.
func NewResultStore() *ResultStore {
	return &ResultStore{snapshot: Snapshot{}}
}

// Update replaces the held snapshot wholesale. A nil snapshot is stored as an
// empty one.
func (s *ResultStore) Update(snapshot Snapshot) {
	copied := copySnapshot(snapshot)

	s.mu.Lock()
	s.snapshot = copied
	s.updated = true
	s.mu.Unlock()
}

// Read returns an independent copy of the current snapshot. The boolean is
// false when Update was never called.
func (s *ResultStore) Read() (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.updated {
		return nil, false
	}
	return copySnapshot(s.snapshot), true
}

func copySnapshot(snapshot Snapshot) Snapshot {
	if snapshot == nil {
		return Snapshot{}
	}
	copied, ok := deepcopy.Copy(map[string]interface{}(snapshot)).(map[string]interface{})
	if !ok || copied == nil {
		return Snapshot{}
	}
	return Snapshot(copied)
}
