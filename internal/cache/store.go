package cache

import (
	"sync"

	"github.com/bilgisen/nnews/internal/models"
)

// Store holds the current snapshot of every source family. Snapshots are
// swapped whole, so readers see either the previous or the next one.
type Store struct {
	mu        sync.RWMutex
	snapshots map[string]*models.Snapshot
}

func NewStore() *Store {
	return &Store{snapshots: make(map[string]*models.Snapshot)}
}

// Get returns the current snapshot for family, or nil before the first refresh.
func (s *Store) Get(family string) *models.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshots[family]
}

// Replace installs snap as the current snapshot for family.
func (s *Store) Replace(family string, snap *models.Snapshot) {
	s.mu.Lock()
	s.snapshots[family] = snap
	s.mu.Unlock()
}

// All returns the current snapshot of every family that has one.
func (s *Store) All() map[string]*models.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]*models.Snapshot, len(s.snapshots))
	for k, v := range s.snapshots {
		out[k] = v
	}
	return out
}
