package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/tendant/stash/pkg/stash"
)

// Store implements stash.Store using an in-memory map keyed by an
// incrementing id.
type Store struct {
	mu      sync.RWMutex
	nextID  int64
	records map[int64]*stash.Record
	byOwner map[string][]int64 // owner_id -> ids in insertion order
}

// New creates a new in-memory store
func New() *Store {
	return &Store{
		records: make(map[int64]*stash.Record),
		byOwner: make(map[string][]int64),
	}
}

func (s *Store) Insert(ctx context.Context, rec *stash.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	rec.ID = s.nextID

	// Store a copy to avoid external modifications
	s.records[rec.ID] = rec.Clone()
	s.byOwner[rec.OwnerID] = append(s.byOwner[rec.OwnerID], rec.ID)
	return nil
}

func (s *Store) Get(ctx context.Context, id int64) (*stash.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.records[id]
	if !exists {
		return nil, stash.ErrItemNotFound
	}
	return rec.Clone(), nil
}

func (s *Store) Update(ctx context.Context, rec *stash.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.records[rec.ID]
	if !exists {
		return stash.ErrItemNotFound
	}

	updated := rec.Clone()
	// Owner and creation time are immutable at the storage level too
	updated.OwnerID = existing.OwnerID
	updated.CreatedAt = existing.CreatedAt
	s.records[rec.ID] = updated
	return nil
}

func (s *Store) Delete(ctx context.Context, id int64) (*stash.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.records[id]
	if !exists {
		return nil, stash.ErrItemNotFound
	}
	delete(s.records, id)

	ids := s.byOwner[rec.OwnerID]
	for i, candidate := range ids {
		if candidate == id {
			s.byOwner[rec.OwnerID] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	if len(s.byOwner[rec.OwnerID]) == 0 {
		delete(s.byOwner, rec.OwnerID)
	}
	return rec, nil
}

func (s *Store) ListByOwner(ctx context.Context, ownerID string) ([]*stash.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byOwner[ownerID]
	result := make([]*stash.Record, 0, len(ids))
	for _, id := range ids {
		if rec, ok := s.records[id]; ok {
			result = append(result, rec.Clone())
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// Len returns the number of stored rows
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
