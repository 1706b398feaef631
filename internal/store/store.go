// Package store holds the in-memory grid item collection, the single source
// of truth for grid records during the process lifetime.
package store

import "sync"

// GridItem is a grid record. Identity is Id and never changes after creation.
type GridItem struct {
	Id          uint64 `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	X           int32  `json:"x"`
	Y           int32  `json:"y"`
}

// CreateGridItem carries the fields for a new record.
type CreateGridItem struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	X           int32  `json:"x"`
	Y           int32  `json:"y"`
}

// UpdateGridItem is a partial update; nil fields are left unchanged.
type UpdateGridItem struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	X           *int32  `json:"x"`
	Y           *int32  `json:"y"`
}

// Store is a concurrently accessible grid item collection. Reads share the
// lock; every write holds it exclusively for the whole scan-and-mutate step,
// which is what keeps max(ids)+1 assignment free of duplicates.
type Store struct {
	mu    sync.RWMutex
	items []GridItem
}

// New returns an empty store.
func New() *Store {
	return &Store{}
}

// List returns a snapshot of all items.
func (s *Store) List() []GridItem {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := make([]GridItem, len(s.items))
	copy(snapshot, s.items)
	return snapshot
}

// Get returns the item with the given id.
func (s *Store) Get(id uint64) (GridItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, item := range s.items {
		if item.Id == id {
			return item, true
		}
	}
	return GridItem{}, false
}

// Create inserts a new item. The id is max(existing ids)+1, computed and
// consumed under the same critical section. Ids are intentionally not handed
// out by a global counter; deleting the highest item makes its id reusable.
func (s *Store) Create(fields CreateGridItem) GridItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	var maxID uint64
	for _, item := range s.items {
		if item.Id > maxID {
			maxID = item.Id
		}
	}

	item := GridItem{
		Id:          maxID + 1,
		Name:        fields.Name,
		Description: fields.Description,
		X:           fields.X,
		Y:           fields.Y,
	}
	s.items = append(s.items, item)
	return item
}

// Update applies the non-nil fields of patch to the item with the given id.
// The second return is false when no such item exists.
func (s *Store) Update(id uint64, patch UpdateGridItem) (GridItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		if s.items[i].Id != id {
			continue
		}
		if patch.Name != nil {
			s.items[i].Name = *patch.Name
		}
		if patch.Description != nil {
			s.items[i].Description = *patch.Description
		}
		if patch.X != nil {
			s.items[i].X = *patch.X
		}
		if patch.Y != nil {
			s.items[i].Y = *patch.Y
		}
		return s.items[i], true
	}
	return GridItem{}, false
}

// Delete removes the item with the given id and reports whether one existed.
func (s *Store) Delete(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		if s.items[i].Id == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return true
		}
	}
	return false
}

// Len reports the current number of items.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
