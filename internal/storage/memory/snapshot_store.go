package memory

import (
	"context"
	"sync"

	"solana-portfolio-watch/internal/domain"
	"solana-portfolio-watch/internal/storage"
)

// SnapshotStore is an in-memory implementation of storage.SnapshotStore.
type SnapshotStore struct {
	mu    sync.RWMutex
	data  map[string]*domain.SnapshotRow // keyed by mint
	order []string                       // insertion order
}

// NewSnapshotStore creates a new in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		data: make(map[string]*domain.SnapshotRow),
	}
}

// Get retrieves the row for mint. Returns ErrNotFound if absent.
func (s *SnapshotStore) Get(_ context.Context, mint string) (*domain.SnapshotRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.data[mint]
	if !ok {
		return nil, storage.ErrNotFound
	}

	copy := *row
	return &copy, nil
}

// Upsert inserts or replaces the row for row.Mint.
func (s *SnapshotStore) Upsert(_ context.Context, row *domain.SnapshotRow) error {
	if row == nil {
		return storage.ErrInvalidInput
	}

	copy := *row
	if err := storage.PrepareRow(&copy); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[copy.Mint]; !exists {
		s.order = append(s.order, copy.Mint)
	}
	s.data[copy.Mint] = &copy
	return nil
}

// ListAll returns all rows in insertion order.
func (s *SnapshotStore) ListAll(_ context.Context) ([]*domain.SnapshotRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.SnapshotRow, 0, len(s.order))
	for _, mint := range s.order {
		copy := *s.data[mint]
		result = append(result, &copy)
	}

	return result, nil
}

var _ storage.SnapshotStore = (*SnapshotStore)(nil)
