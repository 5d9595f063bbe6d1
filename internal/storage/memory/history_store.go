package memory

import (
	"context"
	"sort"
	"sync"

	"solana-portfolio-watch/internal/domain"
	"solana-portfolio-watch/internal/storage"
)

// ValuationHistoryStore is an in-memory implementation of storage.ValuationHistoryStore.
type ValuationHistoryStore struct {
	mu   sync.RWMutex
	data map[storage.HistoryKey]*domain.ValuationPoint
}

// NewValuationHistoryStore creates a new in-memory valuation history store.
func NewValuationHistoryStore() *ValuationHistoryStore {
	return &ValuationHistoryStore{
		data: make(map[storage.HistoryKey]*domain.ValuationPoint),
	}
}

// InsertBulk adds multiple points atomically. Fails entire batch on any duplicate.
func (s *ValuationHistoryStore) InsertBulk(_ context.Context, points []*domain.ValuationPoint) error {
	if len(points) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[storage.HistoryKey]struct{}, len(points))
	for _, p := range points {
		if err := storage.ValidatePoint(p); err != nil {
			return err
		}
		key := storage.HistoryKey{CycleID: p.CycleID, Mint: p.Mint}
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, p := range points {
		copy := *p
		s.data[storage.HistoryKey{CycleID: p.CycleID, Mint: p.Mint}] = &copy
	}

	return nil
}

// GetByMint retrieves all points for a mint, ordered by timestamp ASC.
func (s *ValuationHistoryStore) GetByMint(_ context.Context, mint string) ([]*domain.ValuationPoint, error) {
	return s.filter(mint, func(*domain.ValuationPoint) bool { return true }), nil
}

// GetByTimeRange retrieves points for a mint within [start, end] (inclusive).
func (s *ValuationHistoryStore) GetByTimeRange(_ context.Context, mint string, start, end int64) ([]*domain.ValuationPoint, error) {
	return s.filter(mint, func(p *domain.ValuationPoint) bool {
		return p.TimestampMs >= start && p.TimestampMs <= end
	}), nil
}

func (s *ValuationHistoryStore) filter(mint string, keep func(*domain.ValuationPoint) bool) []*domain.ValuationPoint {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ValuationPoint
	for _, p := range s.data {
		if p.Mint == mint && keep(p) {
			copy := *p
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].TimestampMs != result[j].TimestampMs {
			return result[i].TimestampMs < result[j].TimestampMs
		}
		return result[i].CycleID < result[j].CycleID
	})

	return result
}

var _ storage.ValuationHistoryStore = (*ValuationHistoryStore)(nil)
