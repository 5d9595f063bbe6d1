package storage

import (
	"context"

	"github.com/pkg/errors"

	"solana-portfolio-watch/internal/domain"
)

// SnapshotStore holds the latest known state of each holding, one row per mint.
type SnapshotStore interface {
	// Get retrieves the row for mint. Returns ErrNotFound if absent.
	Get(ctx context.Context, mint string) (*domain.SnapshotRow, error)

	// Upsert inserts a new row or replaces every value of the existing row in place.
	// The write is durable when Upsert returns.
	Upsert(ctx context.Context, row *domain.SnapshotRow) error

	// ListAll returns all rows in insertion order.
	ListAll(ctx context.Context) ([]*domain.SnapshotRow, error)
}

// ValuationHistoryStore provides append-only access to valuation history.
type ValuationHistoryStore interface {
	// InsertBulk adds points atomically. Returns ErrDuplicateKey if any (cycle_id, mint) exists.
	InsertBulk(ctx context.Context, points []*domain.ValuationPoint) error

	// GetByMint retrieves all points for a mint, ordered by timestamp ASC.
	GetByMint(ctx context.Context, mint string) ([]*domain.ValuationPoint, error)

	// GetByTimeRange retrieves points for a mint within [start, end] (inclusive).
	GetByTimeRange(ctx context.Context, mint string, start, end int64) ([]*domain.ValuationPoint, error)
}

// PrepareRow validates row and recomputes its TotalValue.
// Every SnapshotStore calls it before writing.
func PrepareRow(row *domain.SnapshotRow) error {
	if row == nil {
		return errors.Wrap(ErrInvalidInput, "nil row")
	}
	if row.Mint == "" {
		return errors.Wrap(ErrInvalidInput, "empty mint")
	}
	if row.Quantity.IsNegative() || row.PriceUSD.IsNegative() || row.MarketCap.IsNegative() {
		return errors.Wrapf(ErrInvalidInput, "negative value for %s", row.Mint)
	}
	row.Recompute()
	return nil
}

// HistoryKey identifies a valuation point in append-only stores.
type HistoryKey struct {
	CycleID int64
	Mint    string
}

// ValidatePoint checks a valuation point before insertion.
func ValidatePoint(p *domain.ValuationPoint) error {
	if p == nil {
		return errors.Wrap(ErrInvalidInput, "nil point")
	}
	if p.Mint == "" {
		return errors.Wrap(ErrInvalidInput, "empty mint")
	}
	return nil
}
