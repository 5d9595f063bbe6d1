package clickhouse

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"solana-portfolio-watch/internal/domain"
	"solana-portfolio-watch/internal/observability"
	"solana-portfolio-watch/internal/storage"
)

// ValuationHistoryStore implements storage.ValuationHistoryStore using ClickHouse.
// MergeTree does not enforce uniqueness, so duplicates are checked before insert.
type ValuationHistoryStore struct {
	conn *Conn
}

// NewValuationHistoryStore creates a new ValuationHistoryStore.
func NewValuationHistoryStore(conn *Conn) *ValuationHistoryStore {
	return &ValuationHistoryStore{conn: conn}
}

// Compile-time interface check.
var _ storage.ValuationHistoryStore = (*ValuationHistoryStore)(nil)

// InsertBulk adds multiple points. Fails entire batch on duplicate (cycle_id, mint).
func (s *ValuationHistoryStore) InsertBulk(ctx context.Context, points []*domain.ValuationPoint) (err error) {
	if len(points) == 0 {
		return nil
	}
	defer record("insert_bulk", time.Now(), &err)

	seen := make(map[storage.HistoryKey]struct{}, len(points))
	for _, p := range points {
		if err := storage.ValidatePoint(p); err != nil {
			return err
		}
		k := storage.HistoryKey{CycleID: p.CycleID, Mint: p.Mint}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	for _, p := range points {
		exists, err := s.exists(ctx, p.CycleID, p.Mint)
		if err != nil {
			return errors.Wrap(err, "check exists")
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO valuation_history (
			cycle_id, timestamp_ms, mint, quantity, price_usd, total_value
		)
	`)
	if err != nil {
		return errors.Wrap(err, "prepare batch")
	}

	for _, p := range points {
		err = batch.Append(
			p.CycleID, p.TimestampMs, p.Mint,
			p.Quantity.String(), p.PriceUSD.String(), p.TotalValue.String(),
		)
		if err != nil {
			return errors.Wrap(err, "append to batch")
		}
	}

	if err := batch.Send(); err != nil {
		return errors.Wrap(err, "send batch")
	}

	return nil
}

// GetByMint retrieves all points for a mint, ordered by timestamp ASC.
func (s *ValuationHistoryStore) GetByMint(ctx context.Context, mint string) (points []*domain.ValuationPoint, err error) {
	defer record("get_by_mint", time.Now(), &err)

	query := `
		SELECT cycle_id, timestamp_ms, mint, quantity, price_usd, total_value
		FROM valuation_history
		WHERE mint = ?
		ORDER BY timestamp_ms ASC, cycle_id ASC
	`

	rows, err := s.conn.Query(ctx, query, mint)
	if err != nil {
		return nil, errors.Wrap(err, "query by mint")
	}
	defer rows.Close()

	return scanValuationPoints(rows)
}

// GetByTimeRange retrieves points for a mint within [start, end] (inclusive).
func (s *ValuationHistoryStore) GetByTimeRange(ctx context.Context, mint string, start, end int64) (points []*domain.ValuationPoint, err error) {
	defer record("get_by_time_range", time.Now(), &err)

	query := `
		SELECT cycle_id, timestamp_ms, mint, quantity, price_usd, total_value
		FROM valuation_history
		WHERE mint = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC, cycle_id ASC
	`

	rows, err := s.conn.Query(ctx, query, mint, start, end)
	if err != nil {
		return nil, errors.Wrap(err, "query by time range")
	}
	defer rows.Close()

	return scanValuationPoints(rows)
}

// exists checks if a point with the given key exists.
func (s *ValuationHistoryStore) exists(ctx context.Context, cycleID int64, mint string) (bool, error) {
	query := `
		SELECT count(*) FROM valuation_history
		WHERE cycle_id = ? AND mint = ?
	`

	var count uint64
	if err := s.conn.QueryRow(ctx, query, cycleID, mint).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// scanValuationPoints scans multiple rows.
func scanValuationPoints(rows chRows) ([]*domain.ValuationPoint, error) {
	var points []*domain.ValuationPoint

	for rows.Next() {
		var p domain.ValuationPoint
		var quantity, price, total string

		if err := rows.Scan(&p.CycleID, &p.TimestampMs, &p.Mint, &quantity, &price, &total); err != nil {
			return nil, errors.Wrap(err, "scan valuation row")
		}

		var err error
		if p.Quantity, err = decimal.NewFromString(quantity); err != nil {
			return nil, errors.Wrapf(err, "parse quantity %q", quantity)
		}
		if p.PriceUSD, err = decimal.NewFromString(price); err != nil {
			return nil, errors.Wrapf(err, "parse price %q", price)
		}
		if p.TotalValue, err = decimal.NewFromString(total); err != nil {
			return nil, errors.Wrapf(err, "parse total value %q", total)
		}

		points = append(points, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate valuation rows")
	}

	return points, nil
}

func record(op string, start time.Time, err *error) {
	observability.RecordDBQuery("clickhouse", op, time.Since(start).Seconds(), *err)
}
