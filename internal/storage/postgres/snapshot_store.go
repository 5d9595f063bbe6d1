package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"solana-portfolio-watch/internal/domain"
	"solana-portfolio-watch/internal/observability"
	"solana-portfolio-watch/internal/storage"
)

// SnapshotStore implements storage.SnapshotStore using PostgreSQL.
// Numeric columns travel as text so values keep their exact decimal form.
type SnapshotStore struct {
	pool *Pool
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(pool *Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

const selectSnapshotColumns = `
	SELECT mint, name, symbol,
		quantity::text, price_usd::text, market_cap::text, total_value::text
	FROM portfolio_snapshot
`

// Get retrieves the row for mint. Returns ErrNotFound if absent.
func (s *SnapshotStore) Get(ctx context.Context, mint string) (row *domain.SnapshotRow, err error) {
	defer record("get", time.Now(), &err)

	row, err = scanSnapshotRow(s.pool.QueryRow(ctx, selectSnapshotColumns+` WHERE mint = $1`, mint))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, errors.Wrap(err, "get snapshot row")
	}
	return row, nil
}

// Upsert inserts the row or overwrites every value column of the existing one.
// The original insertion sequence is kept so ListAll order is stable.
func (s *SnapshotStore) Upsert(ctx context.Context, row *domain.SnapshotRow) (err error) {
	defer record("upsert", time.Now(), &err)

	if row == nil {
		return storage.ErrInvalidInput
	}
	r := *row
	if err := storage.PrepareRow(&r); err != nil {
		return err
	}

	query := `
		INSERT INTO portfolio_snapshot (
			mint, name, symbol, quantity, price_usd, market_cap, total_value, updated_at
		) VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6::numeric, $7::numeric, now())
		ON CONFLICT (mint) DO UPDATE SET
			name = EXCLUDED.name,
			symbol = EXCLUDED.symbol,
			quantity = EXCLUDED.quantity,
			price_usd = EXCLUDED.price_usd,
			market_cap = EXCLUDED.market_cap,
			total_value = EXCLUDED.total_value,
			updated_at = EXCLUDED.updated_at
	`

	_, err = s.pool.Exec(ctx, query,
		r.Mint,
		r.Name,
		r.Symbol,
		r.Quantity.String(),
		r.PriceUSD.String(),
		r.MarketCap.String(),
		r.TotalValue.String(),
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return errors.Wrap(err, "upsert snapshot row")
	}
	return nil
}

// ListAll returns all rows in insertion order.
func (s *SnapshotStore) ListAll(ctx context.Context) (result []*domain.SnapshotRow, err error) {
	defer record("list_all", time.Now(), &err)

	rows, err := s.pool.Query(ctx, selectSnapshotColumns+` ORDER BY seq ASC`)
	if err != nil {
		return nil, errors.Wrap(err, "list snapshot rows")
	}
	defer rows.Close()

	for rows.Next() {
		row, err := scanSnapshotRow(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan snapshot row")
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate snapshot rows")
	}

	return result, nil
}

// scanSnapshotRow scans a single row into SnapshotRow.
func scanSnapshotRow(row pgx.Row) (*domain.SnapshotRow, error) {
	var r domain.SnapshotRow
	var quantity, price, mcap, total string

	if err := row.Scan(&r.Mint, &r.Name, &r.Symbol, &quantity, &price, &mcap, &total); err != nil {
		return nil, err
	}

	for _, f := range []struct {
		src string
		dst *decimal.Decimal
	}{
		{quantity, &r.Quantity},
		{price, &r.PriceUSD},
		{mcap, &r.MarketCap},
		{total, &r.TotalValue},
	} {
		v, err := decimal.NewFromString(f.src)
		if err != nil {
			return nil, errors.Wrapf(err, "parse numeric %q", f.src)
		}
		*f.dst = v
	}

	return &r, nil
}

func record(op string, start time.Time, err *error) {
	observability.RecordDBQuery("postgres", op, time.Since(start).Seconds(), *err)
}
