package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-portfolio-watch/internal/domain"
	"solana-portfolio-watch/internal/storage"
)

func testRow(mint, qty, price string) *domain.SnapshotRow {
	return &domain.SnapshotRow{
		Name:      "Token " + mint,
		Symbol:    mint,
		Mint:      mint,
		Quantity:  decimal.RequireFromString(qty),
		PriceUSD:  decimal.RequireFromString(price),
		MarketCap: decimal.RequireFromString("123456789.12"),
	}
}

func TestSnapshotStore_RoundTrip(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSnapshotStore(pool)
	ctx := context.Background()

	in := testRow("DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263", "18446744073709.551615", "0.0000215")
	require.NoError(t, store.Upsert(ctx, in))

	got, err := store.Get(ctx, in.Mint)
	require.NoError(t, err)

	assert.Equal(t, in.Name, got.Name)
	assert.Equal(t, in.Symbol, got.Symbol)
	assert.True(t, in.Quantity.Equal(got.Quantity))
	assert.True(t, in.PriceUSD.Equal(got.PriceUSD))
	assert.True(t, in.MarketCap.Equal(got.MarketCap))
	assert.True(t, in.Quantity.Mul(in.PriceUSD).Equal(got.TotalValue))
}

func TestSnapshotStore_UpsertKeepsOrder(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSnapshotStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, testRow("A", "1", "1")))
	require.NoError(t, store.Upsert(ctx, testRow("B", "1", "1")))
	require.NoError(t, store.Upsert(ctx, testRow("A", "5", "3")))

	rows, err := store.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "A", rows[0].Mint)
	assert.True(t, rows[0].TotalValue.Equal(decimal.NewFromInt(15)))
	assert.Equal(t, "B", rows[1].Mint)
}

func TestSnapshotStore_NotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSnapshotStore(pool)

	_, err := store.Get(context.Background(), "missing")
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestSnapshotStore_InvalidInput(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSnapshotStore(pool)

	err := store.Upsert(context.Background(), testRow("", "1", "1"))
	assert.True(t, errors.Is(err, storage.ErrInvalidInput))
}
