package storage

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-portfolio-watch/internal/domain"
)

func TestPrepareRow(t *testing.T) {
	row := &domain.SnapshotRow{
		Mint:       "mint",
		Quantity:   decimal.RequireFromString("2.5"),
		PriceUSD:   decimal.RequireFromString("4"),
		TotalValue: decimal.RequireFromString("999"),
	}
	require.NoError(t, PrepareRow(row))
	assert.True(t, row.TotalValue.Equal(decimal.NewFromInt(10)))
}

func TestPrepareRow_Invalid(t *testing.T) {
	tests := []struct {
		name string
		row  *domain.SnapshotRow
	}{
		{"nil", nil},
		{"empty mint", &domain.SnapshotRow{}},
		{"negative quantity", &domain.SnapshotRow{Mint: "m", Quantity: decimal.NewFromInt(-1)}},
		{"negative price", &domain.SnapshotRow{Mint: "m", PriceUSD: decimal.NewFromInt(-1)}},
		{"negative mcap", &domain.SnapshotRow{Mint: "m", MarketCap: decimal.NewFromInt(-1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := PrepareRow(tt.row)
			assert.True(t, errors.Is(err, ErrInvalidInput))
		})
	}
}
