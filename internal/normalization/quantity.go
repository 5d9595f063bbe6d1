// Package normalization converts raw on-chain token amounts into holdings.
package normalization

import (
	"math/big"

	"github.com/shopspring/decimal"

	"solana-portfolio-watch/internal/domain"
)

// NormalizeQuantity returns amount / 10^decimals without rounding.
func NormalizeQuantity(amount *big.Int, decimals uint8) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amount, -int32(decimals))
}

// Normalize converts raw balances to holdings, preserving order.
// Zero, negative and nil amounts are not holdings and are dropped.
func Normalize(balances []domain.RawBalance) []domain.Holding {
	holdings := make([]domain.Holding, 0, len(balances))
	for _, b := range balances {
		q := NormalizeQuantity(b.Amount, b.Decimals)
		if !q.IsPositive() {
			continue
		}
		holdings = append(holdings, domain.Holding{Mint: b.Mint, Quantity: q})
	}
	return holdings
}

// Mints returns the mint of each holding in order.
func Mints(holdings []domain.Holding) []string {
	mints := make([]string, len(holdings))
	for i, h := range holdings {
		mints[i] = h.Mint
	}
	return mints
}
