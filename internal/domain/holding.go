package domain

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// RawBalance is an on-chain token amount as reported by the balance source.
// Amount is in base units; Decimals is the mint's decimal places.
type RawBalance struct {
	Mint     string
	Amount   *big.Int
	Decimals uint8
}

// Holding is one token position of the monitored account.
type Holding struct {
	Mint     string
	Quantity decimal.Decimal // human-readable, always > 0
}
