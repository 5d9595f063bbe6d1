package domain

import "github.com/shopspring/decimal"

// SnapshotRow is the persisted record of one holding.
// Corresponds to one data row of the snapshot workbook / portfolio_snapshot table.
type SnapshotRow struct {
	Name       string
	Symbol     string
	Mint       string          // primary key
	Quantity   decimal.Decimal // "Balance" column
	PriceUSD   decimal.Decimal
	MarketCap  decimal.Decimal
	TotalValue decimal.Decimal // always Quantity * PriceUSD
}

// NewSnapshotRow builds a row from an observation, deriving TotalValue.
func NewSnapshotRow(q PriceQuote, quantity decimal.Decimal) *SnapshotRow {
	return &SnapshotRow{
		Name:       q.Name,
		Symbol:     q.Symbol,
		Mint:       q.Mint,
		Quantity:   quantity,
		PriceUSD:   q.PriceUSD,
		MarketCap:  q.MarketCap,
		TotalValue: quantity.Mul(q.PriceUSD),
	}
}

// Recompute resets TotalValue from Quantity and PriceUSD.
func (r *SnapshotRow) Recompute() {
	r.TotalValue = r.Quantity.Mul(r.PriceUSD)
}

// SignificantChangeEvent reports a value increase on an existing row.
type SignificantChangeEvent struct {
	Name               string
	Symbol             string
	Mint               string
	PriceUSD           decimal.Decimal
	PreviousTotalValue decimal.Decimal
	NewTotalValue      decimal.Decimal
}

// ValuationPoint is one append-only history sample of a reconciled holding.
type ValuationPoint struct {
	CycleID     int64
	TimestampMs int64
	Mint        string
	Quantity    decimal.Decimal
	PriceUSD    decimal.Decimal
	TotalValue  decimal.Decimal
}
