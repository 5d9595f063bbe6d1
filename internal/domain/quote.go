package domain

import "github.com/shopspring/decimal"

// Placeholders used when the price source omits display fields.
const (
	UnknownName   = "Unknown"
	UnknownSymbol = "N/A"
)

// PriceQuote is the enrichment result for one mint.
// A quote with a non-nil Err is the failure variant; its other fields are unset.
type PriceQuote struct {
	Mint      string
	Name      string
	Symbol    string
	PriceUSD  decimal.Decimal
	MarketCap decimal.Decimal
	Err       error
}

// OK reports whether the quote carries a price.
func (q PriceQuote) OK() bool {
	return q.Err == nil
}

// FailedQuote builds the failure variant for mint.
func FailedQuote(mint string, err error) PriceQuote {
	return PriceQuote{Mint: mint, Err: err}
}

// HasPlaceholderNames reports whether name or symbol fell back to a placeholder.
func (q PriceQuote) HasPlaceholderNames() bool {
	return q.Name == "" || q.Name == UnknownName || q.Symbol == "" || q.Symbol == UnknownSymbol
}
