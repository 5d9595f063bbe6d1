// Package notify renders significant change events and delivers them to an operator.
package notify

import (
	"fmt"
	"math"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"solana-portfolio-watch/internal/domain"
)

// Render formats an event as the operator message.
func Render(ev domain.SignificantChangeEvent) string {
	return fmt.Sprintf("Token: %s (%s)\nMint Address: %s\nNew Total Value: %s",
		ev.Name, ev.Symbol, ev.Mint, FormatUSD(ev.NewTotalValue))
}

// maxCents is the largest cent amount go-money can hold in an int64.
var maxCents = decimal.NewFromInt(math.MaxInt64)

// FormatUSD renders v rounded to cents with thousands separators, e.g. $1,234.56.
func FormatUSD(v decimal.Decimal) string {
	cents := v.Round(2).Shift(2)
	if cents.Abs().GreaterThan(maxCents) {
		return formatLarge(v)
	}
	return money.New(cents.IntPart(), money.USD).Display()
}

// formatLarge groups the digits of v.StringFixed(2) for amounts past int64 cents.
func formatLarge(v decimal.Decimal) string {
	s := v.Abs().StringFixed(2)
	whole, frac := s[:len(s)-3], s[len(s)-3:]

	var sb strings.Builder
	if v.IsNegative() {
		sb.WriteString("-")
	}
	sb.WriteString("$")
	for i, c := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			sb.WriteString(",")
		}
		sb.WriteRune(c)
	}
	sb.WriteString(frac)
	return sb.String()
}
