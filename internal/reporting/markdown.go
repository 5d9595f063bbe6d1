package reporting

import (
	"fmt"
	"strings"
	"time"

	"solana-portfolio-watch/internal/notify"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	sb.WriteString("# Portfolio Snapshot\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))

	if len(r.Rows) == 0 {
		sb.WriteString("No holdings recorded.\n")
		return sb.String()
	}

	withChange := r.Window > 0
	if withChange {
		sb.WriteString("| Token | Symbol | Mint | Balance | Price USD | Market Cap | Total Value | Change (" + r.Window.String() + ") |\n")
		sb.WriteString("|-------|--------|------|---------|-----------|------------|-------------|--------|\n")
	} else {
		sb.WriteString("| Token | Symbol | Mint | Balance | Price USD | Market Cap | Total Value |\n")
		sb.WriteString("|-------|--------|------|---------|-----------|------------|-------------|\n")
	}

	for _, row := range r.Rows {
		sb.WriteString(fmt.Sprintf("| %s | %s | `%s` | %s | %s | %s | %s |",
			escapeCell(row.Name), escapeCell(row.Symbol), row.Mint,
			row.Quantity.String(), row.PriceUSD.String(),
			notify.FormatUSD(row.MarketCap), notify.FormatUSD(row.TotalValue)))
		if withChange {
			change := "n/a"
			if row.Change != nil {
				change = notify.FormatUSD(row.Change.Abs())
				if row.Change.IsNegative() {
					change = "-" + change
				} else {
					change = "+" + change
				}
			}
			sb.WriteString(" " + change + " |")
		}
		sb.WriteString("\n")
	}

	sb.WriteString(fmt.Sprintf("\n**Total: %s** across %d holdings\n", notify.FormatUSD(r.Total), len(r.Rows)))

	return sb.String()
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}
