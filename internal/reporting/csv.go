package reporting

import (
	"encoding/csv"
	"strings"
)

// RenderCSV renders report rows as CSV, ending with a total line.
// Numbers keep their exact decimal text.
func RenderCSV(r *Report) (string, error) {
	var sb strings.Builder
	w := csv.NewWriter(&sb)

	header := []string{"token_name", "symbol", "mint", "balance", "price_usd", "market_cap", "total_value"}
	if r.Window > 0 {
		header = append(header, "change")
	}
	if err := w.Write(header); err != nil {
		return "", err
	}

	for _, row := range r.Rows {
		rec := []string{
			row.Name,
			row.Symbol,
			row.Mint,
			row.Quantity.String(),
			row.PriceUSD.String(),
			row.MarketCap.String(),
			row.TotalValue.String(),
		}
		if r.Window > 0 {
			change := ""
			if row.Change != nil {
				change = row.Change.String()
			}
			rec = append(rec, change)
		}
		if err := w.Write(rec); err != nil {
			return "", err
		}
	}

	total := make([]string, len(header))
	total[0] = "TOTAL"
	total[6] = r.Total.String()
	if err := w.Write(total); err != nil {
		return "", err
	}

	w.Flush()
	return sb.String(), w.Error()
}
