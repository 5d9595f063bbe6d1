// Package pricing looks up USD prices for token mints.
package pricing

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"solana-portfolio-watch/internal/domain"
)

// DefaultTimeout bounds a single price lookup.
const DefaultTimeout = 15 * time.Second

// ErrDetailsNotFound is returned when the price response has no priceUsd.
var ErrDetailsNotFound = errors.New("details not found")

// Source resolves a price quote for one mint.
type Source interface {
	Quote(ctx context.Context, mint string) (domain.PriceQuote, error)
}

// HTTPSource queries a token details endpoint of the form {endpoint}/{mint}?quote_address={quote}.
type HTTPSource struct {
	endpoint     string
	quoteAddress string
	client       *http.Client
}

// HTTPSourceOptions configures an HTTPSource.
type HTTPSourceOptions struct {
	Endpoint     string
	QuoteAddress string
	Client       *http.Client
}

// NewHTTPSource creates a new HTTP price source.
func NewHTTPSource(opts HTTPSourceOptions) *HTTPSource {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}

	return &HTTPSource{
		endpoint:     strings.TrimRight(opts.Endpoint, "/"),
		quoteAddress: opts.QuoteAddress,
		client:       client,
	}
}

var _ Source = (*HTTPSource)(nil)

// tokenDetails is the price endpoint response body.
type tokenDetails struct {
	Name     *string          `json:"name"`
	Symbol   *string          `json:"symbol"`
	PriceUSD *decimal.Decimal `json:"priceUsd"`
	MCap     *decimal.Decimal `json:"mcap"`
}

// Quote fetches the current price for mint. It does not retry.
func (s *HTTPSource) Quote(ctx context.Context, mint string) (domain.PriceQuote, error) {
	u := s.endpoint + "/" + url.PathEscape(mint) + "?quote_address=" + url.QueryEscape(s.quoteAddress)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return domain.PriceQuote{}, errors.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return domain.PriceQuote{}, errors.Wrapf(err, "fetch details for %s", mint)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.PriceQuote{}, errors.Wrap(err, "read response")
	}

	if resp.StatusCode != http.StatusOK {
		return domain.PriceQuote{}, errors.Errorf("unexpected status %d for %s", resp.StatusCode, mint)
	}

	var details tokenDetails
	if err := json.Unmarshal(body, &details); err != nil {
		return domain.PriceQuote{}, errors.Wrapf(err, "decode details for %s", mint)
	}

	if details.PriceUSD == nil {
		return domain.PriceQuote{}, errors.Wrapf(ErrDetailsNotFound, "%s", mint)
	}
	if details.PriceUSD.IsNegative() {
		return domain.PriceQuote{}, errors.Errorf("negative price %s for %s", details.PriceUSD, mint)
	}

	quote := domain.PriceQuote{
		Mint:     mint,
		Name:     domain.UnknownName,
		Symbol:   domain.UnknownSymbol,
		PriceUSD: *details.PriceUSD,
	}
	if details.Name != nil && *details.Name != "" {
		quote.Name = *details.Name
	}
	if details.Symbol != nil && *details.Symbol != "" {
		quote.Symbol = *details.Symbol
	}
	if details.MCap != nil && !details.MCap.IsNegative() {
		quote.MarketCap = *details.MCap
	}

	return quote, nil
}
