package pricing

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"solana-portfolio-watch/internal/domain"
	"solana-portfolio-watch/internal/observability"
)

// DefaultConcurrency is the default number of in-flight price lookups.
const DefaultConcurrency = 8

// MetadataResolver resolves a mint's display name and symbol from another source.
type MetadataResolver interface {
	Resolve(ctx context.Context, mint string) (name, symbol string, err error)
}

// Enricher fans out price lookups for a set of mints.
type Enricher struct {
	source      Source
	resolver    MetadataResolver
	concurrency int
	logger      *zap.Logger
}

// EnricherOptions configures an Enricher.
type EnricherOptions struct {
	Source      Source
	Resolver    MetadataResolver // optional
	Concurrency int
	Logger      *zap.Logger
}

// NewEnricher creates a new Enricher.
func NewEnricher(opts EnricherOptions) *Enricher {
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Enricher{
		source:      opts.Source,
		resolver:    opts.Resolver,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Enrich returns one quote per mint, in input order.
// A failed lookup yields a failure-variant quote for that mint only.
func (e *Enricher) Enrich(ctx context.Context, mints []string) []domain.PriceQuote {
	quotes := make([]domain.PriceQuote, len(mints))

	var g errgroup.Group
	g.SetLimit(e.concurrency)

	for i, mint := range mints {
		g.Go(func() error {
			quotes[i] = e.lookup(ctx, mint)
			return nil
		})
	}

	// lookups never return errors; failures live in the quotes
	_ = g.Wait()

	return quotes
}

func (e *Enricher) lookup(ctx context.Context, mint string) domain.PriceQuote {
	quote, err := e.source.Quote(ctx, mint)
	if err != nil {
		observability.RecordPriceLookup("error")
		return domain.FailedQuote(mint, err)
	}
	observability.RecordPriceLookup("ok")

	quote.Mint = mint
	if e.resolver != nil && quote.HasPlaceholderNames() {
		e.fillNames(ctx, &quote)
	}

	return quote
}

func (e *Enricher) fillNames(ctx context.Context, quote *domain.PriceQuote) {
	name, symbol, err := e.resolver.Resolve(ctx, quote.Mint)
	if err != nil {
		e.logger.Debug("metadata lookup failed", zap.String("mint", quote.Mint), zap.Error(err))
		return
	}

	if name != "" && (quote.Name == "" || quote.Name == domain.UnknownName) {
		quote.Name = name
	}
	if symbol != "" && (quote.Symbol == "" || quote.Symbol == domain.UnknownSymbol) {
		quote.Symbol = symbol
	}
}
