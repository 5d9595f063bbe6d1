// Package watcher runs the periodic balance → price → reconcile → notify cycle.
package watcher

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"solana-portfolio-watch/internal/balance"
	"solana-portfolio-watch/internal/domain"
	"solana-portfolio-watch/internal/normalization"
	"solana-portfolio-watch/internal/notify"
	"solana-portfolio-watch/internal/observability"
	"solana-portfolio-watch/internal/reconcile"
	"solana-portfolio-watch/internal/storage"
)

// CycleContext identifies one cycle. It is created by the loop and passed in.
type CycleContext struct {
	Number    int64 // 1-based within this process
	StartedAt time.Time
}

// ID is the cycle's identifier in valuation history. It stays unique across
// restarts, unlike Number.
func (cc CycleContext) ID() int64 {
	return cc.StartedAt.UnixMilli()
}

// Enricher prices a list of mints, one quote per mint in input order.
type Enricher interface {
	Enrich(ctx context.Context, mints []string) []domain.PriceQuote
}

// Reconciler merges holdings and quotes into the snapshot store.
type Reconciler interface {
	Reconcile(ctx context.Context, holdings []domain.Holding, quotes []domain.PriceQuote) (*reconcile.Result, error)
}

// Notifier delivers significant change events.
type Notifier interface {
	Notify(ctx context.Context, events []domain.SignificantChangeEvent) notify.Report
}

// CycleResult summarises a completed cycle.
type CycleResult struct {
	Number       int64
	Holdings     int
	FailedQuotes int
	Reconcile    *reconcile.Result // nil when there were no holdings
	Notify       notify.Report
	HistoryErr   error
	Duration     time.Duration
}

// Cycle wires the per-cycle pipeline.
type Cycle struct {
	account  string
	balances balance.Source
	enricher Enricher
	engine   Reconciler
	history  storage.ValuationHistoryStore
	notifier Notifier
	logger   *zap.Logger
}

// CycleOptions configures a Cycle.
type CycleOptions struct {
	Account  string
	Balances balance.Source
	Enricher Enricher
	Engine   Reconciler
	History  storage.ValuationHistoryStore // optional
	Notifier Notifier
	Logger   *zap.Logger
}

// NewCycle creates a new Cycle.
func NewCycle(opts CycleOptions) *Cycle {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Cycle{
		account:  opts.Account,
		balances: opts.Balances,
		enricher: opts.Enricher,
		engine:   opts.Engine,
		history:  opts.History,
		notifier: opts.Notifier,
		logger:   logger,
	}
}

// Run executes one cycle. Only a persistence failure is returned as an error;
// fetch, pricing, history and delivery failures are logged and absorbed.
func (c *Cycle) Run(ctx context.Context, cc CycleContext) (*CycleResult, error) {
	start := time.Now()
	log := c.logger.With(zap.Int64("cycle", cc.Number))
	result := &CycleResult{Number: cc.Number}

	holdings := normalization.Normalize(c.balances.Fetch(ctx, c.account))
	result.Holdings = len(holdings)

	if len(holdings) == 0 {
		log.Info("No tokens found in the wallet.")
		observability.UpdatePortfolio(0, 0)
		result.Duration = time.Since(start)
		return result, nil
	}

	quotes := c.enricher.Enrich(ctx, normalization.Mints(holdings))
	for _, q := range quotes {
		if !q.OK() {
			result.FailedQuotes++
			log.Warn("price lookup failed", zap.String("mint", q.Mint), zap.Error(q.Err))
		}
	}

	rec, err := c.engine.Reconcile(ctx, holdings, quotes)
	if err != nil {
		result.Duration = time.Since(start)
		return result, errors.Wrap(err, "reconcile")
	}
	result.Reconcile = rec

	total, _ := rec.Total.Float64()
	observability.UpdatePortfolio(len(holdings), total)

	if c.history != nil && len(rec.Points) > 0 {
		result.HistoryErr = c.recordHistory(ctx, cc, rec.Points)
		if result.HistoryErr != nil {
			log.Error("error recording valuation history", zap.Error(result.HistoryErr))
		}
	}

	if len(rec.Events) > 0 {
		result.Notify = c.notifier.Notify(ctx, rec.Events)
	}

	result.Duration = time.Since(start)
	log.Info("cycle complete",
		zap.Int("holdings", result.Holdings),
		zap.Int("failed_quotes", result.FailedQuotes),
		zap.Int("inserted", rec.Inserted),
		zap.Int("updated", rec.Updated),
		zap.Int("events", len(rec.Events)),
		zap.Int("notified", result.Notify.Sent),
		zap.String("total_value", rec.Total.StringFixed(2)),
		zap.Duration("duration", result.Duration))

	return result, nil
}

// recordHistory stamps points with the cycle and appends them, one per mint.
func (c *Cycle) recordHistory(ctx context.Context, cc CycleContext, points []*domain.ValuationPoint) error {
	index := make(map[string]int, len(points))
	batch := make([]*domain.ValuationPoint, 0, len(points))

	for _, p := range points {
		stamped := *p
		stamped.CycleID = cc.ID()
		stamped.TimestampMs = cc.StartedAt.UnixMilli()

		// a repeated mint keeps its last observation
		if i, ok := index[p.Mint]; ok {
			batch[i] = &stamped
			continue
		}
		index[p.Mint] = len(batch)
		batch = append(batch, &stamped)
	}

	return c.history.InsertBulk(ctx, batch)
}
