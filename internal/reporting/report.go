// Package reporting renders the persisted portfolio snapshot for operators.
package reporting

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"solana-portfolio-watch/internal/domain"
	"solana-portfolio-watch/internal/storage"
)

// Report is a point-in-time view of the snapshot store.
type Report struct {
	GeneratedAt time.Time
	Window      time.Duration // zero when no history was consulted
	Rows        []Row
	Total       decimal.Decimal
}

// Row is one holding in the report.
type Row struct {
	domain.SnapshotRow
	// Change is TotalValue minus the first recorded value inside the window.
	// Nil when no history point exists.
	Change *decimal.Decimal
}

// Generator builds reports from a SnapshotStore and optional valuation history.
type Generator struct {
	store   storage.SnapshotStore
	history storage.ValuationHistoryStore
	window  time.Duration
	now     func() time.Time
	logger  *zap.Logger
}

// GeneratorOptions configures a Generator.
type GeneratorOptions struct {
	Store   storage.SnapshotStore
	History storage.ValuationHistoryStore // optional
	Window  time.Duration                 // default 24h when History is set
	Logger  *zap.Logger
}

// NewGenerator creates a new report generator.
func NewGenerator(opts GeneratorOptions) *Generator {
	window := opts.Window
	if window <= 0 {
		window = 24 * time.Hour
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Generator{
		store:   opts.Store,
		history: opts.History,
		window:  window,
		now:     time.Now,
		logger:  logger,
	}
}

// Generate reads every snapshot row and totals their values.
func (g *Generator) Generate(ctx context.Context) (*Report, error) {
	rows, err := g.store.ListAll(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list snapshot")
	}

	now := g.now()
	report := &Report{GeneratedAt: now.UTC()}
	if g.history != nil {
		report.Window = g.window
	}

	for _, r := range rows {
		row := Row{SnapshotRow: *r}
		report.Total = report.Total.Add(r.TotalValue)

		if g.history != nil {
			row.Change = g.change(ctx, r, now)
		}
		report.Rows = append(report.Rows, row)
	}

	return report, nil
}

func (g *Generator) change(ctx context.Context, r *domain.SnapshotRow, now time.Time) *decimal.Decimal {
	points, err := g.history.GetByTimeRange(ctx, r.Mint, now.Add(-g.window).UnixMilli(), now.UnixMilli())
	if err != nil {
		g.logger.Warn("history lookup failed", zap.String("mint", r.Mint), zap.Error(err))
		return nil
	}
	if len(points) == 0 {
		return nil
	}

	delta := r.TotalValue.Sub(points[0].TotalValue)
	return &delta
}
