// Package reconcile merges a fresh priced snapshot into the persisted one
// and detects significant value increases.
package reconcile

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"solana-portfolio-watch/internal/domain"
	"solana-portfolio-watch/internal/observability"
	"solana-portfolio-watch/internal/storage"
)

// Policy decides which value changes are significant.
type Policy struct {
	// RelativeMultiplier flags new > prev * RelativeMultiplier when prev > 0.
	RelativeMultiplier decimal.Decimal
	// AbsoluteThreshold flags new > AbsoluteThreshold.
	AbsoluteThreshold decimal.Decimal
	// RequireIncrease additionally requires new > prev.
	RequireIncrease bool
}

// DefaultPolicy returns multiplier 1.5, threshold 10 and RequireIncrease set.
// With RequireIncrease, drops and unchanged values above the threshold raise no alert.
func DefaultPolicy() Policy {
	return Policy{
		RelativeMultiplier: decimal.RequireFromString("1.5"),
		AbsoluteThreshold:  decimal.NewFromInt(10),
		RequireIncrease:    true,
	}
}

// Significant reports whether moving from prev to next is a significant change.
func (p Policy) Significant(prev, next decimal.Decimal) bool {
	if p.RequireIncrease && !next.GreaterThan(prev) {
		return false
	}
	relative := prev.IsPositive() && next.GreaterThan(prev.Mul(p.RelativeMultiplier))
	absolute := next.GreaterThan(p.AbsoluteThreshold)
	return relative || absolute
}

// Result summarises one reconciliation pass.
type Result struct {
	Events    []domain.SignificantChangeEvent
	Points    []*domain.ValuationPoint // one per reconciled holding, cycle fields unset
	Inserted  int
	Updated   int
	Unchanged int
	Skipped   int
	Total     decimal.Decimal // sum of reconciled total values
}

// Engine reconciles holdings and quotes against a SnapshotStore.
type Engine struct {
	store  storage.SnapshotStore
	policy Policy
	logger *zap.Logger
}

// EngineOptions configures an Engine.
type EngineOptions struct {
	Store  storage.SnapshotStore
	Policy *Policy // nil uses DefaultPolicy
	Logger *zap.Logger
}

// NewEngine creates a new reconciliation engine.
func NewEngine(opts EngineOptions) *Engine {
	policy := DefaultPolicy()
	if opts.Policy != nil {
		policy = *opts.Policy
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Engine{
		store:  opts.Store,
		policy: policy,
		logger: logger,
	}
}

// Policy returns the engine's significance policy.
func (e *Engine) Policy() Policy {
	return e.policy
}

// Reconcile applies holdings[i] priced by quotes[i], in order.
// Quotes in the failure variant are skipped. A store error aborts the pass;
// rows already written stay written.
func (e *Engine) Reconcile(ctx context.Context, holdings []domain.Holding, quotes []domain.PriceQuote) (*Result, error) {
	if len(holdings) != len(quotes) {
		return nil, errors.Wrapf(storage.ErrInvalidInput,
			"holdings/quotes length mismatch: %d != %d", len(holdings), len(quotes))
	}

	existing, err := e.store.ListAll(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list snapshot")
	}

	view := make(map[string]*domain.SnapshotRow, len(existing))
	for _, row := range existing {
		view[row.Mint] = row
	}

	result := &Result{}

	for i, h := range holdings {
		q := quotes[i]
		if !q.OK() {
			result.Skipped++
			continue
		}
		if q.Mint != "" && q.Mint != h.Mint {
			return result, errors.Wrapf(storage.ErrInvalidInput,
				"quote %d is for %s, holding is %s", i, q.Mint, h.Mint)
		}
		q.Mint = h.Mint

		next := domain.NewSnapshotRow(q, h.Quantity)
		result.Total = result.Total.Add(next.TotalValue)
		result.Points = append(result.Points, &domain.ValuationPoint{
			Mint:       h.Mint,
			Quantity:   next.Quantity,
			PriceUSD:   next.PriceUSD,
			TotalValue: next.TotalValue,
		})

		prev, ok := view[h.Mint]
		if !ok {
			if err := e.store.Upsert(ctx, next); err != nil {
				return result, errors.Wrapf(err, "insert %s", h.Mint)
			}
			view[h.Mint] = next
			result.Inserted++
			observability.RecordRowWritten("insert")
			e.logger.Debug("new holding", zap.String("mint", h.Mint), zap.String("total_value", next.TotalValue.String()))
			continue
		}

		prevValue := prev.TotalValue
		if changed(prev, next) {
			if err := e.store.Upsert(ctx, next); err != nil {
				return result, errors.Wrapf(err, "update %s", h.Mint)
			}
			view[h.Mint] = next
			result.Updated++
			observability.RecordRowWritten("update")
		} else {
			result.Unchanged++
		}

		if e.policy.Significant(prevValue, next.TotalValue) {
			result.Events = append(result.Events, domain.SignificantChangeEvent{
				Name:               next.Name,
				Symbol:             next.Symbol,
				Mint:               next.Mint,
				PriceUSD:           next.PriceUSD,
				PreviousTotalValue: prevValue,
				NewTotalValue:      next.TotalValue,
			})
			observability.RecordEvent()
			e.logger.Info("significant value change",
				zap.String("mint", h.Mint),
				zap.String("previous", prevValue.String()),
				zap.String("new", next.TotalValue.String()))
		}
	}

	return result, nil
}

// changed reports whether the observed values differ from the stored row.
func changed(prev, next *domain.SnapshotRow) bool {
	return !prev.Quantity.Equal(next.Quantity) ||
		!prev.PriceUSD.Equal(next.PriceUSD) ||
		!prev.TotalValue.Equal(next.TotalValue)
}
