package pricing

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-portfolio-watch/internal/domain"
)

// fakeSource returns prices from a map and fails for unknown mints.
type fakeSource struct {
	mu       sync.Mutex
	prices   map[string]domain.PriceQuote
	delay    time.Duration
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (f *fakeSource) Quote(_ context.Context, mint string) (domain.PriceQuote, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		cur := f.maxSeen.Load()
		if n <= cur || f.maxSeen.CompareAndSwap(cur, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	q, ok := f.prices[mint]
	if !ok {
		return domain.PriceQuote{}, errors.Errorf("details not found for %s", mint)
	}
	return q, nil
}

type fakeResolver struct {
	name, symbol string
	err          error
}

func (r fakeResolver) Resolve(_ context.Context, _ string) (string, string, error) {
	return r.name, r.symbol, r.err
}

func quote(mint, price string) domain.PriceQuote {
	return domain.PriceQuote{
		Mint:     mint,
		Name:     "Token " + mint[:4],
		Symbol:   mint[:4],
		PriceUSD: decimal.RequireFromString(price),
	}
}

func TestEnricher_OrderAndIsolation(t *testing.T) {
	src := &fakeSource{prices: map[string]domain.PriceQuote{
		mintA: quote(mintA, "2"),
		mintB: quote(mintB, "0.5"),
	}}
	e := NewEnricher(EnricherOptions{Source: src})

	quotes := e.Enrich(context.Background(), []string{mintB, "BadMint1111", mintA})
	require.Len(t, quotes, 3)

	assert.Equal(t, mintB, quotes[0].Mint)
	assert.True(t, quotes[0].OK())
	assert.Equal(t, "BadMint1111", quotes[1].Mint)
	assert.False(t, quotes[1].OK())
	assert.Contains(t, quotes[1].Err.Error(), "details not found")
	assert.Equal(t, mintA, quotes[2].Mint)
	assert.True(t, quotes[2].PriceUSD.Equal(decimal.NewFromInt(2)))
}

func TestEnricher_Empty(t *testing.T) {
	e := NewEnricher(EnricherOptions{Source: &fakeSource{}})
	assert.Empty(t, e.Enrich(context.Background(), nil))
}

func TestEnricher_ConcurrencyLimit(t *testing.T) {
	prices := make(map[string]domain.PriceQuote)
	var mints []string
	for i := 0; i < 20; i++ {
		m := fmt.Sprintf("Mint%04d", i)
		prices[m] = quote(m, "1")
		mints = append(mints, m)
	}
	src := &fakeSource{prices: prices, delay: 10 * time.Millisecond}
	e := NewEnricher(EnricherOptions{Source: src, Concurrency: 3})

	quotes := e.Enrich(context.Background(), mints)
	require.Len(t, quotes, 20)
	for i, q := range quotes {
		assert.Equal(t, mints[i], q.Mint)
		assert.True(t, q.OK())
	}
	assert.LessOrEqual(t, src.maxSeen.Load(), int32(3))
}

func TestEnricher_ResolverFillsPlaceholders(t *testing.T) {
	placeholder := domain.PriceQuote{
		Mint:     mintA,
		Name:     domain.UnknownName,
		Symbol:   domain.UnknownSymbol,
		PriceUSD: decimal.NewFromInt(1),
	}
	src := &fakeSource{prices: map[string]domain.PriceQuote{mintA: placeholder}}

	e := NewEnricher(EnricherOptions{Source: src, Resolver: fakeResolver{name: "Bonk", symbol: "BONK"}})
	quotes := e.Enrich(context.Background(), []string{mintA})
	assert.Equal(t, "Bonk", quotes[0].Name)
	assert.Equal(t, "BONK", quotes[0].Symbol)

	e = NewEnricher(EnricherOptions{Source: src, Resolver: fakeResolver{err: errors.New("boom")}})
	quotes = e.Enrich(context.Background(), []string{mintA})
	assert.True(t, quotes[0].OK())
	assert.Equal(t, domain.UnknownName, quotes[0].Name)
}
