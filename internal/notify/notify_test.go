package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-portfolio-watch/internal/domain"
	"solana-portfolio-watch/internal/reconcile"
	"solana-portfolio-watch/internal/storage/memory"
)

type recordingSink struct {
	mu       sync.Mutex
	messages []string
	fail     bool
}

func (s *recordingSink) Send(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("chat not found")
	}
	s.messages = append(s.messages, text)
	return nil
}

func event(mint, value string) domain.SignificantChangeEvent {
	return domain.SignificantChangeEvent{
		Name:          "Bonk",
		Symbol:        "BONK",
		Mint:          mint,
		NewTotalValue: decimal.RequireFromString(value),
	}
}

func TestRender(t *testing.T) {
	got := Render(event("DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263", "1234.5678"))
	want := "Token: Bonk (BONK)\n" +
		"Mint Address: DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263\n" +
		"New Total Value: $1,234.57"
	assert.Equal(t, want, got)
}

func TestFormatUSD(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0", "$0.00"},
		{"15", "$15.00"},
		{"0.004", "$0.00"},
		{"0.005", "$0.01"},
		{"1000000", "$1,000,000.00"},
		{"98765.4321", "$98,765.43"},
		{"92233720368547758.07", "$92,233,720,368,547,758.07"},
		{"100000000000000000", "$100,000,000,000,000,000.00"},
		{"123456789012345678901.999", "$123,456,789,012,345,678,902.00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatUSD(decimal.RequireFromString(tt.in)), tt.in)
	}
}

func TestNotifier_SkipsIgnored(t *testing.T) {
	sink := &recordingSink{}
	n := NewNotifier(NotifierOptions{Sink: sink})

	report := n.Notify(context.Background(), []domain.SignificantChangeEvent{
		event(USDCMint, "50"),
		event("Other", "50"),
	})

	assert.Equal(t, 1, report.Sent)
	assert.Equal(t, 1, report.Skipped)
	require.Len(t, sink.messages, 1)
	assert.Contains(t, sink.messages[0], "Mint Address: Other")
}

func TestNotifier_EmptyIgnoreList(t *testing.T) {
	sink := &recordingSink{}
	n := NewNotifier(NotifierOptions{Sink: sink, Ignore: []string{}})

	report := n.Notify(context.Background(), []domain.SignificantChangeEvent{event(USDCMint, "50")})
	assert.Equal(t, 1, report.Sent)
	assert.False(t, n.Ignored(USDCMint))
}

func TestNotifier_DeliveryErrors(t *testing.T) {
	sink := &recordingSink{fail: true}
	n := NewNotifier(NotifierOptions{Sink: sink})

	report := n.Notify(context.Background(), []domain.SignificantChangeEvent{event("A", "11"), event("B", "12")})
	assert.Equal(t, 0, report.Sent)
	assert.Equal(t, 2, report.Failed)
	require.Len(t, report.Errors, 2)
	assert.Contains(t, report.Errors[0].Error(), "chat not found")
}

// Ignore-listed mint: the row still updates, nothing is delivered.
func TestNotifier_IgnoredMintStillReconciled(t *testing.T) {
	ctx := context.Background()
	store := memory.NewSnapshotStore()
	prev := domain.NewSnapshotRow(domain.PriceQuote{Mint: USDCMint, Name: "USD Coin", Symbol: "USDC", PriceUSD: decimal.NewFromInt(1)}, decimal.NewFromInt(5))
	require.NoError(t, store.Upsert(ctx, prev))

	engine := reconcile.NewEngine(reconcile.EngineOptions{Store: store})
	res, err := engine.Reconcile(ctx,
		[]domain.Holding{{Mint: USDCMint, Quantity: decimal.NewFromInt(500)}},
		[]domain.PriceQuote{{Mint: USDCMint, Name: "USD Coin", Symbol: "USDC", PriceUSD: decimal.NewFromInt(1)}})
	require.NoError(t, err)
	require.Len(t, res.Events, 1)

	sink := &recordingSink{}
	report := NewNotifier(NotifierOptions{Sink: sink}).Notify(ctx, res.Events)
	assert.Equal(t, 1, report.Skipped)
	assert.Empty(t, sink.messages)

	row, err := store.Get(ctx, USDCMint)
	require.NoError(t, err)
	assert.True(t, row.TotalValue.Equal(decimal.NewFromInt(500)))
}

func TestTelegramSink_Send(t *testing.T) {
	var got sendMessageRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bot123:abc/sendMessage", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"ok":true,"result":{}}`))
	}))
	defer server.Close()

	sink := NewTelegramSink(TelegramOptions{BaseURL: server.URL, Token: "123:abc", ChatID: "-10042"})
	require.NoError(t, sink.Send(context.Background(), "hello"))

	assert.Equal(t, "-10042", got.ChatID)
	assert.Equal(t, "hello", got.Text)
}

func TestTelegramSink_Rejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"description":"Bad Request: chat not found"}`))
	}))
	defer server.Close()

	sink := NewTelegramSink(TelegramOptions{BaseURL: server.URL, Token: "t", ChatID: "1"})
	err := sink.Send(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
}

func TestTelegramSink_ErrorHidesToken(t *testing.T) {
	sink := NewTelegramSink(TelegramOptions{BaseURL: "http://127.0.0.1:1", Token: "secret-token", ChatID: "1"})
	err := sink.Send(context.Background(), "hello")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "secret-token")
}
