package crypto

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/newthinker/momentum/internal/collector"
	"github.com/newthinker/momentum/internal/core"
)

func TestCollector_ImplementsHistoryProvider(t *testing.T) {
	var _ collector.HistoryProvider = (*Collector)(nil)
}

func TestCollector_Name(t *testing.T) {
	c := New(collector.Config{}, nil)
	if c.Name() != "crypto" {
		t.Errorf("expected 'crypto', got '%s'", c.Name())
	}
}

// Mock provider for testing
type mockProvider struct {
	name    string
	history []core.PriceSample
	err     error
	got     string
}

func (m *mockProvider) Name() string { return m.name }

func (m *mockProvider) FetchHistory(ctx context.Context, symbol string, start, end time.Time, interval string) ([]core.PriceSample, error) {
	m.got = symbol
	if m.err != nil {
		return nil, m.err
	}
	return m.history, nil
}

func TestCollector_FetchHistory_Fallback(t *testing.T) {
	failProvider := &mockProvider{name: "fail", err: fmt.Errorf("provider error")}
	emptyProvider := &mockProvider{name: "empty"}
	successProvider := &mockProvider{
		name: "success",
		history: []core.PriceSample{
			{Price: 50000, Time: time.Unix(0, 0)},
			{Price: 51000, Time: time.Unix(3600, 0)},
		},
	}

	c := NewWithProviders([]collector.HistoryProvider{failProvider, emptyProvider, successProvider}, "", nil)

	data, err := c.FetchHistory(context.Background(), "BTC-USD", time.Time{}, time.Now(), "1d")
	if err != nil {
		t.Fatalf("expected success after fallback, got error: %v", err)
	}
	if len(data) != 2 {
		t.Errorf("expected 2 records, got %d", len(data))
	}
	if successProvider.got != "BTCUSDT" {
		t.Errorf("expected normalized symbol BTCUSDT, got %s", successProvider.got)
	}
}

func TestCollector_FetchHistory_AllFail(t *testing.T) {
	fail1 := &mockProvider{name: "fail1", err: fmt.Errorf("error1")}
	fail2 := &mockProvider{name: "fail2", err: fmt.Errorf("error2")}

	c := NewWithProviders([]collector.HistoryProvider{fail1, fail2}, "USDT", nil)

	_, err := c.FetchHistory(context.Background(), "BTC", time.Time{}, time.Now(), "1d")
	if err == nil {
		t.Error("expected error when all providers fail")
	}
}

func TestCollector_FetchHistory_NoData(t *testing.T) {
	c := NewWithProviders([]collector.HistoryProvider{&mockProvider{name: "empty"}}, "USDT", nil)

	_, err := c.FetchHistory(context.Background(), "ETH", time.Time{}, time.Now(), "1h")
	if !errors.Is(err, core.ErrNoData) {
		t.Errorf("expected ErrNoData, got %v", err)
	}
}

func TestCollector_DefaultQuoteFromConfig(t *testing.T) {
	c := New(collector.Config{Extra: map[string]any{"default_quote": "BUSD"}}, nil)

	got, err := c.Normalize("eth")
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if got != "ETHBUSD" {
		t.Errorf("expected ETHBUSD, got %s", got)
	}
}
