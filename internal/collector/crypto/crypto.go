package crypto

import (
	"context"
	"fmt"
	"time"

	"github.com/newthinker/momentum/internal/collector"
	"github.com/newthinker/momentum/internal/collector/crypto/binance"
	"github.com/newthinker/momentum/internal/collector/crypto/okx"
	"github.com/newthinker/momentum/internal/collector/crypto/pair"
	"github.com/newthinker/momentum/internal/core"
	"go.uber.org/zap"
)

// DefaultQuote is the quote currency used when a symbol has none.
const DefaultQuote = "USDT"

// Collector serves crypto history from the first exchange that has data.
type Collector struct {
	providers    []collector.HistoryProvider
	defaultQuote string
	logger       *zap.Logger
}

var _ collector.HistoryProvider = (*Collector)(nil)

// New creates a Collector over the default exchanges.
// Provider order: Binance first, then OKX.
func New(cfg collector.Config, logger *zap.Logger) *Collector {
	return NewWithProviders([]collector.HistoryProvider{
		binance.New(cfg),
		okx.New(cfg),
	}, quoteFromConfig(cfg), logger)
}

// NewWithProviders creates a Collector with custom providers
func NewWithProviders(providers []collector.HistoryProvider, defaultQuote string, logger *zap.Logger) *Collector {
	if defaultQuote == "" {
		defaultQuote = DefaultQuote
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{
		providers:    providers,
		defaultQuote: defaultQuote,
		logger:       logger,
	}
}

func quoteFromConfig(cfg collector.Config) string {
	if q, ok := cfg.Extra["default_quote"].(string); ok {
		return q
	}
	return ""
}

func (c *Collector) Name() string {
	return "crypto"
}

// Normalize converts a user symbol to the compact exchange form. A USD quote
// is mapped to the default stablecoin quote.
func (c *Collector) Normalize(symbol string) (string, error) {
	p, err := pair.Parse(symbol, c.defaultQuote)
	if err != nil {
		return "", err
	}
	if p.Quote == "USD" {
		p.Quote = c.defaultQuote
	}
	return p.Compact(), nil
}

// FetchHistory fetches from each provider in order until one returns samples.
func (c *Collector) FetchHistory(ctx context.Context, symbol string, start, end time.Time, interval string) ([]core.PriceSample, error) {
	normalized, err := c.Normalize(symbol)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for _, p := range c.providers {
		data, err := p.FetchHistory(ctx, normalized, start, end, interval)
		if err == nil && len(data) > 0 {
			return data, nil
		}
		if err != nil {
			c.logger.Debug("crypto provider failed",
				zap.String("provider", p.Name()),
				zap.String("symbol", normalized),
				zap.Error(err),
			)
			lastErr = err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	if lastErr != nil {
		return nil, fmt.Errorf("all providers failed for %s: %w", normalized, lastErr)
	}
	return nil, core.WrapError(core.ErrNoData, fmt.Errorf("no data available for %s", normalized))
}
