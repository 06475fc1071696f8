package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/newthinker/momentum/internal/collector"
	"github.com/newthinker/momentum/internal/core"
	"github.com/newthinker/momentum/internal/strategy"
	"go.uber.org/zap"
)

// Recorder receives run statistics. *metrics.Registry implements it.
type Recorder interface {
	RecordSignal(strategy, action string)
	RecordFill(side string)
	RecordBacktest(status string, duration float64)
}

type nopRecorder struct{}

func (nopRecorder) RecordSignal(string, string)    {}
func (nopRecorder) RecordFill(string)              {}
func (nopRecorder) RecordBacktest(string, float64) {}

// Option configures a Backtester.
type Option func(*Backtester)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(b *Backtester) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithRecorder sets the statistics sink.
func WithRecorder(rec Recorder) Option {
	return func(b *Backtester) {
		if rec != nil {
			b.recorder = rec
		}
	}
}

// ProgressFunc is called after each replayed sample.
type ProgressFunc func(symbol string, done, total int)

// WithProgress sets a per-step progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(b *Backtester) {
		b.progress = fn
	}
}

// Backtester replays historical prices through a strategy.
type Backtester struct {
	provider collector.HistoryProvider
	logger   *zap.Logger
	recorder Recorder
	progress ProgressFunc
}

// New creates a Backtester. provider may be nil when only RunSeries is used.
func New(provider collector.HistoryProvider, opts ...Option) *Backtester {
	b := &Backtester{
		provider: provider,
		logger:   zap.NewNop(),
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run fetches history for symbol and replays it through strat.
func (b *Backtester) Run(ctx context.Context, strat strategy.Strategy, symbol string, start, end time.Time, interval string, cash float64) (*Result, error) {
	if b.provider == nil {
		return nil, core.WrapError(core.ErrCollectorFailed, errors.New("no history provider configured"))
	}

	samples, err := b.provider.FetchHistory(ctx, symbol, start, end, interval)
	if err != nil {
		b.recorder.RecordBacktest("error", 0)
		return nil, fmt.Errorf("fetching %s history from %s: %w", symbol, b.provider.Name(), err)
	}

	res, err := b.RunSeries(ctx, strat, symbol, PrepareSeries(samples), cash)
	if err != nil {
		return nil, err
	}
	res.Start, res.End = start, end
	return res, nil
}

// RunSeries replays samples in order. On each step the strategy sees
// only samples up to and including the current one. Buys are capped by
// cash, sells by the held quantity, and OnTrade is called once for every
// non-zero fill. A position restored into strat is carried into the run
// and marked at the first sample's price in the starting value. History
// restored into strat must end before the first sample.
func (b *Backtester) RunSeries(ctx context.Context, strat strategy.Strategy, symbol string, samples []core.PriceSample, cash float64) (*Result, error) {
	if len(samples) == 0 {
		b.recorder.RecordBacktest("error", 0)
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("no samples for %s", symbol))
	}
	if cash <= 0 {
		b.recorder.RecordBacktest("error", 0)
		return nil, core.WrapError(core.ErrInvalidParams, fmt.Errorf("starting cash must be positive, got %f", cash))
	}

	began := time.Now()
	first, last := span(samples)
	b.logger.Info("backtest started",
		zap.String("strategy", strat.Name()),
		zap.String("symbol", symbol),
		zap.Int("samples", len(samples)),
		zap.Time("from", first.Time),
		zap.Time("to", last.Time),
		zap.Float64("cash", cash),
	)

	restored := strat.State()
	if n := len(restored.PriceHistory); n > 0 && !restored.PriceHistory[n-1].Time.Before(first.Time) {
		b.recorder.RecordBacktest("error", 0)
		return nil, core.WrapError(core.ErrInvalidState,
			fmt.Errorf("restored %s history ends at %s, replay must start after it but starts at %s",
				symbol, restored.PriceHistory[n-1].Time.Format(time.RFC3339), first.Time.Format(time.RFC3339)))
	}

	ledger := NewLedger(cash)
	if st := restored.State; st.IsOpen() {
		ledger.Seed(st.Lots)
		b.logger.Info("resuming open position",
			zap.String("symbol", symbol),
			zap.Float64("quantity", ledger.Quantity),
			zap.Int("lots", ledger.OpenLots()),
		)
	}
	openingQuantity := ledger.Quantity
	startingValue := ledger.Value(first.Price)
	trades := make([]TradeRecord, 0)
	equity := make([]EquityPoint, 0, len(samples))

	for i, sample := range samples {
		if err := ctx.Err(); err != nil {
			b.recorder.RecordBacktest("cancelled", time.Since(began).Seconds())
			return nil, fmt.Errorf("backtest %s cancelled at step %d: %w", symbol, i, err)
		}

		price := sample.Price
		sig := strat.GenerateSignal(core.MarketSnapshot{
			Symbol:       symbol,
			CurrentPrice: price,
			History:      samples[:i+1],
			Timestamp:    sample.Time,
		}, core.Portfolio{Symbol: symbol, Cash: ledger.Cash, Quantity: ledger.Quantity})
		b.recorder.RecordSignal(strat.Name(), string(sig.Action))

		switch sig.Action {
		case core.ActionBuy:
			if filled := ledger.Buy(price, sig.Size, sample.Time); filled > 0 {
				trades = append(trades, TradeRecord{
					Time: sample.Time, Side: SideBuy, Price: price,
					Size: filled, Value: filled * price, Reason: sig.Reason,
				})
				strat.OnTrade(sig, price, filled, sample.Time)
				b.recorder.RecordFill(string(SideBuy))
				b.logger.Debug("buy filled",
					zap.String("symbol", symbol),
					zap.Float64("price", price),
					zap.Float64("size", filled),
					zap.Float64("cash", ledger.Cash),
				)
			}
		case core.ActionSell:
			if filled, pnl := ledger.Sell(price, sig.Size); filled > 0 {
				trades = append(trades, TradeRecord{
					Time: sample.Time, Side: SideSell, Price: price,
					Size: filled, Value: filled * price, PnL: pnl, Reason: sig.Reason,
				})
				strat.OnTrade(sig, price, filled, sample.Time)
				b.recorder.RecordFill(string(SideSell))
				b.logger.Debug("sell filled",
					zap.String("symbol", symbol),
					zap.Float64("price", price),
					zap.Float64("size", filled),
					zap.Float64("pnl", pnl),
				)
			}
		}

		equity = append(equity, EquityPoint{Time: sample.Time, Value: ledger.Value(price)})
		if b.progress != nil {
			b.progress(symbol, i+1, len(samples))
		}
	}

	res := &Result{
		Strategy:        strat.Name(),
		Symbol:          symbol,
		Start:           first.Time,
		End:             last.Time,
		Samples:         len(samples),
		OpeningQuantity: openingQuantity,
		Metrics:         CalculateMetrics(cash, startingValue, equity, trades),
		Trades:          trades,
		Equity:          equity,
	}

	elapsed := time.Since(began)
	b.recorder.RecordBacktest("success", elapsed.Seconds())
	b.logger.Info("backtest finished",
		zap.String("strategy", res.Strategy),
		zap.String("symbol", symbol),
		zap.Float64("final_value", res.Metrics.FinalValue),
		zap.Float64("return_pct", res.Metrics.TotalReturnPct),
		zap.Int("trades", res.Metrics.TotalTrades),
		zap.Float64("final_quantity", res.FinalQuantity()),
		zap.Duration("elapsed", elapsed),
	)
	return res, nil
}

// Restore validates snap and loads it into strat. Replays start from a
// restored state only when it is internally consistent.
func Restore(strat strategy.Strategy, snap strategy.Snapshot) error {
	if snap.Strategy != "" && snap.Strategy != strat.Name() {
		return core.WrapError(core.ErrInvalidState,
			fmt.Errorf("snapshot belongs to %q, not %q", snap.Strategy, strat.Name()))
	}
	if err := snap.Validate(); err != nil {
		return err
	}
	strat.SetState(snap)
	return nil
}
