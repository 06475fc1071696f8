package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/newthinker/momentum/internal/backtest"
	"github.com/newthinker/momentum/internal/collector/csvfile"
	"github.com/newthinker/momentum/internal/config"
	"github.com/newthinker/momentum/internal/core"
	"github.com/newthinker/momentum/internal/storage/snapshot"
	"github.com/newthinker/momentum/internal/strategy"
	"github.com/newthinker/momentum/internal/strategy/strategytest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeHistory(t *testing.T, dir, symbol string, prices []float64) {
	t.Helper()
	samples := make([]core.PriceSample, len(prices))
	for i, p := range prices {
		samples[i] = core.PriceSample{Price: p, Time: strategytest.Start.Add(time.Duration(i) * time.Hour)}
	}
	f, err := os.Create(csvfile.New(dir).Path(symbol))
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, csvfile.Write(f, samples))
}

func newTestApp(t *testing.T) (*App, string) {
	t.Helper()
	csvDir := t.TempDir()

	cfg := config.Defaults()
	cfg.Data.Source = "csv"
	cfg.Data.CSVDir = csvDir
	cfg.Data.Retry = config.RetryConfig{Attempts: 1}
	cfg.Storage.Path = t.TempDir()
	cfg.Metrics.Textfile = filepath.Join(t.TempDir(), "momentum.prom")
	cfg.Strategies = map[string]config.StrategyConfig{
		"simple_trend": {Presets: map[string]map[string]any{
			"quick": {"trend_ema_period": 10, "momentum_period": 5},
		}},
	}
	require.NoError(t, cfg.Validate())

	a, err := New(cfg, nil)
	require.NoError(t, err)
	return a, csvDir
}

func request(symbols ...string) BacktestRequest {
	return BacktestRequest{
		Strategy: "simple_trend",
		Symbols:  symbols,
		Start:    strategytest.Start,
		End:      strategytest.Start.Add(30 * 24 * time.Hour),
		Interval: "1h",
		Cash:     10000,
	}
}

func TestNew_RegistersSources(t *testing.T) {
	a, _ := newTestApp(t)

	assert.Equal(t, []string{"binance", "crypto", "csv", "okx", "yahoo"}, a.Collectors().Names())
	assert.Contains(t, a.Strategies().Presets("simple_trend"), "quick")
}

func TestApp_Backtest(t *testing.T) {
	a, dir := newTestApp(t)
	writeHistory(t, dir, "BTC-USD", strategytest.Linear(101, 100, 1))
	writeHistory(t, dir, "ETH-USD", strategytest.Linear(101, 2000, 10))

	stateOut := snapshot.NewMemoryStore()
	req := request("BTC-USD", "ETH-USD")
	req.StateOut = stateOut

	report, err := a.Backtest(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, report.Results, 2)
	assert.Equal(t, 2, report.Summary.Symbols)
	for _, res := range report.Results {
		assert.Equal(t, 101, res.Samples)
		assert.GreaterOrEqual(t, res.Metrics.BuyTrades, 1, res.Symbol)
		assert.Greater(t, res.Metrics.TotalReturnPct, 0.0, res.Symbol)
	}

	keys, err := stateOut.List(context.Background(), snapshot.ListFilter{Strategy: "simple_trend"})
	require.NoError(t, err)
	assert.Len(t, keys, 2)

	require.NoError(t, a.WriteMetrics())
	data, err := os.ReadFile(a.Config().Metrics.Textfile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `momentum_backtests_total{status="success"} 2`)
	assert.Contains(t, string(data), `momentum_data_fetch_attempts_total{source="csv",status="ok"} 2`)
}

func TestApp_BacktestResumesState(t *testing.T) {
	a, dir := newTestApp(t)
	writeHistory(t, dir, "BTC-USD", strategytest.Linear(60, 100, 1))
	ctx := context.Background()

	states := snapshot.NewMemoryStore()
	first := request("BTC-USD")
	first.Preset = "quick"
	first.End = strategytest.Start.Add(29 * time.Hour)
	first.StateOut = states
	_, err := a.Backtest(ctx, first)
	require.NoError(t, err)

	saved, err := states.Load(ctx, snapshot.Key{Strategy: "simple_trend", Symbol: "BTC-USD"})
	require.NoError(t, err)
	require.NotEmpty(t, saved.PriceHistory)

	second := request("BTC-USD")
	second.Preset = "quick"
	second.Start = strategytest.Start.Add(30 * time.Hour)
	second.StateIn = states
	second.StateOut = states
	report, err := a.Backtest(ctx, second)
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.Equal(t, 30, report.Results[0].Samples)

	resumed, err := states.Load(ctx, snapshot.Key{Strategy: "simple_trend", Symbol: "BTC-USD"})
	require.NoError(t, err)
	assert.NoError(t, resumed.Validate())

	replay := request("BTC-USD")
	replay.Preset = "quick"
	replay.StateIn = states
	_, err = a.Backtest(ctx, replay)
	assert.True(t, errors.Is(err, core.ErrInvalidState), "replaying covered samples is rejected")
}

// fixedStore returns the same snapshot for every key without validating it.
type fixedStore struct {
	snap strategy.Snapshot
}

func (f fixedStore) Save(ctx context.Context, key snapshot.Key, snap strategy.Snapshot) error {
	return nil
}

func (f fixedStore) Load(ctx context.Context, key snapshot.Key) (strategy.Snapshot, error) {
	return f.snap, nil
}

func (f fixedStore) List(ctx context.Context, filter snapshot.ListFilter) ([]snapshot.Key, error) {
	return nil, nil
}

func TestApp_BacktestRejectsInvalidState(t *testing.T) {
	a, dir := newTestApp(t)
	writeHistory(t, dir, "BTC-USD", strategytest.Linear(30, 100, 1))

	entry := 100.0
	req := request("BTC-USD")
	req.StateIn = fixedStore{snap: strategy.Snapshot{
		Strategy: "simple_trend",
		State:    strategy.State{EntryPrice: &entry},
	}}

	_, err := a.Backtest(context.Background(), req)
	assert.True(t, errors.Is(err, core.ErrInvalidState))
}

func TestApp_BacktestErrors(t *testing.T) {
	a, _ := newTestApp(t)
	ctx := context.Background()

	t.Run("no symbols", func(t *testing.T) {
		_, err := a.Backtest(ctx, request())
		assert.True(t, errors.Is(err, core.ErrInvalidParams))
	})

	t.Run("unknown strategy", func(t *testing.T) {
		req := request("BTC-USD")
		req.Strategy = "martingale"
		_, err := a.Backtest(ctx, req)
		assert.True(t, errors.Is(err, core.ErrUnknownStrategy))
	})

	t.Run("unknown source", func(t *testing.T) {
		req := request("BTC-USD")
		req.Source = "bloomberg"
		_, err := a.Backtest(ctx, req)
		assert.True(t, errors.Is(err, core.ErrUnknownCollector))
	})

	t.Run("missing history", func(t *testing.T) {
		_, err := a.Backtest(ctx, request("DOGE-USD"))
		assert.True(t, errors.Is(err, core.ErrDataUnavailable))
	})
}

func TestApp_SaveReport(t *testing.T) {
	a, dir := newTestApp(t)
	writeHistory(t, dir, "BTC-USD", strategytest.Linear(40, 100, 1))

	report, err := a.Backtest(context.Background(), request("BTC-USD"))
	require.NoError(t, err)

	path, err := a.SaveReport(context.Background(), report, backtest.FormatYAML)
	require.NoError(t, err)

	s, err := a.Storage()
	require.NoError(t, err)
	ok, err := s.Exists(context.Background(), path)
	require.NoError(t, err)
	assert.True(t, ok)
}
