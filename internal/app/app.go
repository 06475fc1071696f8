// Package app wires configuration, data sources, strategies, storage and
// metrics into the operations exposed by the command line.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/newthinker/momentum/internal/backtest"
	"github.com/newthinker/momentum/internal/collector"
	"github.com/newthinker/momentum/internal/collector/crypto"
	"github.com/newthinker/momentum/internal/collector/crypto/binance"
	"github.com/newthinker/momentum/internal/collector/crypto/okx"
	"github.com/newthinker/momentum/internal/collector/csvfile"
	"github.com/newthinker/momentum/internal/collector/yahoo"
	"github.com/newthinker/momentum/internal/config"
	"github.com/newthinker/momentum/internal/core"
	"github.com/newthinker/momentum/internal/metrics"
	"github.com/newthinker/momentum/internal/storage/archive"
	"github.com/newthinker/momentum/internal/storage/snapshot"
	"github.com/newthinker/momentum/internal/strategy"
	"github.com/newthinker/momentum/internal/strategy/factory"
	"go.uber.org/zap"
)

// App is the main application orchestrator
type App struct {
	cfg        *config.Config
	logger     *zap.Logger
	metrics    *metrics.Registry
	strategies *strategy.Registry
	collectors *collector.Registry

	mu      sync.Mutex
	storage archive.Storage
}

// New creates a new App instance
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	if cfg == nil {
		cfg = config.Defaults()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	strategies := factory.NewRegistry(logger)
	if err := factory.ApplyPresets(strategies, cfg.Presets()); err != nil {
		return nil, fmt.Errorf("applying strategy presets: %w", err)
	}

	a := &App{
		cfg:        cfg,
		logger:     logger,
		metrics:    metrics.NewRegistry(),
		strategies: strategies,
		collectors: collector.NewRegistry(),
	}
	a.registerCollectors()
	return a, nil
}

func (a *App) registerCollectors() {
	data := a.cfg.Data
	cfgFor := func(source string) collector.Config {
		c := collector.Config{
			Timeout: data.Timeout,
			Extra:   map[string]any{"default_quote": data.DefaultQuote},
		}
		if source == data.Source {
			c.BaseURL = data.BaseURL
		}
		return c
	}

	a.collectors.Register(yahoo.New(cfgFor("yahoo")))
	a.collectors.Register(crypto.New(cfgFor("crypto"), a.logger))
	a.collectors.Register(binance.New(cfgFor("binance")))
	a.collectors.Register(okx.New(cfgFor("okx")))
	if data.CSVDir != "" {
		a.collectors.Register(csvfile.New(data.CSVDir))
	}
}

// Config returns the active configuration.
func (a *App) Config() *config.Config { return a.cfg }

// Metrics returns the metrics registry.
func (a *App) Metrics() *metrics.Registry { return a.metrics }

// Strategies returns the strategy registry.
func (a *App) Strategies() *strategy.Registry { return a.strategies }

// Collectors returns the data source registry.
func (a *App) Collectors() *collector.Registry { return a.collectors }

// Provider returns the named data source wrapped with the configured
// retry policy. An empty source selects the configured default.
func (a *App) Provider(source string) (collector.HistoryProvider, error) {
	if source == "" {
		source = a.cfg.Data.Source
	}
	p, err := a.collectors.Lookup(source)
	if err != nil {
		return nil, err
	}
	return collector.NewRetrying(p, a.cfg.Data.Retry.Collector(), a.logger).
		OnAttempt(a.metrics.RecordFetch), nil
}

// Storage returns the configured artifact storage, creating it on first use.
func (a *App) Storage() (archive.Storage, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.storage == nil {
		s, err := archive.New(a.cfg.Storage.Archive())
		if err != nil {
			return nil, err
		}
		a.storage = s
	}
	return a.storage, nil
}

// BacktestRequest describes one backtest invocation over several symbols.
type BacktestRequest struct {
	Strategy string
	Preset   string
	Params   map[string]any
	Symbols  []string
	Start    time.Time
	End      time.Time
	Interval string
	Cash     float64
	Source   string

	// StateIn, when set, supplies the initial state per symbol. Symbols
	// without a stored snapshot start flat.
	StateIn snapshot.Store
	// StateOut, when set, receives the final state per symbol.
	StateOut snapshot.Store

	Progress backtest.ProgressFunc
}

// Backtest runs the request one symbol at a time, each with a fresh
// strategy instance, and combines the results into a report.
func (a *App) Backtest(ctx context.Context, req BacktestRequest) (*backtest.Report, error) {
	if len(req.Symbols) == 0 {
		return nil, core.WrapError(core.ErrInvalidParams, errors.New("no symbols to backtest"))
	}

	provider, err := a.Provider(req.Source)
	if err != nil {
		return nil, err
	}
	bt := backtest.New(provider,
		backtest.WithLogger(a.logger),
		backtest.WithRecorder(a.metrics),
		backtest.WithProgress(req.Progress),
	)

	results := make([]*backtest.Result, 0, len(req.Symbols))
	for _, symbol := range req.Symbols {
		log := a.logger.With(zap.String("symbol", symbol))
		strat, err := a.strategies.Build(req.Strategy, req.Preset, req.Params, strategy.Deps{Logger: log})
		if err != nil {
			return nil, err
		}
		key := snapshot.Key{Strategy: strat.Name(), Symbol: symbol}

		if req.StateIn != nil {
			if err := a.restore(ctx, req.StateIn, key, strat, log); err != nil {
				return nil, err
			}
		}

		res, err := bt.Run(ctx, strat, symbol, req.Start, req.End, req.Interval, req.Cash)
		if err != nil {
			return nil, fmt.Errorf("backtesting %s: %w", symbol, err)
		}
		results = append(results, res)

		if req.StateOut != nil {
			if err := req.StateOut.Save(ctx, key, strat.State()); err != nil {
				return nil, fmt.Errorf("saving %s state: %w", symbol, err)
			}
		}
	}

	return backtest.NewReport(req.Strategy, req.Preset, req.Interval, results), nil
}

func (a *App) restore(ctx context.Context, store snapshot.Store, key snapshot.Key, strat strategy.Strategy, log *zap.Logger) error {
	snap, err := store.Load(ctx, key)
	if errors.Is(err, core.ErrNoData) {
		log.Info("no stored state, starting flat")
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading %s state: %w", key.Symbol, err)
	}
	if err := backtest.Restore(strat, snap); err != nil {
		return fmt.Errorf("restoring %s state: %w", key.Symbol, err)
	}
	log.Info("restored state",
		zap.Float64("quantity", snap.State.CurrentQuantity),
		zap.Int("history", len(snap.PriceHistory)),
	)
	return nil
}

// SaveReport writes report to the configured storage and returns its path.
func (a *App) SaveReport(ctx context.Context, report *backtest.Report, format string) (string, error) {
	s, err := a.Storage()
	if err != nil {
		return "", err
	}
	return report.Save(ctx, s, format)
}

// WriteMetrics writes the metrics textfile when one is configured.
func (a *App) WriteMetrics() error {
	if a.cfg.Metrics.Textfile == "" {
		return nil
	}
	return a.metrics.WriteTextfile(a.cfg.Metrics.Textfile)
}
