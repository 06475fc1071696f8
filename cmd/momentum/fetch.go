package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/newthinker/momentum/internal/app"
	"github.com/newthinker/momentum/internal/backtest"
	"github.com/newthinker/momentum/internal/collector/csvfile"
	"github.com/newthinker/momentum/internal/core"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	fetchFrom     string
	fetchTo       string
	fetchInterval string
	fetchSource   string
	fetchDir      string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch SYMBOL...",
	Short: "Download price history to CSV files",
	Long: `Download close prices for each symbol and write them as <symbol>.csv,
ready for offline backtests with --source csv.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runFetch,
}

func init() {
	f := fetchCmd.Flags()
	f.StringVar(&fetchFrom, "from", "", "Start date YYYY-MM-DD")
	f.StringVar(&fetchTo, "to", "", "End date YYYY-MM-DD")
	f.StringVar(&fetchInterval, "interval", "", "Bar interval, e.g. 1h or 1d")
	f.StringVar(&fetchSource, "source", "", "Data source: yahoo, crypto, binance or okx")
	f.StringVar(&fetchDir, "dir", ".", "Output directory")

	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	f := cmd.Flags()
	if f.Changed("from") {
		cfg.Backtest.From = fetchFrom
	}
	if f.Changed("to") {
		cfg.Backtest.To = fetchTo
	}
	if f.Changed("interval") {
		cfg.Backtest.Interval = fetchInterval
	}
	if f.Changed("source") {
		cfg.Data.Source = fetchSource
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	start, end, err := cfg.Backtest.Period()
	if err != nil {
		return err
	}

	a, err := app.New(cfg, log)
	if err != nil {
		return err
	}
	provider, err := a.Provider(cfg.Data.Source)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(fetchDir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	files := csvfile.New(fetchDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer func() {
		if werr := a.WriteMetrics(); werr != nil {
			log.Warn("writing metrics textfile failed", zap.Error(werr))
		}
	}()

	for _, symbol := range args {
		samples, err := provider.FetchHistory(ctx, symbol, start, end, cfg.Backtest.Interval)
		if err != nil {
			return fmt.Errorf("fetching %s: %w", symbol, err)
		}
		samples = backtest.PrepareSeries(samples)

		path := files.Path(symbol)
		if err := writeCSV(path, samples); err != nil {
			return err
		}
		log.Info("history saved",
			zap.String("symbol", symbol),
			zap.String("source", provider.Name()),
			zap.Int("samples", len(samples)),
			zap.String("path", path),
		)
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d samples -> %s\n", symbol, len(samples), filepath.Clean(path))
	}
	return nil
}

func writeCSV(path string, samples []core.PriceSample) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := csvfile.Write(f, samples); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}
