package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/newthinker/momentum/internal/app"
	"github.com/newthinker/momentum/internal/backtest"
	"github.com/newthinker/momentum/internal/config"
	"github.com/newthinker/momentum/internal/storage/archive"
	"github.com/newthinker/momentum/internal/storage/snapshot"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	backtestSymbols  []string
	backtestFrom     string
	backtestTo       string
	backtestInterval string
	backtestCash     float64
	backtestPreset   string
	backtestSource   string
	backtestCSVDir   string
	backtestParams   map[string]string
	backtestOut      string
	backtestFormat   string
	backtestStateIn  string
	backtestStateOut string
	backtestProgress bool
)

var backtestCmd = &cobra.Command{
	Use:   "backtest [strategy]",
	Short: "Run backtest on a strategy",
	Long: `Run a strategy against historical data and show performance statistics.
Flags override the backtest and data sections of the config file.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBacktest,
}

func init() {
	f := backtestCmd.Flags()
	f.StringSliceVar(&backtestSymbols, "symbol", nil, "Symbol to backtest (repeatable)")
	f.StringVar(&backtestFrom, "from", "", "Start date YYYY-MM-DD")
	f.StringVar(&backtestTo, "to", "", "End date YYYY-MM-DD")
	f.StringVar(&backtestInterval, "interval", "", "Bar interval, e.g. 1h or 1d")
	f.Float64Var(&backtestCash, "cash", 0, "Starting cash per symbol")
	f.StringVar(&backtestPreset, "preset", "", "Strategy parameter preset")
	f.StringToStringVar(&backtestParams, "param", nil, "Strategy parameter override key=value (repeatable)")
	f.StringVar(&backtestSource, "source", "", "Data source: yahoo, crypto, binance, okx or csv")
	f.StringVar(&backtestCSVDir, "csv-dir", "", "Directory of <symbol>.csv files for the csv source")
	f.StringVar(&backtestOut, "out", "", "Write the report to this file ('-' for stdout) instead of storage")
	f.StringVar(&backtestFormat, "format", "", "Report format: yaml or json")
	f.StringVar(&backtestStateIn, "state-in", "", "Directory to restore strategy state from")
	f.StringVar(&backtestStateOut, "state-out", "", "Directory to save final strategy state to")
	f.BoolVar(&backtestProgress, "progress", false, "Show a replay progress bar on stderr")

	rootCmd.AddCommand(backtestCmd)
}

// applyBacktestFlags overlays the command line on cfg.
func applyBacktestFlags(cmd *cobra.Command, cfg *config.Config, args []string) {
	b := &cfg.Backtest
	if len(args) == 1 {
		b.Strategy = args[0]
		if !cmd.Flags().Changed("preset") {
			b.Preset = ""
		}
	}
	f := cmd.Flags()
	if f.Changed("symbol") {
		b.Symbols = backtestSymbols
	}
	if f.Changed("from") {
		b.From = backtestFrom
	}
	if f.Changed("to") {
		b.To = backtestTo
	}
	if f.Changed("interval") {
		b.Interval = backtestInterval
	}
	if f.Changed("cash") {
		b.StartingCash = backtestCash
	}
	if f.Changed("preset") {
		b.Preset = backtestPreset
	}
	if f.Changed("format") {
		b.ReportFormat = backtestFormat
	}
	if len(backtestParams) > 0 {
		params := make(map[string]any, len(b.Params)+len(backtestParams))
		for k, v := range b.Params {
			params[k] = v
		}
		for k, v := range backtestParams {
			params[k] = v
		}
		b.Params = params
	}
	if f.Changed("source") {
		cfg.Data.Source = backtestSource
	}
	if f.Changed("csv-dir") {
		cfg.Data.CSVDir = backtestCSVDir
		if !f.Changed("source") {
			cfg.Data.Source = "csv"
		}
	}
}

func stateStore(dir string) (snapshot.Store, error) {
	if dir == "" {
		return nil, nil
	}
	fs, err := archive.NewLocalFS(dir)
	if err != nil {
		return nil, err
	}
	return snapshot.NewArchiveStore(fs), nil
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyBacktestFlags(cmd, cfg, args)

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	if cfgFile == "" {
		log.Debug("no config file specified, using defaults")
	}
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

	stateIn, err := stateStore(backtestStateIn)
	if err != nil {
		return err
	}
	stateOut, err := stateStore(backtestStateOut)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var progress backtest.ProgressFunc
	if backtestProgress {
		progress = progressBar(cmd.ErrOrStderr())
	}

	b := cfg.Backtest
	report, err := a.Backtest(ctx, app.BacktestRequest{
		Strategy: b.Strategy,
		Preset:   b.Preset,
		Params:   b.Params,
		Symbols:  b.Symbols,
		Start:    start,
		End:      end,
		Interval: b.Interval,
		Cash:     b.StartingCash,
		Source:   cfg.Data.Source,
		StateIn:  stateIn,
		StateOut: stateOut,
		Progress: progress,
	})
	if werr := a.WriteMetrics(); werr != nil {
		log.Warn("writing metrics textfile failed", zap.Error(werr))
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if backtestOut != "-" {
		printReport(out, report)
	}
	return writeReport(ctx, a, out, report, b.ReportFormat)
}

// progressBar draws one bar per symbol.
func progressBar(w io.Writer) backtest.ProgressFunc {
	var (
		bar     *progressbar.ProgressBar
		current string
	)
	return func(symbol string, done, total int) {
		if bar == nil || symbol != current {
			current = symbol
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetWriter(w),
				progressbar.OptionSetDescription(symbol),
				progressbar.OptionShowCount(),
				progressbar.OptionThrottle(0),
				progressbar.OptionOnCompletion(func() { fmt.Fprintln(w) }),
			)
		}
		_ = bar.Set(done)
	}
}

func writeReport(ctx context.Context, a *app.App, out io.Writer, report *backtest.Report, format string) error {
	switch backtestOut {
	case "":
		path, err := a.SaveReport(ctx, report, format)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\nReport saved: %s\n", path)
		return nil
	case "-":
		data, err := report.Encode(format)
		if err != nil {
			return err
		}
		_, err = out.Write(data)
		return err
	default:
		data, err := report.Encode(format)
		if err != nil {
			return err
		}
		if err := os.WriteFile(backtestOut, data, 0644); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
		fmt.Fprintf(out, "\nReport written: %s\n", backtestOut)
		return nil
	}
}

func printReport(out io.Writer, r *backtest.Report) {
	fmt.Fprintln(out, "=== Momentum Backtest ===")
	fmt.Fprintf(out, "Strategy: %s", r.Strategy)
	if r.Preset != "" {
		fmt.Fprintf(out, " (%s)", r.Preset)
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Run ID:   %s\n", r.ID)

	for _, res := range r.Results {
		m := res.Metrics
		fmt.Fprintln(out)
		fmt.Fprintf(out, "%s  %s to %s  (%d samples)\n", res.Symbol,
			res.Start.Format(config.DateLayout), res.End.Format(config.DateLayout), res.Samples)
		if res.OpeningQuantity > 0 {
			fmt.Fprintf(out, "  Carried in:   %.6g units\n", res.OpeningQuantity)
		}
		fmt.Fprintf(out, "  Start value:  $%.2f\n", m.StartingValue)
		fmt.Fprintf(out, "  Final value:  $%.2f\n", m.FinalValue)
		fmt.Fprintf(out, "  Return:       %+.2f%%\n", m.TotalReturnPct)
		fmt.Fprintf(out, "  P&L:          $%.2f\n", m.TotalPnL)
		fmt.Fprintf(out, "  Trades:       %d (%d buy / %d sell)\n", m.TotalTrades, m.BuyTrades, m.SellTrades)
		fmt.Fprintf(out, "  Win rate:     %.1f%%\n", m.WinRatePct)
		fmt.Fprintf(out, "  Max drawdown: %.2f%%\n", m.MaxDrawdownPct)
		fmt.Fprintf(out, "  Sharpe:       %.2f\n", m.SharpeRatio)
		if q := res.FinalQuantity(); q > 0 {
			fmt.Fprintf(out, "  Open at end:  %.6g units\n", q)
		}
	}

	s := r.Summary
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Combined (%d symbols: %s)\n", s.Symbols, strings.Join(r.Symbols(), ", "))
	fmt.Fprintf(out, "  Return:       %+.2f%%\n", s.TotalReturnPct)
	fmt.Fprintf(out, "  P&L:          $%.2f\n", s.TotalPnL)
	fmt.Fprintf(out, "  Trades:       %d\n", s.TotalTrades)
	fmt.Fprintf(out, "  Win rate:     %.1f%%\n", s.WinRatePct)
	fmt.Fprintf(out, "  Max drawdown: %.2f%%\n", s.MaxDrawdownPct)
}
