package main

import (
	"fmt"
	"os"

	"github.com/newthinker/momentum/internal/config"
	"github.com/newthinker/momentum/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "momentum",
	Short: "Momentum - single-instrument signal engine and backtester",
	Long: `Momentum replays historical prices through technical-indicator trading
strategies and reports return, drawdown, win rate and Sharpe ratio.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug mode")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads --config, or the defaults when none is given.
func loadConfig() (*config.Config, error) {
	if cfgFile == "" {
		return config.Defaults(), nil
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the logger for cfg. --debug forces development
// output at debug level.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if debug {
		return logger.NewWithLevel(true, "debug")
	}
	return logger.NewWithLevel(cfg.Log.Development, cfg.Log.Level)
}
