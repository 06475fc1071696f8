package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/newthinker/momentum/internal/collector"
	"github.com/newthinker/momentum/internal/core"
	"github.com/newthinker/momentum/internal/storage/archive"
	"github.com/spf13/viper"
)

// DateLayout is the format of backtest from/to dates.
const DateLayout = "2006-01-02"

type Config struct {
	Log        LogConfig                 `mapstructure:"log"`
	Backtest   BacktestConfig            `mapstructure:"backtest"`
	Data       DataConfig                `mapstructure:"data"`
	Strategies map[string]StrategyConfig `mapstructure:"strategies"`
	Storage    StorageConfig             `mapstructure:"storage"`
	Metrics    MetricsConfig             `mapstructure:"metrics"`
}

type LogConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
}

// BacktestConfig holds the defaults of the backtest command.
type BacktestConfig struct {
	Strategy     string         `mapstructure:"strategy" validate:"required"`
	Preset       string         `mapstructure:"preset"`
	Params       map[string]any `mapstructure:"params"`
	Symbols      []string       `mapstructure:"symbols" validate:"min=1,dive,required"`
	From         string         `mapstructure:"from" validate:"required"`
	To           string         `mapstructure:"to" validate:"required"`
	Interval     string         `mapstructure:"interval" validate:"required"`
	StartingCash float64        `mapstructure:"starting_cash" validate:"gt=0"`
	ReportFormat string         `mapstructure:"report_format" validate:"oneof=yaml json"`
}

// Period parses From and To. To is inclusive of its whole day.
func (b BacktestConfig) Period() (start, end time.Time, err error) {
	start, err = time.ParseInLocation(DateLayout, b.From, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parsing from date: %w", err)
	}
	end, err = time.ParseInLocation(DateLayout, b.To, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parsing to date: %w", err)
	}
	return start, end.Add(24*time.Hour - time.Nanosecond), nil
}

// DataConfig selects the historical data source.
type DataConfig struct {
	Source       string        `mapstructure:"source" validate:"required,oneof=yahoo crypto binance okx csv"`
	CSVDir       string        `mapstructure:"csv_dir"`
	BaseURL      string        `mapstructure:"base_url" validate:"omitempty,url"`
	DefaultQuote string        `mapstructure:"default_quote"`
	Timeout      time.Duration `mapstructure:"timeout" validate:"gte=0"`
	Retry        RetryConfig   `mapstructure:"retry"`
}

type RetryConfig struct {
	Attempts int           `mapstructure:"attempts" validate:"gte=1,lte=10"`
	Delay    time.Duration `mapstructure:"delay" validate:"gte=0"`
}

// Collector returns the retry settings for collector.NewRetrying.
func (r RetryConfig) Collector() collector.RetryConfig {
	return collector.RetryConfig{Attempts: r.Attempts, Delay: r.Delay}
}

// StrategyConfig holds named parameter presets for one strategy.
type StrategyConfig struct {
	Presets map[string]map[string]any `mapstructure:"presets"`
}

type StorageConfig struct {
	Backend string           `mapstructure:"backend" validate:"oneof=local s3"`
	Path    string           `mapstructure:"path"`
	S3      archive.S3Config `mapstructure:"s3"`
}

// Archive converts the section into archive.Config.
func (s StorageConfig) Archive() archive.Config {
	return archive.Config{Backend: s.Backend, Path: s.Path, S3: s.S3}
}

// MetricsConfig holds metrics configuration. Metrics are written to
// Textfile after each command when it is set.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// Load reads configuration from file over Defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Support environment variable overrides
	v.SetEnvPrefix("MOMENTUM")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, core.WrapError(core.ErrConfigMissing, fmt.Errorf("reading config: %w", err))
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	cfg := Defaults()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unmarshaling config: %w", err))
	}

	return cfg, nil
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Log: LogConfig{
			Level: "info",
		},
		Backtest: BacktestConfig{
			Strategy:     "simple_trend",
			Preset:       "default",
			Symbols:      []string{"BTC-USD", "ETH-USD"},
			From:         "2024-01-01",
			To:           "2024-06-30",
			Interval:     "1h",
			StartingCash: 10000,
			ReportFormat: "yaml",
		},
		Data: DataConfig{
			Source:       "yahoo",
			DefaultQuote: "USDT",
			Timeout:      collector.DefaultTimeout,
			Retry: RetryConfig{
				Attempts: 3,
				Delay:    3 * time.Second,
			},
		},
		Storage: StorageConfig{
			Backend: archive.BackendLocal,
			Path:    "./data",
		},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("%s failed %q validation (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
		}
		return core.WrapError(core.ErrConfigInvalid, err)
	}

	start, end, err := c.Backtest.Period()
	if err != nil {
		return core.WrapError(core.ErrConfigInvalid, err)
	}
	if !end.After(start) {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("backtest to %s must not be before from %s", c.Backtest.To, c.Backtest.From))
	}

	if c.Data.Source == "csv" && c.Data.CSVDir == "" {
		return core.WrapError(core.ErrConfigMissing,
			fmt.Errorf("data.csv_dir required when source is csv"))
	}

	switch c.Storage.Backend {
	case archive.BackendLocal:
		if c.Storage.Path == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("storage.path required for local backend"))
		}
	case archive.BackendS3:
		if c.Storage.S3.Bucket == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("storage.s3.bucket required for s3 backend"))
		}
	}

	return nil
}

// Presets flattens the strategies section for factory.ApplyPresets.
func (c *Config) Presets() map[string]map[string]map[string]any {
	out := make(map[string]map[string]map[string]any, len(c.Strategies))
	for name, sc := range c.Strategies {
		if len(sc.Presets) > 0 {
			out[name] = sc.Presets
		}
	}
	return out
}
