// Package scorer combines indicator readings into a confluence score in [0,1].
package scorer

import (
	"github.com/newthinker/momentum/internal/indicator"
)

// components is the number of indicator contributions in a full score.
const components = 6

// momentumLookback is the bar distance used for the short-term momentum component.
const momentumLookback = 10

// Config holds the indicator periods and thresholds used by the scorer.
type Config struct {
	EMAFast     int     `mapstructure:"ema_fast" validate:"gt=0"`
	EMAMedium   int     `mapstructure:"ema_medium" validate:"gtfield=EMAFast"`
	EMASlow     int     `mapstructure:"ema_slow" validate:"gtfield=EMAMedium"`
	RSIPeriod   int     `mapstructure:"rsi_period" validate:"gt=0"`
	RSIOversold float64 `mapstructure:"rsi_oversold" validate:"gt=0,lt=100"`
	MACDFast    int     `mapstructure:"macd_fast" validate:"gt=0"`
	MACDSlow    int     `mapstructure:"macd_slow" validate:"gtfield=MACDFast"`
	BBPeriod    int     `mapstructure:"bb_period" validate:"gt=0"`
	BBStd       float64 `mapstructure:"bb_std" validate:"gt=0"`
	ATRPeriod   int     `mapstructure:"atr_period" validate:"gt=0"`
}

// DefaultConfig returns the default scorer configuration.
func DefaultConfig() Config {
	return Config{
		EMAFast:     20,
		EMAMedium:   50,
		EMASlow:     100,
		RSIPeriod:   14,
		RSIOversold: 35,
		MACDFast:    indicator.MACDFast,
		MACDSlow:    indicator.MACDSlow,
		BBPeriod:    20,
		BBStd:       2.0,
		ATRPeriod:   14,
	}
}

// Breakdown holds each component's contribution (0, 0.5 or 1).
type Breakdown struct {
	Trend      float64 `json:"trend"`
	RSI        float64 `json:"rsi"`
	MACD       float64 `json:"macd"`
	Bollinger  float64 `json:"bollinger"`
	Momentum   float64 `json:"momentum"`
	Volatility float64 `json:"volatility"`
}

// Total sums all contributions.
func (b Breakdown) Total() float64 {
	return b.Trend + b.RSI + b.MACD + b.Bollinger + b.Momentum + b.Volatility
}

// Score normalises the total into [0,1].
func (b Breakdown) Score() float64 {
	return min(b.Total()/components, 1.0)
}

// Scorer evaluates indicator confluence.
type Scorer struct {
	cfg Config
}

// New creates a scorer with the given configuration.
func New(cfg Config) *Scorer {
	return &Scorer{cfg: cfg}
}

// Evaluate computes every component over prices, whose last element is
// the current price. A history shorter than the slow EMA
// period yields an all-zero breakdown.
func (s *Scorer) Evaluate(prices []float64) Breakdown {
	var b Breakdown
	if len(prices) == 0 || len(prices) < s.cfg.EMASlow {
		return b
	}
	price := prices[len(prices)-1]

	fast := indicator.EMA(prices, s.cfg.EMAFast)
	medium := indicator.EMA(prices, s.cfg.EMAMedium)
	slow := indicator.EMA(prices, s.cfg.EMASlow)
	if fast.IsSome() && medium.IsSome() && slow.IsSome() {
		f, m, sl := fast.Unwrap(), medium.Unwrap(), slow.Unwrap()
		switch {
		case f > m && m > sl:
			b.Trend = 1
		case f > m:
			b.Trend = 0.5
		}
	}

	if rsi := indicator.RSI(prices, s.cfg.RSIPeriod); rsi.IsSome() {
		switch v := rsi.Unwrap(); {
		case v < s.cfg.RSIOversold:
			b.RSI = 1
		case v < 50:
			b.RSI = 0.5
		}
	}

	if macd := indicator.MACD(prices, s.cfg.MACDFast, s.cfg.MACDSlow); macd.IsSome() {
		if m := macd.Unwrap(); m.Line > m.Signal {
			b.MACD = 1
		}
	}

	if bands := indicator.Bollinger(prices, s.cfg.BBPeriod, s.cfg.BBStd); bands.IsSome() {
		switch bb := bands.Unwrap(); {
		case price <= bb.Lower:
			b.Bollinger = 1
		case price < bb.Middle:
			b.Bollinger = 0.5
		}
	}

	if mom := indicator.Momentum(prices, momentumLookback); mom.IsSome() {
		switch v := mom.Unwrap(); {
		case v > 0:
			b.Momentum = 1
		case v > -0.02:
			b.Momentum = 0.5
		}
	}

	if atr := indicator.ATR(prices, s.cfg.ATRPeriod); atr.IsSome() && price > 0 {
		switch v := atr.Unwrap() / price; {
		case v < 0.02:
			b.Volatility = 1
		case v < 0.04:
			b.Volatility = 0.5
		}
	}

	return b
}
