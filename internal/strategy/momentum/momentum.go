// Package momentum is the multi-indicator rule set: entries are scored by
// indicator confluence and sized between a minimum and maximum fraction,
// exits are layered from ATR stop down to trend reversal.
package momentum

import (
	"fmt"
	"time"

	"github.com/moznion/go-optional"
	"github.com/newthinker/momentum/internal/core"
	"github.com/newthinker/momentum/internal/indicator"
	"github.com/newthinker/momentum/internal/risk"
	"github.com/newthinker/momentum/internal/scorer"
	"github.com/newthinker/momentum/internal/strategy"
	"go.uber.org/zap"
)

// Name is the registry name of this rule set.
const Name = "quantum_momentum"

// Params configures the rules.
type Params struct {
	scorer.Config `mapstructure:",squash"`

	RSIOverbought      float64   `mapstructure:"rsi_overbought" validate:"gt=0,lte=100"`
	MinPositionPct     float64   `mapstructure:"min_position_pct" validate:"gt=0,lte=1"`
	MaxPositionPct     float64   `mapstructure:"max_position_pct" validate:"gtefield=MinPositionPct,lte=1"`
	StopLossATR        float64   `mapstructure:"stop_loss_atr_multiplier" validate:"gt=0"`
	TakeProfitLevels   []float64 `mapstructure:"take_profit_levels" validate:"dive,gt=0"`
	TakeProfitFraction float64   `mapstructure:"take_profit_fraction" validate:"gt=0,lte=1"`
	TrailingStop       float64   `mapstructure:"trailing_stop_pct" validate:"gt=0,lt=1"`
	MinSignalStrength  float64   `mapstructure:"min_signal_strength" validate:"gte=0,lte=1"`
	RSIExitFraction    float64   `mapstructure:"rsi_exit_fraction" validate:"gt=0,lte=1"`
	RSIExitMinProfit   float64   `mapstructure:"rsi_exit_min_profit" validate:"gte=0"`
	ReversalMaxLoss    float64   `mapstructure:"reversal_max_loss" validate:"gte=0,lt=1"`
	CooldownHours      float64   `mapstructure:"min_hours_between_trades" validate:"gte=0"`
	MaxExposure        float64   `mapstructure:"max_exposure" validate:"gt=0,lte=1"`
	MaxDrawdown        float64   `mapstructure:"max_drawdown_pct" validate:"gte=0,lt=1"`
	MaxTrades          int       `mapstructure:"max_trades_per_period" validate:"gte=0"`
	TradePeriod        string    `mapstructure:"trade_period" validate:"omitempty,oneof=day week month"`
	TargetPct          float64   `mapstructure:"target_pct" validate:"gte=0"`
	StopPct            float64   `mapstructure:"stop_pct" validate:"gte=0,lt=1"`
}

// DefaultTakeProfitLevels are the default take-profit tiers.
var DefaultTakeProfitLevels = []float64{0.08, 0.12, 0.18}

// Defaults returns the default parameters.
func Defaults() Params {
	return Params{
		Config:             scorer.DefaultConfig(),
		RSIOverbought:      70,
		MinPositionPct:     0.40,
		MaxPositionPct:     0.55,
		StopLossATR:        2.5,
		TakeProfitLevels:   append([]float64(nil), DefaultTakeProfitLevels...),
		TakeProfitFraction: 0.33,
		TrailingStop:       0.06,
		MinSignalStrength:  0.70,
		RSIExitFraction:    0.5,
		RSIExitMinProfit:   0.02,
		ReversalMaxLoss:    0.05,
		CooldownHours:      24,
		MaxExposure:        0.7,
		MaxDrawdown:        0.35,
		TradePeriod:        risk.PeriodMonth,
		TargetPct:          0.10,
		StopPct:            0.05,
	}
}

// Rules implements strategy.Rules.
type Rules struct {
	p      Params
	scorer *scorer.Scorer
	guards []risk.Guard
}

var _ strategy.Rules = (*Rules)(nil)

// NewRules builds the rule set from already validated params.
func NewRules(p Params) *Rules {
	return &Rules{
		p:      p,
		scorer: scorer.New(p.Config),
		guards: []risk.Guard{
			risk.HourCooldown{Hours: p.CooldownHours, Since: risk.SinceLastTrade},
			risk.ExposureGuard{MaxExposure: p.MaxExposure},
			risk.DrawdownGuard{MaxDrawdown: p.MaxDrawdown},
			risk.TradeLimiter{MaxPerPeriod: p.MaxTrades, Period: p.TradePeriod},
		},
	}
}

// New is the strategy.Constructor for this rule set.
func New(params map[string]any, deps strategy.Deps) (strategy.Strategy, error) {
	p := Defaults()
	p.TakeProfitLevels = nil
	if err := strategy.DecodeParams(params, &p); err != nil {
		return nil, err
	}
	if len(p.TakeProfitLevels) == 0 {
		p.TakeProfitLevels = append([]float64(nil), DefaultTakeProfitLevels...)
	}
	return strategy.NewMachine(NewRules(p), deps), nil
}

func (r *Rules) Name() string { return Name }

// Params returns the configured parameters.
func (r *Rules) Params() Params { return r.p }

func (r *Rules) HistoryCapacity() int {
	c := r.p.Config
	return max(c.EMASlow, c.EMAMedium, c.BBPeriod, c.ATRPeriod+1, c.RSIPeriod+1, c.MACDSlow) + 50
}

func (r *Rules) PeriodKey(ts time.Time) string {
	return risk.TradeLimiter{Period: r.p.TradePeriod}.Key(ts)
}

func (r *Rules) Decide(d *strategy.Decision) core.Signal {
	if d.Holding() {
		if sig, ok := r.exit(d); ok {
			return sig
		}
	}
	return r.entry(d)
}

func (r *Rules) exit(d *strategy.Decision) (core.Signal, bool) {
	price := d.Price()
	entry := *d.State.EntryPrice
	pnl := d.PnL()
	c := r.p.Config

	if atr := indicator.ATR(d.Prices, c.ATRPeriod); atr.IsSome() {
		if price <= entry-atr.Unwrap()*r.p.StopLossATR {
			return d.SellAll(fmt.Sprintf("Stop loss (ATR) at %.2f%%", pnl*100)), true
		}
	}

	if peak := d.State.HighestSinceEntry; peak != nil && price <= *peak*(1-r.p.TrailingStop) {
		return d.SellAll(fmt.Sprintf("Trailing stop at %.2f%%", pnl*100)), true
	}

	for i, level := range r.p.TakeProfitLevels {
		if pnl >= level && !d.State.TierHit(i) {
			d.State.TiersHit = append(d.State.TiersHit, i)
			return d.SellFraction(r.p.TakeProfitFraction, fmt.Sprintf("Take profit %d at %.2f%%", i+1, pnl*100)), true
		}
	}

	if rsi := indicator.RSI(d.Prices, c.RSIPeriod); rsi.IsSome() && rsi.Unwrap() > r.p.RSIOverbought && pnl > r.p.RSIExitMinProfit {
		return d.SellFraction(r.p.RSIExitFraction, fmt.Sprintf("RSI overbought exit at %.2f%%", pnl*100)), true
	}

	fast := indicator.EMA(d.Prices, c.EMAFast)
	medium := indicator.EMA(d.Prices, c.EMAMedium)
	if fast.IsSome() && medium.IsSome() && fast.Unwrap() < medium.Unwrap() && pnl > -r.p.ReversalMaxLoss {
		return d.SellAll(fmt.Sprintf("Trend reversal exit at %.2f%%", pnl*100)), true
	}

	return core.Signal{}, false
}

func (r *Rules) entry(d *strategy.Decision) core.Signal {
	c := r.p.Config
	if len(d.Prices) < c.EMASlow {
		return core.Hold("Insufficient data for indicators")
	}
	if res := d.Guard(r.guards...); !res.Allowed {
		return core.Hold(res.Reason)
	}

	fast := indicator.EMA(d.Prices, c.EMAFast)
	medium := indicator.EMA(d.Prices, c.EMAMedium)
	rsi := indicator.RSI(d.Prices, c.RSIPeriod)
	bullish := fast.IsSome() && medium.IsSome() && fast.Unwrap() > medium.Unwrap()
	notOverbought := rsi.IsSome() && rsi.Unwrap() < r.p.RSIOverbought
	if !bullish || !notOverbought {
		return core.Hold("Trend conditions not met")
	}

	breakdown := r.scorer.Evaluate(d.Prices)
	score := breakdown.Score()
	if score < r.p.MinSignalStrength {
		return core.Hold(fmt.Sprintf("Signal strength too low: %.1f%% (min: %.0f%%)", score*100, r.p.MinSignalStrength*100))
	}

	fraction := risk.ScaledFraction(score, r.p.MinPositionPct, r.p.MaxPositionPct)
	d.Logger.Debug("scored entry",
		zap.Float64("score", score),
		zap.Float64("fraction", fraction),
		zap.Any("breakdown", breakdown),
	)

	sig := d.Buy(fraction, fmt.Sprintf("BUY signal (strength: %.1f%%, position: %.1f%%)", score*100, fraction*100))
	if sig.Action == core.ActionBuy {
		price := d.Price()
		sig.TargetPrice = optional.Some(price * (1 + r.p.TargetPct))
		sig.StopLoss = optional.Some(price * (1 - r.p.StopPct))
	}
	return sig
}
