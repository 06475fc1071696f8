// Package trendrider holds a trend-follow-and-hold rule set: enter on a
// confirmed breakout above the slow EMA and ride the trend until it reverses.
package trendrider

import (
	"fmt"
	"time"

	"github.com/newthinker/momentum/internal/core"
	"github.com/newthinker/momentum/internal/indicator"
	"github.com/newthinker/momentum/internal/risk"
	"github.com/newthinker/momentum/internal/strategy"
	"go.uber.org/zap"
)

// Name is the registry name of this rule set.
const Name = "trend_rider"

// Params configures the rules.
type Params struct {
	FastEMA        int     `mapstructure:"fast_ema_period" validate:"gt=0"`
	SlowEMA        int     `mapstructure:"slow_ema_period" validate:"gt=0,gtfield=FastEMA"`
	BreakoutPeriod int     `mapstructure:"breakout_period" validate:"gt=0"`
	BreakoutMargin float64 `mapstructure:"breakout_margin" validate:"gte=0"`
	TrendMargin    float64 `mapstructure:"trend_margin" validate:"gte=0"`
	PositionPct    float64 `mapstructure:"position_pct" validate:"gt=0,lte=1"`
	StopLoss       float64 `mapstructure:"stop_loss_pct" validate:"gt=0,lt=1"`
	TrailingStop   float64 `mapstructure:"trailing_stop_pct" validate:"gt=0,lt=1"`
	MinBars        int     `mapstructure:"min_bars_between_trades" validate:"gte=0"`
	MaxTrades      int     `mapstructure:"max_trades_per_period" validate:"gte=0"`
	TradePeriod    string  `mapstructure:"trade_period" validate:"omitempty,oneof=day week month"`
	MaxDrawdown    float64 `mapstructure:"max_drawdown_pct" validate:"gte=0,lt=1"`
}

// Defaults returns the default parameters.
func Defaults() Params {
	return Params{
		FastEMA:        20,
		SlowEMA:        50,
		BreakoutPeriod: 20,
		BreakoutMargin: 0.005,
		TrendMargin:    0.02,
		PositionPct:    0.55,
		StopLoss:       0.15,
		TrailingStop:   0.20,
		MinBars:        50,
		TradePeriod:    risk.PeriodMonth,
	}
}

// Rules implements strategy.Rules.
type Rules struct {
	p      Params
	guards []risk.Guard
}

var _ strategy.Rules = (*Rules)(nil)

// NewRules builds the rule set from already validated params.
func NewRules(p Params) *Rules {
	return &Rules{
		p: p,
		guards: []risk.Guard{
			risk.BarCooldown{Bars: p.MinBars},
			risk.TradeLimiter{MaxPerPeriod: p.MaxTrades, Period: p.TradePeriod},
			risk.DrawdownGuard{MaxDrawdown: p.MaxDrawdown},
		},
	}
}

// New is the strategy.Constructor for this rule set.
func New(params map[string]any, deps strategy.Deps) (strategy.Strategy, error) {
	p := Defaults()
	if err := strategy.DecodeParams(params, &p); err != nil {
		return nil, err
	}
	return strategy.NewMachine(NewRules(p), deps), nil
}

func (r *Rules) Name() string { return Name }

// Params returns the configured parameters.
func (r *Rules) Params() Params { return r.p }

func (r *Rules) HistoryCapacity() int {
	return max(r.p.SlowEMA, r.p.BreakoutPeriod+1) + 10
}

func (r *Rules) PeriodKey(ts time.Time) string {
	return risk.TradeLimiter{Period: r.p.TradePeriod}.Key(ts)
}

func (r *Rules) Decide(d *strategy.Decision) core.Signal {
	if len(d.Prices) < r.p.SlowEMA {
		return core.Hold("Insufficient data for trend analysis")
	}

	fast := indicator.EMA(d.Prices, r.p.FastEMA)
	slow := indicator.EMA(d.Prices, r.p.SlowEMA)
	if fast.IsNone() || slow.IsNone() {
		return core.Hold("EMA calculation pending")
	}
	fastEMA, slowEMA := fast.Unwrap(), slow.Unwrap()
	price := d.Price()

	if d.Holding() {
		pnl := d.PnL()
		if price < slowEMA {
			d.Logger.Info("trend reversal", zap.Float64("price", price), zap.Float64("slow_ema", slowEMA))
			return d.SellAll(fmt.Sprintf("Trend reversal - exit at %+.1f%%", pnl*100))
		}
		if pnl <= -r.p.StopLoss {
			return d.SellAll(fmt.Sprintf("Stop loss at %.1f%%", pnl*100))
		}
		if d.DrawdownFromPeak() >= r.p.TrailingStop && pnl > 0 {
			return d.SellAll(fmt.Sprintf("Trailing stop at %+.1f%%", pnl*100))
		}
		return core.Hold(fmt.Sprintf("Riding trend: %+.1f%%", pnl*100))
	}

	if d.Portfolio.Quantity > 0 {
		return core.Hold("Position already held")
	}
	if res := d.Guard(r.guards...); !res.Allowed {
		return core.Hold(res.Reason)
	}

	breakout := indicator.IsBreakout(d.Prices, r.p.BreakoutPeriod, r.p.BreakoutMargin)
	aboveSlow := price > slowEMA*(1+r.p.TrendMargin)
	if breakout && aboveSlow && fastEMA > slowEMA {
		return d.Buy(r.p.PositionPct, fmt.Sprintf("Major trend breakout - %d period high", r.p.BreakoutPeriod))
	}
	return core.Hold("Waiting for breakout setup")
}
