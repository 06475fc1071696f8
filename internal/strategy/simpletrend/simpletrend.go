// Package simpletrend is a momentum-breakout rule set: buy new highs above
// the trend EMA, take a fixed profit, and cap entries per period.
package simpletrend

import (
	"fmt"
	"time"

	"github.com/newthinker/momentum/internal/core"
	"github.com/newthinker/momentum/internal/indicator"
	"github.com/newthinker/momentum/internal/risk"
	"github.com/newthinker/momentum/internal/strategy"
)

// Name is the registry name of this rule set.
const Name = "simple_trend"

// Params configures the rules. RSIMax of zero disables the RSI filter.
type Params struct {
	TrendEMA       int     `mapstructure:"trend_ema_period" validate:"gt=0"`
	MomentumPeriod int     `mapstructure:"momentum_period" validate:"gt=0"`
	PositionPct    float64 `mapstructure:"position_pct" validate:"gt=0,lte=1"`
	TakeProfit     float64 `mapstructure:"take_profit_pct" validate:"gt=0"`
	StopLoss       float64 `mapstructure:"stop_loss_pct" validate:"gt=0,lt=1"`
	TrailingStop   float64 `mapstructure:"trailing_stop_pct" validate:"gte=0,lt=1"`
	MaxTrades      int     `mapstructure:"max_trades_per_period" validate:"gte=0"`
	TradePeriod    string  `mapstructure:"trade_period" validate:"omitempty,oneof=day week month"`
	RSIPeriod      int     `mapstructure:"rsi_period" validate:"gt=0"`
	RSIMax         float64 `mapstructure:"rsi_max" validate:"gte=0,lte=100"`
	MaxDrawdown    float64 `mapstructure:"max_drawdown_pct" validate:"gte=0,lt=1"`
}

// Defaults returns the default parameters.
func Defaults() Params {
	return Params{
		TrendEMA:       20,
		MomentumPeriod: 10,
		PositionPct:    0.55,
		TakeProfit:     0.06,
		StopLoss:       0.05,
		TrailingStop:   0.04,
		MaxTrades:      3,
		TradePeriod:    risk.PeriodMonth,
		RSIPeriod:      14,
	}
}

// Rules implements strategy.Rules.
type Rules struct {
	p       Params
	limiter risk.TradeLimiter
	guards  []risk.Guard
}

// NewRules builds the rule set from already validated params.
func NewRules(p Params) *Rules {
	limiter := risk.TradeLimiter{MaxPerPeriod: p.MaxTrades, Period: p.TradePeriod}
	return &Rules{
		p:       p,
		limiter: limiter,
		guards:  []risk.Guard{limiter, risk.DrawdownGuard{MaxDrawdown: p.MaxDrawdown}},
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
	return max(r.p.TrendEMA, r.p.MomentumPeriod+1, r.p.RSIPeriod+1) + 50
}

func (r *Rules) PeriodKey(ts time.Time) string {
	return r.limiter.Key(ts)
}

func (r *Rules) Decide(d *strategy.Decision) core.Signal {
	if len(d.Prices) < r.p.TrendEMA {
		return core.Hold("Warming up")
	}
	price := d.Price()

	if d.Holding() {
		pnl := d.PnL()
		if pnl >= r.p.TakeProfit {
			return d.SellAll(fmt.Sprintf("Take profit at %+.1f%%", pnl*100))
		}
		if r.p.TrailingStop > 0 && d.DrawdownFromPeak() >= r.p.TrailingStop && pnl > 0 {
			return d.SellAll(fmt.Sprintf("Trailing stop at %+.1f%%", pnl*100))
		}
		if pnl <= -r.p.StopLoss {
			return d.SellAll(fmt.Sprintf("Stop loss at %.1f%%", pnl*100))
		}
	}

	if d.Portfolio.Quantity > 0 {
		return core.Hold("Already in position")
	}
	if res := d.Guard(r.guards...); !res.Allowed {
		return core.Hold(res.Reason)
	}

	ema := indicator.EMA(d.Prices, r.p.TrendEMA)
	if ema.IsNone() {
		return core.Hold("Calculating indicators")
	}

	if price > ema.Unwrap() && indicator.IsNewHigh(d.Prices, r.p.MomentumPeriod) {
		if r.p.RSIMax > 0 {
			if rsi := indicator.RSI(d.Prices, r.p.RSIPeriod); rsi.IsSome() && rsi.Unwrap() > r.p.RSIMax {
				return core.Hold(fmt.Sprintf("RSI too high: %.1f > %.0f", rsi.Unwrap(), r.p.RSIMax))
			}
		}
		return d.Buy(r.p.PositionPct, fmt.Sprintf("Momentum breakout (new %d-period high)", r.p.MomentumPeriod))
	}
	return core.Hold("Waiting for trend entry")
}
