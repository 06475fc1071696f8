// Package dipbuyer buys a fixed dip from the rolling high of a time window
// and exits on a trailing stop.
package dipbuyer

import (
	"fmt"
	"time"

	"github.com/newthinker/momentum/internal/core"
	"github.com/newthinker/momentum/internal/risk"
	"github.com/newthinker/momentum/internal/strategy"
)

// Name is the registry name of this rule set.
const Name = "dip_buyer"

// historyCapacity bounds the rolling-high window in samples.
const historyCapacity = 200

// Params configures the rules.
type Params struct {
	DipThreshold  float64 `mapstructure:"dip_threshold_pct" validate:"gt=0,lt=1"`
	LookbackHours float64 `mapstructure:"lookback_hours" validate:"gt=0"`
	TrailingStop  float64 `mapstructure:"trailing_stop_pct" validate:"gt=0,lt=1"`
	CooldownHours float64 `mapstructure:"cooldown_hours" validate:"gte=0"`
	PositionPct   float64 `mapstructure:"position_pct" validate:"gt=0,lte=1"`
	MaxTrades     int     `mapstructure:"max_trades_per_period" validate:"gte=0"`
	TradePeriod   string  `mapstructure:"trade_period" validate:"omitempty,oneof=day week month"`
	MaxDrawdown   float64 `mapstructure:"max_drawdown_pct" validate:"gte=0,lt=1"`
}

// Defaults returns the default parameters.
func Defaults() Params {
	return Params{
		DipThreshold:  0.02,
		LookbackHours: 72,
		TrailingStop:  0.15,
		CooldownHours: 12,
		PositionPct:   0.55,
		TradePeriod:   risk.PeriodMonth,
	}
}

// Rules implements strategy.Rules.
type Rules struct {
	p      Params
	guards []risk.Guard
}

// NewRules builds the rule set from already validated params.
func NewRules(p Params) *Rules {
	return &Rules{
		p: p,
		guards: []risk.Guard{
			risk.HourCooldown{Hours: p.CooldownHours, Since: risk.SinceLastExit},
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

func (r *Rules) HistoryCapacity() int { return historyCapacity }

func (r *Rules) PeriodKey(ts time.Time) string {
	return risk.TradeLimiter{Period: r.p.TradePeriod}.Key(ts)
}

func (r *Rules) Decide(d *strategy.Decision) core.Signal {
	if d.Holding() {
		pnl := d.PnL()
		if d.DrawdownFromPeak() >= r.p.TrailingStop {
			return d.SellAll(fmt.Sprintf("Trailing stop at %+.1f%%", pnl*100))
		}
		return core.Hold(fmt.Sprintf("Holding: %+.1f%%", pnl*100))
	}
	if d.Portfolio.Quantity > 0 {
		return core.Hold("Position held")
	}
	if res := d.Guard(r.guards...); !res.Allowed {
		return core.Hold(res.Reason)
	}

	window := time.Duration(r.p.LookbackHours * float64(time.Hour))
	high := d.HighSince(window)
	if high.IsNone() || high.Unwrap() <= 0 {
		return core.Hold("Insufficient history")
	}

	dip := (high.Unwrap() - d.Price()) / high.Unwrap()
	if dip >= r.p.DipThreshold {
		return d.Buy(r.p.PositionPct, fmt.Sprintf("Dip buy: %.1f%% below %.0fh high", dip*100, r.p.LookbackHours))
	}
	return core.Hold(fmt.Sprintf("Waiting for dip (current: %.1f%%)", dip*100))
}
