// Package asymmetric routes one instrument to a trend-following or a
// dip-buying rule set depending on its instrument class.
package asymmetric

import (
	"strings"
	"time"

	"github.com/newthinker/momentum/internal/core"
	"github.com/newthinker/momentum/internal/risk"
	"github.com/newthinker/momentum/internal/strategy"
	"github.com/newthinker/momentum/internal/strategy/dipbuyer"
	"github.com/newthinker/momentum/internal/strategy/trendrider"
	"go.uber.org/zap"
)

// Name is the registry name of this rule set.
const Name = "asymmetric"

// Instrument classes.
const (
	ClassTrend = "trend"
	ClassDip   = "dip"
)

// Params configures both routed rule sets.
type Params struct {
	InstrumentClass     string  `mapstructure:"instrument_class" validate:"omitempty,oneof=trend dip"`
	ClassPriceThreshold float64 `mapstructure:"class_price_threshold" validate:"gt=0"`

	TrendFastEMA      int     `mapstructure:"btc_fast_ema_period" validate:"gt=0"`
	TrendSlowEMA      int     `mapstructure:"btc_slow_ema_period" validate:"gt=0,gtfield=TrendFastEMA"`
	TrendBreakout     int     `mapstructure:"btc_breakout_period" validate:"gt=0"`
	TrendStopLoss     float64 `mapstructure:"btc_stop_loss_pct" validate:"gt=0,lt=1"`
	TrendTrailingStop float64 `mapstructure:"btc_trailing_stop_pct" validate:"gt=0,lt=1"`
	TrendMinBars      int     `mapstructure:"btc_min_bars_between_trades" validate:"gte=0"`

	DipThreshold    float64 `mapstructure:"eth_dip_threshold_pct" validate:"gt=0,lt=1"`
	DipLookback     float64 `mapstructure:"eth_lookback_hours" validate:"gt=0"`
	DipTrailingStop float64 `mapstructure:"eth_trailing_stop_pct" validate:"gt=0,lt=1"`
	DipCooldown     float64 `mapstructure:"eth_cooldown_hours" validate:"gte=0"`

	PositionPct float64 `mapstructure:"position_pct" validate:"gt=0,lte=1"`
	MaxTrades   int     `mapstructure:"max_trades_per_period" validate:"gte=0"`
	TradePeriod string  `mapstructure:"trade_period" validate:"omitempty,oneof=day week month"`
	MaxDrawdown float64 `mapstructure:"max_drawdown_pct" validate:"gte=0,lt=1"`
}

// Defaults returns the default parameters.
func Defaults() Params {
	trend := trendrider.Defaults()
	dip := dipbuyer.Defaults()
	return Params{
		ClassPriceThreshold: 10000,
		TrendFastEMA:        trend.FastEMA,
		TrendSlowEMA:        trend.SlowEMA,
		TrendBreakout:       trend.BreakoutPeriod,
		TrendStopLoss:       trend.StopLoss,
		TrendTrailingStop:   trend.TrailingStop,
		TrendMinBars:        trend.MinBars,
		DipThreshold:        dip.DipThreshold,
		DipLookback:         dip.LookbackHours,
		DipTrailingStop:     dip.TrailingStop,
		DipCooldown:         dip.CooldownHours,
		PositionPct:         0.55,
		TradePeriod:         risk.PeriodMonth,
	}
}

func (p Params) trend() trendrider.Params {
	t := trendrider.Defaults()
	t.FastEMA = p.TrendFastEMA
	t.SlowEMA = p.TrendSlowEMA
	t.BreakoutPeriod = p.TrendBreakout
	t.StopLoss = p.TrendStopLoss
	t.TrailingStop = p.TrendTrailingStop
	t.MinBars = p.TrendMinBars
	t.PositionPct = p.PositionPct
	t.MaxTrades = p.MaxTrades
	t.TradePeriod = p.TradePeriod
	t.MaxDrawdown = p.MaxDrawdown
	return t
}

func (p Params) dip() dipbuyer.Params {
	d := dipbuyer.Defaults()
	d.DipThreshold = p.DipThreshold
	d.LookbackHours = p.DipLookback
	d.TrailingStop = p.DipTrailingStop
	d.CooldownHours = p.DipCooldown
	d.PositionPct = p.PositionPct
	d.MaxTrades = p.MaxTrades
	d.TradePeriod = p.TradePeriod
	d.MaxDrawdown = p.MaxDrawdown
	return d
}

// Rules implements strategy.Rules by delegating to the rule set of the
// resolved instrument class.
type Rules struct {
	p     Params
	trend *trendrider.Rules
	dip   *dipbuyer.Rules
}

var _ strategy.Rules = (*Rules)(nil)

// NewRules builds the router from already validated params.
func NewRules(p Params) *Rules {
	return &Rules{
		p:     p,
		trend: trendrider.NewRules(p.trend()),
		dip:   dipbuyer.NewRules(p.dip()),
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
	return max(r.trend.HistoryCapacity(), r.dip.HistoryCapacity())
}

func (r *Rules) PeriodKey(ts time.Time) string {
	return risk.TradeLimiter{Period: r.p.TradePeriod}.Key(ts)
}

// ClassFromSymbol maps well-known symbols to a class. It returns "" when the
// symbol gives no hint.
func ClassFromSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	switch {
	case strings.HasPrefix(s, "BTC"), strings.HasPrefix(s, "XBT"):
		return ClassTrend
	case strings.HasPrefix(s, "ETH"):
		return ClassDip
	}
	return ""
}

// resolve picks the class once per instrument: explicit param first, then
// the symbol, then the price heuristic.
func (r *Rules) resolve(d *strategy.Decision) string {
	if c := d.State.InstrumentClass; c == ClassTrend || c == ClassDip {
		return c
	}
	class := r.p.InstrumentClass
	if class == "" {
		class = ClassFromSymbol(d.Market.Symbol)
	}
	if class == "" {
		class = ClassDip
		if d.Price() > r.p.ClassPriceThreshold {
			class = ClassTrend
		}
		d.Logger.Warn("instrument class inferred from price",
			zap.String("symbol", d.Market.Symbol),
			zap.Float64("price", d.Price()),
			zap.Float64("threshold", r.p.ClassPriceThreshold),
			zap.String("class", class),
		)
	}
	d.State.InstrumentClass = class
	return class
}

func (r *Rules) Decide(d *strategy.Decision) core.Signal {
	if r.resolve(d) == ClassTrend {
		return r.trend.Decide(d)
	}
	return r.dip.Decide(d)
}
