// Package factory registers every built-in rule set and its presets.
package factory

import (
	"github.com/newthinker/momentum/internal/strategy"
	"github.com/newthinker/momentum/internal/strategy/asymmetric"
	"github.com/newthinker/momentum/internal/strategy/dipbuyer"
	"github.com/newthinker/momentum/internal/strategy/momentum"
	"github.com/newthinker/momentum/internal/strategy/simpletrend"
	"github.com/newthinker/momentum/internal/strategy/trendrider"
	"go.uber.org/zap"
)

type builtin struct {
	name        string
	description string
	ctor        strategy.Constructor
	defaults    any
	presets     map[string]map[string]any
}

var builtins = []builtin{
	{
		name:        trendrider.Name,
		description: "Breakout above the slow EMA, ride the trend until it reverses",
		ctor:        trendrider.New,
		defaults:    trendrider.Defaults(),
		presets:     map[string]map[string]any{strategy.DefaultPreset: {}},
	},
	{
		name:        simpletrend.Name,
		description: "New N-bar high above the trend EMA with fixed take profit and stop",
		ctor:        simpletrend.New,
		defaults:    simpletrend.Defaults(),
		presets: map[string]map[string]any{
			strategy.DefaultPreset: {},
			"classic": {
				"trend_ema_period": 50,
				"take_profit_pct":  0.10,
				"stop_loss_pct":    0.04,
				"rsi_max":          65,
			},
		},
	},
	{
		name:        dipbuyer.Name,
		description: "Buy a fixed dip below the rolling high, exit on a trailing stop",
		ctor:        dipbuyer.New,
		defaults:    dipbuyer.Defaults(),
		presets:     map[string]map[string]any{strategy.DefaultPreset: {}},
	},
	{
		name:        momentum.Name,
		description: "Multi-indicator scored entries with layered exits and tiered take profit",
		ctor:        momentum.New,
		defaults:    momentum.Defaults(),
		presets: map[string]map[string]any{
			strategy.DefaultPreset: {},
			"legacy": {
				"take_profit_levels":       []float64{0.05, 0.08, 0.12},
				"min_signal_strength":      0.5,
				"stop_loss_atr_multiplier": 2.0,
				"trailing_stop_pct":        0.04,
				"min_position_pct":         0.30,
			},
		},
	},
	{
		name:        asymmetric.Name,
		description: "Route trend instruments to trend_rider rules and others to dip_buyer rules",
		ctor:        asymmetric.New,
		defaults:    asymmetric.Defaults(),
		presets:     map[string]map[string]any{strategy.DefaultPreset: {}},
	},
}

// NewRegistry returns a registry with every built-in rule set and preset.
func NewRegistry(logger *zap.Logger) *strategy.Registry {
	reg := strategy.NewRegistry(logger)
	for _, b := range builtins {
		reg.Register(b.name, b.description, b.ctor)
		for preset, params := range b.presets {
			// the strategy was registered just above
			_ = reg.RegisterPreset(b.name, preset, params)
		}
	}
	return reg
}

// ApplyPresets adds user-defined presets, keyed by strategy then preset name.
// Unknown strategies are reported as errors.
func ApplyPresets(reg *strategy.Registry, presets map[string]map[string]map[string]any) error {
	for name, byPreset := range presets {
		for preset, params := range byPreset {
			if err := reg.RegisterPreset(name, preset, params); err != nil {
				return err
			}
		}
	}
	return nil
}
