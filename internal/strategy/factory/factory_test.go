package factory_test

import (
	"errors"
	"testing"

	"github.com/newthinker/momentum/internal/core"
	"github.com/newthinker/momentum/internal/strategy"
	"github.com/newthinker/momentum/internal/strategy/factory"
	"github.com/newthinker/momentum/internal/strategy/momentum"
	"github.com/newthinker/momentum/internal/strategy/simpletrend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewRegistry_Names(t *testing.T) {
	reg := factory.NewRegistry(zap.NewNop())

	assert.Equal(t, []string{"asymmetric", "dip_buyer", "quantum_momentum", "simple_trend", "trend_rider"}, reg.Names())
	assert.Equal(t, []string{"classic", "default"}, reg.Presets("simple_trend"))
	assert.Equal(t, []string{"default", "legacy"}, reg.Presets("quantum_momentum"))
	for _, name := range reg.Names() {
		assert.NotEmpty(t, reg.Description(name), name)
	}
}

func TestNewRegistry_BuildEveryPreset(t *testing.T) {
	reg := factory.NewRegistry(nil)
	for _, name := range reg.Names() {
		for _, preset := range reg.Presets(name) {
			s, err := reg.Build(name, preset, nil, strategy.Deps{})
			require.NoError(t, err, "%s/%s", name, preset)
			assert.Equal(t, name, s.Name())
		}
	}
}

func TestNewRegistry_PresetValues(t *testing.T) {
	reg := factory.NewRegistry(nil)

	s, err := reg.Build(momentum.Name, "legacy", nil, strategy.Deps{})
	require.NoError(t, err)
	p := s.(*strategy.Machine).Rules().(*momentum.Rules).Params()
	assert.Equal(t, []float64{0.05, 0.08, 0.12}, p.TakeProfitLevels)
	assert.Equal(t, 0.5, p.MinSignalStrength)
	assert.Equal(t, 0.30, p.MinPositionPct)

	s, err = reg.Build(simpletrend.Name, "classic", map[string]any{"rsi_max": 70}, strategy.Deps{})
	require.NoError(t, err)
	sp := s.(*strategy.Machine).Rules().(*simpletrend.Rules).Params()
	assert.Equal(t, 50, sp.TrendEMA)
	assert.Equal(t, 0.10, sp.TakeProfit)
	assert.Equal(t, 70.0, sp.RSIMax, "explicit params override the preset")
}

func TestApplyPresets(t *testing.T) {
	reg := factory.NewRegistry(nil)

	err := factory.ApplyPresets(reg, map[string]map[string]map[string]any{
		"dip_buyer": {"deep": {"dip_threshold_pct": 0.05}},
	})
	require.NoError(t, err)
	assert.Contains(t, reg.Presets("dip_buyer"), "deep")

	err = factory.ApplyPresets(reg, map[string]map[string]map[string]any{"nope": {"x": {}}})
	assert.ErrorIs(t, err, core.ErrUnknownStrategy)
}

func TestDefaults(t *testing.T) {
	d, err := factory.Defaults(simpletrend.Name)
	require.NoError(t, err)
	assert.Equal(t, 20, d["trend_ema_period"])
	assert.Equal(t, 0.06, d["take_profit_pct"])

	d, err = factory.Defaults(momentum.Name)
	require.NoError(t, err)
	assert.Equal(t, 20, d["ema_fast"], "embedded scorer settings are flattened")
	assert.Equal(t, momentum.DefaultTakeProfitLevels, d["take_profit_levels"])

	_, err = factory.Defaults("martingale")
	assert.True(t, errors.Is(err, core.ErrUnknownStrategy))
}

func TestSchema(t *testing.T) {
	reg := factory.NewRegistry(nil)
	for _, name := range reg.Names() {
		t.Run(name, func(t *testing.T) {
			schema, err := factory.Schema(name)
			require.NoError(t, err)
			assert.Equal(t, name, schema.Title)
			assert.Empty(t, schema.Required)
			assert.Positive(t, schema.Properties.Len())
		})
	}

	schema, err := factory.Schema(momentum.Name)
	require.NoError(t, err)
	prop, ok := schema.Properties.Get("min_signal_strength")
	require.True(t, ok)
	assert.Equal(t, "number", prop.Type)
	assert.Equal(t, 0.70, prop.Default)

	_, ok = schema.Properties.Get("ema_slow")
	assert.True(t, ok, "embedded scorer settings are inlined")
}
