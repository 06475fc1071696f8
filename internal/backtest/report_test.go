package backtest

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/newthinker/momentum/internal/core"
	"github.com/newthinker/momentum/internal/storage/archive"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func sampleResults() []*Result {
	return []*Result{
		{Strategy: "simple_trend", Symbol: "ETH-USD", Metrics: Metrics{
			StartingCash: 10000, FinalValue: 11000, TotalReturnPct: 10, TotalPnL: 1000,
			TotalTrades: 4, WinRatePct: 50, MaxDrawdownPct: 8,
		}},
		{Strategy: "simple_trend", Symbol: "BTC-USD", Metrics: Metrics{
			StartingCash: 10000, FinalValue: 9800, TotalReturnPct: -2, TotalPnL: -200,
			TotalTrades: 2, WinRatePct: 0, MaxDrawdownPct: 12,
		}},
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(sampleResults())

	assert.Equal(t, 2, s.Symbols)
	assert.InDelta(t, 4.0, s.TotalReturnPct, 1e-9)
	assert.InDelta(t, 800.0, s.TotalPnL, 1e-9)
	assert.Equal(t, 6, s.TotalTrades)
	assert.InDelta(t, 25.0, s.WinRatePct, 1e-9)
	assert.Equal(t, 12.0, s.MaxDrawdownPct)
	assert.Equal(t, 20000.0, s.StartingCash)
	assert.Equal(t, 20800.0, s.FinalValue)

	assert.Equal(t, Summary{}, Summarize(nil))
}

func TestReport_Encode(t *testing.T) {
	r := NewReport("simple_trend", "classic", "1h", sampleResults())
	require.NotEmpty(t, r.ID)
	assert.Equal(t, []string{"BTC-USD", "ETH-USD"}, r.Symbols())

	t.Run("yaml", func(t *testing.T) {
		data, err := r.Encode(FormatYAML)
		require.NoError(t, err)

		var decoded map[string]any
		require.NoError(t, yaml.Unmarshal(data, &decoded))
		assert.Equal(t, r.ID, decoded["id"])
		assert.Equal(t, "classic", decoded["preset"])
		summary := decoded["summary"].(map[string]any)
		assert.Equal(t, 6, summary["total_trades"])
	})

	t.Run("json", func(t *testing.T) {
		data, err := r.Encode(FormatJSON)
		require.NoError(t, err)

		var decoded Report
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, r.ID, decoded.ID)
		assert.Equal(t, r.Summary, decoded.Summary)
		require.Len(t, decoded.Results, 2)
	})

	t.Run("unsupported", func(t *testing.T) {
		_, err := r.Encode("xml")
		assert.True(t, errors.Is(err, core.ErrInvalidParams))
	})
}

func TestReport_Save(t *testing.T) {
	store, err := archive.NewLocalFS(t.TempDir())
	require.NoError(t, err)

	r := NewReport("simple_trend", "", "1h", sampleResults())
	path, err := r.Save(context.Background(), store, FormatJSON)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(path, "reports/simple_trend/"))
	assert.True(t, strings.HasSuffix(path, r.ID+".json"))

	data, err := store.Read(context.Background(), path)
	require.NoError(t, err)
	assert.Contains(t, string(data), r.ID)
}
