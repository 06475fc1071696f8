package scorer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func rising(n int, start, step float64) []float64 {
	prices := make([]float64, n)
	for i := range prices {
		prices[i] = start + float64(i)*step
	}
	return prices
}

func TestScorer_InsufficientData(t *testing.T) {
	s := New(DefaultConfig())
	prices := rising(99, 100, 1)

	assert.Equal(t, Breakdown{}, s.Evaluate(prices))
	assert.Equal(t, 0.0, s.Evaluate(prices).Score())
	assert.Equal(t, 0.0, s.Evaluate(nil).Score())
}

func TestScorer_SteadyUptrend(t *testing.T) {
	s := New(DefaultConfig())
	// small steps keep ATR/price low
	prices := rising(150, 1000, 1)

	b := s.Evaluate(prices)
	assert.Equal(t, 1.0, b.Trend, "fast > medium > slow on a rising series")
	assert.Equal(t, 0.0, b.RSI, "RSI is 100 with no losses")
	assert.Equal(t, 1.0, b.MACD)
	assert.Equal(t, 0.0, b.Bollinger, "price above the middle band")
	assert.Equal(t, 1.0, b.Momentum)
	assert.Equal(t, 1.0, b.Volatility)

	assert.InDelta(t, 4.0/6.0, b.Score(), 1e-12)
}

func TestScorer_Downtrend(t *testing.T) {
	s := New(DefaultConfig())
	prices := rising(150, 1000, -2)

	b := s.Evaluate(prices)
	assert.Equal(t, 0.0, b.Trend)
	assert.Equal(t, 1.0, b.RSI, "RSI is 0 with no gains")
	assert.Equal(t, 0.0, b.MACD)
	assert.Equal(t, 0.5, b.Bollinger, "below the middle band but inside the lower band")
	assert.Equal(t, 0.0, b.Momentum, "-18/720 is more than a 2% dip")
	assert.Equal(t, 1.0, b.Volatility)
}

func TestScorer_ScoreBounded(t *testing.T) {
	b := Breakdown{Trend: 1, RSI: 1, MACD: 1, Bollinger: 1, Momentum: 1, Volatility: 1}
	assert.Equal(t, 1.0, b.Score())
	assert.Equal(t, 6.0, b.Total())
}

func TestScorer_CustomPeriods(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EMAFast, cfg.EMAMedium, cfg.EMASlow = 5, 10, 20
	s := New(cfg)

	prices := rising(30, 100, 0.1)
	assert.Greater(t, s.Evaluate(prices).Score(), 0.0)
}
