package backtest

import (
	"math"
)

// CalculateMetrics computes performance statistics from the equity
// series and the trade log of one run. startingValue is the starting
// cash plus any carried position marked at the first price; returns,
// P&L and drawdown are measured against it.
func CalculateMetrics(startingCash, startingValue float64, equity []EquityPoint, trades []TradeRecord) Metrics {
	m := Metrics{
		StartingCash:  startingCash,
		StartingValue: startingValue,
		FinalValue:    startingValue,
		TotalTrades:   len(trades),
	}
	if len(equity) > 0 {
		m.FinalValue = equity[len(equity)-1].Value
	}
	m.TotalPnL = m.FinalValue - startingValue
	if startingValue > 0 {
		m.TotalReturnPct = m.TotalPnL / startingValue * 100
	}

	var wins int
	for _, t := range trades {
		switch t.Side {
		case SideBuy:
			m.BuyTrades++
		case SideSell:
			m.SellTrades++
			if t.PnL > 0 {
				wins++
			}
		}
	}
	if m.SellTrades > 0 {
		m.WinRatePct = float64(wins) / float64(m.SellTrades) * 100
	}

	values := make([]float64, len(equity))
	for i, p := range equity {
		values[i] = p.Value
	}
	m.MaxDrawdownPct = calculateMaxDrawdown(startingValue, values) * 100
	m.SharpeRatio = calculateSharpeRatio(values)
	return m
}

// calculateMaxDrawdown finds the largest peak-to-trough decline of the
// value series. The peak starts at the starting value.
func calculateMaxDrawdown(startingValue float64, values []float64) float64 {
	var maxDD float64
	peak := startingValue

	for _, v := range values {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			if dd := (peak - v) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// calculateSharpeRatio is mean over population standard deviation of
// step returns, scaled by the square root of their count. Risk-free
// rate is zero and the figure is not annualised.
func calculateSharpeRatio(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}

	returns := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] <= 0 {
			continue
		}
		returns = append(returns, (values[i]-values[i-1])/values[i-1])
	}
	if len(returns) == 0 {
		return 0
	}

	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	stdDev := math.Sqrt(variance / float64(len(returns)))

	if stdDev == 0 {
		return 0
	}
	return mean / stdDev * math.Sqrt(float64(len(returns)))
}
