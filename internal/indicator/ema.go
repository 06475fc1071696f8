package indicator

import "github.com/moznion/go-optional"

// EMASeries calculates the Exponential Moving Average series.
// The first value is the SMA of the first period prices.
func EMASeries(prices []float64, period int) []float64 {
	if period <= 0 || len(prices) < period {
		return []float64{}
	}

	result := make([]float64, 0, len(prices)-period+1)
	alpha := 2.0 / float64(period+1)

	ema := SMA(prices[:period], period)[0]
	result = append(result, ema)

	for i := period; i < len(prices); i++ {
		ema = prices[i]*alpha + ema*(1-alpha)
		result = append(result, ema)
	}

	return result
}

// EMA returns the latest EMA value, or None when len(prices) < period.
func EMA(prices []float64, period int) optional.Option[float64] {
	series := EMASeries(prices, period)
	if len(series) == 0 {
		return optional.None[float64]()
	}
	return optional.Some(series[len(series)-1])
}
