package indicator

import "github.com/moznion/go-optional"

// Highest returns the maximum of prices, or None for an empty slice.
func Highest(prices []float64) optional.Option[float64] {
	if len(prices) == 0 {
		return optional.None[float64]()
	}
	hi := prices[0]
	for _, p := range prices[1:] {
		if p > hi {
			hi = p
		}
	}
	return optional.Some(hi)
}

// PriorHigh returns the highest of the period prices before the latest one.
func PriorHigh(prices []float64, period int) optional.Option[float64] {
	if period <= 0 || len(prices) < period+1 {
		return optional.None[float64]()
	}
	return Highest(prices[len(prices)-period-1 : len(prices)-1])
}

// IsBreakout reports whether the latest price exceeds the prior period high by margin.
func IsBreakout(prices []float64, period int, margin float64) bool {
	hi := PriorHigh(prices, period)
	if hi.IsNone() {
		return false
	}
	return prices[len(prices)-1] > hi.Unwrap()*(1+margin)
}

// IsNewHigh reports whether the latest price is strictly above the prior period high.
func IsNewHigh(prices []float64, period int) bool {
	hi := PriorHigh(prices, period)
	if hi.IsNone() {
		return false
	}
	return prices[len(prices)-1] > hi.Unwrap()
}

// Momentum returns the fractional change over lookback bars:
// (p[n-1] - p[n-lookback]) / p[n-lookback].
func Momentum(prices []float64, lookback int) optional.Option[float64] {
	if lookback <= 1 || len(prices) < lookback {
		return optional.None[float64]()
	}
	base := prices[len(prices)-lookback]
	if base == 0 {
		return optional.None[float64]()
	}
	return optional.Some((prices[len(prices)-1] - base) / base)
}
