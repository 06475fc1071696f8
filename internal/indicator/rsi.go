package indicator

import "github.com/moznion/go-optional"

// RSI computes the Relative Strength Index over the most recent period deltas.
// Gains and losses are plain means, not Wilder-smoothed. A window with no
// losses yields exactly 100. Requires len(prices) >= period+1.
func RSI(prices []float64, period int) optional.Option[float64] {
	if period <= 0 || len(prices) < period+1 {
		return optional.None[float64]()
	}

	var gains, losses float64
	window := prices[len(prices)-period-1:]
	for i := 1; i < len(window); i++ {
		delta := window[i] - window[i-1]
		if delta > 0 {
			gains += delta
		} else {
			losses -= delta
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)
	if avgLoss == 0 {
		return optional.Some(100.0)
	}

	rs := avgGain / avgLoss
	return optional.Some(100 - 100/(1+rs))
}
