package indicator

import (
	"math"

	"github.com/moznion/go-optional"
)

// ATR approximates Average True Range as the mean absolute change between
// consecutive prices over the last period deltas. Only closing prices are
// available here, so no high/low range enters the calculation.
func ATR(prices []float64, period int) optional.Option[float64] {
	if period <= 0 || len(prices) < period+1 {
		return optional.None[float64]()
	}

	window := prices[len(prices)-period-1:]
	var sum float64
	for i := 1; i < len(window); i++ {
		sum += math.Abs(window[i] - window[i-1])
	}
	return optional.Some(sum / float64(period))
}
