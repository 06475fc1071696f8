package indicator

import (
	"math"

	"github.com/moznion/go-optional"
)

// Bands holds Bollinger band levels.
type Bands struct {
	Upper  float64
	Middle float64
	Lower  float64
}

// Bollinger computes bands over the last period prices using the
// population standard deviation.
func Bollinger(prices []float64, period int, k float64) optional.Option[Bands] {
	if period <= 0 || len(prices) < period {
		return optional.None[Bands]()
	}

	window := prices[len(prices)-period:]
	middle := SMA(window, period)[0]

	var variance float64
	for _, p := range window {
		variance += (p - middle) * (p - middle)
	}
	std := math.Sqrt(variance / float64(period))

	return optional.Some(Bands{
		Upper:  middle + k*std,
		Middle: middle,
		Lower:  middle - k*std,
	})
}
