package indicator

import "github.com/moznion/go-optional"

// Default MACD periods.
const (
	MACDFast = 12
	MACDSlow = 26
)

// MACDValue holds one MACD reading.
type MACDValue struct {
	Line      float64
	Signal    float64
	Histogram float64
}

// MACD computes EMA(fast) - EMA(slow).
//
// The signal line is approximated as 0.9 * line and the histogram as
// 0.1 * line; no EMA of the MACD series is kept. Thresholds elsewhere are
// tuned against this approximation, so a true signal line would need a
// separate EMA over the line history and retuned thresholds.
func MACD(prices []float64, fast, slow int) optional.Option[MACDValue] {
	f := EMA(prices, fast)
	s := EMA(prices, slow)
	if f.IsNone() || s.IsNone() {
		return optional.None[MACDValue]()
	}

	line := f.Unwrap() - s.Unwrap()
	return optional.Some(MACDValue{
		Line:      line,
		Signal:    line * 0.9,
		Histogram: line * 0.1,
	})
}
