package indicator

import (
	"math"
	"testing"
)

func TestRSI_NotEnoughData(t *testing.T) {
	// period 14 needs 15 prices
	prices := make([]float64, 14)
	if RSI(prices, 14).IsSome() {
		t.Error("expected None with only period prices")
	}
}

func TestRSI_AllGainsIs100(t *testing.T) {
	prices := []float64{1, 2, 3, 4, 5, 6}
	got := RSI(prices, 5)
	if got.IsNone() {
		t.Fatal("expected RSI to be computable")
	}
	if got.Unwrap() != 100 {
		t.Errorf("RSI = %f, want 100", got.Unwrap())
	}
}

func TestRSI_FlatIs100(t *testing.T) {
	prices := []float64{5, 5, 5, 5}
	if got := RSI(prices, 3).Unwrap(); got != 100 {
		t.Errorf("RSI of flat window = %f, want 100", got)
	}
}

func TestRSI_AllLossesIsZero(t *testing.T) {
	prices := []float64{6, 5, 4, 3, 2, 1}
	if got := RSI(prices, 5).Unwrap(); got != 0 {
		t.Errorf("RSI = %f, want 0", got)
	}
}

func TestRSI_Mixed(t *testing.T) {
	// deltas over last 4: +2, -1, +2, -1 -> avg gain 1, avg loss 0.5, RS 2
	prices := []float64{100, 10, 12, 11, 13, 12}
	got := RSI(prices, 4).Unwrap()
	want := 100 - 100/3.0
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("RSI = %f, want %f", got, want)
	}
}

func TestRSI_Range(t *testing.T) {
	prices := []float64{44, 44.3, 44.1, 43.6, 44.3, 44.8, 45.1, 45.4, 45.8, 46.1, 45.9, 46.3, 45.8, 46.2, 45.6, 46.3}
	for period := 1; period < len(prices); period++ {
		v := RSI(prices, period).Unwrap()
		if v < 0 || v > 100 {
			t.Errorf("RSI(%d) = %f out of range", period, v)
		}
	}
}

func TestMACD_SignalApproximation(t *testing.T) {
	prices := make([]float64, 40)
	for i := range prices {
		prices[i] = 100 + float64(i)
	}

	got := MACD(prices, MACDFast, MACDSlow)
	if got.IsNone() {
		t.Fatal("expected MACD to be computable")
	}
	m := got.Unwrap()
	if m.Line <= 0 {
		t.Errorf("MACD line should be positive on a rising series, got %f", m.Line)
	}
	if math.Abs(m.Signal-0.9*m.Line) > 1e-12 {
		t.Errorf("signal = %f, want 0.9*line", m.Signal)
	}
	if math.Abs(m.Histogram-0.1*m.Line) > 1e-12 {
		t.Errorf("histogram = %f, want 0.1*line", m.Histogram)
	}
}

func TestMACD_NotEnoughData(t *testing.T) {
	prices := make([]float64, MACDSlow-1)
	if MACD(prices, MACDFast, MACDSlow).IsSome() {
		t.Error("expected None below slow period")
	}
}

func TestBollinger_Calculate(t *testing.T) {
	prices := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	got := Bollinger(prices, 8, 2)
	if got.IsNone() {
		t.Fatal("expected bands to be computable")
	}
	b := got.Unwrap()
	// mean 5, population stddev 2
	if b.Middle != 5 {
		t.Errorf("middle = %f, want 5", b.Middle)
	}
	if b.Upper != 9 || b.Lower != 1 {
		t.Errorf("bands = %f/%f, want 9/1", b.Upper, b.Lower)
	}
}

func TestBollinger_NotEnoughData(t *testing.T) {
	if Bollinger([]float64{1, 2}, 20, 2).IsSome() {
		t.Error("expected None for short input")
	}
}

func TestATR_Calculate(t *testing.T) {
	prices := []float64{10, 12, 11, 14}
	got := ATR(prices, 3)
	if got.IsNone() {
		t.Fatal("expected ATR to be computable")
	}
	// |2| + |-1| + |3| = 6 / 3
	if got.Unwrap() != 2 {
		t.Errorf("ATR = %f, want 2", got.Unwrap())
	}
}

func TestATR_NotEnoughData(t *testing.T) {
	if ATR([]float64{1, 2, 3}, 3).IsSome() {
		t.Error("expected None with only period prices")
	}
}
