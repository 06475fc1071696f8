package core

import (
	"time"

	"github.com/moznion/go-optional"
)

// PriceSample is a single observed price.
type PriceSample struct {
	Price float64   `json:"price" yaml:"price"`
	Time  time.Time `json:"time" yaml:"time"`
}

// Prices extracts the price column from a slice of samples.
func Prices(samples []PriceSample) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = s.Price
	}
	return out
}

// MarketSnapshot is the market state handed to a strategy on each step.
// History, when present, holds every sample up to and including the current one.
type MarketSnapshot struct {
	Symbol       string
	CurrentPrice float64
	History      []PriceSample
	Timestamp    time.Time
}

// Portfolio holds cash and quantity for a single instrument.
type Portfolio struct {
	Symbol   string
	Cash     float64
	Quantity float64
}

// Value returns cash plus the marked-to-market position.
func (p Portfolio) Value(price float64) float64 {
	return p.Cash + p.Quantity*price
}

// Action represents a trading signal action
type Action string

const (
	ActionBuy  Action = "buy"
	ActionHold Action = "hold"
	ActionSell Action = "sell"
)

// Signal is the decision produced by a strategy for one step.
// EntryPrice, TargetPrice and StopLoss are informational only.
type Signal struct {
	Action      Action
	Size        float64
	Reason      string
	EntryPrice  optional.Option[float64]
	TargetPrice optional.Option[float64]
	StopLoss    optional.Option[float64]
}

// Hold builds a hold signal with the given reason.
func Hold(reason string) Signal {
	return Signal{Action: ActionHold, Reason: reason}
}

// Buy builds a buy signal.
func Buy(size float64, reason string) Signal {
	return Signal{Action: ActionBuy, Size: size, Reason: reason}
}

// Sell builds a sell signal.
func Sell(size float64, reason string) Signal {
	return Signal{Action: ActionSell, Size: size, Reason: reason}
}

// IsTrade reports whether the signal asks for a non-zero fill.
func (s Signal) IsTrade() bool {
	return (s.Action == ActionBuy || s.Action == ActionSell) && s.Size > 0
}
