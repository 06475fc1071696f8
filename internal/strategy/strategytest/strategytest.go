// Package strategytest provides helpers for driving strategies in tests.
package strategytest

import (
	"time"

	"github.com/newthinker/momentum/internal/core"
	"github.com/newthinker/momentum/internal/strategy"
)

// Start is the timestamp of the first generated sample.
var Start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Step is one replayed bar together with the signal it produced.
type Step struct {
	Sample core.PriceSample
	Signal core.Signal
	Filled float64
}

// Harness feeds prices into a strategy and fills its orders against a
// simple cash/quantity ledger.
type Harness struct {
	Strategy  strategy.Strategy
	Portfolio core.Portfolio
	Interval  time.Duration
	Steps     []Step

	next time.Time
}

// New creates a harness with the given starting cash and hourly bars.
func New(s strategy.Strategy, cash float64) *Harness {
	return &Harness{
		Strategy:  s,
		Portfolio: core.Portfolio{Symbol: "TEST", Cash: cash},
		Interval:  time.Hour,
		next:      Start,
	}
}

// Feed replays prices one bar apart and returns the produced signals.
func (h *Harness) Feed(prices ...float64) []core.Signal {
	out := make([]core.Signal, 0, len(prices))
	for _, p := range prices {
		out = append(out, h.FeedAt(p, h.next))
	}
	return out
}

// FeedAt replays a single price at ts.
func (h *Harness) FeedAt(price float64, ts time.Time) core.Signal {
	h.next = ts.Add(h.Interval)
	sig := h.Strategy.GenerateSignal(core.MarketSnapshot{
		Symbol:       h.Portfolio.Symbol,
		CurrentPrice: price,
		Timestamp:    ts,
	}, h.Portfolio)

	var filled float64
	switch sig.Action {
	case core.ActionBuy:
		filled = min(sig.Size, h.Portfolio.Cash/price)
		if filled > 0 {
			h.Portfolio.Cash -= filled * price
			h.Portfolio.Quantity += filled
			h.Strategy.OnTrade(sig, price, filled, ts)
		}
	case core.ActionSell:
		filled = min(sig.Size, h.Portfolio.Quantity)
		if filled > 0 {
			h.Portfolio.Cash += filled * price
			h.Portfolio.Quantity -= filled
			h.Strategy.OnTrade(sig, price, filled, ts)
		}
	}

	h.Steps = append(h.Steps, Step{Sample: core.PriceSample{Price: price, Time: ts}, Signal: sig, Filled: filled})
	return sig
}

// Last returns the most recent signal.
func (h *Harness) Last() core.Signal {
	if len(h.Steps) == 0 {
		return core.Signal{}
	}
	return h.Steps[len(h.Steps)-1].Signal
}

// Count returns how many replayed signals had the given action.
func (h *Harness) Count(action core.Action) int {
	n := 0
	for _, s := range h.Steps {
		if s.Signal.Action == action {
			n++
		}
	}
	return n
}

// Constant returns n copies of price.
func Constant(n int, price float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = price
	}
	return out
}

// Geometric returns n prices growing by ratio per bar from start.
func Geometric(n int, start, ratio float64) []float64 {
	out := make([]float64, n)
	p := start
	for i := range out {
		out[i] = p
		p *= ratio
	}
	return out
}

// Linear returns n prices from start changing by step per bar.
func Linear(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}
