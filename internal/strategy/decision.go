package strategy

import (
	"fmt"
	"time"

	"github.com/moznion/go-optional"
	"github.com/newthinker/momentum/internal/core"
	"github.com/newthinker/momentum/internal/risk"
	"go.uber.org/zap"
)

// Decision is the per-step view handed to Rules.Decide.
type Decision struct {
	Market    core.MarketSnapshot
	Portfolio core.Portfolio
	// History is the bounded history, oldest first, ending with the current sample.
	History []core.PriceSample
	// Prices is the price column of History.
	Prices []float64
	State  *State
	Logger *zap.Logger
}

// Price returns the current price.
func (d *Decision) Price() float64 {
	return d.Market.CurrentPrice
}

// Now returns the timestamp of the current sample.
func (d *Decision) Now() time.Time {
	return d.Market.Timestamp
}

// Holding reports whether there is an open position with a known entry.
func (d *Decision) Holding() bool {
	return d.Portfolio.Quantity > 0 && d.State.EntryPrice != nil
}

// PnL returns the unrealised return of the open position relative to entry.
func (d *Decision) PnL() float64 {
	if d.State.EntryPrice == nil || *d.State.EntryPrice == 0 {
		return 0
	}
	entry := *d.State.EntryPrice
	return (d.Price() - entry) / entry
}

// DrawdownFromPeak returns the decline from the highest price since entry.
func (d *Decision) DrawdownFromPeak() float64 {
	if d.State.HighestSinceEntry == nil || *d.State.HighestSinceEntry == 0 {
		return 0
	}
	peak := *d.State.HighestSinceEntry
	return (peak - d.Price()) / peak
}

// EntryContext builds the input for risk guards.
func (d *Decision) EntryContext() risk.EntryContext {
	ec := risk.EntryContext{
		Portfolio:          d.Portfolio,
		Price:              d.Price(),
		Now:                d.Now(),
		BarsSinceLastTrade: d.State.BarsSinceLastTrade,
		LastTradeTime:      d.State.LastTradeTime,
		LastExitTime:       d.State.LastExitTime,
		TradeCounts:        d.State.TradeCounts,
	}
	if d.State.StartingEquity != nil {
		ec.StartingEquity = *d.State.StartingEquity
	}
	return ec
}

// Guard runs risk guards against the current step.
func (d *Decision) Guard(guards ...risk.Guard) risk.CheckResult {
	return risk.CheckAll(d.EntryContext(), guards...)
}

// Buy sizes an entry at fraction of portfolio value. A non-positive size yields hold.
func (d *Decision) Buy(fraction float64, reason string) core.Signal {
	size := risk.PositionSize(d.Portfolio, d.Price(), fraction)
	if size <= 0 {
		return core.Hold(fmt.Sprintf("Order size is zero (%s)", reason))
	}
	return core.Buy(size, reason)
}

// SellAll exits the whole position.
func (d *Decision) SellAll(reason string) core.Signal {
	return d.SellFraction(1, reason)
}

// SellFraction exits fraction of the held quantity.
func (d *Decision) SellFraction(fraction float64, reason string) core.Signal {
	sig := core.Sell(d.Portfolio.Quantity*fraction, reason)
	if d.State.EntryPrice != nil {
		sig.EntryPrice = optional.Some(*d.State.EntryPrice)
	}
	return sig
}

// HighSince returns the highest price among samples at or after now-window.
func (d *Decision) HighSince(window time.Duration) optional.Option[float64] {
	cutoff := d.Now().Add(-window)
	found := false
	var hi float64
	for _, s := range d.History {
		if s.Time.Before(cutoff) {
			continue
		}
		if !found || s.Price > hi {
			hi = s.Price
			found = true
		}
	}
	if !found {
		return optional.None[float64]()
	}
	return optional.Some(hi)
}
