package strategy

import (
	"time"

	"github.com/newthinker/momentum/internal/core"
	"github.com/newthinker/momentum/internal/risk"
	"github.com/newthinker/momentum/internal/series"
	"go.uber.org/zap"
)

// Machine is the FLAT/OPEN state machine shared by every rule family.
// It owns the bounded price history and the strategy state; a Machine
// serves one instrument and is not safe for concurrent use.
type Machine struct {
	rules    Rules
	history  *series.Ring[core.PriceSample]
	state    State
	exchange Exchange
	logger   *zap.Logger
	now      func() time.Time
}

var _ Strategy = (*Machine)(nil)

// NewMachine wraps rules in a state machine.
func NewMachine(rules Rules, deps Deps) *Machine {
	return &Machine{
		rules:    rules,
		history:  series.NewRing[core.PriceSample](rules.HistoryCapacity()),
		state:    State{TradeCounts: make(map[string]int)},
		exchange: deps.Exchange,
		logger:   deps.logger().With(zap.String("strategy", rules.Name())),
		now:      time.Now,
	}
}

// Name returns the rule family name.
func (m *Machine) Name() string {
	return m.rules.Name()
}

// Rules returns the plugged rule set.
func (m *Machine) Rules() Rules {
	return m.rules
}

// GenerateSignal implements Strategy.
func (m *Machine) GenerateSignal(market core.MarketSnapshot, portfolio core.Portfolio) core.Signal {
	if market.Timestamp.IsZero() {
		market.Timestamp = m.now()
	}
	price := market.CurrentPrice
	if price <= 0 {
		return core.Hold("Invalid price")
	}

	if m.history.Len() == 0 {
		m.warmUp(market)
	}
	m.history.Push(core.PriceSample{Price: price, Time: market.Timestamp})
	m.state.BarsSinceLastTrade++

	if m.state.StartingEquity == nil {
		m.state.StartingEquity = ptr(portfolio.Value(price))
	}
	if portfolio.Quantity > 0 && m.state.EntryPrice != nil {
		if m.state.HighestSinceEntry == nil || price > *m.state.HighestSinceEntry {
			m.state.HighestSinceEntry = ptr(price)
		}
	}

	history := m.history.Items()
	d := &Decision{
		Market:    market,
		Portfolio: portfolio,
		History:   history,
		Prices:    core.Prices(history),
		State:     &m.state,
		Logger:    m.logger,
	}
	sig := m.normalise(m.rules.Decide(d), portfolio)

	switch sig.Action {
	case core.ActionHold:
		m.logger.Debug("hold", zap.Float64("price", price), zap.String("reason", sig.Reason))
	default:
		m.logger.Info("signal",
			zap.String("action", string(sig.Action)),
			zap.Float64("price", price),
			zap.Float64("size", sig.Size),
			zap.String("reason", sig.Reason),
		)
	}
	return sig
}

// warmUp seeds an empty history from samples the caller supplied before the current one.
func (m *Machine) warmUp(market core.MarketSnapshot) {
	for _, s := range market.History {
		if !s.Time.Before(market.Timestamp) {
			break
		}
		if s.Price <= 0 {
			continue
		}
		m.history.Push(s)
	}
}

func (m *Machine) normalise(sig core.Signal, portfolio core.Portfolio) core.Signal {
	switch sig.Action {
	case core.ActionBuy:
		if sig.Size <= 0 {
			return core.Hold("Buy suppressed: zero size")
		}
	case core.ActionSell:
		sig.Size = min(sig.Size, portfolio.Quantity)
		if sig.Size <= 0 {
			return core.Hold("Sell suppressed: nothing held")
		}
	case core.ActionHold:
	default:
		return core.Hold("Unknown action " + string(sig.Action))
	}
	return sig
}

// OnTrade implements Strategy.
func (m *Machine) OnTrade(signal core.Signal, price, size float64, ts time.Time) {
	if size <= 0 {
		return
	}
	if ts.IsZero() {
		ts = m.now()
	}
	s := &m.state

	switch signal.Action {
	case core.ActionBuy:
		if s.EntryPrice != nil && s.CurrentQuantity > 0 {
			total := *s.EntryPrice*s.CurrentQuantity + price*size
			s.EntryPrice = ptr(total / (s.CurrentQuantity + size))
		} else {
			s.EntryPrice = ptr(price)
		}
		s.HighestSinceEntry = ptr(price)
		s.CurrentQuantity += size
		s.Lots = append(s.Lots, Lot{Price: price, Size: size, Time: ts})
		if s.TradeCounts == nil {
			s.TradeCounts = make(map[string]int)
		}
		s.TradeCounts[m.periodKey(ts)]++
		s.BarsSinceLastTrade = 0
		s.LastTradeTime = ts

		m.logger.Info("entered",
			zap.Float64("price", price),
			zap.Float64("size", size),
			zap.Float64("entry_price", *s.EntryPrice),
		)

	case core.ActionSell:
		remaining := size
		for len(s.Lots) > 0 && remaining > dust {
			lot := &s.Lots[0]
			if lot.Size <= remaining+dust {
				remaining -= lot.Size
				s.Lots = s.Lots[1:]
				continue
			}
			lot.Size -= remaining
			remaining = 0
		}
		s.CurrentQuantity = max(s.CurrentQuantity-size, 0)
		s.BarsSinceLastTrade = 0
		s.LastTradeTime = ts

		if len(s.Lots) == 0 || s.CurrentQuantity <= dust {
			s.resetFlat(ts)
			m.logger.Info("exited", zap.Float64("price", price), zap.Float64("size", size))
		} else {
			m.logger.Info("reduced",
				zap.Float64("price", price),
				zap.Float64("size", size),
				zap.Float64("remaining", s.CurrentQuantity),
			)
		}
	}
}

func (s *State) resetFlat(exit time.Time) {
	s.EntryPrice = nil
	s.HighestSinceEntry = nil
	s.CurrentQuantity = 0
	s.Lots = nil
	s.TiersHit = nil
	s.LastExitTime = exit
}

func (m *Machine) periodKey(ts time.Time) string {
	if k, ok := m.rules.(PeriodKeyer); ok {
		return k.PeriodKey(ts)
	}
	return risk.TradeLimiter{Period: risk.PeriodMonth}.Key(ts)
}

// State implements Strategy.
func (m *Machine) State() Snapshot {
	return Snapshot{
		Strategy:     m.rules.Name(),
		State:        m.state.clone(),
		PriceHistory: m.history.Items(),
	}
}

// SetState implements Strategy. Restore is tolerant: missing fields keep
// defaults and an inconsistent entry/quantity pair is repaired and logged.
func (m *Machine) SetState(snap Snapshot) {
	if snap.Strategy != "" && snap.Strategy != m.rules.Name() {
		m.logger.Warn("restoring state from a different strategy",
			zap.String("snapshot", snap.Strategy))
	}

	st := snap.State.clone()
	if st.TradeCounts == nil {
		st.TradeCounts = make(map[string]int)
	}
	if st.CurrentQuantity < 0 {
		st.CurrentQuantity = 0
	}

	switch {
	case st.CurrentQuantity <= 0 && (st.EntryPrice != nil || st.HighestSinceEntry != nil || len(st.Lots) > 0):
		m.logger.Warn("restored state has entry data without quantity, resetting to flat")
		st.EntryPrice = nil
		st.HighestSinceEntry = nil
		st.Lots = nil
		st.TiersHit = nil
	case st.CurrentQuantity > 0 && st.EntryPrice == nil:
		if avg, ok := lotAverage(st.Lots); ok {
			m.logger.Warn("restored state missing entry_price, derived from lots", zap.Float64("entry_price", avg))
			st.EntryPrice = ptr(avg)
		} else {
			m.logger.Warn("restored state has quantity without entry_price or lots, resetting to flat")
			st.CurrentQuantity = 0
			st.HighestSinceEntry = nil
			st.Lots = nil
			st.TiersHit = nil
		}
	case st.CurrentQuantity > 0 && len(st.Lots) == 0:
		st.Lots = []Lot{{Price: *st.EntryPrice, Size: st.CurrentQuantity, Time: st.LastTradeTime}}
	}

	m.state = st
	m.history.Reset()
	for _, s := range snap.PriceHistory {
		m.history.Push(s)
	}
}

func lotAverage(lots []Lot) (float64, bool) {
	var cost, size float64
	for _, l := range lots {
		cost += l.Price * l.Size
		size += l.Size
	}
	if size <= 0 {
		return 0, false
	}
	return cost / size, true
}
