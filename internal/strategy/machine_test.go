package strategy

import (
	"errors"
	"testing"
	"time"

	"github.com/newthinker/momentum/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedRules returns queued signals, then holds.
type scriptedRules struct {
	capacity int
	queue    []core.Signal
	seen     []*Decision
}

func (r *scriptedRules) Name() string         { return "scripted" }
func (r *scriptedRules) HistoryCapacity() int { return r.capacity }
func (r *scriptedRules) Decide(d *Decision) core.Signal {
	r.seen = append(r.seen, d)
	if len(r.queue) == 0 {
		return core.Hold("nothing queued")
	}
	sig := r.queue[0]
	r.queue = r.queue[1:]
	return sig
}

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func snapshot(price float64, i int) core.MarketSnapshot {
	return core.MarketSnapshot{Symbol: "BTC-USD", CurrentPrice: price, Timestamp: t0.Add(time.Duration(i) * time.Hour)}
}

func assertInvariant(t *testing.T, m *Machine) {
	t.Helper()
	st := m.State().State
	assert.Equal(t, st.EntryPrice != nil, st.CurrentQuantity > 0, "entry_price set iff quantity > 0")
	if st.CurrentQuantity == 0 {
		assert.Nil(t, st.HighestSinceEntry)
	}
	require.NoError(t, st.Validate())
}

func TestMachine_HistoryIsBounded(t *testing.T) {
	rules := &scriptedRules{capacity: 3}
	m := NewMachine(rules, Deps{})

	for i := 0; i < 5; i++ {
		m.GenerateSignal(snapshot(float64(100+i), i), core.Portfolio{Cash: 1000})
	}

	last := rules.seen[len(rules.seen)-1]
	assert.Equal(t, []float64{102, 103, 104}, last.Prices)
	assert.Len(t, m.State().PriceHistory, 3)
	assert.Equal(t, 5, m.State().State.BarsSinceLastTrade)
}

func TestMachine_RecordsStartingEquityOnce(t *testing.T) {
	m := NewMachine(&scriptedRules{capacity: 10}, Deps{})

	m.GenerateSignal(snapshot(100, 0), core.Portfolio{Cash: 1000})
	m.GenerateSignal(snapshot(100, 1), core.Portfolio{Cash: 500})

	require.NotNil(t, m.State().State.StartingEquity)
	assert.Equal(t, 1000.0, *m.State().State.StartingEquity)
}

func TestMachine_WarmUpFromSnapshotHistory(t *testing.T) {
	rules := &scriptedRules{capacity: 10}
	m := NewMachine(rules, Deps{})

	market := snapshot(103, 3)
	market.History = []core.PriceSample{
		{Price: 100, Time: t0},
		{Price: 101, Time: t0.Add(time.Hour)},
		{Price: 102, Time: t0.Add(2 * time.Hour)},
		{Price: 103, Time: t0.Add(3 * time.Hour)},
	}
	m.GenerateSignal(market, core.Portfolio{Cash: 1000})

	assert.Equal(t, []float64{100, 101, 102, 103}, rules.seen[0].Prices)
}

func TestMachine_OnTradeBuyWeightedAverage(t *testing.T) {
	m := NewMachine(&scriptedRules{capacity: 10}, Deps{})

	m.OnTrade(core.Buy(1, "first"), 100, 1, t0)
	assertInvariant(t, m)
	m.OnTrade(core.Buy(3, "second"), 200, 3, t0.Add(time.Hour))
	assertInvariant(t, m)

	st := m.State().State
	require.NotNil(t, st.EntryPrice)
	assert.InDelta(t, 175.0, *st.EntryPrice, 1e-9)
	assert.Equal(t, 200.0, *st.HighestSinceEntry)
	assert.Equal(t, 4.0, st.CurrentQuantity)
	assert.Len(t, st.Lots, 2)
	assert.Equal(t, 2, st.TradeCounts["2024-01"])
	assert.Equal(t, 0, st.BarsSinceLastTrade)
	assert.Equal(t, t0.Add(time.Hour), st.LastTradeTime)
}

func TestMachine_OnTradeSellFIFO(t *testing.T) {
	m := NewMachine(&scriptedRules{capacity: 10}, Deps{})
	m.OnTrade(core.Buy(1, ""), 100, 1, t0)
	m.OnTrade(core.Buy(2, ""), 110, 2, t0.Add(time.Hour))

	m.OnTrade(core.Sell(1.5, ""), 120, 1.5, t0.Add(2*time.Hour))
	assertInvariant(t, m)

	st := m.State().State
	require.Len(t, st.Lots, 1)
	assert.Equal(t, 110.0, st.Lots[0].Price)
	assert.InDelta(t, 1.5, st.Lots[0].Size, 1e-12)
	assert.InDelta(t, 1.5, st.CurrentQuantity, 1e-12)
	assert.True(t, st.LastExitTime.IsZero(), "partial exit keeps the position open")

	exit := t0.Add(3 * time.Hour)
	m.OnTrade(core.Sell(1.5, ""), 90, 1.5, exit)
	assertInvariant(t, m)

	st = m.State().State
	assert.Nil(t, st.EntryPrice)
	assert.Nil(t, st.HighestSinceEntry)
	assert.Empty(t, st.Lots)
	assert.Equal(t, 0.0, st.CurrentQuantity)
	assert.Equal(t, exit, st.LastExitTime)
}

func TestMachine_OnTradeIgnoresZeroSize(t *testing.T) {
	m := NewMachine(&scriptedRules{capacity: 10}, Deps{})
	m.OnTrade(core.Buy(0, ""), 100, 0, t0)
	assert.Nil(t, m.State().State.EntryPrice)
	assertInvariant(t, m)
}

func TestMachine_TracksHighestSinceEntryOnly(t *testing.T) {
	m := NewMachine(&scriptedRules{capacity: 10}, Deps{})

	// all-time high before entry must not count
	m.GenerateSignal(snapshot(300, 0), core.Portfolio{Cash: 1000})
	m.OnTrade(core.Buy(1, ""), 100, 1, t0.Add(time.Hour))
	m.GenerateSignal(snapshot(120, 2), core.Portfolio{Cash: 900, Quantity: 1})
	m.GenerateSignal(snapshot(110, 3), core.Portfolio{Cash: 900, Quantity: 1})

	st := m.State().State
	require.NotNil(t, st.HighestSinceEntry)
	assert.Equal(t, 120.0, *st.HighestSinceEntry)
}

func TestMachine_NormalisesSignals(t *testing.T) {
	rules := &scriptedRules{capacity: 10, queue: []core.Signal{
		core.Buy(0, "no size"),
		core.Sell(5, "too much"),
		core.Sell(1, "nothing held"),
		{Action: "short", Size: 1},
	}}
	m := NewMachine(rules, Deps{})

	sig := m.GenerateSignal(snapshot(100, 0), core.Portfolio{Cash: 1000})
	assert.Equal(t, core.ActionHold, sig.Action)

	sig = m.GenerateSignal(snapshot(100, 1), core.Portfolio{Cash: 1000, Quantity: 2})
	assert.Equal(t, core.ActionSell, sig.Action)
	assert.Equal(t, 2.0, sig.Size, "sell capped at held quantity")

	sig = m.GenerateSignal(snapshot(100, 2), core.Portfolio{Cash: 1000})
	assert.Equal(t, core.ActionHold, sig.Action)

	sig = m.GenerateSignal(snapshot(100, 3), core.Portfolio{Cash: 1000})
	assert.Equal(t, core.ActionHold, sig.Action)
}

func TestMachine_StateRoundTripReproducesDecisions(t *testing.T) {
	newMachine := func() *Machine {
		return NewMachine(&echoRules{}, Deps{})
	}
	prices := []float64{100, 101, 99, 103, 104, 98, 97, 105, 110, 108}

	original := newMachine()
	portfolio := core.Portfolio{Cash: 1000}
	for i, p := range prices[:5] {
		sig := original.GenerateSignal(snapshot(p, i), portfolio)
		portfolio = apply(original, sig, p, portfolio, snapshot(p, i).Timestamp)
	}

	data, err := original.State().Marshal()
	require.NoError(t, err)
	restoredSnap, err := UnmarshalSnapshot(data)
	require.NoError(t, err)
	require.NoError(t, restoredSnap.Validate())

	restored := newMachine()
	restored.SetState(restoredSnap)

	again, err := restored.State().Marshal()
	require.NoError(t, err)
	assert.Equal(t, string(data), string(again), "snapshot survives a round trip byte for byte")

	pa, pb := portfolio, portfolio
	for i, p := range prices[5:] {
		ts := snapshot(p, i+5)
		a := original.GenerateSignal(ts, pa)
		b := restored.GenerateSignal(ts, pb)
		assert.Equal(t, a, b, "step %d", i+5)
		pa = apply(original, a, p, pa, ts.Timestamp)
		pb = apply(restored, b, p, pb, ts.Timestamp)
	}
}

// echoRules buys when flat after a rise and sells after a fall.
type echoRules struct{}

func (echoRules) Name() string         { return "echo" }
func (echoRules) HistoryCapacity() int { return 4 }
func (echoRules) Decide(d *Decision) core.Signal {
	n := len(d.Prices)
	if n < 2 {
		return core.Hold("warming up")
	}
	if d.Holding() && d.Prices[n-1] < d.Prices[n-2] {
		return d.SellAll("fell")
	}
	if !d.Holding() && d.Prices[n-1] > d.Prices[n-2] {
		return d.Buy(0.5, "rose")
	}
	return core.Hold("flat")
}

func apply(m *Machine, sig core.Signal, price float64, p core.Portfolio, ts time.Time) core.Portfolio {
	switch sig.Action {
	case core.ActionBuy:
		size := min(sig.Size, p.Cash/price)
		p.Cash -= size * price
		p.Quantity += size
		m.OnTrade(sig, price, size, ts)
	case core.ActionSell:
		size := min(sig.Size, p.Quantity)
		p.Cash += size * price
		p.Quantity -= size
		m.OnTrade(sig, price, size, ts)
	}
	return p
}

func TestMachine_SetStateTolerant(t *testing.T) {
	tests := []struct {
		name      string
		state     State
		wantOpen  bool
		wantEntry float64
	}{
		{
			name:  "entry without quantity resets to flat",
			state: State{EntryPrice: ptr(100), HighestSinceEntry: ptr(120)},
		},
		{
			name:      "quantity without entry derives from lots",
			state:     State{CurrentQuantity: 2, Lots: []Lot{{Price: 100, Size: 1}, {Price: 200, Size: 1}}},
			wantOpen:  true,
			wantEntry: 150,
		},
		{
			name:  "quantity without entry or lots resets to flat",
			state: State{CurrentQuantity: 2},
		},
		{
			name:      "open without lots synthesises one",
			state:     State{CurrentQuantity: 2, EntryPrice: ptr(90)},
			wantOpen:  true,
			wantEntry: 90,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMachine(&scriptedRules{capacity: 5}, Deps{})
			m.SetState(Snapshot{State: tt.state})

			st := m.State().State
			assert.Equal(t, tt.wantOpen, st.IsOpen())
			if tt.wantOpen {
				require.NotNil(t, st.EntryPrice)
				assert.InDelta(t, tt.wantEntry, *st.EntryPrice, 1e-9)
			}
			assert.NotNil(t, st.TradeCounts)
			assertInvariant(t, m)
		})
	}
}

func TestSnapshot_ValidateFailsFast(t *testing.T) {
	bad := Snapshot{State: State{EntryPrice: ptr(100)}}
	err := bad.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrInvalidState))

	unordered := Snapshot{PriceHistory: []core.PriceSample{{Price: 1, Time: t0.Add(time.Hour)}, {Price: 2, Time: t0}}}
	assert.Error(t, unordered.Validate())

	assert.NoError(t, Snapshot{}.Validate())
}

func TestUnmarshalSnapshot_MissingFields(t *testing.T) {
	snap, err := UnmarshalSnapshot([]byte(`{"state":{"current_quantity":0}}`))
	require.NoError(t, err)
	assert.Nil(t, snap.State.EntryPrice)
	assert.Empty(t, snap.PriceHistory)

	_, err = UnmarshalSnapshot([]byte(`{not json`))
	assert.True(t, errors.Is(err, core.ErrInvalidState))
}

func TestDecision_HighSince(t *testing.T) {
	d := &Decision{
		Market: core.MarketSnapshot{CurrentPrice: 95, Timestamp: t0.Add(100 * time.Hour)},
		History: []core.PriceSample{
			{Price: 500, Time: t0},
			{Price: 120, Time: t0.Add(40 * time.Hour)},
			{Price: 95, Time: t0.Add(100 * time.Hour)},
		},
		State: &State{},
	}

	assert.Equal(t, 120.0, d.HighSince(72*time.Hour).Unwrap())
	assert.Equal(t, 95.0, d.HighSince(time.Hour).Unwrap())
}

func TestMachine_InvalidPriceLeavesStateUntouched(t *testing.T) {
	rules := &scriptedRules{capacity: 5}
	m := NewMachine(rules, Deps{})

	for i, p := range []float64{0, -5} {
		sig := m.GenerateSignal(snapshot(p, i), core.Portfolio{Cash: 1000})
		assert.Equal(t, core.Hold("Invalid price"), sig)
	}
	assert.Empty(t, rules.seen, "rules are not consulted on a bad tick")
	assert.Empty(t, m.State().PriceHistory)
	assert.Nil(t, m.State().State.StartingEquity)
	assert.Zero(t, m.State().State.BarsSinceLastTrade)

	m.GenerateSignal(snapshot(100, 2), core.Portfolio{Cash: 1000})
	require.Len(t, rules.seen, 1)
	assert.Equal(t, []float64{100}, rules.seen[0].Prices)
	require.NotNil(t, m.State().State.StartingEquity)
	assert.Equal(t, 1000.0, *m.State().State.StartingEquity)
}

func TestMachine_WarmUpSkipsInvalidPrices(t *testing.T) {
	rules := &scriptedRules{capacity: 5}
	m := NewMachine(rules, Deps{})

	market := snapshot(102, 3)
	market.History = []core.PriceSample{
		{Price: 100, Time: t0},
		{Price: 0, Time: t0.Add(time.Hour)},
		{Price: 101, Time: t0.Add(2 * time.Hour)},
		{Price: 102, Time: t0.Add(3 * time.Hour)},
	}
	m.GenerateSignal(market, core.Portfolio{Cash: 1000})

	require.Len(t, rules.seen, 1)
	assert.Equal(t, []float64{100, 101, 102}, rules.seen[0].Prices)
}
