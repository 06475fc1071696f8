package strategy

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/newthinker/momentum/internal/core"
)

// dust is the quantity below which a position or lot counts as closed.
const dust = 1e-12

// Lot is one open purchase used for FIFO cost accounting.
type Lot struct {
	Price float64   `json:"price"`
	Size  float64   `json:"size"`
	Time  time.Time `json:"timestamp"`
}

// State is the mutable per-instrument state of a strategy.
//
// EntryPrice is set if and only if CurrentQuantity > 0. HighestSinceEntry
// is only tracked while a position is open.
type State struct {
	EntryPrice         *float64       `json:"entry_price,omitempty"`
	HighestSinceEntry  *float64       `json:"highest_price_since_entry,omitempty"`
	StartingEquity     *float64       `json:"starting_equity,omitempty"`
	CurrentQuantity    float64        `json:"current_quantity"`
	BarsSinceLastTrade int            `json:"bars_since_last_trade"`
	LastTradeTime      time.Time      `json:"last_trade_time"`
	LastExitTime       time.Time      `json:"last_exit_time"`
	TradeCounts        map[string]int `json:"trade_count_by_period,omitempty"`
	Lots               []Lot          `json:"lots,omitempty"`
	TiersHit           []int          `json:"take_profit_tiers_hit,omitempty"`
	InstrumentClass    string         `json:"instrument_class,omitempty"`
}

// IsOpen reports whether a position is held.
func (s *State) IsOpen() bool {
	return s.CurrentQuantity > 0
}

// TierHit reports whether take-profit tier i was already taken on the open position.
func (s *State) TierHit(i int) bool {
	for _, t := range s.TiersHit {
		if t == i {
			return true
		}
	}
	return false
}

// Validate checks the entry/quantity invariant and lot consistency.
func (s *State) Validate() error {
	if s.CurrentQuantity < 0 || math.IsNaN(s.CurrentQuantity) {
		return core.WrapError(core.ErrInvalidState,
			fmt.Errorf("current_quantity must be non-negative, got %f", s.CurrentQuantity))
	}
	if s.EntryPrice != nil && s.CurrentQuantity <= 0 {
		return core.WrapError(core.ErrInvalidState,
			fmt.Errorf("entry_price %f set without an open quantity", *s.EntryPrice))
	}
	if s.EntryPrice == nil && s.CurrentQuantity > 0 {
		return core.WrapError(core.ErrInvalidState,
			fmt.Errorf("current_quantity %f set without an entry_price", s.CurrentQuantity))
	}
	if s.EntryPrice != nil && *s.EntryPrice <= 0 {
		return core.WrapError(core.ErrInvalidState,
			fmt.Errorf("entry_price must be positive, got %f", *s.EntryPrice))
	}
	if s.HighestSinceEntry != nil && s.CurrentQuantity <= 0 {
		return core.WrapError(core.ErrInvalidState,
			fmt.Errorf("highest_price_since_entry set while flat"))
	}
	var lots float64
	for _, l := range s.Lots {
		lots += l.Size
	}
	if math.Abs(lots-s.CurrentQuantity) > 1e-9*math.Max(1, s.CurrentQuantity) {
		return core.WrapError(core.ErrInvalidState,
			fmt.Errorf("lots total %f does not match current_quantity %f", lots, s.CurrentQuantity))
	}
	return nil
}

func (s State) clone() State {
	out := s
	out.EntryPrice = clonePtr(s.EntryPrice)
	out.HighestSinceEntry = clonePtr(s.HighestSinceEntry)
	out.StartingEquity = clonePtr(s.StartingEquity)
	if s.TradeCounts != nil {
		out.TradeCounts = make(map[string]int, len(s.TradeCounts))
		for k, v := range s.TradeCounts {
			out.TradeCounts[k] = v
		}
	}
	out.Lots = append([]Lot(nil), s.Lots...)
	out.TiersHit = append([]int(nil), s.TiersHit...)
	return out
}

func clonePtr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func ptr(v float64) *float64 {
	return &v
}

// Snapshot is the serialisable form of a strategy's state and price history.
type Snapshot struct {
	Strategy     string             `json:"strategy"`
	State        State              `json:"state"`
	PriceHistory []core.PriceSample `json:"price_history"`
}

// Validate checks the restored invariants. Live restore is tolerant;
// replay and test harnesses call this to fail fast.
func (s Snapshot) Validate() error {
	if err := s.State.Validate(); err != nil {
		return err
	}
	for i := 1; i < len(s.PriceHistory); i++ {
		if s.PriceHistory[i].Time.Before(s.PriceHistory[i-1].Time) {
			return core.WrapError(core.ErrInvalidState,
				fmt.Errorf("price history out of order at index %d", i))
		}
	}
	return nil
}

// Marshal encodes the snapshot as JSON.
func (s Snapshot) Marshal() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// UnmarshalSnapshot decodes a JSON snapshot. Missing fields keep their zero values.
func UnmarshalSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, core.WrapError(core.ErrInvalidState, err)
	}
	return s, nil
}
