package backtest

import (
	"time"
)

// Side is the direction of a simulated fill.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// TradeRecord is one simulated fill. PnL is only set for sells and is
// realised against the oldest open lots first.
type TradeRecord struct {
	Time   time.Time `json:"timestamp" yaml:"timestamp"`
	Side   Side      `json:"side" yaml:"side"`
	Price  float64   `json:"price" yaml:"price"`
	Size   float64   `json:"size" yaml:"size"`
	Value  float64   `json:"value" yaml:"value"`
	PnL    float64   `json:"pnl,omitempty" yaml:"pnl,omitempty"`
	Reason string    `json:"reason" yaml:"reason"`
}

// EquityPoint is the marked-to-market portfolio value after one step.
type EquityPoint struct {
	Time  time.Time `json:"timestamp" yaml:"timestamp"`
	Value float64   `json:"value" yaml:"value"`
}

// Metrics holds performance statistics for one run. Percentages are
// expressed as 0-100.
type Metrics struct {
	StartingCash   float64 `json:"starting_cash" yaml:"starting_cash"`
	StartingValue  float64 `json:"starting_value" yaml:"starting_value"`
	FinalValue     float64 `json:"final_value" yaml:"final_value"`
	TotalReturnPct float64 `json:"total_return_pct" yaml:"total_return_pct"`
	TotalPnL       float64 `json:"total_pnl" yaml:"total_pnl"`
	TotalTrades    int     `json:"total_trades" yaml:"total_trades"`
	BuyTrades      int     `json:"buy_trades" yaml:"buy_trades"`
	SellTrades     int     `json:"sell_trades" yaml:"sell_trades"`
	WinRatePct     float64 `json:"win_rate_pct" yaml:"win_rate_pct"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct" yaml:"max_drawdown_pct"`
	SharpeRatio    float64 `json:"sharpe_ratio" yaml:"sharpe_ratio"`
}

// Result holds the complete output of one strategy run over one symbol.
// OpeningQuantity is the position restored before the first sample.
type Result struct {
	Strategy        string        `json:"strategy" yaml:"strategy"`
	Symbol          string        `json:"symbol" yaml:"symbol"`
	Start           time.Time     `json:"start" yaml:"start"`
	End             time.Time     `json:"end" yaml:"end"`
	Samples         int           `json:"samples" yaml:"samples"`
	OpeningQuantity float64       `json:"opening_quantity,omitempty" yaml:"opening_quantity,omitempty"`
	Metrics         Metrics       `json:"metrics" yaml:"metrics"`
	Trades          []TradeRecord `json:"trades" yaml:"trades"`
	Equity          []EquityPoint `json:"equity,omitempty" yaml:"-"`
}

// FinalQuantity is the position left open at the end of the run.
func (r *Result) FinalQuantity() float64 {
	q := r.OpeningQuantity
	for _, t := range r.Trades {
		switch t.Side {
		case SideBuy:
			q += t.Size
		case SideSell:
			q -= t.Size
		}
	}
	return q
}
