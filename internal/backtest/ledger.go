package backtest

import (
	"time"

	"github.com/newthinker/momentum/internal/strategy"
)

// lotDust is the remaining size below which a lot counts as consumed.
const lotDust = 1e-12

type lot struct {
	price float64
	size  float64
	time  time.Time
}

// Ledger tracks cash, quantity and open lots for one simulated account.
type Ledger struct {
	Cash     float64
	Quantity float64

	lots []lot
}

// NewLedger creates a flat ledger holding cash.
func NewLedger(cash float64) *Ledger {
	return &Ledger{Cash: cash}
}

// Seed adds already held lots, such as those of a restored strategy
// state, without touching cash.
func (l *Ledger) Seed(lots []strategy.Lot) {
	for _, sl := range lots {
		if sl.Size <= 0 {
			continue
		}
		l.lots = append(l.lots, lot{price: sl.Price, size: sl.Size, time: sl.Time})
		l.Quantity += sl.Size
	}
}

// Buy fills up to size at price, capped by available cash. It returns
// the filled size, which is zero when nothing could be bought.
func (l *Ledger) Buy(price, size float64, ts time.Time) float64 {
	if price <= 0 || size <= 0 {
		return 0
	}
	filled := min(size, l.Cash/price)
	if filled <= 0 {
		return 0
	}
	l.Cash -= filled * price
	if l.Cash < 0 {
		l.Cash = 0
	}
	l.Quantity += filled
	l.lots = append(l.lots, lot{price: price, size: filled, time: ts})
	return filled
}

// Sell fills up to size at price, capped by the held quantity, and
// returns the filled size with its realised P&L.
func (l *Ledger) Sell(price, size float64) (filled, pnl float64) {
	if price <= 0 || size <= 0 {
		return 0, 0
	}
	filled = min(size, l.Quantity)
	if filled <= 0 {
		return 0, 0
	}
	l.Cash += filled * price
	l.Quantity -= filled

	remaining := filled
	for remaining > lotDust && len(l.lots) > 0 {
		head := &l.lots[0]
		take := min(head.size, remaining)
		pnl += (price - head.price) * take
		head.size -= take
		remaining -= take
		if head.size <= lotDust {
			l.lots = l.lots[1:]
		}
	}
	if l.Quantity <= lotDust {
		l.Quantity = 0
		l.lots = nil
	}
	return filled, pnl
}

// Value marks the account to price.
func (l *Ledger) Value(price float64) float64 {
	return l.Cash + l.Quantity*price
}

// OpenLots returns the number of lots not yet consumed.
func (l *Ledger) OpenLots() int {
	return len(l.lots)
}
