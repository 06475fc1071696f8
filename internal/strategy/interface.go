package strategy

import (
	"time"

	"github.com/newthinker/momentum/internal/core"
	"go.uber.org/zap"
)

// Strategy is the capability every rule set exposes to a replay or live caller.
type Strategy interface {
	Name() string

	// GenerateSignal appends the current price to the internal history and
	// returns exactly one of buy, hold or sell.
	GenerateSignal(market core.MarketSnapshot, portfolio core.Portfolio) core.Signal

	// OnTrade must be called once per executed, non-zero fill after the
	// external ledger has been updated.
	OnTrade(signal core.Signal, price, size float64, ts time.Time)

	State() Snapshot
	SetState(snap Snapshot)
}

// Exchange is the execution venue handle passed at construction.
// The signal engine stores it but never calls it.
type Exchange any

// Deps are the collaborators handed to a strategy constructor.
type Deps struct {
	Exchange Exchange
	Logger   *zap.Logger
}

func (d Deps) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

// Constructor builds a strategy from named options.
type Constructor func(params map[string]any, deps Deps) (Strategy, error)

// Rules is one decision-rule family plugged into a Machine.
type Rules interface {
	Name() string

	// HistoryCapacity is the number of samples the rules need to look back on.
	HistoryCapacity() int

	// Decide inspects d and returns a signal. It may update d.State
	// bookkeeping that belongs to the rules (such as take-profit tiers).
	Decide(d *Decision) core.Signal
}

// PeriodKeyer is implemented by rules that bucket trade counts by a
// period other than calendar month.
type PeriodKeyer interface {
	PeriodKey(ts time.Time) string
}
