package risk

import (
	"fmt"
	"time"

	"github.com/newthinker/momentum/internal/core"
)

// CheckResult represents the outcome of a guard check.
type CheckResult struct {
	// Allowed indicates whether a new entry is permitted.
	Allowed bool
	// Reason explains a rejection.
	Reason string
}

func allowed() CheckResult {
	return CheckResult{Allowed: true}
}

func rejected(format string, args ...any) CheckResult {
	return CheckResult{Allowed: false, Reason: fmt.Sprintf(format, args...)}
}

// EntryContext carries everything a guard may look at.
type EntryContext struct {
	Portfolio          core.Portfolio
	Price              float64
	Now                time.Time
	StartingEquity     float64 // zero when not yet recorded
	BarsSinceLastTrade int
	LastTradeTime      time.Time // zero when none
	LastExitTime       time.Time // zero when none
	TradeCounts        map[string]int
}

// Guard blocks new entries. Guards never force an exit.
type Guard interface {
	Check(ec EntryContext) CheckResult
}

// CheckAll runs guards in order and returns the first rejection.
func CheckAll(ec EntryContext, guards ...Guard) CheckResult {
	for _, g := range guards {
		if g == nil {
			continue
		}
		if res := g.Check(ec); !res.Allowed {
			return res
		}
	}
	return allowed()
}

// DrawdownGuard blocks entries while equity is more than MaxDrawdown below starting equity.
type DrawdownGuard struct {
	MaxDrawdown float64
}

func (g DrawdownGuard) Check(ec EntryContext) CheckResult {
	if g.MaxDrawdown <= 0 || ec.StartingEquity <= 0 {
		return allowed()
	}
	equity := ec.Portfolio.Value(ec.Price)
	drawdown := (ec.StartingEquity - equity) / ec.StartingEquity
	if drawdown > g.MaxDrawdown {
		return rejected("Drawdown protection active: %.2f%% > %.2f%%", drawdown*100, g.MaxDrawdown*100)
	}
	return allowed()
}

// BarCooldown requires a minimum number of bars since the last trade.
type BarCooldown struct {
	Bars int
}

func (c BarCooldown) Check(ec EntryContext) CheckResult {
	if c.Bars > 0 && ec.BarsSinceLastTrade < c.Bars {
		return rejected("Cooldown: %d/%d bars", ec.BarsSinceLastTrade, c.Bars)
	}
	return allowed()
}

// Clock selects the reference time of an HourCooldown.
type Clock int

const (
	SinceLastTrade Clock = iota
	SinceLastExit
)

// HourCooldown requires a minimum number of hours since the last trade or exit.
type HourCooldown struct {
	Hours float64
	Since Clock
}

func (c HourCooldown) Check(ec EntryContext) CheckResult {
	ref := ec.LastTradeTime
	if c.Since == SinceLastExit {
		ref = ec.LastExitTime
	}
	if c.Hours <= 0 || ref.IsZero() || ec.Now.IsZero() {
		return allowed()
	}
	elapsed := ec.Now.Sub(ref).Hours()
	if elapsed < c.Hours {
		return rejected("Cooldown: %.1f/%.0fh", elapsed, c.Hours)
	}
	return allowed()
}

// Trade period granularity for TradeLimiter.
const (
	PeriodDay   = "day"
	PeriodWeek  = "week"
	PeriodMonth = "month"
)

// TradeLimiter caps entries per calendar period.
type TradeLimiter struct {
	MaxPerPeriod int
	Period       string
}

// Key returns the bucket key for ts. Unknown periods fall back to month.
func (l TradeLimiter) Key(ts time.Time) string {
	ts = ts.UTC()
	switch l.Period {
	case PeriodDay:
		return ts.Format("2006-01-02")
	case PeriodWeek:
		year, week := ts.ISOWeek()
		return fmt.Sprintf("%d-W%02d", year, week)
	default:
		return ts.Format("2006-01")
	}
}

func (l TradeLimiter) label() string {
	switch l.Period {
	case PeriodDay:
		return "Daily"
	case PeriodWeek:
		return "Weekly"
	default:
		return "Monthly"
	}
}

func (l TradeLimiter) Check(ec EntryContext) CheckResult {
	if l.MaxPerPeriod <= 0 || ec.Now.IsZero() {
		return allowed()
	}
	count := ec.TradeCounts[l.Key(ec.Now)]
	if count >= l.MaxPerPeriod {
		return rejected("%s trade limit reached (%d/%d)", l.label(), count, l.MaxPerPeriod)
	}
	return allowed()
}

// ExposureGuard blocks entries once the position is more than MaxExposure of portfolio value.
type ExposureGuard struct {
	MaxExposure float64
}

func (g ExposureGuard) Check(ec EntryContext) CheckResult {
	if g.MaxExposure <= 0 {
		return allowed()
	}
	value := ec.Portfolio.Value(ec.Price)
	if value <= 0 {
		return allowed()
	}
	exposure := ec.Portfolio.Quantity * ec.Price / value
	if exposure > g.MaxExposure {
		return rejected("Position limit reached: %.1f%% > %.1f%%", exposure*100, g.MaxExposure*100)
	}
	return allowed()
}
