// Package risk provides position sizing and entry guards for a single-asset, long-only strategy.
package risk

import "github.com/newthinker/momentum/internal/core"

// PositionSize converts a target fraction of portfolio value into an
// instrument quantity, never spending more than the available cash.
// A non-positive result means the order should be suppressed.
func PositionSize(p core.Portfolio, price, fraction float64) float64 {
	if price <= 0 || fraction <= 0 {
		return 0
	}
	value := min(p.Value(price)*fraction, p.Cash)
	if value <= 0 {
		return 0
	}
	return value / price
}

// ScaledFraction interpolates linearly between minFraction and maxFraction
// using score in [0,1], capped at maxFraction.
func ScaledFraction(score, minFraction, maxFraction float64) float64 {
	return min(minFraction+score*(maxFraction-minFraction), maxFraction)
}
