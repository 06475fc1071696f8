package collector

import (
	"context"
	"time"

	"github.com/newthinker/momentum/internal/core"
)

// Config holds collector configuration
type Config struct {
	BaseURL string
	Timeout time.Duration
	Extra   map[string]any
}

// HistoryProvider supplies historical price samples for one instrument.
// Samples are returned oldest first.
type HistoryProvider interface {
	Name() string
	FetchHistory(ctx context.Context, symbol string, start, end time.Time, interval string) ([]core.PriceSample, error)
}
