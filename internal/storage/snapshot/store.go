// Package snapshot persists strategy state snapshots between runs so a
// restarted process resumes with the same position and counters.
package snapshot

import (
	"context"
	"fmt"
	"strings"

	"github.com/newthinker/momentum/internal/strategy"
)

// Key identifies the snapshot of one strategy on one instrument.
type Key struct {
	Strategy string
	Symbol   string
}

// Path returns the storage path of the snapshot.
func (k Key) Path() string {
	return fmt.Sprintf("state/%s/%s.json", k.Strategy, sanitize(k.Symbol))
}

func sanitize(s string) string {
	return strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(s)
}

// Store defines the interface for snapshot persistence.
type Store interface {
	// Save replaces the snapshot stored under key.
	Save(ctx context.Context, key Key, snap strategy.Snapshot) error

	// Load retrieves a snapshot. A missing snapshot fails with core.ErrNoData.
	Load(ctx context.Context, key Key) (strategy.Snapshot, error)

	// List returns the keys matching the filter.
	List(ctx context.Context, filter ListFilter) ([]Key, error)
}

// ListFilter defines criteria for listing snapshots.
type ListFilter struct {
	Strategy string
	Symbol   string
}

func (f ListFilter) matches(k Key) bool {
	if f.Strategy != "" && k.Strategy != f.Strategy {
		return false
	}
	if f.Symbol != "" && k.Symbol != f.Symbol {
		return false
	}
	return true
}
