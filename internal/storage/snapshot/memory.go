package snapshot

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/newthinker/momentum/internal/core"
	"github.com/newthinker/momentum/internal/strategy"
)

// MemoryStore is an in-memory snapshot store. Snapshots are stored in
// serialised form so callers never share state with the store.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[Key][]byte
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[Key][]byte)}
}

// Save stores a serialised copy of snap.
func (m *MemoryStore) Save(ctx context.Context, key Key, snap strategy.Snapshot) error {
	data, err := snap.Marshal()
	if err != nil {
		return core.WrapError(core.ErrStorageFailed, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = data
	return nil
}

// Load decodes the stored snapshot.
func (m *MemoryStore) Load(ctx context.Context, key Key) (strategy.Snapshot, error) {
	m.mu.RLock()
	data, ok := m.items[key]
	m.mu.RUnlock()

	if !ok {
		return strategy.Snapshot{}, core.WrapError(core.ErrNoData, fmt.Errorf("no snapshot for %s/%s", key.Strategy, key.Symbol))
	}
	return strategy.UnmarshalSnapshot(data)
}

// List returns matching keys ordered by strategy then symbol.
func (m *MemoryStore) List(ctx context.Context, filter ListFilter) ([]Key, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []Key
	for k := range m.items {
		if filter.matches(k) {
			result = append(result, k)
		}
	}
	slices.SortFunc(result, compareKeys)
	return result, nil
}

func compareKeys(a, b Key) int {
	if c := strings.Compare(a.Strategy, b.Strategy); c != 0 {
		return c
	}
	return strings.Compare(a.Symbol, b.Symbol)
}
