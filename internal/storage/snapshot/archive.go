package snapshot

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/newthinker/momentum/internal/core"
	"github.com/newthinker/momentum/internal/storage/archive"
	"github.com/newthinker/momentum/internal/strategy"
)

// ArchiveStore keeps snapshots as JSON documents in an archive.Storage.
type ArchiveStore struct {
	storage archive.Storage
}

var _ Store = (*ArchiveStore)(nil)

// NewArchiveStore creates a store on top of storage.
func NewArchiveStore(storage archive.Storage) *ArchiveStore {
	return &ArchiveStore{storage: storage}
}

// Save validates and writes the snapshot.
func (a *ArchiveStore) Save(ctx context.Context, key Key, snap strategy.Snapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	data, err := snap.Marshal()
	if err != nil {
		return core.WrapError(core.ErrStorageFailed, err)
	}
	return a.storage.Write(ctx, key.Path(), data)
}

// Load reads and decodes the snapshot.
func (a *ArchiveStore) Load(ctx context.Context, key Key) (strategy.Snapshot, error) {
	exists, err := a.storage.Exists(ctx, key.Path())
	if err != nil {
		return strategy.Snapshot{}, err
	}
	if !exists {
		return strategy.Snapshot{}, core.WrapError(core.ErrNoData, fmt.Errorf("no snapshot at %s", key.Path()))
	}
	data, err := a.storage.Read(ctx, key.Path())
	if err != nil {
		return strategy.Snapshot{}, err
	}
	return strategy.UnmarshalSnapshot(data)
}

// List parses keys back from stored paths.
func (a *ArchiveStore) List(ctx context.Context, filter ListFilter) ([]Key, error) {
	paths, err := a.storage.List(ctx, "state/")
	if err != nil {
		return nil, err
	}
	var result []Key
	for _, p := range paths {
		parts := strings.Split(strings.TrimPrefix(p, "state/"), "/")
		if len(parts) != 2 || !strings.HasSuffix(parts[1], ".json") {
			continue
		}
		k := Key{Strategy: parts[0], Symbol: strings.TrimSuffix(parts[1], ".json")}
		if filter.matches(k) {
			result = append(result, k)
		}
	}
	slices.SortFunc(result, compareKeys)
	return result, nil
}
