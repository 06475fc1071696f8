// Package archive stores run artifacts (state snapshots, backtest reports)
// on the local filesystem or an S3-compatible bucket.
package archive

import (
	"context"
	"fmt"

	"github.com/newthinker/momentum/internal/core"
)

// Storage defines the interface for artifact storage backends
type Storage interface {
	// Write stores data at the given path
	Write(ctx context.Context, path string, data []byte) error

	// Read retrieves data from the given path
	Read(ctx context.Context, path string) ([]byte, error)

	// List returns all paths matching the prefix, sorted
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes the data at the given path
	Delete(ctx context.Context, path string) error

	// Exists checks if data exists at the given path
	Exists(ctx context.Context, path string) (bool, error)
}

// Backend names accepted by New.
const (
	BackendLocal = "local"
	BackendS3    = "s3"
)

// Config selects and configures a backend.
type Config struct {
	Backend string
	Path    string
	S3      S3Config
}

// New builds the configured backend.
func New(cfg Config) (Storage, error) {
	switch cfg.Backend {
	case BackendLocal, "":
		return NewLocalFS(cfg.Path)
	case BackendS3:
		return NewS3(cfg.S3)
	default:
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown storage backend %q", cfg.Backend))
	}
}

func storageErr(op, path string, err error) error {
	return core.WrapError(core.ErrStorageFailed, fmt.Errorf("%s %s: %w", op, path, err))
}
