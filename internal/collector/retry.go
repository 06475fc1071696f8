package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/newthinker/momentum/internal/core"
	"go.uber.org/zap"
)

// RetryConfig bounds the number of fetch attempts and the fixed delay between them.
type RetryConfig struct {
	Attempts int
	Delay    time.Duration
}

// DefaultRetryConfig returns three attempts three seconds apart.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{Attempts: 3, Delay: 3 * time.Second}
}

// AttemptFunc observes each fetch attempt with status "ok", "empty" or "error".
type AttemptFunc func(source, status string)

// Retrying wraps a provider with bounded fixed-delay retries. An empty
// result counts as a failed attempt.
type Retrying struct {
	provider  HistoryProvider
	cfg       RetryConfig
	logger    *zap.Logger
	onAttempt AttemptFunc
}

var _ HistoryProvider = (*Retrying)(nil)

// NewRetrying creates a retrying wrapper around p.
func NewRetrying(p HistoryProvider, cfg RetryConfig, logger *zap.Logger) *Retrying {
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}
	if cfg.Delay < 0 {
		cfg.Delay = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retrying{provider: p, cfg: cfg, logger: logger}
}

// OnAttempt sets an observer called after every attempt.
func (r *Retrying) OnAttempt(fn AttemptFunc) *Retrying {
	r.onAttempt = fn
	return r
}

func (r *Retrying) Name() string {
	return r.provider.Name()
}

// FetchHistory tries the wrapped provider until it returns data or the
// attempts are exhausted, then fails with core.ErrDataUnavailable.
func (r *Retrying) FetchHistory(ctx context.Context, symbol string, start, end time.Time, interval string) ([]core.PriceSample, error) {
	var (
		data    []core.PriceSample
		attempt int
	)

	op := func() error {
		attempt++
		out, err := r.provider.FetchHistory(ctx, symbol, start, end, interval)
		switch {
		case err != nil:
			r.observe("error")
			if errors.Is(err, core.ErrInvalidParams) {
				return backoff.Permanent(err)
			}
			return err
		case len(out) == 0:
			r.observe("empty")
			return core.WrapError(core.ErrNoData, fmt.Errorf("%s returned no samples", symbol))
		}
		r.observe("ok")
		data = out
		return nil
	}

	notify := func(err error, wait time.Duration) {
		r.logger.Warn("history fetch failed, retrying",
			zap.String("source", r.provider.Name()),
			zap.String("symbol", symbol),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", r.cfg.Attempts),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}

	var b backoff.BackOff = backoff.NewConstantBackOff(r.cfg.Delay)
	b = backoff.WithMaxRetries(b, uint64(r.cfg.Attempts-1))
	b = backoff.WithContext(b, ctx)

	if err := backoff.RetryNotify(op, b, notify); err != nil {
		r.logger.Error("history fetch gave up",
			zap.String("source", r.provider.Name()),
			zap.String("symbol", symbol),
			zap.Int("attempts", attempt),
			zap.Error(err),
		)
		return nil, core.WrapError(core.ErrDataUnavailable,
			fmt.Errorf("%s %s after %d attempts: %w", r.provider.Name(), symbol, attempt, err))
	}
	return data, nil
}

func (r *Retrying) observe(status string) {
	if r.onAttempt != nil {
		r.onAttempt(r.provider.Name(), status)
	}
}
