package collector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/newthinker/momentum/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sample = []core.PriceSample{{Price: 100, Time: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}}

func fetch(r *Retrying) ([]core.PriceSample, error) {
	return r.FetchHistory(context.Background(), "BTC-USD", time.Time{}, time.Time{}, "1h")
}

func TestRetrying_SucceedsAfterFailures(t *testing.T) {
	mock := &mockProvider{
		name:    "mock",
		errs:    []error{errors.New("timeout"), nil},
		results: [][]core.PriceSample{nil, nil, sample},
	}
	var statuses []string
	r := NewRetrying(mock, RetryConfig{Attempts: 3, Delay: time.Millisecond}, nil).
		OnAttempt(func(source, status string) { statuses = append(statuses, source+":"+status) })

	data, err := fetch(r)
	require.NoError(t, err)
	assert.Equal(t, sample, data)
	assert.Equal(t, 3, mock.calls)
	assert.Equal(t, []string{"mock:error", "mock:empty", "mock:ok"}, statuses)
}

func TestRetrying_ExhaustedIsDataUnavailable(t *testing.T) {
	mock := &mockProvider{name: "mock"}
	r := NewRetrying(mock, RetryConfig{Attempts: 3, Delay: time.Millisecond}, nil)

	_, err := fetch(r)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrDataUnavailable)
	assert.ErrorIs(t, err, core.ErrNoData)
	assert.Equal(t, 3, mock.calls)
}

func TestRetrying_PermanentErrorStops(t *testing.T) {
	mock := &mockProvider{
		name: "mock",
		errs: []error{core.WrapError(core.ErrInvalidParams, errors.New("bad symbol"))},
	}
	r := NewRetrying(mock, RetryConfig{Attempts: 5, Delay: time.Millisecond}, nil)

	_, err := fetch(r)
	assert.ErrorIs(t, err, core.ErrDataUnavailable)
	assert.Equal(t, 1, mock.calls)
}

func TestRetrying_CancelledContext(t *testing.T) {
	mock := &mockProvider{name: "mock"}
	r := NewRetrying(mock, RetryConfig{Attempts: 10, Delay: time.Hour}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.FetchHistory(ctx, "X", time.Time{}, time.Time{}, "1d")
	assert.ErrorIs(t, err, core.ErrDataUnavailable)
	assert.LessOrEqual(t, mock.calls, 1)
}

func TestRetrying_MinimumOneAttempt(t *testing.T) {
	mock := &mockProvider{name: "mock", results: [][]core.PriceSample{sample}}
	r := NewRetrying(mock, RetryConfig{}, nil)

	data, err := fetch(r)
	require.NoError(t, err)
	assert.Len(t, data, 1)
	assert.Equal(t, "mock", r.Name())
}
