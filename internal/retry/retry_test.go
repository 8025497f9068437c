package retry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoSucceedsWithoutRetryingOnFirstSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), DefaultPolicy, nil, func(context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesUpToAttemptsThenFails(t *testing.T) {
	calls := 0
	policy := Policy{Attempts: 3, Base: time.Millisecond, Max: 2 * time.Millisecond}
	err := Do(context.Background(), policy, func(error) bool { return true }, func(context.Context) error {
		calls++
		return assert.AnError
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoStopsImmediatelyOnNonRetryableError(t *testing.T) {
	calls := 0
	policy := Policy{Attempts: 5, Base: time.Millisecond, Max: time.Millisecond}
	err := Do(context.Background(), policy, func(error) bool { return false }, func(context.Context) error {
		calls++
		return assert.AnError
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(ctx, DefaultPolicy, func(error) bool { return true }, func(context.Context) error {
		calls++
		return assert.AnError
	})
	require.Error(t, err)
	assert.Equal(t, 0, calls)
}
