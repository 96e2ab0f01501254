package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lore-anchor/protect/internal/apperr"
)

func TestNew_SnapshotStartsIdleWithZeroCounters(t *testing.T) {
	w := New(Config{})
	snap := w.Snapshot()

	assert.Equal(t, "ok", snap.Status)
	assert.False(t, snap.Processing)
	assert.Zero(t, snap.ImagesProcessed)
	assert.Zero(t, snap.ImagesFailed)
	assert.NotEmpty(t, snap.WorkerID)
}

func TestJitteredBackoff_StaysWithinBounds(t *testing.T) {
	for attempt := 0; attempt < 5; attempt++ {
		d := jitteredBackoff(attempt)
		assert.GreaterOrEqual(t, d, time.Second)
		assert.LessOrEqual(t, d, 10*time.Second)
	}
}

func TestWithRetry_SucceedsWithoutRetryingOnFirstTry(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithRetry_RetriesTransientFailuresUpToMaxAttempts(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), func() error {
		calls++
		return errors.New("transient dependency failure")
	})
	assert.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetry_DoesNotRetryConflict(t *testing.T) {
	calls := 0
	conflict := apperr.New(apperr.Conflict, "invalid_transition")
	err := withRetry(context.Background(), func() error {
		calls++
		return conflict
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, apperr.Is(err, apperr.Conflict))
}

func TestWithRetry_RespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := withRetry(ctx, func() error {
		calls++
		return errors.New("transient dependency failure")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
