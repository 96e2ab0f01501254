package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemQueue_PushTakeFIFO(t *testing.T) {
	q := NewMemQueue(4)
	ctx := context.Background()

	require.NoError(t, q.Push(ctx, Envelope{ImageID: "a", StorageKey: "raw/a"}))
	require.NoError(t, q.Push(ctx, Envelope{ImageID: "b", StorageKey: "raw/b"}))

	first, err := q.Take(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", first.ImageID)

	second, err := q.Take(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b", second.ImageID)
}

func TestMemQueue_TakeTimesOutWhenEmpty(t *testing.T) {
	q := NewMemQueue(1)
	ctx, cancel := context.WithTimeout(context.Background(), TakeTimeout+time.Second)
	defer cancel()

	_, err := q.Take(ctx)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestMemQueue_TakeRespectsContextCancellation(t *testing.T) {
	q := NewMemQueue(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := q.Take(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemQueue_DeadLetterAccumulates(t *testing.T) {
	q := NewMemQueue(1)
	ctx := context.Background()

	require.NoError(t, q.PushDeadLetter(ctx, []byte("not json")))
	require.NoError(t, q.PushDeadLetter(ctx, []byte("also not json")))

	assert.Len(t, q.DeadLetters(), 2)
}

func TestMemQueue_LenReflectsDepth(t *testing.T) {
	q := NewMemQueue(4)
	ctx := context.Background()
	require.NoError(t, q.Push(ctx, Envelope{ImageID: "a"}))
	require.NoError(t, q.Push(ctx, Envelope{ImageID: "b"}))

	depth, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), depth)
}

func TestEnvelope_MarshalRoundTrip(t *testing.T) {
	env := Envelope{ImageID: "img-1", StorageKey: "raw/owner/img-1.png"}
	raw, err := env.Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(raw), "img-1")
}
