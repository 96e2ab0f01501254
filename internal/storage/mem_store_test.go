package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemStore_PutGetRoundTrip(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	require.NoError(t, s.PutObject(ctx, "raw/owner/a.png", []byte("bytes"), "image/png"))
	data, err := s.GetObject(ctx, "raw/owner/a.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("bytes"), data)
}

func TestMemStore_GetMissingKey(t *testing.T) {
	s := NewMemStore()
	_, err := s.GetObject(context.Background(), "missing")
	assert.Error(t, err)
}

func TestMemStore_MoveObject(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	require.NoError(t, s.PutObject(ctx, "src", []byte("payload"), "application/octet-stream"))

	require.NoError(t, s.MoveObject(ctx, "src", "dst"))

	_, err := s.GetObject(ctx, "src")
	assert.Error(t, err, "source key should no longer exist after move")

	data, err := s.GetObject(ctx, "dst")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)
}

func TestMemStore_DeleteObject(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	require.NoError(t, s.PutObject(ctx, "key", []byte("x"), "text/plain"))
	require.NoError(t, s.DeleteObject(ctx, "key"))

	_, err := s.GetObject(ctx, "key")
	assert.Error(t, err)
}

func TestMemStore_PresignGetReturnsAddressableURL(t *testing.T) {
	s := NewMemStore()
	url, err := s.PresignGet(context.Background(), "protected/img-1.png")
	require.NoError(t, err)
	assert.Contains(t, url, "protected/img-1.png")
}
