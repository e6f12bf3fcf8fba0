package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sellhub/storage/internal/config"
)

func newTestEphemeral(t *testing.T) *Ephemeral {
	t.Helper()
	backend, err := NewEphemeral(config.EphemeralConfig{BaseDir: t.TempDir()})
	require.NoError(t, err)
	return backend
}

func TestEphemeralPutGet(t *testing.T) {
	backend := newTestEphemeral(t)
	ctx := context.Background()

	data := []byte("photo bytes")
	require.NoError(t, backend.Put(ctx, "2025/06/01/abc.jpg", data, "image/jpeg"))

	got, err := backend.Get(ctx, "2025/06/01/abc.jpg")
	require.NoError(t, err)
	assert.Equal(t, data, got)

	exists, err := backend.Exists(ctx, "2025/06/01/abc.jpg")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestEphemeralPutOverwrites(t *testing.T) {
	backend := newTestEphemeral(t)
	ctx := context.Background()

	require.NoError(t, backend.Put(ctx, "key.jpg", []byte("v1"), "image/jpeg"))
	require.NoError(t, backend.Put(ctx, "key.jpg", []byte("v2"), "image/jpeg"))

	got, err := backend.Get(ctx, "key.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got)
}

func TestEphemeralGetMissing(t *testing.T) {
	backend := newTestEphemeral(t)

	_, err := backend.Get(context.Background(), "nope.jpg")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEphemeralDeleteIdempotent(t *testing.T) {
	backend := newTestEphemeral(t)
	ctx := context.Background()

	require.NoError(t, backend.Put(ctx, "key.jpg", []byte("data"), "image/jpeg"))
	require.NoError(t, backend.Delete(ctx, "key.jpg"))

	exists, err := backend.Exists(ctx, "key.jpg")
	require.NoError(t, err)
	assert.False(t, exists)

	// Deleting an absent key is a no-op, not an error.
	assert.NoError(t, backend.Delete(ctx, "key.jpg"))
}

func TestEphemeralNoPublicURL(t *testing.T) {
	backend := newTestEphemeral(t)

	url, err := backend.PublicURL(context.Background(), "key.jpg")
	require.NoError(t, err)
	assert.Empty(t, url)
}

func TestEphemeralRejectsTraversal(t *testing.T) {
	backend := newTestEphemeral(t)
	ctx := context.Background()

	assert.Error(t, backend.Put(ctx, "../escape.jpg", []byte("x"), "image/jpeg"))
	_, err := backend.Get(ctx, "/etc/passwd")
	assert.Error(t, err)
}
