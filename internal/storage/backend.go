package storage

import (
	"context"
	"errors"
)

var (
	// ErrNotFound means the backend holds no object under the requested key.
	ErrNotFound = errors.New("object not found")
	// ErrBackendUnavailable wraps transport and auth failures; callers may
	// retry on a later pass.
	ErrBackendUnavailable = errors.New("backend unavailable")
)

// TierBackend is the capability every storage tier exposes. Implementations
// are pure adapters: they never touch photo metadata.
type TierBackend interface {
	// Put overwrites the object under key. Either the whole blob is readable
	// afterwards or the previous version is unchanged.
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	// Delete is idempotent; deleting an absent key succeeds.
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	// PublicURL returns a stable URL for the object, or "" when the tier has
	// no public exposure.
	PublicURL(ctx context.Context, key string) (string, error)
}
