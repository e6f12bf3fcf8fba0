package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"sellhub/storage/internal/config"
)

// Ephemeral keeps recent uploads on node-local disk. Objects here are never
// exposed publicly and are expected to move to the warm tier or expire
// within the ephemeral retention window.
type Ephemeral struct {
	baseDir string
}

func NewEphemeral(cfg config.EphemeralConfig) (*Ephemeral, error) {
	if cfg.BaseDir == "" {
		return nil, errors.New("ephemeral base dir not configured")
	}
	if err := os.MkdirAll(cfg.BaseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create base dir: %w", err)
	}
	return &Ephemeral{baseDir: cfg.BaseDir}, nil
}

func (e *Ephemeral) Put(ctx context.Context, key string, data []byte, contentType string) error {
	path, err := e.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%w: mkdir: %v", ErrBackendUnavailable, err)
	}

	// Write to a sibling temp file and rename so readers never observe a
	// partial object.
	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return fmt.Errorf("%w: create temp: %v", ErrBackendUnavailable, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: write: %v", ErrBackendUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: close: %v", ErrBackendUnavailable, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: rename: %v", ErrBackendUnavailable, err)
	}
	return nil
}

func (e *Ephemeral) Get(ctx context.Context, key string) ([]byte, error) {
	path, err := e.resolve(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: read: %v", ErrBackendUnavailable, err)
	}
	return data, nil
}

func (e *Ephemeral) Delete(ctx context.Context, key string) error {
	path, err := e.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: remove: %v", ErrBackendUnavailable, err)
	}
	return nil
}

func (e *Ephemeral) Exists(ctx context.Context, key string) (bool, error) {
	path, err := e.resolve(key)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("%w: stat: %v", ErrBackendUnavailable, err)
	}
	return true, nil
}

// PublicURL always returns "" — the temp tier is never exposed.
func (e *Ephemeral) PublicURL(ctx context.Context, key string) (string, error) {
	return "", nil
}

func (e *Ephemeral) resolve(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(e.baseDir, clean), nil
}
