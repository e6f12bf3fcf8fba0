package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"sellhub/storage/internal/config"
)

// Warm stores photos in an S3-compatible bucket fronted by a CDN. This is
// where unpublished photos live after the ephemeral window and where public
// URLs are served from.
type Warm struct {
	client *minio.Client
	cfg    config.WarmConfig
}

func NewWarm(cfg config.WarmConfig) (*Warm, error) {
	endpoint := cfg.Endpoint
	useSSL := cfg.UseSSL

	if strings.HasPrefix(endpoint, "http") {
		u, err := url.Parse(endpoint)
		if err != nil {
			return nil, fmt.Errorf("parse endpoint: %w", err)
		}
		endpoint = u.Host
		useSSL = u.Scheme == "https"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}

	return &Warm{client: client, cfg: cfg}, nil
}

func (w *Warm) EnsureBucket(ctx context.Context) error {
	exists, err := w.client.BucketExists(ctx, w.cfg.Bucket)
	if err != nil {
		return fmt.Errorf("bucket exists %s: %w", w.cfg.Bucket, err)
	}
	if !exists {
		if err := w.client.MakeBucket(ctx, w.cfg.Bucket, minio.MakeBucketOptions{Region: w.cfg.Region}); err != nil {
			return fmt.Errorf("create bucket %s: %w", w.cfg.Bucket, err)
		}
	}
	return nil
}

func (w *Warm) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := w.client.PutObject(ctx, w.cfg.Bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("%w: put %s: %v", ErrBackendUnavailable, key, err)
	}
	return nil
}

func (w *Warm) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := w.client.GetObject(ctx, w.cfg.Bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %v", ErrBackendUnavailable, key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: read %s: %v", ErrBackendUnavailable, key, err)
	}
	return data, nil
}

func (w *Warm) Delete(ctx context.Context, key string) error {
	if err := w.client.RemoveObject(ctx, w.cfg.Bucket, key, minio.RemoveObjectOptions{}); err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" {
			return nil
		}
		return fmt.Errorf("%w: delete %s: %v", ErrBackendUnavailable, key, err)
	}
	return nil
}

func (w *Warm) Exists(ctx context.Context, key string) (bool, error) {
	_, err := w.client.StatObject(ctx, w.cfg.Bucket, key, minio.StatObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" {
			return false, nil
		}
		return false, fmt.Errorf("%w: stat %s: %v", ErrBackendUnavailable, key, err)
	}
	return true, nil
}

// PublicURL builds a CDN link when a CDN base is configured and falls back
// to the direct bucket URL otherwise.
func (w *Warm) PublicURL(ctx context.Context, key string) (string, error) {
	if w.cfg.CDNBaseURL != "" {
		return fmt.Sprintf("%s/%s", strings.TrimSuffix(w.cfg.CDNBaseURL, "/"), key), nil
	}
	base := strings.TrimSuffix(w.cfg.Endpoint, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}
	return fmt.Sprintf("%s/%s/%s", base, w.cfg.Bucket, key), nil
}
