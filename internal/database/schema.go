package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS photos (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		draft_id TEXT,
		tier TEXT NOT NULL,
		file_size_bytes BIGINT NOT NULL,
		compressed_size_bytes BIGINT NOT NULL,
		content_type TEXT NOT NULL,
		checksum BYTEA,
		storage_path TEXT NOT NULL,
		cdn_url TEXT,
		upload_date TIMESTAMPTZ NOT NULL,
		last_access_date TIMESTAMPTZ NOT NULL,
		scheduled_deletion TIMESTAMPTZ,
		published_to_vinted BOOLEAN NOT NULL DEFAULT FALSE,
		published_date TIMESTAMPTZ,
		access_count BIGINT NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_photos_user ON photos (user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_photos_tier ON photos (tier)`,
	`CREATE INDEX IF NOT EXISTS idx_photos_scheduled_deletion ON photos (scheduled_deletion) WHERE scheduled_deletion IS NOT NULL`,
	`CREATE TABLE IF NOT EXISTS photo_events (
		id BIGSERIAL PRIMARY KEY,
		photo_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		occurred_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_photo_events_occurred_at ON photo_events (occurred_at)`,
}

// Migrate applies the schema at startup. Statements are idempotent, so
// repeated boots and multiple replicas are safe.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
