package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"sellhub/storage/internal/models"
)

var ErrPhotoNotFound = errors.New("photo not found")

const photoColumns = `
	id, user_id, draft_id, tier, file_size_bytes, compressed_size_bytes,
	content_type, checksum, storage_path, cdn_url, upload_date,
	last_access_date, scheduled_deletion, published_to_vinted,
	published_date, access_count, updated_at
`

type PhotoRepository struct {
	pool *pgxpool.Pool
}

func NewPhotoRepository(pool *pgxpool.Pool) *PhotoRepository {
	return &PhotoRepository{pool: pool}
}

func (r *PhotoRepository) Create(ctx context.Context, photo models.Photo) error {
	const query = `
		INSERT INTO photos (
			id, user_id, draft_id, tier, file_size_bytes, compressed_size_bytes,
			content_type, checksum, storage_path, cdn_url, upload_date,
			last_access_date, scheduled_deletion, published_to_vinted,
			published_date, access_count, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11,
			$12, $13, $14,
			$15, $16, NOW()
		)
	`

	_, err := r.pool.Exec(ctx, query,
		photo.ID,
		photo.UserID,
		photo.DraftID,
		photo.Tier,
		photo.FileSizeBytes,
		photo.CompressedBytes,
		photo.ContentType,
		photo.Checksum,
		photo.StoragePath,
		photo.CDNURL,
		photo.UploadDate,
		photo.LastAccessDate,
		photo.ScheduledDeletion,
		photo.Published,
		photo.PublishedDate,
		photo.AccessCount,
	)
	return err
}

func (r *PhotoRepository) GetByID(ctx context.Context, id string) (models.Photo, error) {
	const query = `SELECT ` + photoColumns + ` FROM photos WHERE id = $1`

	photo, err := scanPhoto(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Photo{}, ErrPhotoNotFound
		}
		return models.Photo{}, err
	}
	return photo, nil
}

func (r *PhotoRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Photo, error) {
	const query = `
		SELECT ` + photoColumns + `
		FROM photos
		WHERE user_id = $1
		ORDER BY upload_date DESC
		LIMIT $2 OFFSET $3
	`
	return r.queryPhotos(ctx, query, userID, limit, offset)
}

// Delete removes the metadata row. The bytes must already be gone from the
// owning tier; callers enforce the bytes-then-record ordering.
func (r *PhotoRepository) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM photos WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// TransitionTier moves the record to a new tier only if it is still in the
// expected one. A false return means another writer got there first and the
// caller must re-read before acting again.
func (r *PhotoRepository) TransitionTier(ctx context.Context, id string, from, to models.Tier, storagePath string, cdnURL *string, scheduledDeletion *time.Time) (bool, error) {
	const query = `
		UPDATE photos
		SET tier = $3,
		    storage_path = $4,
		    cdn_url = $5,
		    scheduled_deletion = $6,
		    updated_at = NOW()
		WHERE id = $1 AND tier = $2
	`
	tag, err := r.pool.Exec(ctx, query, id, from, to, storagePath, cdnURL, scheduledDeletion)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// MarkPublished flips the one-time publish flag and rewrites the deletion
// deadline. Rows already published keep their original published_date.
func (r *PhotoRepository) MarkPublished(ctx context.Context, id string, publishedAt time.Time, scheduledDeletion time.Time) (bool, error) {
	const query = `
		UPDATE photos
		SET published_to_vinted = TRUE,
		    published_date = $2,
		    scheduled_deletion = $3,
		    updated_at = NOW()
		WHERE id = $1 AND published_to_vinted = FALSE
	`
	tag, err := r.pool.Exec(ctx, query, id, publishedAt, scheduledDeletion)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// TouchAccess records a genuine content access.
func (r *PhotoRepository) TouchAccess(ctx context.Context, id string, accessedAt time.Time) error {
	const query = `
		UPDATE photos
		SET last_access_date = $2,
		    access_count = access_count + 1,
		    updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, id, accessedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPhotoNotFound
	}
	return nil
}

// ListExpiredEphemeral returns temp-tier photos past their deadline that
// never got attached to a draft. Draft-attached photos are the promotion
// sweep's business.
func (r *PhotoRepository) ListExpiredEphemeral(ctx context.Context, now time.Time, limit int) ([]models.Photo, error) {
	const query = `
		SELECT ` + photoColumns + `
		FROM photos
		WHERE tier = 'ephemeral'
		  AND published_to_vinted = FALSE
		  AND draft_id IS NULL
		  AND scheduled_deletion IS NOT NULL
		  AND scheduled_deletion <= $1
		ORDER BY scheduled_deletion
		LIMIT $2
	`
	return r.queryPhotos(ctx, query, now, limit)
}

func (r *PhotoRepository) ListExpiredPublished(ctx context.Context, now time.Time, limit int) ([]models.Photo, error) {
	const query = `
		SELECT ` + photoColumns + `
		FROM photos
		WHERE published_to_vinted = TRUE
		  AND scheduled_deletion IS NOT NULL
		  AND scheduled_deletion <= $1
		ORDER BY scheduled_deletion
		LIMIT $2
	`
	return r.queryPhotos(ctx, query, now, limit)
}

func (r *PhotoRepository) ListPromotable(ctx context.Context, uploadedBefore time.Time, limit int) ([]models.Photo, error) {
	const query = `
		SELECT ` + photoColumns + `
		FROM photos
		WHERE tier = 'ephemeral'
		  AND published_to_vinted = FALSE
		  AND draft_id IS NOT NULL
		  AND upload_date <= $1
		ORDER BY upload_date
		LIMIT $2
	`
	return r.queryPhotos(ctx, query, uploadedBefore, limit)
}

// ListStrandedEphemeral returns draft-attached temp-tier photos whose
// deletion deadline is already behind the given cutoff. These are photos the
// promotion sweep has been failing on long enough that expiry takes over.
func (r *PhotoRepository) ListStrandedEphemeral(ctx context.Context, deadline time.Time, limit int) ([]models.Photo, error) {
	const query = `
		SELECT ` + photoColumns + `
		FROM photos
		WHERE tier = 'ephemeral'
		  AND published_to_vinted = FALSE
		  AND draft_id IS NOT NULL
		  AND scheduled_deletion IS NOT NULL
		  AND scheduled_deletion <= $1
		ORDER BY scheduled_deletion
		LIMIT $2
	`
	return r.queryPhotos(ctx, query, deadline, limit)
}

func (r *PhotoRepository) ListArchivable(ctx context.Context, accessedBefore time.Time, limit int) ([]models.Photo, error) {
	const query = `
		SELECT ` + photoColumns + `
		FROM photos
		WHERE tier = 'warm'
		  AND published_to_vinted = FALSE
		  AND last_access_date <= $1
		ORDER BY last_access_date
		LIMIT $2
	`
	return r.queryPhotos(ctx, query, accessedBefore, limit)
}

func (r *PhotoRepository) ListExpiredCold(ctx context.Context, uploadedBefore time.Time, limit int) ([]models.Photo, error) {
	const query = `
		SELECT ` + photoColumns + `
		FROM photos
		WHERE tier = 'cold'
		  AND upload_date <= $1
		ORDER BY upload_date
		LIMIT $2
	`
	return r.queryPhotos(ctx, query, uploadedBefore, limit)
}

// TierAggregate is one row of the per-tier rollup feeding the cost reports.
type TierAggregate struct {
	Tier       models.Tier
	Count      int64
	TotalBytes int64
}

func (r *PhotoRepository) AggregateByTier(ctx context.Context) ([]TierAggregate, error) {
	const query = `
		SELECT tier, COUNT(*), COALESCE(SUM(compressed_size_bytes), 0)
		FROM photos
		GROUP BY tier
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var aggregates []TierAggregate
	for rows.Next() {
		var agg TierAggregate
		if err := rows.Scan(&agg.Tier, &agg.Count, &agg.TotalBytes); err != nil {
			return nil, err
		}
		aggregates = append(aggregates, agg)
	}
	return aggregates, rows.Err()
}

func (r *PhotoRepository) queryPhotos(ctx context.Context, query string, args ...any) ([]models.Photo, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var photos []models.Photo
	for rows.Next() {
		photo, err := scanPhoto(rows)
		if err != nil {
			return nil, err
		}
		photos = append(photos, photo)
	}
	return photos, rows.Err()
}

func scanPhoto(row pgx.Row) (models.Photo, error) {
	var photo models.Photo
	err := row.Scan(
		&photo.ID,
		&photo.UserID,
		&photo.DraftID,
		&photo.Tier,
		&photo.FileSizeBytes,
		&photo.CompressedBytes,
		&photo.ContentType,
		&photo.Checksum,
		&photo.StoragePath,
		&photo.CDNURL,
		&photo.UploadDate,
		&photo.LastAccessDate,
		&photo.ScheduledDeletion,
		&photo.Published,
		&photo.PublishedDate,
		&photo.AccessCount,
		&photo.UpdatedAt,
	)
	return photo, err
}
