package service

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/rs/zerolog"

	"sellhub/storage/internal/config"
	"sellhub/storage/internal/ids"
	"sellhub/storage/internal/media/compressor"
	"sellhub/storage/internal/models"
	"sellhub/storage/internal/repository"
	"sellhub/storage/internal/storage"
)

const putAttempts = 3

// PhotoStore is the slice of the metadata repository the orchestrator
// mutates. *repository.PhotoRepository satisfies it.
type PhotoStore interface {
	Create(ctx context.Context, photo models.Photo) error
	GetByID(ctx context.Context, id string) (models.Photo, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Photo, error)
	Delete(ctx context.Context, id string) (bool, error)
	TransitionTier(ctx context.Context, id string, from, to models.Tier, storagePath string, cdnURL *string, scheduledDeletion *time.Time) (bool, error)
	MarkPublished(ctx context.Context, id string, publishedAt, scheduledDeletion time.Time) (bool, error)
	TouchAccess(ctx context.Context, id string, accessedAt time.Time) error
}

// EventLog records lifecycle events for windowed metrics. Logging failures
// never fail the operation that produced the event.
type EventLog interface {
	Record(ctx context.Context, photoID string, eventType models.EventType, occurredAt time.Time) error
}

// Backends groups the three tier adapters.
type Backends struct {
	Ephemeral storage.TierBackend
	Warm      storage.TierBackend
	Cold      storage.TierBackend
}

func (b Backends) For(tier models.Tier) storage.TierBackend {
	switch tier {
	case models.TierEphemeral:
		return b.Ephemeral
	case models.TierWarm:
		return b.Warm
	case models.TierCold:
		return b.Cold
	}
	return nil
}

// Orchestrator owns the upload path, tier transitions, and URL resolution.
// Every transition writes the destination copy before the metadata claims
// it, and deletes the source copy only after the metadata update.
type Orchestrator struct {
	photos   PhotoStore
	events   EventLog
	backends Backends
	comp     *compressor.Compressor
	cfg      *config.AppConfig
	log      zerolog.Logger
	now      func() time.Time
}

func NewOrchestrator(photos PhotoStore, events EventLog, backends Backends, comp *compressor.Compressor, cfg *config.AppConfig, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		photos:   photos,
		events:   events,
		backends: backends,
		comp:     comp,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

// WithClock overrides the time source. Tests use it to run the retention
// windows on a compressed timeline.
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

type UploadInput struct {
	UserID      string
	DraftID     *string
	Filename    string
	ContentType string
	Data        []byte
}

func (o *Orchestrator) Upload(ctx context.Context, input UploadInput) (models.Photo, error) {
	if len(input.Data) == 0 {
		return models.Photo{}, fmt.Errorf("%w: empty payload", ErrInvalidFile)
	}
	if !compressor.IsSupportedImage(input.Data) {
		return models.Photo{}, fmt.Errorf("%w: unsupported format", ErrInvalidFile)
	}

	contentType := compressor.Detect(input.Data, input.ContentType)

	data, outType, err := o.comp.Compress(input.Data, contentType)
	if err != nil {
		if !errors.Is(err, compressor.ErrCompressionSkipped) {
			return models.Photo{}, fmt.Errorf("compress: %w", err)
		}
		o.log.Debug().Str("filename", input.Filename).Err(err).Msg("compression skipped")
	}

	now := o.now().UTC()
	photoID := ids.New()
	objectKey := o.buildObjectKey(photoID, outType, now)

	if err := o.putWithRetry(ctx, o.backends.Ephemeral, objectKey, data, outType); err != nil {
		return models.Photo{}, fmt.Errorf("%w: %v", ErrStorageWriteFailed, err)
	}

	sum := sha256.Sum256(data)
	scheduledDeletion := now.Add(o.cfg.Retention.Ephemeral)

	photo := models.Photo{
		ID:                photoID,
		UserID:            input.UserID,
		DraftID:           input.DraftID,
		Tier:              models.TierEphemeral,
		FileSizeBytes:     int64(len(input.Data)),
		CompressedBytes:   int64(len(data)),
		ContentType:       outType,
		Checksum:          sum[:],
		StoragePath:       objectKey,
		UploadDate:        now,
		LastAccessDate:    now,
		ScheduledDeletion: &scheduledDeletion,
	}

	if err := o.photos.Create(ctx, photo); err != nil {
		// The blob exists but no record claims it; remove it so the upload
		// leaves nothing behind.
		if delErr := o.backends.Ephemeral.Delete(ctx, objectKey); delErr != nil {
			o.log.Warn().Err(delErr).Str("key", objectKey).Msg("orphan cleanup failed")
		}
		return models.Photo{}, fmt.Errorf("save metadata: %w", err)
	}

	o.recordEvent(ctx, photoID, models.EventUploaded)

	o.log.Info().
		Str("photo_id", photoID).
		Str("user_id", input.UserID).
		Int64("size", photo.FileSizeBytes).
		Int64("compressed", photo.CompressedBytes).
		Msg("photo uploaded")

	return photo, nil
}

// PromoteToWarm moves an ephemeral photo to the warm tier. The destination
// write is confirmed before metadata changes, and the source copy is removed
// last.
func (o *Orchestrator) PromoteToWarm(ctx context.Context, photoID string) error {
	return o.transition(ctx, photoID, models.TierEphemeral)
}

// ArchiveToCold moves a warm photo to the archival tier.
func (o *Orchestrator) ArchiveToCold(ctx context.Context, photoID string) error {
	return o.transition(ctx, photoID, models.TierWarm)
}

func (o *Orchestrator) transition(ctx context.Context, photoID string, from models.Tier) error {
	to, ok := from.Next()
	if !ok {
		return fmt.Errorf("%w: no tier after %s", ErrInvalidTransition, from)
	}

	photo, err := o.photos.GetByID(ctx, photoID)
	if err != nil {
		return err
	}
	if photo.Tier != from {
		return fmt.Errorf("%w: %s is in tier %s, expected %s", ErrInvalidTransition, photoID, photo.Tier, from)
	}

	source := o.backends.For(from)
	dest := o.backends.For(to)

	data, err := source.Get(ctx, photo.StoragePath)
	if err != nil {
		return fmt.Errorf("read source tier: %w", err)
	}

	if err := o.putWithRetry(ctx, dest, photo.StoragePath, data, photo.ContentType); err != nil {
		return fmt.Errorf("write destination tier: %w", err)
	}

	var cdnURL *string
	if to == models.TierWarm {
		url, err := dest.PublicURL(ctx, photo.StoragePath)
		if err != nil {
			o.log.Warn().Err(err).Str("photo_id", photoID).Msg("cdn url unavailable")
		} else if url != "" {
			cdnURL = &url
		}
	}

	var horizon time.Time
	switch to {
	case models.TierWarm:
		horizon = o.now().UTC().Add(o.cfg.Retention.Warm)
	case models.TierCold:
		horizon = photo.UploadDate.Add(o.cfg.Retention.Cold)
	}

	updated, err := o.photos.TransitionTier(ctx, photoID, from, to, photo.StoragePath, cdnURL, &horizon)
	if err != nil {
		return fmt.Errorf("update metadata: %w", err)
	}
	if !updated {
		// Another writer transitioned or deleted the record since we read
		// it. The destination copy is an idempotent overwrite, so leave it.
		return fmt.Errorf("%w: %s changed concurrently", ErrInvalidTransition, photoID)
	}

	// Source cleanup after the record points at the destination. A failure
	// here strands an orphan blob, never a record without bytes.
	if err := source.Delete(ctx, photo.StoragePath); err != nil {
		o.log.Warn().Err(err).
			Str("photo_id", photoID).
			Str("tier", string(from)).
			Msg("source copy cleanup failed")
	}

	event := models.EventPromoted
	if to == models.TierCold {
		event = models.EventArchived
	}
	o.recordEvent(ctx, photoID, event)

	o.log.Info().
		Str("photo_id", photoID).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("photo moved between tiers")

	return nil
}

// MarkPublished flags one photo as published and rewrites its deletion
// deadline to the published retention window. Idempotent for photos already
// published.
func (o *Orchestrator) MarkPublished(ctx context.Context, photoID string) error {
	publishedAt := o.now().UTC()
	deadline := publishedAt.Add(o.cfg.Retention.Published)

	ok, err := o.photos.MarkPublished(ctx, photoID, publishedAt, deadline)
	if err != nil {
		return err
	}
	if !ok {
		// Either unknown or already published; distinguish for the caller.
		if _, err := o.photos.GetByID(ctx, photoID); err != nil {
			return err
		}
	}
	return nil
}

type PublishResult struct {
	Updated int
	Failed  []string
}

// MarkDraftPublished applies MarkPublished over a draft's photo set.
// Partial success is allowed; failures are reported per photo.
func (o *Orchestrator) MarkDraftPublished(ctx context.Context, draftID string, photoIDs []string) PublishResult {
	var result PublishResult
	for _, photoID := range photoIDs {
		if err := o.MarkPublished(ctx, photoID); err != nil {
			o.log.Warn().Err(err).
				Str("photo_id", photoID).
				Str("draft_id", draftID).
				Msg("mark published failed")
			result.Failed = append(result.Failed, photoID)
			continue
		}
		result.Updated++
	}
	return result
}

// Delete removes bytes from the current tier, then the metadata row. Both
// steps are idempotent, so deleting an unknown or half-deleted photo
// succeeds.
func (o *Orchestrator) Delete(ctx context.Context, photoID string) error {
	photo, err := o.photos.GetByID(ctx, photoID)
	if err != nil {
		if errors.Is(err, repository.ErrPhotoNotFound) {
			return nil
		}
		return err
	}

	if err := o.backends.For(photo.Tier).Delete(ctx, photo.StoragePath); err != nil {
		return fmt.Errorf("delete bytes: %w", err)
	}

	if _, err := o.photos.Delete(ctx, photoID); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}

	o.recordEvent(ctx, photoID, models.EventDeleted)
	o.log.Info().Str("photo_id", photoID).Str("tier", string(photo.Tier)).Msg("photo deleted")
	return nil
}

// PhotoURL resolves a public URL for the photo and records the access. The
// ephemeral tier has no public exposure, so an empty URL with no error means
// "no URL available".
func (o *Orchestrator) PhotoURL(ctx context.Context, photoID string) (string, error) {
	photo, err := o.photos.GetByID(ctx, photoID)
	if err != nil {
		return "", err
	}

	var url string
	switch photo.Tier {
	case models.TierEphemeral:
		// no public URL for the temp tier
	case models.TierWarm:
		if photo.CDNURL != nil {
			url = *photo.CDNURL
		} else {
			url, err = o.backends.Warm.PublicURL(ctx, photo.StoragePath)
		}
	case models.TierCold:
		url, err = o.backends.Cold.PublicURL(ctx, photo.StoragePath)
	}
	if err != nil {
		return "", fmt.Errorf("resolve url: %w", err)
	}

	if err := o.photos.TouchAccess(ctx, photoID, o.now().UTC()); err != nil {
		o.log.Warn().Err(err).Str("photo_id", photoID).Msg("access touch failed")
	}
	return url, nil
}

// Metadata is a pure read; it never bumps the access clock.
func (o *Orchestrator) Metadata(ctx context.Context, photoID string) (models.Photo, error) {
	return o.photos.GetByID(ctx, photoID)
}

func (o *Orchestrator) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Photo, error) {
	return o.photos.ListByUser(ctx, userID, limit, offset)
}

func (o *Orchestrator) buildObjectKey(photoID, contentType string, now time.Time) string {
	ext := "jpg"
	switch contentType {
	case "image/png":
		ext = "png"
	case "image/gif":
		ext = "gif"
	case "image/webp":
		ext = "webp"
	}
	return path.Join(now.Format("2006/01/02"), fmt.Sprintf("%s.%s", photoID, ext))
}

func (o *Orchestrator) putWithRetry(ctx context.Context, backend storage.TierBackend, key string, data []byte, contentType string) error {
	var err error
	for attempt := 0; attempt < putAttempts; attempt++ {
		if err = backend.Put(ctx, key, data, contentType); err == nil {
			return nil
		}
		if !errors.Is(err, storage.ErrBackendUnavailable) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 200 * time.Millisecond):
		}
	}
	return err
}

func (o *Orchestrator) recordEvent(ctx context.Context, photoID string, eventType models.EventType) {
	if o.events == nil {
		return
	}
	if err := o.events.Record(ctx, photoID, eventType, o.now().UTC()); err != nil {
		o.log.Warn().Err(err).Str("photo_id", photoID).Str("event", string(eventType)).Msg("event log write failed")
	}
}
