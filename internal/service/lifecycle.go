package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"sellhub/storage/internal/config"
	"sellhub/storage/internal/models"
	"sellhub/storage/internal/storage"
)

const lifecycleLockKey = "storage:lifecycle:run"

// strandedGraceWindows is how many extra retention windows a draft-attached
// photo may sit past its deadline before expiry takes over from promotion.
const strandedGraceWindows = 2

// errRepaired marks an orphaned record that was cleaned up instead of
// transitioned.
var errRepaired = errors.New("orphan record repaired")

// PhotoSweeper is the slice of the metadata repository the lifecycle engine
// scans. *repository.PhotoRepository satisfies it.
type PhotoSweeper interface {
	ListExpiredEphemeral(ctx context.Context, now time.Time, limit int) ([]models.Photo, error)
	ListExpiredPublished(ctx context.Context, now time.Time, limit int) ([]models.Photo, error)
	ListPromotable(ctx context.Context, uploadedBefore time.Time, limit int) ([]models.Photo, error)
	ListStrandedEphemeral(ctx context.Context, deadline time.Time, limit int) ([]models.Photo, error)
	ListArchivable(ctx context.Context, accessedBefore time.Time, limit int) ([]models.Photo, error)
	ListExpiredCold(ctx context.Context, uploadedBefore time.Time, limit int) ([]models.Photo, error)
}

// RunStats aggregates one reconciliation pass.
type RunStats struct {
	ExpiredTemp      int       `json:"expired_temp"`
	ExpiredPublished int       `json:"expired_published"`
	Promoted         int       `json:"promoted"`
	Archived         int       `json:"archived"`
	ExpiredCold      int       `json:"expired_cold"`
	Repaired         int       `json:"repaired"`
	Failures         int       `json:"failures"`
	StartedAt        time.Time `json:"started_at"`
	FinishedAt       time.Time `json:"finished_at"`
}

// Lifecycle runs the scheduled reconciliation pass: expiry, promotion, and
// archival in a fixed order. At most one pass runs at a time; overlapping
// triggers get ErrPassInProgress. When a redis client is configured the lock
// also spans replicas.
type Lifecycle struct {
	orch    *Orchestrator
	sweeper PhotoSweeper
	locker  *redis.Client
	cfg     *config.AppConfig
	log     zerolog.Logger
	now     func() time.Time
	mu      sync.Mutex
}

func NewLifecycle(orch *Orchestrator, sweeper PhotoSweeper, locker *redis.Client, cfg *config.AppConfig, log zerolog.Logger) *Lifecycle {
	return &Lifecycle{
		orch:    orch,
		sweeper: sweeper,
		locker:  locker,
		cfg:     cfg,
		log:     log,
		now:     time.Now,
	}
}

func (l *Lifecycle) WithClock(now func() time.Time) *Lifecycle {
	l.now = now
	return l
}

// RunPass executes the full rule sweep. Identical semantics whether invoked
// by the cron trigger or on demand.
func (l *Lifecycle) RunPass(ctx context.Context) (RunStats, error) {
	if !l.mu.TryLock() {
		return RunStats{}, ErrPassInProgress
	}
	defer l.mu.Unlock()

	if l.locker != nil {
		acquired, err := l.locker.SetNX(ctx, lifecycleLockKey, l.now().UTC().Format(time.RFC3339), l.cfg.Lifecycle.LockTTL).Result()
		if err != nil {
			return RunStats{}, fmt.Errorf("acquire run lock: %w", err)
		}
		if !acquired {
			return RunStats{}, ErrPassInProgress
		}
		defer l.locker.Del(context.WithoutCancel(ctx), lifecycleLockKey)
	}

	now := l.now().UTC()
	stats := RunStats{StartedAt: now}

	// Order matters: expiry first so published items are never promoted on
	// the same pass that deletes them.
	l.sweep(ctx, &stats.ExpiredTemp, &stats.Failures, func(limit int) ([]models.Photo, error) {
		return l.sweeper.ListExpiredEphemeral(ctx, now, limit)
	}, l.expire)

	l.sweep(ctx, &stats.ExpiredPublished, &stats.Failures, func(limit int) ([]models.Photo, error) {
		return l.sweeper.ListExpiredPublished(ctx, now, limit)
	}, l.expire)

	promoteCutoff := now.Add(-l.cfg.Retention.Ephemeral)
	l.sweep(ctx, &stats.Promoted, &stats.Failures, func(limit int) ([]models.Photo, error) {
		return l.sweeper.ListPromotable(ctx, promoteCutoff, limit)
	}, func(ctx context.Context, photo models.Photo) error {
		return l.reconciling(ctx, photo, &stats.Repaired, l.orch.PromoteToWarm)
	})

	// Promotion normally clears draft-attached photos out of the temp tier.
	// When it keeps failing, the record would sit past its deadline forever,
	// so expiry takes over once the deadline is far enough behind.
	strandedDeadline := now.Add(-strandedGraceWindows * l.cfg.Retention.Ephemeral)
	l.sweep(ctx, &stats.ExpiredTemp, &stats.Failures, func(limit int) ([]models.Photo, error) {
		return l.sweeper.ListStrandedEphemeral(ctx, strandedDeadline, limit)
	}, l.expire)

	archiveCutoff := now.Add(-l.cfg.Retention.Warm)
	l.sweep(ctx, &stats.Archived, &stats.Failures, func(limit int) ([]models.Photo, error) {
		return l.sweeper.ListArchivable(ctx, archiveCutoff, limit)
	}, func(ctx context.Context, photo models.Photo) error {
		return l.reconciling(ctx, photo, &stats.Repaired, l.orch.ArchiveToCold)
	})

	coldCutoff := now.Add(-l.cfg.Retention.Cold)
	l.sweep(ctx, &stats.ExpiredCold, &stats.Failures, func(limit int) ([]models.Photo, error) {
		return l.sweeper.ListExpiredCold(ctx, coldCutoff, limit)
	}, l.expire)

	stats.FinishedAt = l.now().UTC()

	l.log.Info().
		Int("expired_temp", stats.ExpiredTemp).
		Int("expired_published", stats.ExpiredPublished).
		Int("promoted", stats.Promoted).
		Int("archived", stats.Archived).
		Int("expired_cold", stats.ExpiredCold).
		Int("repaired", stats.Repaired).
		Int("failures", stats.Failures).
		Dur("took", stats.FinishedAt.Sub(stats.StartedAt)).
		Msg("lifecycle pass finished")

	return stats, nil
}

// sweep drains one rule's matching records in bounded batches. A failing
// item never aborts the batch; a batch with no successful item stops the
// loop so persistent failures cannot spin it forever.
func (l *Lifecycle) sweep(ctx context.Context, succeeded, failures *int, list func(limit int) ([]models.Photo, error), apply func(context.Context, models.Photo) error) {
	batchSize := l.cfg.Lifecycle.BatchSize
	for {
		photos, err := list(batchSize)
		if err != nil {
			l.log.Error().Err(err).Msg("sweep query failed")
			*failures++
			return
		}
		if len(photos) == 0 {
			return
		}

		progressed := false
		for _, photo := range photos {
			if err := apply(ctx, photo); err != nil {
				if errors.Is(err, errRepaired) {
					progressed = true
					continue
				}
				if errors.Is(err, ErrInvalidTransition) {
					// Raced by a concurrent mutation; the record is already
					// where another writer put it.
					l.log.Debug().Str("photo_id", photo.ID).Err(err).Msg("skipping concurrently modified photo")
					progressed = true
					continue
				}
				*failures++
				l.log.Warn().Err(err).
					Str("photo_id", photo.ID).
					Str("tier", string(photo.Tier)).
					Msg("lifecycle item failed")
				continue
			}
			progressed = true
			*succeeded++
		}

		if !progressed || len(photos) < batchSize {
			return
		}
	}
}

func (l *Lifecycle) expire(ctx context.Context, photo models.Photo) error {
	return l.orch.Delete(ctx, photo.ID)
}

// reconciling wraps a transition and handles the bytes-missing case: when
// the owning backend has no object for a record, the bytes are gone and must
// not be re-created. Past-deadline records are cleaned up; the rest are
// surfaced for inspection.
func (l *Lifecycle) reconciling(ctx context.Context, photo models.Photo, repaired *int, op func(context.Context, string) error) error {
	err := op(ctx, photo.ID)
	if err == nil || !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	l.log.Error().
		Str("photo_id", photo.ID).
		Str("tier", string(photo.Tier)).
		Str("storage_path", photo.StoragePath).
		Msg("metadata names a tier with no bytes")

	now := l.now().UTC()
	if photo.ScheduledDeletion != nil && !now.Before(*photo.ScheduledDeletion) {
		if delErr := l.orch.Delete(ctx, photo.ID); delErr != nil {
			return fmt.Errorf("reconcile orphan record: %w", delErr)
		}
		*repaired++
		return errRepaired
	}
	return fmt.Errorf("orphan record %s needs inspection: %w", photo.ID, err)
}
