package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"sellhub/storage/internal/config"
	"sellhub/storage/internal/models"
	"sellhub/storage/internal/repository"
	"sellhub/storage/internal/storage"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{t: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// memStore is an in-memory PhotoStore/PhotoSweeper/TierAggregator.
type memStore struct {
	mu     sync.Mutex
	photos map[string]models.Photo
}

func newMemStore() *memStore {
	return &memStore{photos: make(map[string]models.Photo)}
}

func (s *memStore) Create(ctx context.Context, photo models.Photo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.photos[photo.ID] = photo
	return nil
}

func (s *memStore) GetByID(ctx context.Context, id string) (models.Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	photo, ok := s.photos[id]
	if !ok {
		return models.Photo{}, repository.ErrPhotoNotFound
	}
	return photo, nil
}

func (s *memStore) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var photos []models.Photo
	for _, photo := range s.photos {
		if photo.UserID == userID {
			photos = append(photos, photo)
		}
	}
	sort.Slice(photos, func(i, j int) bool { return photos[i].UploadDate.After(photos[j].UploadDate) })
	if offset >= len(photos) {
		return nil, nil
	}
	photos = photos[offset:]
	if len(photos) > limit {
		photos = photos[:limit]
	}
	return photos, nil
}

func (s *memStore) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.photos[id]
	delete(s.photos, id)
	return ok, nil
}

func (s *memStore) TransitionTier(ctx context.Context, id string, from, to models.Tier, storagePath string, cdnURL *string, scheduledDeletion *time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	photo, ok := s.photos[id]
	if !ok || photo.Tier != from {
		return false, nil
	}
	photo.Tier = to
	photo.StoragePath = storagePath
	photo.CDNURL = cdnURL
	photo.ScheduledDeletion = scheduledDeletion
	s.photos[id] = photo
	return true, nil
}

func (s *memStore) MarkPublished(ctx context.Context, id string, publishedAt, scheduledDeletion time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	photo, ok := s.photos[id]
	if !ok || photo.Published {
		return false, nil
	}
	photo.Published = true
	photo.PublishedDate = &publishedAt
	photo.ScheduledDeletion = &scheduledDeletion
	s.photos[id] = photo
	return true, nil
}

func (s *memStore) TouchAccess(ctx context.Context, id string, accessedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	photo, ok := s.photos[id]
	if !ok {
		return repository.ErrPhotoNotFound
	}
	photo.LastAccessDate = accessedAt
	photo.AccessCount++
	s.photos[id] = photo
	return nil
}

func (s *memStore) list(limit int, match func(models.Photo) bool) []models.Photo {
	s.mu.Lock()
	defer s.mu.Unlock()
	var photos []models.Photo
	for _, photo := range s.photos {
		if match(photo) {
			photos = append(photos, photo)
		}
	}
	sort.Slice(photos, func(i, j int) bool { return photos[i].ID < photos[j].ID })
	if len(photos) > limit {
		photos = photos[:limit]
	}
	return photos
}

func (s *memStore) ListExpiredEphemeral(ctx context.Context, now time.Time, limit int) ([]models.Photo, error) {
	return s.list(limit, func(p models.Photo) bool {
		return p.Tier == models.TierEphemeral && !p.Published && p.DraftID == nil &&
			p.ScheduledDeletion != nil && !now.Before(*p.ScheduledDeletion)
	}), nil
}

func (s *memStore) ListExpiredPublished(ctx context.Context, now time.Time, limit int) ([]models.Photo, error) {
	return s.list(limit, func(p models.Photo) bool {
		return p.Published && p.ScheduledDeletion != nil && !now.Before(*p.ScheduledDeletion)
	}), nil
}

func (s *memStore) ListPromotable(ctx context.Context, uploadedBefore time.Time, limit int) ([]models.Photo, error) {
	return s.list(limit, func(p models.Photo) bool {
		return p.Tier == models.TierEphemeral && !p.Published && p.DraftID != nil && !p.UploadDate.After(uploadedBefore)
	}), nil
}

func (s *memStore) ListStrandedEphemeral(ctx context.Context, deadline time.Time, limit int) ([]models.Photo, error) {
	return s.list(limit, func(p models.Photo) bool {
		return p.Tier == models.TierEphemeral && !p.Published && p.DraftID != nil &&
			p.ScheduledDeletion != nil && !deadline.Before(*p.ScheduledDeletion)
	}), nil
}

func (s *memStore) ListArchivable(ctx context.Context, accessedBefore time.Time, limit int) ([]models.Photo, error) {
	return s.list(limit, func(p models.Photo) bool {
		return p.Tier == models.TierWarm && !p.Published && !p.LastAccessDate.After(accessedBefore)
	}), nil
}

func (s *memStore) ListExpiredCold(ctx context.Context, uploadedBefore time.Time, limit int) ([]models.Photo, error) {
	return s.list(limit, func(p models.Photo) bool {
		return p.Tier == models.TierCold && !p.UploadDate.After(uploadedBefore)
	}), nil
}

func (s *memStore) AggregateByTier(ctx context.Context) ([]repository.TierAggregate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byTier := make(map[models.Tier]*repository.TierAggregate)
	for _, photo := range s.photos {
		agg, ok := byTier[photo.Tier]
		if !ok {
			agg = &repository.TierAggregate{Tier: photo.Tier}
			byTier[photo.Tier] = agg
		}
		agg.Count++
		agg.TotalBytes += photo.CompressedBytes
	}
	var aggregates []repository.TierAggregate
	for _, agg := range byTier {
		aggregates = append(aggregates, *agg)
	}
	return aggregates, nil
}

// memEvents implements EventLog and EventCounter.
type memEvents struct {
	mu     sync.Mutex
	events []models.PhotoEvent
}

func newMemEvents() *memEvents {
	return &memEvents{}
}

func (e *memEvents) Record(ctx context.Context, photoID string, eventType models.EventType, occurredAt time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, models.PhotoEvent{
		PhotoID:    photoID,
		Type:       eventType,
		OccurredAt: occurredAt,
	})
	return nil
}

func (e *memEvents) CountsSince(ctx context.Context, since time.Time) (map[models.EventType]int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	counts := make(map[models.EventType]int64)
	for _, event := range e.events {
		if !event.OccurredAt.Before(since) {
			counts[event.Type]++
		}
	}
	return counts, nil
}

// memBackend is an in-memory TierBackend with failure injection.
type memBackend struct {
	mu       sync.Mutex
	objects  map[string][]byte
	baseURL  string
	failPut  bool
	failGet  bool
	failDel  bool
	putCalls int
}

func newMemBackend(baseURL string) *memBackend {
	return &memBackend{objects: make(map[string][]byte), baseURL: baseURL}
}

func (b *memBackend) Put(ctx context.Context, key string, data []byte, contentType string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.putCalls++
	if b.failPut {
		return storage.ErrBackendUnavailable
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	b.objects[key] = cp
	return nil
}

func (b *memBackend) Get(ctx context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failGet {
		return nil, storage.ErrBackendUnavailable
	}
	data, ok := b.objects[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return data, nil
}

func (b *memBackend) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failDel {
		return storage.ErrBackendUnavailable
	}
	delete(b.objects, key)
	return nil
}

func (b *memBackend) Exists(ctx context.Context, key string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.objects[key]
	return ok, nil
}

func (b *memBackend) PublicURL(ctx context.Context, key string) (string, error) {
	if b.baseURL == "" {
		return "", nil
	}
	return b.baseURL + "/" + key, nil
}

func (b *memBackend) has(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.objects[key]
	return ok
}

func (b *memBackend) drop(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
}

func testConfig() *config.AppConfig {
	return &config.AppConfig{
		Environment: "test",
		Retention: config.RetentionConfig{
			Ephemeral: 48 * time.Hour,
			Warm:      90 * 24 * time.Hour,
			Cold:      365 * 24 * time.Hour,
			Published: 7 * 24 * time.Hour,
		},
		Costs: config.CostConfig{
			WarmPerGBMonth: 0.023,
			ColdPerGBMonth: 0.004,
		},
		Lifecycle: config.LifecycleConfig{
			BatchSize: 50,
			LockTTL:   time.Minute,
		},
		Recommendations: config.RecommendationConfig{
			EphemeralBacklog: 500,
			WarmSizeGB:       50,
			ColdShare:        0.8,
		},
	}
}
