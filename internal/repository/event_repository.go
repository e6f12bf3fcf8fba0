package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"sellhub/storage/internal/models"
)

// EventRepository appends to the lifecycle event log. Events survive photo
// row deletion, so windowed metrics can still count deleted photos.
type EventRepository struct {
	pool *pgxpool.Pool
}

func NewEventRepository(pool *pgxpool.Pool) *EventRepository {
	return &EventRepository{pool: pool}
}

func (r *EventRepository) Record(ctx context.Context, photoID string, eventType models.EventType, occurredAt time.Time) error {
	const query = `
		INSERT INTO photo_events (photo_id, event_type, occurred_at)
		VALUES ($1, $2, $3)
	`
	_, err := r.pool.Exec(ctx, query, photoID, eventType, occurredAt)
	return err
}

func (r *EventRepository) CountsSince(ctx context.Context, since time.Time) (map[models.EventType]int64, error) {
	const query = `
		SELECT event_type, COUNT(*)
		FROM photo_events
		WHERE occurred_at >= $1
		GROUP BY event_type
	`
	rows, err := r.pool.Query(ctx, query, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[models.EventType]int64)
	for rows.Next() {
		var eventType models.EventType
		var count int64
		if err := rows.Scan(&eventType, &count); err != nil {
			return nil, err
		}
		counts[eventType] = count
	}
	return counts, rows.Err()
}
