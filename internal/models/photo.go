package models

import "time"

// Tier names the storage backend currently holding a photo's bytes. Exactly
// one backend holds the live copy at any time.
type Tier string

const (
	TierEphemeral Tier = "ephemeral"
	TierWarm      Tier = "warm"
	TierCold      Tier = "cold"
)

// Next returns the tier a photo moves to when promoted out of t.
func (t Tier) Next() (Tier, bool) {
	switch t {
	case TierEphemeral:
		return TierWarm, true
	case TierWarm:
		return TierCold, true
	}
	return "", false
}

type Photo struct {
	ID                string
	UserID            string
	DraftID           *string
	Tier              Tier
	FileSizeBytes     int64
	CompressedBytes   int64
	ContentType       string
	Checksum          []byte
	StoragePath       string
	CDNURL            *string
	UploadDate        time.Time
	LastAccessDate    time.Time
	ScheduledDeletion *time.Time
	Published         bool
	PublishedDate     *time.Time
	AccessCount       int64
	UpdatedAt         time.Time
}

// CompressionRatio reports compressed over original size; 1 when compression
// was skipped or the original was empty.
func (p Photo) CompressionRatio() float64 {
	if p.FileSizeBytes == 0 {
		return 1
	}
	return float64(p.CompressedBytes) / float64(p.FileSizeBytes)
}

// EventType tags rows in the lifecycle event log.
type EventType string

const (
	EventUploaded EventType = "uploaded"
	EventPromoted EventType = "promoted"
	EventArchived EventType = "archived"
	EventDeleted  EventType = "deleted"
)

type PhotoEvent struct {
	ID         int64
	PhotoID    string
	Type       EventType
	OccurredAt time.Time
}
