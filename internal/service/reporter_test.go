package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sellhub/storage/internal/models"
)

const mb = 1024 * 1024

func seedPhoto(t *testing.T, store *memStore, id string, tier models.Tier, size int64) {
	t.Helper()
	require.NoError(t, store.Create(context.Background(), models.Photo{
		ID:              id,
		UserID:          "user-1",
		Tier:            tier,
		FileSizeBytes:   size,
		CompressedBytes: size,
		UploadDate:      time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}))
}

func TestStorageStats(t *testing.T) {
	store := newMemStore()
	seedPhoto(t, store, "p1", models.TierEphemeral, mb)
	seedPhoto(t, store, "p2", models.TierEphemeral, mb)
	seedPhoto(t, store, "p3", models.TierWarm, 2*mb)
	seedPhoto(t, store, "p4", models.TierCold, mb)

	reporter := NewReporter(store, newMemEvents(), testConfig())
	stats, err := reporter.StorageStats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(2), stats.Tiers[models.TierEphemeral].Count)
	assert.Equal(t, int64(1), stats.Tiers[models.TierWarm].Count)
	assert.Equal(t, int64(1), stats.Tiers[models.TierCold].Count)
	assert.Equal(t, int64(4), stats.TotalCount)

	warmGB := 2.0 * mb / bytesPerGB
	coldGB := 1.0 * mb / bytesPerGB
	totalGB := 4.0 * mb / bytesPerGB

	assert.InDelta(t, warmGB, stats.Tiers[models.TierWarm].SizeGB, 1e-9)
	assert.InDelta(t, totalGB, stats.TotalSizeGB, 1e-9)

	// Ephemeral is free; only warm and cold bill.
	wantCost := warmGB*0.023 + coldGB*0.004
	assert.InDelta(t, wantCost, stats.MonthlyCostEstimate, 1e-9)
	assert.InDelta(t, totalGB*0.023-wantCost, stats.SavingsVsAllHot, 1e-9)
}

func TestStorageStatsEmpty(t *testing.T) {
	reporter := NewReporter(newMemStore(), newMemEvents(), testConfig())
	stats, err := reporter.StorageStats(context.Background())
	require.NoError(t, err)

	assert.Zero(t, stats.TotalCount)
	assert.Zero(t, stats.MonthlyCostEstimate)
	// All three tiers still appear in the snapshot.
	assert.Len(t, stats.Tiers, 3)
}

func TestCostBreakdownPercentages(t *testing.T) {
	store := newMemStore()
	seedPhoto(t, store, "p1", models.TierWarm, 100*mb)
	seedPhoto(t, store, "p2", models.TierCold, 100*mb)

	reporter := NewReporter(store, newMemEvents(), testConfig())
	breakdown, err := reporter.CostBreakdown(context.Background())
	require.NoError(t, err)
	require.Len(t, breakdown, 3)

	var totalPct float64
	for _, tier := range breakdown {
		totalPct += tier.Percentage
	}
	assert.InDelta(t, 100, totalPct, 1e-9)

	for _, tier := range breakdown {
		if tier.Tier == models.TierEphemeral {
			assert.Zero(t, tier.Cost)
			assert.Zero(t, tier.Percentage)
		}
	}
}

func TestRecommendationsQuietWhenHealthy(t *testing.T) {
	store := newMemStore()
	seedPhoto(t, store, "p1", models.TierWarm, mb)

	reporter := NewReporter(store, newMemEvents(), testConfig())
	recs, err := reporter.Recommendations(context.Background())
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestRecommendationsEphemeralBacklog(t *testing.T) {
	store := newMemStore()
	cfg := testConfig()
	cfg.Recommendations.EphemeralBacklog = 2
	for _, id := range []string{"p1", "p2", "p3"} {
		seedPhoto(t, store, id, models.TierEphemeral, mb)
	}

	reporter := NewReporter(store, newMemEvents(), cfg)
	recs, err := reporter.Recommendations(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Contains(t, recs[0], "lifecycle job")
}

func TestRecommendationsColdCostShare(t *testing.T) {
	store := newMemStore()
	// All billable bytes in cold: the cold share of the monthly bill is 100%.
	seedPhoto(t, store, "p1", models.TierCold, 100*mb)
	seedPhoto(t, store, "p2", models.TierCold, 100*mb)

	reporter := NewReporter(store, newMemEvents(), testConfig())
	recs, err := reporter.Recommendations(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Contains(t, recs[0], "cold storage")
}

func TestLifecycleMetricsWindow(t *testing.T) {
	events := newMemEvents()
	now := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	require.NoError(t, events.Record(ctx, "p1", models.EventUploaded, now.AddDate(0, 0, -2)))
	require.NoError(t, events.Record(ctx, "p2", models.EventUploaded, now.AddDate(0, 0, -40)))
	require.NoError(t, events.Record(ctx, "p1", models.EventPromoted, now.AddDate(0, 0, -1)))
	require.NoError(t, events.Record(ctx, "p3", models.EventDeleted, now.AddDate(0, 0, -5)))

	reporter := NewReporter(newMemStore(), events, testConfig()).
		WithClock(func() time.Time { return now })

	metrics, err := reporter.LifecycleMetrics(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(1), metrics.Uploaded, "events outside the window are excluded")
	assert.Equal(t, int64(1), metrics.Promoted)
	assert.Zero(t, metrics.Archived)
	assert.Equal(t, int64(1), metrics.Deleted)
	assert.Equal(t, 7, metrics.Days)
}
