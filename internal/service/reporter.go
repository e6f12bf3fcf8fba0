package service

import (
	"context"
	"fmt"
	"time"

	"sellhub/storage/internal/config"
	"sellhub/storage/internal/models"
	"sellhub/storage/internal/repository"
)

const bytesPerGB = 1024 * 1024 * 1024

// TierAggregator is the read-only slice of the metadata repository the
// reporter consumes.
type TierAggregator interface {
	AggregateByTier(ctx context.Context) ([]repository.TierAggregate, error)
}

// EventCounter feeds windowed lifecycle metrics.
type EventCounter interface {
	CountsSince(ctx context.Context, since time.Time) (map[models.EventType]int64, error)
}

type TierStats struct {
	Count       int64   `json:"count"`
	SizeGB      float64 `json:"size_gb"`
	MonthlyCost float64 `json:"monthly_cost"`
}

type StorageStats struct {
	Tiers               map[models.Tier]TierStats `json:"tiers"`
	TotalCount          int64                     `json:"total_count"`
	TotalSizeGB         float64                   `json:"total_size_gb"`
	MonthlyCostEstimate float64                   `json:"monthly_cost_estimate"`
	SavingsVsAllHot     float64                   `json:"savings_vs_all_hot"`
}

type TierCost struct {
	Tier       models.Tier `json:"tier"`
	Cost       float64     `json:"cost"`
	SizeGB     float64     `json:"size_gb"`
	Percentage float64     `json:"percentage_of_total_cost"`
}

type LifecycleMetrics struct {
	Days     int   `json:"days"`
	Uploaded int64 `json:"uploaded"`
	Promoted int64 `json:"promoted"`
	Archived int64 `json:"archived"`
	Deleted  int64 `json:"deleted"`
}

// Reporter aggregates the metadata store into per-tier counts, a cost model,
// and rule-based recommendations. It never mutates anything.
type Reporter struct {
	photos TierAggregator
	events EventCounter
	cfg    *config.AppConfig
	now    func() time.Time
}

func NewReporter(photos TierAggregator, events EventCounter, cfg *config.AppConfig) *Reporter {
	return &Reporter{
		photos: photos,
		events: events,
		cfg:    cfg,
		now:    time.Now,
	}
}

func (r *Reporter) WithClock(now func() time.Time) *Reporter {
	r.now = now
	return r
}

func (r *Reporter) unitCost(tier models.Tier) float64 {
	switch tier {
	case models.TierWarm:
		return r.cfg.Costs.WarmPerGBMonth
	case models.TierCold:
		return r.cfg.Costs.ColdPerGBMonth
	}
	// local disk, no unit price
	return 0
}

func (r *Reporter) StorageStats(ctx context.Context) (StorageStats, error) {
	aggregates, err := r.photos.AggregateByTier(ctx)
	if err != nil {
		return StorageStats{}, fmt.Errorf("aggregate by tier: %w", err)
	}

	stats := StorageStats{Tiers: make(map[models.Tier]TierStats, 3)}
	for _, tier := range []models.Tier{models.TierEphemeral, models.TierWarm, models.TierCold} {
		stats.Tiers[tier] = TierStats{}
	}

	for _, agg := range aggregates {
		sizeGB := float64(agg.TotalBytes) / bytesPerGB
		tierStats := TierStats{
			Count:       agg.Count,
			SizeGB:      sizeGB,
			MonthlyCost: sizeGB * r.unitCost(agg.Tier),
		}
		stats.Tiers[agg.Tier] = tierStats
		stats.TotalCount += agg.Count
		stats.TotalSizeGB += sizeGB
		stats.MonthlyCostEstimate += tierStats.MonthlyCost
	}

	allHot := stats.TotalSizeGB * r.cfg.Costs.WarmPerGBMonth
	stats.SavingsVsAllHot = allHot - stats.MonthlyCostEstimate

	return stats, nil
}

func (r *Reporter) CostBreakdown(ctx context.Context) ([]TierCost, error) {
	stats, err := r.StorageStats(ctx)
	if err != nil {
		return nil, err
	}

	breakdown := make([]TierCost, 0, 3)
	for _, tier := range []models.Tier{models.TierEphemeral, models.TierWarm, models.TierCold} {
		tierStats := stats.Tiers[tier]
		pct := 0.0
		if stats.MonthlyCostEstimate > 0 {
			pct = tierStats.MonthlyCost / stats.MonthlyCostEstimate * 100
		}
		breakdown = append(breakdown, TierCost{
			Tier:       tier,
			Cost:       tierStats.MonthlyCost,
			SizeGB:     tierStats.SizeGB,
			Percentage: pct,
		})
	}
	return breakdown, nil
}

// Recommendations applies fixed thresholds to the current stats snapshot.
// An empty list means nothing notable.
func (r *Reporter) Recommendations(ctx context.Context) ([]string, error) {
	stats, err := r.StorageStats(ctx)
	if err != nil {
		return nil, err
	}

	recs := []string{}

	if backlog := stats.Tiers[models.TierEphemeral].Count; backlog > int64(r.cfg.Recommendations.EphemeralBacklog) {
		recs = append(recs, fmt.Sprintf(
			"%d photos are sitting in the ephemeral tier; check that the lifecycle job is running and healthy",
			backlog))
	}

	if warmGB := stats.Tiers[models.TierWarm].SizeGB; warmGB > r.cfg.Recommendations.WarmSizeGB {
		recs = append(recs, fmt.Sprintf(
			"warm tier holds %.1f GB; consider a shorter warm retention window to archive rarely accessed photos sooner",
			warmGB))
	}

	if stats.MonthlyCostEstimate > 0 {
		coldShare := stats.Tiers[models.TierCold].MonthlyCost / stats.MonthlyCostEstimate
		if coldShare > r.cfg.Recommendations.ColdShare {
			recs = append(recs, fmt.Sprintf(
				"cold storage drives %.0f%% of the monthly bill; review the cold retention window for photos that could be deleted",
				coldShare*100))
		}
	}

	return recs, nil
}

func (r *Reporter) LifecycleMetrics(ctx context.Context, days int) (LifecycleMetrics, error) {
	if days <= 0 {
		days = 30
	}
	since := r.now().UTC().AddDate(0, 0, -days)

	counts, err := r.events.CountsSince(ctx, since)
	if err != nil {
		return LifecycleMetrics{}, fmt.Errorf("count events: %w", err)
	}

	return LifecycleMetrics{
		Days:     days,
		Uploaded: counts[models.EventUploaded],
		Promoted: counts[models.EventPromoted],
		Archived: counts[models.EventArchived],
		Deleted:  counts[models.EventDeleted],
	}, nil
}
