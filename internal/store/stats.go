package store

import (
	"context"
	"fmt"

	"hoard/internal/models"
)

// Stats summarizes a record store.
type Stats struct {
	Total   int64            `json:"total" yaml:"total"`
	Levels  map[string]int64 `json:"levels" yaml:"levels"`
	Buckets map[string]int64 `json:"buckets" yaml:"buckets"`
}

var statsLevels = []models.Level{models.LevelDeleted, models.LevelTrashed, models.LevelNew, models.LevelApproved}

// CollectStats counts live records per level and per bucket. Tombstones are
// counted under their level but not under their bucket.
func CollectStats(ctx context.Context, records RecordStore, buckets []string) (*Stats, error) {
	stats := &Stats{Levels: map[string]int64{}, Buckets: map[string]int64{}}
	for _, level := range statsLevels {
		n, err := records.CountMatching(ctx, Filter{Levels: []models.Level{level}})
		if err != nil {
			return nil, fmt.Errorf("count level %s: %w", level, err)
		}
		stats.Levels[level.String()] = n
		stats.Total += n
	}
	for _, bucket := range buckets {
		n, err := records.CountMatching(ctx, Filter{Bucket: bucket, MinLevel: LevelPtr(models.LevelTrashed)})
		if err != nil {
			return nil, fmt.Errorf("count bucket %s: %w", bucket, err)
		}
		stats.Buckets[bucket] = n
	}
	return stats, nil
}
