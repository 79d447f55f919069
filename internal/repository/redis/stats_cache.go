package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"secmon-service/internal/client"
	"secmon-service/internal/models"
	"secmon-service/internal/util"
)

const statsPrefix = "security_stats:"

// ErrStatsNotCached is returned when no snapshot exists for a timeframe.
var ErrStatsNotCached = errors.New("stats snapshot not cached")

// StatsCache holds recent SecurityStats snapshots so repeated dashboard
// loads within the TTL don't re-run the whole pipeline.
type StatsCache struct {
	client *client.RedisClient
	ttl    time.Duration
}

func NewStatsCache(redisClient *client.RedisClient, ttl time.Duration) *StatsCache {
	return &StatsCache{
		client: redisClient,
		ttl:    ttl,
	}
}

// SetStats stores a snapshot for the timeframe label.
func (c *StatsCache) SetStats(ctx context.Context, timeframe string, stats *models.SecurityStats) error {
	encoded, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to encode stats snapshot: %w", err)
	}

	key := statsPrefix + timeframe
	if err := c.client.Set(ctx, key, encoded, c.ttl); err != nil {
		util.Error("Failed to cache stats snapshot",
			zap.String("timeframe", timeframe),
			zap.Error(err))
		return fmt.Errorf("failed to cache stats snapshot: %w", err)
	}

	util.Debug("Stats snapshot cached",
		zap.String("timeframe", timeframe),
		zap.Duration("ttl", c.ttl))
	return nil
}

// GetStats returns the cached snapshot for a timeframe, or
// ErrStatsNotCached on a miss.
func (c *StatsCache) GetStats(ctx context.Context, timeframe string) (*models.SecurityStats, error) {
	key := statsPrefix + timeframe

	raw, err := c.client.Get(ctx, key)
	if err != nil {
		if errors.Is(err, client.ErrCacheMiss) {
			return nil, ErrStatsNotCached
		}
		util.Error("Failed to read cached stats",
			zap.String("timeframe", timeframe),
			zap.Error(err))
		return nil, fmt.Errorf("failed to read cached stats: %w", err)
	}

	var stats models.SecurityStats
	if err := json.Unmarshal([]byte(raw), &stats); err != nil {
		// A corrupt entry is as good as a miss; drop it.
		_ = c.client.Del(ctx, key)
		return nil, ErrStatsNotCached
	}

	return &stats, nil
}

// Invalidate drops the cached snapshot for a timeframe.
func (c *StatsCache) Invalidate(ctx context.Context, timeframe string) error {
	return c.client.Del(ctx, statsPrefix+timeframe)
}
