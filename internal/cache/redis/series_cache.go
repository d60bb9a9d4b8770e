package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/varsitymarkets/campusmarket/internal/domain"
)

const seriesTTL = 5 * time.Minute

// SeriesCache implements domain.SeriesCache using JSON-serialized count
// series keyed by market ID. Entries expire on their own; invalidation on
// append and resolve only tightens freshness.
type SeriesCache struct {
	rdb *redis.Client
}

// NewSeriesCache creates a SeriesCache backed by the given Client.
func NewSeriesCache(c *Client) *SeriesCache {
	return &SeriesCache{rdb: c.Underlying()}
}

func seriesKey(marketID int64) string {
	return "series:" + strconv.FormatInt(marketID, 10)
}

// Get retrieves the cached series for a market. It returns domain.ErrNotFound
// on a cache miss.
func (sc *SeriesCache) Get(ctx context.Context, marketID int64) ([]domain.SeriesPoint, error) {
	data, err := sc.rdb.Get(ctx, seriesKey(marketID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("redis: get series %d: %w", marketID, err)
	}

	var series []domain.SeriesPoint
	if err := json.Unmarshal(data, &series); err != nil {
		return nil, fmt.Errorf("redis: unmarshal series %d: %w", marketID, err)
	}
	return series, nil
}

// Set stores a market's series with a 5-minute TTL.
func (sc *SeriesCache) Set(ctx context.Context, marketID int64, series []domain.SeriesPoint) error {
	data, err := json.Marshal(series)
	if err != nil {
		return fmt.Errorf("redis: marshal series %d: %w", marketID, err)
	}
	if err := sc.rdb.Set(ctx, seriesKey(marketID), data, seriesTTL).Err(); err != nil {
		return fmt.Errorf("redis: set series %d: %w", marketID, err)
	}
	return nil
}

// Invalidate removes a market's cached series.
func (sc *SeriesCache) Invalidate(ctx context.Context, marketID int64) error {
	if err := sc.rdb.Del(ctx, seriesKey(marketID)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate series %d: %w", marketID, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.SeriesCache = (*SeriesCache)(nil)
