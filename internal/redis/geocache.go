package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	geocodeCachePrefix = "cache:geocode:"

	// GeocodeCacheTTL bounds how long a resolved address stays cached.
	GeocodeCacheTTL = 24 * time.Hour
)

// CachedPoint is a cached geocoding result.
type CachedPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// GeocodeCache caches resolved addresses in Redis.
type GeocodeCache struct {
	client *redis.Client
}

// NewGeocodeCache creates a new GeocodeCache.
func NewGeocodeCache(client *redis.Client) *GeocodeCache {
	return &GeocodeCache{client: client}
}

// Get retrieves a cached result for the address. A nil result with nil error
// is a cache miss.
func (c *GeocodeCache) Get(ctx context.Context, address string) (*CachedPoint, error) {
	data, err := c.client.Get(ctx, geocodeCachePrefix+address).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var point CachedPoint
	if err := json.Unmarshal(data, &point); err != nil {
		return nil, err
	}
	return &point, nil
}

// Set stores a resolved address.
func (c *GeocodeCache) Set(ctx context.Context, address string, point *CachedPoint) error {
	data, err := json.Marshal(point)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, geocodeCachePrefix+address, data, GeocodeCacheTTL).Err()
}
