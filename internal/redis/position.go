package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"dispatch/internal/domain"
)

const (
	driverPositionKey = "drivers:positions"
	positionTimeKey   = "drivers:positions:reported_at"
)

// PositionStore holds the last known GPS reading per driver: a GEO set for
// radius queries plus a hash of report timestamps. Readings are overwritten
// in place, never appended.
type PositionStore struct {
	client *redis.Client
}

// NewPositionStore creates a new PositionStore.
func NewPositionStore(client *redis.Client) *PositionStore {
	return &PositionStore{client: client}
}

// ReportPosition stores a driver's position using GEOADD and records the
// reading time.
func (s *PositionStore) ReportPosition(ctx context.Context, driverID string, lat, lng float64, at time.Time) error {
	if err := s.client.GeoAdd(ctx, driverPositionKey, &redis.GeoLocation{
		Name:      driverID,
		Longitude: lng,
		Latitude:  lat,
	}).Err(); err != nil {
		return err
	}
	return s.client.HSet(ctx, positionTimeKey, driverID, at.UnixMilli()).Err()
}

// LastPosition returns the driver's newest reading, or nil when the driver
// has never reported.
func (s *PositionStore) LastPosition(ctx context.Context, driverID string) (*domain.DriverPosition, error) {
	positions, err := s.client.GeoPos(ctx, driverPositionKey, driverID).Result()
	if err != nil {
		return nil, err
	}
	if len(positions) == 0 || positions[0] == nil {
		return nil, nil
	}

	pos := &domain.DriverPosition{
		DriverID: driverID,
		Lat:      positions[0].Latitude,
		Lng:      positions[0].Longitude,
	}

	millis, err := s.client.HGet(ctx, positionTimeKey, driverID).Result()
	if err != nil {
		if err == redis.Nil {
			return pos, nil
		}
		return nil, err
	}
	if ms, parseErr := strconv.ParseInt(millis, 10, 64); parseErr == nil {
		pos.RecordedAt = time.UnixMilli(ms)
	}

	return pos, nil
}

// NearbyDrivers returns drivers within the given radius (in kilometers),
// closest first.
func (s *PositionStore) NearbyDrivers(ctx context.Context, lat, lng, radiusKm float64) ([]*domain.DriverPosition, error) {
	results, err := s.client.GeoRadius(ctx, driverPositionKey, lng, lat, &redis.GeoRadiusQuery{
		Radius:    radiusKm,
		Unit:      "km",
		WithCoord: true,
		Sort:      "ASC",
	}).Result()
	if err != nil {
		return nil, err
	}

	positions := make([]*domain.DriverPosition, 0, len(results))
	for _, r := range results {
		positions = append(positions, &domain.DriverPosition{
			DriverID: r.Name,
			Lat:      r.Latitude,
			Lng:      r.Longitude,
		})
	}

	return positions, nil
}

// RemovePosition removes a driver from the geo index, e.g. when the driver
// goes offline.
func (s *PositionStore) RemovePosition(ctx context.Context, driverID string) error {
	if err := s.client.ZRem(ctx, driverPositionKey, driverID).Err(); err != nil {
		return err
	}
	return s.client.HDel(ctx, positionTimeKey, driverID).Err()
}
