package service

import (
	"context"
	"time"

	"dispatch/internal/domain"
	"dispatch/internal/geo"
	"dispatch/internal/redis"
)

// LocationService handles driver position reporting and lookup.
type LocationService struct {
	positions   redis.PositionStoreInterface
	positionTTL time.Duration
	now         func() time.Time
}

// NewLocationService creates a new LocationService. positionTTL bounds how
// old a reading may be before the driver counts as position-unknown.
func NewLocationService(positions redis.PositionStoreInterface, positionTTL time.Duration) *LocationService {
	return &LocationService{
		positions:   positions,
		positionTTL: positionTTL,
		now:         time.Now,
	}
}

// ReportPosition validates and stores a driver's GPS reading.
func (s *LocationService) ReportPosition(ctx context.Context, driverID string, lat, lng float64) error {
	if driverID == "" {
		return ErrInvalidDriverID
	}
	if !geo.ValidLatitude(lat) || !geo.ValidLongitude(lng) {
		return ErrInvalidLocation
	}
	return s.positions.ReportPosition(ctx, driverID, lat, lng, s.now())
}

// LastPosition returns the driver's newest reading, or nil when the driver
// has never reported or the reading is older than the freshness TTL.
// Absence of a fresh position is not an error: callers treat it as
// "position unknown."
func (s *LocationService) LastPosition(ctx context.Context, driverID string) (*domain.DriverPosition, error) {
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}

	pos, err := s.positions.LastPosition(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if pos == nil || !pos.FresherThan(s.now(), s.positionTTL) {
		return nil, nil
	}
	return pos, nil
}

// NearbyDrivers returns drivers within radiusKm of the given point, closest
// first. Used by the dispatcher surface to see available couriers.
func (s *LocationService) NearbyDrivers(ctx context.Context, lat, lng, radiusKm float64) ([]*domain.DriverPosition, error) {
	if !geo.ValidLatitude(lat) || !geo.ValidLongitude(lng) {
		return nil, ErrInvalidLocation
	}
	if radiusKm <= 0 {
		radiusKm = DefaultGeofenceRadiusKm
	}
	return s.positions.NearbyDrivers(ctx, lat, lng, radiusKm)
}

// RemoveDriver drops a driver from the position index, e.g. on sign-out.
func (s *LocationService) RemoveDriver(ctx context.Context, driverID string) error {
	if driverID == "" {
		return ErrInvalidDriverID
	}
	return s.positions.RemovePosition(ctx, driverID)
}
