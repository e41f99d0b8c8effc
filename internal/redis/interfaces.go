package redis

import (
	"context"
	"time"

	"dispatch/internal/domain"
)

// PositionStoreInterface defines the interface for driver position storage.
type PositionStoreInterface interface {
	ReportPosition(ctx context.Context, driverID string, lat, lng float64, at time.Time) error
	LastPosition(ctx context.Context, driverID string) (*domain.DriverPosition, error)
	NearbyDrivers(ctx context.Context, lat, lng, radiusKm float64) ([]*domain.DriverPosition, error)
	RemovePosition(ctx context.Context, driverID string) error
}

// LockStoreInterface defines the interface for the sweep leader lock.
type LockStoreInterface interface {
	AcquireSweepLock(ctx context.Context, ttl time.Duration) (bool, error)
	ReleaseSweepLock(ctx context.Context) error
}

// FeedPublisher defines the publish half of the change feed.
type FeedPublisher interface {
	Publish(ctx context.Context, event domain.OrderEvent) error
}

// Ensure concrete types implement interfaces.
var (
	_ PositionStoreInterface = (*PositionStore)(nil)
	_ LockStoreInterface     = (*LockStore)(nil)
	_ FeedPublisher          = (*Feed)(nil)
)
