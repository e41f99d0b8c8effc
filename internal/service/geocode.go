package service

import (
	"context"
	"errors"

	"dispatch/internal/domain"
	"dispatch/internal/redis"
)

// ErrUnresolvedAddress is returned when a geocoder cannot resolve an
// address. It is non-fatal everywhere: orders are created with nil
// coordinates and the visibility filter fails open.
var ErrUnresolvedAddress = errors.New("address could not be resolved")

// Geocoder resolves a street address to a coordinate. Implementations are
// external collaborators (HTTP geocoding APIs); this core only defines the
// boundary.
type Geocoder interface {
	Resolve(ctx context.Context, address string) (*domain.Coordinate, error)
}

// GeocodeCacheInterface is the cache used by CachingGeocoder.
type GeocodeCacheInterface interface {
	Get(ctx context.Context, address string) (*redis.CachedPoint, error)
	Set(ctx context.Context, address string, point *redis.CachedPoint) error
}

// CachingGeocoder wraps a Geocoder with the Redis result cache. Cache
// failures degrade to resolver calls, never to errors.
type CachingGeocoder struct {
	inner Geocoder
	cache GeocodeCacheInterface
}

// NewCachingGeocoder creates a caching wrapper around inner.
func NewCachingGeocoder(inner Geocoder, cache GeocodeCacheInterface) *CachingGeocoder {
	return &CachingGeocoder{inner: inner, cache: cache}
}

// Resolve returns the cached coordinate when available, otherwise resolves
// through the inner geocoder and caches the result.
func (g *CachingGeocoder) Resolve(ctx context.Context, address string) (*domain.Coordinate, error) {
	if g.cache != nil {
		if cached, err := g.cache.Get(ctx, address); err == nil && cached != nil {
			return &domain.Coordinate{Lat: cached.Lat, Lng: cached.Lng}, nil
		}
	}

	coord, err := g.inner.Resolve(ctx, address)
	if err != nil {
		return nil, err
	}

	if g.cache != nil && coord != nil {
		_ = g.cache.Set(ctx, address, &redis.CachedPoint{Lat: coord.Lat, Lng: coord.Lng})
	}

	return coord, nil
}

// NoopGeocoder never resolves anything. It is the default wiring when no
// geocoding provider is configured; orders then rely on coordinates supplied
// at creation time.
type NoopGeocoder struct{}

// Resolve always reports the address as unresolved.
func (NoopGeocoder) Resolve(ctx context.Context, address string) (*domain.Coordinate, error) {
	return nil, ErrUnresolvedAddress
}
