package domain

import "time"

// DriverPosition is the latest known GPS reading for a driver. It is
// overwritten in place on every report; only the newest value exists.
type DriverPosition struct {
	DriverID   string
	Lat        float64
	Lng        float64
	RecordedAt time.Time
}

// FresherThan reports whether the reading is newer than now minus ttl.
// Stale positions are treated as unknown by the visibility filter.
func (p *DriverPosition) FresherThan(now time.Time, ttl time.Duration) bool {
	if p == nil {
		return false
	}
	if ttl <= 0 {
		return true
	}
	return now.Sub(p.RecordedAt) <= ttl
}
