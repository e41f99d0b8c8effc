package service

import (
	"dispatch/internal/domain"
	"dispatch/internal/geo"
)

// DefaultGeofenceRadiusKm is the default visibility radius for pending orders.
const DefaultGeofenceRadiusKm = 5.0

// FilterByProximity decides which orders a driver may see. Pure function,
// no I/O.
//
// Rules, in order:
//   - an order already assigned to the requesting driver is always visible,
//     regardless of distance;
//   - with no known position, no unassigned orders are visible (absence of
//     location is not a visibility override);
//   - an order whose pickup coordinate is unresolved is visible (fail-open:
//     discoverability over strict radius enforcement);
//   - otherwise an order is visible iff the great-circle distance from the
//     driver's position to the pickup point is within radiusKm.
func FilterByProximity(orders []*domain.Order, pos *domain.DriverPosition, driverID string, radiusKm float64) []*domain.Order {
	if radiusKm <= 0 {
		radiusKm = DefaultGeofenceRadiusKm
	}

	visible := make([]*domain.Order, 0, len(orders))
	for _, order := range orders {
		if order.DriverID != "" && order.DriverID == driverID {
			visible = append(visible, order)
			continue
		}

		if pos == nil {
			continue
		}

		if order.PickupCoord == nil {
			visible = append(visible, order)
			continue
		}

		if geo.DistanceKm(pos.Lat, pos.Lng, order.PickupCoord.Lat, order.PickupCoord.Lng) <= radiusKm {
			visible = append(visible, order)
		}
	}

	return visible
}
