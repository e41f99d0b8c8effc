package domain

import (
	"fmt"
	"strings"
	"time"
)

// OrderStatus represents the current status of an order.
type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "PENDING"
	OrderStatusAssigned        OrderStatus = "ASSIGNED"
	OrderStatusEnRouteToPickup OrderStatus = "EN_ROUTE_TO_PICKUP"
	OrderStatusPickedUp        OrderStatus = "PICKED_UP"
	OrderStatusDelivered       OrderStatus = "DELIVERED"
)

// Coordinate is a WGS-84 latitude/longitude pair. Orders store pickup and
// delivery coordinates as pointers: nil means the address has not been
// resolved by the geocoder (or resolution failed).
type Coordinate struct {
	Lat float64
	Lng float64
}

// Order represents one delivery job moving through the fixed status sequence.
type Order struct {
	ID              string
	CompanyID       string
	Status          OrderStatus
	DriverID        string // empty iff Status == PENDING
	PickupAddress   string
	PickupCoord     *Coordinate
	DeliveryAddress string
	DeliveryCoord   *Coordinate
	Price           float64
	PickupCode      string // required to advance EN_ROUTE_TO_PICKUP -> PICKED_UP
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// DisplayID returns the short human-facing id derived from the primary key.
func (o *Order) DisplayID() string {
	id := strings.ReplaceAll(o.ID, "-", "")
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("ORD-%s", strings.ToUpper(id))
}

// IsOpen reports whether the order is still in flight (not delivered).
func (o *Order) IsOpen() bool {
	return o.Status != OrderStatusDelivered
}
