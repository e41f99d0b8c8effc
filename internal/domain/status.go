package domain

import "errors"

var (
	// ErrUnknownStatus is returned when an order carries an unrecognized status.
	ErrUnknownStatus = errors.New("unknown order status")

	// ErrIllegalTransition is returned when the requested status is not the
	// unique successor of the order's current status.
	ErrIllegalTransition = errors.New("illegal status transition")

	// ErrPickupCodeRequired is returned when advancing to PICKED_UP on an
	// order that was created without a pickup confirmation code.
	ErrPickupCodeRequired = errors.New("order has no pickup confirmation code")
)

// nextStatus defines the strictly linear lifecycle. Every status has exactly
// zero or one successor: no skips, no branches, no reverse transitions.
var nextStatus = map[OrderStatus]OrderStatus{
	OrderStatusPending:         OrderStatusAssigned,
	OrderStatusAssigned:        OrderStatusEnRouteToPickup,
	OrderStatusEnRouteToPickup: OrderStatusPickedUp,
	OrderStatusPickedUp:        OrderStatusDelivered,
	// DELIVERED is terminal.
}

// KnownStatus reports whether s is a member of the lifecycle.
func KnownStatus(s OrderStatus) bool {
	if _, ok := nextStatus[s]; ok {
		return true
	}
	return s == OrderStatusDelivered
}

// NextStatus returns the unique successor of s, or false when s is terminal
// or unrecognized.
func NextStatus(s OrderStatus) (OrderStatus, bool) {
	next, ok := nextStatus[s]
	return next, ok
}

// ValidateTransition decides whether order may advance to requested. It is
// pure: no I/O, no side effects. On nil error the caller persists the new
// status and appends a history entry; on error the mutation must be
// abandoned entirely.
//
// Accepting an order (PENDING -> ASSIGNED with driver binding) is a distinct
// operation handled by the accept conditional write, not by this validator.
func ValidateTransition(order *Order, requested OrderStatus) error {
	if order == nil || !KnownStatus(order.Status) {
		return ErrUnknownStatus
	}

	next, ok := NextStatus(order.Status)
	if !ok || next != requested {
		return ErrIllegalTransition
	}

	if requested == OrderStatusPickedUp && order.PickupCode == "" {
		return ErrPickupCodeRequired
	}

	return nil
}
