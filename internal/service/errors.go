package service

import "errors"

var (
	// ErrInvalidCompanyID is returned when company ID is empty.
	ErrInvalidCompanyID = errors.New("invalid company id")

	// ErrInvalidDriverID is returned when driver ID is empty.
	ErrInvalidDriverID = errors.New("invalid driver id")

	// ErrInvalidOrderID is returned when order ID is empty.
	ErrInvalidOrderID = errors.New("invalid order id")

	// ErrInvalidPickupAddress is returned when the pickup address is empty.
	ErrInvalidPickupAddress = errors.New("invalid pickup address")

	// ErrInvalidDeliveryAddress is returned when the delivery address is empty.
	ErrInvalidDeliveryAddress = errors.New("invalid delivery address")

	// ErrInvalidPrice is returned when the suggested price is negative.
	ErrInvalidPrice = errors.New("invalid price")

	// ErrInvalidLocation is returned when coordinates are out of range.
	ErrInvalidLocation = errors.New("invalid location")

	// ErrInvalidStatus is returned when a requested status is not a member
	// of the order lifecycle.
	ErrInvalidStatus = errors.New("invalid status")

	// ErrOrderAlreadyTaken is returned when an accept attempt loses the
	// claim race: the order was no longer PENDING at write time.
	ErrOrderAlreadyTaken = errors.New("order already taken")

	// ErrNotAssignedDriver is returned when a driver tries to advance an
	// order assigned to someone else.
	ErrNotAssignedDriver = errors.New("driver not assigned to this order")

	// ErrPickupCodeMismatch is returned when the code supplied on the
	// PICKED_UP advance does not match the order's confirmation code.
	ErrPickupCodeMismatch = errors.New("pickup code mismatch")
)
