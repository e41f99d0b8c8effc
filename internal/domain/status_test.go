package domain

import "testing"

var allStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusAssigned,
	OrderStatusEnRouteToPickup,
	OrderStatusPickedUp,
	OrderStatusDelivered,
}

func TestValidateTransition_OnlyLinearSuccessorsAllowed(t *testing.T) {
	for _, from := range allStatuses {
		for _, to := range allStatuses {
			order := &Order{Status: from, PickupCode: "4821"}
			err := ValidateTransition(order, to)

			next, ok := NextStatus(from)
			if ok && to == next {
				if err != nil {
					t.Errorf("%s -> %s: expected allowed, got %v", from, to, err)
				}
				continue
			}
			if err != ErrIllegalTransition {
				t.Errorf("%s -> %s: expected ErrIllegalTransition, got %v", from, to, err)
			}
		}
	}
}

func TestValidateTransition_DeliveredIsTerminal(t *testing.T) {
	order := &Order{Status: OrderStatusDelivered, PickupCode: "4821"}
	for _, to := range allStatuses {
		if err := ValidateTransition(order, to); err != ErrIllegalTransition {
			t.Errorf("DELIVERED -> %s: expected ErrIllegalTransition, got %v", to, err)
		}
	}
}

func TestValidateTransition_UnknownStatus(t *testing.T) {
	order := &Order{Status: OrderStatus("SHIPPED")}
	if err := ValidateTransition(order, OrderStatusAssigned); err != ErrUnknownStatus {
		t.Errorf("expected ErrUnknownStatus, got %v", err)
	}

	if err := ValidateTransition(nil, OrderStatusAssigned); err != ErrUnknownStatus {
		t.Errorf("nil order: expected ErrUnknownStatus, got %v", err)
	}
}

func TestValidateTransition_PickupCodePrecondition(t *testing.T) {
	// Missing code is an order-configuration error, not an operator error.
	noCode := &Order{Status: OrderStatusEnRouteToPickup}
	if err := ValidateTransition(noCode, OrderStatusPickedUp); err != ErrPickupCodeRequired {
		t.Errorf("expected ErrPickupCodeRequired, got %v", err)
	}

	withCode := &Order{Status: OrderStatusEnRouteToPickup, PickupCode: "0042"}
	if err := ValidateTransition(withCode, OrderStatusPickedUp); err != nil {
		t.Errorf("expected allowed with code, got %v", err)
	}

	// The code is only a precondition for the PICKED_UP advance.
	assigned := &Order{Status: OrderStatusAssigned}
	if err := ValidateTransition(assigned, OrderStatusEnRouteToPickup); err != nil {
		t.Errorf("expected allowed without code, got %v", err)
	}
}

func TestDisplayID(t *testing.T) {
	o := &Order{ID: "a3f1b2c4-0000-1111-2222-333344445555"}
	if got := o.DisplayID(); got != "ORD-A3F1B2C4" {
		t.Errorf("expected ORD-A3F1B2C4, got %s", got)
	}
}
