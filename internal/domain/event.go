package domain

// OrderEventKind classifies a change-feed event.
type OrderEventKind string

const (
	OrderEventCreated  OrderEventKind = "created"
	OrderEventUpdated  OrderEventKind = "updated"
	OrderEventReverted OrderEventKind = "reverted"
)

// OrderEvent is the payload published on the change feed whenever an order
// is created or mutated. Observers treat any event as a reload signal; the
// payload identifies what changed but carries no full row (reload-on-signal,
// not differential merge).
type OrderEvent struct {
	OrderID   string         `json:"order_id"`
	CompanyID string         `json:"company_id"`
	Status    OrderStatus    `json:"status"`
	DriverID  string         `json:"driver_id,omitempty"`
	Kind      OrderEventKind `json:"kind"`
}
