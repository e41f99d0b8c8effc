package repository

import (
	"context"
	"time"

	"dispatch/internal/domain"
)

// OrderRepository defines the persistence operations for orders.
//
// Every mutation that changes status or assignment refreshes updated_at and
// appends a history entry in the same transaction. Accept, AdvanceStatus and
// RevertAssignment are conditional writes: they succeed only if the row
// still matches the expected prior status, and return ErrConflict otherwise.
type OrderRepository interface {
	// Create persists a new order in PENDING status together with its
	// implicit creation history entry. Actor is the creating dispatcher's
	// id and may be empty.
	Create(ctx context.Context, order *domain.Order, actor string) error

	// GetByID retrieves an order by ID.
	GetByID(ctx context.Context, id string) (*domain.Order, error)

	// ListByCompany retrieves a company's orders, newest first.
	ListByCompany(ctx context.Context, companyID string) ([]*domain.Order, error)

	// ListOpenByCompany retrieves a company's non-delivered orders.
	ListOpenByCompany(ctx context.Context, companyID string) ([]*domain.Order, error)

	// ListStaleAssigned retrieves orders stuck in ASSIGNED whose updated_at
	// is older than the given instant.
	ListStaleAssigned(ctx context.Context, olderThan time.Time) ([]*domain.Order, error)

	// Accept atomically claims a PENDING order for a driver
	// ("set ASSIGNED where status = PENDING"). Exactly one of two racing
	// accepts succeeds; the loser gets ErrConflict.
	Accept(ctx context.Context, orderID, driverID string, at time.Time) error

	// AdvanceStatus moves an order from one status to its successor,
	// conditioned on the row still being in the from status. Actor is the
	// driver performing the advance.
	AdvanceStatus(ctx context.Context, orderID string, from, to domain.OrderStatus, actor string, at time.Time) error

	// RevertAssignment returns an ASSIGNED order to PENDING, clearing the
	// driver binding, with a system-tagged history entry. Idempotent under
	// racing sweeps: a second revert finds no ASSIGNED row and conflicts.
	RevertAssignment(ctx context.Context, orderID string, at time.Time) error
}

// HistoryRepository defines read access to the append-only audit trail.
type HistoryRepository interface {
	// ListByOrder retrieves an order's history entries, oldest first.
	ListByOrder(ctx context.Context, orderID string) ([]*domain.HistoryEntry, error)
}
