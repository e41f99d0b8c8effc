package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

// OrderRepository is a PostgreSQL implementation of repository.OrderRepository.
// Mutations that pair a status change with a history entry run inside a
// transaction so the audit trail can never drift from the order row.
type OrderRepository struct {
	db *sql.DB
}

// NewOrderRepository creates a new PostgreSQL order repository.
func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

const orderColumns = `id, company_id, status, driver_id, pickup_address, pickup_lat, pickup_lng, delivery_address, delivery_lat, delivery_lng, price, pickup_code, created_at, updated_at`

// Create persists a new order and its implicit creation history entry.
func (r *OrderRepository) Create(ctx context.Context, order *domain.Order, actor string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	var driverID sql.NullString
	if order.DriverID != "" {
		driverID = sql.NullString{String: order.DriverID, Valid: true}
	}

	pickupLat, pickupLng := coordColumns(order.PickupCoord)
	deliveryLat, deliveryLng := coordColumns(order.DeliveryCoord)

	if _, err = tx.ExecContext(ctx, query,
		order.ID,
		order.CompanyID,
		order.Status,
		driverID,
		order.PickupAddress,
		pickupLat,
		pickupLng,
		order.DeliveryAddress,
		deliveryLat,
		deliveryLng,
		order.Price,
		order.PickupCode,
		order.CreatedAt,
		order.UpdatedAt,
	); err != nil {
		return err
	}

	if err = insertHistory(ctx, tx, order.ID, order.Status, actor, "", order.CreatedAt); err != nil {
		return err
	}

	return tx.Commit()
}

// GetByID retrieves an order by ID.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	return scanOrder(r.db.QueryRowContext(ctx, query, id))
}

// ListByCompany retrieves a company's orders, newest first.
func (r *OrderRepository) ListByCompany(ctx context.Context, companyID string) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE company_id = $1 ORDER BY created_at DESC LIMIT 200`
	return r.queryOrders(ctx, query, companyID)
}

// ListOpenByCompany retrieves a company's non-delivered orders.
func (r *OrderRepository) ListOpenByCompany(ctx context.Context, companyID string) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE company_id = $1 AND status <> $2 ORDER BY created_at DESC LIMIT 200`
	return r.queryOrders(ctx, query, companyID, domain.OrderStatusDelivered)
}

// ListStaleAssigned retrieves orders stuck in ASSIGNED past the deadline.
func (r *OrderRepository) ListStaleAssigned(ctx context.Context, olderThan time.Time) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE status = $1 AND updated_at < $2 ORDER BY updated_at ASC`
	return r.queryOrders(ctx, query, domain.OrderStatusAssigned, olderThan)
}

// Accept claims a PENDING order for a driver with a conditional write.
func (r *OrderRepository) Accept(ctx context.Context, orderID, driverID string, at time.Time) error {
	return r.mutate(ctx, orderID, func(tx *sql.Tx) (sql.Result, error) {
		return tx.ExecContext(ctx, `
			UPDATE orders SET status = $1, driver_id = $2, updated_at = $3
			WHERE id = $4 AND status = $5
		`, domain.OrderStatusAssigned, driverID, at, orderID, domain.OrderStatusPending)
	}, func(tx *sql.Tx) error {
		return insertHistory(ctx, tx, orderID, domain.OrderStatusAssigned, driverID, "", at)
	})
}

// AdvanceStatus moves an order to its successor status with a conditional write.
func (r *OrderRepository) AdvanceStatus(ctx context.Context, orderID string, from, to domain.OrderStatus, actor string, at time.Time) error {
	return r.mutate(ctx, orderID, func(tx *sql.Tx) (sql.Result, error) {
		return tx.ExecContext(ctx, `
			UPDATE orders SET status = $1, updated_at = $2
			WHERE id = $3 AND status = $4
		`, to, at, orderID, from)
	}, func(tx *sql.Tx) error {
		return insertHistory(ctx, tx, orderID, to, actor, "", at)
	})
}

// RevertAssignment returns an ASSIGNED order to PENDING and clears the driver.
func (r *OrderRepository) RevertAssignment(ctx context.Context, orderID string, at time.Time) error {
	return r.mutate(ctx, orderID, func(tx *sql.Tx) (sql.Result, error) {
		return tx.ExecContext(ctx, `
			UPDATE orders SET status = $1, driver_id = NULL, updated_at = $2
			WHERE id = $3 AND status = $4
		`, domain.OrderStatusPending, at, orderID, domain.OrderStatusAssigned)
	}, func(tx *sql.Tx) error {
		return insertHistory(ctx, tx, orderID, domain.OrderStatusPending, "", domain.NoteAssignmentTimeout, at)
	})
}

// mutate runs a conditional UPDATE plus its history append in one
// transaction. Zero rows affected means the condition failed: a follow-up
// read distinguishes a missing row (ErrNotFound) from a lost race
// (ErrConflict).
func (r *OrderRepository) mutate(ctx context.Context, orderID string, update func(*sql.Tx) (sql.Result, error), history func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	result, err := update(tx)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if affected == 0 {
		_ = tx.Rollback()
		var exists bool
		if scanErr := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)`, orderID).Scan(&exists); scanErr != nil {
			return scanErr
		}
		if !exists {
			return repository.ErrNotFound
		}
		return repository.ErrConflict
	}

	if err = history(tx); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *OrderRepository) queryOrders(ctx context.Context, query string, args ...any) ([]*domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		order, err := scanOrderRow(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row *sql.Row) (*domain.Order, error) {
	order, err := scanOrderRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return order, nil
}

func scanOrderRow(row rowScanner) (*domain.Order, error) {
	var order domain.Order
	var driverID sql.NullString
	var pickupLat, pickupLng, deliveryLat, deliveryLng sql.NullFloat64

	if err := row.Scan(
		&order.ID,
		&order.CompanyID,
		&order.Status,
		&driverID,
		&order.PickupAddress,
		&pickupLat,
		&pickupLng,
		&order.DeliveryAddress,
		&deliveryLat,
		&deliveryLng,
		&order.Price,
		&order.PickupCode,
		&order.CreatedAt,
		&order.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if driverID.Valid {
		order.DriverID = driverID.String
	}
	order.PickupCoord = coordFromColumns(pickupLat, pickupLng)
	order.DeliveryCoord = coordFromColumns(deliveryLat, deliveryLng)

	return &order, nil
}

func coordColumns(c *domain.Coordinate) (sql.NullFloat64, sql.NullFloat64) {
	if c == nil {
		return sql.NullFloat64{}, sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: c.Lat, Valid: true}, sql.NullFloat64{Float64: c.Lng, Valid: true}
}

func coordFromColumns(lat, lng sql.NullFloat64) *domain.Coordinate {
	if !lat.Valid || !lng.Valid {
		return nil
	}
	return &domain.Coordinate{Lat: lat.Float64, Lng: lng.Float64}
}

func insertHistory(ctx context.Context, q Querier, orderID string, status domain.OrderStatus, actor, note string, at time.Time) error {
	var actorCol, noteCol sql.NullString
	if actor != "" {
		actorCol = sql.NullString{String: actor, Valid: true}
	}
	if note != "" {
		noteCol = sql.NullString{String: note, Valid: true}
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO order_history (id, order_id, status, actor, note, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.New().String(), orderID, status, actorCol, noteCol, at)
	return err
}
