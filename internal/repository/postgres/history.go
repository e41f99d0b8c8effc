package postgres

import (
	"context"
	"database/sql"

	"dispatch/internal/domain"
)

// HistoryRepository is a PostgreSQL implementation of repository.HistoryRepository.
// History rows are written by OrderRepository inside its mutation
// transactions; this repository only reads them back for the audit endpoint.
type HistoryRepository struct {
	db *sql.DB
}

// NewHistoryRepository creates a new PostgreSQL history repository.
func NewHistoryRepository(db *sql.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// ListByOrder retrieves an order's history entries, oldest first.
func (r *HistoryRepository) ListByOrder(ctx context.Context, orderID string) ([]*domain.HistoryEntry, error) {
	query := `
		SELECT id, order_id, status, actor, note, recorded_at
		FROM order_history WHERE order_id = $1 ORDER BY recorded_at ASC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*domain.HistoryEntry
	for rows.Next() {
		var entry domain.HistoryEntry
		var actor, note sql.NullString
		if err := rows.Scan(&entry.ID, &entry.OrderID, &entry.Status, &actor, &note, &entry.RecordedAt); err != nil {
			return nil, err
		}
		if actor.Valid {
			entry.Actor = actor.String
		}
		if note.Valid {
			entry.Note = note.String
		}
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}
