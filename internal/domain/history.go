package domain

import "time"

// NoteAssignmentTimeout tags history entries written by the timeout sweeper.
const NoteAssignmentTimeout = "assignment timeout"

// HistoryEntry is one append-only, write-once audit record of a status
// change. Actor is the driver or dispatcher id, or empty for
// system-initiated reverts. The core never reads these back; they exist
// purely as an audit trail.
type HistoryEntry struct {
	ID         string
	OrderID    string
	Status     OrderStatus
	Actor      string
	Note       string
	RecordedAt time.Time
}

// IsSystemRevert reports whether the entry was written by the timeout
// sweeper rather than an acting user.
func (e *HistoryEntry) IsSystemRevert() bool {
	return e.Actor == "" && e.Note == NoteAssignmentTimeout
}
