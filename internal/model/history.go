package model

import "time"

// HistoryEntry is one row of a query's append-only audit log.
// Entries are never mutated or reordered, only appended.
type HistoryEntry struct {
	ID        int64     `json:"id"`
	QueryID   int64     `json:"query_id"`
	Action    string    `json:"action"`
	Actor     *string   `json:"actor,omitempty"` // nil = system
	Note      string    `json:"note"`
	CreatedAt time.Time `json:"created_at"`
}
