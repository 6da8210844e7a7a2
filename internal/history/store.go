// Package history archives finished jobs. An entry is captured at the moment
// a new submission displaces the job it describes, and is never mutated
// afterwards.
package history

import (
	"context"
	"time"

	"github.com/dubwatch/dubwatch/internal/job"
)

// Entry is the read-only archival record of one observed job.
type Entry struct {
	JobID          string       `json:"job_id"`
	Last           job.Snapshot `json:"last_status"`
	ElapsedSeconds int64        `json:"elapsed_seconds"`
	Error          string       `json:"error,omitempty"`
	FinishedAt     *time.Time   `json:"finished_at,omitempty"`
	ArchivedAt     time.Time    `json:"archived_at"`
}

// Store persists archived jobs. The API is append-only: entries can be added
// and listed but never removed or rewritten by callers.
type Store interface {
	Add(ctx context.Context, e Entry) error
	// List returns entries newest-first.
	List(ctx context.Context) ([]Entry, error)
}
