package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": JSON Lines files next to Path
//   - "sqlite": SQLite database file (build tag sqlite)
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
	Retain      int           // run records kept; 0 means DefaultRetain
}

const DefaultRetain = 10000

// Run kinds mirror the scheduler's lifecycle events.
const (
	RunRan       = "ran"
	RunCancelled = "cancelled"
	RunCleared   = "cleared"
)

// RunRecord is one lifecycle event of one job.
type RunRecord struct {
	ID        string    `json:"id"`
	Job       string    `json:"job"`
	JobID     string    `json:"job_id"`
	Kind      string    `json:"kind"`
	At        time.Time `json:"at"`
	TookMS    int64     `json:"took_ms,omitempty"`
	Error     string    `json:"error,omitempty"`
	CallCount int       `json:"call_count"`
	NextRun   time.Time `json:"next_run,omitempty"`
}

// AuditEntry records a daemon action (reload, run-all, alert).
// Keep it compact and schema-stable.
type AuditEntry struct {
	At       time.Time `json:"at"`
	Source   string    `json:"source"`
	Action   string    `json:"action"`
	Target   string    `json:"target,omitempty"`
	Error    string    `json:"error,omitempty"`
	MetaJSON string    `json:"meta,omitempty"`
}

func retainOrDefault(n int) int {
	if n <= 0 {
		return DefaultRetain
	}
	return n
}
