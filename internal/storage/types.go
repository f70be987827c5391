package storage

import (
	"errors"
	"time"

	"issuewatch/internal/tracker"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": dependency-free file backend (snapshot + jsonl journal)
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// TaskRecord is the serialized shape of a monitored task.
// Keep it compact and schema-stable.
type TaskRecord struct {
	ID       string `json:"id"`
	Source   string `json:"source"`
	Endpoint string `json:"endpoint"`
	Status   string `json:"status"`

	CreatedAt         time.Time `json:"created_at"`
	LastCheckAt       time.Time `json:"last_check_at"`
	LastChangeAt      time.Time `json:"last_change_at"`
	ConsecutiveErrors int       `json:"consecutive_errors"`

	Snapshot *tracker.Record `json:"snapshot,omitempty"`
}
