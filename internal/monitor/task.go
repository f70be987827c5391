package monitor

import (
	"fmt"
	"time"

	"issuewatch/internal/storage"
	"issuewatch/internal/tracker"
)

// Status is a task's lifecycle state.
//
//	Added -> Monitoring -> Completed (terminal predicate satisfied)
//	Added -> Monitoring -> Removed  (explicit user action)
type Status string

const (
	StatusAdded      Status = "added"
	StatusMonitoring Status = "monitoring"
	StatusCompleted  Status = "completed"
	StatusRemoved    Status = "removed"
)

// Terminal reports whether monitoring is permanently over for this status.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusRemoved
}

// Task is one remote issue under periodic monitoring.
//
// A task is mutated once per monitor cycle and persisted after every
// mutation; LastChangeAt (not LastCheckAt) drives the activity tiers.
type Task struct {
	ID       string
	Source   string
	Endpoint string
	Status   Status

	CreatedAt         time.Time
	LastCheckAt       time.Time
	LastChangeAt      time.Time
	ConsecutiveErrors int

	// Snapshot is the cached last-known record; overwritten only when a
	// cycle detects changes or on the first successful fetch.
	Snapshot *tracker.Record
}

func (t *Task) clone() *Task {
	cp := *t
	return &cp
}

func (t *Task) toRecord() storage.TaskRecord {
	return storage.TaskRecord{
		ID:                t.ID,
		Source:            t.Source,
		Endpoint:          t.Endpoint,
		Status:            string(t.Status),
		CreatedAt:         t.CreatedAt,
		LastCheckAt:       t.LastCheckAt,
		LastChangeAt:      t.LastChangeAt,
		ConsecutiveErrors: t.ConsecutiveErrors,
		Snapshot:          t.Snapshot,
	}
}

func taskFromRecord(rec storage.TaskRecord) (*Task, error) {
	switch Status(rec.Status) {
	case StatusAdded, StatusMonitoring, StatusCompleted, StatusRemoved:
	default:
		return nil, fmt.Errorf("task %s: unknown status %q", rec.ID, rec.Status)
	}
	return &Task{
		ID:                rec.ID,
		Source:            rec.Source,
		Endpoint:          rec.Endpoint,
		Status:            Status(rec.Status),
		CreatedAt:         rec.CreatedAt,
		LastCheckAt:       rec.LastCheckAt,
		LastChangeAt:      rec.LastChangeAt,
		ConsecutiveErrors: rec.ConsecutiveErrors,
		Snapshot:          rec.Snapshot,
	}, nil
}

// ValidationError is returned from Add when the remote resource is
// unreachable or malformed; the task is never registered.
type ValidationError struct {
	Source string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validate %s: %v", e.Source, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }
