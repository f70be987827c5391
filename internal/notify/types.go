package notify

import (
	"context"
	"time"
)

// Entry is one queued notification. Entries sharing a GroupKey merge while
// un-drained and within the grouping window.
type Entry struct {
	ID       string    `json:"id"`
	TaskKey  string    `json:"task_key"`
	Title    string    `json:"title"`
	Message  string    `json:"message"`
	GroupKey string    `json:"group_key"`
	At       time.Time `json:"at"`
	Read     bool      `json:"read"`
}

// Sink presents one entry to the user. Fire-and-forget from the dispatcher's
// viewpoint: a failing sink is logged, never retried into the queue.
type Sink interface {
	Name() string
	Present(ctx context.Context, e Entry) error
}

// Preferences are read fresh at drain time so config edits apply without
// restart. When Enabled is false entries accumulate but are never drained.
type Preferences struct {
	Enabled  bool
	Grouping bool
}

// PreferenceSource supplies current preferences.
type PreferenceSource func() Preferences

// Config controls the dispatcher.
type Config struct {
	// GroupingWindow is the span within which same-group entries merge.
	GroupingWindow time.Duration
	// DrainInterval paces presentations: at most one per interval.
	DrainInterval time.Duration
	// QueueSize bounds un-drained entries; beyond it the oldest are evicted.
	QueueSize int
	// HistorySize bounds drained-entry retention.
	HistorySize int
}

// DispatchEvent is emitted on the event bus for notifier lifecycle events.
type DispatchEvent struct {
	EntryID  string    `json:"entry_id"`
	TaskKey  string    `json:"task_key"`
	GroupKey string    `json:"group_key"`
	At       time.Time `json:"at"`
	Sink     string    `json:"sink,omitempty"`
	Error    string    `json:"error,omitempty"`
}
