package monitor

import (
	"testing"
	"time"

	"issuewatch/internal/tracker"
)

func TestNextDelayTiers(t *testing.T) {
	t.Parallel()
	now := time.Now()
	snap := &tracker.Record{Status: "Open"}

	tests := []struct {
		name string
		task Task
		want time.Duration
	}{
		{
			name: "no snapshot means first check",
			task: Task{},
			want: BaseDelay,
		},
		{
			name: "changed recently is active tier",
			task: Task{Snapshot: snap, LastChangeAt: now.Add(-10 * time.Minute)},
			want: 30 * time.Second,
		},
		{
			name: "active tier boundary is exclusive",
			task: Task{Snapshot: snap, LastChangeAt: now.Add(-time.Hour)},
			want: 5 * time.Minute,
		},
		{
			name: "changed within a day is normal tier",
			task: Task{Snapshot: snap, LastChangeAt: now.Add(-6 * time.Hour)},
			want: 5 * time.Minute,
		},
		{
			name: "stale task is idle tier",
			task: Task{Snapshot: snap, LastChangeAt: now.Add(-48 * time.Hour)},
			want: 15 * time.Minute,
		},
		{
			name: "one error doubles base",
			task: Task{Snapshot: snap, ConsecutiveErrors: 1, LastChangeAt: now},
			want: time.Minute,
		},
		{
			name: "three errors",
			task: Task{Snapshot: snap, ConsecutiveErrors: 3, LastChangeAt: now},
			want: 4 * time.Minute,
		},
		{
			name: "backoff caps at max",
			task: Task{Snapshot: snap, ConsecutiveErrors: 10, LastChangeAt: now},
			want: MaxBackoff,
		},
		{
			name: "backoff applies without snapshot too",
			task: Task{ConsecutiveErrors: 2},
			want: 2 * time.Minute,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := NextDelay(&tt.task, now)
			if got != tt.want {
				t.Fatalf("NextDelay = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNextDelayBackoffDominatesActivity(t *testing.T) {
	t.Parallel()
	now := time.Now()
	// An active task with errors must back off, never poll at the active rate.
	task := &Task{
		Snapshot:          &tracker.Record{Status: "Open"},
		LastChangeAt:      now.Add(-time.Minute),
		ConsecutiveErrors: 3,
	}
	got := NextDelay(task, now)
	if got != 4*time.Minute {
		t.Fatalf("NextDelay = %v, want %v", got, 4*time.Minute)
	}
}
