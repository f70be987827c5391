package monitor

import (
	"testing"
	"time"

	"pgregory.net/rapid"

	"issuewatch/internal/tracker"
)

// Whatever the task state, the computed delay stays inside the policy range.
func TestNextDelayAlwaysWithinBounds(t *testing.T) {
	t.Parallel()
	now := time.Now()

	rapid.Check(t, func(rt *rapid.T) {
		task := &Task{
			ConsecutiveErrors: rapid.IntRange(0, 64).Draw(rt, "errors"),
		}
		if rapid.Bool().Draw(rt, "has_snapshot") {
			task.Snapshot = &tracker.Record{Status: "Open"}
			ageSec := rapid.Int64Range(0, 90*24*3600).Draw(rt, "age_sec")
			task.LastChangeAt = now.Add(-time.Duration(ageSec) * time.Second)
		}

		got := NextDelay(task, now)
		if got < BaseDelay || got > MaxBackoff {
			t.Fatalf("NextDelay = %v, outside [%v, %v] for %+v", got, BaseDelay, MaxBackoff, task)
		}

		// Backoff dominance: with errors the delay is exactly the capped
		// exponential, regardless of activity tier.
		if k := task.ConsecutiveErrors; k > 0 {
			want := BaseDelay << uint(k) // 30s * 2^k
			if k > 4 || want > MaxBackoff {
				want = MaxBackoff
			}
			if got != want {
				t.Fatalf("NextDelay = %v, want backoff %v for k=%d", got, want, k)
			}
		}
	})
}
