package monitor

import "time"

// Poll policy. These are fixed policy values, not tunables: the whole delay
// range is clamped to [BaseDelay, MaxBackoff].
const (
	// BaseDelay is both the first-check delay and the backoff base.
	BaseDelay = 30 * time.Second
	// MaxBackoff caps the error backoff and is also the idle-tier delay.
	MaxBackoff = 15 * time.Minute

	activeTierDelay = 30 * time.Second
	normalTierDelay = 5 * time.Minute
	idleTierDelay   = 15 * time.Minute

	activeWindow = time.Hour
	normalWindow = 24 * time.Hour
)

// NextDelay computes the delay before the next poll of a task. Pure function
// of task state; no side effects.
//
// Policy, in priority order:
//  1. consecutive errors k > 0: min(BaseDelay * 2^k, MaxBackoff). Backoff
//     always dominates; an erroring task never polls faster than its
//     backoff, whatever its activity tier.
//  2. no prior snapshot: BaseDelay (the task's first check).
//  3. otherwise tier on time since the record last *changed* (not last
//     polled): <1h active, <24h normal, else idle.
//
// The result always lies in [BaseDelay, MaxBackoff].
func NextDelay(t *Task, now time.Time) time.Duration {
	if k := t.ConsecutiveErrors; k > 0 {
		d := BaseDelay
		for i := 0; i < k; i++ {
			d *= 2
			if d >= MaxBackoff {
				return MaxBackoff
			}
		}
		return d
	}

	if t.Snapshot == nil {
		return BaseDelay
	}

	elapsed := now.Sub(t.LastChangeAt)
	switch {
	case elapsed < activeWindow:
		return activeTierDelay
	case elapsed < normalWindow:
		return normalTierDelay
	default:
		return idleTierDelay
	}
}
