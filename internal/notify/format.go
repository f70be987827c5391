package notify

import (
	"fmt"
	"strings"
	"time"

	"issuewatch/internal/tracker"
)

// FromChangeSet builds the notification entry for one detected change-set.
// The group key is the task key, which is what the grouping rule merges on.
func FromChangeSet(taskKey string, cs *tracker.ChangeSet, at time.Time) Entry {
	title := taskKey + " updated"
	if cs.IsNew {
		title = taskKey + " is now monitored"
	}
	return Entry{
		TaskKey:  taskKey,
		Title:    title,
		Message:  renderChanges(cs),
		GroupKey: taskKey,
		At:       at,
	}
}

// Degraded builds the rate-limited notification emitted when a task exceeds
// its consecutive-error ceiling.
func Degraded(taskKey string, consecutive int, err error, at time.Time) Entry {
	return Entry{
		TaskKey:  taskKey,
		Title:    taskKey + " checks failing",
		Message:  fmt.Sprintf("%d consecutive failed checks; last error: %v. Monitoring continues with backoff.", consecutive, err),
		GroupKey: taskKey,
		At:       at,
	}
}

func renderChanges(cs *tracker.ChangeSet) string {
	var b strings.Builder
	for _, ch := range cs.Changes() {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		switch ch.Kind {
		case tracker.StatusChange:
			writeDelta(&b, "Status", ch.Delta, cs.IsNew)
		case tracker.AssigneeChange:
			writeDelta(&b, "Assignee", ch.Delta, cs.IsNew)
		case tracker.PriorityChange:
			writeDelta(&b, "Priority", ch.Delta, cs.IsNew)
		case tracker.ResolutionChange:
			writeDelta(&b, "Resolution", ch.Delta, cs.IsNew)
		case tracker.CommentAdded:
			if n := len(ch.Comments); n == 1 {
				c := ch.Comments[0]
				fmt.Fprintf(&b, "New comment by %s: %s", orUnset(c.Author), excerpt(c.Body, 120))
			} else {
				fmt.Fprintf(&b, "%d new comments (latest by %s)", n, orUnset(ch.Comments[n-1].Author))
			}
		default:
			// Closed set; a new kind must be handled above.
			fmt.Fprintf(&b, "Unhandled change kind %d", ch.Kind)
		}
	}
	return b.String()
}

func writeDelta(b *strings.Builder, label string, d tracker.FieldDelta, isNew bool) {
	if isNew {
		fmt.Fprintf(b, "%s: %s", label, orUnset(d.To))
		return
	}
	fmt.Fprintf(b, "%s: %s -> %s", label, orUnset(d.From), orUnset(d.To))
}

func orUnset(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(none)"
	}
	return s
}

func excerpt(s string, maxN int) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\n", " "))
	if len(s) <= maxN {
		return s
	}
	if maxN < 4 {
		return s[:maxN]
	}
	return s[:maxN-3] + "..."
}
