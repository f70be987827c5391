package tracker

import "time"

// Record is the canonical snapshot of a remote issue: the four watched
// scalar fields plus the ordered comment list.
type Record struct {
	Status     string    `json:"status"`
	Assignee   string    `json:"assignee"`
	Priority   string    `json:"priority"`
	Resolution string    `json:"resolution"`
	Comments   []Comment `json:"comments"`
}

type Comment struct {
	ID      string    `json:"id"`
	Author  string    `json:"author"`
	Body    string    `json:"body"`
	Created time.Time `json:"created"`
}

// ChangeKind is the closed set of detectable changes. Exhaustive switches
// over it keep an unrecognized kind from becoming a silent no-op.
type ChangeKind uint8

const (
	StatusChange ChangeKind = iota
	AssigneeChange
	PriorityChange
	ResolutionChange
	CommentAdded
)

func (k ChangeKind) String() string {
	switch k {
	case StatusChange:
		return "status"
	case AssigneeChange:
		return "assignee"
	case PriorityChange:
		return "priority"
	case ResolutionChange:
		return "resolution"
	case CommentAdded:
		return "comment"
	}
	return "unknown"
}

// FieldDelta is a before/after pair for one scalar field.
type FieldDelta struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Change is one detected change, tagged by kind. Delta is set for scalar
// kinds, Comments for CommentAdded.
type Change struct {
	Kind     ChangeKind
	Delta    FieldDelta
	Comments []Comment
}

// ChangeSet is the structured diff between two consecutive snapshots.
//
// When IsNew is set no prior snapshot existed; the scalar deltas then carry
// the full new snapshot in To with empty From.
type ChangeSet struct {
	IsNew      bool
	HasChanges bool

	Status     *FieldDelta
	Assignee   *FieldDelta
	Priority   *FieldDelta
	Resolution *FieldDelta

	// NewComments is the appended tail, original order preserved.
	NewComments []Comment
}

// Changes enumerates the set as tagged values, scalar deltas first, in a
// stable order.
func (cs *ChangeSet) Changes() []Change {
	if cs == nil {
		return nil
	}
	out := make([]Change, 0, 5)
	if cs.Status != nil {
		out = append(out, Change{Kind: StatusChange, Delta: *cs.Status})
	}
	if cs.Assignee != nil {
		out = append(out, Change{Kind: AssigneeChange, Delta: *cs.Assignee})
	}
	if cs.Priority != nil {
		out = append(out, Change{Kind: PriorityChange, Delta: *cs.Priority})
	}
	if cs.Resolution != nil {
		out = append(out, Change{Kind: ResolutionChange, Delta: *cs.Resolution})
	}
	if len(cs.NewComments) > 0 {
		out = append(out, Change{Kind: CommentAdded, Comments: cs.NewComments})
	}
	return out
}
