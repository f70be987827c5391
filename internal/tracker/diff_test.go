package tracker

import (
	"testing"
	"time"
)

func rec(status, assignee, priority, resolution string, comments ...Comment) *Record {
	return &Record{
		Status:     status,
		Assignee:   assignee,
		Priority:   priority,
		Resolution: resolution,
		Comments:   comments,
	}
}

func TestDiffFirstFetchIsNew(t *testing.T) {
	t.Parallel()
	cur := rec("Open", "Ada", "High", "", Comment{ID: "1", Body: "first"})

	cs := Diff(nil, cur)
	if !cs.IsNew || !cs.HasChanges {
		t.Fatalf("IsNew=%v HasChanges=%v, want both true", cs.IsNew, cs.HasChanges)
	}
	if cs.Status == nil || cs.Status.From != "" || cs.Status.To != "Open" {
		t.Fatalf("Status delta = %+v, want empty->Open", cs.Status)
	}
	if cs.Assignee == nil || cs.Assignee.To != "Ada" {
		t.Fatalf("Assignee delta = %+v", cs.Assignee)
	}
	if len(cs.NewComments) != 1 || cs.NewComments[0].ID != "1" {
		t.Fatalf("NewComments = %+v", cs.NewComments)
	}
}

func TestDiffScalarChanges(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		prev *Record
		cur  *Record
		want func(t *testing.T, cs *ChangeSet)
	}{
		{
			name: "single status change",
			prev: rec("Open", "Ada", "High", ""),
			cur:  rec("In Progress", "Ada", "High", ""),
			want: func(t *testing.T, cs *ChangeSet) {
				if !cs.HasChanges || cs.IsNew {
					t.Fatalf("HasChanges=%v IsNew=%v", cs.HasChanges, cs.IsNew)
				}
				if cs.Status == nil || cs.Status.From != "Open" || cs.Status.To != "In Progress" {
					t.Fatalf("Status = %+v", cs.Status)
				}
				if cs.Assignee != nil || cs.Priority != nil || cs.Resolution != nil {
					t.Fatal("unchanged fields must have nil deltas")
				}
			},
		},
		{
			name: "assignee set from unassigned",
			prev: rec("Open", "", "High", ""),
			cur:  rec("Open", "Ada", "High", ""),
			want: func(t *testing.T, cs *ChangeSet) {
				if cs.Assignee == nil || cs.Assignee.From != "" || cs.Assignee.To != "Ada" {
					t.Fatalf("Assignee = %+v", cs.Assignee)
				}
			},
		},
		{
			name: "comparison is case sensitive",
			prev: rec("Open", "ada", "High", ""),
			cur:  rec("Open", "Ada", "High", ""),
			want: func(t *testing.T, cs *ChangeSet) {
				if cs.Assignee == nil {
					t.Fatal("case-differing values must produce a delta")
				}
			},
		},
		{
			name: "multiple simultaneous changes",
			prev: rec("Open", "Ada", "High", ""),
			cur:  rec("Resolved", "Ada", "Low", "Fixed"),
			want: func(t *testing.T, cs *ChangeSet) {
				got := cs.Changes()
				if len(got) != 3 {
					t.Fatalf("changes = %d, want 3", len(got))
				}
				// Stable enumeration order: status, priority, resolution.
				order := []ChangeKind{StatusChange, PriorityChange, ResolutionChange}
				for i, c := range got {
					if c.Kind != order[i] {
						t.Fatalf("change %d kind = %v, want %v", i, c.Kind, order[i])
					}
				}
			},
		},
		{
			name: "identical records produce no changes",
			prev: rec("Open", "Ada", "High", ""),
			cur:  rec("Open", "Ada", "High", ""),
			want: func(t *testing.T, cs *ChangeSet) {
				if cs.HasChanges {
					t.Fatalf("HasChanges = true for identical records: %+v", cs)
				}
				if len(cs.Changes()) != 0 {
					t.Fatalf("Changes = %+v, want empty", cs.Changes())
				}
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			tt.want(t, Diff(tt.prev, tt.cur))
		})
	}
}

func TestDiffCommentTail(t *testing.T) {
	t.Parallel()
	now := time.Now()
	c1 := Comment{ID: "1", Author: "ada", Body: "first", Created: now}
	c2 := Comment{ID: "2", Author: "bob", Body: "second", Created: now}
	c3 := Comment{ID: "3", Author: "ada", Body: "third", Created: now}

	prev := rec("Open", "", "", "", c1)
	cur := rec("Open", "", "", "", c1, c2, c3)

	cs := Diff(prev, cur)
	if !cs.HasChanges {
		t.Fatal("grown comment list must be a change")
	}
	if len(cs.NewComments) != 2 || cs.NewComments[0].ID != "2" || cs.NewComments[1].ID != "3" {
		t.Fatalf("NewComments = %+v, want tail [2 3] in order", cs.NewComments)
	}
}

func TestDiffCommentLengthHeuristicLimits(t *testing.T) {
	t.Parallel()
	c1 := Comment{ID: "1", Body: "original"}
	edited := Comment{ID: "1", Body: "edited"}

	// Same length: edits are invisible.
	cs := Diff(rec("Open", "", "", "", c1), rec("Open", "", "", "", edited))
	if cs.HasChanges {
		t.Fatalf("edit with equal length must not be detected: %+v", cs)
	}

	// Shrunk list: deletions are invisible.
	cs = Diff(rec("Open", "", "", "", c1, Comment{ID: "2"}), rec("Open", "", "", "", c1))
	if cs.HasChanges {
		t.Fatalf("comment deletion must not be detected: %+v", cs)
	}
}

func TestDiffNilCurrent(t *testing.T) {
	t.Parallel()
	cs := Diff(rec("Open", "", "", ""), nil)
	if cs.HasChanges || cs.IsNew {
		t.Fatalf("nil current record must be a no-op: %+v", cs)
	}
}
