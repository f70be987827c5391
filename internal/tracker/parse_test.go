package tracker

import (
	"testing"
	"time"
)

const fullDoc = `{
  "fields": {
    "status": {"name": "In Progress"},
    "assignee": {"displayName": "Ada Lovelace"},
    "priority": {"name": "High"},
    "resolution": null,
    "comment": {
      "comments": [
        {"id": "10001", "author": {"displayName": "Bob"}, "body": "looking into it", "created": "2026-08-20T10:15:00.000+0200"},
        {"id": "10002", "author": {"displayName": "Ada Lovelace"}, "body": "fixed in branch", "created": "2026-08-21T08:00:00Z"}
      ]
    }
  }
}`

func TestParseRecordFullDocument(t *testing.T) {
	t.Parallel()
	rec, err := parseRecord([]byte(fullDoc))
	if err != nil {
		t.Fatalf("parseRecord: %v", err)
	}
	if rec.Status != "In Progress" {
		t.Fatalf("Status = %q", rec.Status)
	}
	if rec.Assignee != "Ada Lovelace" {
		t.Fatalf("Assignee = %q", rec.Assignee)
	}
	if rec.Priority != "High" {
		t.Fatalf("Priority = %q", rec.Priority)
	}
	if rec.Resolution != "" {
		t.Fatalf("Resolution = %q, want empty for null", rec.Resolution)
	}
	if len(rec.Comments) != 2 {
		t.Fatalf("Comments = %d, want 2", len(rec.Comments))
	}
	if rec.Comments[0].Author != "Bob" || rec.Comments[0].ID != "10001" {
		t.Fatalf("first comment = %+v", rec.Comments[0])
	}
	// Legacy offset format without colon must parse.
	want := time.Date(2026, 8, 20, 10, 15, 0, 0, time.FixedZone("", 2*3600))
	if !rec.Comments[0].Created.Equal(want) {
		t.Fatalf("first comment time = %v, want %v", rec.Comments[0].Created, want)
	}
}

func TestParseRecordErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: `<html>down</html>`},
		{name: "no fields object", body: `{"key": "PROJ-1"}`},
		{name: "null status", body: `{"fields": {"status": null}}`},
		{name: "blank status name", body: `{"fields": {"status": {"name": "  "}}}`},
		{name: "bad comment time", body: `{"fields": {"status": {"name": "Open"}, "comment": {"comments": [{"id": "1", "created": "yesterday"}]}}}`},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseRecord([]byte(tt.body)); err == nil {
				t.Fatalf("expected error for %s", tt.name)
			}
		})
	}
}

func TestParseRecordMinimalDocument(t *testing.T) {
	t.Parallel()
	rec, err := parseRecord([]byte(`{"fields": {"status": {"name": "Open"}}}`))
	if err != nil {
		t.Fatalf("parseRecord: %v", err)
	}
	if rec.Status != "Open" || rec.Assignee != "" || rec.Priority != "" || rec.Resolution != "" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if len(rec.Comments) != 0 {
		t.Fatalf("Comments = %+v, want none", rec.Comments)
	}
}

func TestParseCommentTimeEmpty(t *testing.T) {
	t.Parallel()
	got, err := parseCommentTime("   ")
	if err != nil {
		t.Fatalf("parseCommentTime: %v", err)
	}
	if !got.IsZero() {
		t.Fatalf("got %v, want zero time", got)
	}
}
