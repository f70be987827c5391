package tracker

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Wire shape of the issue document. Only the parts we extract are declared;
// the rest of the remote schema is opaque to us.
type wireIssue struct {
	Fields *wireFields `json:"fields"`
}

type wireFields struct {
	Status     *wireNamed   `json:"status"`
	Assignee   *wireUser    `json:"assignee"`
	Priority   *wireNamed   `json:"priority"`
	Resolution *wireNamed   `json:"resolution"`
	Comment    *wireComment `json:"comment"`
}

type wireNamed struct {
	Name string `json:"name"`
}

type wireUser struct {
	DisplayName string `json:"displayName"`
}

type wireComment struct {
	Comments []wireCommentItem `json:"comments"`
}

type wireCommentItem struct {
	ID      string    `json:"id"`
	Author  *wireUser `json:"author"`
	Body    string    `json:"body"`
	Created string    `json:"created"`
}

// Issue timestamps come in either RFC3339 or the tracker's legacy offset
// format without a colon.
var commentTimeFormats = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.000-0700",
}

// parseRecord maps an issue document onto a Record. A structurally missing
// status is an error; assignee/priority/resolution may legitimately be null
// and map to the empty string.
func parseRecord(body []byte) (*Record, error) {
	var doc wireIssue
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, err
	}
	if doc.Fields == nil {
		return nil, errors.New("document has no fields object")
	}
	if doc.Fields.Status == nil || strings.TrimSpace(doc.Fields.Status.Name) == "" {
		return nil, errors.New("document has no status field")
	}

	rec := &Record{
		Status: doc.Fields.Status.Name,
	}
	if doc.Fields.Assignee != nil {
		rec.Assignee = doc.Fields.Assignee.DisplayName
	}
	if doc.Fields.Priority != nil {
		rec.Priority = doc.Fields.Priority.Name
	}
	if doc.Fields.Resolution != nil {
		rec.Resolution = doc.Fields.Resolution.Name
	}

	if doc.Fields.Comment != nil {
		rec.Comments = make([]Comment, 0, len(doc.Fields.Comment.Comments))
		for i, c := range doc.Fields.Comment.Comments {
			created, err := parseCommentTime(c.Created)
			if err != nil {
				return nil, fmt.Errorf("comment %d: %w", i, err)
			}
			cm := Comment{ID: c.ID, Body: c.Body, Created: created}
			if c.Author != nil {
				cm.Author = c.Author.DisplayName
			}
			rec.Comments = append(rec.Comments, cm)
		}
	}
	return rec, nil
}

func parseCommentTime(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, nil
	}
	var lastErr error
	for _, f := range commentTimeFormats {
		t, err := time.Parse(f, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, fmt.Errorf("invalid created time %q: %w", raw, lastErr)
}
