package tracker

import (
	"context"
	"sync"

	"issuewatch/pkg/logx"
)

// Engine runs fetch-and-diff cycles and owns the per-task snapshot cache.
//
// Side effect discipline: the engine mutates only this cache, and only when a
// cycle detects changes (or on first successful fetch). Persisting snapshots
// is the orchestrator's job.
type Engine struct {
	client *Client
	log    logx.Logger

	mu    sync.Mutex
	cache map[string]*Record
}

func NewEngine(client *Client, log logx.Logger) *Engine {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Engine{
		client: client,
		log:    log,
		cache:  map[string]*Record{},
	}
}

// Seed installs a previously persisted snapshot, used when resuming tasks
// across a restart so the first cycle diffs against real history.
func (e *Engine) Seed(taskID string, rec *Record) {
	if rec == nil {
		return
	}
	e.mu.Lock()
	e.cache[taskID] = rec
	e.mu.Unlock()
}

// Forget drops a task's cached snapshot (task removal).
func (e *Engine) Forget(taskID string) {
	e.mu.Lock()
	delete(e.cache, taskID)
	e.mu.Unlock()
}

// Snapshot returns the current cached record for a task, or nil.
func (e *Engine) Snapshot(taskID string) *Record {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cache[taskID]
}

// FetchAndDiff runs one cycle for a task: retrieve, parse, diff against the
// cached prior snapshot. On HasChanges the cache is replaced with the new
// record; on a no-change cycle the cache is left untouched, so a repeated
// no-op fetch is idempotent. Fetch/parse failures leave the cache unmodified.
func (e *Engine) FetchAndDiff(ctx context.Context, taskID, endpoint string) (*ChangeSet, *Record, error) {
	rec, err := e.client.FetchRecord(ctx, endpoint)
	if err != nil {
		return nil, nil, err
	}

	e.mu.Lock()
	prior := e.cache[taskID]
	cs := Diff(prior, rec)
	if cs.HasChanges {
		e.cache[taskID] = rec
	}
	e.mu.Unlock()

	return cs, rec, nil
}

// Diff computes the change-set between two consecutive snapshots.
//
// Scalar fields are compared by case-sensitive value equality. Comments are
// diffed by length only: when the list grows, the appended tail is reported
// in original order. Comment edits and deletions are NOT detected. That is a
// documented limitation of the length-only heuristic, kept as-is rather than
// silently strengthened into content hashing.
func Diff(prev, cur *Record) *ChangeSet {
	cs := &ChangeSet{}
	if cur == nil {
		return cs
	}

	if prev == nil {
		cs.IsNew = true
		cs.HasChanges = true
		cs.Status = &FieldDelta{To: cur.Status}
		cs.Assignee = &FieldDelta{To: cur.Assignee}
		cs.Priority = &FieldDelta{To: cur.Priority}
		cs.Resolution = &FieldDelta{To: cur.Resolution}
		if len(cur.Comments) > 0 {
			cs.NewComments = append([]Comment(nil), cur.Comments...)
		}
		return cs
	}

	if prev.Status != cur.Status {
		cs.Status = &FieldDelta{From: prev.Status, To: cur.Status}
		cs.HasChanges = true
	}
	if prev.Assignee != cur.Assignee {
		cs.Assignee = &FieldDelta{From: prev.Assignee, To: cur.Assignee}
		cs.HasChanges = true
	}
	if prev.Priority != cur.Priority {
		cs.Priority = &FieldDelta{From: prev.Priority, To: cur.Priority}
		cs.HasChanges = true
	}
	if prev.Resolution != cur.Resolution {
		cs.Resolution = &FieldDelta{From: prev.Resolution, To: cur.Resolution}
		cs.HasChanges = true
	}
	if len(cur.Comments) > len(prev.Comments) {
		tail := cur.Comments[len(prev.Comments):]
		cs.NewComments = append([]Comment(nil), tail...)
		cs.HasChanges = true
	}
	return cs
}
