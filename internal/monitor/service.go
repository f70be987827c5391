package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"issuewatch/internal/eventbus"
	"issuewatch/internal/notify"
	rtsup "issuewatch/internal/runtime/supervisor"
	"issuewatch/internal/storage"
	"issuewatch/internal/tracker"
	"issuewatch/pkg/logx"
)

// Config controls the orchestrator.
type Config struct {
	// ErrorCeiling is the consecutive-error count beyond which one
	// rate-limited degraded notification is emitted. Default 5.
	ErrorCeiling int
	// DigestSchedule is a cron spec for the daily watch digest; empty
	// disables it.
	DigestSchedule string
}

// TaskEvent is emitted on the event bus for task lifecycle events.
type TaskEvent struct {
	ID      string    `json:"id"`
	Status  string    `json:"status"`
	Errors  int       `json:"errors,omitempty"`
	Changes int       `json:"changes,omitempty"`
	At      time.Time `json:"at"`
	Error   string    `json:"error,omitempty"`
}

// TerminalPredicate decides whether a record means monitoring is over.
// Policy data lives with the caller; the orchestrator needs only the boolean.
type TerminalPredicate func(rec *tracker.Record) bool

// Service is the orchestrator: it owns the task registry and drives one
// monitor loop per task (scheduler -> fetch&diff -> dispatcher -> persist).
//
// Per-task cycles are strictly sequential: a cycle completes, including
// persistence, before the task's next delay starts. Distinct tasks interleave
// freely. One task's failure never affects another's scheduling.
type Service struct {
	log        logx.Logger
	bus        eventbus.Bus
	store      storage.Store
	client     *tracker.Client
	engine     *tracker.Engine
	dispatcher *notify.Dispatcher
	isTerminal TerminalPredicate
	cfg        Config

	// degradedLim caps degraded-task notifications across all tasks.
	degradedLim *rate.Limiter

	mu    sync.Mutex
	tasks map[string]*taskState
	sup   *rtsup.Supervisor
	cron  *cron.Cron
}

type taskState struct {
	mu   sync.Mutex
	task *Task

	cancel  context.CancelFunc
	removed atomic.Bool
}

func (st *taskState) snapshot() *Task {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.task.clone()
}

func New(cfg Config, client *tracker.Client, engine *tracker.Engine, dispatcher *notify.Dispatcher,
	store storage.Store, isTerminal TerminalPredicate, log logx.Logger, bus eventbus.Bus) *Service {
	if cfg.ErrorCeiling <= 0 {
		cfg.ErrorCeiling = 5
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if isTerminal == nil {
		isTerminal = func(*tracker.Record) bool { return false }
	}
	return &Service{
		log:         log,
		bus:         bus,
		store:       store,
		client:      client,
		engine:      engine,
		dispatcher:  dispatcher,
		isTerminal:  isTerminal,
		cfg:         cfg,
		degradedLim: rate.NewLimiter(rate.Every(time.Minute), 3),
		tasks:       map[string]*taskState{},
	}
}

// Start prepares the service for monitoring. Idempotent.
func (s *Service) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sup != nil {
		return
	}
	// Monitor loop failures are per-task; never cancel siblings.
	s.sup = rtsup.New(ctx,
		rtsup.WithLogger(s.log.With(logx.String("comp", "monitor"))),
		rtsup.WithCancelOnError(false),
	)
	s.startMaintenanceLocked()
}

// Stop halts all monitor loops and waits for in-flight cycles to finish.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	sup := s.sup
	s.sup = nil
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	// Stopped outside the lock: maintenance jobs read the registry.
	if c != nil {
		<-c.Stop().Done()
	}
	if sup == nil {
		return nil
	}
	return sup.Stop(ctx)
}

// Resume re-enters every persisted non-terminal task into Monitoring using
// its persisted timestamps, so elapsed time is never reset across a restart.
// Completed tasks stay registered (queryable) but get no loop.
func (s *Service) Resume(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	recs, err := s.store.LoadTasks(ctx)
	if err != nil {
		return fmt.Errorf("load tasks: %w", err)
	}

	for _, rec := range recs {
		t, err := taskFromRecord(rec)
		if err != nil {
			s.log.Warn("skipping unreadable task", logx.String("task", rec.ID), logx.Err(err))
			continue
		}
		if t.Status == StatusRemoved {
			continue
		}
		if t.Status == StatusAdded {
			// Interrupted between validation and first cycle; monitor it.
			t.Status = StatusMonitoring
		}
		if t.Snapshot != nil {
			s.engine.Seed(t.ID, t.Snapshot)
		}
		s.register(t, t.Status == StatusMonitoring)
		s.log.Info("task resumed",
			logx.String("task", t.ID),
			logx.String("status", string(t.Status)),
			logx.Time("last_check", t.LastCheckAt),
			logx.Int("errors", t.ConsecutiveErrors),
		)
	}
	return nil
}

// Add validates the remote resource synchronously and registers a new task.
// Validation failure returns *ValidationError and registers nothing. The
// probe result is discarded: the first scheduled cycle establishes the
// snapshot, so it reports the task as new.
func (s *Service) Add(ctx context.Context, source string) (*Task, error) {
	key, endpoint, err := tracker.Endpoint(source)
	if err != nil {
		return nil, &ValidationError{Source: source, Err: err}
	}

	s.mu.Lock()
	_, exists := s.tasks[key]
	s.mu.Unlock()
	if exists {
		return nil, fmt.Errorf("task %s already registered", key)
	}

	if _, err := s.client.Probe(ctx, endpoint); err != nil {
		return nil, &ValidationError{Source: source, Err: err}
	}

	now := time.Now()
	t := &Task{
		ID:        key,
		Source:    source,
		Endpoint:  endpoint,
		Status:    StatusMonitoring,
		CreatedAt: now,
	}
	if s.store != nil {
		if err := s.store.SaveTask(ctx, t.toRecord()); err != nil {
			return nil, fmt.Errorf("persist task %s: %w", key, err)
		}
	}

	s.register(t, true)
	s.publishTask("task.added", t, 0, nil)
	s.log.Info("task added", logx.String("task", key), logx.String("endpoint", endpoint))
	return t.clone(), nil
}

// Remove deletes a task: its pending wait is cancelled and the result of any
// cycle already in flight is discarded rather than persisted.
func (s *Service) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	st, ok := s.tasks[id]
	if ok {
		delete(s.tasks, id)
	}
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("task %s not registered", id)
	}

	st.removed.Store(true)
	if st.cancel != nil {
		st.cancel()
	}
	s.engine.Forget(id)

	st.mu.Lock()
	st.task.Status = StatusRemoved
	t := st.task.clone()
	st.mu.Unlock()

	if s.store != nil {
		if err := s.store.DeleteTask(ctx, id); err != nil {
			return fmt.Errorf("delete task %s: %w", id, err)
		}
	}
	s.publishTask("task.removed", t, 0, nil)
	s.log.Info("task removed", logx.String("task", id))
	return nil
}

// Tasks returns a point-in-time copy of the registry.
func (s *Service) Tasks() []*Task {
	s.mu.Lock()
	states := make([]*taskState, 0, len(s.tasks))
	for _, st := range s.tasks {
		states = append(states, st)
	}
	s.mu.Unlock()

	out := make([]*Task, 0, len(states))
	for _, st := range states {
		out = append(out, st.snapshot())
	}
	return out
}

// Task returns a copy of one task, or nil.
func (s *Service) Task(id string) *Task {
	s.mu.Lock()
	st := s.tasks[id]
	s.mu.Unlock()
	if st == nil {
		return nil
	}
	return st.snapshot()
}

func (s *Service) register(t *Task, startLoop bool) {
	st := &taskState{task: t}

	s.mu.Lock()
	s.tasks[t.ID] = st
	sup := s.sup
	s.mu.Unlock()

	if !startLoop {
		return
	}
	if sup == nil {
		s.log.Warn("monitor not started; task will not be polled", logx.String("task", t.ID))
		return
	}

	loopCtx, cancel := context.WithCancel(sup.Context())
	st.cancel = cancel
	sup.Go("task."+t.ID, func(context.Context) error {
		defer cancel()
		return s.loop(loopCtx, st)
	})
}

// loop runs one task's monitor cycle until the task completes, is removed,
// or the service stops. Errors inside a cycle are converted into persisted
// state; they never escape the loop.
func (s *Service) loop(ctx context.Context, st *taskState) error {
	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		t := st.snapshot()
		if t.Status != StatusMonitoring {
			return nil
		}

		delay := NextDelay(t, time.Now())
		s.log.Trace("cycle scheduled", logx.String("task", t.ID), logx.Duration("delay", delay))

		timer.Reset(delay)
		select {
		case <-ctx.Done():
			if !timer.Stop() {
				<-timer.C
			}
			return nil
		case <-timer.C:
		}

		s.runCycle(ctx, st)
	}
}

// runCycle executes one fetch-and-diff cycle and converts the outcome into
// persisted task state. Removal is observed just before persistence so an
// in-flight result for a removed task is discarded.
func (s *Service) runCycle(ctx context.Context, st *taskState) {
	t := st.snapshot()
	now := time.Now()

	cs, rec, err := s.engine.FetchAndDiff(ctx, t.ID, t.Endpoint)
	if st.removed.Load() || ctx.Err() != nil {
		return
	}

	st.mu.Lock()
	task := st.task
	task.LastCheckAt = now

	if err != nil {
		task.ConsecutiveErrors++
		errs := task.ConsecutiveErrors
		cp := task.clone()
		st.mu.Unlock()

		var perr *tracker.ParseError
		if errors.As(err, &perr) {
			// Parse failures may signal an upstream schema change, not an
			// outage; keep them apart from plain fetch errors in the logs.
			s.log.Warn("cycle parse error", logx.String("task", t.ID), logx.Int("consecutive", errs), logx.Err(err))
		} else {
			s.log.Debug("cycle fetch error", logx.String("task", t.ID), logx.Int("consecutive", errs), logx.Err(err))
		}

		// Surface a degraded task once, when the ceiling is first exceeded.
		if errs == s.cfg.ErrorCeiling+1 && s.degradedLim.Allow() {
			s.dispatcher.Enqueue(notify.Degraded(t.ID, errs, err, now))
			s.publishTask("task.degraded", cp, 0, err)
		}

		s.persist(ctx, st, cp)
		return
	}

	task.ConsecutiveErrors = 0
	changes := 0
	if cs.HasChanges {
		task.LastChangeAt = now
		task.Snapshot = rec
		changes = len(cs.Changes())
	}

	completed := false
	if s.isTerminal(rec) {
		task.Status = StatusCompleted
		completed = true
	}
	cp := task.clone()
	st.mu.Unlock()

	if cs.HasChanges {
		s.dispatcher.Enqueue(notify.FromChangeSet(t.ID, cs, now))
		s.publishTask("task.changed", cp, changes, nil)
	}
	if completed {
		s.publishTask("task.completed", cp, 0, nil)
		s.log.Info("task completed", logx.String("task", t.ID), logx.String("status", cp.statusField()))
	}

	s.persist(ctx, st, cp)
}

// persist writes the task unless its removal has been observed.
func (s *Service) persist(ctx context.Context, st *taskState, t *Task) {
	if s.store == nil || st.removed.Load() {
		return
	}
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.store.SaveTask(cctx, t.toRecord()); err != nil {
		s.log.Error("persist task failed", logx.String("task", t.ID), logx.Err(err))
	}
}

func (s *Service) publishTask(typ string, t *Task, changes int, err error) {
	if s.bus == nil {
		return
	}
	now := time.Now()
	ev := TaskEvent{ID: t.ID, Status: string(t.Status), Errors: t.ConsecutiveErrors, Changes: changes, At: now}
	if err != nil {
		ev.Error = err.Error()
	}
	s.bus.Publish(eventbus.Event{Type: typ, Time: now, Data: ev})
}

func (t *Task) statusField() string {
	if t.Snapshot == nil {
		return ""
	}
	return t.Snapshot.Status
}
