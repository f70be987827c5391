package notify

import (
	"context"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"issuewatch/internal/eventbus"
	rtsup "issuewatch/internal/runtime/supervisor"
	"issuewatch/pkg/logx"
)

// Dispatcher implements the notification pipeline: a bounded FIFO queue with
// same-group merging, drained sequentially to the presentation sinks at a
// throttled rate.
//
// It is safe for concurrent use: multiple monitor loops enqueue while one
// drain goroutine presents.
type Dispatcher struct {
	log   logx.Logger
	bus   eventbus.Bus
	prefs PreferenceSource
	sinks []Sink

	mu      sync.Mutex
	cfg     Config
	limiter *rate.Limiter
	queue   []Entry
	history []Entry
	seq     uint64

	wake chan struct{}
	sup  *rtsup.Supervisor
}

func New(cfg Config, prefs PreferenceSource, sinks []Sink, log logx.Logger, bus eventbus.Bus) *Dispatcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	if prefs == nil {
		prefs = func() Preferences { return Preferences{Enabled: true, Grouping: true} }
	}
	d := &Dispatcher{
		log:   log,
		bus:   bus,
		prefs: prefs,
		sinks: sinks,
		wake:  make(chan struct{}, 1),
	}
	d.applyLocked(cfg)
	return d
}

func (d *Dispatcher) Apply(cfg Config) {
	d.mu.Lock()
	d.applyLocked(cfg)
	d.mu.Unlock()
}

func (d *Dispatcher) applyLocked(cfg Config) {
	// Defaults
	if cfg.GroupingWindow <= 0 {
		cfg.GroupingWindow = 5 * time.Minute
	}
	if cfg.DrainInterval <= 0 {
		cfg.DrainInterval = 3 * time.Second
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 300
	}
	d.cfg = cfg
	// Burst 1: presentations never bunch up after an idle stretch.
	d.limiter = rate.NewLimiter(rate.Every(cfg.DrainInterval), 1)
}

// Start launches the drain goroutine. Idempotent.
func (d *Dispatcher) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	d.mu.Lock()
	if d.sup != nil {
		d.mu.Unlock()
		return
	}
	d.sup = rtsup.New(ctx, rtsup.WithLogger(d.log.With(logx.String("comp", "notify"))))
	sup := d.sup
	d.mu.Unlock()

	sup.GoRestart("drain", d.drainLoop)
}

// Stop halts draining. Queued entries stay readable via Snapshot.
func (d *Dispatcher) Stop(ctx context.Context) {
	d.mu.Lock()
	sup := d.sup
	d.sup = nil
	d.mu.Unlock()
	if sup == nil {
		return
	}
	_ = sup.Stop(ctx)
}

// Enqueue adds an entry to the queue: synchronous and non-blocking.
//
// Grouping rule: when grouping is enabled and an un-drained entry with the
// same group key sits within the grouping window of the incoming timestamp,
// the incoming entry merges into that slot (combined message) instead of
// occupying a second one.
func (d *Dispatcher) Enqueue(e Entry) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	if e.GroupKey == "" {
		e.GroupKey = e.TaskKey
	}
	prefs := d.prefs()

	d.mu.Lock()
	d.seq++
	if e.ID == "" {
		e.ID = "n" + strconv.FormatUint(d.seq, 10)
	}

	if prefs.Grouping {
		for i := len(d.queue) - 1; i >= 0; i-- {
			q := &d.queue[i]
			if q.GroupKey != e.GroupKey {
				continue
			}
			if e.At.Sub(q.At) > d.cfg.GroupingWindow || q.At.Sub(e.At) > d.cfg.GroupingWindow {
				continue
			}
			q.Message = q.Message + "\n" + e.Message
			q.Title = e.TaskKey + " updated (grouped)"
			merged := *q
			d.mu.Unlock()
			d.publish("notify.merged", merged, "", nil)
			d.signal()
			return
		}
	}

	var evicted []Entry
	d.queue = append(d.queue, e)
	for len(d.queue) > d.cfg.QueueSize {
		evicted = append(evicted, d.queue[0])
		d.queue = d.queue[1:]
	}
	d.mu.Unlock()

	// Overflow is resolved by eviction, never surfaced to the user.
	for _, ev := range evicted {
		d.log.Debug("notification evicted (queue full)", logx.String("entry", ev.ID), logx.String("task", ev.TaskKey))
		d.publish("notify.dropped", ev, "", nil)
	}
	d.publish("notify.queued", e, "", nil)
	d.signal()
}

// Snapshot returns pending entries followed by drained history, oldest first.
func (d *Dispatcher) Snapshot() []Entry {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Entry, 0, len(d.history)+len(d.queue))
	out = append(out, d.history...)
	out = append(out, d.queue...)
	return out
}

// Unread returns entries not yet marked read (presented entries are marked
// automatically; accumulated-while-disabled ones are not).
func (d *Dispatcher) Unread() []Entry {
	var out []Entry
	for _, e := range d.Snapshot() {
		if !e.Read {
			out = append(out, e)
		}
	}
	return out
}

// MarkRead flags an entry as read. Returns false if the ID is unknown.
func (d *Dispatcher) MarkRead(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.queue {
		if d.queue[i].ID == id {
			d.queue[i].Read = true
			return true
		}
	}
	for i := range d.history {
		if d.history[i].ID == id {
			d.history[i].Read = true
			return true
		}
	}
	return false
}

// PendingLen reports the number of un-drained entries.
func (d *Dispatcher) PendingLen() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

func (d *Dispatcher) signal() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *Dispatcher) drainLoop(ctx context.Context) error {
	// The ticker is a fallback so entries accumulated while notifications were
	// disabled drain once the preference flips back on.
	tick := time.NewTicker(time.Second)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-d.wake:
		case <-tick.C:
		}

		for {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if !d.prefs().Enabled {
				break
			}
			d.mu.Lock()
			empty := len(d.queue) == 0
			lim := d.limiter
			d.mu.Unlock()
			if empty {
				break
			}
			// Throttle: at most one presentation per drain interval.
			if err := lim.Wait(ctx); err != nil {
				return err
			}
			e, ok := d.pop()
			if !ok {
				break
			}
			d.present(ctx, e)
		}
	}
}

func (d *Dispatcher) pop() (Entry, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.queue) == 0 {
		return Entry{}, false
	}
	e := d.queue[0]
	d.queue = d.queue[1:]
	e.Read = true
	d.history = append(d.history, e)
	if len(d.history) > d.cfg.HistorySize {
		d.history = d.history[len(d.history)-d.cfg.HistorySize:]
	}
	return e, true
}

// present shows one entry on every sink, sequentially. Sink failures are
// logged and published but never re-queued.
func (d *Dispatcher) present(ctx context.Context, e Entry) {
	for _, s := range d.sinks {
		cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err := s.Present(cctx, e)
		cancel()
		if err != nil {
			d.log.Warn("notification present failed", logx.String("sink", s.Name()), logx.String("entry", e.ID), logx.Err(err))
			d.publish("notify.failed", e, s.Name(), err)
			continue
		}
		d.publish("notify.sent", e, s.Name(), nil)
	}
}

func (d *Dispatcher) publish(typ string, e Entry, sink string, err error) {
	if d.bus == nil {
		return
	}
	now := time.Now()
	ev := DispatchEvent{EntryID: e.ID, TaskKey: e.TaskKey, GroupKey: e.GroupKey, At: now, Sink: sink}
	if err != nil {
		ev.Error = err.Error()
	}
	d.bus.Publish(eventbus.Event{Type: typ, Time: now, Data: ev})
}
