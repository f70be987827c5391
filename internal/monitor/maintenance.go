package monitor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"issuewatch/internal/notify"
	"issuewatch/pkg/logx"
)

// compactSchedule keeps the store from growing unbounded.
const compactSchedule = "17 * * * *"

// startMaintenanceLocked wires the background jobs: hourly store compaction
// and, when configured, a daily digest of the watch list. Caller holds s.mu.
func (s *Service) startMaintenanceLocked() {
	c := cron.New(cron.WithParser(cron.NewParser(
		cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
	)))

	if s.store != nil {
		_, err := c.AddFunc(compactSchedule, s.compact)
		if err != nil {
			s.log.Error("register compact job", logx.Err(err))
		}
	}

	if spec := s.cfg.DigestSchedule; spec != "" {
		_, err := c.AddFunc(spec, s.digest)
		if err != nil {
			s.log.Error("register digest job", logx.String("spec", spec), logx.Err(err))
		}
	}

	c.Start()
	s.cron = c
}

func (s *Service) compact() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := s.store.Compact(ctx); err != nil {
		s.log.Warn("store compaction failed", logx.Err(err))
		return
	}
	s.log.Debug("store compacted")
}

// digest enqueues one summary notification covering the whole watch list.
func (s *Service) digest() {
	tasks := s.Tasks()
	if len(tasks) == 0 {
		return
	}

	var monitoring, completed, degraded int
	var lines []string
	for _, t := range tasks {
		switch t.Status {
		case StatusMonitoring:
			monitoring++
		case StatusCompleted:
			completed++
		}
		if t.ConsecutiveErrors > s.cfg.ErrorCeiling {
			degraded++
			lines = append(lines, fmt.Sprintf("%s: %d consecutive errors", t.ID, t.ConsecutiveErrors))
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d watched, %d monitoring, %d completed", len(tasks), monitoring, completed)
	if degraded > 0 {
		fmt.Fprintf(&b, ", %d degraded\n%s", degraded, strings.Join(lines, "\n"))
	}

	now := time.Now()
	s.dispatcher.Enqueue(notify.Entry{
		Title:    "Daily watch digest",
		Message:  b.String(),
		GroupKey: "digest",
		At:       now,
	})
	s.log.Debug("digest enqueued", logx.Int("tasks", len(tasks)))
}
