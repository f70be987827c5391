package notify

import (
	"context"

	"issuewatch/pkg/logx"
)

// LogSink presents notifications through the structured log. It is always
// wired so a bare config still surfaces changes somewhere.
type LogSink struct {
	log logx.Logger
}

func NewLogSink(log logx.Logger) *LogSink {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &LogSink{log: log}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Present(ctx context.Context, e Entry) error {
	_ = ctx
	s.log.Info("notification",
		logx.String("task", e.TaskKey),
		logx.String("title", e.Title),
		logx.String("message", e.Message),
		logx.Time("at", e.At),
	)
	return nil
}
