// Package telegram adapts a Telegram chat as a notification sink.
package telegram

import (
	"context"
	"errors"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"issuewatch/internal/notify"
	"issuewatch/pkg/logx"
)

type Config struct {
	Token    string
	ChatID   int64
	ThreadID int
}

// Sink sends notifications to a single Telegram chat (optionally a forum
// topic thread). Outbound only: the bot never polls for updates.
type Sink struct {
	cfg Config
	bot *tele.Bot
	log logx.Logger
}

func New(cfg Config, log logx.Logger) (*Sink, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat_id is empty")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	// Offline skips the getMe round trip at startup; a bad token surfaces on
	// the first Present instead of blocking daemon boot on Telegram.
	b, err := tele.NewBot(tele.Settings{
		Token:   cfg.Token,
		Offline: true,
	})
	if err != nil {
		return nil, err
	}
	return &Sink{cfg: cfg, bot: b, log: log}, nil
}

func (s *Sink) Name() string { return "telegram" }

func (s *Sink) Present(ctx context.Context, e notify.Entry) error {
	_ = ctx // telebot manages its own request timeout

	text := formatEntry(e)
	chat := &tele.Chat{ID: s.cfg.ChatID}
	opt := &tele.SendOptions{
		DisableWebPagePreview: true,
		ThreadID:              s.cfg.ThreadID,
	}
	_, err := s.bot.Send(chat, text, opt)
	return err
}

func formatEntry(e notify.Entry) string {
	var b strings.Builder
	b.WriteString(e.Title)
	if e.Message != "" {
		b.WriteString("\n")
		b.WriteString(e.Message)
	}
	if !e.At.IsZero() {
		b.WriteString("\n")
		b.WriteString(e.At.Format(time.RFC822))
	}
	// Telegram caps messages at 4096 chars; stay well under.
	out := b.String()
	if len(out) > 3500 {
		out = out[:3497] + "..."
	}
	return out
}
