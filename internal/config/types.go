package config

type Config struct {
	Logging LoggingConfig `json:"logging"`
	Storage StorageConfig `json:"storage"`
	Tracker TrackerConfig `json:"tracker"`
	Monitor MonitorConfig `json:"monitor"`
	Notify  NotifyConfig  `json:"notify"`

	// Telegram is optional; when omitted only the log sink is wired.
	Telegram *TelegramConfig `json:"telegram,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig controls task persistence.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./issuewatch_store" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// TrackerConfig controls the remote fetch side.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type TrackerConfig struct {
	// RequestTimeout bounds a single fetch. A timed-out fetch counts as a
	// fetch error toward the task's backoff.
	RequestTimeout string `json:"request_timeout,omitempty"`

	// BearerToken, when set, is sent as an Authorization header (do not log).
	BearerToken string `json:"bearer_token,omitempty"`

	// TerminalStatuses lists status values after which monitoring stops
	// (case-insensitive). Example: ["Done", "Closed", "Won't Fix"].
	TerminalStatuses []string `json:"terminal_statuses,omitempty"`
}

// MonitorConfig controls the orchestrator.
type MonitorConfig struct {
	// ErrorCeiling is the consecutive-error count after which a single
	// rate-limited degraded-task notification is emitted. Default 5.
	ErrorCeiling int `json:"error_ceiling,omitempty"`

	// DigestSchedule is a cron spec for the daily watch digest.
	// Empty disables the digest. Example: "0 9 * * *".
	DigestSchedule string `json:"digest_schedule,omitempty"`
}

// NotifyConfig carries the user-facing notification preferences plus
// dispatcher tuning. Preferences are re-read at drain time, so edits to the
// config file take effect without restart.
type NotifyConfig struct {
	Enabled  bool `json:"enabled"`
	Grouping bool `json:"grouping"`

	// GroupingWindow is a Go duration string; default "5m".
	GroupingWindow string `json:"grouping_window,omitempty"`
	// DrainInterval is a Go duration string; default "3s".
	DrainInterval string `json:"drain_interval,omitempty"`
	// QueueSize bounds the un-drained queue; oldest entries are evicted
	// beyond it. Default 100.
	QueueSize int `json:"queue_size,omitempty"`
	// HistorySize bounds the drained-entry history. Default 300.
	HistorySize int `json:"history_size,omitempty"`
}

type TelegramConfig struct {
	Token    string `json:"token"`
	ChatID   int64  `json:"chat_id"`
	ThreadID int    `json:"thread_id,omitempty"`
}
