package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const validYAML = `
logging:
  level: debug
  console: true
storage:
  driver: file
  path: ./store
tracker:
  request_timeout: 10s
  terminal_statuses: ["Done", "Closed"]
monitor:
  error_ceiling: 3
notify:
  enabled: true
  grouping: true
  grouping_window: 5m
  drain_interval: 3s
telegram:
  token: "123:abc"
  chat_id: 42
`

func TestParseValidYAML(t *testing.T) {
	t.Parallel()
	m := NewManager(writeConfig(t, validYAML))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "debug" || !cfg.Logging.Console {
		t.Fatalf("logging = %+v", cfg.Logging)
	}
	if cfg.Storage.Driver != "file" {
		t.Fatalf("storage = %+v", cfg.Storage)
	}
	if len(cfg.Tracker.TerminalStatuses) != 2 {
		t.Fatalf("terminal statuses = %v", cfg.Tracker.TerminalStatuses)
	}
	if cfg.Telegram == nil || cfg.Telegram.ChatID != 42 {
		t.Fatalf("telegram = %+v", cfg.Telegram)
	}
	if got := m.Get(); got != cfg {
		t.Fatal("Get must return the committed config")
	}
}

func TestParseRejections(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "unknown field",
			content: "notify:\n  enabled: true\n  shiny_new_flag: 1\n",
		},
		{
			name:    "bad duration",
			content: "tracker:\n  request_timeout: soon\n",
		},
		{
			name:    "negative duration",
			content: "notify:\n  drain_interval: -3s\n",
		},
		{
			name:    "unknown storage driver",
			content: "storage:\n  driver: etcd\n",
		},
		{
			name:    "telegram without token",
			content: "telegram:\n  chat_id: 42\n",
		},
		{
			name:    "telegram without chat id",
			content: "telegram:\n  token: \"123:abc\"\n",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(writeConfig(t, tt.content))
			if _, err := m.Parse(); err == nil {
				t.Fatalf("expected rejection for %s", tt.name)
			}
		})
	}
}

func TestParseJSONConfig(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{"notify": {"enabled": true, "grouping": false}}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := NewManager(path).Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !cfg.Notify.Enabled || cfg.Notify.Grouping {
		t.Fatalf("notify = %+v", cfg.Notify)
	}
}

func TestParseMissingFile(t *testing.T) {
	t.Parallel()
	if _, err := NewManager(filepath.Join(t.TempDir(), "absent.yaml")).Parse(); err == nil {
		t.Fatal("expected error for missing file")
	}
}
