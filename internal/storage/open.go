package storage

import (
	"context"
	"errors"
	"strings"

	"issuewatch/pkg/logx"
)

// Store is the persistence API consumed by the orchestrator and the CLI.
// Implementations must offer read-your-writes consistency within a process.
type Store interface {
	LoadTasks(ctx context.Context) (map[string]TaskRecord, error)
	SaveTask(ctx context.Context, rec TaskRecord) error
	DeleteTask(ctx context.Context, id string) error

	// Compact reclaims space (journal compaction / WAL checkpoint).
	// Called periodically by the maintenance cron; best-effort.
	Compact(ctx context.Context) error

	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
