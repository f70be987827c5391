package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"issuewatch/internal/tracker"
	"issuewatch/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	// Basic pragmas.
	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) LoadTasks(ctx context.Context) (map[string]TaskRecord, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, endpoint, status, created_at, last_check_at, last_change_at, consecutive_errors, snapshot FROM tasks`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]TaskRecord{}
	for rows.Next() {
		var rec TaskRecord
		var createdAt, checkAt, changeAt, snapshot sql.NullString
		if err := rows.Scan(&rec.ID, &rec.Source, &rec.Endpoint, &rec.Status,
			&createdAt, &checkAt, &changeAt, &rec.ConsecutiveErrors, &snapshot); err != nil {
			return nil, err
		}
		rec.CreatedAt = parseTimeStr(createdAt.String)
		rec.LastCheckAt = parseTimeStr(checkAt.String)
		rec.LastChangeAt = parseTimeStr(changeAt.String)
		if snapshot.Valid && snapshot.String != "" {
			var r tracker.Record
			if err := json.Unmarshal([]byte(snapshot.String), &r); err == nil {
				rec.Snapshot = &r
			} else {
				s.log.Warn("dropping unreadable snapshot", logx.String("task", rec.ID), logx.Err(err))
			}
		}
		out[rec.ID] = rec
	}
	return out, rows.Err()
}

func (s *sqliteStore) SaveTask(ctx context.Context, rec TaskRecord) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if strings.TrimSpace(rec.ID) == "" {
		return errors.New("task id is empty")
	}
	var snapshot any
	if rec.Snapshot != nil {
		b, err := json.Marshal(rec.Snapshot)
		if err != nil {
			return err
		}
		snapshot = string(b)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks(id, source, endpoint, status, created_at, last_check_at, last_change_at, consecutive_errors, snapshot)
		 VALUES(?,?,?,?,?,?,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET
		   source=excluded.source, endpoint=excluded.endpoint, status=excluded.status,
		   created_at=excluded.created_at, last_check_at=excluded.last_check_at,
		   last_change_at=excluded.last_change_at, consecutive_errors=excluded.consecutive_errors,
		   snapshot=excluded.snapshot`,
		rec.ID, rec.Source, rec.Endpoint, rec.Status,
		fmtTime(rec.CreatedAt), fmtTime(rec.LastCheckAt), fmtTime(rec.LastChangeAt),
		rec.ConsecutiveErrors, snapshot,
	)
	return err
}

func (s *sqliteStore) DeleteTask(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	return err
}

func (s *sqliteStore) Compact(ctx context.Context) error {
	if s == nil || s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `PRAGMA wal_checkpoint(TRUNCATE)`)
	return err
}

func fmtTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.Format(time.RFC3339Nano)
}

func parseTimeStr(s string) time.Time {
	if strings.TrimSpace(s) == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
