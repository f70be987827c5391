package storage

import (
	"context"
	"path/filepath"
	"testing"

	"issuewatch/pkg/logx"
)

func TestSQLiteRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tasks.db")

	st, err := Open(Config{Driver: "sqlite", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	want := sampleRecord("PROJ-9")
	if err := st.SaveTask(ctx, want); err != nil {
		t.Fatalf("SaveTask: %v", err)
	}
	// Upsert path.
	want.Status = "completed"
	if err := st.SaveTask(ctx, want); err != nil {
		t.Fatalf("SaveTask upsert: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	st, err = Open(Config{Driver: "sqlite3", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st.Close()

	got, err := st.LoadTasks(ctx)
	if err != nil {
		t.Fatalf("LoadTasks: %v", err)
	}
	rec, ok := got["PROJ-9"]
	if !ok {
		t.Fatalf("task missing: %v", got)
	}
	if rec.Status != "completed" || rec.Endpoint != want.Endpoint {
		t.Fatalf("got %+v", rec)
	}
	if rec.Snapshot == nil || rec.Snapshot.Status != "Open" {
		t.Fatalf("snapshot = %+v", rec.Snapshot)
	}
	if !rec.LastCheckAt.Equal(want.LastCheckAt) {
		t.Fatalf("LastCheckAt = %v, want %v", rec.LastCheckAt, want.LastCheckAt)
	}

	if err := st.DeleteTask(ctx, "PROJ-9"); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	got, err = st.LoadTasks(ctx)
	if err != nil {
		t.Fatalf("LoadTasks: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("tasks = %v, want empty", got)
	}

	if err := st.Compact(ctx); err != nil {
		t.Fatalf("Compact: %v", err)
	}
}
