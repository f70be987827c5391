// Package storage persists monitored tasks so a restart resumes monitoring
// with real history instead of resetting elapsed time.
//
// It currently supports:
//   - "file": dependency-free snapshot + JSONL journal
//   - "sqlite": SQLite database file
package storage
