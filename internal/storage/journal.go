// Package storage keeps the local action journal in SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"lora-control/internal/dispatch"
	"lora-control/internal/lora"
)

const schema = `
CREATE TABLE IF NOT EXISTS actions (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    at         TEXT NOT NULL,
    device_id  TEXT NOT NULL,
    alias      TEXT NOT NULL DEFAULT '',
    action     TEXT NOT NULL,
    status     TEXT NOT NULL,
    message    TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_actions_device ON actions(device_id, at);
`

// Fixed-width so that text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Entry is one recorded outcome.
type Entry struct {
	At       time.Time       `json:"fecha"`
	DeviceID string          `json:"id"`
	Alias    string          `json:"alias"`
	Action   lora.Action     `json:"accion"`
	Status   dispatch.Status `json:"estado"`
	Message  string          `json:"mensaje"`
}

type Journal struct {
	db   *sql.DB
	path string
}

// Open creates the database file and schema if needed. A leading ~ expands to
// the home directory.
func Open(path string) (*Journal, error) {
	if path == "" {
		return nil, errors.New("open journal: empty path")
	}
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("expand home directory: %w", err)
		}
		path = filepath.Join(home, path[1:])
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	// Group fan-out records from many goroutines; one writer avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	return &Journal{db: db, path: path}, nil
}

func (j *Journal) Path() string { return j.path }

func (j *Journal) Close() error { return j.db.Close() }

// Record stores a settled outcome.
func (j *Journal) Record(ctx context.Context, o dispatch.Outcome) error {
	at := o.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO actions (at, device_id, alias, action, status, message) VALUES (?, ?, ?, ?, ?, ?)`,
		at.UTC().Format(timeLayout), o.ID, o.Alias, string(o.Action), string(o.Status), o.Message)
	if err != nil {
		return fmt.Errorf("record action: %w", err)
	}
	return nil
}

// Recent returns the newest entries first. An empty deviceID matches every device.
func (j *Journal) Recent(ctx context.Context, deviceID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT at, device_id, alias, action, status, message FROM actions`
	args := []any{}
	if deviceID != "" {
		query += ` WHERE device_id = ?`
		args = append(args, deviceID)
	}
	query += ` ORDER BY at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	out := []Entry{}
	for rows.Next() {
		var (
			e                  Entry
			at, action, status string
		)
		if err := rows.Scan(&at, &e.DeviceID, &e.Alias, &action, &status, &e.Message); err != nil {
			return nil, fmt.Errorf("scan journal: %w", err)
		}
		e.At, err = time.Parse(timeLayout, at)
		if err != nil {
			return nil, fmt.Errorf("parse journal time %q: %w", at, err)
		}
		e.Action = lora.Action(action)
		e.Status = dispatch.Status(status)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return out, nil
}
