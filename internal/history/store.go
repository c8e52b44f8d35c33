// internal/history/store.go
package history

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusDone      Status = "done"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

var ErrNotFound = errors.New("history: record not found")

// Record is one completion request.
type Record struct {
	ID         uuid.UUID
	Mode       string
	Endpoint   string
	Prompt     string
	Completion string
	Status     Status
	Error      string
	CreatedAt  time.Time
	FinishedAt time.Time // zero while pending
}

// Duration is how long the request took, or zero if unfinished.
func (r Record) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.CreatedAt)
}

type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the history database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}

	return store, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS requests (
		id TEXT PRIMARY KEY,
		mode TEXT NOT NULL,
		endpoint TEXT NOT NULL,
		prompt TEXT NOT NULL,
		completion TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		error TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_requests_created ON requests(created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Begin inserts a pending record. A zero ID or CreatedAt is filled in.
func (s *Store) Begin(rec Record) (uuid.UUID, error) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(
		`INSERT INTO requests (id, mode, endpoint, prompt, status, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID.String(), rec.Mode, rec.Endpoint, rec.Prompt, StatusPending, rec.CreatedAt.UTC(),
	)
	return rec.ID, err
}

// Finish records the outcome of a request.
func (s *Store) Finish(id uuid.UUID, status Status, completion, errMsg string) error {
	result, err := s.db.Exec(
		`UPDATE requests SET status = ?, completion = ?, error = ?, finished_at = ? WHERE id = ?`,
		status, completion, errMsg, time.Now().UTC(), id.String(),
	)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

const selectRecord = `SELECT id, mode, endpoint, prompt, completion, status, error, created_at, finished_at FROM requests`

// Get retrieves a record by ID
func (s *Store) Get(id uuid.UUID) (*Record, error) {
	rec, err := scanRecord(s.db.QueryRow(selectRecord+` WHERE id = ?`, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

// List returns up to limit records, newest first. limit <= 0 returns all.
func (s *Store) List(limit int) ([]Record, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(selectRecord+` ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// Prune deletes records older than the cutoff and returns how many went.
func (s *Store) Prune(before time.Time) (int64, error) {
	result, err := s.db.Exec(`DELETE FROM requests WHERE created_at < ?`, before.UTC())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*Record, error) {
	var r Record
	var id, status string
	var finished sql.NullTime
	if err := row.Scan(&id, &r.Mode, &r.Endpoint, &r.Prompt, &r.Completion, &status, &r.Error, &r.CreatedAt, &finished); err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("record id %q: %w", id, err)
	}
	r.ID = parsed
	r.Status = Status(status)
	if finished.Valid {
		r.FinishedAt = finished.Time
	}
	return &r, nil
}
