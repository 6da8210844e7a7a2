package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a SQLite-backed implementation of Store, for keeping the
// archive across restarts of the controller.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the SQLite database at dbPath and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	// WAL mode for better concurrent read performance.
	if _, err = db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err = s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS history (
			seq             INTEGER PRIMARY KEY AUTOINCREMENT,
			job_id          TEXT NOT NULL,
			status          TEXT NOT NULL,
			error           TEXT NOT NULL DEFAULT '',
			elapsed_seconds INTEGER NOT NULL DEFAULT 0,
			snapshot        TEXT NOT NULL,
			finished_at     DATETIME,
			archived_at     DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_history_archived_at ON history(archived_at);
		CREATE INDEX IF NOT EXISTS idx_history_job_id      ON history(job_id);
	`)
	return err
}

func (s *SQLiteStore) Add(ctx context.Context, e Entry) error {
	snapshot, err := json.Marshal(e.Last)
	if err != nil {
		return fmt.Errorf("encode snapshot for job %s: %w", e.JobID, err)
	}

	var finishedAt interface{}
	if e.FinishedAt != nil {
		finishedAt = e.FinishedAt.UTC()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO history
			(job_id, status, error, elapsed_seconds, snapshot, finished_at, archived_at)
		VALUES
			(?, ?, ?, ?, ?, ?, ?)
	`,
		e.JobID,
		e.Last.Status,
		e.Error,
		e.ElapsedSeconds,
		string(snapshot),
		finishedAt,
		e.ArchivedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("archive job %s: %w", e.JobID, err)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT job_id, error, elapsed_seconds, snapshot, finished_at, archived_at
		FROM history
		ORDER BY seq DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var snapshot string
		var finishedAt sql.NullTime

		if err := rows.Scan(&e.JobID, &e.Error, &e.ElapsedSeconds, &snapshot, &finishedAt, &e.ArchivedAt); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		if err := json.Unmarshal([]byte(snapshot), &e.Last); err != nil {
			return nil, fmt.Errorf("decode snapshot for job %s: %w", e.JobID, err)
		}
		if finishedAt.Valid {
			t := finishedAt.Time
			e.FinishedAt = &t
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return entries, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
