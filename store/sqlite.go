package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/vinayprograms/taskkit/errors"
	"github.com/vinayprograms/taskkit/task"
)

// SQLiteStore implements Store against a SQLite database. Saves are
// synchronous full-set transactions; SQLite's own journal provides the
// crash-safety the file store gets from atomic rename.
type SQLiteStore struct {
	db     *sql.DB
	closed atomic.Bool
}

// NewSQLiteStore opens (or creates) a SQLite-backed store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.Validation("sqlite store requires a path")
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.Storage("creating store directory", err,
				errors.WithMetadata("path", dir))
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Storage("opening sqlite database", err,
			errors.WithMetadata("path", path))
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, errors.Storage("migrating sqlite schema", err,
			errors.WithMetadata("path", path))
	}
	return s, nil
}

// migrate creates the task table.
func (s *SQLiteStore) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			state TEXT NOT NULL,
			position INTEGER NOT NULL,
			tags TEXT,
			metadata TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			completed_at DATETIME
		);

		CREATE INDEX IF NOT EXISTS idx_tasks_state ON tasks(state);
		CREATE INDEX IF NOT EXISTS idx_tasks_position ON tasks(position);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Load returns the full record set.
func (s *SQLiteStore) Load() ([]*task.Task, error) {
	if s.closed.Load() {
		return nil, errors.Storage("sqlite store closed", nil)
	}

	rows, err := s.db.Query(`
		SELECT id, content, state, position, tags, metadata,
		       created_at, updated_at, completed_at
		FROM tasks ORDER BY position`)
	if err != nil {
		return nil, errors.Storage("querying tasks", err)
	}
	defer rows.Close()

	var records []*task.Task
	for rows.Next() {
		var (
			t           task.Task
			state       string
			tagsJSON    sql.NullString
			metaJSON    sql.NullString
			completedAt sql.NullTime
		)
		if err := rows.Scan(&t.ID, &t.Content, &state, &t.Order,
			&tagsJSON, &metaJSON, &t.CreatedAt, &t.UpdatedAt, &completedAt); err != nil {
			return nil, errors.Storage("scanning task row", err)
		}
		t.State = task.State(state)
		if tagsJSON.Valid && tagsJSON.String != "" {
			if err := json.Unmarshal([]byte(tagsJSON.String), &t.Tags); err != nil {
				return nil, errors.Storage("decoding task tags", err,
					errors.WithTaskID(t.ID))
			}
		}
		if metaJSON.Valid && metaJSON.String != "" {
			if err := json.Unmarshal([]byte(metaJSON.String), &t.Metadata); err != nil {
				return nil, errors.Storage("decoding task metadata", err,
					errors.WithTaskID(t.ID))
			}
		}
		if completedAt.Valid {
			completed := completedAt.Time
			t.CompletedAt = &completed
		}
		records = append(records, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Storage("iterating task rows", err)
	}
	return records, nil
}

// Save replaces the full record set in one transaction.
func (s *SQLiteStore) Save(records []*task.Task) error {
	if s.closed.Load() {
		return errors.Storage("sqlite store closed", nil)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return errors.Storage("beginning save transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM tasks`); err != nil {
		return errors.Storage("clearing tasks", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO tasks (id, content, state, position, tags, metadata,
		                   created_at, updated_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.Storage("preparing insert", err)
	}
	defer stmt.Close()

	for _, t := range records {
		tagsJSON, metaJSON, err := encodeAux(t)
		if err != nil {
			return err
		}
		var completedAt *time.Time
		if t.CompletedAt != nil {
			completedAt = t.CompletedAt
		}
		if _, err := stmt.Exec(t.ID, t.Content, string(t.State), t.Order,
			tagsJSON, metaJSON, t.CreatedAt, t.UpdatedAt, completedAt); err != nil {
			return errors.Storage("inserting task", err, errors.WithTaskID(t.ID))
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Storage("committing save transaction", err)
	}
	return nil
}

// encodeAux JSON-encodes the tags and metadata columns.
func encodeAux(t *task.Task) (tagsJSON, metaJSON sql.NullString, err error) {
	if len(t.Tags) > 0 {
		data, merr := json.Marshal(t.Tags)
		if merr != nil {
			return tagsJSON, metaJSON, errors.Storage("encoding task tags", merr,
				errors.WithTaskID(t.ID))
		}
		tagsJSON = sql.NullString{String: string(data), Valid: true}
	}
	if len(t.Metadata) > 0 {
		data, merr := json.Marshal(t.Metadata)
		if merr != nil {
			return tagsJSON, metaJSON, errors.Storage("encoding task metadata", merr,
				errors.WithTaskID(t.ID))
		}
		metaJSON = sql.NullString{String: string(data), Valid: true}
	}
	return tagsJSON, metaJSON, nil
}

// Flush is a no-op: saves commit synchronously.
func (s *SQLiteStore) Flush(ctx context.Context) error {
	if s.closed.Load() {
		return errors.Storage("sqlite store closed", nil)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close(ctx context.Context) error {
	if s.closed.Swap(true) {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return errors.Storage("closing sqlite database", err)
	}
	return nil
}
