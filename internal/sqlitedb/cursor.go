package sqlitedb

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const cursorMigration = `
CREATE TABLE IF NOT EXISTS cursors (
	service      TEXT PRIMARY KEY,
	cursor_value INTEGER NOT NULL,
	updated_at   TEXT NOT NULL
)`

// CursorStore implements domain.CursorRepository against a dedicated
// cursor.db file, shared by every ingestion-side feed and keyed by service
// name, mirroring the teacher's cursors table.
type CursorStore struct {
	db *sql.DB
}

// NewCursorStore opens (or creates) the cursor database at path.
func NewCursorStore(path string) (*CursorStore, error) {
	db, err := Open(path, cursorMigration)
	if err != nil {
		return nil, err
	}
	return &CursorStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *CursorStore) Close() error {
	return s.db.Close()
}

// GetCursor retrieves the last-processed firehose cursor for service.
// Returns 0 if no cursor has been saved.
func (s *CursorStore) GetCursor(ctx context.Context, service string) (int64, error) {
	var cursor int64
	err := s.db.QueryRowContext(ctx,
		`SELECT cursor_value FROM cursors WHERE service = ?`, service,
	).Scan(&cursor)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get cursor: %w", err)
	}
	return cursor, nil
}

// UpdateCursor upserts the firehose cursor for service.
func (s *CursorStore) UpdateCursor(ctx context.Context, service string, cursor int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cursors (service, cursor_value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (service) DO UPDATE SET cursor_value = excluded.cursor_value, updated_at = excluded.updated_at`,
		service, cursor, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("update cursor: %w", err)
	}
	return nil
}
