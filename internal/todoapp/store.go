// Package todoapp implements the todoapp feed: a personal TODO tracker.
// Root posts beginning with "TODO" are tracked per author; a reply
// beginning with "DONE" retires the post it replies to. Every read is
// scoped to the requesting author — nobody sees another author's TODOs.
package todoapp

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/blackmichael/bluesky-feeds/internal/domain"
)

const migration = `
CREATE TABLE IF NOT EXISTS todoapp_todos (
	uri        TEXT PRIMARY KEY,
	cid        TEXT NOT NULL,
	author_did TEXT NOT NULL,
	indexed_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS todoapp_todos_author_idx ON todoapp_todos (author_did, indexed_at DESC);

CREATE TABLE IF NOT EXISTS todoapp_done_targets (
	author_did TEXT NOT NULL,
	target_uri TEXT NOT NULL,
	PRIMARY KEY (author_did, target_uri)
)`

type store struct {
	db *sql.DB
}

func newStore(db *sql.DB) (*store, error) {
	if _, err := db.Exec(migration); err != nil {
		return nil, fmt.Errorf("migrate todoapp: %w", err)
	}
	return &store{db: db}, nil
}

func (s *store) insertTodo(ctx context.Context, uri, cid, authorDID string, indexedAtUS int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO todoapp_todos (uri, cid, author_did, indexed_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (uri) DO NOTHING`,
		uri, cid, authorDID, indexedAtUS,
	)
	return err
}

func (s *store) insertDoneTarget(ctx context.Context, authorDID, targetURI string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO todoapp_done_targets (author_did, target_uri)
		VALUES (?, ?)
		ON CONFLICT (author_did, target_uri) DO NOTHING`,
		authorDID, targetURI,
	)
	return err
}

// page returns the requester's still-open TODOs, newest first, excluding
// any URI recorded as a DONE target for that same author.
func (s *store) page(ctx context.Context, authorDID string, limit int, cursor int64) ([]domain.IndexedPost, error) {
	var rows *sql.Rows
	var err error
	if cursor > 0 {
		rows, err = s.db.QueryContext(ctx, `
			SELECT uri, cid, indexed_at FROM todoapp_todos
			WHERE author_did = ? AND indexed_at < ?
			AND uri NOT IN (SELECT target_uri FROM todoapp_done_targets WHERE author_did = ?)
			ORDER BY indexed_at DESC
			LIMIT ?`, authorDID, cursor, authorDID, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT uri, cid, indexed_at FROM todoapp_todos
			WHERE author_did = ?
			AND uri NOT IN (SELECT target_uri FROM todoapp_done_targets WHERE author_did = ?)
			ORDER BY indexed_at DESC
			LIMIT ?`, authorDID, authorDID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("query todoapp page: %w", err)
	}
	defer rows.Close()

	var out []domain.IndexedPost
	for rows.Next() {
		var p domain.IndexedPost
		if err := rows.Scan(&p.URI, &p.CID, &p.IndexedAt); err != nil {
			return nil, fmt.Errorf("scan todoapp row: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
