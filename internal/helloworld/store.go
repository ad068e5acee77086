// Package helloworld implements the helloworld feed: a case-insensitive
// "hello world" text match, indexed as posts arrive and served back
// newest-first with a pinned introductory post on the first page.
package helloworld

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/blackmichael/bluesky-feeds/internal/domain"
)

const migration = `
CREATE TABLE IF NOT EXISTS helloworld_index (
	uri        TEXT PRIMARY KEY,
	cid        TEXT NOT NULL,
	indexed_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS helloworld_index_indexed_at ON helloworld_index (indexed_at DESC)`

type store struct {
	db *sql.DB
}

func newStore(db *sql.DB) (*store, error) {
	if _, err := db.Exec(migration); err != nil {
		return nil, fmt.Errorf("migrate helloworld: %w", err)
	}
	return &store{db: db}, nil
}

func (s *store) insert(ctx context.Context, uri, cid string, indexedAtUS int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO helloworld_index (uri, cid, indexed_at)
		VALUES (?, ?, ?)
		ON CONFLICT (uri) DO NOTHING`,
		uri, cid, indexedAtUS,
	)
	return err
}

// page returns up to limit rows with indexed_at < cursor (or unbounded if
// cursor is 0), ordered newest first.
func (s *store) page(ctx context.Context, limit int, cursor int64) ([]domain.IndexedPost, error) {
	var rows *sql.Rows
	var err error
	if cursor > 0 {
		rows, err = s.db.QueryContext(ctx, `
			SELECT uri, cid, indexed_at FROM helloworld_index
			WHERE indexed_at < ?
			ORDER BY indexed_at DESC
			LIMIT ?`, cursor, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT uri, cid, indexed_at FROM helloworld_index
			ORDER BY indexed_at DESC
			LIMIT ?`, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("query helloworld page: %w", err)
	}
	defer rows.Close()

	var out []domain.IndexedPost
	for rows.Next() {
		var p domain.IndexedPost
		if err := rows.Scan(&p.URI, &p.CID, &p.IndexedAt); err != nil {
			return nil, fmt.Errorf("scan helloworld row: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
