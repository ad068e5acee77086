// Package fakebluesky implements the fakebluesky feed: posts whose text is
// just "bluesky" (plus trailing punctuation) and whose attached images are
// judged to actually depict a blue sky.
package fakebluesky

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/blackmichael/bluesky-feeds/internal/domain"
)

const migration = `
CREATE TABLE IF NOT EXISTS fakebluesky_index (
	uri        TEXT PRIMARY KEY,
	cid        TEXT NOT NULL,
	indexed_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS fakebluesky_index_indexed_at ON fakebluesky_index (indexed_at DESC)`

type store struct {
	db *sql.DB
}

func newStore(db *sql.DB) (*store, error) {
	if _, err := db.Exec(migration); err != nil {
		return nil, fmt.Errorf("migrate fakebluesky: %w", err)
	}
	return &store{db: db}, nil
}

func (s *store) insert(ctx context.Context, uri, cid string, indexedAtSec int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO fakebluesky_index (uri, cid, indexed_at)
		VALUES (?, ?, ?)
		ON CONFLICT (uri) DO NOTHING`,
		uri, cid, indexedAtSec,
	)
	return err
}

func (s *store) page(ctx context.Context, limit int, cursor int64) ([]domain.IndexedPost, error) {
	var rows *sql.Rows
	var err error
	if cursor > 0 {
		rows, err = s.db.QueryContext(ctx, `
			SELECT uri, cid, indexed_at FROM fakebluesky_index
			WHERE indexed_at < ?
			ORDER BY indexed_at DESC
			LIMIT ?`, cursor, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT uri, cid, indexed_at FROM fakebluesky_index
			ORDER BY indexed_at DESC
			LIMIT ?`, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("query fakebluesky page: %w", err)
	}
	defer rows.Close()

	var out []domain.IndexedPost
	for rows.Next() {
		var p domain.IndexedPost
		if err := rows.Scan(&p.URI, &p.CID, &p.IndexedAt); err != nil {
			return nil, fmt.Errorf("scan fakebluesky row: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
