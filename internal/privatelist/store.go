// Package privatelist implements the privatelist feed: a user-curated
// allowlist of target accounts. Membership is mutated only by the owning
// user; a separate refresh operation pulls each target's recent posts into
// a cache the feed read path serves from.
package privatelist

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/blackmichael/bluesky-feeds/internal/domain"
	"github.com/blackmichael/bluesky-feeds/internal/sqlitedb"
)

const migration = `
CREATE TABLE IF NOT EXISTS privatelist_members (
	user_did   TEXT NOT NULL,
	target_did TEXT NOT NULL,
	created_at TEXT NOT NULL,
	PRIMARY KEY (user_did, target_did)
);
CREATE INDEX IF NOT EXISTS privatelist_members_user_idx ON privatelist_members (user_did);

CREATE TABLE IF NOT EXISTS privatelist_post_cache (
	uri        TEXT PRIMARY KEY,
	cid        TEXT NOT NULL,
	author_did TEXT NOT NULL,
	indexed_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS privatelist_post_cache_author_idx ON privatelist_post_cache (author_did);
CREATE INDEX IF NOT EXISTS privatelist_post_cache_indexed_at_idx ON privatelist_post_cache (indexed_at DESC);

CREATE TABLE IF NOT EXISTS privatelist_oauth_sessions (
	session_id       TEXT PRIMARY KEY,
	did              TEXT NOT NULL,
	access_token     TEXT NOT NULL,
	refresh_token    TEXT NOT NULL,
	dpop_private_key TEXT NOT NULL,
	expires_at       INTEGER NOT NULL
)`

type store struct {
	db *sql.DB
}

func newStore(dbPath string) (*store, error) {
	db, err := sqlitedb.Open(dbPath, migration)
	if err != nil {
		return nil, err
	}
	return &store{db: db}, nil
}

func (s *store) addMember(ctx context.Context, userDID, targetDID string, createdAt string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO privatelist_members (user_did, target_did, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT (user_did, target_did) DO NOTHING`,
		userDID, targetDID, createdAt,
	)
	return err
}

func (s *store) removeMember(ctx context.Context, userDID, targetDID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM privatelist_members WHERE user_did = ? AND target_did = ?`,
		userDID, targetDID,
	)
	return err
}

// listMembers returns userDID's target DIDs, most recently added first.
func (s *store) listMembers(ctx context.Context, userDID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT target_did FROM privatelist_members WHERE user_did = ? ORDER BY created_at DESC`,
		userDID,
	)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	var targets []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		targets = append(targets, t)
	}
	return targets, rows.Err()
}

// cachePost upserts a target's post into the cache, replacing any prior
// row for the same URI: refresh re-reads the full search window each time,
// so last-write-wins is correct here (unlike the firehose-fed indexes).
func (s *store) cachePost(ctx context.Context, uri, cid, authorDID string, indexedAtUS int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO privatelist_post_cache (uri, cid, author_did, indexed_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (uri) DO UPDATE SET cid = excluded.cid, author_did = excluded.author_did, indexed_at = excluded.indexed_at`,
		uri, cid, authorDID, indexedAtUS,
	)
	return err
}

// page returns up to limit cached posts from any of authors, newest first,
// below cursor (exclusive).
func (s *store) page(ctx context.Context, authors []string, limit int, cursor int64) ([]domain.IndexedPost, error) {
	if len(authors) == 0 {
		return nil, nil
	}

	placeholders := make([]byte, 0, len(authors)*2)
	args := make([]any, 0, len(authors)+2)
	for i, a := range authors {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
		args = append(args, a)
	}
	args = append(args, cursor, limit)

	query := fmt.Sprintf(`
		SELECT uri, cid, indexed_at FROM privatelist_post_cache
		WHERE author_did IN (%s) AND indexed_at < ?
		ORDER BY indexed_at DESC
		LIMIT ?`, string(placeholders))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query privatelist page: %w", err)
	}
	defer rows.Close()

	var out []domain.IndexedPost
	for rows.Next() {
		var p domain.IndexedPost
		if err := rows.Scan(&p.URI, &p.CID, &p.IndexedAt); err != nil {
			return nil, fmt.Errorf("scan privatelist row: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type oauthSession struct {
	SessionID      string
	DID            string
	AccessToken    string
	RefreshToken   string
	DPoPPrivateKey string
	ExpiresAt      int64
}

func (s *store) putSession(ctx context.Context, sess oauthSession) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO privatelist_oauth_sessions (session_id, did, access_token, refresh_token, dpop_private_key, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (session_id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at`,
		sess.SessionID, sess.DID, sess.AccessToken, sess.RefreshToken, sess.DPoPPrivateKey, sess.ExpiresAt,
	)
	return err
}

func (s *store) getSession(ctx context.Context, sessionID string) (*oauthSession, error) {
	var sess oauthSession
	err := s.db.QueryRowContext(ctx, `
		SELECT session_id, did, access_token, refresh_token, dpop_private_key, expires_at
		FROM privatelist_oauth_sessions WHERE session_id = ?`, sessionID,
	).Scan(&sess.SessionID, &sess.DID, &sess.AccessToken, &sess.RefreshToken, &sess.DPoPPrivateKey, &sess.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get oauth session: %w", err)
	}
	return &sess, nil
}
