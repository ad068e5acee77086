// Package oneyearago implements the oneyearago feed: a requester's own
// posts from one calendar year ago (in their local timezone), falling back
// to earlier years until enough posts are found or the service's launch
// year is reached. A two-level TTL cache avoids re-querying upstream search
// on every page load.
package oneyearago

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/blackmichael/bluesky-feeds/internal/sqlitedb"
)

const cacheMigration = `
CREATE TABLE IF NOT EXISTS cache (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	expires_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cache_expires_at ON cache (expires_at)`

const (
	timezoneTTL        = 24 * time.Hour
	cleanupSentinelKey = "internal:last_cleanup_date"
	// serviceLocalOffset fixes the cleanup guard's notion of "day" at +9h,
	// matching the upstream service's own operating timezone.
	serviceLocalOffset = 9 * time.Hour
	cleanupHourGate    = 4
)

type cacheStore struct {
	db *sql.DB
}

func newCacheStore(dbPath string) (*cacheStore, error) {
	db, err := sqlitedb.Open(dbPath, cacheMigration)
	if err != nil {
		return nil, err
	}
	return &cacheStore{db: db}, nil
}

func (c *cacheStore) getRaw(ctx context.Context, key string, now time.Time) (string, bool, error) {
	var value string
	err := c.db.QueryRowContext(ctx,
		`SELECT value FROM cache WHERE key = ? AND expires_at > ?`, key, now.Unix(),
	).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("cache: get %q: %w", key, err)
	}
	return value, true, nil
}

func (c *cacheStore) setRaw(ctx context.Context, key, value string, expiresAt time.Time) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO cache (key, value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, value, expiresAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("cache: set %q: %w", key, err)
	}
	return nil
}

type timezoneCacheValue struct {
	OffsetSeconds int `json:"offset"`
}

func timezoneKey(did string) string { return "tz:" + did }

// getTimezone returns the cached UTC offset in seconds, if present and
// unexpired.
func (c *cacheStore) getTimezone(ctx context.Context, did string, now time.Time) (int, bool, error) {
	raw, ok, err := c.getRaw(ctx, timezoneKey(did), now)
	if err != nil || !ok {
		return 0, false, err
	}
	var v timezoneCacheValue
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return 0, false, fmt.Errorf("cache: parse timezone: %w", err)
	}
	return v.OffsetSeconds, true, nil
}

// setTimezone caches offsetSeconds for did with a 24h TTL.
func (c *cacheStore) setTimezone(ctx context.Context, did string, offsetSeconds int, now time.Time) error {
	payload, err := json.Marshal(timezoneCacheValue{OffsetSeconds: offsetSeconds})
	if err != nil {
		return err
	}
	return c.setRaw(ctx, timezoneKey(did), string(payload), now.Add(timezoneTTL))
}

type feedCacheValue struct {
	URIs []string `json:"uris"`
	Next string   `json:"next,omitempty"`
}

// feedKey builds the feed-result cache key: did, the requester's local
// calendar date (yymmdd), their tz offset, the page limit, and an FNV-1a
// hash of the input cursor (or "none").
func feedKey(did, yymmdd string, offsetSeconds, limit int, cursor string) string {
	return fmt.Sprintf("fn:%s:%s:%d:%d:%s", did, yymmdd, offsetSeconds, limit, hashCursor(cursor))
}

func hashCursor(cursor string) string {
	if cursor == "" {
		return "none"
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(cursor))
	return hex.EncodeToString(h.Sum(nil))
}

func (c *cacheStore) getFeed(ctx context.Context, did, yymmdd string, offsetSeconds, limit int, cursor string, now time.Time) (*feedCacheValue, bool, error) {
	raw, ok, err := c.getRaw(ctx, feedKey(did, yymmdd, offsetSeconds, limit, cursor), now)
	if err != nil || !ok {
		return nil, false, err
	}
	var v feedCacheValue
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, false, fmt.Errorf("cache: parse feed result: %w", err)
	}
	return &v, true, nil
}

// setFeed caches a feed result until expiresAt — the requester's next local
// midnight, expressed in UTC.
func (c *cacheStore) setFeed(ctx context.Context, did, yymmdd string, offsetSeconds, limit int, cursor string, v feedCacheValue, expiresAt time.Time) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.setRaw(ctx, feedKey(did, yymmdd, offsetSeconds, limit, cursor), string(payload), expiresAt)
}

// cleanupIfDue deletes expired cache rows at most once per service-local
// day, and only once that day's local hour has passed cleanupHourGate.
// Idempotent: a second call on the same service-local day is a no-op.
func (c *cacheStore) cleanupIfDue(ctx context.Context, now time.Time) error {
	serviceNow := now.In(time.FixedZone("service", int(serviceLocalOffset.Seconds())))
	if serviceNow.Hour() < cleanupHourGate {
		return nil
	}

	today := serviceNow.Format("060102")
	lastDone, ok, err := c.getRaw(ctx, cleanupSentinelKey, now)
	if err != nil {
		return err
	}
	if ok && lastDone == today {
		return nil
	}

	if _, err := c.db.ExecContext(ctx, `DELETE FROM cache WHERE expires_at <= ?`, now.Unix()); err != nil {
		return fmt.Errorf("cache: cleanup: %w", err)
	}

	return c.setRaw(ctx, cleanupSentinelKey, today, now.AddDate(10, 0, 0))
}
