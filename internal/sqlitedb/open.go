// Package sqlitedb provides the shared embedded-database plumbing every
// feed's store builds on: opening a file with sane pragmas and applying
// idempotent CREATE TABLE IF NOT EXISTS migrations.
package sqlitedb

import (
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// Open opens (creating if necessary) a SQLite database file and applies
// migrations. path may be a file path or ":memory:"/"file::memory:?cache=shared"
// for tests. Busy timeout is set so concurrent writers from the ingestion
// and read paths don't immediately fail with SQLITE_BUSY.
func Open(path string, migrations ...string) (*sql.DB, error) {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	db, err := sql.Open("sqlite", path+sep+"_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}

	for _, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate sqlite %s: %w", path, err)
		}
	}

	return db, nil
}
