package helloworld

import (
	"context"
	"testing"

	"github.com/blackmichael/bluesky-feeds/internal/sqlitedb"
)

func TestStore_InsertIsIdempotentAndOrdersNewestFirst(t *testing.T) {
	// A database of its own: the processor test's shared in-memory database
	// already holds rows that would otherwise show up in this page.
	db, err := sqlitedb.Open("file:helloworld_store_test?mode=memory&cache=shared")
	if err != nil {
		t.Fatal(err)
	}
	s, err := newStore(db)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if err := s.insert(ctx, "at://a/1", "cid1", 100); err != nil {
		t.Fatal(err)
	}
	if err := s.insert(ctx, "at://a/1", "cid1-dup", 999); err != nil {
		t.Fatalf("expected re-inserting the same uri to be a no-op, got %v", err)
	}
	if err := s.insert(ctx, "at://a/2", "cid2", 200); err != nil {
		t.Fatal(err)
	}

	rows, err := s.page(ctx, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[0].URI != "at://a/2" || rows[0].CID != "cid2" {
		t.Fatalf("unexpected page result: %+v", rows)
	}
}
