package oneyearago

import (
	"context"
	"testing"
	"time"
)

func TestCacheStore_TimezoneRoundTrip(t *testing.T) {
	c, err := newCacheStore("file::memory:?cache=shared")
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)

	if _, ok, err := c.getTimezone(ctx, "did:plc:x", now); err != nil || ok {
		t.Fatalf("expected a cache miss, got ok=%v err=%v", ok, err)
	}

	if err := c.setTimezone(ctx, "did:plc:x", 9*3600, now); err != nil {
		t.Fatal(err)
	}

	offset, ok, err := c.getTimezone(ctx, "did:plc:x", now)
	if err != nil || !ok || offset != 9*3600 {
		t.Fatalf("getTimezone = (%d, %v, %v), want (32400, true, nil)", offset, ok, err)
	}

	// Past the 24h TTL, the entry should no longer be visible.
	later := now.Add(25 * time.Hour)
	if _, ok, err := c.getTimezone(ctx, "did:plc:x", later); err != nil || ok {
		t.Fatalf("expected the timezone cache entry to have expired, got ok=%v err=%v", ok, err)
	}
}

func TestCacheStore_CleanupIsGatedAndIdempotent(t *testing.T) {
	c, err := newCacheStore("file::memory:?cache=shared")
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	beforeGate := time.Date(2026, 7, 29, 18, 0, 0, 0, time.UTC) // +9h = 03:00 local, before the hour-4 gate
	if err := c.cleanupIfDue(ctx, beforeGate); err != nil {
		t.Fatal(err)
	}
	if lastDone, ok, err := c.getRaw(ctx, cleanupSentinelKey, beforeGate); err != nil || ok {
		t.Fatalf("expected no cleanup sentinel to be written before the hour gate, got %q ok=%v err=%v", lastDone, ok, err)
	}

	afterGate := time.Date(2026, 7, 29, 20, 0, 0, 0, time.UTC) // +9h = 05:00 local, past the hour-4 gate
	if err := c.cleanupIfDue(ctx, afterGate); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := c.getRaw(ctx, cleanupSentinelKey, afterGate); err != nil || !ok {
		t.Fatalf("expected a cleanup sentinel to be written, got ok=%v err=%v", ok, err)
	}
}
