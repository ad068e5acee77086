package privatelist

import (
	"context"
	"testing"
)

func TestStore_MemberLifecycle(t *testing.T) {
	s, err := newStore("file::memory:?cache=shared")
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if err := s.addMember(ctx, "did:plc:user", "did:plc:target1", "2026-01-01T00:00:00Z"); err != nil {
		t.Fatal(err)
	}
	if err := s.addMember(ctx, "did:plc:user", "did:plc:target1", "2026-01-01T00:00:01Z"); err != nil {
		t.Fatalf("expected re-adding the same member to be a no-op, got %v", err)
	}

	targets, err := s.listMembers(ctx, "did:plc:user")
	if err != nil {
		t.Fatal(err)
	}
	if len(targets) != 1 || targets[0] != "did:plc:target1" {
		t.Fatalf("listMembers = %v, want [did:plc:target1]", targets)
	}

	if err := s.removeMember(ctx, "did:plc:user", "did:plc:target1"); err != nil {
		t.Fatal(err)
	}
	targets, err = s.listMembers(ctx, "did:plc:user")
	if err != nil {
		t.Fatal(err)
	}
	if len(targets) != 0 {
		t.Fatalf("expected no members after removal, got %v", targets)
	}
}

func TestStore_PageFiltersByAuthorAndCursor(t *testing.T) {
	s, err := newStore("file::memory:?cache=shared")
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if err := s.cachePost(ctx, "at://a/1", "cid1", "did:plc:a", 100); err != nil {
		t.Fatal(err)
	}
	if err := s.cachePost(ctx, "at://a/2", "cid2", "did:plc:a", 200); err != nil {
		t.Fatal(err)
	}
	if err := s.cachePost(ctx, "at://b/1", "cid3", "did:plc:b", 300); err != nil {
		t.Fatal(err)
	}

	rows, err := s.page(ctx, []string{"did:plc:a"}, 10, 1000)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[0].URI != "at://a/2" {
		t.Fatalf("unexpected page result: %+v", rows)
	}

	rows, err = s.page(ctx, []string{"did:plc:a", "did:plc:b"}, 10, 250)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[0].URI != "at://a/2" {
		t.Fatalf("cursor-bounded, multi-author page result: %+v", rows)
	}
}

func TestStore_SessionRoundTrip(t *testing.T) {
	s, err := newStore("file::memory:?cache=shared")
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if got, err := s.getSession(ctx, "unknown"); err != nil || got != nil {
		t.Fatalf("expected a miss for an unknown session, got %+v err=%v", got, err)
	}

	sess := oauthSession{
		SessionID:      "sess1",
		DID:            "did:plc:user",
		AccessToken:    "access",
		RefreshToken:   "refresh",
		DPoPPrivateKey: "key",
		ExpiresAt:      12345,
	}
	if err := s.putSession(ctx, sess); err != nil {
		t.Fatal(err)
	}

	got, err := s.getSession(ctx, "sess1")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || *got != sess {
		t.Fatalf("getSession = %+v, want %+v", got, sess)
	}
}
