package domain

import (
	"context"
	"testing"
)

type stubProcessor struct {
	uri string
}

func (s *stubProcessor) URI() string { return s.uri }
func (s *stubProcessor) ProcessEvent(ctx context.Context, evt *CommitEvent) error {
	return nil
}
func (s *stubProcessor) ReadSkeleton(ctx context.Context, limit int, cursor, requesterDID string) (*FeedSkeleton, error) {
	return &FeedSkeleton{}, nil
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	a := &stubProcessor{uri: "at://did/app.bsky.feed.generator/a"}
	b := &stubProcessor{uri: "at://did/app.bsky.feed.generator/b"}
	r.Register(a)
	r.Register(b)

	if got, ok := r.Lookup(a.uri); !ok || got != a {
		t.Fatalf("Lookup(%q) = (%v, %v), want (%v, true)", a.uri, got, ok, a)
	}
	if _, ok := r.Lookup("at://unknown"); ok {
		t.Fatal("expected Lookup of an unregistered URI to report false")
	}

	uris := r.URIs()
	if len(uris) != 2 || uris[0] != a.uri || uris[1] != b.uri {
		t.Fatalf("URIs() = %v, want registration order [%s %s]", uris, a.uri, b.uri)
	}
}

func TestRegistry_RegisterDuplicatePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected Register to panic on a duplicate URI")
		}
	}()
	r := NewRegistry()
	r.Register(&stubProcessor{uri: "at://did/app.bsky.feed.generator/a"})
	r.Register(&stubProcessor{uri: "at://did/app.bsky.feed.generator/a"})
}

func TestFeedURI(t *testing.T) {
	got := FeedURI("did:plc:abc", "helloworld")
	want := "at://did:plc:abc/app.bsky.feed.generator/helloworld"
	if got != want {
		t.Fatalf("FeedURI() = %q, want %q", got, want)
	}
}
