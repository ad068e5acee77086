package helloworld

import (
	"context"
	"testing"

	"github.com/blackmichael/bluesky-feeds/internal/domain"
)

func TestHelloWorldRegex(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"hello world", true},
		{"Hello, World!", true},
		{"HELLO    WORLD", true},
		{"well hello world how are you", true},
		{"goodbye world", false},
		{"hello there", false},
	}
	for _, tc := range cases {
		if got := helloWorldRe.MatchString(tc.text); got != tc.want {
			t.Errorf("helloWorldRe.MatchString(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}

func TestProcessor_ReadSkeleton_PrependsPinnedPostOnFirstPageOnly(t *testing.T) {
	p, err := New("file::memory:?cache=shared", "did:plc:publisher", "at://did:plc:pin/app.bsky.feed.post/pin1")
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	for i, rkey := range []string{"rkey1", "rkey2"} {
		if err := p.ProcessEvent(ctx, &domain.CommitEvent{
			DID:        "did:plc:a",
			Collection: "app.bsky.feed.post",
			RKey:       rkey,
			CID:        "cid",
			Operation:  "create",
			Post:       &domain.Post{Text: "hello world"},
		}); err != nil {
			t.Fatalf("ProcessEvent(%d): %v", i, err)
		}
	}

	skeleton, err := p.ReadSkeleton(ctx, 10, "", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(skeleton.Feed) == 0 || skeleton.Feed[0].Post != p.pinnedURI {
		t.Fatalf("expected the pinned post first on an uncursored read, got %+v", skeleton.Feed)
	}

	skeleton2, err := p.ReadSkeleton(ctx, 10, skeleton.Cursor, "")
	if err != nil {
		t.Fatal(err)
	}
	for _, post := range skeleton2.Feed {
		if post.Post == p.pinnedURI {
			t.Fatal("did not expect the pinned post on a cursored read")
		}
	}
}
