package firehose

import "testing"

func TestParseEvent_CommitWithPostRecord(t *testing.T) {
	raw := []byte(`{
		"did": "did:plc:abc",
		"time_us": 1700000000000000,
		"kind": "commit",
		"commit": {
			"rev": "rev1",
			"operation": "create",
			"collection": "app.bsky.feed.post",
			"rkey": "rkey1",
			"cid": "cid1",
			"record": {
				"$type": "app.bsky.feed.post",
				"text": "hello world",
				"createdAt": "2026-07-30T00:00:00Z",
				"reply": {
					"root": {"uri": "at://did:plc:root/app.bsky.feed.post/r", "cid": "c1"},
					"parent": {"uri": "at://did:plc:parent/app.bsky.feed.post/p", "cid": "c2"}
				},
				"embed": {
					"$type": "app.bsky.embed.images",
					"images": [{"image": {"ref": {"$link": "bafy1"}}}]
				}
			}
		}
	}`)

	event, err := parseEvent(raw)
	if err != nil {
		t.Fatal(err)
	}

	commit := event.toCommitEvent()
	if commit == nil {
		t.Fatal("expected a non-nil commit event")
	}
	if commit.DID != "did:plc:abc" || commit.Collection != "app.bsky.feed.post" || commit.RKey != "rkey1" {
		t.Fatalf("unexpected commit event: %+v", commit)
	}
	if commit.Post == nil || commit.Post.Text != "hello world" {
		t.Fatalf("unexpected post: %+v", commit.Post)
	}
	if commit.Post.Reply == nil || commit.Post.Reply.ParentURI != "at://did:plc:parent/app.bsky.feed.post/p" {
		t.Fatalf("unexpected reply ref: %+v", commit.Post.Reply)
	}
	if commit.Post.Embed == nil || len(commit.Post.Embed.Images) != 1 || commit.Post.Embed.Images[0].CID != "bafy1" {
		t.Fatalf("unexpected embed: %+v", commit.Post.Embed)
	}
}

func TestParseEvent_NonCommitKindYieldsNilCommitEvent(t *testing.T) {
	raw := []byte(`{"did": "did:plc:abc", "time_us": 1, "kind": "identity"}`)

	event, err := parseEvent(raw)
	if err != nil {
		t.Fatal(err)
	}
	if got := event.toCommitEvent(); got != nil {
		t.Fatalf("expected a nil commit event for a non-commit kind, got %+v", got)
	}
}

func TestParseEvent_UntypedBlobLinkEncoding(t *testing.T) {
	raw := []byte(`{
		"did": "did:plc:abc",
		"time_us": 1,
		"kind": "commit",
		"commit": {
			"operation": "create",
			"collection": "app.bsky.feed.post",
			"rkey": "rkey1",
			"cid": "cid1",
			"record": {
				"$type": "app.bsky.feed.post",
				"text": "bluesky",
				"embed": {
					"$type": "app.bsky.embed.images",
					"images": [{"image": {"$link": "bafy2"}}]
				}
			}
		}
	}`)

	event, err := parseEvent(raw)
	if err != nil {
		t.Fatal(err)
	}
	commit := event.toCommitEvent()
	if commit.Post.Embed == nil || commit.Post.Embed.Images[0].CID != "bafy2" {
		t.Fatalf("expected the untyped blob link to be read, got %+v", commit.Post.Embed)
	}
}
