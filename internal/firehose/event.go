package firehose

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/blackmichael/bluesky-feeds/internal/domain"
)

// jetstreamEvent is the raw JSON structure from Jetstream.
type jetstreamEvent struct {
	DID    string           `json:"did"`
	TimeUS int64            `json:"time_us"`
	Kind   string           `json:"kind"`
	Commit *jetstreamCommit `json:"commit,omitempty"`
}

// jetstreamCommit is the raw commit data from Jetstream.
type jetstreamCommit struct {
	Rev        string      `json:"rev"`
	Operation  string      `json:"operation"`
	Collection string      `json:"collection"`
	RKey       string      `json:"rkey"`
	Record     *postRecord `json:"record,omitempty"`
	CID        string      `json:"cid"`
}

// postRecord is the parsed content of an app.bsky.feed.post record.
type postRecord struct {
	Type      string     `json:"$type"`
	Text      string     `json:"text"`
	CreatedAt string     `json:"createdAt"`
	Langs     []string   `json:"langs"`
	Reply     *replyRef  `json:"reply,omitempty"`
	Embed     *postEmbed `json:"embed,omitempty"`
	Tags      []string   `json:"tags,omitempty"`
}

// replyRef contains references to the parent and root of a reply chain.
type replyRef struct {
	Root   strongRef `json:"root"`
	Parent strongRef `json:"parent"`
}

// strongRef is a reference to a specific version of a record.
type strongRef struct {
	URI string `json:"uri"`
	CID string `json:"cid"`
}

// postEmbed covers only the images variant; every other $type is ignored by
// every processor so it isn't modeled.
type postEmbed struct {
	Type   string       `json:"$type"`
	Images []imageEmbed `json:"images,omitempty"`
}

type imageEmbed struct {
	Image blobRef `json:"image"`
}

// blobRef accepts both encodings Jetstream has been observed to emit for a
// blob reference: the typed form with a nested "ref" object, and the
// untyped form with "$link" directly on the blob.
type blobRef struct {
	Ref *struct {
		Link string `json:"$link"`
	} `json:"ref,omitempty"`
	Link string `json:"$link,omitempty"`
}

func (b blobRef) cid() string {
	if b.Ref != nil && b.Ref.Link != "" {
		return b.Ref.Link
	}
	return b.Link
}

func parseEvent(data []byte) (*jetstreamEvent, error) {
	var raw struct {
		DID    string          `json:"did"`
		TimeUS int64           `json:"time_us"`
		Kind   string          `json:"kind"`
		Commit json.RawMessage `json:"commit,omitempty"`
	}

	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal event: %w", err)
	}

	event := &jetstreamEvent{
		DID:    raw.DID,
		TimeUS: raw.TimeUS,
		Kind:   raw.Kind,
	}

	if raw.Kind == "commit" && len(raw.Commit) > 0 {
		var rc struct {
			Rev        string          `json:"rev"`
			Operation  string          `json:"operation"`
			Collection string          `json:"collection"`
			RKey       string          `json:"rkey"`
			Record     json.RawMessage `json:"record,omitempty"`
			CID        string          `json:"cid"`
		}
		if err := json.Unmarshal(raw.Commit, &rc); err != nil {
			return nil, fmt.Errorf("unmarshal commit: %w", err)
		}

		commit := &jetstreamCommit{
			Rev:        rc.Rev,
			Operation:  rc.Operation,
			Collection: rc.Collection,
			RKey:       rc.RKey,
			CID:        rc.CID,
		}

		if len(rc.Record) > 0 && strings.HasPrefix(rc.Collection, "app.bsky.feed.post") {
			var record postRecord
			if err := json.Unmarshal(rc.Record, &record); err != nil {
				return nil, fmt.Errorf("unmarshal post record: %w", err)
			}
			commit.Record = &record
		}

		event.Commit = commit
	}

	return event, nil
}

// toCommitEvent converts a raw Jetstream event into the domain shape every
// processor consumes. Returns nil for non-commit events; the router skips
// those before calling any processor.
func (e *jetstreamEvent) toCommitEvent() *domain.CommitEvent {
	if e.Kind != "commit" || e.Commit == nil {
		return nil
	}
	c := e.Commit

	evt := &domain.CommitEvent{
		DID:        e.DID,
		TimeUS:     e.TimeUS,
		Collection: c.Collection,
		RKey:       c.RKey,
		CID:        c.CID,
		Operation:  c.Operation,
	}

	if c.Record != nil {
		post := &domain.Post{
			Text:  c.Record.Text,
			Langs: c.Record.Langs,
		}
		if c.Record.Reply != nil {
			post.Reply = &domain.ReplyRef{ParentURI: c.Record.Reply.Parent.URI}
		}
		if c.Record.Embed != nil && c.Record.Embed.Type == "app.bsky.embed.images" {
			images := make([]domain.ImageBlob, 0, len(c.Record.Embed.Images))
			for _, img := range c.Record.Embed.Images {
				if cid := img.Image.cid(); cid != "" {
					images = append(images, domain.ImageBlob{CID: cid})
				}
			}
			if len(images) > 0 {
				post.Embed = &domain.Embed{Images: images}
			}
		}
		evt.Post = post
	}

	return evt
}
