package domain

import "fmt"

// CommitEvent is a single commit announcement from the firehose. The router
// hands every commit event to every processor's ProcessEvent without
// filtering; each processor checks Collection and Operation itself.
type CommitEvent struct {
	// DID is the author's decentralized identifier.
	DID string

	// TimeUS is the event time in microseconds since epoch, as reported by
	// the firehose. This is the value persisted as the resume cursor.
	TimeUS int64

	// Collection is the NSID of the record (e.g. "app.bsky.feed.post").
	Collection string

	// RKey is the record key.
	RKey string

	// CID is the content hash of the record.
	CID string

	// Operation is "create" or "delete".
	Operation string

	// Post is populated for create operations whose collection is
	// app.bsky.feed.post. Nil for deletes.
	Post *Post
}

// Post is the subset of an app.bsky.feed.post record that feed processors
// need to make their matching decisions.
type Post struct {
	Text  string
	Langs []string
	Embed *Embed
	Reply *ReplyRef
}

// Embed carries the image blobs attached to a post, when present. Other
// embed variants (external, record, video) are not represented here;
// processors that don't care about images never look at this.
type Embed struct {
	Images []ImageBlob
}

// ImageBlob is one image attached via an images embed. CID is read from
// either the typed ("image": {"ref": {"$link": ...}}) or untyped
// ("image": {"$link": ...}) blob reference encodings seen on the firehose.
type ImageBlob struct {
	CID string
}

// ReplyRef points at the parent of a reply post.
type ReplyRef struct {
	ParentURI string
}

// URI returns the canonical at-uri for this event: at://{did}/{collection}/{rkey}.
func (e *CommitEvent) URI() string {
	return PostURI(e.DID, e.Collection, e.RKey)
}

// PostURI builds the canonical at-uri form used throughout storage.
func PostURI(did, collection, rkey string) string {
	return fmt.Sprintf("at://%s/%s/%s", did, collection, rkey)
}

// IndexedPost is a row as stored in a feed's durable index. The unit of
// IndexedAt (microseconds or seconds) is feed-specific; see each store's
// package doc.
type IndexedPost struct {
	URI       string
	CID       string
	IndexedAt int64
}
