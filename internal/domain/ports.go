package domain

import "context"

// FeedProcessor is implemented once per feed. The event router fans every
// commit event out to every registered processor; each processor decides
// independently whether the event belongs in its index. Registering a new
// feed is adding one more implementation to the registry, not touching the
// router or the HTTP layer.
type FeedProcessor interface {
	// URI is the AT-URI of this feed's generator record. It is also the
	// key clients pass as the `feed` query parameter.
	URI() string

	// ProcessEvent is called once per commit event, in firehose order,
	// for every event regardless of collection. Implementations that only
	// care about app.bsky.feed.post (all of them, today) check
	// evt.Collection themselves. A processor's own failure must never
	// propagate up and block its siblings; the router logs and continues.
	ProcessEvent(ctx context.Context, evt *CommitEvent) error

	// ReadSkeleton returns one page of this feed for the given requester.
	// requesterDID is the subject of the caller's bearer token; feeds that
	// don't personalize ignore it. cursor is opaque and feed-specific.
	ReadSkeleton(ctx context.Context, limit int, cursor string, requesterDID string) (*FeedSkeleton, error)
}

// CursorRepository defines persistence operations for firehose cursors.
// One cursor row per named service; the stream consumer uses the constant
// service name "jetstream".
type CursorRepository interface {
	// GetCursor retrieves the last-processed firehose cursor for the given
	// service name. Returns 0 if no cursor has been saved.
	GetCursor(ctx context.Context, service string) (int64, error)

	// UpdateCursor persists the firehose cursor so we can resume on restart.
	UpdateCursor(ctx context.Context, service string, cursor int64) error
}
