package fakebluesky

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/blackmichael/bluesky-feeds/internal/domain"
	"github.com/blackmichael/bluesky-feeds/internal/sqlitedb"
)

const (
	feedName = "fakebluesky"

	defaultLimit = 30
	maxLimit     = 100
)

// bluePostRe matches "bluesky" (any case) followed only by punctuation or
// symbol code points, once whitespace has been collapsed out of the text.
var bluePostRe = regexp.MustCompile(`(?i)^bluesky[\p{P}\p{S}]*$`)

var whitespaceRe = regexp.MustCompile(`\s+`)

// Processor implements domain.FeedProcessor for the fakebluesky feed.
type Processor struct {
	uri   string
	store *store
}

// New opens the fakebluesky index at dbPath.
func New(dbPath, publisherDID string) (*Processor, error) {
	db, err := sqlitedb.Open(dbPath)
	if err != nil {
		return nil, err
	}
	s, err := newStore(db)
	if err != nil {
		return nil, err
	}
	return &Processor{uri: domain.FeedURI(publisherDID, feedName), store: s}, nil
}

func (p *Processor) URI() string { return p.uri }

func (p *Processor) ProcessEvent(ctx context.Context, evt *domain.CommitEvent) error {
	if evt.Collection != "app.bsky.feed.post" || evt.Operation != "create" || evt.Post == nil {
		return nil
	}

	collapsed := whitespaceRe.ReplaceAllString(evt.Post.Text, "")
	if !bluePostRe.MatchString(collapsed) {
		return nil
	}

	if evt.Post.Embed == nil || len(evt.Post.Embed.Images) == 0 {
		return nil
	}

	urls := make([]string, 0, len(evt.Post.Embed.Images))
	for _, img := range evt.Post.Embed.Images {
		urls = append(urls, imageURL(evt.DID, img.CID))
	}

	if shouldExclude(ctx, urls) {
		return nil
	}

	indexedAtSec := evt.TimeUS / 1_000_000
	if indexedAtSec == 0 {
		indexedAtSec = time.Now().Unix()
	}
	if err := p.store.insert(ctx, evt.URI(), evt.CID, indexedAtSec); err != nil {
		return fmt.Errorf("fakebluesky: insert: %w", err)
	}
	return nil
}

func imageURL(did, cid string) string {
	return fmt.Sprintf("https://cdn.bsky.app/img/feed_fullsize/plain/%s/%s@jpeg", did, cid)
}

func (p *Processor) ReadSkeleton(ctx context.Context, limit int, cursor string, requesterDID string) (*domain.FeedSkeleton, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	var cursorVal int64
	if cursor != "" {
		v, err := strconv.ParseInt(cursor, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("fakebluesky: invalid cursor %q: %w", cursor, err)
		}
		cursorVal = v
	}

	rows, err := p.store.page(ctx, limit, cursorVal)
	if err != nil {
		return nil, fmt.Errorf("fakebluesky: read page: %w", err)
	}

	skeleton := &domain.FeedSkeleton{}
	for _, r := range rows {
		skeleton.Feed = append(skeleton.Feed, domain.SkeletonPost{Post: r.URI})
	}
	if len(rows) > 0 {
		skeleton.Cursor = strconv.FormatInt(rows[len(rows)-1].IndexedAt, 10)
	}
	return skeleton, nil
}
