package helloworld

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
	feedName = "helloworld"

	defaultLimit = 30
	maxLimit     = 100
)

var helloWorldRe = regexp.MustCompile(`(?i)hello[,\s]*world`)

// Processor implements domain.FeedProcessor for the helloworld feed.
type Processor struct {
	uri       string
	pinnedURI string
	store     *store
}

// New opens the helloworld index at dbPath and returns a ready processor.
// pinnedURI is the hard-coded welcome post prepended to every first page.
func New(dbPath, publisherDID, pinnedURI string) (*Processor, error) {
	db, err := sqlitedb.Open(dbPath)
	if err != nil {
		return nil, err
	}
	s, err := newStore(db)
	if err != nil {
		return nil, err
	}
	return &Processor{
		uri:       domain.FeedURI(publisherDID, feedName),
		pinnedURI: pinnedURI,
		store:     s,
	}, nil
}

func (p *Processor) URI() string { return p.uri }

// ProcessEvent indexes create events whose text matches hello[,\s]*world.
// Deletes are ignored: a post that stops matching text never happens
// (the text is immutable), and we don't track removals for this feed.
func (p *Processor) ProcessEvent(ctx context.Context, evt *domain.CommitEvent) error {
	if evt.Collection != "app.bsky.feed.post" || evt.Operation != "create" || evt.Post == nil {
		return nil
	}
	if !helloWorldRe.MatchString(evt.Post.Text) {
		return nil
	}

	indexedAtUS := time.Now().UnixMicro()
	if err := p.store.insert(ctx, evt.URI(), evt.CID, indexedAtUS); err != nil {
		return fmt.Errorf("helloworld: insert: %w", err)
	}
	return nil
}

// ReadSkeleton returns the feed page. requesterDID is unused: helloworld is
// not personalized.
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
			return nil, fmt.Errorf("helloworld: invalid cursor %q: %w", cursor, err)
		}
		cursorVal = v
	}

	queryLimit := limit
	prependPinned := cursor == ""
	if prependPinned {
		queryLimit--
	}

	var rows []domain.IndexedPost
	if queryLimit > 0 {
		var err error
		rows, err = p.store.page(ctx, queryLimit, cursorVal)
		if err != nil {
			return nil, fmt.Errorf("helloworld: read page: %w", err)
		}
	}

	skeleton := &domain.FeedSkeleton{}
	if prependPinned && p.pinnedURI != "" {
		skeleton.Feed = append(skeleton.Feed, domain.SkeletonPost{Post: p.pinnedURI})
	}
	for _, r := range rows {
		skeleton.Feed = append(skeleton.Feed, domain.SkeletonPost{Post: r.URI})
	}

	if len(rows) > 0 {
		last := rows[len(rows)-1]
		skeleton.Cursor = strconv.FormatInt(last.IndexedAt, 10)
	}

	return skeleton, nil
}
