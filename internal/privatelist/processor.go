package privatelist

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/blackmichael/bluesky-feeds/internal/apperr"
	"github.com/blackmichael/bluesky-feeds/internal/bskyapi"
	"github.com/blackmichael/bluesky-feeds/internal/domain"
)

const (
	feedName     = "privatelist"
	defaultLimit = 30
	maxLimit     = 100

	// refreshLimit is how many of each target's most recent posts a refresh
	// pulls in, matching the upstream search page size used by refresh.
	refreshLimit = 100
)

// Processor implements domain.FeedProcessor for the privatelist feed.
// ProcessEvent is a no-op: posts enter the cache only through Refresh.
type Processor struct {
	uri       string
	pinnedURI string
	store     *store
	client    *bskyapi.Client
}

// New opens the privatelist store at dbPath. pinnedURI is served, with no
// cursor, when the requester's list is empty.
func New(dbPath, publisherDID, pinnedURI string, client *bskyapi.Client) (*Processor, error) {
	s, err := newStore(dbPath)
	if err != nil {
		return nil, err
	}
	return &Processor{
		uri:       domain.FeedURI(publisherDID, feedName),
		pinnedURI: pinnedURI,
		store:     s,
		client:    client,
	}, nil
}

func (p *Processor) URI() string { return p.uri }

func (p *Processor) ProcessEvent(ctx context.Context, evt *domain.CommitEvent) error {
	return nil
}

func (p *Processor) ReadSkeleton(ctx context.Context, limit int, cursor string, requesterDID string) (*domain.FeedSkeleton, error) {
	if requesterDID == "" {
		return nil, apperr.Auth("privatelist: requires an authenticated requester")
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	targets, err := p.store.listMembers(ctx, requesterDID)
	if err != nil {
		return nil, fmt.Errorf("privatelist: list members: %w", err)
	}

	if len(targets) == 0 {
		skeleton := &domain.FeedSkeleton{}
		if p.pinnedURI != "" {
			skeleton.Feed = append(skeleton.Feed, domain.SkeletonPost{Post: p.pinnedURI})
		}
		return skeleton, nil
	}

	cursorVal := time.Now().UnixMicro()
	if cursor != "" {
		if v, err := strconv.ParseInt(cursor, 10, 64); err == nil {
			cursorVal = v
		}
	}

	rows, err := p.store.page(ctx, targets, limit, cursorVal)
	if err != nil {
		return nil, fmt.Errorf("privatelist: read page: %w", err)
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

// Add records targetDID on requesterDID's allowlist.
func (p *Processor) Add(ctx context.Context, requesterDID, targetDID string) error {
	return p.store.addMember(ctx, requesterDID, targetDID, time.Now().UTC().Format(time.RFC3339))
}

// Remove drops targetDID from requesterDID's allowlist.
func (p *Processor) Remove(ctx context.Context, requesterDID, targetDID string) error {
	return p.store.removeMember(ctx, requesterDID, targetDID)
}

// List returns requesterDID's allowlisted target DIDs.
func (p *Processor) List(ctx context.Context, requesterDID string) ([]string, error) {
	return p.store.listMembers(ctx, requesterDID)
}

// Refresh re-fetches each of requesterDID's targets' recent posts from
// upstream search and upserts them into the post cache.
func (p *Processor) Refresh(ctx context.Context, requesterDID string) error {
	targets, err := p.store.listMembers(ctx, requesterDID)
	if err != nil {
		return fmt.Errorf("privatelist: list members: %w", err)
	}

	for _, target := range targets {
		result, err := p.client.SearchPosts(ctx, "from:"+target, "latest", "", "", "", refreshLimit)
		if err != nil {
			return fmt.Errorf("privatelist: search posts for %s: %w", target, err)
		}
		for _, post := range result.Posts {
			indexedAt, err := time.Parse(time.RFC3339, post.IndexedAt)
			if err != nil {
				continue
			}
			if err := p.store.cachePost(ctx, post.URI, post.CID, target, indexedAt.UnixMicro()); err != nil {
				return fmt.Errorf("privatelist: cache post: %w", err)
			}
		}
	}
	return nil
}
