package oneyearago

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/blackmichael/bluesky-feeds/internal/apperr"
	"github.com/blackmichael/bluesky-feeds/internal/bskyapi"
	"github.com/blackmichael/bluesky-feeds/internal/domain"
)

const (
	feedName     = "oneyearago"
	defaultLimit = 30
)

// Processor implements domain.FeedProcessor for the oneyearago feed. It
// never ingests from the firehose: ProcessEvent is a no-op, and every read
// queries upstream search live (through the two-level cache).
type Processor struct {
	uri    string
	cache  *cacheStore
	client *bskyapi.Client
	logger *slog.Logger
}

// New opens the oneyearago cache at dbPath and wires it to client for
// upstream search and profile lookups.
func New(dbPath, publisherDID string, client *bskyapi.Client, logger *slog.Logger) (*Processor, error) {
	cache, err := newCacheStore(dbPath)
	if err != nil {
		return nil, err
	}
	return &Processor{
		uri:    domain.FeedURI(publisherDID, feedName),
		cache:  cache,
		client: client,
		logger: logger,
	}, nil
}

func (p *Processor) URI() string { return p.uri }

// ProcessEvent is a no-op: oneyearago is read-path-only, sourcing directly
// from upstream search rather than a firehose-fed index.
func (p *Processor) ProcessEvent(ctx context.Context, evt *domain.CommitEvent) error {
	return nil
}

func (p *Processor) ReadSkeleton(ctx context.Context, limit int, cursor string, requesterDID string) (*domain.FeedSkeleton, error) {
	if requesterDID == "" {
		return nil, apperr.Auth("oneyearago: requires an authenticated requester")
	}
	if limit <= 0 {
		limit = defaultLimit
	}

	now := time.Now().UTC()
	state := parseCursor(cursor)

	offsetSeconds, err := resolveTimezone(ctx, p.cache, profileAdapter{p.client}, requesterDID, now)
	if err != nil {
		return nil, fmt.Errorf("oneyearago: resolve timezone: %w", err)
	}

	loc := time.FixedZone("requester", offsetSeconds)
	yymmdd := now.In(loc).Format("060102")

	if cached, hit, err := p.cache.getFeed(ctx, requesterDID, yymmdd, offsetSeconds, limit, cursor, now); err != nil {
		return nil, fmt.Errorf("oneyearago: read cache: %w", err)
	} else if hit {
		return toSkeleton(cached), nil
	}

	uris, next, err := waterfall(ctx, searchAdapter{p.client}, requesterDID, offsetSeconds, limit, state, now)
	if err != nil {
		return nil, fmt.Errorf("oneyearago: waterfall: %w", err)
	}

	result := feedCacheValue{URIs: uris, Next: next}
	expiresAt := nextLocalMidnightUTC(now, loc)
	if err := p.cache.setFeed(ctx, requesterDID, yymmdd, offsetSeconds, limit, cursor, result, expiresAt); err != nil {
		p.logger.Error("oneyearago: failed to write feed cache", "error", err)
	}

	go func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := p.cache.cleanupIfDue(cleanupCtx, time.Now().UTC()); err != nil {
			p.logger.Error("oneyearago: cache cleanup failed", "error", err)
		}
	}()

	return toSkeleton(&result), nil
}

func toSkeleton(v *feedCacheValue) *domain.FeedSkeleton {
	skeleton := &domain.FeedSkeleton{Cursor: v.Next}
	for _, uri := range v.URIs {
		skeleton.Feed = append(skeleton.Feed, domain.SkeletonPost{Post: uri})
	}
	return skeleton
}

// nextLocalMidnightUTC is the requester's next local-day boundary,
// expressed in UTC — the feed-result cache TTL.
func nextLocalMidnightUTC(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, 1)
	return next.UTC()
}

type searchAdapter struct{ client *bskyapi.Client }

func (a searchAdapter) SearchPosts(ctx context.Context, q, sort, since, until, cursor string, limit int) ([]string, string, error) {
	result, err := a.client.SearchPosts(ctx, q, sort, since, until, cursor, limit)
	if err != nil {
		return nil, "", err
	}
	uris := make([]string, 0, len(result.Posts))
	for _, post := range result.Posts {
		uris = append(uris, post.URI)
	}
	return uris, result.Cursor, nil
}

type profileAdapter struct{ client *bskyapi.Client }

func (a profileAdapter) GetProfile(ctx context.Context, actor string) (string, error) {
	profile, err := a.client.GetProfile(ctx, actor)
	if err != nil {
		return "", err
	}
	return profile.Description, nil
}
