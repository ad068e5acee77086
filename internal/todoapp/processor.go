package todoapp

import (
	"context"
	"fmt"
	"strconv"
	"time"
	"unicode"

	"github.com/blackmichael/bluesky-feeds/internal/apperr"
	"github.com/blackmichael/bluesky-feeds/internal/domain"
	"github.com/blackmichael/bluesky-feeds/internal/sqlitedb"
)

const (
	feedName = "todoapp"

	defaultLimit = 30
	maxLimit     = 100
)

// Processor implements domain.FeedProcessor for the todoapp feed.
type Processor struct {
	uri   string
	store *store
}

// New opens the todoapp index at dbPath.
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

	isReply := evt.Post.Reply != nil

	switch {
	case !isReply && isValidKeyword(evt.Post.Text, "TODO"):
		indexedAtUS := evt.TimeUS
		if indexedAtUS == 0 {
			indexedAtUS = time.Now().UnixMicro()
		}
		if err := p.store.insertTodo(ctx, evt.URI(), evt.CID, evt.DID, indexedAtUS); err != nil {
			return fmt.Errorf("todoapp: insert todo: %w", err)
		}

	case isReply && isValidKeyword(evt.Post.Text, "DONE"):
		if err := p.store.insertDoneTarget(ctx, evt.DID, evt.Post.Reply.ParentURI); err != nil {
			return fmt.Errorf("todoapp: insert done target: %w", err)
		}
	}

	return nil
}

// isValidKeyword reports whether text begins with keyword (case-insensitive)
// and the rune immediately following is either absent or not alphanumeric,
// so "TODO", "TODO:", "done!" match but "TODOist"/"todo123" don't.
func isValidKeyword(text, keyword string) bool {
	runes := []rune(text)
	kwRunes := []rune(keyword)
	if len(runes) < len(kwRunes) {
		return false
	}
	for i, k := range kwRunes {
		if unicode.ToUpper(runes[i]) != unicode.ToUpper(k) {
			return false
		}
	}
	if len(runes) == len(kwRunes) {
		return true
	}
	next := runes[len(kwRunes)]
	return !unicode.IsLetter(next) && !unicode.IsDigit(next)
}

func (p *Processor) ReadSkeleton(ctx context.Context, limit int, cursor string, requesterDID string) (*domain.FeedSkeleton, error) {
	if requesterDID == "" {
		return nil, apperr.Auth("todoapp: requires an authenticated requester")
	}
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
			return nil, fmt.Errorf("todoapp: invalid cursor %q: %w", cursor, err)
		}
		cursorVal = v
	}

	rows, err := p.store.page(ctx, requesterDID, limit, cursorVal)
	if err != nil {
		return nil, fmt.Errorf("todoapp: read page: %w", err)
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
