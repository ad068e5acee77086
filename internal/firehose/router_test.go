package firehose

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/blackmichael/bluesky-feeds/internal/domain"
)

type recordingProcessor struct {
	uri   string
	err   error
	seen  []*domain.CommitEvent
}

func (p *recordingProcessor) URI() string { return p.uri }

func (p *recordingProcessor) ProcessEvent(ctx context.Context, evt *domain.CommitEvent) error {
	p.seen = append(p.seen, evt)
	return p.err
}

func (p *recordingProcessor) ReadSkeleton(ctx context.Context, limit int, cursor, requesterDID string) (*domain.FeedSkeleton, error) {
	return nil, nil
}

func TestDispatch_NilEventIsNoop(t *testing.T) {
	registry := domain.NewRegistry()
	proc := &recordingProcessor{uri: "at://did/app.bsky.feed.generator/a"}
	registry.Register(proc)
	r := NewRouter(registry, slog.New(slog.NewTextHandler(io.Discard, nil)))

	if got := r.Dispatch(context.Background(), nil); got != 0 {
		t.Fatalf("Dispatch(nil) = %d, want 0", got)
	}
	if len(proc.seen) != 0 {
		t.Fatalf("expected no processor calls for a nil event, got %d", len(proc.seen))
	}
}

func TestDispatch_FansOutToEveryProcessorAndSurvivesOneFailing(t *testing.T) {
	registry := domain.NewRegistry()
	failing := &recordingProcessor{uri: "at://did/app.bsky.feed.generator/a", err: errors.New("boom")}
	ok := &recordingProcessor{uri: "at://did/app.bsky.feed.generator/b"}
	registry.Register(failing)
	registry.Register(ok)
	r := NewRouter(registry, slog.New(slog.NewTextHandler(io.Discard, nil)))

	evt := &domain.CommitEvent{DID: "did:plc:abc", TimeUS: 42, Collection: "app.bsky.feed.post", RKey: "r1"}
	got := r.Dispatch(context.Background(), evt)

	if got != 42 {
		t.Fatalf("Dispatch returned cursor %d, want 42", got)
	}
	if len(failing.seen) != 1 || len(ok.seen) != 1 {
		t.Fatalf("expected both processors to observe the event, got failing=%d ok=%d", len(failing.seen), len(ok.seen))
	}
}
