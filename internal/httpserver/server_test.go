package httpserver

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/blackmichael/bluesky-feeds/internal/apperr"
	"github.com/blackmichael/bluesky-feeds/internal/config"
	"github.com/blackmichael/bluesky-feeds/internal/domain"
)

type stubProcessor struct {
	uri     string
	reqDID  string
	err     error
	results *domain.FeedSkeleton
}

func (s *stubProcessor) URI() string { return s.uri }
func (s *stubProcessor) ProcessEvent(ctx context.Context, evt *domain.CommitEvent) error {
	return nil
}
func (s *stubProcessor) ReadSkeleton(ctx context.Context, limit int, cursor, requesterDID string) (*domain.FeedSkeleton, error) {
	s.reqDID = requesterDID
	if s.err != nil {
		return nil, s.err
	}
	return s.results, nil
}

func testServer(t *testing.T, processors ...domain.FeedProcessor) *Server {
	t.Helper()
	registry := domain.NewRegistry()
	for _, p := range processors {
		registry.Register(p)
	}
	cfg := &config.Config{Hostname: "example.com", PublisherDID: "did:plc:publisher"}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewServer(cfg, registry, nil, logger)
}

func TestHandleGetFeedSkeleton_UnknownFeed(t *testing.T) {
	s := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/xrpc/app.bsky.feed.getFeedSkeleton?feed=at://did/app.bsky.feed.generator/nope", nil)
	w := httptest.NewRecorder()

	s.handleGetFeedSkeleton(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestHandleGetFeedSkeleton_MissingFeedParam(t *testing.T) {
	s := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/xrpc/app.bsky.feed.getFeedSkeleton", nil)
	w := httptest.NewRecorder()

	s.handleGetFeedSkeleton(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestHandleGetFeedSkeleton_DispatchesToRegisteredFeed(t *testing.T) {
	proc := &stubProcessor{
		uri:     "at://did/app.bsky.feed.generator/helloworld",
		results: &domain.FeedSkeleton{Feed: []domain.SkeletonPost{{Post: "at://a/1"}}, Cursor: "42"},
	}
	s := testServer(t, proc)

	req := httptest.NewRequest(http.MethodGet, "/xrpc/app.bsky.feed.getFeedSkeleton?feed="+proc.uri, nil)
	w := httptest.NewRecorder()

	s.handleGetFeedSkeleton(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", w.Code, w.Body.String())
	}
	var body domain.FeedSkeleton
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Feed) != 1 || body.Feed[0].Post != "at://a/1" || body.Cursor != "42" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestHandleGetFeedSkeleton_PropagatesAppErrStatus(t *testing.T) {
	proc := &stubProcessor{
		uri: "at://did/app.bsky.feed.generator/oneyearago",
		err: apperr.Auth("requires an authenticated requester"),
	}
	s := testServer(t, proc)

	req := httptest.NewRequest(http.MethodGet, "/xrpc/app.bsky.feed.getFeedSkeleton?feed="+proc.uri, nil)
	w := httptest.NewRecorder()

	s.handleGetFeedSkeleton(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestHandleDescribeFeedGenerator(t *testing.T) {
	proc := &stubProcessor{uri: "at://did/app.bsky.feed.generator/helloworld"}
	s := testServer(t, proc)

	req := httptest.NewRequest(http.MethodGet, "/xrpc/app.bsky.feed.describeFeedGenerator", nil)
	w := httptest.NewRecorder()

	s.handleDescribeFeedGenerator(w, req)

	var body domain.GeneratorDescription
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.DID != "did:web:example.com" || len(body.Feeds) != 1 || body.Feeds[0].URI != proc.uri {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestHandleDIDDoc(t *testing.T) {
	s := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/.well-known/did.json", nil)
	w := httptest.NewRecorder()

	s.handleDIDDoc(w, req)

	var doc map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &doc); err != nil {
		t.Fatal(err)
	}
	if doc["id"] != "did:web:example.com" {
		t.Fatalf("unexpected did doc: %+v", doc)
	}
}
