package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/blackmichael/bluesky-feeds/internal/apperr"
	"github.com/blackmichael/bluesky-feeds/internal/config"
	"github.com/blackmichael/bluesky-feeds/internal/domain"
	"github.com/blackmichael/bluesky-feeds/internal/jwtauth"
	"github.com/blackmichael/bluesky-feeds/internal/privatelist"
)

// Server is the HTTP server that serves feed generator XRPC endpoints plus
// the privatelist membership routes.
type Server struct {
	cfg        *config.Config
	registry   *domain.Registry
	privatelst *privatelist.Processor
	logger     *slog.Logger
	httpServer *http.Server
}

// NewServer wires every feed in registry behind the XRPC routes, plus the
// privatelist membership routes against privatelst (nil disables them).
func NewServer(cfg *config.Config, registry *domain.Registry, privatelst *privatelist.Processor, logger *slog.Logger) *Server {
	s := &Server{
		cfg:        cfg,
		registry:   registry,
		privatelst: privatelst,
		logger:     logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /.well-known/did.json", s.handleDIDDoc)
	mux.HandleFunc("GET /xrpc/app.bsky.feed.describeFeedGenerator", s.handleDescribeFeedGenerator)
	mux.HandleFunc("GET /xrpc/app.bsky.feed.getFeedSkeleton", s.handleGetFeedSkeleton)
	mux.HandleFunc("GET /health", s.handleHealth)

	if privatelst != nil {
		mux.HandleFunc("POST /privatelist/add", s.handlePrivatelistAdd)
		mux.HandleFunc("POST /privatelist/remove", s.handlePrivatelistRemove)
		mux.HandleFunc("GET /privatelist/list", s.handlePrivatelistList)
		mux.HandleFunc("POST /privatelist/refresh", s.handlePrivatelistRefresh)
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      withLogging(logger, mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start begins listening for HTTP requests. It blocks until the server is
// shut down or an error occurs.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDIDDoc(w http.ResponseWriter, _ *http.Request) {
	doc := map[string]any{
		"@context": []string{"https://www.w3.org/ns/did/v1"},
		"id":       s.cfg.ServiceDID(),
		"service": []map[string]any{
			{
				"id":              "#bsky_fg",
				"type":            "BskyFeedGenerator",
				"serviceEndpoint": fmt.Sprintf("https://%s", s.cfg.Hostname),
			},
		},
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDescribeFeedGenerator(w http.ResponseWriter, _ *http.Request) {
	uris := s.registry.URIs()
	feeds := make([]domain.FeedDescription, 0, len(uris))
	for _, uri := range uris {
		feeds = append(feeds, domain.FeedDescription{URI: uri})
	}

	writeJSON(w, http.StatusOK, domain.GeneratorDescription{
		DID:   s.cfg.ServiceDID(),
		Feeds: feeds,
	})
}

func (s *Server) handleGetFeedSkeleton(w http.ResponseWriter, r *http.Request) {
	feedURI := r.URL.Query().Get("feed")
	if feedURI == "" {
		writeAppErr(w, s.logger, apperr.BadRequest("feed parameter is required"))
		return
	}

	processor, ok := s.registry.Lookup(feedURI)
	if !ok {
		writeAppErr(w, s.logger, apperr.NotFound(fmt.Sprintf("unknown feed %q", feedURI)))
		return
	}

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 || parsed > 100 {
			writeAppErr(w, s.logger, apperr.BadRequest("limit must be between 1 and 100"))
			return
		}
		limit = parsed
	}

	cursor := r.URL.Query().Get("cursor")

	// requesterDID is optional: not every feed requires it, and an absent or
	// unparsable bearer token just leaves it empty for processors that don't
	// need it. Feeds that do (oneyearago, todoapp, privatelist) reject an
	// empty requesterDID themselves.
	requesterDID, _ := jwtauth.RequesterDID(r)

	skeleton, err := processor.ReadSkeleton(r.Context(), limit, cursor, requesterDID)
	if err != nil {
		s.logger.Error("getFeedSkeleton failed", "feed", feedURI, "error", err)
		writeAppErr(w, s.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, skeleton)
}

func (s *Server) handlePrivatelistAdd(w http.ResponseWriter, r *http.Request) {
	s.privatelistMutate(w, r, s.privatelst.Add)
}

func (s *Server) handlePrivatelistRemove(w http.ResponseWriter, r *http.Request) {
	s.privatelistMutate(w, r, s.privatelst.Remove)
}

func (s *Server) privatelistMutate(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, requesterDID, targetDID string) error) {
	requesterDID, err := jwtauth.RequesterDID(r)
	if err != nil {
		writeAppErr(w, s.logger, err)
		return
	}

	var body struct {
		TargetDID string `json:"targetDid"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.TargetDID == "" {
		writeAppErr(w, s.logger, apperr.BadRequest("targetDid is required"))
		return
	}

	if err := fn(r.Context(), requesterDID, body.TargetDID); err != nil {
		writeAppErr(w, s.logger, apperr.Storage("privatelist membership update failed", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePrivatelistList(w http.ResponseWriter, r *http.Request) {
	requesterDID, err := jwtauth.RequesterDID(r)
	if err != nil {
		writeAppErr(w, s.logger, err)
		return
	}

	targets, err := s.privatelst.List(r.Context(), requesterDID)
	if err != nil {
		writeAppErr(w, s.logger, apperr.Storage("privatelist list failed", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"targets": targets})
}

func (s *Server) handlePrivatelistRefresh(w http.ResponseWriter, r *http.Request) {
	requesterDID, err := jwtauth.RequesterDID(r)
	if err != nil {
		writeAppErr(w, s.logger, err)
		return
	}

	if err := s.privatelst.Refresh(r.Context(), requesterDID); err != nil {
		writeAppErr(w, s.logger, apperr.Upstream("privatelist refresh failed", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeAppErr translates err into the { "error": string } shape, via its
// apperr.Code if it carries one.
func writeAppErr(w http.ResponseWriter, logger *slog.Logger, err error) {
	status, code := apperr.StatusAndCode(err)
	if status >= 500 {
		logger.Error("request failed", "code", code, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": string(code)})
}

func withLogging(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration", time.Since(start),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
