// Package bskyapi is the outbound XRPC client for the four upstream
// operations the read-path and the credential holder need:
// com.atproto.server.createSession, app.bsky.feed.searchPosts,
// app.bsky.actor.getProfile, app.bsky.actor.getPreferences. Every
// authenticated call goes through a credential.Holder so a 401 triggers
// exactly one re-authentication and retry.
package bskyapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/blackmichael/bluesky-feeds/internal/credential"
)

const defaultBaseURL = "https://bsky.social"

// errAuthExpired signals an upstream 401 or an ExpiredToken error body.
var errAuthExpired = errors.New("bskyapi: auth expired")

// IsAuthExpired classifies err for credential.Holder.Do.
func IsAuthExpired(err error) bool {
	return errors.Is(err, errAuthExpired)
}

// Client is a thin XRPC client. It implements credential.Authenticator so a
// Holder can drive its own re-authentication.
type Client struct {
	baseURL string
	http    *http.Client
	holder  *credential.Holder
}

// NewClient builds a client against baseURL (defaulting to bsky.social).
// Call SetHolder before any authenticated call.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// SetHolder wires the credential holder this client authenticates through.
// Split from NewClient because the holder itself is constructed with this
// client as its Authenticator (a small wiring cycle resolved at startup).
func (c *Client) SetHolder(h *credential.Holder) {
	c.holder = h
}

// CreateSession implements credential.Authenticator.
func (c *Client) CreateSession(ctx context.Context, handle, password string) (credential.Pair, error) {
	body := map[string]string{"identifier": handle, "password": password}
	var resp struct {
		AccessJwt string `json:"accessJwt"`
		DID       string `json:"did"`
	}
	if err := c.rawPost(ctx, "com.atproto.server.createSession", body, "", &resp); err != nil {
		return credential.Pair{}, fmt.Errorf("createSession: %w", err)
	}
	return credential.Pair{Token: resp.AccessJwt, DID: resp.DID}, nil
}

// SearchPost is one item of an app.bsky.feed.searchPosts result.
type SearchPost struct {
	URI       string `json:"uri"`
	CID       string `json:"cid"`
	IndexedAt string `json:"indexedAt"`
}

// SearchPostsResult is the parsed searchPosts response.
type SearchPostsResult struct {
	Posts  []SearchPost
	Cursor string
}

// SearchPosts calls app.bsky.feed.searchPosts scoped to a single author and
// an optional indexing window, matching the oneyearago/privatelist query
// shapes (`from:{did} since:{since} until:{until}`).
func (c *Client) SearchPosts(ctx context.Context, q string, sort string, since, until, cursor string, limit int) (*SearchPostsResult, error) {
	params := url.Values{}
	params.Set("q", q)
	if sort != "" {
		params.Set("sort", sort)
	}
	if since != "" {
		params.Set("since", since)
	}
	if until != "" {
		params.Set("until", until)
	}
	if cursor != "" {
		params.Set("cursor", cursor)
	}
	if limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", limit))
	}

	var out struct {
		Posts []SearchPost `json:"posts"`
		Cursor string      `json:"cursor"`
	}
	err := c.holder.Do(ctx, IsAuthExpired, func(ctx context.Context, pair credential.Pair) error {
		return c.rawGet(ctx, "app.bsky.feed.searchPosts", params, pair.Token, &out)
	})
	if err != nil {
		return nil, fmt.Errorf("searchPosts: %w", err)
	}
	return &SearchPostsResult{Posts: out.Posts, Cursor: out.Cursor}, nil
}

// Profile is the subset of app.bsky.actor.getProfile this service reads.
type Profile struct {
	DID         string `json:"did"`
	Handle      string `json:"handle"`
	Description string `json:"description"`
}

// GetProfile fetches a profile. actor may be a DID or handle.
func (c *Client) GetProfile(ctx context.Context, actor string) (*Profile, error) {
	params := url.Values{}
	params.Set("actor", actor)

	var out Profile
	err := c.holder.Do(ctx, IsAuthExpired, func(ctx context.Context, pair credential.Pair) error {
		return c.rawGet(ctx, "app.bsky.actor.getProfile", params, pair.Token, &out)
	})
	if err != nil {
		return nil, fmt.Errorf("getProfile: %w", err)
	}
	return &out, nil
}

// Preferences is the subset of app.bsky.actor.getPreferences this service
// reads. Today nothing consumes it directly, but the operation is wired so
// a future heuristic (e.g. declared language) can read it without a new
// client method.
type Preferences struct {
	Preferences []json.RawMessage `json:"preferences"`
}

// GetPreferences calls app.bsky.actor.getPreferences for the authenticated
// user.
func (c *Client) GetPreferences(ctx context.Context) (*Preferences, error) {
	var out Preferences
	err := c.holder.Do(ctx, IsAuthExpired, func(ctx context.Context, pair credential.Pair) error {
		return c.rawGet(ctx, "app.bsky.actor.getPreferences", nil, pair.Token, &out)
	})
	if err != nil {
		return nil, fmt.Errorf("getPreferences: %w", err)
	}
	return &out, nil
}

func (c *Client) rawGet(ctx context.Context, method string, params url.Values, token string, out any) error {
	rawURL := c.baseURL + "/xrpc/" + method
	if len(params) > 0 {
		rawURL += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("create GET request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return c.do(req, out)
}

func (c *Client) rawPost(ctx context.Context, method string, body any, token string, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/xrpc/"+method, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("create POST request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("http %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return errAuthExpired
	}
	if resp.StatusCode == http.StatusBadRequest && strings.Contains(string(body), "ExpiredToken") {
		return errAuthExpired
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
