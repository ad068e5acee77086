// Package credential implements the shared service-session cell every
// upstream-calling component reads through: a single handle+app-password
// login, re-authenticated on demand and retried at most once per call.
package credential

import (
	"context"
	"fmt"
	"sync"
)

// Pair is a service session: the bearer token and the DID it authenticates.
type Pair struct {
	Token string
	DID   string
}

// Authenticator exchanges a handle+app-password for a fresh session.
// Implemented by the bskyapi client so this package stays transport-free.
type Authenticator interface {
	CreateSession(ctx context.Context, handle, password string) (Pair, error)
}

// Holder is the read-preferring credential cell described by the stream
// consumer's and read-path's service-credential contract: readers take a
// read lock and clone the pair out; a 401 anywhere upgrades to the write
// lock, and concurrent 401s from multiple goroutines collapse into one
// actual re-authentication call.
type Holder struct {
	handle   string
	password string
	auth     Authenticator

	mu   sync.RWMutex
	pair Pair

	// reauth serializes re-authentication so concurrent callers that all
	// observe the same stale token perform exactly one createSession call.
	reauth sync.Mutex
}

// NewHolder builds a credential holder. Authenticate must be called once
// before Current returns a usable pair.
func NewHolder(handle, password string, auth Authenticator) *Holder {
	return &Holder{handle: handle, password: password, auth: auth}
}

// Current returns the present token/DID pair under a read lock.
func (h *Holder) Current() Pair {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.pair
}

// Authenticate unconditionally calls CreateSession and installs the result.
// Used for the initial login at start-up.
func (h *Holder) Authenticate(ctx context.Context) error {
	pair, err := h.auth.CreateSession(ctx, h.handle, h.password)
	if err != nil {
		return fmt.Errorf("credential: authenticate: %w", err)
	}
	h.mu.Lock()
	h.pair = pair
	h.mu.Unlock()
	return nil
}

// reauthenticate re-authenticates at most once per stale token. If another
// caller already refreshed the session since staleToken was read, this is a
// no-op; the caller's retry will pick up the fresh token from Current.
func (h *Holder) reauthenticate(ctx context.Context, staleToken string) error {
	h.reauth.Lock()
	defer h.reauth.Unlock()

	if current := h.Current().Token; staleToken != "" && current != staleToken {
		return nil
	}
	return h.Authenticate(ctx)
}

// Do calls fn with the current pair. If fn fails and authExpired classifies
// the error as an expired/unauthorized token, the holder re-authenticates
// and retries fn exactly once. If re-authentication itself fails, fn's
// original error is returned.
func (h *Holder) Do(ctx context.Context, authExpired func(error) bool, fn func(ctx context.Context, pair Pair) error) error {
	pair := h.Current()
	err := fn(ctx, pair)
	if err == nil || !authExpired(err) {
		return err
	}
	if reauthErr := h.reauthenticate(ctx, pair.Token); reauthErr != nil {
		return err
	}
	return fn(ctx, h.Current())
}
