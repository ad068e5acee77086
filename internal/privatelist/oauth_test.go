package privatelist

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func testOauth(t *testing.T, handler http.HandlerFunc) (*Oauth, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	s, err := newStore("file::memory:?cache=shared")
	if err != nil {
		t.Fatal(err)
	}
	o := &Oauth{
		store:         s,
		tokenEndpoint: srv.URL,
		clientID:      "client-1",
		redirectURI:   "https://example.com/callback",
		http:          srv.Client(),
	}
	return o, srv
}

func TestExchangeCode_RetriesOnceOnDPoPNonceChallenge(t *testing.T) {
	var calls int32
	o, srv := testOauth(t, func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			if r.Header.Get("DPoP") == "" {
				t.Error("expected a DPoP header on the first attempt")
			}
			w.Header().Set("DPoP-Nonce", "server-nonce-1")
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"access_token":"at1","refresh_token":"rt1","expires_in":3600,"sub":"did:plc:user"}`))
	})
	defer srv.Close()

	sessionID, err := o.ExchangeCode(context.Background(), "auth-code", "verifier")
	if err != nil {
		t.Fatalf("ExchangeCode: %v", err)
	}
	if sessionID == "" {
		t.Fatal("expected a non-empty session ID")
	}
	if calls != 2 {
		t.Fatalf("expected exactly 2 token requests (original + one nonce retry), got %d", calls)
	}
}

func TestExchangeCode_FailsAfterTwoConsecutiveNonceChallenges(t *testing.T) {
	o, srv := testOauth(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("DPoP-Nonce", "always-a-new-nonce")
		w.WriteHeader(http.StatusBadRequest)
	})
	defer srv.Close()

	_, err := o.ExchangeCode(context.Background(), "auth-code", "verifier")
	if err == nil {
		t.Fatal("expected ExchangeCode to fail after a second consecutive nonce challenge")
	}
}

func TestExchangeCode_FailsOnNonNonceError(t *testing.T) {
	o, srv := testOauth(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("upstream down"))
	})
	defer srv.Close()

	_, err := o.ExchangeCode(context.Background(), "auth-code", "verifier")
	if err == nil {
		t.Fatal("expected ExchangeCode to fail on a plain 500 with no DPoP-Nonce header")
	}
}
