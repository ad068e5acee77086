package privatelist

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// refreshSkew is how much time must remain on a session before it is
// considered still usable without a proactive refresh.
const refreshSkew = 5 * time.Minute

// Oauth drives the AT Protocol OAuth + DPoP login flow for privatelist:
// exchanging an authorization code for a session, and proactively
// refreshing it before it expires. Sessions are persisted in the same
// database as membership and the post cache.
type Oauth struct {
	store         *store
	tokenEndpoint string
	clientID      string
	redirectURI   string
	http          *http.Client
}

// NewOauth builds an Oauth flow sharing p's store.
func NewOauth(p *Processor, tokenEndpoint, clientID, redirectURI string) *Oauth {
	return &Oauth{
		store:         p.store,
		tokenEndpoint: tokenEndpoint,
		clientID:      clientID,
		redirectURI:   redirectURI,
		http:          &http.Client{Timeout: 15 * time.Second},
	}
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	Sub          string `json:"sub"`
}

// ExchangeCode trades an authorization code for a session, generating a
// fresh DPoP signing key for this login, and persists the resulting
// session under a new session ID.
func (o *Oauth) ExchangeCode(ctx context.Context, code, verifier string) (sessionID string, err error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return "", fmt.Errorf("privatelist: generate dpop key: %w", err)
	}
	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return "", fmt.Errorf("privatelist: marshal dpop key: %w", err)
	}
	keyPEM := base64.StdEncoding.EncodeToString(keyDER)

	params := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {o.redirectURI},
		"client_id":     {o.clientID},
		"code_verifier": {verifier},
	}

	resp, err := o.executeTokenRequest(ctx, params, key)
	if err != nil {
		return "", err
	}

	sessionID = uuid.NewString()
	sess := oauthSession{
		SessionID:      sessionID,
		DID:            resp.Sub,
		AccessToken:    resp.AccessToken,
		RefreshToken:   resp.RefreshToken,
		DPoPPrivateKey: keyPEM,
		ExpiresAt:      time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second).Unix(),
	}
	if err := o.store.putSession(ctx, sess); err != nil {
		return "", fmt.Errorf("privatelist: store session: %w", err)
	}
	return sessionID, nil
}

// EnsureFresh returns sessionID's DID, refreshing the session first if
// fewer than refreshSkew remain before expiry.
func (o *Oauth) EnsureFresh(ctx context.Context, sessionID string) (string, error) {
	sess, err := o.store.getSession(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if sess == nil {
		return "", fmt.Errorf("privatelist: unknown session %q", sessionID)
	}

	remaining := time.Until(time.Unix(sess.ExpiresAt, 0))
	if remaining >= refreshSkew {
		return sess.DID, nil
	}

	key, err := parseDPoPKey(sess.DPoPPrivateKey)
	if err != nil {
		return "", fmt.Errorf("privatelist: parse dpop key: %w", err)
	}

	params := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {sess.RefreshToken},
		"client_id":     {o.clientID},
	}
	resp, err := o.executeTokenRequest(ctx, params, key)
	if err != nil {
		return "", fmt.Errorf("privatelist: refresh session: %w", err)
	}

	sess.AccessToken = resp.AccessToken
	sess.RefreshToken = resp.RefreshToken
	sess.ExpiresAt = time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second).Unix()
	if err := o.store.putSession(ctx, *sess); err != nil {
		return "", fmt.Errorf("privatelist: store refreshed session: %w", err)
	}
	return sess.DID, nil
}

// executeTokenRequest posts params to the token endpoint with a DPoP proof,
// retrying exactly once if the server challenges with a DPoP-Nonce header.
func (o *Oauth) executeTokenRequest(ctx context.Context, params url.Values, key *ecdsa.PrivateKey) (*tokenResponse, error) {
	nonce := ""
	for attempt := 0; ; attempt++ {
		if attempt > 1 {
			return nil, fmt.Errorf("privatelist: too many retries for DPoP nonce")
		}

		proof, err := createDPoPProof(http.MethodPost, o.tokenEndpoint, key, nonce)
		if err != nil {
			return nil, fmt.Errorf("privatelist: create dpop proof: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.tokenEndpoint, strings.NewReader(params.Encode()))
		if err != nil {
			return nil, fmt.Errorf("privatelist: build token request: %w", err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("DPoP", proof)

		resp, err := o.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("privatelist: send token request: %w", err)
		}
		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("privatelist: read token response: %w", readErr)
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			var out tokenResponse
			if err := json.Unmarshal(body, &out); err != nil {
				return nil, fmt.Errorf("privatelist: decode token response: %w", err)
			}
			return &out, nil
		}

		if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized {
			if newNonce := resp.Header.Get("DPoP-Nonce"); newNonce != "" {
				nonce = newNonce
				continue
			}
		}

		return nil, fmt.Errorf("privatelist: token request failed: %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
}

// createDPoPProof builds a "dpop+jwt" proof: an ES256-signed JWT whose
// header carries the public key as a JWK and whose claims bind it to one
// HTTP method+URL (and, once challenged, a server nonce).
func createDPoPProof(method, u string, key *ecdsa.PrivateKey, nonce string) (string, error) {
	pub := key.PublicKey
	jwk := map[string]string{
		"kty": "EC",
		"crv": "P-256",
		"x":   base64.RawURLEncoding.EncodeToString(pub.X.Bytes()),
		"y":   base64.RawURLEncoding.EncodeToString(pub.Y.Bytes()),
	}

	claims := jwt.MapClaims{
		"iat": time.Now().Unix(),
		"jti": uuid.NewString(),
		"htm": method,
		"htu": u,
	}
	if nonce != "" {
		claims["nonce"] = nonce
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	token.Header["typ"] = "dpop+jwt"
	token.Header["jwk"] = jwk

	return token.SignedString(key)
}

func parseDPoPKey(encoded string) (*ecdsa.PrivateKey, error) {
	der, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}
	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, err
	}
	ecKey, ok := key.(*ecdsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("privatelist: stored dpop key is not ECDSA")
	}
	return ecKey, nil
}
