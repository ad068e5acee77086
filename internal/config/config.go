package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all configuration for the application, read once from
// environment variables at startup.
type Config struct {
	// Hostname is the public hostname where this service is reachable (used for did:web).
	Hostname string

	// Port is the HTTP server port.
	Port int

	// PublisherDID is the DID of the account that published the feed generator records.
	PublisherDID string

	// AppHandle / AppPassword are the service's own Bluesky credentials,
	// exchanged for a service token via com.atproto.server.createSession.
	// Fatal if missing: every read path that needs the upstream API
	// (oneyearago, privatelist refresh, timezone lookup) depends on them.
	AppHandle   string
	AppPassword string

	// FirehoseURL is the Jetstream WebSocket endpoint.
	FirehoseURL string

	// EnableJetstream gates whether the stream consumer starts at all.
	EnableJetstream bool

	// JetstreamCompress requests zstd-compressed frames from Jetstream.
	JetstreamCompress bool

	// CookieSecret is read from COOKIE_SECRET. Nothing in this repository
	// reads it: no session cookie is issued or verified.
	CookieSecret string

	// HelloworldPinnedURI is served as the first post of the helloworld
	// feed's first (uncursored) page.
	HelloworldPinnedURI string

	// PrivatelistPinnedURI is served, with no cursor, to a requester whose
	// allowlist is empty.
	PrivatelistPinnedURI string

	// Privatelist OAuth + DPoP settings (token endpoint, client ID, redirect
	// URI) for privatelist.NewOauth. cmd/server does not construct an Oauth
	// flow, so nothing reads them there; the add/remove/list/refresh routes
	// authenticate with the bearer token.
	OauthTokenEndpoint string
	OauthClientID      string
	OauthRedirectURI   string

	// Per-feed embedded database files. Each feed owns one file so that a
	// corrupt or locked file can't take down its siblings.
	HelloworldDBPath  string
	FakeblueskyDBPath string
	TodoappDBPath     string
	OneyearagoDBPath  string
	PrivatelistDBPath string
	CursorDBPath      string

	// UmamiWebsiteID / UmamiURL configure outbound analytics
	// event forwarding. Analytics itself is out of scope (spec.md §1); these
	// are carried only so operators can wire the external collaborator
	// without a second config surface.
	UmamiWebsiteID string
	UmamiURL       string
}

// ServiceDID returns the did:web for this feed generator based on the hostname.
func (c *Config) ServiceDID() string {
	return "did:web:" + c.Hostname
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	port := 3000
	if p := os.Getenv("PORT"); p != "" {
		var err error
		port, err = strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT: %w", err)
		}
	}

	hostname := os.Getenv("APP_HOSTNAME")
	if hostname == "" {
		hostname = "localhost"
	}

	publisherDID := os.Getenv("FEEDGEN_PUBLISHER_DID")
	if publisherDID == "" {
		return nil, fmt.Errorf("FEEDGEN_PUBLISHER_DID is required")
	}

	handle := os.Getenv("APP_HANDLE")
	if handle == "" {
		return nil, fmt.Errorf("APP_HANDLE is required")
	}
	password := os.Getenv("APP_PASSWORD")
	if password == "" {
		return nil, fmt.Errorf("APP_PASSWORD is required")
	}

	firehoseURL := os.Getenv("FEEDGEN_FIREHOSE_URL")
	if firehoseURL == "" {
		firehoseURL = "wss://jetstream1.us-east.bsky.network/subscribe"
	}

	enableJetstream := true
	if v := os.Getenv("ENABLE_JETSTREAM"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid ENABLE_JETSTREAM: %w", err)
		}
		enableJetstream = parsed
	}

	jetstreamCompress := false
	if v := os.Getenv("FEEDGEN_JETSTREAM_COMPRESS"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid FEEDGEN_JETSTREAM_COMPRESS: %w", err)
		}
		jetstreamCompress = parsed
	}

	cookieSecret := os.Getenv("COOKIE_SECRET")

	helloworldPinnedURI := os.Getenv("HELLOWORLD_PINNED_URI")
	if helloworldPinnedURI == "" {
		helloworldPinnedURI = "at://did:plc:tsvcmd72oxp47wtixs4qllyi/app.bsky.feed.post/3ldy6oad3vk27"
	}
	privatelistPinnedURI := os.Getenv("PRIVATELIST_PINNED_URI")
	if privatelistPinnedURI == "" {
		privatelistPinnedURI = "at://did:plc:tsvcmd72oxp47wtixs4qllyi/app.bsky.feed.post/3letuz6sqa22o"
	}

	return &Config{
		Hostname:          hostname,
		Port:              port,
		PublisherDID:      publisherDID,
		AppHandle:         handle,
		AppPassword:       password,
		FirehoseURL:       firehoseURL,
		EnableJetstream:   enableJetstream,
		JetstreamCompress: jetstreamCompress,
		CookieSecret:      cookieSecret,

		HelloworldPinnedURI:  helloworldPinnedURI,
		PrivatelistPinnedURI: privatelistPinnedURI,

		OauthTokenEndpoint: os.Getenv("PRIVATELIST_OAUTH_TOKEN_ENDPOINT"),
		OauthClientID:      os.Getenv("PRIVATELIST_OAUTH_CLIENT_ID"),
		OauthRedirectURI:   os.Getenv("PRIVATELIST_OAUTH_REDIRECT_URI"),

		HelloworldDBPath:  dbPathOrDefault("HELLOWORLD_DB_URL", "helloworld.db"),
		FakeblueskyDBPath: dbPathOrDefault("FAKEBLUESKY_DB_URL", "fakebluesky.db"),
		TodoappDBPath:     dbPathOrDefault("TODOAPP_DB_URL", "todoapp.db"),
		OneyearagoDBPath:  dbPathOrDefault("ONEYEARAGO_DB_URL", "oneyearago_cache.db"),
		PrivatelistDBPath: dbPathOrDefault("PRIVATELIST_DB_URL", "privatelist.db"),
		CursorDBPath:      dbPathOrDefault("CURSOR_DB_URL", "cursor.db"),

		UmamiWebsiteID: os.Getenv("UMAMI_WEBSITE_ID"),
		UmamiURL:       os.Getenv("UMAMI_URL"),
	}, nil
}

func dbPathOrDefault(envVar, fallback string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return fallback
}
