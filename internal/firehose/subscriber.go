package firehose

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/blackmichael/bluesky-feeds/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/zstd"
)

const (
	cursorServiceName = "jetstream"

	connectFailureWait = 5 * time.Second
	receiveFailureWait = 2 * time.Second
	zombieTimeout      = 60 * time.Second

	backoffBase       = 5 * time.Second
	backoffCap        = 30 * time.Second
	backoffMaxRetries = 300
	stableUptime      = 60 * time.Second
)

// wantedCollections is the set of AT Proto collection NSIDs this subscriber
// requests from Jetstream. Only post events are needed for feed matching.
var wantedCollections = []string{
	"app.bsky.feed.post",
}

// Subscriber connects to the Jetstream firehose and hands every commit event
// to the router. It never returns except when ctx is cancelled; every other
// failure is retried per the resilience algorithm below.
type Subscriber struct {
	url      string
	disabled bool
	compress bool
	router   *Router
	cursors  domain.CursorRepository
	logger   *slog.Logger
}

// NewSubscriber creates a new firehose subscriber. disabled skips Start
// entirely, for environments that only serve reads.
func NewSubscriber(
	firehoseURL string,
	disabled bool,
	compress bool,
	router *Router,
	cursors domain.CursorRepository,
	logger *slog.Logger,
) *Subscriber {
	return &Subscriber{
		url:      firehoseURL,
		disabled: disabled,
		compress: compress,
		router:   router,
		cursors:  cursors,
		logger:   logger,
	}
}

// Start runs the outer reconnect loop until ctx is cancelled. The outer loop
// owns the cursor: every subscription session is parameterized by the
// highest cursor the previous session (or a prior restart) reached.
func (s *Subscriber) Start(ctx context.Context) error {
	if s.disabled {
		s.logger.Info("firehose consumer disabled, skipping start-up")
		<-ctx.Done()
		return ctx.Err()
	}

	cursor, err := s.cursors.GetCursor(ctx, cursorServiceName)
	if err != nil {
		s.logger.Warn("failed to load cursor, starting from live", "error", err)
		cursor = 0
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		conn, err := s.dial(ctx, cursor)
		if err != nil {
			s.logger.Error("firehose dial failed, retrying", "error", err)
			if !sleepOrDone(ctx, connectFailureWait) {
				return ctx.Err()
			}
			continue
		}

		newCursor, sessionErr := s.runSession(ctx, conn, cursor)
		conn.Close()
		if newCursor > cursor {
			cursor = newCursor
		}
		if sessionErr != nil {
			s.logger.Error("firehose session ended, reconnecting", "error", sessionErr)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !sleepOrDone(ctx, receiveFailureWait) {
			return ctx.Err()
		}
	}
}

func (s *Subscriber) dial(ctx context.Context, cursor int64) (*websocket.Conn, error) {
	wsURL := s.buildURL(cursor)
	s.logger.Info("connecting to firehose", "url", wsURL)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial firehose: %w", err)
	}
	s.logger.Info("connected to firehose")
	return conn, nil
}

func (s *Subscriber) buildURL(cursor int64) string {
	u, _ := url.Parse(s.url)
	q := u.Query()
	for _, c := range wantedCollections {
		q.Add("wantedCollections", c)
	}
	if cursor > 0 {
		q.Set("cursor", fmt.Sprintf("%d", cursor))
	}
	if s.compress {
		q.Set("compress", "true")
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// runSession owns one WebSocket connection's receive loop: the backoff
// window, the zombie-connection guard, and synchronous cursor persistence.
// It returns the highest cursor reached and the error that ended the
// session (nil only if ctx was cancelled).
func (s *Subscriber) runSession(ctx context.Context, conn *websocket.Conn, startCursor int64) (int64, error) {
	var decoder *zstd.Decoder
	if s.compress {
		var err error
		decoder, err = zstd.NewReader(nil)
		if err != nil {
			return startCursor, fmt.Errorf("init zstd decoder: %w", err)
		}
		defer decoder.Close()
	}

	cursor := startCursor
	retries := 0
	sessionStart := time.Now()
	lastRetryReset := sessionStart

	msgCh := make(chan []byte, 1)
	errCh := make(chan error, 1)
	go func() {
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				errCh <- err
				return
			}
			select {
			case msgCh <- message:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return cursor, nil

		case err := <-errCh:
			return cursor, fmt.Errorf("read message: %w", err)

		case <-time.After(zombieTimeout):
			return cursor, fmt.Errorf("no message received in %s, treating connection as dead", zombieTimeout)

		case message := <-msgCh:
			if time.Since(lastRetryReset) >= stableUptime {
				retries = 0
				lastRetryReset = time.Now()
			}

			if s.compress {
				raw, err := decoder.DecodeAll(message, nil)
				if err != nil {
					s.logger.Error("failed to decompress event", "error", err)
					retries++
					if retries >= backoffMaxRetries {
						return cursor, fmt.Errorf("exceeded %d retries", backoffMaxRetries)
					}
					if !sleepOrDone(ctx, backoffDelay(retries)) {
						return cursor, nil
					}
					continue
				}
				message = raw
			}

			event, err := parseEvent(message)
			if err != nil {
				s.logger.Error("failed to parse event", "error", err)
				continue
			}

			if event.Kind != "commit" || event.Commit == nil {
				continue
			}

			commit := event.toCommitEvent()
			maxCursor := s.router.Dispatch(ctx, commit)
			if maxCursor > 0 {
				cursor = maxCursor
			} else {
				cursor = event.TimeUS
			}

			if err := s.cursors.UpdateCursor(ctx, cursorServiceName, cursor); err != nil {
				s.logger.Error("failed to save cursor", "error", err)
			}
		}
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

// backoffDelay computes the exponential backoff for the nth retry within a
// single subscription session: base 5s, doubling, capped at 30s.
func backoffDelay(retry int) time.Duration {
	d := backoffBase
	for i := 0; i < retry && d < backoffCap; i++ {
		d *= 2
	}
	if d > backoffCap {
		d = backoffCap
	}
	return d
}
