// Package auth manages the bearer-token session against the odds backend.
//
// Access tokens are short-lived; the backend rotates the refresh token on
// every refresh. Concurrent callers that find the token stale are coalesced
// through singleflight so exactly one refresh round-trip is in flight.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	relay "github.com/oddskit/oddsrelay/internal"
	"github.com/oddskit/oddsrelay/internal/storage"
)

// Refresher exchanges a refresh token for a new token pair.
// Implemented by the upstream client against POST /v1/auth/refresh.
type Refresher interface {
	// Refresh returns the new access token and the rotated refresh token.
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, string, error)
}

// TokenSource yields a valid access token, refreshing when it is stale.
type TokenSource struct {
	store     storage.SessionStore
	refresher Refresher
	skew      time.Duration // refresh this long before actual expiry
	seed      string        // config-provided refresh token for first start

	mu      sync.Mutex
	session *relay.Session // nil until first load

	group singleflight.Group
	now   func() time.Time // replaceable in tests
}

// NewTokenSource creates a TokenSource backed by the given session store.
// seed is used only when the store holds no session yet.
func NewTokenSource(store storage.SessionStore, refresher Refresher, skew time.Duration, seed string) *TokenSource {
	return &TokenSource{
		store:     store,
		refresher: refresher,
		skew:      skew,
		seed:      seed,
		now:       time.Now,
	}
}

// Token returns a usable access token, refreshing it first if needed.
func (ts *TokenSource) Token(ctx context.Context) (string, error) {
	sess, err := ts.current(ctx)
	if err != nil {
		return "", err
	}
	if !sess.Expired(ts.now(), ts.skew) {
		return sess.AccessToken, nil
	}

	// All concurrent stale callers share one refresh round-trip.
	v, err, _ := ts.group.Do("refresh", func() (any, error) {
		return ts.refresh(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate drops the in-memory access token so the next Token call
// refreshes. Called when the backend rejects a request with 401.
func (ts *TokenSource) Invalidate() {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if ts.session != nil {
		ts.session.AccessToken = ""
	}
}

// current returns the cached session, loading it from the store (or the
// config seed) on first use.
func (ts *TokenSource) current(ctx context.Context) (*relay.Session, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.session != nil {
		return ts.session, nil
	}

	sess, err := ts.store.GetSession(ctx)
	switch {
	case err == nil:
		ts.session = sess
	case errors.Is(err, relay.ErrSessionMissing) && ts.seed != "":
		ts.session = &relay.Session{RefreshToken: ts.seed}
	case errors.Is(err, relay.ErrSessionMissing):
		return nil, relay.ErrSessionMissing
	default:
		return nil, fmt.Errorf("load session: %w", err)
	}
	return ts.session, nil
}

// refresh performs the actual token exchange and persists the rotated pair.
// Runs inside the singleflight group.
func (ts *TokenSource) refresh(ctx context.Context) (string, error) {
	ts.mu.Lock()
	var access, current string
	fresh := false
	if ts.session != nil {
		access = ts.session.AccessToken
		current = ts.session.RefreshToken
		fresh = !ts.session.Expired(ts.now(), ts.skew)
	}
	ts.mu.Unlock()

	// A caller that queued behind a completed refresh finds a fresh token.
	if fresh {
		return access, nil
	}

	tok, rotated, err := ts.refresher.Refresh(ctx, current)
	if err != nil {
		return "", fmt.Errorf("refresh token: %w", err)
	}

	next := &relay.Session{
		AccessToken:  tok.AccessToken,
		RefreshToken: rotated,
		ExpiresAt:    tok.Expiry,
		UpdatedAt:    ts.now(),
	}
	if err := ts.store.SaveSession(ctx, next); err != nil {
		// The in-memory session stays usable; persistence catches up on
		// the next rotation.
		slog.LogAttrs(ctx, slog.LevelWarn, "persist session failed",
			slog.String("error", err.Error()),
		)
	}

	ts.mu.Lock()
	ts.session = next
	ts.mu.Unlock()

	return next.AccessToken, nil
}
