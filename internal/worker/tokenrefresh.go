package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	relay "github.com/oddskit/oddsrelay/internal"
)

// Tokens is the token source surface the refresh worker needs.
type Tokens interface {
	Token(ctx context.Context) (string, error)
}

// TokenRefreshWorker keeps the backend access token warm so the first
// request after an idle period does not pay the refresh round-trip.
type TokenRefreshWorker struct {
	tokens   Tokens
	interval time.Duration
}

// NewTokenRefreshWorker creates a TokenRefreshWorker.
func NewTokenRefreshWorker(tokens Tokens, interval time.Duration) *TokenRefreshWorker {
	return &TokenRefreshWorker{tokens: tokens, interval: interval}
}

// Name returns the worker identifier.
func (w *TokenRefreshWorker) Name() string { return "token_refresh" }

// Run requests a token immediately, then on every tick. The token source
// itself decides whether a refresh round-trip is actually needed.
func (w *TokenRefreshWorker) Run(ctx context.Context) error {
	w.warm(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.warm(ctx)
		case <-ctx.Done():
			return nil
		}
	}
}

func (w *TokenRefreshWorker) warm(ctx context.Context) {
	if _, err := w.tokens.Token(ctx); err != nil {
		// Missing session just means nobody has logged in yet.
		if errors.Is(err, relay.ErrSessionMissing) {
			return
		}
		slog.LogAttrs(ctx, slog.LevelError, "token refresh failed",
			slog.String("error", err.Error()),
		)
	}
}
