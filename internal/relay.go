// Package relay defines domain types and interfaces for the oddsrelay daemon.
// This package has no project imports -- it is the dependency root.
package relay

import (
	"context"
	"time"
)

// --- Odds domain ---

// Scan is a single arbitrage scan result returned by the odds backend.
type Scan struct {
	ID            string     `json:"id"`
	Sport         string     `json:"sport"`
	League        string     `json:"league"`
	Event         string     `json:"event"`
	Market        string     `json:"market"`
	Legs          []ScanLeg  `json:"legs"`
	MarginPct     float64    `json:"margin_pct"`     // arbitrage margin, percent
	CommenceAt    time.Time  `json:"commence_at"`    // event start, UTC
	LastSeenAt    *time.Time `json:"last_seen_at,omitempty"`
	Display       string     `json:"display,omitempty"` // human-readable summary
}

// ScanLeg is one side of an arbitrage opportunity.
type ScanLeg struct {
	Bookmaker   string  `json:"bookmaker"`
	Outcome     string  `json:"outcome"`
	DecimalOdds float64 `json:"decimal_odds"`
	American    string  `json:"american,omitempty"` // formatted American odds
	StakePct    float64 `json:"stake_pct"`          // fraction of bankroll for this leg
}

// Prediction is a model-generated pick for an upcoming event.
type Prediction struct {
	ID         string    `json:"id"`
	Sport      string    `json:"sport"`
	Event      string    `json:"event"`
	Pick       string    `json:"pick"`
	Confidence float64   `json:"confidence"` // 0.0 to 1.0
	Odds       float64   `json:"odds"`       // decimal odds at prediction time
	CommenceAt time.Time `json:"commence_at"`
}

// Sport is a sport/league entry from the backend catalog.
type Sport struct {
	Key    string `json:"key"`
	Title  string `json:"title"`
	Group  string `json:"group"`
	Active bool   `json:"active"`
}

// ScanFilter narrows a scan listing. Zero values mean "no constraint".
type ScanFilter struct {
	Sport     string  `json:"sport,omitempty"`
	MinMargin float64 `json:"min_margin,omitempty"`
	Limit     int     `json:"limit,omitempty"`
}

// --- Auth domain ---

// Session is the persisted authentication state against the odds backend.
// The refresh token rotates on every refresh; the access token is short-lived.
type Session struct {
	AccessToken  string    `json:"-"` // never serialized to clients
	RefreshToken string    `json:"-"`
	ExpiresAt    time.Time `json:"expires_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Expired reports whether the access token is unusable at t,
// applying a skew margin so a token is refreshed before it actually lapses.
func (s *Session) Expired(t time.Time, skew time.Duration) bool {
	return s.AccessToken == "" || !t.Add(skew).Before(s.ExpiresAt)
}

// --- Context keys ---

type contextKey int

const ctxKeyMeta contextKey = 0

// requestMeta bundles per-request values into a single context allocation.
type requestMeta struct {
	RequestID string
}

func metaFromContext(ctx context.Context) *requestMeta {
	m, _ := ctx.Value(ctxKeyMeta).(*requestMeta)
	return m
}

// RequestIDFromContext extracts the request ID from context.
func RequestIDFromContext(ctx context.Context) string {
	if m := metaFromContext(ctx); m != nil {
		return m.RequestID
	}
	return ""
}

// ContextWithRequestID returns a context carrying the given request ID.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyMeta, &requestMeta{RequestID: id})
}
