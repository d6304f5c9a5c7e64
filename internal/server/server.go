// Package server implements the HTTP transport layer for the oddsrelay daemon.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/singleflight"

	relay "github.com/oddskit/oddsrelay/internal"
	"github.com/oddskit/oddsrelay/internal/cache"
	"github.com/oddskit/oddsrelay/internal/telemetry"
)

// ReadyChecker reports whether the system is ready to serve traffic.
type ReadyChecker func(ctx context.Context) error

// OddsAPI is the upstream surface the server needs.
type OddsAPI interface {
	Scans(ctx context.Context, f relay.ScanFilter) ([]relay.Scan, error)
	Predictions(ctx context.Context, sport string) ([]relay.Prediction, error)
	Sports(ctx context.Context) ([]relay.Sport, error)
	Forward(ctx context.Context, w http.ResponseWriter, r *http.Request, path string) error
}

// Cache is the response cache surface used by the server.
// Satisfied by *cache.Memory[[]byte].
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration)
	Delete(ctx context.Context, key string) bool
	Purge(ctx context.Context)
	Stats(ctx context.Context) cache.Stats
}

// TTLResolver maps a cached route name to its TTL.
type TTLResolver func(route string) time.Duration

// Deps holds all dependencies for the HTTP server.
type Deps struct {
	Upstream       OddsAPI
	Cache          Cache              // nil = no caching
	CacheTTL       TTLResolver        // nil = 5s for every route
	ReadyCheck     ReadyChecker       // nil = always ready (for tests)
	Metrics        *telemetry.Metrics // nil = no metrics
	MetricsHandler http.Handler       // nil = no /metrics endpoint
}

// New creates an http.Handler with all routes and middleware wired.
func New(deps Deps) http.Handler {
	if deps.CacheTTL == nil {
		deps.CacheTTL = func(string) time.Duration { return cache.DefaultTTL }
	}
	s := &server{deps: deps}

	r := chi.NewRouter()

	// Global middleware
	r.Use(s.recovery)
	r.Use(s.requestID)
	r.Use(s.logging)
	if deps.Metrics != nil {
		r.Use(metricsMiddleware(deps.Metrics))
	}

	// System endpoints
	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// Cached read API
	r.Get("/v1/scans", s.handleScans)
	r.Get("/v1/predictions", s.handlePredictions)
	r.Get("/v1/sports", s.handleSports)

	// Raw passthrough for endpoints the relay does not type or cache
	r.Get("/v1/relay/*", s.handleForward)

	// Cache administration
	r.Get("/admin/cache/stats", s.handleCacheStats)
	r.Delete("/admin/cache", s.handleCachePurge)
	r.Delete("/admin/cache/{key}", s.handleCacheDelete)

	return r
}

type server struct {
	deps   Deps
	flight singleflight.Group // coalesces concurrent misses per cache key
}
