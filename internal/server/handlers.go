package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	relay "github.com/oddskit/oddsrelay/internal"
)

// respondCached serves a route through the response cache. On a miss the
// upstream fetch is coalesced per cache key, so a burst of identical
// requests costs one upstream round trip.
func (s *server) respondCached(w http.ResponseWriter, r *http.Request, route string, fetch func(ctx context.Context) (any, error)) {
	if s.deps.Cache == nil {
		v, err := fetch(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": v})
		return
	}

	key := fingerprint(r.URL.Path, r.URL.Query())
	if body, ok := s.deps.Cache.Get(r.Context(), key); ok {
		if s.deps.Metrics != nil {
			s.deps.Metrics.CacheHits.Inc()
		}
		w.Header()["Content-Type"] = jsonCT
		w.Header()["X-Cache"] = []string{"HIT"}
		w.WriteHeader(http.StatusOK)
		w.Write(body)
		return
	}
	if s.deps.Metrics != nil {
		s.deps.Metrics.CacheMisses.Inc()
	}

	body, err, _ := s.flight.Do(key, func() (any, error) {
		v, err := fetch(r.Context())
		if err != nil {
			return nil, err
		}
		buf, err := json.Marshal(map[string]any{"data": v})
		if err != nil {
			return nil, fmt.Errorf("marshal %s response: %w", route, err)
		}
		s.deps.Cache.Set(r.Context(), key, buf, s.deps.CacheTTL(route))
		return buf, nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header()["Content-Type"] = jsonCT
	w.Header()["X-Cache"] = []string{"MISS"}
	w.WriteHeader(http.StatusOK)
	w.Write(body.([]byte))
}

func (s *server) handleScans(w http.ResponseWriter, r *http.Request) {
	f, err := scanFilterFromQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.respondCached(w, r, "scans", func(ctx context.Context) (any, error) {
		return s.deps.Upstream.Scans(ctx, f)
	})
}

func (s *server) handlePredictions(w http.ResponseWriter, r *http.Request) {
	sport := r.URL.Query().Get("sport")
	s.respondCached(w, r, "predictions", func(ctx context.Context) (any, error) {
		return s.deps.Upstream.Predictions(ctx, sport)
	})
}

func (s *server) handleSports(w http.ResponseWriter, r *http.Request) {
	s.respondCached(w, r, "sports", func(ctx context.Context) (any, error) {
		return s.deps.Upstream.Sports(ctx)
	})
}

// handleForward proxies uncached upstream endpoints verbatim. Forward writes
// its own error responses, so failures are only logged here.
func (s *server) handleForward(w http.ResponseWriter, r *http.Request) {
	path := "/" + chi.URLParam(r, "*")
	if err := s.deps.Upstream.Forward(r.Context(), w, r, path); err != nil {
		slog.LogAttrs(r.Context(), slog.LevelWarn, "forward failed",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	}
}

func scanFilterFromQuery(r *http.Request) (relay.ScanFilter, error) {
	q := r.URL.Query()
	f := relay.ScanFilter{Sport: q.Get("sport")}
	if v := q.Get("min_margin"); v != "" {
		m, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return f, fmt.Errorf("%w: invalid min_margin %q", relay.ErrBadRequest, v)
		}
		f.MinMargin = m
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, fmt.Errorf("%w: invalid limit %q", relay.ErrBadRequest, v)
		}
		f.Limit = n
	}
	return f, nil
}
