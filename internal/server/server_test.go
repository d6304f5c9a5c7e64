package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	relay "github.com/oddskit/oddsrelay/internal"
	"github.com/oddskit/oddsrelay/internal/cache"
)

type fakeUpstream struct {
	scanCalls  atomic.Int64
	sportCalls atomic.Int64
	scansErr   error
}

func (f *fakeUpstream) Scans(_ context.Context, filter relay.ScanFilter) ([]relay.Scan, error) {
	f.scanCalls.Add(1)
	if f.scansErr != nil {
		return nil, f.scansErr
	}
	return []relay.Scan{{ID: "s1", Sport: filter.Sport, MarginPct: 4.2}}, nil
}

func (f *fakeUpstream) Predictions(context.Context, string) ([]relay.Prediction, error) {
	return []relay.Prediction{{ID: "p1"}}, nil
}

func (f *fakeUpstream) Sports(context.Context) ([]relay.Sport, error) {
	f.sportCalls.Add(1)
	return []relay.Sport{{Key: "basketball_nba", Title: "NBA"}}, nil
}

func (f *fakeUpstream) Forward(_ context.Context, w http.ResponseWriter, _ *http.Request, path string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"forwarded":%q}`, path)
	return nil
}

func newTestServer(t *testing.T, up *fakeUpstream) (http.Handler, Cache) {
	t.Helper()
	c := cache.NewMemory[[]byte](100, time.Minute)
	h := New(Deps{Upstream: up, Cache: c})
	return h, c
}

func doRequest(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	h, _ := newTestServer(t, &fakeUpstream{})

	rec := doRequest(t, h, http.MethodGet, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("missing X-Request-Id header")
	}
}

func TestReadyz(t *testing.T) {
	t.Parallel()
	up := &fakeUpstream{}
	c := cache.NewMemory[[]byte](10, time.Minute)

	ready := New(Deps{Upstream: up, Cache: c, ReadyCheck: func(context.Context) error { return nil }})
	if rec := doRequest(t, ready, http.MethodGet, "/readyz"); rec.Code != http.StatusOK {
		t.Errorf("ready status = %d, want 200", rec.Code)
	}

	down := New(Deps{Upstream: up, Cache: c, ReadyCheck: func(context.Context) error {
		return errors.New("db unreachable")
	}})
	if rec := doRequest(t, down, http.MethodGet, "/readyz"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("down status = %d, want 503", rec.Code)
	}
}

func TestScansMissThenHit(t *testing.T) {
	t.Parallel()
	up := &fakeUpstream{}
	h, _ := newTestServer(t, up)

	first := doRequest(t, h, http.MethodGet, "/v1/scans?sport=basketball_nba")
	if first.Code != http.StatusOK {
		t.Fatalf("first status = %d, body %s", first.Code, first.Body)
	}
	if got := first.Header().Get("X-Cache"); got != "MISS" {
		t.Errorf("first X-Cache = %q, want MISS", got)
	}

	second := doRequest(t, h, http.MethodGet, "/v1/scans?sport=basketball_nba")
	if got := second.Header().Get("X-Cache"); got != "HIT" {
		t.Errorf("second X-Cache = %q, want HIT", got)
	}
	if first.Body.String() != second.Body.String() {
		t.Error("cached body differs from original")
	}
	if n := up.scanCalls.Load(); n != 1 {
		t.Errorf("upstream calls = %d, want 1", n)
	}

	var resp struct {
		Data []relay.Scan `json:"data"`
	}
	if err := json.Unmarshal(second.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Data) != 1 || resp.Data[0].ID != "s1" {
		t.Errorf("unexpected payload: %+v", resp.Data)
	}
}

func TestScansQueryOrderSharesCacheEntry(t *testing.T) {
	t.Parallel()
	up := &fakeUpstream{}
	h, _ := newTestServer(t, up)

	doRequest(t, h, http.MethodGet, "/v1/scans?sport=soccer_epl&min_margin=2.5")
	rec := doRequest(t, h, http.MethodGet, "/v1/scans?min_margin=2.5&sport=soccer_epl")

	if got := rec.Header().Get("X-Cache"); got != "HIT" {
		t.Errorf("X-Cache = %q, want HIT for reordered query", got)
	}
	if n := up.scanCalls.Load(); n != 1 {
		t.Errorf("upstream calls = %d, want 1", n)
	}
}

func TestScansInvalidParams(t *testing.T) {
	t.Parallel()
	h, _ := newTestServer(t, &fakeUpstream{})

	for _, target := range []string{
		"/v1/scans?min_margin=abc",
		"/v1/scans?limit=-1",
		"/v1/scans?limit=many",
	} {
		if rec := doRequest(t, h, http.MethodGet, target); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", target, rec.Code)
		}
	}
}

func TestUpstreamErrorMapping(t *testing.T) {
	t.Parallel()
	tests := []struct {
		err  error
		want int
	}{
		{relay.ErrCircuitOpen, http.StatusServiceUnavailable},
		{relay.ErrUnauthorized, http.StatusUnauthorized},
		{fmt.Errorf("fetch scans: %w", relay.ErrUpstreamTimeout), http.StatusGatewayTimeout},
		{fmt.Errorf("fetch scans: %w", relay.ErrUpstream), http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		h, _ := newTestServer(t, &fakeUpstream{scansErr: tt.err})
		if rec := doRequest(t, h, http.MethodGet, "/v1/scans"); rec.Code != tt.want {
			t.Errorf("err %v: status = %d, want %d", tt.err, rec.Code, tt.want)
		}
	}
}

func TestErrorsNotCached(t *testing.T) {
	t.Parallel()
	up := &fakeUpstream{scansErr: relay.ErrUpstream}
	h, _ := newTestServer(t, up)

	doRequest(t, h, http.MethodGet, "/v1/scans")
	up.scansErr = nil
	rec := doRequest(t, h, http.MethodGet, "/v1/scans")

	if rec.Code != http.StatusOK {
		t.Fatalf("status after recovery = %d, want 200", rec.Code)
	}
	if n := up.scanCalls.Load(); n != 2 {
		t.Errorf("upstream calls = %d, want 2", n)
	}
}

func TestForward(t *testing.T) {
	t.Parallel()
	h, _ := newTestServer(t, &fakeUpstream{})

	rec := doRequest(t, h, http.MethodGet, "/v1/relay/historical/odds?date=2026-03-01")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if want := `{"forwarded":"/historical/odds"}`; rec.Body.String() != want {
		t.Errorf("body = %s, want %s", rec.Body, want)
	}
}

func TestCachePurge(t *testing.T) {
	t.Parallel()
	up := &fakeUpstream{}
	h, _ := newTestServer(t, up)

	doRequest(t, h, http.MethodGet, "/v1/sports")
	if rec := doRequest(t, h, http.MethodDelete, "/admin/cache"); rec.Code != http.StatusNoContent {
		t.Fatalf("purge status = %d, want 204", rec.Code)
	}
	if rec := doRequest(t, h, http.MethodGet, "/v1/sports"); rec.Header().Get("X-Cache") != "MISS" {
		t.Error("expected MISS after purge")
	}
	if n := up.sportCalls.Load(); n != 2 {
		t.Errorf("upstream calls = %d, want 2", n)
	}
}

func TestCacheDeleteKey(t *testing.T) {
	t.Parallel()
	up := &fakeUpstream{}
	h, _ := newTestServer(t, up)

	doRequest(t, h, http.MethodGet, "/v1/sports")
	key := fingerprint("/v1/sports", url.Values{})

	if rec := doRequest(t, h, http.MethodDelete, "/admin/cache/"+key); rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", rec.Code)
	}
	if rec := doRequest(t, h, http.MethodDelete, "/admin/cache/"+key); rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}
	if rec := doRequest(t, h, http.MethodGet, "/v1/sports"); rec.Header().Get("X-Cache") != "MISS" {
		t.Error("expected MISS after key deletion")
	}
}

func TestCacheStats(t *testing.T) {
	t.Parallel()
	h, _ := newTestServer(t, &fakeUpstream{})

	doRequest(t, h, http.MethodGet, "/v1/sports")
	doRequest(t, h, http.MethodGet, "/v1/sports")

	rec := doRequest(t, h, http.MethodGet, "/admin/cache/stats")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var stats struct {
		Enabled          bool  `json:"enabled"`
		Size             int   `json:"size"`
		MaxSize          int   `json:"max_size"`
		ActiveCount      int   `json:"active_count"`
		TotalAccessCount int64 `json:"total_access_count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !stats.Enabled || stats.Size != 1 || stats.ActiveCount != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if stats.TotalAccessCount != 1 {
		t.Errorf("total_access_count = %d, want 1", stats.TotalAccessCount)
	}
}

func TestCacheDisabled(t *testing.T) {
	t.Parallel()
	up := &fakeUpstream{}
	h := New(Deps{Upstream: up})

	doRequest(t, h, http.MethodGet, "/v1/sports")
	rec := doRequest(t, h, http.MethodGet, "/v1/sports")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("X-Cache"); got != "" {
		t.Errorf("X-Cache = %q, want empty when caching disabled", got)
	}
	if n := up.sportCalls.Load(); n != 2 {
		t.Errorf("upstream calls = %d, want 2", n)
	}

	if rec := doRequest(t, h, http.MethodGet, "/admin/cache/stats"); rec.Code != http.StatusOK {
		t.Errorf("stats status = %d", rec.Code)
	}
}

func TestFingerprint(t *testing.T) {
	t.Parallel()
	a := fingerprint("/v1/scans", url.Values{"sport": {"soccer_epl"}, "limit": {"10"}})
	b := fingerprint("/v1/scans", url.Values{"limit": {"10"}, "sport": {"soccer_epl"}})
	if a != b {
		t.Error("fingerprint should be order-independent over query params")
	}
	if c := fingerprint("/v1/scans", url.Values{"limit": {"20"}, "sport": {"soccer_epl"}}); c == a {
		t.Error("different params must not collide")
	}
	if len(a) != 64 {
		t.Errorf("fingerprint length = %d, want 64 hex chars", len(a))
	}
}
