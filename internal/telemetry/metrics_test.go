package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewPedanticRegistry()
	m := NewMetrics(reg)

	if m.RequestsTotal == nil {
		t.Error("RequestsTotal is nil")
	}
	if m.CacheHits == nil || m.CacheMisses == nil || m.CacheEvictions == nil {
		t.Error("cache collectors are nil")
	}
	if m.CacheSize == nil {
		t.Error("CacheSize is nil")
	}
	if m.UpstreamDuration == nil || m.UpstreamErrors == nil {
		t.Error("upstream collectors are nil")
	}
	if m.TokenRefreshes == nil {
		t.Error("TokenRefreshes is nil")
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(families) == 0 {
		t.Error("expected at least one metric family")
	}
}

func TestNewMetricsIncrement(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewPedanticRegistry()
	m := NewMetrics(reg)

	m.RequestsTotal.WithLabelValues("GET", "/v1/scans", "200").Inc()
	m.CacheHits.Inc()
	m.CacheMisses.Inc()
	m.CacheEvictions.Add(3)
	m.CacheSize.Set(42)
	m.UpstreamDuration.WithLabelValues("scans").Observe(0.123)
	m.TokenRefreshes.WithLabelValues("ok").Inc()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather after increment: %v", err)
	}

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}

	want := []string{
		"oddsrelay_requests_total",
		"oddsrelay_cache_hits_total",
		"oddsrelay_cache_misses_total",
		"oddsrelay_cache_evictions_total",
		"oddsrelay_cache_size",
		"oddsrelay_upstream_duration_seconds",
		"oddsrelay_token_refreshes_total",
	}
	for _, name := range want {
		if !names[name] {
			t.Errorf("missing metric %q in gathered families", name)
		}
	}
}

// SetupTracing is not unit-tested because it requires a gRPC connection
// to an OTLP collector, which is integration-test territory.
