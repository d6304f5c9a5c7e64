// Package telemetry provides observability primitives for the oddsrelay daemon.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus collectors for the relay.
type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	ActiveRequests   prometheus.Gauge
	UpstreamDuration *prometheus.HistogramVec
	UpstreamErrors   *prometheus.CounterVec
	CacheHits        prometheus.Counter
	CacheMisses      prometheus.Counter
	CacheEvictions   prometheus.Counter
	CacheSize        prometheus.Gauge
	TokenRefreshes   *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "oddsrelay",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:                       "oddsrelay",
			Name:                            "request_duration_seconds",
			Help:                            "HTTP request duration in seconds.",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 0,
		}, []string{"method", "path"}),

		ActiveRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "oddsrelay",
			Name:      "active_requests",
			Help:      "Number of currently active requests.",
		}),

		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:                       "oddsrelay",
			Name:                            "upstream_duration_seconds",
			Help:                            "Odds backend call duration in seconds.",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 0,
		}, []string{"route"}),

		UpstreamErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "oddsrelay",
			Name:      "upstream_errors_total",
			Help:      "Total odds backend errors.",
		}, []string{"route", "status"}),

		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "oddsrelay",
			Name:      "cache_hits_total",
			Help:      "Total response cache hits.",
		}),

		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "oddsrelay",
			Name:      "cache_misses_total",
			Help:      "Total response cache misses.",
		}),

		CacheEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "oddsrelay",
			Name:      "cache_evictions_total",
			Help:      "Total entries removed by the periodic sweep.",
		}),

		CacheSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "oddsrelay",
			Name:      "cache_size",
			Help:      "Current number of response cache entries.",
		}),

		TokenRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "oddsrelay",
			Name:      "token_refreshes_total",
			Help:      "Total access token refresh attempts.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.ActiveRequests,
		m.UpstreamDuration,
		m.UpstreamErrors,
		m.CacheHits,
		m.CacheMisses,
		m.CacheEvictions,
		m.CacheSize,
		m.TokenRefreshes,
	)

	return m
}
