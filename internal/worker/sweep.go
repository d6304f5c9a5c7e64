package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/oddskit/oddsrelay/internal/cache"
	"github.com/oddskit/oddsrelay/internal/telemetry"
)

// Sweeper is the cache surface the sweep worker needs.
type Sweeper interface {
	Cleanup(ctx context.Context) int
	Stats(ctx context.Context) cache.Stats
}

// SweepWorker periodically removes expired cache entries. Staleness
// correctness never depends on it (reads check expiry synchronously);
// it only bounds memory held by entries nobody re-reads.
type SweepWorker struct {
	cache    Sweeper
	interval time.Duration
	metrics  *telemetry.Metrics // nil = no metrics
}

// NewSweepWorker creates a SweepWorker with the given sweep interval.
func NewSweepWorker(c Sweeper, interval time.Duration, m *telemetry.Metrics) *SweepWorker {
	return &SweepWorker{cache: c, interval: interval, metrics: m}
}

// Name returns the worker identifier.
func (w *SweepWorker) Name() string { return "cache_sweep" }

// Run sweeps on a fixed interval until ctx is cancelled.
func (w *SweepWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			evicted := w.cache.Cleanup(ctx)
			stats := w.cache.Stats(ctx)
			if w.metrics != nil {
				w.metrics.CacheEvictions.Add(float64(evicted))
				w.metrics.CacheSize.Set(float64(stats.Size))
			}
			if evicted > 0 {
				slog.LogAttrs(ctx, slog.LevelDebug, "cache sweep",
					slog.Int("evicted", evicted),
					slog.Int("remaining", stats.Size),
				)
			}
		case <-ctx.Done():
			return nil
		}
	}
}
