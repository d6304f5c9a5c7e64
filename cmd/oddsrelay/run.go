package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/dnscache"

	"github.com/oddskit/oddsrelay/internal/auth"
	"github.com/oddskit/oddsrelay/internal/cache"
	"github.com/oddskit/oddsrelay/internal/circuitbreaker"
	"github.com/oddskit/oddsrelay/internal/config"
	"github.com/oddskit/oddsrelay/internal/ratelimit"
	"github.com/oddskit/oddsrelay/internal/server"
	"github.com/oddskit/oddsrelay/internal/storage/sqlite"
	"github.com/oddskit/oddsrelay/internal/telemetry"
	"github.com/oddskit/oddsrelay/internal/upstream"
	"github.com/oddskit/oddsrelay/internal/worker"
)

func run(configPath string) error {
	// Load config
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	slog.Info("starting oddsrelay", "version", version, "addr", cfg.Server.Addr)

	// Open session store
	store, err := sqlite.New(cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer store.Close()

	// Metrics
	var (
		metrics        *telemetry.Metrics
		metricsHandler http.Handler
	)
	if cfg.Telemetry.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics = telemetry.NewMetrics(reg)
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}

	// Tracing
	ctx := context.Background()
	if cfg.Telemetry.Tracing.Enabled {
		shutdown, err := telemetry.SetupTracing(ctx, cfg.Telemetry.Tracing.Endpoint, cfg.Telemetry.Tracing.SampleRate)
		if err != nil {
			return err
		}
		defer shutdown(context.Background())
	}

	// Shared DNS cache for the upstream transport
	resolver := &dnscache.Resolver{}
	workCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()
	go func() {
		t := time.NewTicker(5 * time.Minute)
		defer t.Stop()
		for {
			select {
			case <-workCtx.Done():
				return
			case <-t.C:
				resolver.Refresh(true)
			}
		}
	}()

	// Upstream client and token source
	client := upstream.New(upstream.Options{
		BaseURL:    cfg.Upstream.BaseURL,
		Timeout:    cfg.Upstream.Timeout,
		RetryMax:   cfg.Upstream.RetryMax,
		ForceHTTP2: cfg.Upstream.ForceHTTP2,
		Resolver:   resolver,
		Breaker:    circuitbreaker.NewBreaker(circuitbreaker.DefaultConfig()),
		Limiter:    ratelimit.NewLimiter(cfg.Upstream.RateLimitRPM),
		Quota:      ratelimit.NewQuota(cfg.Upstream.QuotaReserve),
		Metrics:    metrics,
	})
	tokens := auth.NewTokenSource(store, client, cfg.Auth.RefreshSkew, cfg.Auth.RefreshToken)
	client.UseTokens(tokens)

	// Response cache and background workers
	var (
		responses *cache.Memory[[]byte]
		workers   []worker.Worker
	)
	if cfg.Cache.Enabled {
		responses = cache.NewMemory[[]byte](cfg.Cache.MaxSize, cfg.Cache.DefaultTTL)
		workers = append(workers, worker.NewSweepWorker(responses, cfg.Cache.SweepInterval, metrics))
	}
	workers = append(workers, worker.NewTokenRefreshWorker(tokens, time.Minute))

	runner := worker.NewRunner(workers...)
	workerErr := make(chan error, 1)
	go func() {
		workerErr <- runner.Run(workCtx)
	}()

	// Create HTTP server
	deps := server.Deps{
		Upstream:       client,
		CacheTTL:       cfg.Cache.TTLFor,
		ReadyCheck:     store.Ping,
		Metrics:        metrics,
		MetricsHandler: metricsHandler,
	}
	if responses != nil {
		deps.Cache = responses
	}
	handler := server.New(deps)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	slog.Info("oddsrelay ready", "addr", cfg.Server.Addr, "cache", cfg.Cache.Enabled)

	// Wait for signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("shutting down", "signal", sig)
	case err := <-errCh:
		return err
	case err := <-workerErr:
		return err
	}

	// Shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	cancelWorkers()
	if err := <-workerErr; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	slog.Info("oddsrelay stopped")
	return nil
}
