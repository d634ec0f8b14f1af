// Command api serves the glossary HTTP API: the text checker, redaction,
// variant preview, the entity write path, and index administration.
//
// Text is analyzed locally against the stored lemma index or by a remote
// analysis service, optionally behind a Redis cache. Index changes announced
// by the indexer on the invalidation topic refresh the local index and
// flush the cache.
//
// Usage:
//
//	go run ./cmd/api [-config configs/development.yaml]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/glossary-index/internal/analysis"
	apihandler "github.com/Adithya-Monish-Kumar-K/glossary-index/internal/api/handler"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/internal/api/router"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/internal/auth/apikey"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/internal/auth/ratelimit"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/internal/checker"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/internal/indexer"
	ingesthandler "github.com/Adithya-Monish-Kumar-K/glossary-index/internal/ingestion/handler"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/internal/store"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/pkg/tracing"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	tracing.SetEnabled(cfg.Tracing.Enabled)

	if err := run(cfg); err != nil {
		slog.Error("api service failed", "error", err)
		os.Exit(1)
	}
	slog.Info("api service stopped")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("starting api service",
		"port", cfg.Server.Port,
		"analysis_mode", cfg.Analysis.Mode,
		"cache_enabled", cfg.Analysis.CacheEnabled,
	)
	met := metrics.New(prometheus.DefaultRegisterer)
	checks := health.NewChecker("api", 2*time.Second)
	connect := resilience.RetryConfig{MaxAttempts: 5, InitialDelay: 500 * time.Millisecond, MaxDelay: 5 * time.Second}

	var db *postgres.Client
	err := resilience.Retry(ctx, "postgres.connect", connect, func(ctx context.Context) error {
		var err error
		db, err = postgres.New(ctx, cfg.Postgres)
		return err
	})
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer db.Close()
	checks.Register("postgres", db.HealthCheck())
	docs := store.New(db)
	if err := docs.Migrate(ctx); err != nil {
		return fmt.Errorf("migrating schema: %w", err)
	}

	// Analysis: local or remote, optionally behind the Redis cache.
	var analyzer analysis.Analyzer
	var local *analysis.Local
	switch cfg.Analysis.Mode {
	case "remote":
		remote := analysis.NewRemote(analysis.RemoteConfig{
			URL:              cfg.Analysis.URL,
			Timeout:          cfg.Analysis.Timeout,
			FailureThreshold: cfg.Analysis.FailureThreshold,
			ResetTimeout:     cfg.Analysis.ResetTimeout,
		}, met)
		checks.Register("analysis", health.BreakerCheck(remote.Breaker()))
		analyzer = remote
	default:
		local = analysis.NewLocal(docs, met)
		analyzer = local
	}

	var cache *analysis.Cached
	if cfg.Analysis.CacheEnabled {
		var rdb *redis.Client
		err := resilience.Retry(ctx, "redis.connect", connect, func(ctx context.Context) error {
			var err error
			rdb, err = redis.NewClient(ctx, cfg.Redis)
			return err
		})
		if err != nil {
			slog.Warn("redis unavailable, analysis cache disabled", "error", err)
		} else {
			defer rdb.Close()
			checks.Register("redis", rdb.HealthCheck())
			cache = analysis.NewCached(analyzer, rdb, cfg.Redis.CacheTTL, met)
			analyzer = cache
		}
	}

	// Every replica keeps its own view of the index, so each joins the
	// invalidation topic with its own consumer group.
	var invalidator analysis.Invalidator
	if cache != nil {
		invalidator = cache
	}
	var refresher analysis.Refresher
	if local != nil {
		refresher = local
	}
	invalidations := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.CacheInvalidate,
		analysis.HandleInvalidation(refresher, invalidator),
		kafka.WithGroupID(instanceGroup()),
	)
	defer invalidations.Close()
	go func() {
		if err := invalidations.Start(ctx); err != nil {
			slog.Error("invalidation consumer stopped", "error", err)
		}
	}()

	changes := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.EntityChanges)
	defer changes.Close()

	maintainer := indexer.NewMaintainer(docs,
		indexer.WithMetrics(met),
		indexer.WithRebuildLimits(cfg.Indexer.RebuildWorkers, cfg.Indexer.SeedPageSize),
	)
	checkerOpts := []checker.Option{checker.WithMetrics(met), checker.WithRebuilder(rebuildAndReload{maintainer, local, cache})}
	if cache != nil {
		checkerOpts = append(checkerOpts, checker.WithCache(cache))
	}

	validator := apikey.NewValidator(db)
	limiter := ratelimit.New(ctx, cfg.Auth.RateLimitWindow)
	handler := router.New(
		router.Handlers{
			Checker:   checker.New(analyzer, docs, cfg.Analysis.MaxTextLength, checkerOpts...),
			Ingestion: ingesthandler.New(publisher.New(docs, changes, met)),
			Keys:      apihandler.NewKeys(validator),
			Health:    checks,
		},
		validator,
		limiter,
		met,
		router.Config{
			CORS:            cfg.CORS,
			PublicRateLimit: cfg.Auth.PublicRateLimit,
			RequestTimeout:  cfg.Server.RequestTimeout,
		},
	)

	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, nil)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownMetrics(shutdownCtx)
		}()
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("api service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving http: %w", err)
	}
	return nil
}

// rebuildAndReload runs a full index rebuild in-process and then drops the
// local index and the cache, since a rebuild run from here publishes no
// invalidations.
type rebuildAndReload struct {
	maintainer *indexer.Maintainer
	local      *analysis.Local
	cache      *analysis.Cached
}

func (r rebuildAndReload) RebuildAll(ctx context.Context) (indexer.Summary, error) {
	summary, err := r.maintainer.RebuildAll(ctx)
	if r.local != nil {
		r.local.Reset()
	}
	if r.cache != nil {
		if cerr := r.cache.Invalidate(ctx); cerr != nil {
			slog.Warn("failed to invalidate analysis cache after rebuild", "error", cerr)
		}
	}
	return summary, err
}

func instanceGroup() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "api"
	}
	return "glossary-api-" + host + "-" + uuid.NewString()[:8]
}
