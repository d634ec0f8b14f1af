// Command indexer keeps the lemma index in step with Terms and Translations.
// It consumes entity change events, rebuilds or removes the affected index
// entries, and announces every written entry on the invalidation topic.
//
// Usage:
//
//	go run ./cmd/indexer [-config configs/development.yaml] [-seed]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/glossary-index/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/internal/store"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/pkg/resilience"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	seed := flag.Bool("seed", false, "rebuild every index entry before consuming")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("starting indexer service",
		"topic", cfg.Kafka.Topics.EntityChanges,
		"group", cfg.Kafka.ConsumerGroup,
		"seed", *seed,
	)
	met := metrics.New(prometheus.DefaultRegisterer)

	var db *postgres.Client
	err = resilience.Retry(ctx, "postgres.connect",
		resilience.RetryConfig{MaxAttempts: 5, InitialDelay: 500 * time.Millisecond, MaxDelay: 5 * time.Second},
		func(ctx context.Context) error {
			db, err = postgres.New(ctx, cfg.Postgres)
			return err
		})
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	docs := store.New(db)
	if err := docs.Migrate(ctx); err != nil {
		slog.Error("failed to migrate schema", "error", err)
		os.Exit(1)
	}

	invalidations := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.CacheInvalidate)
	defer invalidations.Close()

	maintainer := indexer.NewMaintainer(docs,
		indexer.WithNotifier(consumer.NewInvalidationNotifier(invalidations)),
		indexer.WithMetrics(met),
		indexer.WithRebuildLimits(cfg.Indexer.RebuildWorkers, cfg.Indexer.SeedPageSize),
	)

	checks := health.NewChecker("indexer", 2*time.Second)
	checks.Register("postgres", db.HealthCheck())
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, map[string]http.Handler{
			"GET /healthz/live":  checks.LiveHandler(),
			"GET /healthz/ready": checks.ReadyHandler(),
		})
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownMetrics(shutdownCtx)
		}()
	}

	if *seed {
		summary, err := maintainer.RebuildAll(ctx)
		if err != nil {
			slog.Error("seed failed", "error", err)
			os.Exit(1)
		}
		slog.Info("seed complete", "written", summary.Written, "unchanged", summary.Unchanged, "pruned", summary.Pruned)
	}

	kafkaConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.EntityChanges,
		consumer.HandleChange(maintainer),
		kafka.FromFirstOffset(),
	)
	defer kafkaConsumer.Close()

	slog.Info("indexer service ready, consuming from kafka")
	if err := consumer.New(kafkaConsumer).Start(ctx); err != nil {
		slog.Error("consumer error", "error", err)
	}
	slog.Info("indexer service stopped")
}
