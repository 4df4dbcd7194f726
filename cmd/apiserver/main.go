// API server entry point for SignalWeave Intelligence.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/signalweave/signalweave/internal/application/dedup"
	"github.com/signalweave/signalweave/internal/application/labeling"
	"github.com/signalweave/signalweave/internal/application/review"
	"github.com/signalweave/signalweave/internal/application/synthesis"
	"github.com/signalweave/signalweave/internal/config"
	"github.com/signalweave/signalweave/internal/infrastructure/database/postgres"
	"github.com/signalweave/signalweave/internal/infrastructure/database/postgres/repositories"
	"github.com/signalweave/signalweave/internal/infrastructure/database/redis"
	"github.com/signalweave/signalweave/internal/infrastructure/genai/openai"
	"github.com/signalweave/signalweave/internal/infrastructure/graph/neo4j"
	"github.com/signalweave/signalweave/internal/infrastructure/messaging/kafka"
	"github.com/signalweave/signalweave/internal/infrastructure/monitoring/logging"
	"github.com/signalweave/signalweave/internal/infrastructure/monitoring/prometheus"
	"github.com/signalweave/signalweave/internal/infrastructure/search/milvus"
	"github.com/signalweave/signalweave/internal/infrastructure/search/opensearch"
	"github.com/signalweave/signalweave/internal/infrastructure/storage/minio"
	httpserver "github.com/signalweave/signalweave/internal/interfaces/http"
	"github.com/signalweave/signalweave/internal/interfaces/http/handlers"
	"github.com/signalweave/signalweave/pkg/types/common"
	"github.com/signalweave/signalweave/pkg/types/insight"
)

// batchLockTTL bounds how long a crashed run can keep its batch locked.
const batchLockTTL = 15 * time.Minute

func main() {
	configPath := flag.String("config", "", "path to config file (SWEAVE_* env vars apply either way)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "apiserver: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.Load(configPath)
	} else {
		cfg, err = config.LoadFromEnv()
	}
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return err
	}
	logger.Info("starting SignalWeave API server", logging.Int("port", cfg.Server.Port))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.NewConnection(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer db.Close()
	if cfg.Database.MigrationPath != "" {
		if err := db.RunMigrations(cfg.Database.MigrationPath); err != nil {
			return err
		}
	}

	rdb, err := redis.NewClient(cfg.Redis, logger)
	if err != nil {
		return err
	}
	defer rdb.Close()

	producer, err := kafka.NewProducer(cfg.Kafka, logger)
	if err != nil {
		return err
	}
	defer producer.Close()

	mv, err := milvus.NewClient(ctx, cfg.Milvus, logger)
	if err != nil {
		return err
	}
	defer mv.Close()

	osc, err := opensearch.NewClient(cfg.OpenSearch, logger)
	if err != nil {
		return err
	}
	indexer, err := opensearch.NewStatementIndexer(ctx, osc, logger)
	if err != nil {
		return err
	}

	collector, err := prometheus.NewCollector(prometheus.Config{
		Namespace:            "signalweave",
		EnableProcessMetrics: true,
		EnableGoMetrics:      true,
	})
	if err != nil {
		return err
	}
	metrics := prometheus.NewSynthesisMetrics(collector)

	genClient, err := openai.NewClient(cfg.GenAI, logger)
	if err != nil {
		return err
	}
	genClient.WithMetrics(metrics)

	archiver, err := minio.NewArchiver(ctx, cfg.MinIO, logger)
	if err != nil {
		return err
	}

	graph, err := neo4j.NewDriver(ctx, cfg.Neo4j, logger)
	if err != nil {
		return err
	}
	defer graph.Close(context.Background())

	pool := db.Pool()
	responses := repositories.NewResponseRepo(pool, logger)
	themes := repositories.NewThemeRepo(pool, logger)
	alerts := repositories.NewAlertRepo(pool, logger)
	batches := repositories.NewBatchRepo(pool, logger)
	writer := repositories.NewBatchWriter(pool, logger)

	labeler := labeling.NewService(responses, openai.NewEmbedder(genClient), openai.NewScorer(genClient), logger)
	reviewer := review.NewInstrumentedService(themes, metrics, logger)

	synth, err := synthesis.NewPerBatchService(synthesis.Deps{
		Responses:   responses,
		Labeler:     labeler,
		Generator:   openai.NewGenerator(genClient),
		Writer:      writer,
		Publisher:   producer,
		Archiver:    archiver,
		Provenance:  neo4j.NewProvenanceWriter(graph, logger),
		Indexer:     indexer,
		Metrics:     metrics,
		Logger:      logger,
		Concurrency: cfg.Worker.Concurrency,
	}, func(ctx context.Context, batchID common.BatchID) (dedup.SimilarityIndex, error) {
		return milvus.NewResponseIndex(ctx, mv, batchID, logger)
	})
	if err != nil {
		return err
	}

	resolveProfile := func(name insight.ProfileName) (insight.SynthesisProfile, error) {
		if name == "" {
			return cfg.ResolveProfile()
		}
		return insight.DefaultProfile(name)
	}
	lockFactory := func(batchID common.BatchID) handlers.BatchLocker {
		return redis.NewBatchLock(rdb, batchID, batchLockTTL, logger)
	}

	router := httpserver.NewRouter(httpserver.RouterConfig{
		Synthesis: handlers.NewSynthesisHandler(synth, batches, lockFactory, resolveProfile, logger),
		Themes:    handlers.NewThemeHandler(reviewer, redis.NewCache(rdb, logger), logger),
		Alerts:    handlers.NewAlertHandler(alerts),
		Health: handlers.NewHealthHandler(map[string]handlers.HealthCheck{
			"postgres":   db.HealthCheck,
			"redis":      rdb.HealthCheck,
			"milvus":     mv.HealthCheck,
			"opensearch": osc.HealthCheck,
			"neo4j":      graph.HealthCheck,
		}, logger),
		MetricsHandler: collector.Handler(),
		Mode:           cfg.Server.Mode,
		Logger:         logger,
	})

	srv := httpserver.NewServer(cfg.Server, router, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	// The signal context is already cancelled; shut down on a fresh one so
	// in-flight requests get the full drain window.
	return srv.Stop(context.Background())
}
