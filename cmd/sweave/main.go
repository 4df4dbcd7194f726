// sweave is the operator CLI: synthesis runs, theme review, schema
// migrations, and the one-time legacy sentiment migration.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

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
	"github.com/signalweave/signalweave/internal/infrastructure/search/milvus"
	"github.com/signalweave/signalweave/internal/infrastructure/search/opensearch"
	"github.com/signalweave/signalweave/internal/infrastructure/storage/minio"
	"github.com/signalweave/signalweave/internal/interfaces/cli"
	"github.com/signalweave/signalweave/pkg/types/common"
	"github.com/signalweave/signalweave/pkg/types/insight"
)

const batchLockTTL = 15 * time.Minute

// Build-time variables injected via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	cli.Version = version
	cli.GitCommit = commit

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		cfg *config.Config
		err error
	)
	if path := os.Getenv("SWEAVE_CONFIG"); path != "" {
		cfg, err = config.Load(path)
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.NewConnection(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	pool := db.Pool()
	deps := cli.Deps{
		Synthesis: &cliSynthesis{cfg: cfg, db: db, logger: logger},
		Review:    review.NewService(repositories.NewThemeRepo(pool, logger), logger),
		Responses: repositories.NewResponseRepo(pool, logger),
		Batches:   repositories.NewBatchRepo(pool, logger),
		Migrator:  db,
		Profiles: func(name insight.ProfileName) (insight.SynthesisProfile, error) {
			if name == "" {
				return cfg.ResolveProfile()
			}
			return insight.DefaultProfile(name)
		},
		Logger: logger,
	}

	return cli.NewRootCommand(deps).ExecuteContext(ctx)
}

// cliSynthesis dials the full synthesis stack on demand so commands that
// only touch PostgreSQL stay runnable without Kafka, Milvus, or the rest.
type cliSynthesis struct {
	cfg    *config.Config
	db     *postgres.Connection
	logger logging.Logger
}

func (s *cliSynthesis) Run(ctx context.Context, batchID common.BatchID, profile insight.SynthesisProfile) (*synthesis.Result, error) {
	cfg, logger := s.cfg, s.logger

	rdb, err := redis.NewClient(cfg.Redis, logger)
	if err != nil {
		return nil, err
	}
	defer rdb.Close()

	// Same lock the API server takes, so an operator run cannot collide
	// with a concurrent HTTP-triggered run of the same batch.
	lock := redis.NewBatchLock(rdb, batchID, batchLockTTL, logger)
	if err := lock.Acquire(ctx); err != nil {
		return nil, err
	}
	defer lock.Release(context.WithoutCancel(ctx))

	producer, err := kafka.NewProducer(cfg.Kafka, logger)
	if err != nil {
		return nil, err
	}
	defer producer.Close()

	mv, err := milvus.NewClient(ctx, cfg.Milvus, logger)
	if err != nil {
		return nil, err
	}
	defer mv.Close()
	index, err := milvus.NewResponseIndex(ctx, mv, batchID, logger)
	if err != nil {
		return nil, err
	}

	osc, err := opensearch.NewClient(cfg.OpenSearch, logger)
	if err != nil {
		return nil, err
	}
	indexer, err := opensearch.NewStatementIndexer(ctx, osc, logger)
	if err != nil {
		return nil, err
	}

	genClient, err := openai.NewClient(cfg.GenAI, logger)
	if err != nil {
		return nil, err
	}

	archiver, err := minio.NewArchiver(ctx, cfg.MinIO, logger)
	if err != nil {
		return nil, err
	}

	graph, err := neo4j.NewDriver(ctx, cfg.Neo4j, logger)
	if err != nil {
		return nil, err
	}
	defer graph.Close(context.WithoutCancel(ctx))

	pool := s.db.Pool()
	responses := repositories.NewResponseRepo(pool, logger)
	svc, err := synthesis.NewService(synthesis.Deps{
		Responses:   responses,
		Labeler:     labeling.NewService(responses, openai.NewEmbedder(genClient), openai.NewScorer(genClient), logger),
		Index:       index,
		Generator:   openai.NewGenerator(genClient),
		Writer:      repositories.NewBatchWriter(pool, logger),
		Publisher:   producer,
		Archiver:    archiver,
		Provenance:  neo4j.NewProvenanceWriter(graph, logger),
		Indexer:     indexer,
		Logger:      logger,
		Concurrency: cfg.Worker.Concurrency,
	})
	if err != nil {
		return nil, err
	}
	return svc.Run(ctx, batchID, profile)
}
