// Background worker entry point: consumes pending-embedding events and
// periodically sweeps the database for responses the bus missed.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/signalweave/signalweave/internal/application/labeling"
	"github.com/signalweave/signalweave/internal/config"
	"github.com/signalweave/signalweave/internal/domain/response"
	"github.com/signalweave/signalweave/internal/infrastructure/database/postgres"
	"github.com/signalweave/signalweave/internal/infrastructure/database/postgres/repositories"
	"github.com/signalweave/signalweave/internal/infrastructure/genai/openai"
	"github.com/signalweave/signalweave/internal/infrastructure/messaging/kafka"
	"github.com/signalweave/signalweave/internal/infrastructure/monitoring/logging"
	"github.com/signalweave/signalweave/pkg/errors"
)

// drainLimit caps how many stuck responses one sweep picks up.
const drainLimit = 200

func main() {
	configPath := flag.String("config", "", "path to config file (SWEAVE_* env vars apply either way)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "worker: %v\n", err)
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
	logger.Info("starting SignalWeave worker",
		logging.String("group_id", cfg.Kafka.GroupID),
		logging.Duration("drain_interval", cfg.Worker.DrainInterval))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.NewConnection(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	genClient, err := openai.NewClient(cfg.GenAI, logger)
	if err != nil {
		return err
	}

	responses := repositories.NewResponseRepo(db.Pool(), logger)
	labeler := labeling.NewService(responses, openai.NewEmbedder(genClient), openai.NewScorer(genClient), logger)

	deadLetter, err := kafka.NewProducer(cfg.Kafka, logger)
	if err != nil {
		return err
	}
	defer deadLetter.Close()

	consumer, err := kafka.NewPendingEmbeddingConsumer(cfg.Kafka, labeler, deadLetter, logger)
	if err != nil {
		return err
	}
	defer consumer.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return consumer.Run(gctx)
	})
	g.Go(func() error {
		return runDrainLoop(gctx, responses, labeler, cfg.Worker.DrainInterval, logger)
	})

	err = g.Wait()
	logger.Info("worker stopped")
	return err
}

// runDrainLoop periodically retries responses stuck in PENDING_EMBEDDING.
// The bus delivers most retries; the sweep covers events lost to publish
// failures or dead-lettered before the embedding service recovered.
func runDrainLoop(ctx context.Context, responses response.Repository, labeler labeling.Service, interval time.Duration, log logging.Logger) error {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		pending, err := responses.ListPendingEmbedding(ctx, drainLimit)
		if err != nil {
			log.Error("listing pending-embedding responses", logging.Err(err))
			continue
		}
		if len(pending) == 0 {
			continue
		}

		var recovered int
		for _, r := range pending {
			if _, err := labeler.RetryEmbedding(ctx, r.ID); err != nil {
				if errors.IsTransient(err) {
					// Embedding service still down; the rest of the sweep
					// would fail the same way.
					log.Warn("embedding service unavailable, ending sweep",
						logging.Int("recovered", recovered),
						logging.Err(err))
					break
				}
				log.Error("embedding retry failed",
					logging.String("response_id", string(r.ID)),
					logging.Err(err))
				continue
			}
			recovered++
		}
		if recovered > 0 {
			log.Info("pending-embedding sweep recovered responses",
				logging.Int("recovered", recovered),
				logging.Int("pending", len(pending)))
		}
	}
}
