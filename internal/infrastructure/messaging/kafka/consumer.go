package kafka

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/signalweave/signalweave/internal/application/labeling"
	"github.com/signalweave/signalweave/internal/config"
	"github.com/signalweave/signalweave/internal/infrastructure/monitoring/logging"
	"github.com/signalweave/signalweave/pkg/errors"
	"github.com/signalweave/signalweave/pkg/types/common"
)

// PendingEmbeddingConsumer drains the pending-embedding topic and retries the
// missing vectors.  A retry that fails transiently is re-queued by committing
// nothing; a permanent failure goes to the dead-letter topic so the batch
// pipeline is never blocked on one poisoned response.
type PendingEmbeddingConsumer struct {
	reader   *kafka.Reader
	producer *Producer
	labeler  labeling.Service
	logger   logging.Logger
	backoff  time.Duration
	closed   atomic.Bool
}

// NewPendingEmbeddingConsumer builds the retry consumer.
func NewPendingEmbeddingConsumer(cfg config.KafkaConfig, labeler labeling.Service, producer *Producer, log logging.Logger) (*PendingEmbeddingConsumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.Validation("kafka consumer requires at least one broker")
	}
	startOffset := kafka.LastOffset
	if cfg.AutoOffsetReset == "earliest" {
		startOffset = kafka.FirstOffset
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		Topic:       TopicResponsePending,
		StartOffset: startOffset,
		MinBytes:    1,
		MaxBytes:    1 << 20,
	})
	return &PendingEmbeddingConsumer{
		reader:   reader,
		producer: producer,
		labeler:  labeler,
		logger:   log,
		backoff:  5 * time.Second,
	}, nil
}

// Run consumes until the context is cancelled.
func (c *PendingEmbeddingConsumer) Run(ctx context.Context) error {
	c.logger.Info("pending-embedding consumer started", logging.String("topic", TopicResponsePending))
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, errors.ErrCodeExternalService, "fetching pending-embedding message")
		}

		if err := c.handle(ctx, msg); err != nil {
			if errors.IsTransient(err) {
				// Leave the offset uncommitted and back off; the message is
				// redelivered once the embedding service recovers.
				c.logger.Warn("embedding retry still failing, backing off",
					logging.Err(err))
				select {
				case <-time.After(c.backoff):
				case <-ctx.Done():
					return nil
				}
				continue
			}
			c.sendToDeadLetter(ctx, msg, err)
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("committing consumer offset", logging.Err(err))
		}
	}
}

func (c *PendingEmbeddingConsumer) handle(ctx context.Context, msg kafka.Message) error {
	var ev responsePendingEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "decoding pending-embedding event")
	}

	res, err := c.labeler.RetryEmbedding(ctx, common.ID(ev.ResponseID))
	if err != nil {
		return err
	}
	if !res.PendingEmbedding {
		c.logger.Info("pending embedding retried successfully",
			logging.String("response_id", ev.ResponseID))
		if c.producer != nil {
			if perr := c.producer.PublishResponseLabeled(ctx, res.Response); perr != nil {
				c.logger.Warn("publishing response-labeled event", logging.Err(perr))
			}
		}
	}
	return nil
}

func (c *PendingEmbeddingConsumer) sendToDeadLetter(ctx context.Context, msg kafka.Message, cause error) {
	c.logger.Error("moving poisoned message to dead letter",
		logging.String("topic", msg.Topic),
		logging.Err(cause))
	if c.producer == nil {
		return
	}
	payload := map[string]any{
		"original_topic": msg.Topic,
		"key":            string(msg.Key),
		"value":          json.RawMessage(msg.Value),
		"error":          cause.Error(),
		"failed_at":      time.Now().UTC(),
	}
	if err := c.producer.publish(ctx, TopicDeadLetter, string(msg.Key), payload); err != nil {
		c.logger.Error("publishing to dead letter failed", logging.Err(err))
	}
}

// Close shuts the reader down.
func (c *PendingEmbeddingConsumer) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.reader.Close()
}
