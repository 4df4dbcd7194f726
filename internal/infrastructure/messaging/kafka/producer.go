package kafka

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/signalweave/signalweave/internal/config"
	"github.com/signalweave/signalweave/internal/domain/alert"
	"github.com/signalweave/signalweave/internal/domain/batch"
	"github.com/signalweave/signalweave/internal/domain/response"
	"github.com/signalweave/signalweave/internal/domain/theme"
	"github.com/signalweave/signalweave/internal/infrastructure/monitoring/logging"
	"github.com/signalweave/signalweave/pkg/errors"
)

// Producer publishes domain events.  It satisfies synthesis.EventPublisher;
// callers treat every publish as best effort after the batch commit.
type Producer struct {
	writer *kafka.Writer
	logger logging.Logger
	closed atomic.Bool
}

// NewProducer builds a Kafka producer over the configured brokers.  Topic is
// selected per message so one writer serves all event kinds.
func NewProducer(cfg config.KafkaConfig, log logging.Logger) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.Validation("kafka producer requires at least one broker")
	}
	retries := cfg.ProducerRetries
	if retries < 1 {
		retries = 3
	}
	batchSize := cfg.BatchSize
	if batchSize < 1 {
		batchSize = 100
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		MaxAttempts:  retries,
		BatchSize:    batchSize,
		BatchTimeout: time.Second,
		RequiredAcks: kafka.RequireAll,
	}
	return &Producer{writer: writer, logger: log}, nil
}

// event envelopes carry a stable shape per topic so consumers can evolve
// independently of the domain structs.

type responsePendingEvent struct {
	ResponseID string    `json:"response_id"`
	CompanyID  string    `json:"company_id"`
	BatchID    string    `json:"batch_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type responseLabeledEvent struct {
	ResponseID string    `json:"response_id"`
	CompanyID  string    `json:"company_id"`
	BatchID    string    `json:"batch_id,omitempty"`
	Sentiment  float64   `json:"sentiment"`
	OccurredAt time.Time `json:"occurred_at"`
}

type themeCreatedEvent struct {
	ThemeID      string    `json:"theme_id"`
	BatchID      string    `json:"batch_id"`
	Statement    string    `json:"statement"`
	CompanyCount int       `json:"company_count"`
	Score        float64   `json:"composite_score"`
	OccurredAt   time.Time `json:"occurred_at"`
}

type alertRaisedEvent struct {
	AlertID        string    `json:"alert_id"`
	BatchID        string    `json:"batch_id"`
	CompanyID      string    `json:"company_id"`
	Classification string    `json:"classification"`
	Statement      string    `json:"statement"`
	OccurredAt     time.Time `json:"occurred_at"`
}

type batchCompletedEvent struct {
	BatchID    string       `json:"batch_id"`
	Status     string       `json:"status"`
	Counts     batch.Counts `json:"counts"`
	OccurredAt time.Time    `json:"occurred_at"`
}

// PublishResponsePending announces a response degraded to PENDING_EMBEDDING,
// the retry worker's trigger.
func (p *Producer) PublishResponsePending(ctx context.Context, r *response.Response) error {
	return p.publish(ctx, TopicResponsePending, string(r.ID), responsePendingEvent{
		ResponseID: string(r.ID),
		CompanyID:  string(r.CompanyID),
		BatchID:    string(r.BatchID),
		OccurredAt: time.Now().UTC(),
	})
}

// PublishResponseLabeled announces that a previously pending response now
// carries its full label set.  The retry worker emits this after recovery.
func (p *Producer) PublishResponseLabeled(ctx context.Context, r *response.Response) error {
	ev := responseLabeledEvent{
		ResponseID: string(r.ID),
		CompanyID:  string(r.CompanyID),
		BatchID:    string(r.BatchID),
		OccurredAt: time.Now().UTC(),
	}
	if r.Sentiment != nil {
		ev.Sentiment = *r.Sentiment
	}
	return p.publish(ctx, TopicResponseLabeled, string(r.ID), ev)
}

// PublishThemeCreated announces a validated theme.
func (p *Producer) PublishThemeCreated(ctx context.Context, t *theme.Theme) error {
	return p.publish(ctx, TopicThemeCreated, string(t.ID), themeCreatedEvent{
		ThemeID:      string(t.ID),
		BatchID:      string(t.BatchID),
		Statement:    t.Statement,
		CompanyCount: len(t.CompanyIDs),
		Score:        t.CompositeScore,
		OccurredAt:   time.Now().UTC(),
	})
}

// PublishAlertRaised announces a strategic alert.
func (p *Producer) PublishAlertRaised(ctx context.Context, a *alert.StrategicAlert) error {
	return p.publish(ctx, TopicAlertRaised, string(a.CompanyID), alertRaisedEvent{
		AlertID:        string(a.ID),
		BatchID:        string(a.BatchID),
		CompanyID:      string(a.CompanyID),
		Classification: string(a.Classification),
		Statement:      a.Statement,
		OccurredAt:     time.Now().UTC(),
	})
}

// PublishBatchCompleted announces the final state of a run.
func (p *Producer) PublishBatchCompleted(ctx context.Context, b *batch.SynthesisBatch) error {
	return p.publish(ctx, TopicBatchCompleted, string(b.BatchID), batchCompletedEvent{
		BatchID:    string(b.BatchID),
		Status:     string(b.Status),
		Counts:     b.Counts,
		OccurredAt: time.Now().UTC(),
	})
}

func (p *Producer) publish(ctx context.Context, topic, key string, payload any) error {
	if p.closed.Load() {
		return errors.New(errors.ErrCodeInternal, "kafka producer is closed")
	}
	value, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "encoding event payload")
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
		Time:  time.Now().UTC(),
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "publishing "+topic)
	}
	p.logger.Debug("event published",
		logging.String("topic", topic),
		logging.String("key", key),
	)
	return nil
}

// Close flushes and shuts the writer down.
func (p *Producer) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	if err := p.writer.Close(); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "closing kafka producer")
	}
	p.logger.Info("closed Kafka producer")
	return nil
}
