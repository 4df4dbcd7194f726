// Package labeling provides the application-level service that attaches a
// sentiment score and an embedding vector to raw responses.  Labeling is
// idempotent per response id and independent across responses, so the
// synthesis orchestrator runs it concurrently.
package labeling

import (
	"context"
	"strings"

	"github.com/signalweave/signalweave/internal/domain/response"
	"github.com/signalweave/signalweave/internal/infrastructure/monitoring/logging"
	"github.com/signalweave/signalweave/pkg/errors"
	"github.com/signalweave/signalweave/pkg/types/common"
)

// EmbeddingProvider produces the dense vector for a piece of text.  The
// infrastructure client performs bounded backoff internally; errors reaching
// this layer are either permanent or retries-exhausted transients.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// SentimentScorer produces a numeric sentiment score with a short rationale.
type SentimentScorer interface {
	Score(ctx context.Context, text string) (score float64, rationale string, err error)
}

// Result describes the outcome of labeling one response.
type Result struct {
	Response         *response.Response
	PendingEmbedding bool
}

// Service labels responses.
type Service interface {
	// LabelResponse scores and embeds one response and persists it.  An
	// embedding outage degrades the response to pending-embedding rather
	// than failing it; a sentiment outage fails the call with a transient
	// error since no usable artifact was produced.
	LabelResponse(ctx context.Context, r *response.Response) (*Result, error)

	// RetryEmbedding attaches the missing vector to a pending-embedding
	// response.  Already-labeled responses are returned unchanged.
	RetryEmbedding(ctx context.Context, id common.ID) (*Result, error)
}

type service struct {
	responses response.Repository
	embedder  EmbeddingProvider
	scorer    SentimentScorer
	logger    logging.Logger
}

// NewService wires the labeling service.
func NewService(responses response.Repository, embedder EmbeddingProvider, scorer SentimentScorer, logger logging.Logger) Service {
	return &service{
		responses: responses,
		embedder:  embedder,
		scorer:    scorer,
		logger:    logger,
	}
}

func (s *service) LabelResponse(ctx context.Context, r *response.Response) (*Result, error) {
	if strings.TrimSpace(r.Text) == "" {
		return nil, errors.New(errors.ErrCodeEmptyResponseText,
			"response text is empty or whitespace-only")
	}

	// Relabeling a labeled response with the same text is a safe no-op.
	if r.IsLabeled() {
		return &Result{Response: r}, nil
	}

	if r.Sentiment == nil {
		score, rationale, err := s.scorer.Score(ctx, r.Text)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeTransientService,
				"sentiment scoring failed")
		}
		if err := r.SetSentiment(score, rationale); err != nil {
			return nil, err
		}
	}

	pending := false
	if !r.HasEmbedding() {
		vec, err := s.embedder.Embed(ctx, r.Text)
		switch {
		case err == nil:
			if err := r.SetEmbedding(vec); err != nil {
				return nil, err
			}
		case errors.IsTransient(err):
			// The embedding service is down.  The response keeps its
			// sentiment, is marked pending, and sits out clustering until
			// the retry worker picks it up.
			r.MarkEmbeddingPending()
			pending = true
			s.logger.Warn("embedding unavailable, response degraded to pending",
				logging.String("response_id", string(r.ID)),
				logging.Err(err))
		default:
			return nil, errors.Wrap(err, errors.ErrCodeEmbeddingUnavailable,
				"embedding request failed")
		}
	}

	if err := s.responses.Update(ctx, r); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "persisting labeled response")
	}

	s.logger.Debug("response labeled",
		logging.String("response_id", string(r.ID)),
		logging.String("status", string(r.Status)),
		logging.Bool("pending_embedding", pending))

	return &Result{Response: r, PendingEmbedding: pending}, nil
}

func (s *service) RetryEmbedding(ctx context.Context, id common.ID) (*Result, error) {
	r, err := s.responses.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.HasEmbedding() {
		return &Result{Response: r}, nil
	}
	if r.Sentiment == nil {
		// Never reached in normal flow; a pending response always has a
		// sentiment.  Run the full path to repair it.
		return s.LabelResponse(ctx, r)
	}

	vec, err := s.embedder.Embed(ctx, r.Text)
	if err != nil {
		if errors.IsTransient(err) {
			return &Result{Response: r, PendingEmbedding: true},
				errors.Wrap(err, errors.ErrCodeEmbeddingUnavailable, "embedding retry failed")
		}
		return nil, errors.Wrap(err, errors.ErrCodeEmbeddingUnavailable, "embedding retry failed")
	}
	if err := r.SetEmbedding(vec); err != nil {
		return nil, err
	}
	if err := s.responses.Update(ctx, r); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "persisting retried response")
	}

	s.logger.Info("pending embedding resolved", logging.String("response_id", string(r.ID)))
	return &Result{Response: r}, nil
}
