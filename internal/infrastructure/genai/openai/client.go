// Package openai adapts the external generation service to the labeling and
// synthesis ports: embeddings, sentiment scoring, and candidate generation.
// Every call runs bounded exponential backoff; retries-exhausted failures
// surface as transient errors so callers can degrade instead of aborting.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/signalweave/signalweave/internal/config"
	"github.com/signalweave/signalweave/internal/infrastructure/monitoring/logging"
	"github.com/signalweave/signalweave/internal/infrastructure/monitoring/prometheus"
	apperrors "github.com/signalweave/signalweave/pkg/errors"
)

const (
	defaultTimeout = 30 * time.Second
	defaultRetries = 3
	defaultBackoff = 500 * time.Millisecond
	defaultMaxWait = 10 * time.Second
)

// Client wraps the generation-service SDK with the platform retry policy.
type Client struct {
	api     *openai.Client
	cfg     config.GenAIConfig
	logger  logging.Logger
	metrics *prometheus.SynthesisMetrics
}

// WithMetrics attaches latency instrumentation and returns the client.
func (c *Client) WithMetrics(m *prometheus.SynthesisMetrics) *Client {
	c.metrics = m
	return c
}

// NewClient builds the shared client.  A custom BaseURL points the SDK at a
// gateway or self-hosted endpoint.
func NewClient(cfg config.GenAIConfig, log logging.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, apperrors.Validation("genai api key is required")
	}

	sdkCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		sdkCfg.BaseURL = cfg.BaseURL
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	sdkCfg.HTTPClient = &http.Client{Timeout: timeout}

	log.Info("generation service client configured",
		logging.String("embedding_model", cfg.EmbeddingModel),
		logging.String("chat_model", cfg.ChatModel))

	return &Client{api: openai.NewClientWithConfig(sdkCfg), cfg: cfg, logger: log}, nil
}

// withBackoff runs fn up to MaxRetries+1 times, doubling the wait between
// attempts up to MaxBackoff.  Permanent errors abort immediately; exhausting
// the budget on retryable errors yields a transient error.
func (c *Client) withBackoff(ctx context.Context, op string, fn func() error) error {
	retries := c.cfg.MaxRetries
	if retries <= 0 {
		retries = defaultRetries
	}
	wait := c.cfg.RetryBackoff
	if wait <= 0 {
		wait = defaultBackoff
	}
	maxWait := c.cfg.MaxBackoff
	if maxWait <= 0 {
		maxWait = defaultMaxWait
	}

	var err error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("retrying generation service call",
				logging.String("op", op),
				logging.Int("attempt", attempt),
				logging.Duration("wait", wait),
				logging.Err(err))
			select {
			case <-ctx.Done():
				return apperrors.Wrap(ctx.Err(), apperrors.ErrCodeTimeout, op+" canceled during backoff")
			case <-time.After(wait):
			}
			wait *= 2
			if wait > maxWait {
				wait = maxWait
			}
		}

		start := time.Now()
		err = fn()
		c.metrics.ObserveServiceLatency("genai", op, time.Since(start))
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return apperrors.Wrap(err, apperrors.ErrCodeGenerationFailed, op+" failed")
		}
	}
	return apperrors.Wrap(err, apperrors.ErrCodeTransientService,
		fmt.Sprintf("%s failed after %d attempts", op, retries+1))
}

// retryable classifies SDK errors.  Rate limits, server errors, and network
// failures are worth another attempt; everything else is permanent.
func retryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests ||
			apiErr.HTTPStatusCode >= http.StatusInternalServerError
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests ||
			reqErr.HTTPStatusCode >= http.StatusInternalServerError
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
