package openai

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/signalweave/signalweave/internal/application/labeling"
	"github.com/signalweave/signalweave/internal/infrastructure/monitoring/logging"
	apperrors "github.com/signalweave/signalweave/pkg/errors"
	"github.com/signalweave/signalweave/pkg/types/insight"
)

// Embedder produces response embeddings through the generation service.
type Embedder struct {
	client *Client
	model  openai.EmbeddingModel
}

var _ labeling.EmbeddingProvider = (*Embedder)(nil)

// NewEmbedder returns an Embedder using the configured embedding model.
func NewEmbedder(c *Client) *Embedder {
	return &Embedder{
		client: c,
		model:  openai.EmbeddingModel(c.cfg.EmbeddingModel),
	}
}

// Embed returns the vector for one piece of text.  A wrong-width vector is a
// permanent error: storing it would poison the similarity index.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	err := e.client.withBackoff(ctx, "embedding", func() error {
		resp, err := e.client.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: []string{text},
			Model: e.model,
		})
		if err != nil {
			return err
		}
		if len(resp.Data) == 0 {
			return apperrors.New(apperrors.ErrCodeGenerationMalformed,
				"embedding response carried no data")
		}
		vec = resp.Data[0].Embedding
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(vec) != insight.EmbeddingDim {
		return nil, apperrors.New(apperrors.ErrCodeEmbeddingDimension,
			fmt.Sprintf("embedding service returned %d dimensions, expected %d",
				len(vec), insight.EmbeddingDim))
	}

	e.client.logger.Debug("embedding generated", logging.Int("dimensions", len(vec)))
	return vec, nil
}
