package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/signalweave/signalweave/internal/application/labeling"
	apperrors "github.com/signalweave/signalweave/pkg/errors"
	"github.com/signalweave/signalweave/pkg/types/insight"
)

const scorerSystemPrompt = `You score B2B survey responses about a vendor on a sentiment scale
from -5.0 (strongly negative, churn risk) to +5.0 (strongly positive, advocate).
Use one decimal of precision. Respond with JSON only:
{"score": <number>, "rationale": "<one sentence>"}`

// Scorer produces sentiment scores through the generation service.
type Scorer struct {
	client *Client
	model  string
}

var _ labeling.SentimentScorer = (*Scorer)(nil)

// NewScorer returns a Scorer using the configured chat model.
func NewScorer(c *Client) *Scorer {
	return &Scorer{client: c, model: c.cfg.ChatModel}
}

type sentimentPayload struct {
	Score     float64 `json:"score"`
	Rationale string  `json:"rationale"`
}

// Score returns the sentiment and a short rationale for one response text.
// An unparsable or out-of-scale reply is a permanent malformed-payload error;
// the caller must not retry it.
func (s *Scorer) Score(ctx context.Context, text string) (float64, string, error) {
	var content string
	err := s.client.withBackoff(ctx, "sentiment scoring", func() error {
		resp, err := s.client.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       s.model,
			Temperature: 0.1,
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: scorerSystemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: text},
			},
		})
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return apperrors.New(apperrors.ErrCodeGenerationMalformed,
				"scoring response carried no choices")
		}
		content = resp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return 0, "", err
	}

	var payload sentimentPayload
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &payload); err != nil {
		return 0, "", apperrors.Wrap(err, apperrors.ErrCodeGenerationMalformed,
			"decoding sentiment payload")
	}
	if payload.Score < insight.SentimentMin || payload.Score > insight.SentimentMax {
		return 0, "", apperrors.New(apperrors.ErrCodeGenerationMalformed,
			fmt.Sprintf("sentiment %.2f is outside the scale", payload.Score))
	}
	return payload.Score, payload.Rationale, nil
}
