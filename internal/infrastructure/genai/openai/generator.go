package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/signalweave/signalweave/internal/application/synthesis"
	"github.com/signalweave/signalweave/internal/application/validation"
	"github.com/signalweave/signalweave/internal/domain/finding"
	"github.com/signalweave/signalweave/internal/infrastructure/monitoring/logging"
	apperrors "github.com/signalweave/signalweave/pkg/errors"
	"github.com/signalweave/signalweave/pkg/types/common"
	"github.com/signalweave/signalweave/pkg/types/insight"
)

const generatorSystemPrompt = `You synthesize competitive-intelligence statements from clustered
findings about B2B vendors.

Rules:
- A THEME summarizes one theme group. It must be %d to %d words and cite only
  finding ids from its own group.
- An ALERT summarizes one alert group for a single company. It must be at most
  %d words, cite only finding ids from its own group, classify the signal as
  REVENUE_THREAT, COMPETITIVE_VULNERABILITY, or MARKET_OPPORTUNITY, and carry a
  one-sentence rationale.
- Emit exactly one candidate per group, in group order.

Respond with JSON only:
{"themes": [{"statement": "...", "finding_ids": ["..."]}],
 "alerts": [{"statement": "...", "classification": "...", "finding_ids": ["..."], "rationale": "..."}]}`

// Generator turns eligible clusters into theme and alert candidates through
// the generation service.
type Generator struct {
	client *Client
	model  string
}

var _ synthesis.CandidateGenerator = (*Generator)(nil)

// NewGenerator returns a Generator using the configured chat model.
func NewGenerator(c *Client) *Generator {
	return &Generator{client: c, model: c.cfg.ChatModel}
}

// Request/response wire contract with the generation service.

type findingPayload struct {
	ID        string  `json:"id"`
	CompanyID string  `json:"company_id"`
	Statement string  `json:"statement"`
	Sentiment float64 `json:"sentiment"`
}

type generationRequest struct {
	ThemeGroups [][]findingPayload `json:"theme_groups"`
	AlertGroups [][]findingPayload `json:"alert_groups"`
}

type themeCandidatePayload struct {
	Statement  string   `json:"statement"`
	FindingIDs []string `json:"finding_ids"`
}

type alertCandidatePayload struct {
	Statement      string   `json:"statement"`
	Classification string   `json:"classification"`
	FindingIDs     []string `json:"finding_ids"`
	Rationale      string   `json:"rationale"`
}

type generationResponse struct {
	Themes []themeCandidatePayload `json:"themes"`
	Alerts []alertCandidatePayload `json:"alerts"`
}

// Generate requests one candidate per eligible group.  The raw reply is
// returned alongside the parsed candidates for the audit archive; a reply
// that does not match the contract fails the batch as malformed.
func (g *Generator) Generate(ctx context.Context, input synthesis.GenerationInput) (*synthesis.GenerationOutput, error) {
	req := generationRequest{
		ThemeGroups: toPayloadGroups(input.ThemeFindings),
		AlertGroups: toPayloadGroups(input.AlertFindings),
	}
	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeSerialization, "encoding generation request")
	}

	system := fmt.Sprintf(generatorSystemPrompt,
		input.Profile.WordCountMin, input.Profile.WordCountMax, input.Profile.AlertWordMax)

	var content string
	err = g.client.withBackoff(ctx, "candidate generation", func() error {
		resp, err := g.client.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       g.model,
			Temperature: 0.4,
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: system},
				{Role: openai.ChatMessageRoleUser, Content: string(reqBody)},
			},
		})
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return apperrors.New(apperrors.ErrCodeGenerationMalformed,
				"generation response carried no choices")
		}
		content = resp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return nil, err
	}

	var payload generationResponse
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &payload); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeGenerationMalformed,
			"decoding generation payload")
	}

	out := &synthesis.GenerationOutput{RawPayload: []byte(content)}
	for _, t := range payload.Themes {
		out.Themes = append(out.Themes, validation.ThemeCandidate{
			Statement:  t.Statement,
			FindingIDs: toFindingIDs(t.FindingIDs),
		})
	}
	for _, a := range payload.Alerts {
		out.Alerts = append(out.Alerts, validation.AlertCandidate{
			Statement:      a.Statement,
			Classification: insight.AlertClassification(a.Classification),
			FindingIDs:     toFindingIDs(a.FindingIDs),
			Rationale:      a.Rationale,
		})
	}

	g.client.logger.Debug("candidates generated",
		logging.Int("themes", len(out.Themes)),
		logging.Int("alerts", len(out.Alerts)))
	return out, nil
}

func toPayloadGroups(groups [][]*finding.Finding) [][]findingPayload {
	if len(groups) == 0 {
		return nil
	}
	out := make([][]findingPayload, 0, len(groups))
	for _, group := range groups {
		members := make([]findingPayload, 0, len(group))
		for _, f := range group {
			members = append(members, findingPayload{
				ID:        string(f.ID),
				CompanyID: string(f.CompanyID),
				Statement: f.Statement,
				Sentiment: f.Sentiment,
			})
		}
		out = append(out, members)
	}
	return out
}

func toFindingIDs(raw []string) []common.ID {
	ids := make([]common.ID, 0, len(raw))
	for _, r := range raw {
		ids = append(ids, common.ID(r))
	}
	return ids
}
