package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalweave/signalweave/internal/application/dedup"
	"github.com/signalweave/signalweave/internal/application/labeling"
	"github.com/signalweave/signalweave/internal/application/synthesis"
	"github.com/signalweave/signalweave/internal/domain/alert"
	"github.com/signalweave/signalweave/internal/domain/batch"
	"github.com/signalweave/signalweave/internal/domain/response"
	"github.com/signalweave/signalweave/internal/domain/theme"
	"github.com/signalweave/signalweave/pkg/errors"
	"github.com/signalweave/signalweave/pkg/types/common"
	"github.com/signalweave/signalweave/pkg/types/insight"
)

func (s *stack) synthesisService(t *testing.T, gen synthesis.CandidateGenerator, angles, scores map[string]float64) synthesis.Service {
	t.Helper()
	labeler := labeling.NewService(s.responses, &angleEmbedder{angles: angles}, &fixedScorer{scores: scores}, s.logger)
	svc, err := synthesis.NewService(synthesis.Deps{
		Responses:   s.responses,
		Labeler:     labeler,
		Index:       dedup.NewFlatIndex(),
		Generator:   gen,
		Writer:      s.writer,
		Logger:      s.logger,
		Concurrency: 4,
	})
	require.NoError(t, err)
	return svc
}

func TestSynthesisRun_PersistsFullBatch(t *testing.T) {
	st := newStack(t)
	ctx := context.Background()
	batchID := common.BatchID("2026-08-W1")
	base := time.Date(2026, 8, 3, 9, 0, 0, 0, time.UTC)

	angles := map[string]float64{}
	scores := map[string]float64{}
	seed := func(company common.CompanyID, text string, angle, score float64, at time.Time) *response.Response {
		angles[text] = angle
		scores[text] = score
		return st.seedResponse(t, batchID, company, text, at)
	}

	// Three companies with tightly similar responses: one cross-company theme.
	seed("acme", "Support latency doubled since the reorg.", 0.00, -2.0, base)
	seed("globex", "Ticket resolution has slowed badly.", 0.10, -2.5, base.Add(time.Minute))
	seed("initech", "Escalations linger for weeks now.", -0.10, -2.2, base.Add(2*time.Minute))

	// An intra-company near-duplicate of the first response.
	dup := seed("acme", "Support latency has doubled since the reorg happened.", 0.02, -2.1, base.Add(3*time.Minute))

	// A distant single-company response with extreme sentiment: one alert.
	seed("hooli", "They have started a competitive bake-off; churn imminent.", 1.4, -4.8, base.Add(4*time.Minute))

	res, err := st.synthesisService(t, echoGenerator{}, angles, scores).Run(ctx, batchID, qualityProfile(t))
	require.NoError(t, err)
	require.Len(t, res.Themes, 1)
	require.Len(t, res.Alerts, 1)

	// The batch record is readable with its final status and counts.
	rec, err := st.batches.GetByBatchID(ctx, batchID)
	require.NoError(t, err)
	assert.Equal(t, batch.StatusCompleted, rec.Status)
	assert.Equal(t, 1, rec.Counts.ThemesEmitted)
	assert.Equal(t, 1, rec.Counts.AlertsEmitted)
	assert.Equal(t, 1, rec.Counts.DuplicatesRecorded)

	// The theme round-trips with its review defaults.
	themes, err := st.themes.List(ctx, theme.ListFilter{BatchID: batchID})
	require.NoError(t, err)
	require.Len(t, themes, 1)
	assert.Equal(t, insight.DecisionPending, themes[0].QualityDecision)
	assert.Len(t, themes[0].CompanyIDs, 3)
	assert.Equal(t, 1, themes[0].Version)

	alerts, err := st.alerts.List(ctx, alert.ListFilter{BatchID: batchID})
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, common.CompanyID("hooli"), alerts[0].CompanyID)
	assert.Equal(t, insight.ClassRevenueThreat, alerts[0].Classification)

	// The duplicate link survives with the earlier response as canonical.
	links, err := st.links.ListByBatch(ctx, batchID)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, dup.ID, links[0].DuplicateID)

	canonical, err := st.responses.ListCanonical(ctx, batchID)
	require.NoError(t, err)
	assert.Len(t, canonical, 4)

	// Labeling artifacts round-trip through the responses table.
	stored, err := st.responses.GetByID(ctx, dup.ID)
	require.NoError(t, err)
	assert.Equal(t, response.StatusLabeled, stored.Status)
	require.NotNil(t, stored.Sentiment)
	assert.InDelta(t, -2.1, *stored.Sentiment, 0.001)
	assert.Len(t, stored.Embedding, insight.EmbeddingDim)
}

type failingGenerator struct{}

func (failingGenerator) Generate(context.Context, synthesis.GenerationInput) (*synthesis.GenerationOutput, error) {
	return nil, errors.Transient("generation service down")
}

func TestSynthesisRun_FailedBatchPersistsOnlyFailureRecord(t *testing.T) {
	st := newStack(t)
	ctx := context.Background()
	batchID := common.BatchID("2026-08-W2")
	base := time.Date(2026, 8, 10, 9, 0, 0, 0, time.UTC)

	angles := map[string]float64{"text a": 0.0, "text b": 0.1}
	scores := map[string]float64{"text a": -2.0, "text b": -2.0}
	st.seedResponse(t, batchID, "acme", "text a", base)
	st.seedResponse(t, batchID, "globex", "text b", base.Add(time.Minute))

	_, err := st.synthesisService(t, failingGenerator{}, angles, scores).Run(ctx, batchID, qualityProfile(t))
	require.True(t, errors.IsCode(err, errors.ErrCodeBatchAborted), "got %v", err)

	rec, err := st.batches.GetByBatchID(ctx, batchID)
	require.NoError(t, err)
	assert.Equal(t, batch.StatusFailed, rec.Status)
	assert.NotEmpty(t, rec.FailureNote)

	// Zero output: no findings, themes, or alerts landed.
	var findings int
	require.NoError(t, st.pool.QueryRow(ctx, `SELECT count(*) FROM findings WHERE batch_id = $1`, string(batchID)).Scan(&findings))
	assert.Zero(t, findings)

	themes, err := st.themes.List(ctx, theme.ListFilter{BatchID: batchID})
	require.NoError(t, err)
	assert.Empty(t, themes)
}
