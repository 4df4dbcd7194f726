package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalweave/signalweave/internal/application/review"
	"github.com/signalweave/signalweave/internal/domain/theme"
	"github.com/signalweave/signalweave/pkg/errors"
	"github.com/signalweave/signalweave/pkg/types/common"
	"github.com/signalweave/signalweave/pkg/types/insight"
)

func (s *stack) pendingTheme(t *testing.T, batchID common.BatchID) *theme.Theme {
	t.Helper()
	th, err := theme.New(batchID, statementOfWords(60), 60,
		[]common.ID{common.NewID(), common.NewID()},
		[]common.CompanyID{"acme", "globex"}, 3.4)
	require.NoError(t, err)
	require.NoError(t, s.themes.Create(context.Background(), th))
	return th
}

func TestThemeReview_PersistsDecision(t *testing.T) {
	st := newStack(t)
	ctx := context.Background()
	svc := review.NewService(st.themes, st.logger)
	th := st.pendingTheme(t, "2026-08-W3")

	reviewed, err := svc.ReviewTheme(ctx, review.Input{
		ThemeID:         th.ID,
		Decision:        insight.DecisionApproved,
		Reviewer:        "analyst-7",
		ExpectedVersion: th.Version,
	})
	require.NoError(t, err)
	assert.Equal(t, insight.DecisionApproved, reviewed.QualityDecision)

	stored, err := st.themes.GetByID(ctx, th.ID)
	require.NoError(t, err)
	assert.Equal(t, insight.DecisionApproved, stored.QualityDecision)
	assert.Equal(t, common.ReviewerID("analyst-7"), stored.ReviewedBy)
	assert.NotNil(t, stored.ReviewedAt)
	assert.Equal(t, th.Version+1, stored.Version)

	// The decision is terminal: a second transition fails and changes nothing.
	_, err = svc.ReviewTheme(ctx, review.Input{
		ThemeID:  th.ID,
		Decision: insight.DecisionRejected,
		Reviewer: "analyst-8",
		Note:     "changed my mind",
	})
	require.Error(t, err)
	unchanged, err := st.themes.GetByID(ctx, th.ID)
	require.NoError(t, err)
	assert.Equal(t, insight.DecisionApproved, unchanged.QualityDecision)
}

func TestThemeReview_StaleVersionLosesTheRace(t *testing.T) {
	st := newStack(t)
	ctx := context.Background()
	svc := review.NewService(st.themes, st.logger)
	th := st.pendingTheme(t, "2026-08-W3")

	// First reviewer wins.
	_, err := svc.ReviewTheme(ctx, review.Input{
		ThemeID:         th.ID,
		Decision:        insight.DecisionFeatured,
		Reviewer:        "analyst-1",
		ExpectedVersion: th.Version,
	})
	require.NoError(t, err)

	// Second reviewer read the same version; the compare-and-set refuses.
	_, err = svc.ReviewTheme(ctx, review.Input{
		ThemeID:         th.ID,
		Decision:        insight.DecisionRejected,
		Reviewer:        "analyst-2",
		Note:            "too vague",
		ExpectedVersion: th.Version,
	})
	require.True(t, errors.IsConcurrentModification(err), "got %v", err)

	stored, err := st.themes.GetByID(ctx, th.ID)
	require.NoError(t, err)
	assert.Equal(t, insight.DecisionFeatured, stored.QualityDecision)
	assert.Equal(t, common.ReviewerID("analyst-1"), stored.ReviewedBy)
}

func TestThemeList_FiltersByDecision(t *testing.T) {
	st := newStack(t)
	ctx := context.Background()
	svc := review.NewService(st.themes, st.logger)

	batchID := common.BatchID("2026-08-W4")
	approved := st.pendingTheme(t, batchID)
	st.pendingTheme(t, batchID)

	_, err := svc.ReviewTheme(ctx, review.Input{
		ThemeID:  approved.ID,
		Decision: insight.DecisionApproved,
		Reviewer: "analyst-1",
	})
	require.NoError(t, err)

	pending, err := st.themes.List(ctx, theme.ListFilter{BatchID: batchID, Decision: insight.DecisionPending})
	require.NoError(t, err)
	require.Len(t, pending, 1)

	got, err := st.themes.List(ctx, theme.ListFilter{BatchID: batchID, Decision: insight.DecisionApproved})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, approved.ID, got[0].ID)
}
