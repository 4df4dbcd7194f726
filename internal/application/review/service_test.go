package review

import (
	"context"
	"testing"

	"github.com/signalweave/signalweave/internal/domain/theme"
	"github.com/signalweave/signalweave/internal/infrastructure/monitoring/logging"
	"github.com/signalweave/signalweave/pkg/errors"
	"github.com/signalweave/signalweave/pkg/types/common"
	"github.com/signalweave/signalweave/pkg/types/insight"
)

// mockThemeRepo keeps themes in memory and mimics the storage-side
// compare-and-set: an update against a stale version fails.
type mockThemeRepo struct {
	theme.Repository
	byID map[common.ID]*theme.Theme

	// storedVersion tracks the version the store believes is current,
	// independent of the aggregate the caller holds.
	storedVersion map[common.ID]int
}

func newMockThemeRepo() *mockThemeRepo {
	return &mockThemeRepo{
		byID:          make(map[common.ID]*theme.Theme),
		storedVersion: make(map[common.ID]int),
	}
}

func (m *mockThemeRepo) GetByID(_ context.Context, id common.ID) (*theme.Theme, error) {
	th, ok := m.byID[id]
	if !ok {
		return nil, errors.New(errors.ErrCodeThemeNotFound, "theme not found")
	}
	return th, nil
}

func (m *mockThemeRepo) UpdateReview(_ context.Context, th *theme.Theme, expectedVersion int) error {
	if m.storedVersion[th.ID] != expectedVersion {
		return errors.ConcurrentModification("version mismatch")
	}
	m.byID[th.ID] = th
	m.storedVersion[th.ID] = th.Version
	return nil
}

func (m *mockThemeRepo) add(t *testing.T) *theme.Theme {
	t.Helper()
	th, err := theme.New("batch-1", "statement", 60,
		[]common.ID{common.NewID()},
		[]common.CompanyID{"acme", "globex"}, 3.4)
	if err != nil {
		t.Fatal(err)
	}
	m.byID[th.ID] = th
	m.storedVersion[th.ID] = th.Version
	return th
}

func TestReviewTheme_Approve(t *testing.T) {
	repo := newMockThemeRepo()
	th := repo.add(t)
	svc := NewService(repo, logging.NewNopLogger())

	got, err := svc.ReviewTheme(context.Background(), Input{
		ThemeID:  th.ID,
		Decision: insight.DecisionApproved,
		Reviewer: "reviewer-1",
	})
	if err != nil {
		t.Fatalf("ReviewTheme: %v", err)
	}
	if got.QualityDecision != insight.DecisionApproved {
		t.Errorf("decision = %s", got.QualityDecision)
	}
	if repo.storedVersion[th.ID] != got.Version {
		t.Error("store version not advanced")
	}
}

func TestReviewTheme_StaleVersionFails(t *testing.T) {
	repo := newMockThemeRepo()
	th := repo.add(t)
	svc := NewService(repo, logging.NewNopLogger())

	// A first reviewer lands a decision.
	if _, err := svc.ReviewTheme(context.Background(), Input{
		ThemeID:  th.ID,
		Decision: insight.DecisionApproved,
		Reviewer: "reviewer-1",
	}); err != nil {
		t.Fatal(err)
	}

	// A second reviewer acts on the version read before the first landed.
	_, err := svc.ReviewTheme(context.Background(), Input{
		ThemeID:         th.ID,
		Decision:        insight.DecisionRejected,
		Reviewer:        "reviewer-2",
		Note:            "duplicate of an approved theme",
		ExpectedVersion: 1,
	})
	if !errors.IsConcurrentModification(err) {
		t.Errorf("got %v, want concurrent modification", err)
	}
	// The first decision stands.
	if repo.byID[th.ID].QualityDecision != insight.DecisionApproved {
		t.Error("stale transition overwrote the earlier decision")
	}
}

func TestReviewTheme_TerminalStateClosed(t *testing.T) {
	repo := newMockThemeRepo()
	th := repo.add(t)
	svc := NewService(repo, logging.NewNopLogger())

	if _, err := svc.ReviewTheme(context.Background(), Input{
		ThemeID:  th.ID,
		Decision: insight.DecisionFeatured,
		Reviewer: "reviewer-1",
	}); err != nil {
		t.Fatal(err)
	}

	// Even with a fresh version, terminal states accept no transitions.
	_, err := svc.ReviewTheme(context.Background(), Input{
		ThemeID:         th.ID,
		Decision:        insight.DecisionApproved,
		Reviewer:        "reviewer-2",
		ExpectedVersion: repo.storedVersion[th.ID],
	})
	if !errors.IsCode(err, errors.ErrCodeIllegalTransition) {
		t.Errorf("got %v, want REV_002", err)
	}
}

func TestReviewTheme_RejectionNeedsNote(t *testing.T) {
	repo := newMockThemeRepo()
	th := repo.add(t)
	svc := NewService(repo, logging.NewNopLogger())

	_, err := svc.ReviewTheme(context.Background(), Input{
		ThemeID:  th.ID,
		Decision: insight.DecisionRejected,
		Reviewer: "reviewer-1",
	})
	if !errors.IsCode(err, errors.ErrCodeRejectionNoteRequired) {
		t.Errorf("got %v, want REV_004", err)
	}
	if repo.byID[th.ID].QualityDecision != insight.DecisionPending {
		t.Error("failed rejection mutated stored state")
	}
}

func TestReviewTheme_NotFound(t *testing.T) {
	svc := NewService(newMockThemeRepo(), logging.NewNopLogger())
	_, err := svc.ReviewTheme(context.Background(), Input{
		ThemeID:  common.NewID(),
		Decision: insight.DecisionApproved,
		Reviewer: "reviewer-1",
	})
	if !errors.IsCode(err, errors.ErrCodeThemeNotFound) {
		t.Errorf("got %v, want REV_001", err)
	}
}
