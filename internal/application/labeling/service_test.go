package labeling

import (
	"context"
	"testing"
	"time"

	"github.com/signalweave/signalweave/internal/domain/response"
	"github.com/signalweave/signalweave/internal/infrastructure/monitoring/logging"
	"github.com/signalweave/signalweave/pkg/errors"
	"github.com/signalweave/signalweave/pkg/types/common"
	"github.com/signalweave/signalweave/pkg/types/insight"
)

// ── hand mocks ───────────────────────────────────────────────────────────────

type mockRepo struct {
	response.Repository
	getByID func(ctx context.Context, id common.ID) (*response.Response, error)
	update  func(ctx context.Context, r *response.Response) error
	updated []*response.Response
}

func (m *mockRepo) GetByID(ctx context.Context, id common.ID) (*response.Response, error) {
	return m.getByID(ctx, id)
}

func (m *mockRepo) Update(ctx context.Context, r *response.Response) error {
	m.updated = append(m.updated, r)
	if m.update != nil {
		return m.update(ctx, r)
	}
	return nil
}

type mockEmbedder struct {
	embed func(ctx context.Context, text string) ([]float32, error)
	calls int
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.calls++
	return m.embed(ctx, text)
}

type mockScorer struct {
	score func(ctx context.Context, text string) (float64, string, error)
	calls int
}

func (m *mockScorer) Score(ctx context.Context, text string) (float64, string, error) {
	m.calls++
	return m.score(ctx, text)
}

func goodEmbedder() *mockEmbedder {
	return &mockEmbedder{embed: func(context.Context, string) ([]float32, error) {
		vec := make([]float32, insight.EmbeddingDim)
		vec[0] = 1
		return vec, nil
	}}
}

func goodScorer(score float64) *mockScorer {
	return &mockScorer{score: func(context.Context, string) (float64, string, error) {
		return score, "scored in test", nil
	}}
}

func newRawResponse(t *testing.T, text string) *response.Response {
	t.Helper()
	r, err := response.NewResponse("acme", text, "q1", time.Now())
	if err != nil {
		t.Fatal(err)
	}
	return r
}

// ── tests ────────────────────────────────────────────────────────────────────

func TestLabelResponse_HappyPath(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo, goodEmbedder(), goodScorer(-1.72), logging.NewNopLogger())

	r := newRawResponse(t, "The new pricing tier confused our procurement team.")
	res, err := svc.LabelResponse(context.Background(), r)
	if err != nil {
		t.Fatalf("LabelResponse: %v", err)
	}

	if !res.Response.IsLabeled() {
		t.Errorf("status = %s, want LABELED", res.Response.Status)
	}
	if *res.Response.Sentiment != -1.7 {
		t.Errorf("sentiment = %.2f, want -1.7 (one decimal)", *res.Response.Sentiment)
	}
	if res.PendingEmbedding {
		t.Error("pending flag set on healthy path")
	}
	if len(repo.updated) != 1 {
		t.Errorf("updates persisted = %d, want 1", len(repo.updated))
	}
}

func TestLabelResponse_RejectsWhitespaceText(t *testing.T) {
	// The domain factory blocks empty text, so inject whitespace directly to
	// exercise the service guard.
	r := newRawResponse(t, "placeholder")
	r.Text = "   \t\n "

	svc := NewService(&mockRepo{}, goodEmbedder(), goodScorer(0), logging.NewNopLogger())
	_, err := svc.LabelResponse(context.Background(), r)
	if !errors.IsCode(err, errors.ErrCodeEmptyResponseText) {
		t.Errorf("got %v, want LBL_001", err)
	}
	if !errors.IsValidation(err) {
		t.Error("empty text must classify as a validation error")
	}
}

func TestLabelResponse_EmbeddingOutageDegradesToPending(t *testing.T) {
	repo := &mockRepo{}
	down := &mockEmbedder{embed: func(context.Context, string) ([]float32, error) {
		return nil, errors.Transient("embedding service unreachable")
	}}
	svc := NewService(repo, down, goodScorer(2.0), logging.NewNopLogger())

	r := newRawResponse(t, "Support tickets now take a week to close.")
	res, err := svc.LabelResponse(context.Background(), r)
	if err != nil {
		t.Fatalf("outage must degrade, not fail: %v", err)
	}

	if !res.PendingEmbedding {
		t.Error("pending flag not set")
	}
	if res.Response.Status != response.StatusPendingEmbedding {
		t.Errorf("status = %s, want PENDING_EMBEDDING", res.Response.Status)
	}
	if res.Response.Sentiment == nil {
		t.Error("sentiment lost during degrade")
	}
	if len(repo.updated) != 1 {
		t.Error("degraded response must still be persisted")
	}
}

func TestLabelResponse_SentimentOutageFails(t *testing.T) {
	repo := &mockRepo{}
	down := &mockScorer{score: func(context.Context, string) (float64, string, error) {
		return 0, "", errors.Transient("scoring service unreachable")
	}}
	svc := NewService(repo, goodEmbedder(), down, logging.NewNopLogger())

	r := newRawResponse(t, "some text")
	_, err := svc.LabelResponse(context.Background(), r)
	if !errors.IsTransient(err) {
		t.Errorf("got %v, want transient", err)
	}
	if len(repo.updated) != 0 {
		t.Error("nothing should be persisted when no artifact was produced")
	}
}

func TestLabelResponse_Idempotent(t *testing.T) {
	repo := &mockRepo{}
	embedder := goodEmbedder()
	scorer := goodScorer(1.0)
	svc := NewService(repo, embedder, scorer, logging.NewNopLogger())

	r := newRawResponse(t, "same text")
	if _, err := svc.LabelResponse(context.Background(), r); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.LabelResponse(context.Background(), r); err != nil {
		t.Fatal(err)
	}

	if scorer.calls != 1 || embedder.calls != 1 {
		t.Errorf("relabeling called services again: scorer=%d embedder=%d", scorer.calls, embedder.calls)
	}
	if len(repo.updated) != 1 {
		t.Errorf("relabeling persisted again: %d updates", len(repo.updated))
	}
}

func TestRetryEmbedding_CompletesPendingResponse(t *testing.T) {
	r := newRawResponse(t, "pending text")
	if err := r.SetSentiment(1.5, ""); err != nil {
		t.Fatal(err)
	}
	r.MarkEmbeddingPending()

	repo := &mockRepo{getByID: func(context.Context, common.ID) (*response.Response, error) {
		return r, nil
	}}
	svc := NewService(repo, goodEmbedder(), goodScorer(0), logging.NewNopLogger())

	res, err := svc.RetryEmbedding(context.Background(), r.ID)
	if err != nil {
		t.Fatalf("RetryEmbedding: %v", err)
	}
	if !res.Response.IsLabeled() {
		t.Errorf("status = %s, want LABELED", res.Response.Status)
	}
	if len(repo.updated) != 1 {
		t.Error("retried response not persisted")
	}
}

func TestRetryEmbedding_StillDownStaysPending(t *testing.T) {
	r := newRawResponse(t, "pending text")
	if err := r.SetSentiment(1.5, ""); err != nil {
		t.Fatal(err)
	}
	r.MarkEmbeddingPending()

	repo := &mockRepo{getByID: func(context.Context, common.ID) (*response.Response, error) {
		return r, nil
	}}
	down := &mockEmbedder{embed: func(context.Context, string) ([]float32, error) {
		return nil, errors.Transient("still down")
	}}
	svc := NewService(repo, down, goodScorer(0), logging.NewNopLogger())

	res, err := svc.RetryEmbedding(context.Background(), r.ID)
	if err == nil {
		t.Fatal("expected error while service is down")
	}
	if res == nil || !res.PendingEmbedding {
		t.Error("response must remain pending for the next retry")
	}
	if len(repo.updated) != 0 {
		t.Error("no write should happen on a failed retry")
	}
}
