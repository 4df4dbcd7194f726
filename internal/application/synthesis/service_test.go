package synthesis

import (
	"context"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/signalweave/signalweave/internal/application/dedup"
	"github.com/signalweave/signalweave/internal/application/labeling"
	"github.com/signalweave/signalweave/internal/application/validation"
	"github.com/signalweave/signalweave/internal/domain/alert"
	"github.com/signalweave/signalweave/internal/domain/batch"
	"github.com/signalweave/signalweave/internal/domain/finding"
	"github.com/signalweave/signalweave/internal/domain/response"
	"github.com/signalweave/signalweave/internal/domain/theme"
	"github.com/signalweave/signalweave/internal/infrastructure/monitoring/logging"
	"github.com/signalweave/signalweave/pkg/errors"
	"github.com/signalweave/signalweave/pkg/types/common"
	"github.com/signalweave/signalweave/pkg/types/insight"
)

// ── mocks ────────────────────────────────────────────────────────────────────

type mockResponseRepo struct {
	response.Repository
	snapshot []*response.Response
}

func (m *mockResponseRepo) List(_ context.Context, _ response.ListFilter) ([]*response.Response, error) {
	return m.snapshot, nil
}

func (m *mockResponseRepo) Update(context.Context, *response.Response) error { return nil }

type textEmbedder struct {
	angles map[string]float64
}

func (e *textEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	angle, ok := e.angles[text]
	if !ok {
		return nil, errors.Transient("no vector for text")
	}
	v := make([]float32, insight.EmbeddingDim)
	v[0] = float32(math.Cos(angle))
	v[1] = float32(math.Sin(angle))
	return v, nil
}

type textScorer struct {
	scores map[string]float64
}

func (s *textScorer) Score(_ context.Context, text string) (float64, string, error) {
	return s.scores[text], "scored", nil
}

// mockGenerator emits one valid candidate per eligible group: a clean 60-word
// statement for each theme group, a short classified statement for each alert
// group.
type mockGenerator struct {
	fail  bool
	calls int
}

func cleanStatement(n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("signal%d", i)
	}
	return strings.Join(words, " ")
}

func (g *mockGenerator) Generate(_ context.Context, input GenerationInput) (*GenerationOutput, error) {
	g.calls++
	if g.fail {
		return nil, errors.Transient("generation service down")
	}

	out := &GenerationOutput{RawPayload: []byte(`{"themes":[]}`)}
	for _, group := range input.ThemeFindings {
		ids := make([]common.ID, len(group))
		for i, f := range group {
			ids[i] = f.ID
		}
		out.Themes = append(out.Themes, validation.ThemeCandidate{
			Statement:  cleanStatement(60),
			FindingIDs: ids,
		})
	}
	for _, group := range input.AlertFindings {
		ids := make([]common.ID, len(group))
		for i, f := range group {
			ids[i] = f.ID
		}
		out.Alerts = append(out.Alerts, validation.AlertCandidate{
			Statement:      "Renewal at risk after a competitive bake-off kicked off.",
			Classification: insight.ClassRevenueThreat,
			FindingIDs:     ids,
			Rationale:      "renewal window closing",
		})
	}
	return out, nil
}

type mockWriter struct {
	persisted  bool
	failures   int
	rec        *batch.SynthesisBatch
	themes     []*theme.Theme
	alerts     []*alert.StrategicAlert
	links      []*response.DuplicateLink
	findings   []*finding.Finding
	persistErr error
}

func (w *mockWriter) PersistBatch(_ context.Context, rec *batch.SynthesisBatch, _ []*response.Response, fs []*finding.Finding, links []*response.DuplicateLink, ts []*theme.Theme, as []*alert.StrategicAlert) error {
	if w.persistErr != nil {
		return w.persistErr
	}
	w.persisted = true
	w.rec = rec
	w.findings = fs
	w.links = links
	w.themes = ts
	w.alerts = as
	return nil
}

func (w *mockWriter) PersistFailure(_ context.Context, rec *batch.SynthesisBatch) error {
	w.failures++
	w.rec = rec
	return nil
}

type mockPublisher struct {
	pending, themes, alerts, batches int
}

func (p *mockPublisher) PublishResponsePending(context.Context, *response.Response) error {
	p.pending++
	return nil
}
func (p *mockPublisher) PublishThemeCreated(context.Context, *theme.Theme) error {
	p.themes++
	return nil
}
func (p *mockPublisher) PublishAlertRaised(context.Context, *alert.StrategicAlert) error {
	p.alerts++
	return nil
}
func (p *mockPublisher) PublishBatchCompleted(context.Context, *batch.SynthesisBatch) error {
	p.batches++
	return nil
}

// ── fixture ──────────────────────────────────────────────────────────────────

type fixture struct {
	repo      *mockResponseRepo
	generator *mockGenerator
	writer    *mockWriter
	publisher *mockPublisher
	angles    map[string]float64
	scores    map[string]float64
}

func newFixture() *fixture {
	return &fixture{
		repo:      &mockResponseRepo{},
		generator: &mockGenerator{},
		writer:    &mockWriter{},
		publisher: &mockPublisher{},
		angles:    make(map[string]float64),
		scores:    make(map[string]float64),
	}
}

func (fx *fixture) addResponse(t *testing.T, company common.CompanyID, text string, angle, score float64, at time.Time) {
	t.Helper()
	r, err := response.NewResponse(company, text, "q1", at)
	if err != nil {
		t.Fatal(err)
	}
	fx.repo.snapshot = append(fx.repo.snapshot, r)
	fx.angles[text] = angle
	fx.scores[text] = score
}

func (fx *fixture) service(t *testing.T) Service {
	t.Helper()
	logger := logging.NewNopLogger()
	labeler := labeling.NewService(fx.repo, &textEmbedder{angles: fx.angles}, &textScorer{scores: fx.scores}, logger)
	svc, err := NewService(Deps{
		Responses:   fx.repo,
		Labeler:     labeler,
		Index:       dedup.NewFlatIndex(),
		Generator:   fx.generator,
		Writer:      fx.writer,
		Publisher:   fx.publisher,
		Logger:      logger,
		Concurrency: 2,
	})
	if err != nil {
		t.Fatal(err)
	}
	return svc
}

func profile(t *testing.T) insight.SynthesisProfile {
	t.Helper()
	p, err := insight.DefaultProfile(insight.ProfileQualityFirst)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

// ── tests ────────────────────────────────────────────────────────────────────

func TestRun_FullPipeline(t *testing.T) {
	fx := newFixture()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	// Three companies with tightly similar responses: one cross-company theme.
	fx.addResponse(t, "acme", "Support latency doubled since the reorg.", 0.00, -2.0, base)
	fx.addResponse(t, "globex", "Ticket resolution has slowed badly.", 0.10, -2.5, base.Add(time.Minute))
	fx.addResponse(t, "initech", "Escalations linger for weeks now.", -0.10, -2.2, base.Add(2*time.Minute))

	// An intra-company near-duplicate of the first response.
	fx.addResponse(t, "acme", "Support latency has doubled since the reorg happened.", 0.02, -2.1, base.Add(3*time.Minute))

	// A distant single-company response with extreme sentiment: one alert.
	fx.addResponse(t, "hooli", "They have started a competitive bake-off; churn imminent.", 1.4, -4.8, base.Add(4*time.Minute))

	res, err := fx.service(t).Run(context.Background(), "batch-1", profile(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.Batch.Status != batch.StatusCompleted {
		t.Errorf("batch status = %s", res.Batch.Status)
	}
	if len(res.Themes) != 1 {
		t.Fatalf("themes = %d, want 1", len(res.Themes))
	}
	if got := res.Themes[0].CompanyIDs; len(got) != 3 {
		t.Errorf("theme companies = %v, want 3 distinct", got)
	}
	if len(res.Alerts) != 1 {
		t.Fatalf("alerts = %d, want 1", len(res.Alerts))
	}
	if res.Alerts[0].CompanyID != "hooli" {
		t.Errorf("alert company = %s", res.Alerts[0].CompanyID)
	}

	if !fx.writer.persisted {
		t.Fatal("batch output not persisted")
	}
	if len(fx.writer.links) != 1 {
		t.Errorf("duplicate links persisted = %d, want 1", len(fx.writer.links))
	}
	// The duplicate is excluded from findings: 4 canonical responses.
	if len(fx.writer.findings) != 4 {
		t.Errorf("findings persisted = %d, want 4", len(fx.writer.findings))
	}
	if fx.writer.rec.Counts.DuplicatesRecorded != 1 {
		t.Errorf("counts.duplicates = %d", fx.writer.rec.Counts.DuplicatesRecorded)
	}
	if fx.writer.rec.Counts.ThemesEmitted != 1 || fx.writer.rec.Counts.AlertsEmitted != 1 {
		t.Errorf("counts = %+v", fx.writer.rec.Counts)
	}

	if fx.publisher.themes != 1 || fx.publisher.alerts != 1 || fx.publisher.batches != 1 {
		t.Errorf("events: %+v", fx.publisher)
	}
}

func TestRun_GenerationFailureAbortsWithZeroOutput(t *testing.T) {
	fx := newFixture()
	base := time.Now()
	fx.addResponse(t, "acme", "text a", 0.0, -2.0, base)
	fx.addResponse(t, "globex", "text b", 0.1, -2.0, base.Add(time.Minute))
	fx.generator.fail = true

	_, err := fx.service(t).Run(context.Background(), "batch-1", profile(t))
	if !errors.IsCode(err, errors.ErrCodeBatchAborted) {
		t.Fatalf("got %v, want SYN_002", err)
	}
	if fx.writer.persisted {
		t.Error("failed batch persisted output")
	}
	if fx.writer.failures != 1 {
		t.Errorf("failure records = %d, want 1", fx.writer.failures)
	}
	if fx.writer.rec.Status != batch.StatusFailed {
		t.Errorf("batch status = %s", fx.writer.rec.Status)
	}
}

func TestRun_EmptyBatchFails(t *testing.T) {
	fx := newFixture()
	_, err := fx.service(t).Run(context.Background(), "batch-1", profile(t))
	if !errors.IsCode(err, errors.ErrCodeBatchAborted) {
		t.Fatalf("got %v", err)
	}
	if fx.writer.persisted {
		t.Error("empty batch persisted output")
	}
}

func TestRun_InvalidProfileAbortsBeforeAnyWrite(t *testing.T) {
	fx := newFixture()
	fx.addResponse(t, "acme", "text", 0.0, 1.0, time.Now())

	bad := profile(t)
	bad.ClusterThreshold = bad.DedupThreshold // must be strictly below

	_, err := fx.service(t).Run(context.Background(), "batch-1", bad)
	if !errors.IsCode(err, errors.ErrCodeBatchConfigInvalid) {
		t.Fatalf("got %v, want SYN_001", err)
	}
	if fx.writer.persisted || fx.writer.failures != 0 {
		t.Error("fatal config error must abort before any write")
	}
	if fx.generator.calls != 0 {
		t.Error("generator called despite fatal config")
	}
}

func TestRun_PendingEmbeddingExcludedFromClustering(t *testing.T) {
	fx := newFixture()
	base := time.Now()
	fx.addResponse(t, "acme", "text a", 0.0, -2.0, base)
	fx.addResponse(t, "globex", "text b", 0.1, -2.0, base.Add(time.Minute))

	// A response with no vector available: the embedder returns a transient
	// error and the pipeline degrades it to pending.
	r, err := response.NewResponse("initech", "no vector for this one", "q1", base.Add(2*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	fx.repo.snapshot = append(fx.repo.snapshot, r)
	fx.scores[r.Text] = -1.0

	res, runErr := fx.service(t).Run(context.Background(), "batch-1", profile(t))
	if runErr != nil {
		t.Fatalf("Run: %v", runErr)
	}

	if fx.writer.rec.Counts.PendingEmbedding != 1 {
		t.Errorf("pending count = %d, want 1", fx.writer.rec.Counts.PendingEmbedding)
	}
	if fx.publisher.pending != 1 {
		t.Errorf("pending events = %d, want 1", fx.publisher.pending)
	}
	// Only the two vectored responses become findings.
	if len(fx.writer.findings) != 2 {
		t.Errorf("findings = %d, want 2", len(fx.writer.findings))
	}
	// The two-company cluster still becomes a theme.
	if len(res.Themes) != 1 {
		t.Errorf("themes = %d, want 1", len(res.Themes))
	}
}
