package response

import (
	"math"
	"testing"
	"time"

	"github.com/signalweave/signalweave/pkg/errors"
	"github.com/signalweave/signalweave/pkg/types/common"
	"github.com/signalweave/signalweave/pkg/types/insight"
)

func newTestResponse(t *testing.T) *Response {
	t.Helper()
	r, err := NewResponse("acme-corp", "Support response times doubled after the acquisition.", "q-renewal-risk", time.Now())
	if err != nil {
		t.Fatalf("NewResponse: %v", err)
	}
	return r
}

func validEmbedding() []float32 {
	vec := make([]float32, insight.EmbeddingDim)
	for i := range vec {
		vec[i] = float32(i%7) * 0.1
	}
	return vec
}

func TestNewResponse_Guards(t *testing.T) {
	now := time.Now()

	if _, err := NewResponse("acme", "", "q1", now); !errors.IsCode(err, errors.ErrCodeEmptyResponseText) {
		t.Errorf("empty text: got %v, want LBL_001", err)
	}
	if _, err := NewResponse("", "some text", "q1", now); err == nil {
		t.Error("empty company id accepted")
	}
	if _, err := NewResponse("acme", "some text", "q1", time.Time{}); err == nil {
		t.Error("zero submission time accepted")
	}

	r := newTestResponse(t)
	if r.Status != StatusUnlabeled {
		t.Errorf("initial status = %s, want UNLABELED", r.Status)
	}
	if r.Sentiment != nil || r.Embedding != nil {
		t.Error("new response must carry no labeling artifacts")
	}
	if r.Version != 1 {
		t.Errorf("initial version = %d, want 1", r.Version)
	}
}

func TestSetSentiment_RangeAndRounding(t *testing.T) {
	tests := []struct {
		name    string
		score   float64
		want    float64
		wantErr bool
	}{
		{"in range", 2.5, 2.5, false},
		{"rounds to one decimal", 2.54, 2.5, false},
		{"rounds up", 2.56, 2.6, false},
		{"boundary max", 5.0, 5.0, false},
		{"boundary min", -5.0, -5.0, false},
		{"rounds into range", 5.04, 5.0, false},
		{"above max", 5.1, 0, true},
		{"below min", -5.2, 0, true},
		{"NaN", math.NaN(), 0, true},
		{"infinity", math.Inf(1), 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestResponse(t)
			err := r.SetSentiment(tt.score, "rationale")
			if tt.wantErr {
				if !errors.IsCode(err, errors.ErrCodeSentimentOutOfRange) {
					t.Errorf("got %v, want LBL_002", err)
				}
				if r.Sentiment != nil {
					t.Error("rejected score must not be stored")
				}
				return
			}
			if err != nil {
				t.Fatalf("SetSentiment: %v", err)
			}
			if *r.Sentiment != tt.want {
				t.Errorf("stored %.2f, want %.1f", *r.Sentiment, tt.want)
			}
		})
	}
}

func TestSetEmbedding_DimensionGuard(t *testing.T) {
	r := newTestResponse(t)

	for _, n := range []int{0, 1, insight.EmbeddingDim - 1, insight.EmbeddingDim + 1} {
		if err := r.SetEmbedding(make([]float32, n)); !errors.IsCode(err, errors.ErrCodeEmbeddingDimension) {
			t.Errorf("dim %d: got %v, want LBL_004", n, err)
		}
	}
	if r.Embedding != nil {
		t.Error("rejected embedding must not be stored")
	}

	if err := r.SetEmbedding(validEmbedding()); err != nil {
		t.Fatalf("valid embedding rejected: %v", err)
	}
	if !r.HasEmbedding() {
		t.Error("HasEmbedding false after valid SetEmbedding")
	}
}

func TestStatusLifecycle(t *testing.T) {
	r := newTestResponse(t)

	if err := r.SetSentiment(1.5, ""); err != nil {
		t.Fatal(err)
	}
	if r.Status != StatusPendingEmbedding {
		t.Errorf("status after sentiment only = %s, want PENDING_EMBEDDING", r.Status)
	}
	if r.IsLabeled() {
		t.Error("IsLabeled true without embedding")
	}

	if err := r.SetEmbedding(validEmbedding()); err != nil {
		t.Fatal(err)
	}
	if r.Status != StatusLabeled {
		t.Errorf("status after both artifacts = %s, want LABELED", r.Status)
	}
}

func TestMarkEmbeddingPending(t *testing.T) {
	r := newTestResponse(t)
	r.MarkEmbeddingPending()
	if r.Status != StatusPendingEmbedding {
		t.Errorf("status = %s, want PENDING_EMBEDDING", r.Status)
	}

	// Once the vector is present the pending mark is a no-op.
	labeled := newTestResponse(t)
	if err := labeled.SetSentiment(1.0, ""); err != nil {
		t.Fatal(err)
	}
	if err := labeled.SetEmbedding(validEmbedding()); err != nil {
		t.Fatal(err)
	}
	labeled.MarkEmbeddingPending()
	if labeled.Status != StatusLabeled {
		t.Errorf("pending mark downgraded a labeled response to %s", labeled.Status)
	}
}

func TestVersionAdvancesOnMutation(t *testing.T) {
	r := newTestResponse(t)
	v := r.Version
	if err := r.SetSentiment(2.0, ""); err != nil {
		t.Fatal(err)
	}
	if r.Version != v+1 {
		t.Errorf("version = %d, want %d", r.Version, v+1)
	}
}

func TestLegacyTranslator_Mapping(t *testing.T) {
	tr, err := NewLegacyTranslator(TranslatorV1)
	if err != nil {
		t.Fatal(err)
	}
	if tr.Version() != TranslatorV1 {
		t.Errorf("version = %s", tr.Version())
	}

	tests := []struct {
		label insight.LegacySentimentLabel
		want  float64
	}{
		{insight.LegacyPositive, 3.0},
		{insight.LegacyNegative, -3.0},
		{insight.LegacyMixed, 0.0},
		{insight.LegacyNeutral, 0.0},
		{insight.LegacyUnset, 0.0},
	}
	for _, tt := range tests {
		got, err := tr.Translate(tt.label)
		if err != nil {
			t.Errorf("Translate(%q): %v", tt.label, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Translate(%q) = %.1f, want %.1f", tt.label, got, tt.want)
		}
	}

	if _, err := tr.Translate("enthusiastic"); !errors.IsCode(err, errors.ErrCodeLegacyLabelUnknown) {
		t.Errorf("unknown label: got %v, want LBL_005", err)
	}

	if _, err := NewLegacyTranslator("legacy-v9"); err == nil {
		t.Error("unknown translator version accepted")
	}
}

func TestApplyLegacyLabel(t *testing.T) {
	tr, err := NewLegacyTranslator(TranslatorV1)
	if err != nil {
		t.Fatal(err)
	}

	r := newTestResponse(t)
	if err := r.ApplyLegacyLabel(tr, insight.LegacyNegative); err != nil {
		t.Fatal(err)
	}
	if r.Sentiment == nil || *r.Sentiment != -3.0 {
		t.Errorf("sentiment = %v, want -3.0", r.Sentiment)
	}
	if r.LegacyLabel != insight.LegacyNegative {
		t.Errorf("legacy label not recorded: %q", r.LegacyLabel)
	}
	// Migration never fabricates a vector.
	if r.Status != StatusPendingEmbedding {
		t.Errorf("status = %s, want PENDING_EMBEDDING", r.Status)
	}
}

func TestNewDuplicateLink_Guards(t *testing.T) {
	a, b := common.NewID(), common.NewID()

	link, err := NewDuplicateLink(b, a, 0.95, "batch-1")
	if err != nil {
		t.Fatalf("NewDuplicateLink: %v", err)
	}
	if link.DuplicateID != b || link.CanonicalID != a {
		t.Error("link endpoints swapped")
	}

	if _, err := NewDuplicateLink(a, a, 0.99, ""); err == nil {
		t.Error("self link accepted")
	}
	if _, err := NewDuplicateLink(b, a, 1.2, ""); err == nil {
		t.Error("similarity above 1 accepted")
	}
	if _, err := NewDuplicateLink(b, a, -0.1, ""); err == nil {
		t.Error("negative similarity accepted")
	}
	if _, err := NewDuplicateLink("not-a-uuid", a, 0.95, ""); err == nil {
		t.Error("malformed duplicate id accepted")
	}
}

func TestEventsAreRecordedAndDrained(t *testing.T) {
	r := newTestResponse(t)
	if err := r.SetSentiment(2.0, ""); err != nil {
		t.Fatal(err)
	}
	if err := r.SetEmbedding(validEmbedding()); err != nil {
		t.Fatal(err)
	}

	evs := r.Events()
	if len(evs) < 2 {
		t.Fatalf("expected creation and labeled events, got %d", len(evs))
	}
	for _, ev := range evs {
		if ev.AggregateID() != string(r.ID) {
			t.Errorf("event aggregate id = %s, want %s", ev.AggregateID(), r.ID)
		}
	}
	if len(r.Events()) != 0 {
		t.Error("Events must drain the buffer")
	}
}
