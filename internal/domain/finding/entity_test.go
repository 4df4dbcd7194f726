package finding

import (
	"testing"
	"time"

	"github.com/signalweave/signalweave/internal/domain/response"
	"github.com/signalweave/signalweave/pkg/errors"
	"github.com/signalweave/signalweave/pkg/types/common"
	"github.com/signalweave/signalweave/pkg/types/insight"
)

func labeledResponse(t *testing.T, companyID common.CompanyID) *response.Response {
	t.Helper()
	r, err := response.NewResponse(companyID, "Churn risk raised during renewal call.", "q1", time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if err := r.SetSentiment(-2.0, ""); err != nil {
		t.Fatal(err)
	}
	vec := make([]float32, insight.EmbeddingDim)
	vec[0] = 1
	if err := r.SetEmbedding(vec); err != nil {
		t.Fatal(err)
	}
	return r
}

func TestNew_Guards(t *testing.T) {
	src := labeledResponse(t, "acme")

	if _, err := New("acme", "", -2.0, []*response.Response{src}); err == nil {
		t.Error("empty statement accepted")
	}
	if _, err := New("", "stmt", -2.0, []*response.Response{src}); err == nil {
		t.Error("empty company accepted")
	}
	if _, err := New("acme", "stmt", -2.0, nil); err == nil {
		t.Error("finding with no sources accepted")
	}
	if _, err := New("acme", "stmt", 7.3, []*response.Response{src}); !errors.IsCode(err, errors.ErrCodeSentimentOutOfRange) {
		t.Error("out-of-range sentiment accepted")
	}
}

func TestNew_CompanyConsistency(t *testing.T) {
	acme := labeledResponse(t, "acme")
	globex := labeledResponse(t, "globex")

	if _, err := New("acme", "stmt", 1.0, []*response.Response{acme, globex}); !errors.IsValidation(err) {
		t.Errorf("cross-company evidence accepted: %v", err)
	}

	f, err := New("acme", "stmt", 1.0, []*response.Response{acme})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if f.CompanyID != "acme" {
		t.Errorf("company = %s", f.CompanyID)
	}
	if len(f.SourceResponseIDs) != 1 || f.SourceResponseIDs[0] != acme.ID {
		t.Error("evidence trail not recorded")
	}
}

func TestNew_EmbeddingInheritance(t *testing.T) {
	withVec := labeledResponse(t, "acme")

	bare, err := response.NewResponse("acme", "No vector yet.", "q1", time.Now())
	if err != nil {
		t.Fatal(err)
	}

	f, err := New("acme", "stmt", 0.5, []*response.Response{bare, withVec})
	if err != nil {
		t.Fatal(err)
	}
	if !f.HasEmbedding() {
		t.Error("embedding not inherited from first vectored source")
	}
	if f.UnverifiedUniqueness {
		t.Error("vectored finding flagged unverified")
	}

	// A finding whose sources all lack vectors passes through flagged.
	f2, err := New("acme", "stmt", 0.5, []*response.Response{bare})
	if err != nil {
		t.Fatal(err)
	}
	if f2.HasEmbedding() {
		t.Error("embedding fabricated from vectorless sources")
	}
	if !f2.UnverifiedUniqueness {
		t.Error("vectorless finding not flagged unverified")
	}
}

func TestNew_SentimentRounded(t *testing.T) {
	src := labeledResponse(t, "acme")
	f, err := New("acme", "stmt", 1.26, []*response.Response{src})
	if err != nil {
		t.Fatal(err)
	}
	if f.Sentiment != 1.3 {
		t.Errorf("sentiment = %.2f, want 1.3", f.Sentiment)
	}
}

func TestMarkHighImpact(t *testing.T) {
	src := labeledResponse(t, "acme")
	f, err := New("acme", "stmt", 1.0, []*response.Response{src})
	if err != nil {
		t.Fatal(err)
	}

	v := f.Version
	f.MarkHighImpact()
	if !f.HighImpact {
		t.Error("flag not set")
	}
	if f.Version != v+1 {
		t.Error("version not advanced")
	}

	// Idempotent: a second mark does not advance the version again.
	f.MarkHighImpact()
	if f.Version != v+1 {
		t.Error("repeated mark advanced version")
	}
}

func TestValidate_Rehydrated(t *testing.T) {
	src := labeledResponse(t, "acme")
	f, err := New("acme", "stmt", 1.0, []*response.Response{src})
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Validate(); err != nil {
		t.Errorf("valid finding rejected: %v", err)
	}

	f.Embedding = make([]float32, 12)
	if err := f.Validate(); !errors.IsCode(err, errors.ErrCodeEmbeddingDimension) {
		t.Errorf("bad rehydrated embedding accepted: %v", err)
	}
}
