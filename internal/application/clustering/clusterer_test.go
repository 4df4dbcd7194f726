package clustering

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/signalweave/signalweave/internal/domain/finding"
	"github.com/signalweave/signalweave/internal/domain/response"
	"github.com/signalweave/signalweave/internal/infrastructure/monitoring/logging"
	"github.com/signalweave/signalweave/pkg/errors"
	"github.com/signalweave/signalweave/pkg/types/common"
	"github.com/signalweave/signalweave/pkg/types/insight"
)

// vecAt returns a unit vector at the given angle (radians) in the plane of
// the first two dimensions, so pairwise cosine similarity is cos(a - b).
func vecAt(angle float64) []float32 {
	v := make([]float32, insight.EmbeddingDim)
	v[0] = float32(math.Cos(angle))
	v[1] = float32(math.Sin(angle))
	return v
}

func mkFinding(t *testing.T, company common.CompanyID, angle float64) *finding.Finding {
	t.Helper()
	r, err := response.NewResponse(company, "evidence text", "q1", time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if err := r.SetSentiment(0.5, ""); err != nil {
		t.Fatal(err)
	}
	if err := r.SetEmbedding(vecAt(angle)); err != nil {
		t.Fatal(err)
	}
	f, err := finding.New(company, "distilled insight", 0.5, []*response.Response{r})
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func mkVectorlessFinding(t *testing.T, company common.CompanyID) *finding.Finding {
	t.Helper()
	r, err := response.NewResponse(company, "evidence text", "q1", time.Now())
	if err != nil {
		t.Fatal(err)
	}
	f, err := finding.New(company, "distilled insight", 0.5, []*response.Response{r})
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func run(t *testing.T, fs []*finding.Finding) []*Cluster {
	t.Helper()
	cl, err := NewClusterer(0.80, logging.NewNopLogger())
	if err != nil {
		t.Fatal(err)
	}
	clusters, err := cl.Run(context.Background(), fs)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return clusters
}

func TestRun_ThreeCompaniesOneCluster(t *testing.T) {
	// Pairwise similarity ~cos(0.2) = 0.98, well above the 0.80 threshold.
	fs := []*finding.Finding{
		mkFinding(t, "acme", 0),
		mkFinding(t, "globex", 0.2),
		mkFinding(t, "initech", -0.2),
	}

	clusters := run(t, fs)
	if len(clusters) != 1 {
		t.Fatalf("clusters = %d, want 1", len(clusters))
	}
	c := clusters[0]
	if c.CompanyCount() != 3 {
		t.Errorf("company count = %d, want 3", c.CompanyCount())
	}
	if !c.ThemeEligible() {
		t.Error("three-company cluster must be theme-eligible")
	}
	if c.AlertEligible() {
		t.Error("multi-company cluster must not be alert-eligible")
	}
	if c.EvidenceCount() != 3 {
		t.Errorf("evidence count = %d", c.EvidenceCount())
	}
}

func TestRun_DistantFindingsSeparate(t *testing.T) {
	// cos(1.0) = 0.54, far below the threshold.
	fs := []*finding.Finding{
		mkFinding(t, "acme", 0),
		mkFinding(t, "globex", 1.0),
	}
	clusters := run(t, fs)
	if len(clusters) != 2 {
		t.Fatalf("clusters = %d, want 2", len(clusters))
	}
}

func TestRun_SingleCompanyHighImpactIsAlertEligible(t *testing.T) {
	f := mkFinding(t, "acme", 0)
	f.MarkHighImpact()

	clusters := run(t, []*finding.Finding{f})
	if len(clusters) != 1 {
		t.Fatal("expected a singleton cluster")
	}
	c := clusters[0]
	if c.ThemeEligible() {
		t.Error("single-company cluster must not be theme-eligible")
	}
	if !c.AlertEligible() {
		t.Error("high-impact singleton must be alert-eligible")
	}
}

func TestRun_SingleCompanyWithoutImpactIsNeither(t *testing.T) {
	clusters := run(t, []*finding.Finding{mkFinding(t, "acme", 0)})
	c := clusters[0]
	if c.ThemeEligible() || c.AlertEligible() {
		t.Error("plain singleton must be neither theme- nor alert-eligible")
	}
}

func TestRun_GreedyAssignsToFirstMatchingCluster(t *testing.T) {
	fs := []*finding.Finding{
		mkFinding(t, "acme", 0),
		mkFinding(t, "globex", 1.2), // cos(1.2) = 0.36 to the first: separate cluster
		mkFinding(t, "initech", 0.1),
	}

	clusters := run(t, fs)
	if len(clusters) != 2 {
		t.Fatalf("clusters = %d, want 2", len(clusters))
	}
	if clusters[0].EvidenceCount() != 2 {
		t.Errorf("third finding not assigned to the first cluster")
	}
}

func TestRun_CentroidIsRunningMean(t *testing.T) {
	// Members at angles 0 and 0.4 pull the centroid to ~0.2.  The finding at
	// 0.75 clears the threshold against the drifted centroid (cos(0.55) =
	// 0.85) even though it misses against the first member alone (cos(0.75)
	// = 0.73).
	fs := []*finding.Finding{
		mkFinding(t, "acme", 0),
		mkFinding(t, "globex", 0.4),
		mkFinding(t, "initech", 0.75),
	}
	clusters := run(t, fs)
	if len(clusters) != 1 {
		t.Fatalf("clusters = %d, want 1: centroid must drift with members", len(clusters))
	}
	if avg := clusters[0].AvgSimilarity(); avg <= 0.8 || avg > 1.0 {
		t.Errorf("avg similarity = %.3f, want in (0.8, 1.0]", avg)
	}
}

func TestRun_VectorlessFindingBecomesSingleton(t *testing.T) {
	withVec := mkFinding(t, "acme", 0)
	bare := mkVectorlessFinding(t, "acme")
	bare.MarkHighImpact()

	clusters := run(t, []*finding.Finding{withVec, bare})
	if len(clusters) != 2 {
		t.Fatalf("clusters = %d, want 2", len(clusters))
	}
	var bareCluster *Cluster
	for _, c := range clusters {
		if c.Members[0].ID == bare.ID {
			bareCluster = c
		}
	}
	if bareCluster == nil {
		t.Fatal("vectorless finding missing from output")
	}
	if !bareCluster.AlertEligible() {
		t.Error("vectorless high-impact singleton must stay alert-eligible")
	}
}

func TestRun_EmptyBatchRejected(t *testing.T) {
	cl, err := NewClusterer(0.80, logging.NewNopLogger())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := cl.Run(context.Background(), nil); !errors.IsCode(err, errors.ErrCodeEmptyBatch) {
		t.Errorf("got %v, want CLU_002", err)
	}
}

func TestNewClusterer_ThresholdGuard(t *testing.T) {
	for _, th := range []float64{0, -0.2, 1, 1.3} {
		if _, err := NewClusterer(th, logging.NewNopLogger()); !errors.IsCode(err, errors.ErrCodeThresholdInvalid) {
			t.Errorf("threshold %.1f accepted", th)
		}
	}
}
