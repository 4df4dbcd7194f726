package alert

import (
	"testing"
	"time"

	"github.com/signalweave/signalweave/internal/domain/finding"
	"github.com/signalweave/signalweave/internal/domain/response"
	"github.com/signalweave/signalweave/pkg/errors"
	"github.com/signalweave/signalweave/pkg/types/common"
	"github.com/signalweave/signalweave/pkg/types/insight"
)

func testFinding(t *testing.T, companyID common.CompanyID) *finding.Finding {
	t.Helper()
	r, err := response.NewResponse(companyID, "They are actively evaluating a competitor.", "q1", time.Now())
	if err != nil {
		t.Fatal(err)
	}
	f, err := finding.New(companyID, "Active competitive evaluation underway.", -3.5, []*response.Response{r})
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func TestNew_Guards(t *testing.T) {
	ev := []*finding.Finding{testFinding(t, "acme")}

	if _, err := New("b", "", 30, insight.ClassRevenueThreat, "", ev); err == nil {
		t.Error("empty statement accepted")
	}
	if _, err := New("b", "stmt", 30, "SEVERE", "", ev); !errors.IsCode(err, errors.ErrCodeClassificationInvalid) {
		t.Errorf("unknown classification accepted")
	}
	if _, err := New("b", "stmt", 30, insight.ClassRevenueThreat, "", nil); !errors.IsCode(err, errors.ErrCodeDanglingFinding) {
		t.Error("alert without evidence accepted")
	}
}

func TestNew_SingleCompanyInvariant(t *testing.T) {
	mixed := []*finding.Finding{testFinding(t, "acme"), testFinding(t, "globex")}
	if _, err := New("b", "stmt", 30, insight.ClassCompetitiveVulnerability, "", mixed); !errors.IsValidation(err) {
		t.Errorf("cross-company evidence accepted: %v", err)
	}

	same := []*finding.Finding{testFinding(t, "acme"), testFinding(t, "acme")}
	a, err := New("b", "Acme is running a competitive bake-off ahead of renewal.", 9,
		insight.ClassRevenueThreat, "renewal is in 60 days", same)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a.CompanyID != "acme" {
		t.Errorf("company = %s", a.CompanyID)
	}
	if len(a.FindingIDs) != 2 {
		t.Errorf("evidence trail length = %d", len(a.FindingIDs))
	}
	if a.Classification != insight.ClassRevenueThreat {
		t.Errorf("classification = %s", a.Classification)
	}
}
