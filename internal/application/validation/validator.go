// Package validation implements the theme/alert contract validator: the gate
// that turns eligible clusters plus generated statements into persisted-ready
// themes and strategic alerts, rejecting anything that breaks a structural or
// content rule.  Rejection is terminal for a candidate; nothing is auto-edited
// and a rejected candidate never reaches the Pending review state.
package validation

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/signalweave/signalweave/internal/domain/alert"
	"github.com/signalweave/signalweave/internal/domain/finding"
	"github.com/signalweave/signalweave/internal/domain/theme"
	"github.com/signalweave/signalweave/internal/infrastructure/monitoring/logging"
	"github.com/signalweave/signalweave/pkg/errors"
	"github.com/signalweave/signalweave/pkg/types/common"
	"github.com/signalweave/signalweave/pkg/types/insight"
)

// solutioningBlocklist holds the phrases that mark a statement as prescribing
// a solution instead of describing a pattern.  Matching is case-insensitive
// substring; a hit rejects the candidate outright.
var solutioningBlocklist = []string{
	"indicating a need for",
	"suggesting",
	"recommending",
	"should consider",
	"we recommend",
	"needs to invest in",
}

// ThemeCandidate is a generated cross-company statement awaiting validation.
// AvgSimilarity comes from the source cluster and feeds the composite ranking
// score.
type ThemeCandidate struct {
	Statement     string
	FindingIDs    []common.ID
	AvgSimilarity float64
}

// AlertCandidate is a generated single-company statement awaiting validation.
type AlertCandidate struct {
	Statement      string
	Classification insight.AlertClassification
	FindingIDs     []common.ID
	Rationale      string
}

// Rejection records why a candidate was discarded.
type Rejection struct {
	Statement string
	Code      errors.ErrorCode
	Reason    string
}

// ThemeResult is the validated, ranked, capped theme output of one batch.
type ThemeResult struct {
	Themes   []*theme.Theme
	Rejected []Rejection
}

// AlertResult is the validated alert output of one batch.
type AlertResult struct {
	Alerts   []*alert.StrategicAlert
	Rejected []Rejection
}

// FindingResolver resolves finding references at validation time.  The
// synthesis orchestrator satisfies it with the current batch's in-memory
// findings; the persisted repository satisfies it for standalone validation.
type FindingResolver interface {
	GetByIDs(ctx context.Context, ids []common.ID) ([]*finding.Finding, error)
}

// Validator enforces the theme/alert contracts for one batch under one
// profile.  It is stateless per candidate; callers may shard candidate sets
// across goroutines as long as they merge results before ranking.
type Validator struct {
	findings FindingResolver
	profile  insight.SynthesisProfile
	logger   logging.Logger
}

// NewValidator wires a validator for a batch run.
func NewValidator(findings FindingResolver, profile insight.SynthesisProfile, logger logging.Logger) (*Validator, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	return &Validator{findings: findings, profile: profile, logger: logger}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Themes
// ─────────────────────────────────────────────────────────────────────────────

// ValidateThemes checks every candidate against the full rule set, then ranks
// survivors by composite score (company count × average cluster similarity ×
// evidence count) and keeps at most the profile's theme ceiling.  A batch
// below the floor emits fewer themes; weak candidates are never promoted to
// pad the count.
func (v *Validator) ValidateThemes(ctx context.Context, batchID common.BatchID, candidates []ThemeCandidate) (*ThemeResult, error) {
	res := &ThemeResult{}

	type scored struct {
		th    *theme.Theme
		score float64
	}
	var survivors []scored

	for _, cand := range candidates {
		th, score, rej, err := v.validateTheme(ctx, batchID, cand)
		if err != nil {
			return nil, err
		}
		if rej != nil {
			res.Rejected = append(res.Rejected, *rej)
			v.logger.Info("theme candidate rejected",
				logging.String("code", string(rej.Code)),
				logging.String("reason", rej.Reason))
			continue
		}
		survivors = append(survivors, scored{th: th, score: score})
	}

	sort.SliceStable(survivors, func(i, j int) bool {
		return survivors[i].score > survivors[j].score
	})
	if len(survivors) > v.profile.ThemeCountMax {
		for _, s := range survivors[v.profile.ThemeCountMax:] {
			res.Rejected = append(res.Rejected, Rejection{
				Statement: s.th.Statement,
				Code:      errors.ErrCodeContractViolation,
				Reason:    fmt.Sprintf("ranked below the top %d by composite score", v.profile.ThemeCountMax),
			})
		}
		survivors = survivors[:v.profile.ThemeCountMax]
	}

	for _, s := range survivors {
		res.Themes = append(res.Themes, s.th)
	}
	return res, nil
}

// validateTheme applies the rule set to one candidate.  A nil rejection and a
// non-nil theme means the candidate survived.
func (v *Validator) validateTheme(ctx context.Context, batchID common.BatchID, cand ThemeCandidate) (*theme.Theme, float64, *Rejection, error) {
	wc := WordCount(cand.Statement)
	if wc < v.profile.WordCountMin || wc > v.profile.WordCountMax {
		return nil, 0, &Rejection{
			Statement: cand.Statement,
			Code:      errors.ErrCodeWordCountOutOfRange,
			Reason: fmt.Sprintf("word count %d outside [%d, %d]",
				wc, v.profile.WordCountMin, v.profile.WordCountMax),
		}, nil
	}

	if phrase := blocklistHit(cand.Statement); phrase != "" {
		return nil, 0, &Rejection{
			Statement: cand.Statement,
			Code:      errors.ErrCodeBlocklistedPhrase,
			Reason:    fmt.Sprintf("statement contains solutioning phrase %q", phrase),
		}, nil
	}

	evidence, rej, err := v.resolveFindings(ctx, cand.Statement, cand.FindingIDs)
	if err != nil || rej != nil {
		return nil, 0, rej, err
	}

	companies := distinctCompanies(evidence)
	if len(companies) < v.profile.MinCompanyCount {
		return nil, 0, &Rejection{
			Statement: cand.Statement,
			Code:      errors.ErrCodeCompanyFloor,
			Reason: fmt.Sprintf("evidence spans %d companies, floor is %d",
				len(companies), v.profile.MinCompanyCount),
		}, nil
	}

	score := compositeScore(len(companies), cand.AvgSimilarity, len(evidence))
	th, err := theme.New(batchID, cand.Statement, wc, cand.FindingIDs, companies, score)
	if err != nil {
		return nil, 0, nil, err
	}
	return th, score, nil, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Alerts
// ─────────────────────────────────────────────────────────────────────────────

// ValidateAlerts checks alert candidates: a classification from the fixed
// enumeration, at least one resolvable evidentiary finding, all evidence from
// exactly one company, no blocklisted phrasing, and a word ceiling with no
// minimum.
func (v *Validator) ValidateAlerts(ctx context.Context, batchID common.BatchID, candidates []AlertCandidate) (*AlertResult, error) {
	res := &AlertResult{}

	for _, cand := range candidates {
		a, rej, err := v.validateAlert(ctx, batchID, cand)
		if err != nil {
			return nil, err
		}
		if rej != nil {
			res.Rejected = append(res.Rejected, *rej)
			v.logger.Info("alert candidate rejected",
				logging.String("code", string(rej.Code)),
				logging.String("reason", rej.Reason))
			continue
		}
		res.Alerts = append(res.Alerts, a)
	}
	return res, nil
}

func (v *Validator) validateAlert(ctx context.Context, batchID common.BatchID, cand AlertCandidate) (*alert.StrategicAlert, *Rejection, error) {
	if !cand.Classification.Valid() {
		return nil, &Rejection{
			Statement: cand.Statement,
			Code:      errors.ErrCodeClassificationInvalid,
			Reason:    fmt.Sprintf("classification %q is not in the fixed enumeration", cand.Classification),
		}, nil
	}

	wc := WordCount(cand.Statement)
	if wc > v.profile.AlertWordMax {
		return nil, &Rejection{
			Statement: cand.Statement,
			Code:      errors.ErrCodeWordCountOutOfRange,
			Reason:    fmt.Sprintf("word count %d exceeds the %d-word alert ceiling", wc, v.profile.AlertWordMax),
		}, nil
	}

	if phrase := blocklistHit(cand.Statement); phrase != "" {
		return nil, &Rejection{
			Statement: cand.Statement,
			Code:      errors.ErrCodeBlocklistedPhrase,
			Reason:    fmt.Sprintf("statement contains solutioning phrase %q", phrase),
		}, nil
	}

	evidence, rej, err := v.resolveFindings(ctx, cand.Statement, cand.FindingIDs)
	if err != nil || rej != nil {
		return nil, rej, err
	}

	if companies := distinctCompanies(evidence); len(companies) != 1 {
		return nil, &Rejection{
			Statement: cand.Statement,
			Code:      errors.ErrCodeContractViolation,
			Reason:    fmt.Sprintf("alert evidence spans %d companies, alerts are single-company", len(companies)),
		}, nil
	}

	a, err := alert.New(batchID, cand.Statement, wc, cand.Classification, cand.Rationale, evidence)
	if err != nil {
		return nil, nil, err
	}
	return a, nil, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Shared rules
// ─────────────────────────────────────────────────────────────────────────────

// resolveFindings loads every referenced finding and reports a dangling
// reference as a rejection, never a silent drop.
func (v *Validator) resolveFindings(ctx context.Context, statement string, ids []common.ID) ([]*finding.Finding, *Rejection, error) {
	if len(ids) == 0 {
		return nil, &Rejection{
			Statement: statement,
			Code:      errors.ErrCodeDanglingFinding,
			Reason:    "candidate references no findings",
		}, nil
	}

	found, err := v.findings.GetByIDs(ctx, ids)
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "resolving finding references")
	}
	if len(found) != len(ids) {
		byID := make(map[common.ID]struct{}, len(found))
		for _, f := range found {
			byID[f.ID] = struct{}{}
		}
		var missing []string
		for _, id := range ids {
			if _, ok := byID[id]; !ok {
				missing = append(missing, string(id))
			}
		}
		return nil, &Rejection{
			Statement: statement,
			Code:      errors.ErrCodeDanglingFinding,
			Reason:    fmt.Sprintf("dangling finding references: %s", strings.Join(missing, ", ")),
		}, nil
	}
	return found, nil, nil
}

func distinctCompanies(fs []*finding.Finding) []common.CompanyID {
	seen := make(map[common.CompanyID]struct{}, len(fs))
	out := make([]common.CompanyID, 0, len(fs))
	for _, f := range fs {
		if _, ok := seen[f.CompanyID]; ok {
			continue
		}
		seen[f.CompanyID] = struct{}{}
		out = append(out, f.CompanyID)
	}
	return out
}

// compositeScore ranks surviving theme candidates: breadth of corroboration
// times cluster tightness times evidence volume.
func compositeScore(companyCount int, avgSimilarity float64, evidenceCount int) float64 {
	return float64(companyCount) * avgSimilarity * float64(evidenceCount)
}

// WordCount counts whitespace-separated words.
func WordCount(s string) int {
	return len(strings.Fields(s))
}

// blocklistHit returns the first blocklisted phrase found in the statement,
// or "" when clean.
func blocklistHit(statement string) string {
	lower := strings.ToLower(statement)
	for _, phrase := range solutioningBlocklist {
		if strings.Contains(lower, phrase) {
			return phrase
		}
	}
	return ""
}
