// Package alert implements the StrategicAlert bounded context: the
// single-company, high-impact statement emitted when a pattern is too
// concentrated in one account to qualify as a cross-company theme but too
// urgent to drop.
package alert

import (
	"fmt"
	"time"

	"github.com/signalweave/signalweave/internal/domain/finding"
	"github.com/signalweave/signalweave/pkg/errors"
	"github.com/signalweave/signalweave/pkg/types/common"
	"github.com/signalweave/signalweave/pkg/types/insight"
)

// StrategicAlert is an immutable, single-company alert.  Every supporting
// finding shares exactly the alert's company identifier; the classification
// comes from the fixed three-value enumeration.
type StrategicAlert struct {
	common.BaseEntity

	BatchID   common.BatchID   `json:"batch_id"`
	CompanyID common.CompanyID `json:"company_id"`

	Statement string `json:"statement"`
	WordCount int    `json:"word_count"`

	Classification insight.AlertClassification `json:"classification"`

	// FindingIDs is the evidentiary trail; at least one entry, all from
	// CompanyID.
	FindingIDs []common.ID `json:"finding_ids"`

	// Rationale explains the urgency for the reader.
	Rationale string `json:"rationale,omitempty"`
}

// New creates a StrategicAlert, enforcing:
//   - non-empty statement,
//   - a valid classification,
//   - at least one supporting finding,
//   - every supporting finding belongs to the same single company.
//
// Word-count bounds are the contract validator's responsibility; the count
// stored here is whatever it measured.
func New(batchID common.BatchID, statement string, wordCount int, classification insight.AlertClassification, rationale string, evidence []*finding.Finding) (*StrategicAlert, error) {
	if statement == "" {
		return nil, errors.Validation("alert statement must not be empty")
	}
	if !classification.Valid() {
		return nil, errors.New(errors.ErrCodeClassificationInvalid,
			fmt.Sprintf("unknown alert classification %q", classification))
	}
	if len(evidence) == 0 {
		return nil, errors.New(errors.ErrCodeDanglingFinding,
			"an alert requires at least one evidentiary finding")
	}

	companyID := evidence[0].CompanyID
	ids := make([]common.ID, 0, len(evidence))
	for _, f := range evidence {
		if f.CompanyID != companyID {
			return nil, errors.Validation(fmt.Sprintf(
				"alert evidence spans companies %q and %q, alerts are single-company",
				companyID, f.CompanyID))
		}
		ids = append(ids, f.ID)
	}

	now := time.Now().UTC()
	return &StrategicAlert{
		BaseEntity: common.BaseEntity{
			ID:        common.NewID(),
			CreatedAt: now,
			UpdatedAt: now,
			Version:   1,
		},
		BatchID:        batchID,
		CompanyID:      companyID,
		Statement:      statement,
		WordCount:      wordCount,
		Classification: classification,
		FindingIDs:     ids,
		Rationale:      rationale,
	}, nil
}
