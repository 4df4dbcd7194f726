package neo4j

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/signalweave/signalweave/internal/application/synthesis"
	"github.com/signalweave/signalweave/internal/domain/alert"
	"github.com/signalweave/signalweave/internal/domain/finding"
	"github.com/signalweave/signalweave/internal/domain/theme"
	"github.com/signalweave/signalweave/internal/infrastructure/monitoring/logging"
	"github.com/signalweave/signalweave/pkg/errors"
	"github.com/signalweave/signalweave/pkg/types/common"
)

// Graph shape:
//
//	(:Theme)-[:SUPPORTED_BY]->(:Finding)-[:DERIVED_FROM]->(:Response)
//	(:Alert)-[:SUPPORTED_BY]->(:Finding)-[:BELONGS_TO]->(:Company)
//
// Every statement MERGEs on id, so re-running a batch is idempotent.
const (
	findingQuery = `
		UNWIND $batch AS row
		MERGE (f:Finding {id: row.id})
		ON CREATE SET f.statement = row.statement, f.sentiment = row.sentiment,
			f.batch_id = row.batch_id, f.created_at = datetime()
		MERGE (c:Company {id: row.company_id})
		MERGE (f)-[:BELONGS_TO]->(c)
		WITH f, row
		UNWIND row.response_ids AS responseID
		MERGE (r:Response {id: responseID})
		MERGE (f)-[:DERIVED_FROM]->(r)
	`

	themeQuery = `
		UNWIND $batch AS row
		MERGE (t:Theme {id: row.id})
		ON CREATE SET t.statement = row.statement, t.batch_id = row.batch_id,
			t.composite_score = row.composite_score, t.created_at = datetime()
		WITH t, row
		UNWIND row.finding_ids AS findingID
		MATCH (f:Finding {id: findingID})
		MERGE (t)-[:SUPPORTED_BY]->(f)
	`

	alertQuery = `
		UNWIND $batch AS row
		MERGE (a:Alert {id: row.id})
		ON CREATE SET a.statement = row.statement, a.batch_id = row.batch_id,
			a.classification = row.classification, a.created_at = datetime()
		MERGE (c:Company {id: row.company_id})
		MERGE (a)-[:CONCERNS]->(c)
		WITH a, row
		UNWIND row.finding_ids AS findingID
		MATCH (f:Finding {id: findingID})
		MERGE (a)-[:SUPPORTED_BY]->(f)
	`
)

// ProvenanceWriter persists the evidence graph after a batch commits.
type ProvenanceWriter struct {
	driver *Driver
	logger logging.Logger
}

var _ synthesis.ProvenanceWriter = (*ProvenanceWriter)(nil)

// NewProvenanceWriter wires the writer.
func NewProvenanceWriter(d *Driver, log logging.Logger) *ProvenanceWriter {
	return &ProvenanceWriter{driver: d, logger: log}
}

// WriteProvenance records findings first so the theme and alert edges always
// find their targets, all inside one write transaction.
func (w *ProvenanceWriter) WriteProvenance(ctx context.Context, themes []*theme.Theme, alerts []*alert.StrategicAlert, findings []*finding.Finding) error {
	if len(findings) == 0 {
		return nil
	}

	findingRows := make([]map[string]any, 0, len(findings))
	for _, f := range findings {
		findingRows = append(findingRows, map[string]any{
			"id":           string(f.ID),
			"statement":    f.Statement,
			"sentiment":    f.Sentiment,
			"batch_id":     string(f.BatchID),
			"company_id":   string(f.CompanyID),
			"response_ids": idsToAny(f.SourceResponseIDs),
		})
	}

	themeRows := make([]map[string]any, 0, len(themes))
	for _, t := range themes {
		themeRows = append(themeRows, map[string]any{
			"id":              string(t.ID),
			"statement":       t.Statement,
			"batch_id":        string(t.BatchID),
			"composite_score": t.CompositeScore,
			"finding_ids":     idsToAny(t.FindingIDs),
		})
	}

	alertRows := make([]map[string]any, 0, len(alerts))
	for _, a := range alerts {
		alertRows = append(alertRows, map[string]any{
			"id":             string(a.ID),
			"statement":      a.Statement,
			"batch_id":       string(a.BatchID),
			"company_id":     string(a.CompanyID),
			"classification": string(a.Classification),
			"finding_ids":    idsToAny(a.FindingIDs),
		})
	}

	_, err := w.driver.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if _, err := tx.Run(ctx, findingQuery, map[string]any{"batch": findingRows}); err != nil {
			return nil, err
		}
		if len(themeRows) > 0 {
			if _, err := tx.Run(ctx, themeQuery, map[string]any{"batch": themeRows}); err != nil {
				return nil, err
			}
		}
		if len(alertRows) > 0 {
			if _, err := tx.Run(ctx, alertQuery, map[string]any{"batch": alertRows}); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "writing provenance graph")
	}

	w.logger.Debug("provenance graph updated",
		logging.Int("findings", len(findings)),
		logging.Int("themes", len(themes)),
		logging.Int("alerts", len(alerts)))
	return nil
}

func idsToAny(ids []common.ID) []any {
	out := make([]any, 0, len(ids))
	for _, id := range ids {
		out = append(out, string(id))
	}
	return out
}
