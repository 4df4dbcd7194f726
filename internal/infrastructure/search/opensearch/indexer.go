package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/opensearch-project/opensearch-go/v3/opensearchapi"

	"github.com/signalweave/signalweave/internal/application/synthesis"
	"github.com/signalweave/signalweave/internal/domain/alert"
	"github.com/signalweave/signalweave/internal/domain/theme"
	"github.com/signalweave/signalweave/internal/infrastructure/monitoring/logging"
	"github.com/signalweave/signalweave/pkg/errors"
)

// Index mappings.  Statements are analyzed for full-text queries; every other
// field is a filterable keyword or numeric.
const themeMapping = `{
  "settings": {"number_of_shards": 1, "number_of_replicas": 1},
  "mappings": {
    "properties": {
      "batch_id":        {"type": "keyword"},
      "statement":       {"type": "text"},
      "word_count":      {"type": "integer"},
      "company_ids":     {"type": "keyword"},
      "composite_score": {"type": "double"},
      "quality_decision":{"type": "keyword"},
      "created_at":      {"type": "date"}
    }
  }
}`

const alertMapping = `{
  "settings": {"number_of_shards": 1, "number_of_replicas": 1},
  "mappings": {
    "properties": {
      "batch_id":       {"type": "keyword"},
      "company_id":     {"type": "keyword"},
      "statement":      {"type": "text"},
      "word_count":     {"type": "integer"},
      "classification": {"type": "keyword"},
      "rationale":      {"type": "text"},
      "created_at":     {"type": "date"}
    }
  }
}`

type themeDocument struct {
	BatchID         string    `json:"batch_id"`
	Statement       string    `json:"statement"`
	WordCount       int       `json:"word_count"`
	CompanyIDs      []string  `json:"company_ids"`
	CompositeScore  float64   `json:"composite_score"`
	QualityDecision string    `json:"quality_decision"`
	CreatedAt       time.Time `json:"created_at"`
}

type alertDocument struct {
	BatchID        string    `json:"batch_id"`
	CompanyID      string    `json:"company_id"`
	Statement      string    `json:"statement"`
	WordCount      int       `json:"word_count"`
	Classification string    `json:"classification"`
	Rationale      string    `json:"rationale,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// StatementIndexer writes emitted theme and alert statements into OpenSearch
// so the review dashboard can run full-text queries over them.
type StatementIndexer struct {
	client     *Client
	themeIndex string
	alertIndex string
	logger     logging.Logger
}

var _ synthesis.StatementIndexer = (*StatementIndexer)(nil)

// NewStatementIndexer ensures both statement indices exist and returns the
// indexer.  Index names carry the configured prefix.
func NewStatementIndexer(ctx context.Context, c *Client, log logging.Logger) (*StatementIndexer, error) {
	prefix := c.cfg.IndexPrefix
	if prefix == "" {
		prefix = "sweave"
	}

	idx := &StatementIndexer{
		client:     c,
		themeIndex: prefix + "-themes",
		alertIndex: prefix + "-alerts",
		logger:     log,
	}
	if err := idx.ensureIndex(ctx, idx.themeIndex, themeMapping); err != nil {
		return nil, err
	}
	if err := idx.ensureIndex(ctx, idx.alertIndex, alertMapping); err != nil {
		return nil, err
	}
	return idx, nil
}

func (s *StatementIndexer) ensureIndex(ctx context.Context, name, mapping string) error {
	_, err := s.client.api.Indices.Create(ctx, opensearchapi.IndicesCreateReq{
		Index: name,
		Body:  strings.NewReader(mapping),
	})
	if err != nil {
		// Concurrent starters race on creation; the index existing is the
		// outcome we wanted.
		if strings.Contains(err.Error(), "resource_already_exists_exception") {
			return nil
		}
		return errors.Wrap(err, errors.ErrCodeExternalService, fmt.Sprintf("creating index %s", name))
	}
	s.logger.Info("created OpenSearch index", logging.String("index", name))
	return nil
}

// IndexStatements bulk-indexes the batch output.  Document IDs are the entity
// IDs, so re-running a batch overwrites rather than duplicates.
func (s *StatementIndexer) IndexStatements(ctx context.Context, themes []*theme.Theme, alerts []*alert.StrategicAlert) error {
	if len(themes) == 0 && len(alerts) == 0 {
		return nil
	}

	var body bytes.Buffer
	for _, th := range themes {
		doc := themeDocument{
			BatchID:         string(th.BatchID),
			Statement:       th.Statement,
			WordCount:       th.WordCount,
			CompanyIDs:      make([]string, 0, len(th.CompanyIDs)),
			CompositeScore:  th.CompositeScore,
			QualityDecision: string(th.QualityDecision),
			CreatedAt:       th.CreatedAt,
		}
		for _, cid := range th.CompanyIDs {
			doc.CompanyIDs = append(doc.CompanyIDs, string(cid))
		}
		if err := writeBulkEntry(&body, s.themeIndex, string(th.ID), doc); err != nil {
			return err
		}
	}
	for _, al := range alerts {
		doc := alertDocument{
			BatchID:        string(al.BatchID),
			CompanyID:      string(al.CompanyID),
			Statement:      al.Statement,
			WordCount:      al.WordCount,
			Classification: string(al.Classification),
			Rationale:      al.Rationale,
			CreatedAt:      al.CreatedAt,
		}
		if err := writeBulkEntry(&body, s.alertIndex, string(al.ID), doc); err != nil {
			return err
		}
	}

	resp, err := s.client.api.Bulk(ctx, opensearchapi.BulkReq{Body: &body})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "bulk indexing statements")
	}
	if resp.Errors {
		for _, item := range resp.Items {
			for op, detail := range item {
				if detail.Error != nil {
					s.logger.Warn("statement document rejected",
						logging.String("op", op),
						logging.String("index", detail.Index),
						logging.String("id", detail.ID),
						logging.String("reason", detail.Error.Reason))
				}
			}
		}
		return errors.New(errors.ErrCodeExternalService, "bulk indexing reported per-document failures")
	}

	s.logger.Debug("indexed statements",
		logging.Int("themes", len(themes)),
		logging.Int("alerts", len(alerts)))
	return nil
}

func writeBulkEntry(body *bytes.Buffer, index, id string, doc any) error {
	meta := map[string]map[string]string{"index": {"_index": index, "_id": id}}
	metaLine, err := json.Marshal(meta)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "encoding bulk action")
	}
	docLine, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "encoding statement document")
	}
	body.Write(metaLine)
	body.WriteByte('\n')
	body.Write(docLine)
	body.WriteByte('\n')
	return nil
}
