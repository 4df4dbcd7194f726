package synthesis

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/signalweave/signalweave/internal/application/clustering"
	"github.com/signalweave/signalweave/internal/application/dedup"
	"github.com/signalweave/signalweave/internal/application/labeling"
	"github.com/signalweave/signalweave/internal/application/validation"
	"github.com/signalweave/signalweave/internal/domain/alert"
	"github.com/signalweave/signalweave/internal/domain/batch"
	"github.com/signalweave/signalweave/internal/domain/finding"
	"github.com/signalweave/signalweave/internal/domain/response"
	"github.com/signalweave/signalweave/internal/domain/theme"
	"github.com/signalweave/signalweave/internal/infrastructure/monitoring/logging"
	"github.com/signalweave/signalweave/internal/infrastructure/monitoring/prometheus"
	"github.com/signalweave/signalweave/pkg/errors"
	"github.com/signalweave/signalweave/pkg/types/common"
	"github.com/signalweave/signalweave/pkg/types/insight"
)

// highImpactSentiment marks a finding high-impact when the absolute sentiment
// reaches this magnitude: a strong revenue or competitive signal.
const highImpactSentiment = 4.0

// Deps wires the orchestrator's collaborators.
type Deps struct {
	Responses response.Repository
	Labeler   labeling.Service
	Index     dedup.SimilarityIndex
	Generator CandidateGenerator
	Writer    BatchWriter

	// Post-commit collaborators; all best effort and nil-able in tests.
	Publisher  EventPublisher
	Archiver   Archiver
	Provenance ProvenanceWriter
	Indexer    StatementIndexer
	Metrics    *prometheus.SynthesisMetrics

	Logger      logging.Logger
	Concurrency int
}

// Result summarizes a completed run.
type Result struct {
	Batch  *batch.SynthesisBatch
	Themes []*theme.Theme
	Alerts []*alert.StrategicAlert
}

// Service runs synthesis batches.
type Service interface {
	Run(ctx context.Context, batchID common.BatchID, profile insight.SynthesisProfile) (*Result, error)
}

type service struct {
	deps Deps
}

// NewService wires the synthesis orchestrator.
func NewService(deps Deps) (Service, error) {
	switch {
	case deps.Responses == nil, deps.Labeler == nil,
		deps.Index == nil, deps.Generator == nil, deps.Writer == nil, deps.Logger == nil:
		return nil, errors.New(errors.ErrCodeBatchConfigInvalid,
			"synthesis service is missing a required dependency")
	}
	if deps.Concurrency < 1 {
		deps.Concurrency = 4
	}
	return &service{deps: deps}, nil
}

// Run executes the full pipeline for one batch.  The profile is validated
// before any write; a failed run persists only its failure record.
func (s *service) Run(ctx context.Context, batchID common.BatchID, profile insight.SynthesisProfile) (*Result, error) {
	rec, err := batch.Start(batchID, profile)
	if err != nil {
		// Fatal configuration: abort before any write.
		return nil, err
	}
	log := s.deps.Logger.With(logging.String("batch_id", string(batchID)))
	log.Info("synthesis batch started", logging.String("profile", string(profile.Name)))

	res, counts, err := s.run(ctx, rec, profile, log)
	if err != nil {
		rec.Fail(err.Error())
		if werr := s.deps.Writer.PersistFailure(ctx, rec); werr != nil {
			log.Error("persisting batch failure record", logging.Err(werr))
		}
		s.deps.Metrics.BatchFinished(string(batch.StatusFailed))
		log.Error("synthesis batch failed", logging.Err(err))
		return nil, errors.Wrap(err, errors.ErrCodeBatchAborted,
			fmt.Sprintf("batch %s aborted", batchID))
	}

	s.deps.Metrics.BatchFinished(string(batch.StatusCompleted))
	log.Info("synthesis batch completed",
		logging.Int("themes", counts.ThemesEmitted),
		logging.Int("alerts", counts.AlertsEmitted),
		logging.Int("duplicates", counts.DuplicatesRecorded),
		logging.Int("rejected", counts.CandidatesRejected))
	return res, nil
}

// run is the failable pipeline body; Run wraps it with failure bookkeeping.
func (s *service) run(ctx context.Context, rec *batch.SynthesisBatch, profile insight.SynthesisProfile, log logging.Logger) (*Result, batch.Counts, error) {
	var counts batch.Counts

	// ── Snapshot ──────────────────────────────────────────────────────────────
	snapshot, err := s.deps.Responses.List(ctx, response.ListFilter{BatchID: rec.BatchID})
	if err != nil {
		return nil, counts, errors.Wrap(err, errors.ErrCodeDatabaseError, "loading batch snapshot")
	}
	if len(snapshot) == 0 {
		return nil, counts, errors.New(errors.ErrCodeEmptyBatch, "batch has no responses")
	}

	// ── Labeling: concurrent, independent per response ────────────────────────
	labeled, pending, err := s.labelAll(ctx, snapshot)
	if err != nil {
		return nil, counts, err
	}
	counts.ResponsesLabeled = len(labeled)
	counts.PendingEmbedding = len(pending)
	s.deps.Metrics.SetPendingEmbeddings(len(pending))
	for _, r := range pending {
		if s.deps.Publisher != nil {
			if perr := s.deps.Publisher.PublishResponsePending(ctx, r); perr != nil {
				log.Warn("publishing pending-embedding event", logging.Err(perr))
			}
		}
	}

	// ── Deduplication: serialized inserts, order-deterministic ────────────────
	links := newLinkCollector()
	deduper, err := dedup.NewDeduplicator(s.deps.Index, links, profile.DedupThreshold, s.deps.Logger)
	if err != nil {
		return nil, counts, err
	}
	dres, err := deduper.Run(ctx, rec.BatchID, labeled)
	if err != nil {
		return nil, counts, err
	}
	counts.DuplicatesRecorded = dres.Duplicates
	for i := 0; i < dres.Duplicates; i++ {
		s.deps.Metrics.DuplicateRecorded()
	}

	// ── Findings from canonical responses ─────────────────────────────────────
	findings, err := s.deriveFindings(dres)
	if err != nil {
		return nil, counts, err
	}

	// ── Clustering: sequential greedy assignment ──────────────────────────────
	clusterer, err := clustering.NewClusterer(profile.ClusterThreshold, s.deps.Logger)
	if err != nil {
		return nil, counts, err
	}
	clusters, err := clusterer.Run(ctx, findings)
	if err != nil {
		return nil, counts, err
	}
	counts.ClustersFormed = len(clusters)
	s.deps.Metrics.ClustersFormed(len(clusters))

	// ── Candidate generation ──────────────────────────────────────────────────
	input, simByFinding := buildGenerationInput(clusters, profile)
	if len(input.ThemeFindings) == 0 && len(input.AlertFindings) == 0 {
		log.Info("no eligible clusters, batch emits nothing")
		rec.Complete(counts)
		return &Result{Batch: rec}, counts, s.persist(ctx, rec, snapshot, findings, links.Links(), nil, nil, log)
	}

	gen, err := s.deps.Generator.Generate(ctx, input)
	if err != nil {
		return nil, counts, errors.Wrap(err, errors.ErrCodeGenerationFailed, "candidate generation failed")
	}
	attachSimilarity(gen.Themes, simByFinding)

	// ── Contract validation ───────────────────────────────────────────────────
	// Candidates may only reference findings from this batch; resolve against
	// the in-memory set since nothing is persisted before the commit.
	validator, err := validation.NewValidator(batchResolver(findings), profile, s.deps.Logger)
	if err != nil {
		return nil, counts, err
	}
	themesRes, err := validator.ValidateThemes(ctx, rec.BatchID, gen.Themes)
	if err != nil {
		return nil, counts, err
	}
	alertsRes, err := validator.ValidateAlerts(ctx, rec.BatchID, gen.Alerts)
	if err != nil {
		return nil, counts, err
	}
	counts.CandidatesRejected = len(themesRes.Rejected) + len(alertsRes.Rejected)
	counts.ThemesEmitted = len(themesRes.Themes)
	counts.AlertsEmitted = len(alertsRes.Alerts)
	for _, rej := range themesRes.Rejected {
		s.deps.Metrics.CandidateRejected("theme", string(rej.Code))
	}
	for _, rej := range alertsRes.Rejected {
		s.deps.Metrics.CandidateRejected("alert", string(rej.Code))
	}
	s.deps.Metrics.ThemesEmitted(len(themesRes.Themes))
	s.deps.Metrics.AlertsEmitted(len(alertsRes.Alerts))

	// ── Atomic persist, then best-effort fan-out ──────────────────────────────
	rec.Complete(counts) // status recorded inside the same transaction
	if err := s.persist(ctx, rec, snapshot, findings, links.Links(), themesRes.Themes, alertsRes.Alerts, log); err != nil {
		return nil, counts, err
	}
	s.fanOut(ctx, rec, themesRes.Themes, alertsRes.Alerts, findings, gen.RawPayload, log)

	return &Result{Batch: rec, Themes: themesRes.Themes, Alerts: alertsRes.Alerts}, counts, nil
}

// labelAll labels the snapshot concurrently.  A validation failure rejects
// the single response and the batch continues; transient degradation produces
// pending responses; anything else stops the batch.
func (s *service) labelAll(ctx context.Context, snapshot []*response.Response) (labeled, pending []*response.Response, err error) {
	results := make([]*labeling.Result, len(snapshot))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.deps.Concurrency)
	for i, r := range snapshot {
		i, r := i, r
		g.Go(func() error {
			res, lerr := s.deps.Labeler.LabelResponse(gctx, r)
			if lerr != nil {
				if errors.IsValidation(lerr) {
					s.deps.Logger.Warn("response rejected during labeling",
						logging.String("response_id", string(r.ID)),
						logging.Err(lerr))
					return nil
				}
				return lerr
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	for _, res := range results {
		if res == nil {
			continue
		}
		s.deps.Metrics.ResponseLabeled(string(res.Response.Status))
		if res.PendingEmbedding {
			pending = append(pending, res.Response)
			continue
		}
		labeled = append(labeled, res.Response)
	}
	return labeled, pending, nil
}

// deriveFindings promotes each canonical response to a finding.  Statement
// text is the response verbatim; the high-impact flag comes from sentiment
// magnitude; the unverified-uniqueness flag survives from dedup.
func (s *service) deriveFindings(dres *dedup.Result) ([]*finding.Finding, error) {
	findings := make([]*finding.Finding, 0, len(dres.Canonical))
	unverified := make(map[common.ID]bool, len(dres.Outcomes))
	for _, o := range dres.Outcomes {
		unverified[o.Response.ID] = o.UnverifiedUniqueness
	}

	for _, r := range dres.Canonical {
		sentiment := 0.0
		if r.Sentiment != nil {
			sentiment = *r.Sentiment
		}
		f, err := finding.New(r.CompanyID, r.Text, sentiment, []*response.Response{r})
		if err != nil {
			return nil, err
		}
		if math.Abs(sentiment) >= highImpactSentiment {
			f.MarkHighImpact()
		}
		f.UnverifiedUniqueness = unverified[r.ID]
		findings = append(findings, f)
	}
	return findings, nil
}

// buildGenerationInput groups eligible clusters for the generation request
// and returns a finding-to-similarity map used to attach each cluster's
// average similarity to the candidates that reference its findings.
func buildGenerationInput(clusters []*clustering.Cluster, profile insight.SynthesisProfile) (GenerationInput, map[common.ID]float64) {
	input := GenerationInput{Profile: profile}
	simByFinding := make(map[common.ID]float64)

	for _, c := range clusters {
		switch {
		case c.ThemeEligible():
			input.ThemeFindings = append(input.ThemeFindings, c.Members)
		case c.AlertEligible():
			input.AlertFindings = append(input.AlertFindings, c.Members)
		default:
			continue
		}
		for _, f := range c.Members {
			simByFinding[f.ID] = c.AvgSimilarity()
		}
	}
	return input, simByFinding
}

// attachSimilarity sets each theme candidate's average similarity from the
// cluster its first resolvable finding belongs to.
func attachSimilarity(candidates []validation.ThemeCandidate, simByFinding map[common.ID]float64) {
	for i := range candidates {
		for _, id := range candidates[i].FindingIDs {
			if sim, ok := simByFinding[id]; ok {
				candidates[i].AvgSimilarity = sim
				break
			}
		}
	}
}

func (s *service) persist(
	ctx context.Context,
	rec *batch.SynthesisBatch,
	responses []*response.Response,
	findings []*finding.Finding,
	links []*response.DuplicateLink,
	themes []*theme.Theme,
	alerts []*alert.StrategicAlert,
	log logging.Logger,
) error {
	if err := s.deps.Writer.PersistBatch(ctx, rec, responses, findings, links, themes, alerts); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "persisting batch output")
	}
	log.Info("batch output persisted",
		logging.Int("findings", len(findings)),
		logging.Int("links", len(links)))
	return nil
}

// fanOut publishes post-commit notifications.  Failures are logged and never
// affect the already committed batch.
func (s *service) fanOut(ctx context.Context, rec *batch.SynthesisBatch, themes []*theme.Theme, alerts []*alert.StrategicAlert, findings []*finding.Finding, rawPayload []byte, log logging.Logger) {
	if s.deps.Publisher != nil {
		for _, th := range themes {
			if err := s.deps.Publisher.PublishThemeCreated(ctx, th); err != nil {
				log.Warn("publishing theme event", logging.Err(err))
			}
		}
		for _, a := range alerts {
			if err := s.deps.Publisher.PublishAlertRaised(ctx, a); err != nil {
				log.Warn("publishing alert event", logging.Err(err))
			}
		}
		if err := s.deps.Publisher.PublishBatchCompleted(ctx, rec); err != nil {
			log.Warn("publishing batch event", logging.Err(err))
		}
	}
	if s.deps.Archiver != nil && len(rawPayload) > 0 {
		if err := s.deps.Archiver.ArchivePayload(ctx, rec, rawPayload); err != nil {
			log.Warn("archiving generation payload", logging.Err(err))
		}
	}
	if s.deps.Provenance != nil {
		if err := s.deps.Provenance.WriteProvenance(ctx, themes, alerts, findings); err != nil {
			log.Warn("writing provenance graph", logging.Err(err))
		}
	}
	if s.deps.Indexer != nil {
		if err := s.deps.Indexer.IndexStatements(ctx, themes, alerts); err != nil {
			log.Warn("indexing statements", logging.Err(err))
		}
	}
}
