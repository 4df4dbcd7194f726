package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SynthesisMetrics bundles the metric handles the synthesis pipeline and
// review workflow emit.  A nil *SynthesisMetrics is a valid no-op receiver so
// tests can skip metrics wiring.
type SynthesisMetrics struct {
	responsesLabeled   *prometheus.CounterVec
	pendingEmbeddings  prometheus.Gauge
	duplicatesRecorded prometheus.Counter
	clustersFormed     prometheus.Counter
	candidatesRejected *prometheus.CounterVec
	themesEmitted      prometheus.Counter
	alertsEmitted      prometheus.Counter
	reviewTransitions  *prometheus.CounterVec
	serviceLatency     *prometheus.HistogramVec
	batchesCompleted   *prometheus.CounterVec
}

// NewSynthesisMetrics registers the synthesis metric set on the collector.
func NewSynthesisMetrics(c Collector) *SynthesisMetrics {
	return &SynthesisMetrics{
		responsesLabeled: c.RegisterCounter("responses_labeled_total",
			"Responses labeled, by final status.", "status"),
		pendingEmbeddings: c.RegisterGauge("pending_embeddings",
			"Responses currently awaiting an embedding retry.").WithLabelValues(),
		duplicatesRecorded: c.RegisterCounter("duplicates_recorded_total",
			"Intra-company duplicate links recorded.").WithLabelValues(),
		clustersFormed: c.RegisterCounter("clusters_formed_total",
			"Pattern clusters formed across batches.").WithLabelValues(),
		candidatesRejected: c.RegisterCounter("candidates_rejected_total",
			"Theme/alert candidates rejected, by rule code.", "kind", "code"),
		themesEmitted: c.RegisterCounter("themes_emitted_total",
			"Themes that passed validation and entered review.").WithLabelValues(),
		alertsEmitted: c.RegisterCounter("alerts_emitted_total",
			"Strategic alerts that passed validation.").WithLabelValues(),
		reviewTransitions: c.RegisterCounter("review_transitions_total",
			"Quality-review transitions, by target decision.", "decision"),
		serviceLatency: c.RegisterHistogram("external_service_seconds",
			"Latency of external service calls.", nil, "service", "operation"),
		batchesCompleted: c.RegisterCounter("batches_total",
			"Synthesis batches, by outcome.", "status"),
	}
}

func (m *SynthesisMetrics) ResponseLabeled(status string) {
	if m == nil {
		return
	}
	m.responsesLabeled.WithLabelValues(status).Inc()
}

func (m *SynthesisMetrics) SetPendingEmbeddings(n int) {
	if m == nil {
		return
	}
	m.pendingEmbeddings.Set(float64(n))
}

func (m *SynthesisMetrics) DuplicateRecorded() {
	if m == nil {
		return
	}
	m.duplicatesRecorded.Inc()
}

func (m *SynthesisMetrics) ClustersFormed(n int) {
	if m == nil {
		return
	}
	m.clustersFormed.Add(float64(n))
}

func (m *SynthesisMetrics) CandidateRejected(kind, code string) {
	if m == nil {
		return
	}
	m.candidatesRejected.WithLabelValues(kind, code).Inc()
}

func (m *SynthesisMetrics) ThemesEmitted(n int) {
	if m == nil {
		return
	}
	m.themesEmitted.Add(float64(n))
}

func (m *SynthesisMetrics) AlertsEmitted(n int) {
	if m == nil {
		return
	}
	m.alertsEmitted.Add(float64(n))
}

func (m *SynthesisMetrics) ReviewTransition(decision string) {
	if m == nil {
		return
	}
	m.reviewTransitions.WithLabelValues(decision).Inc()
}

func (m *SynthesisMetrics) ObserveServiceLatency(service, operation string, d time.Duration) {
	if m == nil {
		return
	}
	m.serviceLatency.WithLabelValues(service, operation).Observe(d.Seconds())
}

func (m *SynthesisMetrics) BatchFinished(status string) {
	if m == nil {
		return
	}
	m.batchesCompleted.WithLabelValues(status).Inc()
}
