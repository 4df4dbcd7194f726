// Package insight defines the enumerations and synthesis-profile types shared
// between the domain, application, and interface layers.
package insight

import "fmt"

// ─────────────────────────────────────────────────────────────────────────────
// Quality review decisions
// ─────────────────────────────────────────────────────────────────────────────

// QualityDecision is the human-review status of a Theme.
type QualityDecision string

const (
	DecisionPending  QualityDecision = "Pending"
	DecisionApproved QualityDecision = "Approved"
	DecisionRejected QualityDecision = "Rejected"
	DecisionFeatured QualityDecision = "Featured"
)

// Valid reports whether d is a known decision value.
func (d QualityDecision) Valid() bool {
	switch d {
	case DecisionPending, DecisionApproved, DecisionRejected, DecisionFeatured:
		return true
	}
	return false
}

// Terminal reports whether d is a terminal review state.  Terminal states have
// no outgoing transitions; returning to Pending is an administrative reset
// outside this core's contract.
func (d QualityDecision) Terminal() bool {
	return d == DecisionApproved || d == DecisionRejected || d == DecisionFeatured
}

// ─────────────────────────────────────────────────────────────────────────────
// Strategic alert classifications
// ─────────────────────────────────────────────────────────────────────────────

// AlertClassification is the fixed three-value classification of a
// StrategicAlert.
type AlertClassification string

const (
	ClassRevenueThreat            AlertClassification = "REVENUE_THREAT"
	ClassCompetitiveVulnerability AlertClassification = "COMPETITIVE_VULNERABILITY"
	ClassMarketOpportunity        AlertClassification = "MARKET_OPPORTUNITY"
)

// Valid reports whether c is one of the three supported classifications.
func (c AlertClassification) Valid() bool {
	switch c {
	case ClassRevenueThreat, ClassCompetitiveVulnerability, ClassMarketOpportunity:
		return true
	}
	return false
}

// ─────────────────────────────────────────────────────────────────────────────
// Legacy categorical sentiment labels
// ─────────────────────────────────────────────────────────────────────────────

// LegacySentimentLabel is the categorical sentiment value used by data written
// before the numeric scale.  New data never uses this path; it exists solely
// for the one-time migration translator.
type LegacySentimentLabel string

const (
	LegacyPositive LegacySentimentLabel = "positive"
	LegacyNegative LegacySentimentLabel = "negative"
	LegacyMixed    LegacySentimentLabel = "mixed"
	LegacyNeutral  LegacySentimentLabel = "neutral"
	LegacyUnset    LegacySentimentLabel = ""
)

// ─────────────────────────────────────────────────────────────────────────────
// Embedding constants
// ─────────────────────────────────────────────────────────────────────────────

// EmbeddingDim is the fixed dimensionality of all response/finding embeddings.
const EmbeddingDim = 1536

// Sentiment scale bounds, inclusive.
const (
	SentimentMin = -5.0
	SentimentMax = 5.0
)

// ─────────────────────────────────────────────────────────────────────────────
// Synthesis profiles
// ─────────────────────────────────────────────────────────────────────────────

// ProfileName selects a named synthesis profile.  Profile selection is an
// external configuration choice; the engine never infers it from data.
type ProfileName string

const (
	ProfileQualityFirst ProfileName = "quality-first"
	ProfileGranular     ProfileName = "granular"
)

// SynthesisProfile bundles every tunable the validator and similarity stages
// consume for one batch.  A profile is resolved once at batch start and is
// never mixed with another within the same batch.
type SynthesisProfile struct {
	Name ProfileName `json:"name" mapstructure:"name"`

	// Word-count contract for theme statements, inclusive bounds.
	WordCountMin int `json:"word_count_min" mapstructure:"word_count_min"`
	WordCountMax int `json:"word_count_max" mapstructure:"word_count_max"`

	// Theme output cap: surviving candidates are ranked by composite score and
	// at most ThemeCountMax are kept.  Batches below ThemeCountMin emit fewer
	// themes rather than padding with weak candidates.
	ThemeCountMin int `json:"theme_count_min" mapstructure:"theme_count_min"`
	ThemeCountMax int `json:"theme_count_max" mapstructure:"theme_count_max"`

	// Cosine-similarity thresholds.  ClusterThreshold must be strictly lower
	// than DedupThreshold.
	DedupThreshold   float64 `json:"dedup_threshold" mapstructure:"dedup_threshold"`
	ClusterThreshold float64 `json:"cluster_threshold" mapstructure:"cluster_threshold"`

	// MinCompanyCount is the distinct-company floor for themes.  It is a hard
	// floor: values below 2 are rejected by Validate.
	MinCompanyCount int `json:"min_company_count" mapstructure:"min_company_count"`

	// AlertWordMax bounds alert statements; alerts have no minimum.
	AlertWordMax int `json:"alert_word_max" mapstructure:"alert_word_max"`
}

// DefaultProfile returns the built-in profile for the given name, or an error
// for unknown names.  Callers may override individual thresholds through
// configuration before validating.
func DefaultProfile(name ProfileName) (SynthesisProfile, error) {
	switch name {
	case ProfileQualityFirst:
		return SynthesisProfile{
			Name:             ProfileQualityFirst,
			WordCountMin:     50,
			WordCountMax:     75,
			ThemeCountMin:    5,
			ThemeCountMax:    10,
			DedupThreshold:   0.92,
			ClusterThreshold: 0.80,
			MinCompanyCount:  2,
			AlertWordMax:     200,
		}, nil
	case ProfileGranular:
		return SynthesisProfile{
			Name:             ProfileGranular,
			WordCountMin:     75,
			WordCountMax:     150,
			ThemeCountMin:    15,
			ThemeCountMax:    25,
			DedupThreshold:   0.92,
			ClusterThreshold: 0.80,
			MinCompanyCount:  2,
			AlertWordMax:     200,
		}, nil
	default:
		return SynthesisProfile{}, fmt.Errorf("insight: unknown profile name %q", name)
	}
}

// Validate checks that the profile is complete and internally consistent.
// A batch must abort before any writes occur when its profile is invalid.
func (p SynthesisProfile) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("insight: profile name is required")
	}
	if p.WordCountMin <= 0 || p.WordCountMax < p.WordCountMin {
		return fmt.Errorf("insight: word count range [%d, %d] is invalid", p.WordCountMin, p.WordCountMax)
	}
	if p.ThemeCountMin <= 0 || p.ThemeCountMax < p.ThemeCountMin {
		return fmt.Errorf("insight: theme count range [%d, %d] is invalid", p.ThemeCountMin, p.ThemeCountMax)
	}
	if p.DedupThreshold <= 0 || p.DedupThreshold > 1 {
		return fmt.Errorf("insight: dedup threshold %.3f is out of (0, 1]", p.DedupThreshold)
	}
	if p.ClusterThreshold <= 0 || p.ClusterThreshold > 1 {
		return fmt.Errorf("insight: cluster threshold %.3f is out of (0, 1]", p.ClusterThreshold)
	}
	if p.ClusterThreshold >= p.DedupThreshold {
		return fmt.Errorf("insight: cluster threshold %.3f must be lower than dedup threshold %.3f",
			p.ClusterThreshold, p.DedupThreshold)
	}
	if p.MinCompanyCount < 2 {
		return fmt.Errorf("insight: min company count %d is below the hard floor of 2", p.MinCompanyCount)
	}
	if p.AlertWordMax <= 0 {
		return fmt.Errorf("insight: alert word max must be positive, got %d", p.AlertWordMax)
	}
	return nil
}
