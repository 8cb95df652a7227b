package model

import "sort"

// AnalyticsRequest bundles the entries submitted for one computation
// cycle. It is ephemeral: built by the caller, handed to the coordinator,
// and never mutated by the pipeline.
type AnalyticsRequest struct {
	Entries       []TrackingEntry `json:"entries"`
	Emotions      []EmotionEntry  `json:"emotions"`
	SensoryInputs []SensoryEntry  `json:"sensory_inputs"`
}

// TotalPoints returns the raw point count across all three collections.
func (r AnalyticsRequest) TotalPoints() int {
	return len(r.Entries) + len(r.Emotions) + len(r.SensoryInputs)
}

// IsEmpty reports whether the request carries no data at all.
func (r AnalyticsRequest) IsEmpty() bool {
	return r.TotalPoints() == 0
}

// Subjects returns the sorted set of distinct student IDs referenced by
// the request. Entries without a student ID contribute nothing.
func (r AnalyticsRequest) Subjects() []string {
	seen := make(map[string]struct{})
	for _, e := range r.Entries {
		if e.StudentID != "" {
			seen[e.StudentID] = struct{}{}
		}
	}
	for _, e := range r.Emotions {
		if e.StudentID != "" {
			seen[e.StudentID] = struct{}{}
		}
	}
	for _, e := range r.SensoryInputs {
		if e.StudentID != "" {
			seen[e.StudentID] = struct{}{}
		}
	}
	subjects := make([]string, 0, len(seen))
	for id := range seen {
		subjects = append(subjects, id)
	}
	sort.Strings(subjects)
	return subjects
}

// PatternKind distinguishes emotion patterns from sensory patterns.
type PatternKind string

const (
	PatternEmotion PatternKind = "emotion"
	PatternSensory PatternKind = "sensory"
)

// PatternStrength is the qualitative confidence bucket.
type PatternStrength string

const (
	StrengthWeak     PatternStrength = "weak"
	StrengthModerate PatternStrength = "moderate"
	StrengthStrong   PatternStrength = "strong"
)

// Pattern is one detected behavioral pattern for a category.
type Pattern struct {
	Kind         PatternKind     `json:"kind"`
	Category     string          `json:"category"`
	Count        int             `json:"count"`
	Frequency    float64         `json:"frequency"` // share of entries in this category
	AvgIntensity float64         `json:"avg_intensity"`
	TimeSpanDays float64         `json:"time_span_days"`
	Confidence   float64         `json:"confidence"` // 0..1
	Strength     PatternStrength `json:"strength"`
	FirstSeen    FlexTime        `json:"first_seen"`
	LastSeen     FlexTime        `json:"last_seen"`
}

// Significance buckets a correlation pair by |r|.
type Significance string

const (
	SignificanceHigh   Significance = "high"
	SignificanceMedium Significance = "medium"
	SignificanceLow    Significance = "low"
)

// FactorPair is one significant correlation between two numeric factors.
type FactorPair struct {
	FactorA      string       `json:"factor_a"`
	FactorB      string       `json:"factor_b"`
	R            float64      `json:"r"`
	Samples      int          `json:"samples"`
	Significance Significance `json:"significance"`
}

// CorrelationReport is the full pairwise matrix over the factor set plus
// the filtered significant pairs. When fewer tracking entries are
// available than the configured minimum, InsufficientData is set and the
// matrix is absent; the report is then a signal, not an empty result.
type CorrelationReport struct {
	Factors          []string     `json:"factors,omitempty"`
	Matrix           [][]float64  `json:"matrix,omitempty"`
	Significant      []FactorPair `json:"significant"`
	InsufficientData bool         `json:"insufficient_data,omitempty"`
	Reason           string       `json:"reason,omitempty"`
	EntryCount       int          `json:"entry_count"`
	MinEntries       int          `json:"min_entries"`
}

// AnomalySeverity buckets how far an entry deviates from its baseline.
type AnomalySeverity string

const (
	AnomalyMild     AnomalySeverity = "mild"
	AnomalyModerate AnomalySeverity = "moderate"
	AnomalySevere   AnomalySeverity = "severe"
)

// Anomaly flags one entry whose intensity deviates beyond the configured
// threshold from the rolling baseline of its category.
type Anomaly struct {
	Kind      PatternKind     `json:"kind"`
	Category  string          `json:"category"`
	EntryID   string          `json:"entry_id"`
	Timestamp FlexTime        `json:"timestamp"`
	Value     float64         `json:"value"`
	Baseline  float64         `json:"baseline"`
	Deviation float64         `json:"deviation"` // standard deviations from baseline
	Severity  AnomalySeverity `json:"severity"`
}

// TrendDirection describes the fitted slope of a metric over time.
type TrendDirection string

const (
	TrendIncreasing TrendDirection = "increasing"
	TrendDecreasing TrendDirection = "decreasing"
	TrendStable     TrendDirection = "stable"
)

// InsightSeverity prioritizes a predictive insight for the caller.
type InsightSeverity string

const (
	SeverityInfo     InsightSeverity = "info"
	SeverityWarning  InsightSeverity = "warning"
	SeverityCritical InsightSeverity = "critical"
)

// PredictiveInsight is a fitted trend over a recent window compared
// against a longer baseline, with recommendations for the caller.
type PredictiveInsight struct {
	Metric          string          `json:"metric"`
	Direction       TrendDirection  `json:"direction"`
	Accuracy        float64         `json:"accuracy"` // R² of the fitted trend
	Confidence      float64         `json:"confidence"`
	RecentMean      float64         `json:"recent_mean"`
	BaselineMean    float64         `json:"baseline_mean"`
	Severity        InsightSeverity `json:"severity"`
	Recommendations []string        `json:"recommendations"`
}

// AnalyticsResult is the computed artifact for one request. All slices
// are always non-nil when the result crosses a package boundary; consumers
// never need to distinguish absent from empty.
type AnalyticsResult struct {
	Patterns                  []Pattern           `json:"patterns"`
	Correlations              CorrelationReport   `json:"correlations"`
	EnvironmentalCorrelations []FactorPair        `json:"environmental_correlations"`
	PredictiveInsights        []PredictiveInsight `json:"predictive_insights"`
	Anomalies                 []Anomaly           `json:"anomalies"`
	Insights                  []string            `json:"insights"`
	CacheKey                  string              `json:"cache_key"`
}

// NewResult returns a fully-populated empty result for the given key.
func NewResult(cacheKey string) *AnalyticsResult {
	return &AnalyticsResult{
		Patterns:                  []Pattern{},
		Correlations:              CorrelationReport{Significant: []FactorPair{}},
		EnvironmentalCorrelations: []FactorPair{},
		PredictiveInsights:        []PredictiveInsight{},
		Anomalies:                 []Anomaly{},
		Insights:                  []string{},
		CacheKey:                  cacheKey,
	}
}

// Normalize replaces nil slices with empty ones so a result is never
// partially well-formed when exposed to a consumer.
func (r *AnalyticsResult) Normalize() {
	if r.Patterns == nil {
		r.Patterns = []Pattern{}
	}
	if r.Correlations.Significant == nil {
		r.Correlations.Significant = []FactorPair{}
	}
	if r.EnvironmentalCorrelations == nil {
		r.EnvironmentalCorrelations = []FactorPair{}
	}
	if r.PredictiveInsights == nil {
		r.PredictiveInsights = []PredictiveInsight{}
	}
	if r.Anomalies == nil {
		r.Anomalies = []Anomaly{}
	}
	if r.Insights == nil {
		r.Insights = []string{}
	}
}
