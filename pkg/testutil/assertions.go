package testutil

import (
	"math"
	"testing"

	"github.com/mverbeek/sensetrack/pkg/model"
)

// AssertInDelta verifies got is within delta of want.
func AssertInDelta(t *testing.T, name string, got, want, delta float64) {
	t.Helper()
	if math.IsNaN(got) || math.Abs(got-want) > delta {
		t.Errorf("%s = %v, want %v ± %v", name, got, want, delta)
	}
}

// AssertAllValid verifies every entry in the request passes validation.
func AssertAllValid(t *testing.T, req model.AnalyticsRequest) {
	t.Helper()
	for i, e := range req.Emotions {
		if err := e.Validate(); err != nil {
			t.Errorf("emotion %d (%s) invalid: %v", i, e.ID, err)
		}
	}
	for i, s := range req.SensoryInputs {
		if err := s.Validate(); err != nil {
			t.Errorf("sensory %d (%s) invalid: %v", i, s.ID, err)
		}
	}
	for i, e := range req.Entries {
		if err := e.Validate(); err != nil {
			t.Errorf("session %d (%s) invalid: %v", i, e.ID, err)
		}
	}
}

// AssertNoDuplicateIDs verifies entry IDs are unique within each collection.
func AssertNoDuplicateIDs(t *testing.T, req model.AnalyticsRequest) {
	t.Helper()
	seen := make(map[string]bool)
	check := func(kind, id string) {
		key := kind + "/" + id
		if seen[key] {
			t.Errorf("duplicate %s entry ID: %s", kind, id)
		}
		seen[key] = true
	}
	for _, e := range req.Emotions {
		check("emotion", e.ID)
	}
	for _, s := range req.SensoryInputs {
		check("sensory", s.ID)
	}
	for _, e := range req.Entries {
		check("session", e.ID)
	}
}

// AssertWellFormed verifies a result has no nil collections.
func AssertWellFormed(t *testing.T, result *model.AnalyticsResult) {
	t.Helper()
	if result == nil {
		t.Fatal("result is nil")
	}
	if result.Patterns == nil {
		t.Error("Patterns is nil, want empty slice")
	}
	if result.Correlations.Significant == nil {
		t.Error("Correlations.Significant is nil, want empty slice")
	}
	if result.EnvironmentalCorrelations == nil {
		t.Error("EnvironmentalCorrelations is nil, want empty slice")
	}
	if result.PredictiveInsights == nil {
		t.Error("PredictiveInsights is nil, want empty slice")
	}
	if result.Anomalies == nil {
		t.Error("Anomalies is nil, want empty slice")
	}
	if result.Insights == nil {
		t.Error("Insights is nil, want empty slice")
	}
}

// FindPattern returns the pattern for a category, failing the test when
// it is absent.
func FindPattern(t *testing.T, patterns []model.Pattern, category string) model.Pattern {
	t.Helper()
	for _, p := range patterns {
		if p.Category == category {
			return p
		}
	}
	t.Fatalf("pattern for category %q not found in %d patterns", category, len(patterns))
	return model.Pattern{}
}

// FindPair returns the correlation pair for two factors in either order,
// failing the test when it is absent.
func FindPair(t *testing.T, pairs []model.FactorPair, a, b string) model.FactorPair {
	t.Helper()
	for _, p := range pairs {
		if (p.FactorA == a && p.FactorB == b) || (p.FactorA == b && p.FactorB == a) {
			return p
		}
	}
	t.Fatalf("correlation pair (%s, %s) not found in %d pairs", a, b, len(pairs))
	return model.FactorPair{}
}
