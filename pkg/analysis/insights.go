package analysis

import (
	"fmt"

	"github.com/mverbeek/sensetrack/pkg/model"
)

// DefaultInsight is returned when a request carries no observations.
// Consumers always get at least one human-readable line.
const DefaultInsight = "Not enough observation data yet. Record emotions, sensory responses, or tracking sessions to begin seeing patterns."

// BuildInsights renders the computed result into human-readable summary
// lines. Always returns at least one line.
func BuildInsights(result *model.AnalyticsResult) []string {
	insights := []string{}

	if n := len(result.Patterns); n > 0 {
		top := result.Patterns[0]
		insights = append(insights, fmt.Sprintf(
			"Detected %d behavioral pattern(s); strongest is %q (%s, avg intensity %.1f over %.0f observed day(s)).",
			n, top.Category, top.Strength, top.AvgIntensity, top.TimeSpanDays))
	}

	if result.Correlations.InsufficientData {
		insights = append(insights, result.Correlations.Reason)
	} else if n := len(result.Correlations.Significant); n > 0 {
		top := result.Correlations.Significant[0]
		insights = append(insights, fmt.Sprintf(
			"Found %d significant factor correlation(s); strongest links %s and %s (r=%.2f, %s significance).",
			n, top.FactorA, top.FactorB, top.R, top.Significance))
	}

	if n := len(result.EnvironmentalCorrelations); n > 0 {
		insights = append(insights, fmt.Sprintf(
			"%d correlation(s) tie environmental conditions to behavioral intensity; environment adjustments may help.", n))
	}

	for _, in := range result.PredictiveInsights {
		insights = append(insights, in.Recommendations...)
	}

	if n := len(result.Anomalies); n > 0 {
		severe := 0
		for _, a := range result.Anomalies {
			if a.Severity == model.AnomalySevere {
				severe++
			}
		}
		line := fmt.Sprintf("Flagged %d unusual observation(s) deviating from their category baseline.", n)
		if severe > 0 {
			line = fmt.Sprintf("Flagged %d unusual observation(s), %d severe; review the flagged entries.", n, severe)
		}
		insights = append(insights, line)
	}

	if len(insights) == 0 {
		insights = append(insights, DefaultInsight)
	}
	return insights
}
