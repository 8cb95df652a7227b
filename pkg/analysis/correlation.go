package analysis

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/mverbeek/sensetrack/pkg/config"
	"github.com/mverbeek/sensetrack/pkg/metrics"
	"github.com/mverbeek/sensetrack/pkg/model"
)

// Factor names, in matrix order. Environmental readings first, then the
// per-session behavioral aggregates.
const (
	FactorNoise            = "noise"
	FactorLight            = "light"
	FactorTemperature      = "temperature"
	FactorCrowd            = "crowd"
	FactorEmotionIntensity = "emotion_intensity"
	FactorSensoryIntensity = "sensory_intensity"
)

var factorOrder = []string{
	FactorNoise,
	FactorLight,
	FactorTemperature,
	FactorCrowd,
	FactorEmotionIntensity,
	FactorSensoryIntensity,
}

var environmentalFactors = map[string]bool{
	FactorNoise:       true,
	FactorLight:       true,
	FactorTemperature: true,
	FactorCrowd:       true,
}

// Significance buckets over |r|.
const (
	highSignificance   = 0.7
	mediumSignificance = 0.5
)

// factorExtractor pulls one numeric factor from a session. ok is false
// when the session carries no value for the factor; such sessions drop
// out of pairs involving it (pairwise-complete observations).
type factorExtractor func(model.TrackingEntry) (float64, bool)

var extractors = map[string]factorExtractor{
	FactorNoise: func(e model.TrackingEntry) (float64, bool) {
		if e.Environment == nil {
			return 0, false
		}
		return e.Environment.Noise, true
	},
	FactorLight: func(e model.TrackingEntry) (float64, bool) {
		if e.Environment == nil {
			return 0, false
		}
		return e.Environment.Light, true
	},
	FactorTemperature: func(e model.TrackingEntry) (float64, bool) {
		if e.Environment == nil {
			return 0, false
		}
		return e.Environment.Temperature, true
	},
	FactorCrowd: func(e model.TrackingEntry) (float64, bool) {
		if e.Environment == nil {
			return 0, false
		}
		return e.Environment.Crowd, true
	},
	FactorEmotionIntensity: func(e model.TrackingEntry) (float64, bool) {
		if len(e.Emotions) == 0 {
			return 0, false
		}
		sum := 0.0
		for _, em := range e.Emotions {
			sum += float64(em.Intensity)
		}
		return sum / float64(len(e.Emotions)), true
	},
	FactorSensoryIntensity: func(e model.TrackingEntry) (float64, bool) {
		if len(e.Sensory) == 0 {
			return 0, false
		}
		sum := 0.0
		for _, s := range e.Sensory {
			sum += float64(s.Intensity)
		}
		return sum / float64(len(e.Sensory)), true
	},
}

// ComputeCorrelations builds the symmetric Pearson correlation matrix
// over the factor set plus the filtered significant pairs.
//
// Below cfg.CorrelationMinEntries the computation is skipped entirely and
// the report carries an explicit insufficient-data signal: an empty
// matrix would be indistinguishable from "no correlations found".
// Zero-variance pairs are skipped, never NaN-propagated.
func ComputeCorrelations(entries []model.TrackingEntry, cfg config.Config) model.CorrelationReport {
	defer metrics.Timer(metrics.CorrelationMatrix)()

	report := model.CorrelationReport{
		Significant: []model.FactorPair{},
		EntryCount:  len(entries),
		MinEntries:  cfg.CorrelationMinEntries,
	}

	if len(entries) < cfg.CorrelationMinEntries {
		report.InsufficientData = true
		report.Reason = fmt.Sprintf("need at least %d tracking entries for correlation, have %d",
			cfg.CorrelationMinEntries, len(entries))
		return report
	}

	report.Factors = append([]string(nil), factorOrder...)
	n := len(factorOrder)
	report.Matrix = make([][]float64, n)
	for i := range report.Matrix {
		report.Matrix[i] = make([]float64, n)
		report.Matrix[i][i] = 1
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			r, samples, ok := pairCorrelation(entries, factorOrder[i], factorOrder[j], cfg.CorrelationMinEntries)
			if !ok {
				continue
			}
			report.Matrix[i][j] = r
			report.Matrix[j][i] = r
			if math.Abs(r) >= cfg.CorrelationThreshold {
				report.Significant = append(report.Significant, model.FactorPair{
					FactorA:      factorOrder[i],
					FactorB:      factorOrder[j],
					R:            r,
					Samples:      samples,
					Significance: significanceOf(r),
				})
			}
		}
	}

	sort.Slice(report.Significant, func(a, b int) bool {
		ra, rb := math.Abs(report.Significant[a].R), math.Abs(report.Significant[b].R)
		if ra != rb {
			return ra > rb
		}
		if report.Significant[a].FactorA != report.Significant[b].FactorA {
			return report.Significant[a].FactorA < report.Significant[b].FactorA
		}
		return report.Significant[a].FactorB < report.Significant[b].FactorB
	})
	return report
}

// EnvironmentalCorrelations filters the significant pairs down to those
// linking an environmental reading to a behavioral aggregate.
func EnvironmentalCorrelations(report model.CorrelationReport) []model.FactorPair {
	out := []model.FactorPair{}
	for _, p := range report.Significant {
		if environmentalFactors[p.FactorA] != environmentalFactors[p.FactorB] {
			out = append(out, p)
		}
	}
	return out
}

// pairCorrelation computes Pearson r over sessions where both factors are
// present. ok is false when too few paired samples exist or either side
// has zero variance.
func pairCorrelation(entries []model.TrackingEntry, fa, fb string, minSamples int) (r float64, samples int, ok bool) {
	extractA, extractB := extractors[fa], extractors[fb]
	var xs, ys []float64
	for _, e := range entries {
		va, okA := extractA(e)
		vb, okB := extractB(e)
		if okA && okB {
			xs = append(xs, va)
			ys = append(ys, vb)
		}
	}
	if len(xs) < minSamples {
		return 0, len(xs), false
	}
	if !hasVariance(xs) || !hasVariance(ys) {
		return 0, len(xs), false
	}
	r = stat.Correlation(xs, ys, nil)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0, len(xs), false
	}
	return r, len(xs), true
}

func hasVariance(vals []float64) bool {
	for i := 1; i < len(vals); i++ {
		if vals[i] != vals[0] {
			return true
		}
	}
	return false
}

func significanceOf(r float64) model.Significance {
	switch abs := math.Abs(r); {
	case abs >= highSignificance:
		return model.SignificanceHigh
	case abs >= mediumSignificance:
		return model.SignificanceMedium
	default:
		return model.SignificanceLow
	}
}
