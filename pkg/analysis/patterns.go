package analysis

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/mverbeek/sensetrack/pkg/config"
	"github.com/mverbeek/sensetrack/pkg/metrics"
	"github.com/mverbeek/sensetrack/pkg/model"
)

type categoryGroup struct {
	category    string
	intensities []float64
	times       []time.Time
	ids         []string
}

// DetectEmotionPatterns groups emotion entries by label and scores each
// group. Returns an empty slice for empty input.
func DetectEmotionPatterns(emotions []model.EmotionEntry, cfg config.Config) []model.Pattern {
	defer metrics.Timer(metrics.PatternDetection)()

	groups := make(map[string]*categoryGroup)
	for _, e := range emotions {
		g := groups[string(e.Emotion)]
		if g == nil {
			g = &categoryGroup{category: string(e.Emotion)}
			groups[string(e.Emotion)] = g
		}
		g.intensities = append(g.intensities, float64(e.Intensity))
		g.times = append(g.times, e.Timestamp.Time())
		g.ids = append(g.ids, e.ID)
	}
	return scoreGroups(groups, model.PatternEmotion, len(emotions), cfg)
}

// DetectSensoryPatterns groups sensory entries by channel/response and
// scores each group. Returns an empty slice for empty input.
func DetectSensoryPatterns(sensory []model.SensoryEntry, cfg config.Config) []model.Pattern {
	defer metrics.Timer(metrics.PatternDetection)()

	groups := make(map[string]*categoryGroup)
	for _, s := range sensory {
		key := string(s.Channel) + "/" + string(s.Response)
		g := groups[key]
		if g == nil {
			g = &categoryGroup{category: key}
			groups[key] = g
		}
		g.intensities = append(g.intensities, float64(s.Intensity))
		g.times = append(g.times, s.Timestamp.Time())
		g.ids = append(g.ids, s.ID)
	}
	return scoreGroups(groups, model.PatternSensory, len(sensory), cfg)
}

func scoreGroups(groups map[string]*categoryGroup, kind model.PatternKind, total int, cfg config.Config) []model.Pattern {
	patterns := make([]model.Pattern, 0, len(groups))
	for _, g := range groups {
		patterns = append(patterns, scoreGroup(g, kind, total, cfg))
	}
	// Deterministic order: strongest first, category as tiebreak.
	sort.Slice(patterns, func(i, j int) bool {
		if patterns[i].Confidence != patterns[j].Confidence {
			return patterns[i].Confidence > patterns[j].Confidence
		}
		return patterns[i].Category < patterns[j].Category
	})
	return patterns
}

func scoreGroup(g *categoryGroup, kind model.PatternKind, total int, cfg config.Config) model.Pattern {
	first, last := g.times[0], g.times[0]
	for _, t := range g.times {
		if t.Before(first) {
			first = t
		}
		if t.After(last) {
			last = t
		}
	}
	spanDays := observedDays(g.times)

	strength, hasStrength := trendStrength(g.times, g.intensities)
	conf := Score(ConfidenceInputs{
		DataPoints:         len(g.intensities),
		MinDataPoints:      cfg.MinDataPoints,
		TimeSpanDays:       spanDays,
		RecommendedDays:    float64(cfg.RecommendedTimeSpanDays),
		PatternStrength:    strength,
		HasPatternStrength: hasStrength,
	})

	frequency := 0.0
	if total > 0 {
		frequency = float64(len(g.intensities)) / float64(total)
	}

	return model.Pattern{
		Kind:         kind,
		Category:     g.category,
		Count:        len(g.intensities),
		Frequency:    frequency,
		AvgIntensity: stat.Mean(g.intensities, nil),
		TimeSpanDays: spanDays,
		Confidence:   conf.Overall,
		Strength:     Strength(conf.Overall),
		FirstSeen:    model.At(first),
		LastSeen:     model.At(last),
	}
}

// trendStrength fits intensity over time and returns the fit's R².
// Reports false when the group is too small or time does not vary, in
// which case the pattern carries no fit component.
func trendStrength(times []time.Time, values []float64) (float64, bool) {
	if len(times) < 3 {
		return 0, false
	}
	xs := make([]float64, len(times))
	base := times[0]
	varies := false
	for i, t := range times {
		xs[i] = t.Sub(base).Hours()
		if i > 0 && xs[i] != xs[0] {
			varies = true
		}
	}
	if !varies {
		return 0, false
	}
	alpha, beta := stat.LinearRegression(xs, values, nil, false)
	r2 := stat.RSquared(xs, values, nil, alpha, beta)
	if r2 != r2 { // NaN when values have zero variance
		return 0, false
	}
	return clamp01(r2), true
}

// observedDays counts the distinct calendar days (UTC) carrying at least
// one observation. Fifteen entries in one afternoon are one observed day,
// not fifteen; the time-span confidence component rewards sustained
// observation, not bursts.
func observedDays(times []time.Time) float64 {
	days := make(map[string]struct{}, len(times))
	for _, t := range times {
		days[t.UTC().Format("2006-01-02")] = struct{}{}
	}
	return float64(len(days))
}
