package analysis

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/mverbeek/sensetrack/pkg/config"
	"github.com/mverbeek/sensetrack/pkg/metrics"
	"github.com/mverbeek/sensetrack/pkg/model"
)

// Rolling baseline parameters: how many prior observations feed the
// baseline and how many are required before deviation is judged at all.
const (
	baselineWindow     = 10
	baselineMinEntries = 3
)

type observation struct {
	id       string
	category string
	value    float64
	at       time.Time
}

// DetectAnomalies flags entries whose intensity deviates beyond
// cfg.AnomalyStdDevs from the rolling per-category baseline of the
// observations preceding them. Empty input yields an empty slice.
func DetectAnomalies(emotions []model.EmotionEntry, sensory []model.SensoryEntry, cfg config.Config) []model.Anomaly {
	defer metrics.Timer(metrics.AnomalyDetection)()

	anomalies := []model.Anomaly{}

	emotionObs := make([]observation, 0, len(emotions))
	for _, e := range emotions {
		emotionObs = append(emotionObs, observation{
			id:       e.ID,
			category: string(e.Emotion),
			value:    float64(e.Intensity),
			at:       e.Timestamp.Time(),
		})
	}
	anomalies = append(anomalies, detect(emotionObs, model.PatternEmotion, cfg.AnomalyStdDevs)...)

	sensoryObs := make([]observation, 0, len(sensory))
	for _, s := range sensory {
		sensoryObs = append(sensoryObs, observation{
			id:       s.ID,
			category: string(s.Channel),
			value:    float64(s.Intensity),
			at:       s.Timestamp.Time(),
		})
	}
	anomalies = append(anomalies, detect(sensoryObs, model.PatternSensory, cfg.AnomalyStdDevs)...)

	sort.Slice(anomalies, func(i, j int) bool {
		ti, tj := anomalies[i].Timestamp.Time(), anomalies[j].Timestamp.Time()
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return anomalies[i].EntryID < anomalies[j].EntryID
	})
	return anomalies
}

func detect(obs []observation, kind model.PatternKind, threshold float64) []model.Anomaly {
	byCategory := make(map[string][]observation)
	for _, o := range obs {
		byCategory[o.category] = append(byCategory[o.category], o)
	}

	var anomalies []model.Anomaly
	for category, series := range byCategory {
		sort.Slice(series, func(i, j int) bool {
			if !series[i].at.Equal(series[j].at) {
				return series[i].at.Before(series[j].at)
			}
			return series[i].id < series[j].id
		})

		for i, o := range series {
			start := i - baselineWindow
			if start < 0 {
				start = 0
			}
			prior := series[start:i]
			if len(prior) < baselineMinEntries {
				continue
			}

			window := make([]float64, len(prior))
			for k, p := range prior {
				window[k] = p.value
			}
			mean, std := stat.MeanStdDev(window, nil)
			if std == 0 || math.IsNaN(std) {
				// Flat baseline: any departure is notable but has no
				// z-score; skip rather than divide by zero.
				continue
			}

			z := math.Abs(o.value-mean) / std
			if z < threshold {
				continue
			}
			anomalies = append(anomalies, model.Anomaly{
				Kind:      kind,
				Category:  category,
				EntryID:   o.id,
				Timestamp: model.At(o.at),
				Value:     o.value,
				Baseline:  mean,
				Deviation: z,
				Severity:  severityOf(z, threshold),
			})
		}
	}
	return anomalies
}

// severityOf buckets a z-score relative to the configured threshold.
func severityOf(z, threshold float64) model.AnomalySeverity {
	switch {
	case z >= threshold+1.5:
		return model.AnomalySevere
	case z >= threshold+0.5:
		return model.AnomalyModerate
	default:
		return model.AnomalyMild
	}
}
