// Package analysis implements the deterministic computation core:
// pattern detection, Pearson correlation, anomaly flagging, predictive
// trend fitting, and the shared confidence scoring that ties them
// together. Everything here is pure with respect to its inputs; the same
// request and config always produce the same result.
package analysis

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/mverbeek/sensetrack/pkg/config"
	"github.com/mverbeek/sensetrack/pkg/metrics"
	"github.com/mverbeek/sensetrack/pkg/model"
)

// Engine runs the analytics pipeline over a request. The zero value is
// ready to use; Engine carries no state between calls.
type Engine struct{}

// NewEngine returns a ready Engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Analyze runs every stage over req and assembles the full result. The
// stages are independent and run concurrently; ctx cancellation aborts
// the remaining work and returns ctx.Err().
//
// An empty request short-circuits to a well-formed empty result carrying
// the default insight.
func (e *Engine) Analyze(ctx context.Context, req model.AnalyticsRequest, cfg config.Config) (*model.AnalyticsResult, error) {
	defer metrics.Timer(metrics.EngineAnalyze)()

	result := model.NewResult("")
	if req.IsEmpty() {
		result.Insights = []string{DefaultInsight}
		return result, nil
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		result.Patterns = e.Patterns(req, cfg)
		return nil
	})
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		report := e.Correlations(req, cfg)
		result.Correlations = report
		result.EnvironmentalCorrelations = EnvironmentalCorrelations(report)
		return nil
	})
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		result.Anomalies = e.Anomalies(req, cfg)
		return nil
	})
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		result.PredictiveInsights = e.Predictions(req, cfg)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	result.Insights = BuildInsights(result)
	result.Normalize()
	return result, nil
}

// Patterns runs emotion and sensory pattern detection, emotion patterns
// first. Exposed piecewise so callers can stream stage results as they
// become available.
func (e *Engine) Patterns(req model.AnalyticsRequest, cfg config.Config) []model.Pattern {
	patterns := DetectEmotionPatterns(req.Emotions, cfg)
	return append(patterns, DetectSensoryPatterns(req.SensoryInputs, cfg)...)
}

// Correlations computes the factor correlation report for the request's
// tracking sessions.
func (e *Engine) Correlations(req model.AnalyticsRequest, cfg config.Config) model.CorrelationReport {
	return ComputeCorrelations(req.Entries, cfg)
}

// Anomalies flags observations deviating from their category baselines.
func (e *Engine) Anomalies(req model.AnalyticsRequest, cfg config.Config) []model.Anomaly {
	return DetectAnomalies(req.Emotions, req.SensoryInputs, cfg)
}

// Predictions fits recent-window trends for the intensity metrics.
func (e *Engine) Predictions(req model.AnalyticsRequest, cfg config.Config) []model.PredictiveInsight {
	return PredictTrends(req.Emotions, req.SensoryInputs, cfg)
}
