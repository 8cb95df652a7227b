package coordinator

import "github.com/mverbeek/sensetrack/pkg/model"

// Msg is the closed set of messages the compute worker sends back to the
// coordinator: Progress, Partial, Complete, Error. The coordinator
// matches on the concrete type exhaustively; there is no payload
// inspection beyond the variant itself.
type Msg interface {
	isMsg()
}

// ProgressMsg is a heartbeat: the worker is alive and has entered the
// named stage. Carries no result payload.
type ProgressMsg struct {
	Key   string
	Seq   uint64
	Stage string
}

// PartialMsg carries one stage's finished output while later stages are
// still running.
type PartialMsg struct {
	Key     string
	Seq     uint64
	Payload Partial
}

// CompleteMsg carries the fully assembled result for a request.
type CompleteMsg struct {
	Key    string
	Seq    uint64
	Result *model.AnalyticsResult
}

// ErrorMsg reports a failed request. Fault marks a runtime fault at the
// worker boundary (a panic), after which the worker is discarded.
type ErrorMsg struct {
	Key   string
	Seq   uint64
	Err   error
	Fault bool
}

func (ProgressMsg) isMsg() {}
func (PartialMsg) isMsg()  {}
func (CompleteMsg) isMsg() {}
func (ErrorMsg) isMsg()    {}

// Partial is one stage's output. Only the fields a stage produced are
// non-nil; the accumulator overwrites whole fields, never concatenates
// across partials.
type Partial struct {
	Patterns      []model.Pattern
	Correlations  *model.CorrelationReport
	Environmental []model.FactorPair
	Anomalies     []model.Anomaly
	Predictions   []model.PredictiveInsight
}

// accumulator folds partial messages into a running result so observers
// polling mid-computation see forward-only progress.
type accumulator struct {
	result *model.AnalyticsResult
}

func newAccumulator(key string) *accumulator {
	return &accumulator{result: model.NewResult(key)}
}

func (a *accumulator) apply(p Partial) {
	if p.Patterns != nil {
		a.result.Patterns = p.Patterns
	}
	if p.Correlations != nil {
		a.result.Correlations = *p.Correlations
	}
	if p.Environmental != nil {
		a.result.EnvironmentalCorrelations = p.Environmental
	}
	if p.Anomalies != nil {
		a.result.Anomalies = p.Anomalies
	}
	if p.Predictions != nil {
		a.result.PredictiveInsights = p.Predictions
	}
}

// snapshot returns a copy safe to hand to observers; the underlying
// slices are never mutated after a partial is applied.
func (a *accumulator) snapshot() *model.AnalyticsResult {
	cp := *a.result
	cp.Normalize()
	return &cp
}
