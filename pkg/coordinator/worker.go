package coordinator

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/mverbeek/sensetrack/pkg/analysis"
	"github.com/mverbeek/sensetrack/pkg/config"
	"github.com/mverbeek/sensetrack/pkg/model"
)

// WorkerError wraps a failure inside the compute worker with its stage
// and whether it was a runtime fault (panic) at the worker boundary.
type WorkerError struct {
	Stage string
	Cause error
	Fault bool
	Time  time.Time
}

func (e *WorkerError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Cause)
}

func (e *WorkerError) Unwrap() error {
	return e.Cause
}

// job is one unit of work handed to the worker. Replies for the job flow
// over its own channel; ctx abandons the job when the coordinator has
// stopped waiting for it.
type job struct {
	ctx     context.Context
	key     string
	seq     uint64
	req     model.AnalyticsRequest
	cfg     config.Config
	replies chan Msg
}

// worker is the single background compute goroutine owned by a
// coordinator. Jobs are processed serially in dispatch order.
type worker struct {
	engine ComputeEngine
	jobs   chan job
	log    *eventLogger

	ctx  context.Context
	done chan struct{}
}

func newWorker(ctx context.Context, engine ComputeEngine, logger *eventLogger) *worker {
	return &worker{
		engine: engine,
		jobs:   make(chan job, 4),
		log:    logger,
		ctx:    ctx,
		done:   make(chan struct{}),
	}
}

func (w *worker) start() {
	go w.run()
}

func (w *worker) run() {
	defer close(w.done)
	for {
		select {
		case <-w.ctx.Done():
			return
		case j := <-w.jobs:
			w.process(j)
		}
	}
}

func (w *worker) process(j job) {
	if werr := safeCompute("analyze", func() error { return w.compute(j) }); werr != nil {
		if j.ctx.Err() != nil && !werr.Fault {
			// The coordinator abandoned this job; nobody is listening.
			w.log.event(LogLevelDebug, "job_abandoned", map[string]any{
				"key": keyPrefix(j.key),
				"seq": j.seq,
			})
			return
		}
		w.log.event(LogLevelError, "worker_error", map[string]any{
			"key":   keyPrefix(j.key),
			"seq":   j.seq,
			"fault": werr.Fault,
			"error": werr.Error(),
		})
		j.send(ErrorMsg{Key: j.key, Seq: j.seq, Err: werr, Fault: werr.Fault})
	}
}

// compute runs the pipeline stage by stage, emitting a heartbeat before
// each stage and the stage's output as a partial once it finishes.
func (w *worker) compute(j job) error {
	acc := newAccumulator(j.key)

	j.send(ProgressMsg{Key: j.key, Seq: j.seq, Stage: "patterns"})
	if err := j.ctx.Err(); err != nil {
		return err
	}
	patterns := w.engine.Patterns(j.req, j.cfg)
	acc.apply(Partial{Patterns: patterns})
	j.send(PartialMsg{Key: j.key, Seq: j.seq, Payload: Partial{Patterns: patterns}})

	j.send(ProgressMsg{Key: j.key, Seq: j.seq, Stage: "correlations"})
	if err := j.ctx.Err(); err != nil {
		return err
	}
	report := w.engine.Correlations(j.req, j.cfg)
	environmental := analysis.EnvironmentalCorrelations(report)
	acc.apply(Partial{Correlations: &report, Environmental: environmental})
	j.send(PartialMsg{Key: j.key, Seq: j.seq, Payload: Partial{Correlations: &report, Environmental: environmental}})

	j.send(ProgressMsg{Key: j.key, Seq: j.seq, Stage: "anomalies"})
	if err := j.ctx.Err(); err != nil {
		return err
	}
	anomalies := w.engine.Anomalies(j.req, j.cfg)
	acc.apply(Partial{Anomalies: anomalies})
	j.send(PartialMsg{Key: j.key, Seq: j.seq, Payload: Partial{Anomalies: anomalies}})

	j.send(ProgressMsg{Key: j.key, Seq: j.seq, Stage: "predictions"})
	if err := j.ctx.Err(); err != nil {
		return err
	}
	predictions := w.engine.Predictions(j.req, j.cfg)
	acc.apply(Partial{Predictions: predictions})
	j.send(PartialMsg{Key: j.key, Seq: j.seq, Payload: Partial{Predictions: predictions}})

	result := acc.snapshot()
	result.Insights = analysis.BuildInsights(result)
	if j.req.IsEmpty() {
		result.Insights = []string{analysis.DefaultInsight}
	}
	result.CacheKey = j.key
	j.send(CompleteMsg{Key: j.key, Seq: j.seq, Result: result})
	return nil
}

// send delivers a message unless the job has been abandoned. Replies are
// buffered generously; the ctx branch keeps an abandoned job from
// blocking the worker forever.
func (j job) send(msg Msg) {
	select {
	case j.replies <- msg:
	case <-j.ctx.Done():
	}
}

// safeCompute runs fn behind a panic fence. A panic comes back as a
// WorkerError with Fault set; a plain error comes back without it.
func safeCompute(stage string, fn func() error) *WorkerError {
	var werr *WorkerError
	func() {
		defer func() {
			if r := recover(); r != nil {
				werr = &WorkerError{
					Stage: stage,
					Cause: fmt.Errorf("panic: %v\n%s", r, debug.Stack()),
					Fault: true,
					Time:  time.Now(),
				}
			}
		}()
		if err := fn(); err != nil {
			werr = &WorkerError{Stage: stage, Cause: err, Time: time.Now()}
		}
	}()
	return werr
}
