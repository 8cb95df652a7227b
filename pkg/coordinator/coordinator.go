// Package coordinator orchestrates analytics computation: it fingerprints
// each request, consults the result cache, dispatches misses to a single
// background compute worker guarded by a watchdog, and falls back to
// synchronous in-process computation when the worker is slow, faulted, or
// was never available. It is the only stateful, concurrency-aware
// component; everything below it is pure computation.
package coordinator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mverbeek/sensetrack/pkg/analysis"
	"github.com/mverbeek/sensetrack/pkg/config"
	"github.com/mverbeek/sensetrack/pkg/fingerprint"
	"github.com/mverbeek/sensetrack/pkg/metrics"
	"github.com/mverbeek/sensetrack/pkg/model"
	"github.com/mverbeek/sensetrack/pkg/rescache"
)

// ErrClosed is returned by RunAnalysis after Close.
var ErrClosed = errors.New("coordinator closed")

// ScopeTag marks every cache entry written by a coordinator, so the whole
// scope can be invalidated in one operation.
const ScopeTag = "scope:analytics"

// SubjectTag returns the cache tag for one student's entries.
func SubjectTag(studentID string) string {
	return "student:" + studentID
}

// ComputeEngine is the computation surface the coordinator drives, both
// from the background worker (stage by stage) and from the synchronous
// fallback path (Analyze).
type ComputeEngine interface {
	Analyze(ctx context.Context, req model.AnalyticsRequest, cfg config.Config) (*model.AnalyticsResult, error)
	Patterns(req model.AnalyticsRequest, cfg config.Config) []model.Pattern
	Correlations(req model.AnalyticsRequest, cfg config.Config) model.CorrelationReport
	Anomalies(req model.AnalyticsRequest, cfg config.Config) []model.Anomaly
	Predictions(req model.AnalyticsRequest, cfg config.Config) []model.PredictiveInsight
}

// Degraded-mode notices surfaced in State.Notice. Distinct from errors:
// the result is valid, the path that produced it was not the normal one.
const (
	NoticeWatchdogFallback = "analysis timed out; result computed via fallback"
	NoticeWorkerLost       = "background worker lost; result computed via fallback"
	NoticeFallbackFailed   = "analysis failed; empty result returned"
)

// State is the observable surface for presentation layers: the most
// recent result, whether a computation is in flight, and a stringly-typed
// error slot that is empty on success.
type State struct {
	Results     *model.AnalyticsResult
	IsAnalyzing bool
	Err         string
	Notice      string
}

// Health is a point-in-time snapshot of coordinator liveness.
type Health struct {
	WorkerAlive     bool      `json:"worker_alive"`
	WorkerLost      bool      `json:"worker_lost"`
	Dispatches      uint64    `json:"dispatches"`
	Fallbacks       uint64    `json:"fallbacks"`
	Timeouts        uint64    `json:"timeouts"`
	CacheHits       uint64    `json:"cache_hits"`
	StartedAt       time.Time `json:"started_at"`
	LastCompletedAt time.Time `json:"last_completed_at,omitempty"`
}

// Option configures a Coordinator.
type Option func(*options)

type options struct {
	engine    ComputeEngine
	spawnHook func() error
	watchdog  time.Duration
}

// WithEngine replaces the default compute engine.
func WithEngine(e ComputeEngine) Option {
	return func(o *options) {
		if e != nil {
			o.engine = e
		}
	}
}

// WithSpawnHook runs before the background worker starts. A non-nil
// error leaves the coordinator permanently in fallback mode, logged once
// and never surfaced to callers.
func WithSpawnHook(hook func() error) Option {
	return func(o *options) { o.spawnHook = hook }
}

// WithWatchdog overrides the config-derived watchdog window, bypassing
// the clamp. Intended for tests that need sub-second expiry.
func WithWatchdog(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.watchdog = d
		}
	}
}

// Coordinator owns one background compute worker and one result cache.
// Safe for concurrent use. Close is mandatory: it terminates the worker
// and cancels any pending watchdog.
type Coordinator struct {
	engine           ComputeEngine
	cache            *rescache.Cache[*model.AnalyticsResult]
	cfgStore         *config.Store
	log              *eventLogger
	watchdogOverride time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	state       State
	subs        map[int]func(State)
	nextSubID   int
	latestSeq   map[string]uint64
	worker      *worker
	workerLost  bool
	closed      bool
	unsubscribe func()

	seq             atomic.Uint64
	dispatches      atomic.Uint64
	fallbacks       atomic.Uint64
	timeouts        atomic.Uint64
	cacheHits       atomic.Uint64
	startedAt       time.Time
	lastCompletedAt atomic.Int64 // unix nanos
}

// New creates a coordinator over the given cache and config store. The
// cache is injected, never ambient: one cache instance per session is the
// caller's composition decision.
func New(cache *rescache.Cache[*model.AnalyticsResult], store *config.Store, opts ...Option) *Coordinator {
	o := options{engine: analysis.NewEngine()}
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		engine:           o.engine,
		cache:            cache,
		cfgStore:         store,
		log:              newEventLogger(),
		watchdogOverride: o.watchdog,
		ctx:              ctx,
		cancel:           cancel,
		subs:             make(map[int]func(State)),
		latestSeq:        make(map[string]uint64),
		startedAt:        time.Now(),
	}
	c.log.openTrace()

	if o.spawnHook != nil {
		if err := o.spawnHook(); err != nil {
			c.workerLost = true
			c.log.event(LogLevelError, "worker_init_failed", map[string]any{
				"error": err.Error(),
			})
		}
	}
	if !c.workerLost {
		c.worker = newWorker(ctx, c.engine, c.log)
		c.worker.start()
	}

	c.unsubscribe = store.Subscribe(func(cfg config.Config) {
		if cfg.Cache.InvalidateOnConfigChange {
			c.cache.Clear()
			c.log.event(LogLevelInfo, "cache_cleared_on_config_change", nil)
		}
	})

	c.log.event(LogLevelInfo, "coordinator_start", map[string]any{
		"worker": !c.workerLost,
	})
	return c
}

// RunAnalysis computes (or retrieves) the analytics result for req. The
// observable state transitions to analyzing immediately and resolves to
// a terminal state before RunAnalysis returns; the result is also
// returned directly for callers that prefer it.
func (c *Coordinator) RunAnalysis(ctx context.Context, req model.AnalyticsRequest) (*model.AnalyticsResult, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.mu.Unlock()

	c.setState(func(s *State) {
		s.IsAnalyzing = true
		s.Err = ""
		s.Notice = ""
	})

	key := fingerprint.Request(req)
	cfg := c.cfgStore.Get()

	if cached, ok := c.cache.Get(key); ok {
		c.cacheHits.Add(1)
		c.log.event(LogLevelDebug, "cache_hit", map[string]any{
			"key": keyPrefix(key),
		})
		c.publishCompleted(cached, "")
		return cached, nil
	}

	seq := c.seq.Add(1)
	c.mu.Lock()
	c.latestSeq[key] = seq
	workerLost := c.workerLost
	w := c.worker
	c.mu.Unlock()

	if workerLost || w == nil || req.IsEmpty() {
		return c.fallback(ctx, req, cfg, key, seq, "")
	}
	return c.dispatch(ctx, w, req, cfg, key, seq)
}

// dispatch hands the request to the background worker and drives the
// per-request watchdog: every inbound message resets the timer, expiry
// abandons the worker's unit of work and falls back synchronously.
func (c *Coordinator) dispatch(ctx context.Context, w *worker, req model.AnalyticsRequest, cfg config.Config, key string, seq uint64) (*model.AnalyticsResult, error) {
	stopDispatchTimer := metrics.Timer(metrics.WorkerDispatch)

	jobCtx, cancelJob := context.WithCancel(c.ctx)
	defer cancelJob()

	j := job{
		ctx:     jobCtx,
		key:     key,
		seq:     seq,
		req:     req,
		cfg:     cfg,
		replies: make(chan Msg, 16),
	}

	watchdog := cfg.ClampedWatchdog()
	if c.watchdogOverride > 0 {
		watchdog = c.watchdogOverride
	}
	timer := time.NewTimer(watchdog)
	defer timer.Stop()

	select {
	case w.jobs <- j:
		c.dispatches.Add(1)
		c.log.event(LogLevelDebug, "dispatched", map[string]any{
			"key":         keyPrefix(key),
			"seq":         seq,
			"watchdog_ms": watchdog.Milliseconds(),
		})
	case <-timer.C:
		c.timeouts.Add(1)
		c.log.event(LogLevelWarn, "dispatch_queue_stalled", map[string]any{
			"key": keyPrefix(key),
		})
		return c.fallback(ctx, req, cfg, key, seq, NoticeWatchdogFallback)
	case <-ctx.Done():
		return c.errored(key, ctx.Err())
	case <-c.ctx.Done():
		return nil, ErrClosed
	}

	acc := newAccumulator(key)
	for {
		select {
		case msg := <-j.replies:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(watchdog)

			switch m := msg.(type) {
			case ProgressMsg:
				c.log.event(LogLevelTrace, "progress", map[string]any{
					"key":   keyPrefix(key),
					"stage": m.Stage,
				})
			case PartialMsg:
				acc.apply(m.Payload)
				c.setState(func(s *State) {
					s.Results = acc.snapshot()
				})
			case CompleteMsg:
				stopDispatchTimer()
				return c.complete(key, seq, req.Subjects(), m.Result, "")
			case ErrorMsg:
				if m.Fault {
					c.discardWorker(m.Err)
					return c.fallback(ctx, req, cfg, key, seq, NoticeWorkerLost)
				}
				return c.errored(key, m.Err)
			}

		case <-timer.C:
			c.timeouts.Add(1)
			cancelJob()
			c.log.event(LogLevelWarn, "watchdog_expired", map[string]any{
				"key":         keyPrefix(key),
				"seq":         seq,
				"watchdog_ms": watchdog.Milliseconds(),
			})
			return c.fallback(ctx, req, cfg, key, seq, NoticeWatchdogFallback)

		case <-ctx.Done():
			return c.errored(key, ctx.Err())

		case <-c.ctx.Done():
			return nil, ErrClosed
		}
	}
}

// fallback computes synchronously on the calling goroutine. A failure
// here is terminal: the caller gets a well-formed empty result with an
// explanatory insight, never a propagated panic.
func (c *Coordinator) fallback(ctx context.Context, req model.AnalyticsRequest, cfg config.Config, key string, seq uint64, notice string) (*model.AnalyticsResult, error) {
	defer metrics.Timer(metrics.FallbackCompute)()
	c.fallbacks.Add(1)

	var result *model.AnalyticsResult
	werr := safeCompute("fallback", func() error {
		r, err := c.engine.Analyze(ctx, req, cfg)
		if err != nil {
			return err
		}
		result = r
		return nil
	})

	if werr != nil {
		if cause := werr.Unwrap(); errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded) {
			return c.errored(key, cause)
		}
		c.log.event(LogLevelError, "fallback_failed", map[string]any{
			"key":   keyPrefix(key),
			"error": werr.Error(),
		})
		result = model.NewResult(key)
		result.Insights = []string{
			"Analysis could not be completed; showing an empty result. Try again after reloading observations.",
		}
		// Never cache a failure shell; the next call should retry.
		c.publishCompleted(result, NoticeFallbackFailed)
		return result, nil
	}

	result.CacheKey = key
	return c.complete(key, seq, req.Subjects(), result, notice)
}

// complete publishes a terminal result and writes it through to the
// cache, tagged with the process scope and every referenced subject.
// A completion superseded by a newer request for the same key is
// discarded: no state update, no cache write.
func (c *Coordinator) complete(key string, seq uint64, subjects []string, result *model.AnalyticsResult, notice string) (*model.AnalyticsResult, error) {
	c.mu.Lock()
	stale := c.latestSeq[key] != seq
	c.mu.Unlock()
	if stale {
		c.log.event(LogLevelDebug, "stale_result_discarded", map[string]any{
			"key": keyPrefix(key),
			"seq": seq,
		})
		return result, nil
	}

	tags := make([]string, 0, len(subjects)+1)
	tags = append(tags, ScopeTag)
	for _, id := range subjects {
		tags = append(tags, SubjectTag(id))
	}
	c.cache.Set(key, result, tags, 0)

	c.lastCompletedAt.Store(time.Now().UnixNano())
	c.publishCompleted(result, notice)
	return result, nil
}

func (c *Coordinator) errored(key string, err error) (*model.AnalyticsResult, error) {
	c.log.event(LogLevelError, "request_errored", map[string]any{
		"key":   keyPrefix(key),
		"error": err.Error(),
	})
	c.setState(func(s *State) {
		s.IsAnalyzing = false
		s.Err = err.Error()
	})
	return nil, err
}

func (c *Coordinator) publishCompleted(result *model.AnalyticsResult, notice string) {
	c.setState(func(s *State) {
		s.Results = result
		s.IsAnalyzing = false
		s.Err = ""
		s.Notice = notice
	})
}

// discardWorker drops the worker reference permanently after a runtime
// fault. No recreation is attempted for the life of this coordinator;
// every later request uses the fallback path.
func (c *Coordinator) discardWorker(cause error) {
	c.mu.Lock()
	already := c.workerLost
	c.workerLost = true
	c.worker = nil
	c.mu.Unlock()
	if already {
		return
	}
	c.log.event(LogLevelError, "worker_discarded", map[string]any{
		"error": cause.Error(),
	})
}

// State returns the current observable state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe registers cb for synchronous notification on every state
// change and returns an unsubscribe function.
func (c *Coordinator) Subscribe(cb func(State)) func() {
	c.mu.Lock()
	id := c.nextSubID
	c.nextSubID++
	c.subs[id] = cb
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

func (c *Coordinator) setState(mutate func(*State)) {
	c.mu.Lock()
	mutate(&c.state)
	snapshot := c.state
	subs := make([]func(State), 0, len(c.subs))
	for _, cb := range c.subs {
		subs = append(subs, cb)
	}
	c.mu.Unlock()

	for _, cb := range subs {
		cb(snapshot)
	}
}

// InvalidateForSubject removes every cached result that references the
// given student. Returns the number of entries removed.
func (c *Coordinator) InvalidateForSubject(studentID string) int {
	return c.cache.InvalidateByTag(SubjectTag(studentID))
}

// ClearCache drops every cached result.
func (c *Coordinator) ClearCache() {
	c.cache.Clear()
}

// CacheStats exposes the cache counters for observability.
func (c *Coordinator) CacheStats() rescache.Stats {
	return c.cache.Stats()
}

// WorkerHealth reports coordinator liveness and throughput counters.
func (c *Coordinator) WorkerHealth() Health {
	c.mu.Lock()
	w := c.worker
	lost := c.workerLost
	c.mu.Unlock()

	alive := false
	if w != nil && !lost {
		select {
		case <-w.done:
		default:
			alive = true
		}
	}

	h := Health{
		WorkerAlive: alive,
		WorkerLost:  lost,
		Dispatches:  c.dispatches.Load(),
		Fallbacks:   c.fallbacks.Load(),
		Timeouts:    c.timeouts.Load(),
		CacheHits:   c.cacheHits.Load(),
		StartedAt:   c.startedAt,
	}
	if ns := c.lastCompletedAt.Load(); ns > 0 {
		h.LastCompletedAt = time.Unix(0, ns)
	}
	return h
}

// Close terminates the background worker, cancels any pending watchdog,
// and detaches the config subscription. Idempotent. Mandatory: a
// coordinator that is never closed leaks its worker goroutine.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	w := c.worker
	unsub := c.unsubscribe
	c.unsubscribe = nil
	c.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	c.cancel()

	if w != nil {
		select {
		case <-w.done:
		case <-time.After(5 * time.Second):
			c.log.event(LogLevelWarn, "shutdown_timeout", nil)
		}
	}

	c.log.event(LogLevelInfo, "coordinator_close", nil)
	c.log.closeTrace()
}
