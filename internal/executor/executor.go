// Package executor sends query and dispatch blocks to the generation
// collaborator and records the outcome on the block.
package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/starford/float/internal/apperr"
	"github.com/starford/float/internal/llm"
	"github.com/starford/float/internal/models"
)

// ErrorCode is stored on a block whenever the collaborator cannot be reached,
// rejects the call, or the credential is missing.
const ErrorCode = "CORE_CONNECTION_FAILED"

// ParseFailure marks a response that was received but was not valid JSON.
const ParseFailure = "PARSE_FAILURE"

// DefaultTimeout bounds a single collaborator call.
const DefaultTimeout = 20 * time.Second

// Outcome classifies a finished execution.
type Outcome string

// Execution outcomes.
const (
	OutcomeDone         Outcome = "done"
	OutcomeParseFailure Outcome = "parse_failure"
	OutcomeFailed       Outcome = "failed"
)

// Store is the part of the block store the executor needs.
type Store interface {
	Get(id string) (models.Block, bool)
	SetExecutionState(id string, p models.ExecutionPatch) error
}

// ContextSource serializes the reference graph sent with every request.
type ContextSource interface {
	Context() ([]byte, error)
}

// Run describes a finished execution.
type Run struct {
	BlockID    string
	Type       models.BlockType
	Outcome    Outcome
	ErrorCode  string
	Cause      error
	Duration   time.Duration
	FinishedAt time.Time
}

// Observer is told about every execution state change. run is nil when the
// block enters the loading state.
type Observer interface {
	ExecutionChanged(block models.Block, run *Run)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(block models.Block, run *Run)

// ExecutionChanged calls f.
func (f ObserverFunc) ExecutionChanged(block models.Block, run *Run) { f(block, run) }

// Executor runs blocks against a generator. At most one execution per block
// is in flight; executions of different blocks are independent.
type Executor struct {
	store     Store
	graph     ContextSource
	gen       llm.Generator
	logger    *slog.Logger
	timeout   time.Duration
	limiter   *rate.Limiter
	observers []Observer
	now       func() time.Time

	mu       sync.Mutex
	inflight map[string]uint64
	seq      uint64

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Option configures an Executor.
type Option func(*Executor)

// WithTimeout sets the per-call timeout. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithLimiter throttles collaborator calls.
func WithLimiter(l *rate.Limiter) Option {
	return func(e *Executor) { e.limiter = l }
}

// WithObserver registers an observer.
func WithObserver(o Observer) Option {
	return func(e *Executor) { e.observers = append(e.observers, o) }
}

// WithClock overrides the time source used for lastRun stamps.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

// New creates an Executor.
func New(store Store, graph ContextSource, gen llm.Generator, logger *slog.Logger, opts ...Option) *Executor {
	ctx, cancel := context.WithCancel(context.Background())
	e := &Executor{
		store:    store,
		graph:    graph,
		gen:      gen,
		logger:   logger,
		timeout:  DefaultTimeout,
		now:      time.Now,
		inflight: make(map[string]uint64),
		baseCtx:  ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs the block synchronously and returns its final state.
func (e *Executor) Execute(ctx context.Context, id string) (models.Block, error) {
	token, block, err := e.begin(id)
	if err != nil {
		return models.Block{}, err
	}
	e.run(ctx, block, token)
	final, _ := e.store.Get(id)
	return final, nil
}

// Start puts the block into the loading state and runs it in the background.
// Errors are returned only for invocations that were rejected.
func (e *Executor) Start(id string) error {
	token, block, err := e.begin(id)
	if err != nil {
		return err
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.run(e.baseCtx, block, token)
	}()
	return nil
}

// InFlight reports whether the block has an execution in progress.
func (e *Executor) InFlight(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.inflight[id]
	return ok
}

// Wait blocks until all background executions have finished.
func (e *Executor) Wait() {
	e.wg.Wait()
}

// Close cancels background executions and waits for them to record their
// failure.
func (e *Executor) Close() {
	e.cancel()
	e.wg.Wait()
}

func (e *Executor) begin(id string) (uint64, models.Block, error) {
	e.mu.Lock()
	if _, busy := e.inflight[id]; busy {
		e.mu.Unlock()
		rejectedTotal.WithLabelValues("in_flight").Inc()
		return 0, models.Block{}, fmt.Errorf("executor: %q: %w", id, apperr.ErrInFlight)
	}
	b, ok := e.store.Get(id)
	if !ok {
		e.mu.Unlock()
		return 0, models.Block{}, fmt.Errorf("executor: %q: %w", id, apperr.ErrNotFound)
	}
	if !b.Type.Executable() {
		e.mu.Unlock()
		rejectedTotal.WithLabelValues("not_executable").Inc()
		return 0, models.Block{}, fmt.Errorf("executor: %q (%s): %w", id, b.Type, apperr.ErrNotExecutable)
	}
	e.seq++
	token := e.seq
	e.inflight[id] = token
	loading := true
	if err := e.store.SetExecutionState(id, models.ExecutionPatch{Loading: &loading}); err != nil {
		delete(e.inflight, id)
		e.mu.Unlock()
		return 0, models.Block{}, fmt.Errorf("executor: %q: %w", id, err)
	}
	e.mu.Unlock()

	inflightGauge.Inc()
	e.logger.Debug("execution started", slog.String("block_id", id), slog.String("type", string(b.Type)))
	if cur, ok := e.store.Get(id); ok {
		e.notify(cur, nil)
	}
	return token, b, nil
}

func (e *Executor) run(ctx context.Context, b models.Block, token uint64) {
	started := e.now()
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	text, err := e.call(ctx, b.Content)
	finished := e.now()

	run := Run{
		BlockID:    b.ID,
		Type:       b.Type,
		Duration:   finished.Sub(started),
		FinishedAt: finished,
	}
	notLoading := false
	patch := models.ExecutionPatch{Loading: &notLoading}

	if err != nil {
		code := ErrorCode
		run.Outcome = OutcomeFailed
		run.ErrorCode = code
		run.Cause = err
		patch.Error = &code
		e.logger.Warn("execution failed",
			slog.String("block_id", b.ID),
			slog.String("error", err.Error()))
	} else {
		result, parsed := parseResult(text)
		run.Outcome = OutcomeDone
		if !parsed {
			run.Outcome = OutcomeParseFailure
		}
		patch.Result = result
		patch.LastRun = &finished
	}

	inflightGauge.Dec()
	if !e.finish(b.ID, token, patch) {
		e.logger.Warn("discarding stale execution result", slog.String("block_id", b.ID))
		return
	}

	executionsTotal.WithLabelValues(string(b.Type), string(run.Outcome)).Inc()
	executionDuration.WithLabelValues(string(run.Outcome)).Observe(run.Duration.Seconds())
	e.logger.Info("execution finished",
		slog.String("block_id", b.ID),
		slog.String("outcome", string(run.Outcome)),
		slog.Duration("duration", run.Duration))

	if cur, ok := e.store.Get(b.ID); ok {
		e.notify(cur, &run)
	}
}

func (e *Executor) call(ctx context.Context, content string) (string, error) {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("executor: rate limit: %w", err)
		}
	}
	graphCtx, err := e.graph.Context()
	if err != nil {
		return "", err
	}
	text, err := e.gen.Generate(ctx, llm.BuildRequest(graphCtx, content))
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("executor: collaborator timed out after %s: %w", e.timeout, err)
		}
		return "", err
	}
	return text, nil
}

// finish applies the completion patch only if token still owns the block.
func (e *Executor) finish(id string, token uint64, patch models.ExecutionPatch) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inflight[id] != token {
		return false
	}
	delete(e.inflight, id)
	if err := e.store.SetExecutionState(id, patch); err != nil {
		e.logger.Error("record execution state", slog.String("block_id", id), slog.String("error", err.Error()))
	}
	return true
}

func (e *Executor) notify(b models.Block, run *Run) {
	for _, o := range e.observers {
		o.ExecutionChanged(b, run)
	}
}

// parseResult decodes a response body. Empty bodies decode as an empty
// object. Bodies that are not JSON produce a diagnostic object carrying the
// raw text, and parsed is false.
func parseResult(text string) (result any, parsed bool) {
	if text == "" {
		return map[string]any{}, true
	}
	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return map[string]any{"error": ParseFailure, "raw": text}, false
	}
	if v == nil {
		return map[string]any{}, true
	}
	return v, true
}
