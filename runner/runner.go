package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/engine"
	"github.com/hupe1980/agentflow/logging"
)

// DefaultMaxConcurrentRuns is the default admission limit.
const DefaultMaxConcurrentRuns = 10

// Options holds configuration overrides passed to New().
type Options struct {
	// MaxConcurrentRuns limits concurrent workflow runs (default 10).
	MaxConcurrentRuns int
	// RunTimeout bounds a whole run (0 = no bound).
	RunTimeout time.Duration
	// Logger receives run lifecycle logs.
	Logger logging.Logger
}

// Report is the outcome of a buffered run.
type Report struct {
	RunID    string             `json:"run_id"`
	Result   core.Result        `json:"result"`
	Events   []core.UpdateEvent `json:"events"`
	Duration time.Duration      `json:"duration"`
}

// Runner admits, tracks and cancels workflow runs. Public methods are safe
// for concurrent use.
type Runner struct {
	engine     *engine.Engine
	sem        chan struct{}
	runTimeout time.Duration
	logger     logging.Logger

	activeRuns map[string]context.CancelFunc
	mu         sync.RWMutex
}

// New constructs a Runner with optional overrides.
func New(eng *engine.Engine, optFns ...func(o *Options)) *Runner {
	opts := Options{
		MaxConcurrentRuns: DefaultMaxConcurrentRuns,
		Logger:            logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.MaxConcurrentRuns <= 0 {
		opts.MaxConcurrentRuns = DefaultMaxConcurrentRuns
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Runner{
		engine:     eng,
		sem:        make(chan struct{}, opts.MaxConcurrentRuns),
		runTimeout: opts.RunTimeout,
		logger:     opts.Logger,
		activeRuns: make(map[string]context.CancelFunc),
	}
}

// Start waits for a free slot and starts a run. The slot is released when
// the run ends; callers must drain Events() (or call Wait after draining).
func (r *Runner) Start(ctx context.Context, initial []core.Message) (*engine.Execution, error) {
	select {
	case r.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for run slot: %w", ctx.Err())
	}

	runID := core.RunIDFromContext(ctx)
	if runID == "" {
		runID = core.NewID()
	}

	var cancel context.CancelFunc
	if r.runTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, r.runTimeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	ctx = core.WithRunID(ctx, runID)

	x, err := r.engine.Start(ctx, initial)
	if err != nil {
		cancel()
		<-r.sem
		return nil, err
	}

	r.mu.Lock()
	r.activeRuns[runID] = cancel
	r.mu.Unlock()

	r.logger.Debug("runner.run.admitted", "run_id", runID, "active", len(r.sem))

	go func() {
		<-x.Done()
		cancel()

		r.mu.Lock()
		delete(r.activeRuns, runID)
		r.mu.Unlock()

		<-r.sem
	}()

	return x, nil
}

// Run executes a run to completion and returns its report. On failure the
// report still carries the run ID and the events emitted before the failure.
func (r *Runner) Run(ctx context.Context, initial []core.Message) (*Report, error) {
	start := time.Now()

	x, err := r.Start(ctx, initial)
	if err != nil {
		return nil, err
	}

	report := &Report{RunID: x.ID()}
	for ev := range x.Events() {
		report.Events = append(report.Events, ev)
	}

	result, err := x.Wait()
	report.Duration = time.Since(start)
	if err != nil {
		r.logger.Warn("runner.run.failed", "run_id", report.RunID, "error", err.Error())
		return report, err
	}

	report.Result = result

	r.logger.Info("runner.run.completed", "run_id", report.RunID, "steps", result.Steps, "duration_ms", report.Duration.Milliseconds())

	return report, nil
}

// Ask runs a workflow for a single user prompt.
func (r *Runner) Ask(ctx context.Context, prompt string) (*Report, error) {
	return r.Run(ctx, []core.Message{core.NewUserMessage(prompt)})
}

// Cancel cancels a running run by ID.
func (r *Runner) Cancel(runID string) error {
	r.mu.Lock()
	cancel, exists := r.activeRuns[runID]
	r.mu.Unlock()

	if !exists {
		return fmt.Errorf("run %s not found", runID)
	}

	cancel()

	r.logger.Info("runner.run.cancelled", "run_id", runID)

	return nil
}

// Active returns the IDs of in-flight runs.
func (r *Runner) Active() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.activeRuns))
	for id := range r.activeRuns {
		ids = append(ids, id)
	}
	return ids
}

// Engine returns the wrapped engine.
func (r *Runner) Engine() *engine.Engine { return r.engine }
