package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/agentflow/agent"
	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/flow"
	"github.com/hupe1980/agentflow/logging"
)

// DefaultEventBufferSize is the observer channel buffer of a run.
const DefaultEventBufferSize = 16

// Options configures an Engine instance using the functional options pattern.
//
// Example:
//
//	eng, err := engine.New(registry, func(o *engine.Options) {
//	    o.MaxSteps = 6
//	    o.StepLimitPolicy = engine.StepLimitFail
//	    o.Entry = "Analyser"
//	})
type Options struct {
	// Mode selects router (default) or pipeline delegation.
	Mode Mode

	// Entry names the first agent of every run. Defaults to the first
	// registered agent.
	Entry string

	// MaxSteps bounds the steps of one run (default 10).
	MaxSteps int

	// StepLimitPolicy decides between a degraded answer (default) and a
	// failed run when MaxSteps is exceeded.
	StepLimitPolicy StepLimitPolicy

	// TraceTools emits one tool event per tool call of a completed step,
	// ahead of the step's update event.
	TraceTools bool

	// Variables are rendered into every agent's instruction template.
	Variables map[string]any

	// EventBufferSize sets the observer channel buffer (default 16).
	EventBufferSize int

	// Executor runs the steps. Defaults to flow.NewExecutor with the engine
	// logger.
	Executor *flow.Executor

	// Callbacks receive step lifecycle hooks.
	Callbacks *CallbackManager

	// Logger provides structured logging. Defaults to a no-op logger.
	Logger logging.Logger
}

// Engine composes the registry, router, step executor and observer into
// workflow runs.
//
// An Engine holds no per-run state. Every run owns its Memory, Route and
// Observer, so concurrent runs only share the sealed registry and the
// read-only model and tool clients bound to the agents.
type Engine struct {
	registry *agent.Registry
	router   *Router
	executor *flow.Executor
	opts     Options
	logger   logging.Logger
}

// New creates an Engine over registry and seals the registry.
//
// It fails when the registry is empty, the entry agent is unknown, or the
// mode or step limit policy are invalid.
func New(registry *agent.Registry, optFns ...func(o *Options)) (*Engine, error) {
	opts := Options{
		Mode:            ModeRouter,
		MaxSteps:        DefaultMaxSteps,
		StepLimitPolicy: StepLimitDegrade,
		EventBufferSize: DefaultEventBufferSize,
		Logger:          logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Mode == "" {
		opts.Mode = ModeRouter
	}
	if opts.StepLimitPolicy == "" {
		opts.StepLimitPolicy = StepLimitDegrade
	}
	if opts.EventBufferSize < 0 {
		opts.EventBufferSize = DefaultEventBufferSize
	}
	if opts.Executor == nil {
		opts.Executor = flow.NewExecutor(func(o *flow.Options) { o.Logger = opts.Logger })
	}

	router, err := NewRouter(registry, func(o *RouterOptions) {
		o.Mode = opts.Mode
		o.Entry = opts.Entry
		o.MaxSteps = opts.MaxSteps
		o.StepLimitPolicy = opts.StepLimitPolicy
		o.Logger = opts.Logger
	})
	if err != nil {
		return nil, err
	}

	registry.Seal()

	return &Engine{
		registry: registry,
		router:   router,
		executor: opts.Executor,
		opts:     opts,
		logger:   opts.Logger,
	}, nil
}

// Registry returns the sealed agent registry.
func (e *Engine) Registry() *agent.Registry { return e.registry }

// Execution is a handle to a run started with Start.
type Execution struct {
	run      *core.Run
	observer *Observer
	done     chan struct{}

	result core.Result
	err    error
}

// ID returns the run identifier.
func (x *Execution) ID() string { return x.run.ID }

// Status returns the run lifecycle state.
func (x *Execution) Status() core.RunStatus { return x.run.Status() }

// Memory returns the run's conversation memory.
func (x *Execution) Memory() *core.Memory { return x.run.Memory }

// Events returns the live event channel. It is closed exactly once when the
// run ends. The channel must be drained for the run to make progress.
func (x *Execution) Events() <-chan core.UpdateEvent { return x.observer.Events() }

// Wait blocks until the run ended and returns its result.
func (x *Execution) Wait() (core.Result, error) {
	<-x.done
	return x.result, x.err
}

// Done is closed when the run ended.
func (x *Execution) Done() <-chan struct{} { return x.done }

// Run executes a workflow to completion and returns the result together with
// the full event log in step order. On failure the events emitted before the
// failing step are returned alongside the error.
func (e *Engine) Run(ctx context.Context, initial []core.Message) (core.Result, []core.UpdateEvent, error) {
	x, err := e.Start(ctx, initial)
	if err != nil {
		return core.Result{}, nil, err
	}

	// The run goroutine closes the channel on every exit path, including
	// cancellation, so a background context is enough here.
	events, _ := x.observer.Collect(context.Background())

	result, err := x.Wait()
	if err != nil {
		return core.Result{}, events, err
	}

	return result, events, nil
}

// Ask runs a workflow for a single user prompt.
func (e *Engine) Ask(ctx context.Context, prompt string) (core.Result, []core.UpdateEvent, error) {
	return e.Run(ctx, []core.Message{core.NewUserMessage(prompt)})
}

// Start validates the input, seeds a new run and executes it in the
// background. The run identifier is taken from ctx (core.WithRunID) when
// present.
func (e *Engine) Start(ctx context.Context, initial []core.Message) (*Execution, error) {
	if err := validateInitial(initial); err != nil {
		return nil, err
	}

	run := core.NewRun()
	if id := core.RunIDFromContext(ctx); id != "" {
		run.ID = id
	}

	for _, m := range initial {
		if err := run.Memory.Append(m); err != nil {
			return nil, fmt.Errorf("%w: %w", core.ErrMalformedRequest, err)
		}
	}

	x := &Execution{
		run:      run,
		observer: NewObserver(e.opts.EventBufferSize),
		done:     make(chan struct{}),
	}

	e.logger.Info("engine.run.start", "run_id", run.ID, "messages", len(initial))

	go e.execute(ctx, x)

	return x, nil
}

// validateInitial rejects empty input, malformed messages and a blank last
// user message before a run starts.
func validateInitial(initial []core.Message) error {
	if len(initial) == 0 {
		return fmt.Errorf("%w: no messages", core.ErrMalformedRequest)
	}

	lastUser := -1
	for i, m := range initial {
		if m.Role == core.RoleUser {
			lastUser = i
		}
		if err := m.Validate(); err != nil {
			return fmt.Errorf("%w: message %d: %w", core.ErrMalformedRequest, i, err)
		}
	}

	if lastUser < 0 {
		return fmt.Errorf("%w: no user message", core.ErrMalformedRequest)
	}
	if strings.TrimSpace(initial[lastUser].Text) == "" {
		return fmt.Errorf("%w: empty prompt", core.ErrMalformedRequest)
	}

	return nil
}

// execute drives the route until it reaches TERMINAL or FAILED.
func (e *Engine) execute(ctx context.Context, x *Execution) {
	var once sync.Once

	finish := func(result core.Result, err error) {
		once.Do(func() {
			x.result, x.err = result, err
			if err != nil {
				x.run.SetStatus(core.RunStatusFailed)
			} else {
				x.run.SetStatus(core.RunStatusCompleted)
			}
			x.observer.Close()
			close(x.done)
		})
	}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("engine.run.panic", "run_id", x.run.ID, "recover", r)
			finish(core.Result{}, fmt.Errorf("run %s panicked: %v", x.run.ID, r))
		}
	}()

	ctx = core.WithRunID(ctx, x.run.ID)
	route := e.router.Begin()

	fail := func(agentName string, step int, err error) {
		route.Fail()
		cbErr := e.opts.Callbacks.ExecuteCallbacks(ctx, CallbackOnError, &CallbackContext{RunID: x.run.ID, Agent: agentName, Step: step, Err: err})
		if cbErr != nil {
			e.logger.Warn("engine.callback.error", "run_id", x.run.ID, "type", CallbackOnError, "error", cbErr.Error())
		}
		e.logger.Error("engine.run.failed", "run_id", x.run.ID, "agent", agentName, "step", step, "duration_ms", time.Since(x.run.StartedAt).Milliseconds(), "error", err.Error())
		finish(core.Result{}, err)
	}

	for {
		if err := ctx.Err(); err != nil {
			fail(route.LastAgent(), route.Steps(), err)
			return
		}

		def, ok := route.Select()
		if !ok {
			if !route.StepLimitHit() {
				fail(route.LastAgent(), route.Steps(), fmt.Errorf("route in state %s", route.State()))
				return
			}

			limitMsg := fmt.Sprintf("StepLimitExceeded: stopped after %d steps before running %s", route.Steps(), route.Next().Name())

			if route.State() == StateFailed {
				fail(route.LastAgent(), route.Steps(), fmt.Errorf("%w: %s", core.ErrStepLimitExceeded, limitMsg))
				return
			}

			diag := core.NewDiagnosticEvent(route.LastAgent(), route.Steps(), limitMsg)
			diag.Metadata.RunID = x.run.ID
			if err := x.observer.Emit(ctx, diag); err != nil {
				fail(route.LastAgent(), route.Steps(), err)
				return
			}

			e.complete(x, route, finish)
			return
		}

		index := route.Steps()
		cbCtx := &CallbackContext{RunID: x.run.ID, Agent: def.Name(), Step: index}

		if err := e.opts.Callbacks.ExecuteCallbacks(ctx, CallbackBeforeStep, cbCtx); err != nil {
			fail(def.Name(), index, &core.StepError{Agent: def.Name(), Step: index, Err: err})
			return
		}

		e.logger.Debug("engine.step.start", "run_id", x.run.ID, "agent", def.Name(), "step", index)

		res, err := e.executor.Execute(ctx, flow.Step{
			RunID:     x.run.ID,
			Index:     index,
			Agent:     def,
			Memory:    x.run.Memory,
			Targets:   e.targets(def),
			Variables: e.opts.Variables,
		})
		if err != nil {
			fail(def.Name(), index, err)
			return
		}

		cbCtx.Result = &res
		if err := e.opts.Callbacks.ExecuteCallbacks(ctx, CallbackAfterStep, cbCtx); err != nil {
			fail(def.Name(), index, &core.StepError{Agent: def.Name(), Step: index, Err: err})
			return
		}

		if err := e.emitStep(ctx, x, index, res); err != nil {
			fail(def.Name(), index, err)
			return
		}

		state := route.Complete(res)

		e.logger.Info("engine.step.completed", "run_id", x.run.ID, "agent", def.Name(), "step", index, "state", state, "degraded", res.Degraded)

		if state == StateTerminal {
			e.complete(x, route, finish)
			return
		}
	}
}

// emitStep emits the events of a completed step: optional tool traces
// followed by the update event.
func (e *Engine) emitStep(ctx context.Context, x *Execution, index int, res flow.StepResult) error {
	if e.opts.TraceTools {
		for _, trace := range res.ToolCalls {
			ev := core.NewToolEvent(res.Agent, index, trace.Call.Name, trace.Output)
			ev.Metadata.RunID = x.run.ID
			ev.Metadata.Degraded = trace.Degraded
			if err := x.observer.Emit(ctx, ev); err != nil {
				return err
			}
		}
	}

	ev := core.NewUpdateEvent(res.Agent, index, res.Text)
	ev.Metadata.RunID = x.run.ID
	ev.Metadata.Degraded = res.Degraded

	return x.observer.Emit(ctx, ev)
}

func (e *Engine) complete(x *Execution, route *Route, finish func(core.Result, error)) {
	result := core.Result{
		FinalAnswer: route.FinalAnswer(),
		Agent:       route.LastAgent(),
		Steps:       route.Steps(),
	}

	e.logger.Info("engine.run.completed", "run_id", x.run.ID, "agent", result.Agent, "steps", result.Steps, "duration_ms", time.Since(x.run.StartedAt).Milliseconds())

	finish(result, nil)
}

// targets returns the delegation targets offered to def.
func (e *Engine) targets(def *agent.Definition) []*agent.Definition {
	if def.Terminal() {
		return nil
	}

	names := e.registry.Targets(def.Name())
	out := make([]*agent.Definition, 0, len(names))
	for _, name := range names {
		if d, err := e.registry.Resolve(name); err == nil {
			out = append(out, d)
		}
	}
	return out
}
