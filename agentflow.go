// Package agentflow provides a high-level façade over the registry, engine
// and runner. Most applications interact with this package by:
//  1. Defining agents with agent.New
//  2. Creating an AgentFlow via New(), which seals the registry
//  3. Asking questions synchronously (Ask, Run) or streaming step updates
//     from an execution (Start)
//
// Every call starts an independent run with its own memory and event
// stream, so one AgentFlow serves concurrent requests.
package agentflow

import (
	"context"

	"github.com/hupe1980/agentflow/agent"
	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/engine"
	"github.com/hupe1980/agentflow/flow"
	"github.com/hupe1980/agentflow/logging"
	"github.com/hupe1980/agentflow/runner"
)

// Options configures the AgentFlow instance.
type Options struct {
	// Mode selects router (default) or pipeline delegation.
	Mode engine.Mode
	// Entry names the first agent. Defaults to the first agent passed to New.
	Entry string
	// MaxSteps bounds the steps of one run (default 10).
	MaxSteps int
	// StepLimitPolicy decides between a degraded answer (default) and a
	// failed run when MaxSteps is exceeded.
	StepLimitPolicy engine.StepLimitPolicy
	// TraceTools adds one tool event per tool call to the event log.
	TraceTools bool
	// Variables are rendered into the agents' instruction templates.
	Variables map[string]any

	// Executor tunes model and tool calls. Defaults to flow.NewExecutor.
	Executor *flow.Executor
	// Callbacks receive step lifecycle hooks.
	Callbacks *engine.CallbackManager

	// MaxConcurrentRuns limits simultaneous runs (default 10).
	MaxConcurrentRuns int

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// AgentFlow is the high-level façade aggregating the registry, engine and runner.
type AgentFlow struct {
	opts   Options
	engine *engine.Engine
	runner *runner.Runner
}

// New creates an AgentFlow for the given agents.
func New(agents []*agent.Definition, optFns ...func(o *Options)) (*AgentFlow, error) {
	opts := Options{
		Mode:            engine.ModeRouter,
		MaxSteps:        engine.DefaultMaxSteps,
		StepLimitPolicy: engine.StepLimitDegrade,
		Logger:          logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	registry, err := agent.NewRegistry(agents...)
	if err != nil {
		return nil, err
	}

	eng, err := engine.New(registry, func(o *engine.Options) {
		o.Mode = opts.Mode
		o.Entry = opts.Entry
		o.MaxSteps = opts.MaxSteps
		o.StepLimitPolicy = opts.StepLimitPolicy
		o.TraceTools = opts.TraceTools
		o.Variables = opts.Variables
		o.Executor = opts.Executor
		o.Callbacks = opts.Callbacks
		o.Logger = opts.Logger
	})
	if err != nil {
		return nil, err
	}

	r := runner.New(eng, func(o *runner.Options) {
		o.MaxConcurrentRuns = opts.MaxConcurrentRuns
		o.Logger = opts.Logger
	})

	return &AgentFlow{opts: opts, engine: eng, runner: r}, nil
}

// Ask runs a workflow for a single user prompt.
func (f *AgentFlow) Ask(ctx context.Context, prompt string) (*runner.Report, error) {
	return f.runner.Ask(ctx, prompt)
}

// Run executes a workflow seeded with a conversation. The last message must
// be a non-blank user message.
func (f *AgentFlow) Run(ctx context.Context, initial []core.Message) (*runner.Report, error) {
	return f.runner.Run(ctx, initial)
}

// Start launches a run and returns immediately. Step updates arrive on the
// execution's Events channel while the run progresses.
func (f *AgentFlow) Start(ctx context.Context, initial []core.Message) (*engine.Execution, error) {
	return f.runner.Start(ctx, initial)
}

// Cancel stops an in-flight run.
func (f *AgentFlow) Cancel(runID string) error { return f.runner.Cancel(runID) }

// Registry returns the sealed agent registry.
func (f *AgentFlow) Registry() *agent.Registry { return f.engine.Registry() }

// Engine returns the underlying engine.
func (f *AgentFlow) Engine() *engine.Engine { return f.engine }
