package engine

import (
	"fmt"
	"slices"
	"sync"

	"github.com/hupe1980/agentflow/agent"
	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/flow"
	"github.com/hupe1980/agentflow/logging"
)

// Mode selects how the router picks the next agent when a step carries no
// delegation hint.
type Mode string

const (
	// ModeRouter ends the run on the first step without a resolvable hint.
	ModeRouter Mode = "router"
	// ModePipeline advances to the next agent in registration order; the last
	// agent is terminal.
	ModePipeline Mode = "pipeline"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool { return m == ModeRouter || m == ModePipeline }

// StepLimitPolicy decides what happens when a run exceeds its step budget.
type StepLimitPolicy string

const (
	// StepLimitDegrade ends the run with the most recent non-empty step text.
	StepLimitDegrade StepLimitPolicy = "degrade"
	// StepLimitFail ends the run with core.ErrStepLimitExceeded.
	StepLimitFail StepLimitPolicy = "fail"
)

// Valid reports whether p is a known policy.
func (p StepLimitPolicy) Valid() bool { return p == StepLimitDegrade || p == StepLimitFail }

// State is a delegation router state.
type State string

const (
	StateSelect    State = "SELECT"
	StateExecuting State = "EXECUTING"
	StateDelegated State = "DELEGATED"
	StateTerminal  State = "TERMINAL"
	StateFailed    State = "FAILED"
)

// DefaultMaxSteps bounds the number of steps of one run.
const DefaultMaxSteps = 10

// RouterOptions configure a Router.
type RouterOptions struct {
	Mode            Mode
	Entry           string
	MaxSteps        int
	StepLimitPolicy StepLimitPolicy
	Logger          logging.Logger
}

// Router holds the delegation policy shared by all runs of an engine.
type Router struct {
	registry *agent.Registry
	opts     RouterOptions
}

// NewRouter creates a Router over a registry with at least one agent.
func NewRouter(registry *agent.Registry, optFns ...func(o *RouterOptions)) (*Router, error) {
	opts := RouterOptions{
		Mode:            ModeRouter,
		MaxSteps:        DefaultMaxSteps,
		StepLimitPolicy: StepLimitDegrade,
		Logger:          logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = DefaultMaxSteps
	}
	if !opts.Mode.Valid() {
		return nil, fmt.Errorf("invalid workflow mode %q", opts.Mode)
	}
	if !opts.StepLimitPolicy.Valid() {
		return nil, fmt.Errorf("invalid step limit policy %q", opts.StepLimitPolicy)
	}
	if registry.Len() == 0 {
		return nil, fmt.Errorf("workflow has no agents")
	}
	if opts.Entry != "" && !registry.Has(opts.Entry) {
		return nil, fmt.Errorf("entry agent: %w: %s", core.ErrUnknownAgent, opts.Entry)
	}

	return &Router{registry: registry, opts: opts}, nil
}

// Options returns the effective router options.
func (r *Router) Options() RouterOptions { return r.opts }

// Begin starts routing a new run.
func (r *Router) Begin() *Route {
	start, _ := r.registry.First()
	if r.opts.Entry != "" {
		start, _ = r.registry.Resolve(r.opts.Entry)
	}

	return &Route{
		router:  r,
		state:   StateSelect,
		next:    start,
		limiter: core.NewStepLimiter(r.opts.MaxSteps),
	}
}

// Route is the per-run state machine:
//
//	SELECT -> EXECUTING -> DELEGATED -> SELECT
//	                    -> TERMINAL
//	                    -> FAILED
type Route struct {
	router  *Router
	limiter *core.StepLimiter

	mu        sync.Mutex
	state     State
	next      *agent.Definition
	current   *agent.Definition
	lastText  string
	lastAgent string
	final     string
	limitHit  bool
}

// State returns the current state.
func (rt *Route) State() State {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.state
}

// Steps returns the number of steps started so far.
func (rt *Route) Steps() int { return rt.limiter.Count() }

// Select moves SELECT to EXECUTING and returns the agent to run. It returns
// false when the step budget is exhausted; the route is then TERMINAL
// (degrade policy) or FAILED (fail policy).
func (rt *Route) Select() (*agent.Definition, bool) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.state != StateSelect {
		return nil, false
	}

	if !rt.limiter.Allow() {
		rt.limitHit = true
		if rt.router.opts.StepLimitPolicy == StepLimitFail {
			rt.state = StateFailed
		} else {
			rt.state = StateTerminal
			rt.final = rt.lastText
		}
		rt.router.opts.Logger.Warn("engine.route.step_limit", "max_steps", rt.limiter.Max(), "next_agent", rt.next.Name(), "policy", rt.router.opts.StepLimitPolicy)
		return nil, false
	}

	rt.limiter.Increment()
	rt.current = rt.next
	rt.state = StateExecuting
	return rt.current, true
}

// Complete records the result of the executing step and decides the next
// state. An unresolvable hint is treated as absent. DELEGATED is transient:
// it is returned to the caller while the route moves straight back to SELECT.
func (rt *Route) Complete(res flow.StepResult) State {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.state != StateExecuting {
		return rt.state
	}

	if res.Text != "" {
		rt.lastText = res.Text
	}
	rt.lastAgent = rt.current.Name()

	logger := rt.router.opts.Logger

	if rt.current.Terminal() {
		return rt.terminate(res.Text)
	}

	if res.DelegationHint != "" {
		target, err := rt.resolveTarget(res.DelegationHint)
		if err == nil {
			logger.Info("engine.route.delegated", "from_agent", rt.current.Name(), "to_agent", target.Name())
			rt.next = target
			rt.state = StateSelect
			return StateDelegated
		}
		logger.Warn("engine.route.unknown_agent", "agent", rt.current.Name(), "hint", res.DelegationHint, "error", err.Error())
	}

	if rt.router.opts.Mode == ModePipeline {
		if next, ok := rt.successor(); ok {
			rt.next = next
			rt.state = StateSelect
			return StateDelegated
		}
	}

	return rt.terminate(res.Text)
}

// resolveTarget resolves a delegation hint against the agents the current
// agent may hand off to. Names outside that set count as unknown.
func (rt *Route) resolveTarget(name string) (*agent.Definition, error) {
	if !slices.Contains(rt.router.registry.Targets(rt.current.Name()), name) {
		return nil, fmt.Errorf("%w: %s is not a delegate of %s", core.ErrUnknownAgent, name, rt.current.Name())
	}
	return rt.router.registry.Resolve(name)
}

func (rt *Route) terminate(text string) State {
	rt.state = StateTerminal
	rt.final = text
	return StateTerminal
}

// successor returns the agent registered after the current one.
func (rt *Route) successor() (*agent.Definition, bool) {
	agents := rt.router.registry.Agents()
	for i, d := range agents {
		if d.Name() == rt.current.Name() && i+1 < len(agents) {
			return agents[i+1], true
		}
	}
	return nil, false
}

// Fail moves the route to FAILED.
func (rt *Route) Fail() {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.state = StateFailed
}

// FinalAnswer returns the answer chosen when the route became TERMINAL.
func (rt *Route) FinalAnswer() string {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.final
}

// LastAgent returns the agent of the most recently completed step.
func (rt *Route) LastAgent() string {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.lastAgent
}

// Next returns the agent the router would select next.
func (rt *Route) Next() *agent.Definition {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.next
}

// StepLimitHit reports whether the route ended on the step budget.
func (rt *Route) StepLimitHit() bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.limitHit
}
