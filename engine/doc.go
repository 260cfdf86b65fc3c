// Package engine implements the workflow orchestration layer of agentflow.
//
// The Engine turns a user prompt into a final answer by running a sequence of
// agent steps. It composes four collaborators:
//
//   - the sealed agent.Registry holding the fixed set of agents,
//   - a Router deciding after every step whether control is delegated to
//     another agent or the run terminates,
//   - a flow.Executor running one agent (model plus tool loop) against the
//     run's memory,
//   - an Observer channel carrying one event per completed step.
//
// # Routing
//
// Every run starts at the configured entry agent or, by default, at the first
// registered agent. After each step the router inspects the step's
// delegation hint:
//
//	SELECT -> EXECUTING -> DELEGATED -> SELECT
//	                    -> TERMINAL
//	                    -> FAILED
//
// A hint naming a registered agent delegates to it. A missing or unknown hint,
// or a step of a terminal agent, ends the run with that step's text as the
// final answer. In pipeline mode a missing hint advances to the next agent in
// registration order instead. Agents signal delegation with the
// transfer_to_agent tool or a trailing "HANDOFF: <Name>" line.
//
// Runs are bounded by MaxSteps. With the degrade policy the run ends with the
// most recent step text and a diagnostic event; with the fail policy it ends
// with core.ErrStepLimitExceeded.
//
// # Events
//
// Each completed step emits exactly one update event whose content is the
// step text, in strict step order. With TraceTools the step's tool calls are
// emitted as tool events right before it. A failed step emits nothing.
//
// # Usage
//
//	registry, _ := agent.NewRegistry(analyser, crawler)
//	eng, err := engine.New(registry, func(o *engine.Options) { o.Entry = "Analyser" })
//	if err != nil {
//	    return err
//	}
//
//	result, events, err := eng.Ask(ctx, "Summarise https://example.com")
//
// Start returns a handle whose Events channel streams the same events while
// the run is in progress.
//
// # Concurrency
//
// Steps of one run execute strictly sequentially. Runs are independent: each
// owns its Memory, Route and Observer. The engine itself is safe for
// concurrent use.
package engine
