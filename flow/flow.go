// Package flow executes a single agent step.
//
// A step builds a model request from the agent's instructions, the run's
// memory and the agent's tools, calls the model, and resolves tool calls in
// a bounded loop until the model answers with plain text. The final text is
// appended to memory as an assistant message and returned together with an
// optional delegation hint for the router.
//
// Request construction is split into RequestProcessors (instructions,
// contents, tools) so callers can extend or replace individual stages.
package flow

import (
	"context"

	"github.com/hupe1980/agentflow/agent"
	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/model"
)

// Step is the input of one step execution.
type Step struct {
	RunID  string
	Index  int
	Agent  *agent.Definition
	Memory *core.Memory
	// Targets are the agents the step may delegate to. The transfer tool and
	// the delegation instructions are only offered to non-terminal agents
	// with at least one target.
	Targets []*agent.Definition
	// Variables are rendered into the agent's instruction template.
	Variables map[string]any
}

// CanDelegate reports whether delegation is offered to the step's agent.
func (s *Step) CanDelegate() bool {
	return !s.Agent.Terminal() && len(s.Targets) > 0
}

// TargetNames returns the names of the delegation targets.
func (s *Step) TargetNames() []string {
	names := make([]string, 0, len(s.Targets))
	for _, t := range s.Targets {
		names = append(names, t.Name())
	}
	return names
}

// RequestProcessor prepares the model request before the first model call of
// a step. Processors run in registration order.
type RequestProcessor interface {
	// Name returns the processor's identifier.
	Name() string
	// ProcessRequest modifies the request.
	ProcessRequest(ctx context.Context, step *Step, req *model.Request) error
}
