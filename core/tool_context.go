package core

import (
	"context"

	"github.com/hupe1980/agentflow/logging"
)

// ToolContext provides the constrained surface a tool implementation sees
// during one call: cancellation, correlation identifiers, logging and the
// ability to request a delegation.
type ToolContext struct {
	ctx            context.Context
	runID          string
	agentName      string
	functionCallID string
	transferTo     string

	*loggerAdapter
}

// NewToolContext creates a tool context for a single function call.
func NewToolContext(ctx context.Context, runID, agentName, functionCallID string, logger logging.Logger) *ToolContext {
	return &ToolContext{
		ctx:            ctx,
		runID:          runID,
		agentName:      agentName,
		functionCallID: functionCallID,
		loggerAdapter:  newLoggerAdapter(logger),
	}
}

// Context returns the context bounding the call (carries the tool timeout).
func (tc *ToolContext) Context() context.Context { return tc.ctx }

// RunID returns the workflow run the call belongs to.
func (tc *ToolContext) RunID() string { return tc.runID }

// AgentName returns the agent that issued the call.
func (tc *ToolContext) AgentName() string { return tc.agentName }

// FunctionCallID returns the model supplied call identifier.
func (tc *ToolContext) FunctionCallID() string { return tc.functionCallID }

// TransferToAgent records a delegation request to the named agent. The last
// request within a step wins.
func (tc *ToolContext) TransferToAgent(name string) {
	tc.transferTo = name
	tc.LogInfo("tool.transfer.request", "from_agent", tc.agentName, "to_agent", name, "function_call_id", tc.functionCallID)
}

// TransferTarget returns the requested delegation target, if any.
func (tc *ToolContext) TransferTarget() (string, bool) {
	return tc.transferTo, tc.transferTo != ""
}
