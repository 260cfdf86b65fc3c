package tool

import (
	"fmt"
	"slices"
	"strings"

	"github.com/hupe1980/agentflow/core"
)

// TransferToAgentName is the reserved name of the delegation tool.
const TransferToAgentName = "transfer_to_agent"

// transferToAgentTool lets a model hand the next step to another agent.
type transferToAgentTool struct {
	targets []string
}

// NewTransferToAgentTool constructs the delegation tool. When targets is
// non-empty the schema advertises them as an enum and Call rejects any other
// name.
func NewTransferToAgentTool(targets ...string) Tool {
	return &transferToAgentTool{targets: targets}
}

func (t *transferToAgentTool) Name() string { return TransferToAgentName }

func (t *transferToAgentTool) Description() string {
	desc := "Hand control to another agent by name when it is better suited to continue. " +
		"Calling it ends your turn, so put anything the next agent needs in your reply."
	if len(t.targets) > 0 {
		desc += " Available agents: " + strings.Join(t.targets, ", ") + "."
	}
	return desc
}

func (t *transferToAgentTool) Parameters() map[string]any {
	agent := map[string]any{"type": "string", "description": "Target agent name"}
	if len(t.targets) > 0 {
		agent["enum"] = t.targets
	}
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"agent": agent},
		"required":   []string{"agent"},
	}
}

func (t *transferToAgentTool) Call(tc *core.ToolContext, args map[string]any) (any, error) {
	raw, ok := args["agent"]
	if !ok {
		return nil, NewToolError(TransferToAgentName, "missing required field 'agent'", CodeValidation)
	}
	agentName, ok := raw.(string)
	if !ok || strings.TrimSpace(agentName) == "" {
		return nil, NewToolError(TransferToAgentName, "field 'agent' must be non-empty string", CodeValidation)
	}
	agentName = strings.TrimSpace(agentName)
	if len(t.targets) > 0 && !slices.Contains(t.targets, agentName) {
		return nil, NewToolError(TransferToAgentName,
			fmt.Sprintf("unknown agent %q, expected one of: %s", agentName, strings.Join(t.targets, ", ")), CodeValidation)
	}
	tc.TransferToAgent(agentName)
	return fmt.Sprintf("Control will pass to %s after this step.", agentName), nil
}
