package flow

import (
	"context"
	"fmt"
	"maps"
	"strings"

	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/model"
	"github.com/hupe1980/agentflow/tool"
)

// DefaultProcessors returns the standard request pipeline.
func DefaultProcessors() []RequestProcessor {
	return []RequestProcessor{
		NewInstructionsProcessor(),
		NewContentsProcessor(),
		NewToolsProcessor(),
	}
}

// InstructionsProcessor resolves the agent's system prompt.
type InstructionsProcessor struct{}

// NewInstructionsProcessor creates a new instructions processor.
func NewInstructionsProcessor() *InstructionsProcessor { return &InstructionsProcessor{} }

// Name returns the processor's identifier.
func (p *InstructionsProcessor) Name() string { return "instructions" }

// ProcessRequest renders the instruction template with the step variables and
// appends the delegation guide when the agent may delegate.
func (p *InstructionsProcessor) ProcessRequest(ctx context.Context, step *Step, req *model.Request) error {
	vars := make(map[string]any, len(step.Variables)+2)
	maps.Copy(vars, step.Variables)
	vars["agent"] = step.Agent.Name()
	vars["run_id"] = step.RunID

	instructions, err := step.Agent.Instruction().Resolve(ctx, vars)
	if err != nil {
		return fmt.Errorf("failed to resolve instruction: %w", err)
	}

	if step.CanDelegate() {
		instructions = strings.TrimSpace(instructions + "\n\n" + delegationGuide(step))
	}

	req.Instructions = instructions
	return nil
}

func delegationGuide(step *Step) string {
	var b strings.Builder
	b.WriteString("You can hand the task to one of these agents:\n")
	for _, t := range step.Targets {
		b.WriteString("- ")
		b.WriteString(t.Name())
		if d := t.Description(); d != "" {
			b.WriteString(": ")
			b.WriteString(d)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "To delegate, call the %s tool, or end your reply with a line %q. "+
		"Answer directly when no other agent is needed.", tool.TransferToAgentName, HandoffPrefix+" <agent name>")
	return b.String()
}

// ContentsProcessor converts the run memory into request contents.
type ContentsProcessor struct{}

// NewContentsProcessor creates a new contents processor.
func NewContentsProcessor() *ContentsProcessor { return &ContentsProcessor{} }

// Name returns the processor's identifier.
func (p *ContentsProcessor) Name() string { return "contents" }

// ProcessRequest adds the (optionally windowed) memory snapshot.
func (p *ContentsProcessor) ProcessRequest(_ context.Context, step *Step, req *model.Request) error {
	messages := step.Memory.Snapshot()
	if limit := step.Agent.MaxHistoryMessages(); limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}

	contents := make([]core.Content, 0, len(messages))
	for _, m := range messages {
		contents = append(contents, core.ContentFromMessage(m))
	}

	req.Contents = contents
	return nil
}

// ToolsProcessor advertises the agent's tools and, when delegation is
// possible, the transfer tool.
type ToolsProcessor struct{}

// NewToolsProcessor creates a new tools processor.
func NewToolsProcessor() *ToolsProcessor { return &ToolsProcessor{} }

// Name returns the processor's identifier.
func (p *ToolsProcessor) Name() string { return "tools" }

// ProcessRequest fills req.Tools.
func (p *ToolsProcessor) ProcessRequest(_ context.Context, step *Step, req *model.Request) error {
	for _, t := range stepTools(step) {
		req.Tools = append(req.Tools, model.ToolDefinition{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	return nil
}

// stepTools returns the tools callable during the step.
func stepTools(step *Step) []tool.Tool {
	tools := step.Agent.Tools()
	if step.CanDelegate() {
		tools = append(tools, tool.NewTransferToAgentTool(step.TargetNames()...))
	}
	return tools
}
