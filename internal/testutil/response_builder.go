package testutil

import (
	"fmt"

	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/model"
	"github.com/hupe1980/agentflow/tool"
)

// ResponseBuilder provides a fluent helper for scripting model turns.
// Example:
//
//	resp := NewResponseBuilder().Text("let me check").ToolCall("web_search", `{"query":"go"}`).Build()
//
// Chain only the parts you need; call IDs are generated when omitted.
type ResponseBuilder struct {
	parts        []core.Part
	finishReason string
	calls        int
}

// NewResponseBuilder creates an empty assistant turn.
func NewResponseBuilder() *ResponseBuilder { return &ResponseBuilder{} }

// Text appends a text part (chainable).
func (b *ResponseBuilder) Text(text string) *ResponseBuilder {
	b.parts = append(b.parts, core.TextPart{Text: text})
	return b
}

// ToolCall appends a function call with a generated ID (chainable).
func (b *ResponseBuilder) ToolCall(name, arguments string) *ResponseBuilder {
	b.calls++
	return b.ToolCallWithID(fmt.Sprintf("call_%d", b.calls), name, arguments)
}

// ToolCallWithID appends a function call with an explicit ID (chainable).
func (b *ResponseBuilder) ToolCallWithID(id, name, arguments string) *ResponseBuilder {
	b.parts = append(b.parts, core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: id, Name: name, Arguments: arguments}})
	return b
}

// Transfer appends a transfer_to_agent call (chainable).
func (b *ResponseBuilder) Transfer(agentName string) *ResponseBuilder {
	return b.ToolCall(tool.TransferToAgentName, fmt.Sprintf(`{"agent":%q}`, agentName))
}

// Handoff appends a text delegation directive line (chainable).
func (b *ResponseBuilder) Handoff(agentName string) *ResponseBuilder {
	return b.Text("\nHANDOFF: " + agentName)
}

// FinishReason overrides the finish reason (chainable).
func (b *ResponseBuilder) FinishReason(reason string) *ResponseBuilder {
	b.finishReason = reason
	return b
}

// Build materializes the response.
func (b *ResponseBuilder) Build() model.Response {
	reason := b.finishReason
	if reason == "" {
		reason = "stop"
		if b.calls > 0 {
			reason = "tool_calls"
		}
	}
	parts := make([]core.Part, len(b.parts))
	copy(parts, b.parts)
	return model.Response{
		ID:           core.NewID(),
		Content:      core.Content{Role: string(core.RoleAssistant), Parts: parts},
		FinishReason: reason,
	}
}
