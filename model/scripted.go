package model

import (
	"context"
	"sync"

	"github.com/hupe1980/agentflow/core"
)

// ScriptFunc produces the response for the n-th call (zero based) of a ScriptedModel.
type ScriptFunc func(ctx context.Context, req Request, n int) (Response, error)

// ScriptedModel replays a fixed script of turns. It records every request so
// tests can assert on what the executor sent.
type ScriptedModel struct {
	name string
	fn   ScriptFunc

	mu       sync.Mutex
	calls    int
	requests []Request
}

// NewScriptedModel returns the given responses in order and repeats the last
// one once the script is exhausted.
func NewScriptedModel(name string, responses ...Response) *ScriptedModel {
	return NewFuncModel(name, func(_ context.Context, _ Request, n int) (Response, error) {
		if len(responses) == 0 {
			return Response{}, ErrEmptyResponse
		}
		if n >= len(responses) {
			n = len(responses) - 1
		}
		return responses[n], nil
	})
}

// NewFuncModel creates a ScriptedModel driven by fn.
func NewFuncModel(name string, fn ScriptFunc) *ScriptedModel {
	return &ScriptedModel{name: name, fn: fn}
}

// Generate implements Model.
func (m *ScriptedModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 1)
	errCh := make(chan error, 1)

	m.mu.Lock()
	n := m.calls
	m.calls++
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	go func() {
		defer close(respCh)
		defer close(errCh)

		resp, err := m.fn(ctx, req, n)
		if err != nil {
			errCh <- err
			return
		}
		respCh <- resp
	}()

	return respCh, errCh
}

// Info implements Model.
func (m *ScriptedModel) Info() Info {
	return Info{Name: m.name, Provider: "scripted", SupportsTools: true}
}

// Calls returns the number of Generate invocations.
func (m *ScriptedModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Requests returns a copy of the recorded requests.
func (m *ScriptedModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// TextResponse builds a final assistant turn.
func TextResponse(text string) Response {
	return Response{
		ID:           core.NewID(),
		Content:      core.NewTextContent(string(core.RoleAssistant), text),
		FinishReason: "stop",
	}
}

// ToolCallResponse builds an assistant turn requesting a single tool call.
func ToolCallResponse(id, name, arguments string) Response {
	return Response{
		ID: core.NewID(),
		Content: core.Content{
			Role: string(core.RoleAssistant),
			Parts: []core.Part{core.FunctionCallPart{FunctionCall: core.FunctionCall{
				ID:        id,
				Name:      name,
				Arguments: arguments,
			}}},
		},
		FinishReason: "tool_calls",
	}
}
