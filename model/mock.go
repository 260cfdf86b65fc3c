package model

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/agentflow/core"
)

// MockModel is a lightweight in-memory Model that answers with canned
// completions keyed by the last user text, falling back to an echo. It backs
// the "mock" provider used for local runs without credentials.
type MockModel struct {
	info      Info
	mu        sync.RWMutex
	responses map[string]string
}

// NewMockModel constructs a MockModel.
func NewMockModel(name string) *MockModel {
	return &MockModel{
		info:      Info{Name: name, Provider: "mock", SupportsTools: false},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic completion for an input prompt.
func (m *MockModel) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// Generate implements Model.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 1)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)

		var input string
		for i := len(req.Contents) - 1; i >= 0; i-- {
			if req.Contents[i].Role == string(core.RoleUser) {
				input = req.Contents[i].Text()
				break
			}
		}
		if input == "" {
			errCh <- fmt.Errorf("no user content provided")
			return
		}

		m.mu.RLock()
		full := m.responses[input]
		m.mu.RUnlock()
		if full == "" {
			full = fmt.Sprintf("Mock response to: %s", input)
		}

		select {
		case <-ctx.Done():
			errCh <- ctx.Err()
		case respCh <- Response{
			ID:           core.NewID(),
			Content:      core.NewTextContent(string(core.RoleAssistant), full),
			FinishReason: "stop",
		}:
		}
	}()

	return respCh, errCh
}

// Info implements Model.
func (m *MockModel) Info() Info { return m.info }
