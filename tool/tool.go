// Package tool implements the tool invocation boundary: named capabilities an
// agent step may call with schema validated JSON arguments. Concrete tools
// live in sub packages (websearch, webcrawl, weather, sqlquery, calculator).
package tool

import (
	"fmt"

	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/internal/util"
)

// Tool is a capability exposed to an agent's model.
//
// Implementations must be safe for concurrent use: the same instance is
// shared by every run of a workflow.
type Tool interface {
	// Name returns the unique identifier for this tool (snake_case).
	Name() string

	// Description tells the model when and how to use the tool.
	Description() string

	// Parameters returns the JSON schema of the accepted arguments.
	Parameters() map[string]any

	// Call executes the tool. toolCtx.Context() carries the per-call timeout.
	Call(toolCtx *core.ToolContext, args map[string]any) (any, error)
}

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// Error codes carried by ToolError.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeExecution  = "EXECUTION_ERROR"
	CodeNotFound   = "NOT_FOUND"
	CodeTimeout    = "TIMEOUT"
	CodePanic      = "PANIC"
)

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string `json:"tool"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}

// Set is an ordered collection of tools with unique names.
type Set struct {
	order []string
	tools map[string]Tool
}

// NewSet builds a Set, rejecting duplicate names.
func NewSet(tools ...Tool) (*Set, error) {
	s := &Set{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		if err := s.Add(t); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Add appends t to the set.
func (s *Set) Add(t Tool) error {
	if _, exists := s.tools[t.Name()]; exists {
		return fmt.Errorf("duplicate tool %q", t.Name())
	}
	s.order = append(s.order, t.Name())
	s.tools[t.Name()] = t
	return nil
}

// Get returns the tool registered under name.
func (s *Set) Get(name string) (Tool, bool) {
	t, ok := s.tools[name]
	return t, ok
}

// List returns the tools in insertion order.
func (s *Set) List() []Tool {
	out := make([]Tool, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.tools[name])
	}
	return out
}

// Len returns the number of tools.
func (s *Set) Len() int { return len(s.order) }
