package server

import (
	"context"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentflow/logging"
	"github.com/hupe1980/agentflow/model"
)

func callRunWorkflow(t *testing.T, h *mcpHandler, args map[string]any) *mcp.CallToolResult {
	t.Helper()

	req := mcp.CallToolRequest{}
	req.Params.Name = ToolRunWorkflow
	req.Params.Arguments = args

	result, err := h.handleRunWorkflow(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, result)

	return result
}

func textOf(t *testing.T, c mcp.Content) string {
	t.Helper()

	tc, ok := c.(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", c)

	return tc.Text
}

func TestMCP_RunWorkflow(t *testing.T) {
	h := &mcpHandler{
		asker:  newRunner(t, model.NewScriptedModel("m", model.TextResponse("42"))),
		logger: logging.NoOpLogger{},
	}

	result := callRunWorkflow(t, h, map[string]any{"prompt": "meaning of life?"})
	assert.False(t, result.IsError)
	require.Len(t, result.Content, 2)
	assert.Equal(t, "42", textOf(t, result.Content[0]))
	assert.Contains(t, textOf(t, result.Content[1]), "### Step 1: Assistant (update)")
}

func TestMCP_RunWorkflowErrors(t *testing.T) {
	failing := model.NewFuncModel("down", func(context.Context, model.Request, int) (model.Response, error) {
		return model.Response{}, errors.New("offline")
	})

	tests := []struct {
		name string
		llm  model.Model
		args map[string]any
	}{
		{name: "missing prompt", llm: model.NewScriptedModel("m"), args: map[string]any{}},
		{name: "non-string prompt", llm: model.NewScriptedModel("m"), args: map[string]any{"prompt": 7}},
		{name: "blank prompt", llm: model.NewScriptedModel("m"), args: map[string]any{"prompt": " "}},
		{name: "run failure", llm: failing, args: map[string]any{"prompt": "hi"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &mcpHandler{asker: newRunner(t, tt.llm), logger: logging.NoOpLogger{}}

			result := callRunWorkflow(t, h, tt.args)
			assert.True(t, result.IsError)
		})
	}
}

func TestNewMCPServer_ListsTool(t *testing.T) {
	s := NewMCPServer(newRunner(t, model.NewScriptedModel("m")), "test", nil)

	tool := s.GetTool(ToolRunWorkflow)
	require.NotNil(t, tool)
	assert.Contains(t, tool.Tool.InputSchema.Required, "prompt")
}
