package server

import (
	"context"
	"fmt"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/hupe1980/agentflow/engine"
	"github.com/hupe1980/agentflow/logging"
)

// MCPPath is where the streamable HTTP MCP endpoint is mounted.
const MCPPath = "/mcp"

// ToolRunWorkflow is the MCP tool that runs a workflow.
const ToolRunWorkflow = "run_workflow"

type mcpHandler struct {
	asker  Asker
	logger logging.Logger
}

// NewMCPServer creates an MCP server offering the run_workflow tool.
func NewMCPServer(asker Asker, version string, logger logging.Logger) *mcpserver.MCPServer {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	h := &mcpHandler{asker: asker, logger: logger}

	s := mcpserver.NewMCPServer(
		"agentflow",
		version,
		mcpserver.WithToolCapabilities(true),
	)

	s.AddTool(
		mcp.NewTool(
			ToolRunWorkflow,
			mcp.WithDescription("Run the multi-agent workflow for a prompt and return the final answer followed by the step transcript."),
			mcp.WithString("prompt", mcp.Required(), mcp.Description("The user request")),
		),
		h.handleRunWorkflow,
	)

	return s
}

func (h *mcpHandler) handleRunWorkflow(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prompt, err := request.RequireString("prompt")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if strings.TrimSpace(prompt) == "" {
		return mcp.NewToolResultError("prompt must not be blank"), nil
	}

	report, err := h.asker.Ask(ctx, prompt)
	if err != nil {
		h.logger.Error("server.mcp.failed", "error", err.Error())
		return mcp.NewToolResultError(fmt.Sprintf("workflow failed: %v", err)), nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(report.Result.FinalAnswer),
			mcp.NewTextContent(engine.FormatTranscript(report.Events)),
		},
	}, nil
}

func mountMCP(e *echo.Echo, s *mcpserver.MCPServer) {
	h := mcpserver.NewStreamableHTTPServer(s, mcpserver.WithEndpointPath(MCPPath))
	e.Any(MCPPath, echo.WrapHandler(h))
}
