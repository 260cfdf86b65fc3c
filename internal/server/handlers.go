package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/hupe1980/agentflow/core"
)

// AgentRequest is the body of POST /api/agent.
type AgentRequest struct {
	Prompt string `json:"prompt"`
}

// Update is one progress record in an AgentResponse.
type Update struct {
	Step    string `json:"step"`
	Type    string `json:"type"`
	Content string `json:"content"`
}

// AgentResponse is the body of a successful POST /api/agent.
type AgentResponse struct {
	Result  string   `json:"result"`
	Updates []Update `json:"updates"`
}

// ErrorResponse is returned for any non-2xx status.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

const agentFailureMessage = "Failed to process agent request"

// Agent runs the workflow for the posted prompt.
// POST /api/agent
func (s *Server) Agent(c echo.Context) error {
	var req AgentRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("server.agent.rejected", "reason", "invalid request body", "error", err.Error())
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: agentFailureMessage})
	}

	if strings.TrimSpace(req.Prompt) == "" {
		s.logger.Warn("server.agent.rejected", "reason", "blank prompt", "error", core.ErrMalformedRequest.Error())
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: agentFailureMessage})
	}

	report, err := s.asker.Ask(c.Request().Context(), req.Prompt)
	if err != nil {
		runID := ""
		if report != nil {
			runID = report.RunID
		}
		if errors.Is(err, core.ErrMalformedRequest) {
			s.logger.Warn("server.agent.rejected", "run_id", runID, "error", err.Error())
		} else {
			s.logger.Error("server.agent.failed", "run_id", runID, "error", err.Error())
		}

		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: agentFailureMessage})
	}

	return c.JSON(http.StatusOK, AgentResponse{
		Result:  report.Result.FinalAnswer,
		Updates: toUpdates(report.Events),
	})
}

// Health reports liveness.
// GET /health
func (s *Server) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "healthy", Version: s.opts.Version})
}

func toUpdates(events []core.UpdateEvent) []Update {
	updates := make([]Update, 0, len(events))
	for _, ev := range events {
		updates = append(updates, Update{
			Step:    ev.Step,
			Type:    string(ev.Type),
			Content: ev.Content,
		})
	}
	return updates
}
