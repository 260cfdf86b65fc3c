package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hupe1980/agentflow/logging"
)

func TestStepLimiter(t *testing.T) {
	l := NewStepLimiter(2)
	assert.True(t, l.Allow())
	l.Increment()
	assert.True(t, l.Allow())
	l.Increment()
	assert.False(t, l.Allow())
	assert.Equal(t, 2, l.Count())
	assert.Equal(t, 0, l.Remaining())

	unlimited := NewStepLimiter(0)
	unlimited.Increment()
	assert.True(t, unlimited.Allow())
	assert.Equal(t, -1, unlimited.Remaining())
}

func TestRun_StatusIsSticky(t *testing.T) {
	r := NewRun()
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, RunStatusRunning, r.Status())

	r.SetStatus(RunStatusFailed)
	r.SetStatus(RunStatusCompleted)
	assert.Equal(t, RunStatusFailed, r.Status())
}

func TestStepError_Unwrap(t *testing.T) {
	err := fmt.Errorf("run failed: %w", &StepError{Agent: "Solver", Step: 1, Err: fmt.Errorf("%w: timeout", ErrModelUnavailable)})
	assert.True(t, errors.Is(err, ErrModelUnavailable))

	var se *StepError
	assert.True(t, errors.As(err, &se))
	assert.Equal(t, "Solver", se.Agent)
	assert.Contains(t, err.Error(), "step 1 (Solver)")
}

func TestContent_Helpers(t *testing.T) {
	c := Content{Role: "assistant", Parts: []Part{
		TextPart{Text: "Hello "},
		FunctionCallPart{FunctionCall: FunctionCall{ID: "1", Name: "web_search", Arguments: `{"query":"go"}`}},
		TextPart{Text: "world"},
		FunctionResponsePart{FunctionResponse: FunctionResponse{ID: "1", Name: "web_search", Response: "ok"}},
	}}

	assert.Equal(t, "Hello world", c.Text())
	assert.Len(t, c.FunctionCalls(), 1)
	assert.Equal(t, "web_search", c.FunctionCalls()[0].Name)
	assert.Len(t, c.FunctionResponses(), 1)

	mc := ContentFromMessage(NewUserMessage("hi"))
	assert.Equal(t, "user", mc.Role)
	assert.Equal(t, "hi", mc.Text())
}

func TestToolContext_Transfer(t *testing.T) {
	tc := NewToolContext(context.Background(), "run-1", "Analyser", "call-1", logging.NoOpLogger{})
	_, ok := tc.TransferTarget()
	assert.False(t, ok)

	tc.TransferToAgent("Crawler")
	target, ok := tc.TransferTarget()
	assert.True(t, ok)
	assert.Equal(t, "Crawler", target)
	assert.Equal(t, "Analyser", tc.AgentName())
	assert.Equal(t, "call-1", tc.FunctionCallID())
	assert.Equal(t, "run-1", tc.RunID())
	assert.NotNil(t, tc.Logger())
}

func TestUpdateEvent_Constructors(t *testing.T) {
	ev := NewUpdateEvent("Solver", 1, "4")
	assert.True(t, ev.IsUpdate())
	assert.Equal(t, 1, ev.Metadata.StepIndex)

	d := NewDiagnosticEvent("Solver", 3, "StepLimitExceeded")
	assert.Equal(t, EventTypeDiagnostic, d.Type)

	te := NewToolEvent("Crawler", 2, "web_crawl", "ok")
	assert.Equal(t, "web_crawl", te.Metadata.Tool)
	assert.False(t, te.IsUpdate())
}
