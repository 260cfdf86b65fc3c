package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentflow/agent"
	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/model"
)

func TestTranscript_RoundTripFromRun(t *testing.T) {
	analyser := agent.MustNew("Analyser", model.NewScriptedModel("m", model.TextResponse("Needs the web.\nHANDOFF: Crawler")))
	crawler := agent.MustNew("Crawler", model.NewScriptedModel("m", model.TextResponse("Line one.\n\n### Step 9: Fake (update)\nLine three.")), agent.WithTerminal())

	eng := newEngine(t, []*agent.Definition{analyser, crawler})
	_, events, err := eng.Ask(context.Background(), "check")
	require.NoError(t, err)

	text := FormatTranscript(events)
	assert.Contains(t, text, "### Step 1: Analyser (update)\nNeeds the web.\n")
	assert.Contains(t, text, "\\### Step 9: Fake (update)")

	parsed, err := ParseTranscript(text)
	require.NoError(t, err)
	require.Len(t, parsed, len(events))

	for i := range events {
		assert.Equal(t, events[i].Step, parsed[i].Step)
		assert.Equal(t, events[i].Type, parsed[i].Type)
		assert.Equal(t, events[i].Content, parsed[i].Content)
		assert.Equal(t, events[i].Metadata.StepIndex, parsed[i].Metadata.StepIndex)
	}
}

func TestTranscript_MixedTypes(t *testing.T) {
	events := []core.UpdateEvent{
		core.NewToolEvent("Solver", 1, "clock", "12:00"),
		core.NewUpdateEvent("Solver", 1, "It is noon."),
		core.NewDiagnosticEvent("Solver", 1, "StepLimitExceeded: stopped"),
		{Step: "Empty", Type: core.EventTypeUpdate},
	}

	parsed, err := ParseTranscript(FormatTranscript(events))
	require.NoError(t, err)
	require.Len(t, parsed, 4)
	assert.Equal(t, core.EventTypeTool, parsed[0].Type)
	assert.Equal(t, core.EventTypeDiagnostic, parsed[2].Type)
	assert.Equal(t, "", parsed[3].Content)
	assert.Equal(t, 4, parsed[3].Metadata.StepIndex)
}

func TestParseTranscript_Invalid(t *testing.T) {
	_, err := ParseTranscript("stray text\n### Step 1: A (update)\nx\n")
	assert.Error(t, err)

	events, err := ParseTranscript("")
	require.NoError(t, err)
	assert.Empty(t, events)
}
