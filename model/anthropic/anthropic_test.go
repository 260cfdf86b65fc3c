package anthropic

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/model"
)

const messageBody = `{
  "id": "msg_1",
  "type": "message",
  "role": "assistant",
  "model": "claude-3-5-sonnet-20241022",
  "content": [
    {"type": "text", "text": "Checking the weather."},
    {"type": "tool_use", "id": "tu_1", "name": "weather", "input": {"location": "Berlin"}}
  ],
  "stop_reason": "tool_use",
  "stop_sequence": null,
  "usage": {"input_tokens": 10, "output_tokens": 5}
}`

func TestModel_Generate(t *testing.T) {
	var captured map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &captured)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(messageBody))
	}))
	defer srv.Close()

	m := NewModel(func(o *Options) {
		o.APIKey = "test"
		o.BaseURL = srv.URL
		o.MaxRetries = 0
	})

	resp, err := model.Collect(context.Background(), m, model.Request{
		Instructions: "You are a weather agent.",
		Contents:     []core.Content{core.NewTextContent("user", "Weather in Berlin?")},
		Tools: []model.ToolDefinition{{Type: "function", Function: model.FunctionDefinition{
			Name:        "weather",
			Description: "Current weather",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{"location": map[string]any{"type": "string"}},
				"required":   []string{"location"},
			},
		}}},
	})
	require.NoError(t, err)

	assert.Equal(t, "Checking the weather.", resp.Content.Text())
	calls := resp.Content.FunctionCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "weather", calls[0].Name)
	assert.JSONEq(t, `{"location":"Berlin"}`, calls[0].Arguments)
	assert.Equal(t, "tool_use", resp.FinishReason)
	assert.Equal(t, 15, resp.Usage.TotalTokens)

	system, ok := captured["system"].([]any)
	require.True(t, ok)
	assert.Equal(t, "You are a weather agent.", system[0].(map[string]any)["text"])
	tools, ok := captured["tools"].([]any)
	require.True(t, ok)
	assert.Equal(t, "Current weather", tools[0].(map[string]any)["description"])
}

func TestBuildMessages_ToolResultsAreUserTurns(t *testing.T) {
	msgs := buildMessages([]core.Content{
		core.NewTextContent("system", "ignored here"),
		core.NewTextContent("user", "Weather?"),
		{Role: "assistant", Parts: []core.Part{core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: "tu_1", Name: "weather", Arguments: `{"location":"Berlin"}`}}}},
		{Role: "tool", Parts: []core.Part{core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{ID: "tu_1", Name: "weather", Response: "12C"}}}},
	})

	require.Len(t, msgs, 3)
	assert.Equal(t, "user", string(msgs[0].Role))
	assert.Equal(t, "assistant", string(msgs[1].Role))
	assert.Equal(t, "user", string(msgs[2].Role))
	require.Len(t, msgs[2].Content, 1)
	assert.NotNil(t, msgs[2].Content[0].OfToolResult)
}

func TestInfo(t *testing.T) {
	m := NewModel(func(o *Options) { o.APIKey = "k" })
	assert.Equal(t, "anthropic", m.Info().Provider)
	assert.NotEmpty(t, m.Info().Name)
}
