package model

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentflow/core"
)

func userRequest(text string) Request {
	return Request{Contents: []core.Content{core.NewTextContent("user", text)}}
}

func TestMockModel_CannedAndEcho(t *testing.T) {
	m := NewMockModel("mock-1")
	m.AddResponse("What's 2+2?", "4")

	resp, err := Collect(context.Background(), m, userRequest("What's 2+2?"))
	require.NoError(t, err)
	assert.Equal(t, "4", resp.Content.Text())

	resp, err = Collect(context.Background(), m, userRequest("hello"))
	require.NoError(t, err)
	assert.Equal(t, "Mock response to: hello", resp.Content.Text())

	_, err = Collect(context.Background(), m, Request{})
	assert.Error(t, err)
	assert.Equal(t, "mock", m.Info().Provider)
}

func TestScriptedModel_ReplaysAndRecords(t *testing.T) {
	m := NewScriptedModel("s",
		ToolCallResponse("c1", "web_search", `{"query":"go"}`),
		TextResponse("done"),
	)

	first, err := Collect(context.Background(), m, userRequest("a"))
	require.NoError(t, err)
	require.Len(t, first.Content.FunctionCalls(), 1)
	assert.Equal(t, "web_search", first.Content.FunctionCalls()[0].Name)

	for i := 0; i < 2; i++ {
		resp, err := Collect(context.Background(), m, userRequest("b"))
		require.NoError(t, err)
		assert.Equal(t, "done", resp.Content.Text())
	}

	assert.Equal(t, 3, m.Calls())
	assert.Equal(t, "b", m.Requests()[2].Contents[0].Text())
}

func TestCollect_Errors(t *testing.T) {
	boom := errors.New("boom")
	failing := NewFuncModel("f", func(context.Context, Request, int) (Response, error) { return Response{}, boom })
	_, err := Collect(context.Background(), failing, Request{})
	assert.ErrorIs(t, err, boom)

	_, err = Collect(context.Background(), NewScriptedModel("empty"), Request{})
	assert.ErrorIs(t, err, ErrEmptyResponse)

	slow := NewFuncModel("slow", func(ctx context.Context, _ Request, _ int) (Response, error) {
		<-ctx.Done()
		return Response{}, ctx.Err()
	})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = Collect(ctx, slow, Request{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestToolResponseText(t *testing.T) {
	assert.Equal(t, "plain", ToolResponseText(core.FunctionResponse{Response: "plain"}))
	assert.Equal(t, `{"a":1}`, ToolResponseText(core.FunctionResponse{Response: map[string]int{"a": 1}}))
	assert.Equal(t, "error: nope", ToolResponseText(core.FunctionResponse{Error: "nope"}))
}
