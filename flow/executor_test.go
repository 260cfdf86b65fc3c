package flow

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentflow/agent"
	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/internal/testutil"
	"github.com/hupe1980/agentflow/model"
	"github.com/hupe1980/agentflow/tool"
)

func newMemory(t *testing.T, prompt string) *core.Memory {
	t.Helper()
	mem := core.NewMemory()
	require.NoError(t, mem.Append(core.NewUserMessage(prompt)))
	return mem
}

func newStep(t *testing.T, def *agent.Definition, targets ...*agent.Definition) Step {
	t.Helper()
	return Step{RunID: "run-1", Agent: def, Memory: newMemory(t, "hello"), Targets: targets}
}

func TestExecute_PlainAnswer(t *testing.T) {
	llm := model.NewScriptedModel("m", model.TextResponse("Paris"))
	def := agent.MustNew("Solver", llm, agent.WithInstructions("Answer {{.agent}} questions."), agent.WithTerminal())

	step := newStep(t, def)
	res, err := NewExecutor().Execute(context.Background(), step)
	require.NoError(t, err)

	assert.Equal(t, "Solver", res.Agent)
	assert.Equal(t, "Paris", res.Text)
	assert.Empty(t, res.DelegationHint)
	assert.False(t, res.Degraded)

	last, ok := step.Memory.Last()
	require.True(t, ok)
	assert.Equal(t, core.RoleAssistant, last.Role)
	assert.Equal(t, "Paris", last.Text)
	assert.Equal(t, 2, step.Memory.Len())

	reqs := llm.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "Answer Solver questions.", reqs[0].Instructions)
	require.Len(t, reqs[0].Contents, 1)
	assert.Equal(t, "hello", reqs[0].Contents[0].Text())
	assert.Empty(t, reqs[0].Tools)
}

func TestExecute_ToolLoop(t *testing.T) {
	llm := model.NewScriptedModel("m",
		model.ToolCallResponse("c1", "sum", `{"a":2,"b":3}`),
		model.TextResponse("The sum is 5"),
	)
	sum := tool.NewFunctionTool("sum", "add", nil, func(_ *core.ToolContext, args map[string]any) (any, error) {
		return args["a"].(float64) + args["b"].(float64), nil
	})
	def := agent.MustNew("Solver", llm, agent.WithTools(sum))

	res, err := NewExecutor().Execute(context.Background(), newStep(t, def))
	require.NoError(t, err)
	assert.Equal(t, "The sum is 5", res.Text)
	require.Len(t, res.ToolCalls, 1)
	assert.Equal(t, "5", res.ToolCalls[0].Output)
	assert.Equal(t, 1, res.ToolCalls[0].Attempts)

	reqs := llm.Requests()
	require.Len(t, reqs, 2)
	follow := reqs[1].Contents
	require.Len(t, follow, 3)
	assert.Equal(t, "assistant", follow[1].Role)
	assert.Len(t, follow[1].FunctionCalls(), 1)
	assert.Equal(t, "tool", follow[2].Role)
	frs := follow[2].FunctionResponses()
	require.Len(t, frs, 1)
	assert.Equal(t, "c1", frs[0].ID)
	assert.Equal(t, 5.0, frs[0].Response)
}

func TestExecute_ToolRetriedOnceThenDegraded(t *testing.T) {
	var calls atomic.Int32
	flaky := tool.NewFunctionTool("search", "search", nil, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		calls.Add(1)
		return nil, errors.New("upstream down")
	})
	llm := model.NewScriptedModel("m",
		model.ToolCallResponse("c1", "search", `{}`),
		model.TextResponse("Sorry, search is unavailable."),
	)
	def := agent.MustNew("Crawler", llm, agent.WithTools(flaky))

	res, err := NewExecutor().Execute(context.Background(), newStep(t, def))
	require.NoError(t, err)

	assert.Equal(t, int32(2), calls.Load())
	assert.True(t, res.Degraded)
	require.Len(t, res.ToolCalls, 1)
	assert.Equal(t, 2, res.ToolCalls[0].Attempts)
	assert.ErrorIs(t, res.ToolCalls[0].Err, core.ErrToolInvocationFailed)
	assert.Equal(t, "Sorry, search is unavailable.", res.Text)

	frs := llm.Requests()[1].Contents[2].FunctionResponses()
	require.Len(t, frs, 1)
	assert.Contains(t, frs[0].Error, "upstream down")
}

func TestExecute_ToolSucceedsOnRetry(t *testing.T) {
	var calls atomic.Int32
	flaky := tool.NewFunctionTool("search", "search", nil, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("transient")
		}
		return "ok", nil
	})
	llm := model.NewScriptedModel("m", model.ToolCallResponse("c1", "search", ""), model.TextResponse("done"))
	def := agent.MustNew("Crawler", llm, agent.WithTools(flaky))

	res, err := NewExecutor().Execute(context.Background(), newStep(t, def))
	require.NoError(t, err)
	assert.False(t, res.Degraded)
	assert.Equal(t, 2, res.ToolCalls[0].Attempts)
	assert.Equal(t, "ok", res.ToolCalls[0].Output)
}

func TestExecute_UnknownToolAndPanicAreDegraded(t *testing.T) {
	boom := tool.NewFunctionTool("boom", "panics", nil, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		panic("kaput")
	})
	llm := model.NewScriptedModel("m",
		model.Response{Content: core.Content{Role: "assistant", Parts: []core.Part{
			core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: "a", Name: "missing"}},
			core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: "b", Name: "boom"}},
		}}},
		model.TextResponse("partial answer"),
	)
	def := agent.MustNew("Solver", llm, agent.WithTools(boom))

	res, err := NewExecutor().Execute(context.Background(), newStep(t, def))
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	require.Len(t, res.ToolCalls, 2)
	assert.Equal(t, 2, res.ToolCalls[0].Attempts)
	assert.Equal(t, 2, res.ToolCalls[1].Attempts)
	assert.Contains(t, res.ToolCalls[1].Output, "panic recovered")
	assert.Equal(t, "partial answer", res.Text)
}

func TestExecute_ToolTimeout(t *testing.T) {
	slow := tool.NewFunctionTool("slow", "slow", nil, func(tc *core.ToolContext, _ map[string]any) (any, error) {
		<-tc.Context().Done()
		return nil, tc.Context().Err()
	})
	llm := model.NewScriptedModel("m", model.ToolCallResponse("c1", "slow", ""), model.TextResponse("gave up"))
	def := agent.MustNew("Solver", llm, agent.WithTools(slow))

	exec := NewExecutor(func(o *Options) { o.ToolTimeout = 10 * time.Millisecond })
	res, err := exec.Execute(context.Background(), newStep(t, def))
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.Equal(t, 2, res.ToolCalls[0].Attempts)

	var toolErr *tool.ToolError
	require.ErrorAs(t, res.ToolCalls[0].Err, &toolErr)
	assert.Equal(t, tool.CodeTimeout, toolErr.Code)
}

func TestExecute_ToolRoundsExhausted(t *testing.T) {
	echo := tool.NewFunctionTool("echo", "echo", nil, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return "again", nil
	})
	llm := model.NewScriptedModel("m", model.ToolCallResponse("c", "echo", ""))
	def := agent.MustNew("Looper", llm, agent.WithTools(echo))

	exec := NewExecutor(func(o *Options) { o.MaxToolRounds = 2 })
	res, err := exec.Execute(context.Background(), newStep(t, def))
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.Len(t, res.ToolCalls, 2)
	assert.Equal(t, 3, llm.Calls())
	assert.Equal(t, exhaustedText, res.Text)
}

func TestExecute_ModelErrorIsUnavailable(t *testing.T) {
	llm := model.NewFuncModel("m", func(context.Context, model.Request, int) (model.Response, error) {
		return model.Response{}, errors.New("connection refused")
	})
	def := agent.MustNew("Solver", llm)

	step := newStep(t, def)
	_, err := NewExecutor().Execute(context.Background(), step)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrModelUnavailable)

	var stepErr *core.StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "Solver", stepErr.Agent)
	assert.Equal(t, 1, step.Memory.Len())
}

func TestExecute_ModelTimeoutIsUnavailable(t *testing.T) {
	llm := model.NewFuncModel("m", func(ctx context.Context, _ model.Request, _ int) (model.Response, error) {
		<-ctx.Done()
		return model.Response{}, ctx.Err()
	})
	def := agent.MustNew("Solver", llm)

	exec := NewExecutor(func(o *Options) { o.ModelTimeout = 10 * time.Millisecond })
	_, err := exec.Execute(context.Background(), newStep(t, def))
	assert.ErrorIs(t, err, core.ErrModelUnavailable)
}

func TestExecute_CancelledRunIsNotModelFailure(t *testing.T) {
	llm := model.NewFuncModel("m", func(ctx context.Context, _ model.Request, _ int) (model.Response, error) {
		<-ctx.Done()
		return model.Response{}, ctx.Err()
	})
	def := agent.MustNew("Solver", llm)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewExecutor().Execute(ctx, newStep(t, def))
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, core.ErrModelUnavailable)
}

func TestExecute_EmptyModelTextFails(t *testing.T) {
	llm := model.NewScriptedModel("m", model.TextResponse("   "))
	def := agent.MustNew("Solver", llm)

	_, err := NewExecutor().Execute(context.Background(), newStep(t, def))
	assert.ErrorIs(t, err, core.ErrModelUnavailable)
}

func TestExecute_TransferTool(t *testing.T) {
	llm := model.NewScriptedModel("m",
		model.ToolCallResponse("c1", tool.TransferToAgentName, `{"agent":"Crawler"}`),
		model.TextResponse("should not be requested"),
	)
	analyser := agent.MustNew("Analyser", llm)
	crawler := agent.MustNew("Crawler", model.NewMockModel("mock"), agent.WithDescription("crawls pages"))

	step := newStep(t, analyser, crawler)
	res, err := NewExecutor().Execute(context.Background(), step)
	require.NoError(t, err)

	assert.Equal(t, "Crawler", res.DelegationHint)
	assert.Equal(t, "Delegating to Crawler.", res.Text)
	assert.Equal(t, 1, llm.Calls())

	req := llm.Requests()[0]
	require.Len(t, req.Tools, 1)
	assert.Equal(t, tool.TransferToAgentName, req.Tools[0].Function.Name)
	assert.Contains(t, req.Instructions, "- Crawler: crawls pages")
}

func TestExecute_HandoffDirective(t *testing.T) {
	llm := model.NewScriptedModel("m", model.TextResponse("Needs a crawl.\nHANDOFF: Crawler"))
	analyser := agent.MustNew("Analyser", llm)
	crawler := agent.MustNew("Crawler", model.NewMockModel("mock"))

	step := newStep(t, analyser, crawler)
	res, err := NewExecutor().Execute(context.Background(), step)
	require.NoError(t, err)
	assert.Equal(t, "Crawler", res.DelegationHint)
	assert.Equal(t, "Needs a crawl.", res.Text)

	last, _ := step.Memory.Last()
	assert.Equal(t, "Needs a crawl.", last.Text)
}

func TestExecute_TerminalAgentGetsNoTransferTool(t *testing.T) {
	llm := model.NewScriptedModel("m", model.TextResponse("done"))
	solver := agent.MustNew("Solver", llm, agent.WithTerminal())
	other := agent.MustNew("Other", model.NewMockModel("mock"))

	_, err := NewExecutor().Execute(context.Background(), newStep(t, solver, other))
	require.NoError(t, err)

	req := llm.Requests()[0]
	assert.Empty(t, req.Tools)
	assert.NotContains(t, req.Instructions, HandoffPrefix)
}

func TestExecute_HistoryWindow(t *testing.T) {
	llm := model.NewScriptedModel("m", model.TextResponse("ok"))
	def := agent.MustNew("Solver", llm, func(o *agent.Options) { o.MaxHistoryMessages = 2 })

	mem := core.NewMemory()
	for _, txt := range []string{"one", "two", "three"} {
		require.NoError(t, mem.Append(core.NewUserMessage(txt)))
	}

	_, err := NewExecutor().Execute(context.Background(), Step{Agent: def, Memory: mem})
	require.NoError(t, err)

	contents := llm.Requests()[0].Contents
	require.Len(t, contents, 2)
	assert.Equal(t, "two", contents[0].Text())
	assert.Equal(t, "three", contents[1].Text())
}

func TestExecute_TransferToolWinsOverHandoffText(t *testing.T) {
	llm := model.NewScriptedModel("m",
		testutil.NewResponseBuilder().
			Text("Handing over.").
			Handoff("Writer").
			Transfer("Crawler").
			Build(),
	)
	analyser := agent.MustNew("Analyser", llm)
	crawler := agent.MustNew("Crawler", model.NewMockModel("mock"))
	writer := agent.MustNew("Writer", model.NewMockModel("mock"))

	mem := testutil.NewMemoryBuilder().System("Be brief.").User("Summarise go.dev").Build()

	res, err := NewExecutor().Execute(context.Background(), Step{Agent: analyser, Memory: mem, Targets: []*agent.Definition{crawler, writer}})
	require.NoError(t, err)
	assert.Equal(t, "Crawler", res.DelegationHint)
	assert.Equal(t, "Handing over.", res.Text)
	assert.Equal(t, 3, mem.Len())

	req := llm.Requests()[0]
	require.Len(t, req.Contents, 2)
	assert.Equal(t, "system", req.Contents[0].Role)
	assert.Equal(t, []string{"Crawler", "Writer"}, req.Tools[0].Function.Parameters["properties"].(map[string]any)["agent"].(map[string]any)["enum"])
}
