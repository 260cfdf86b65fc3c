package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/logging"
	"github.com/hupe1980/agentflow/model"
	"github.com/hupe1980/agentflow/tool"
)

// DefaultMaxToolRounds bounds the tool loop of one step.
const DefaultMaxToolRounds = 8

// exhaustedText is the step text when the tool loop ends without any model text.
const exhaustedText = "I could not finish this task within the available tool calls."

// Options configure an Executor.
type Options struct {
	// MaxToolRounds is the number of tool-call rounds per step (default 8).
	MaxToolRounds int
	// ModelTimeout bounds every model call (0 = no timeout).
	ModelTimeout time.Duration
	// ToolTimeout bounds every tool attempt (0 = no timeout).
	ToolTimeout time.Duration
	// Processors build the model request (default DefaultProcessors()).
	Processors []RequestProcessor
	// Logger receives step diagnostics.
	Logger logging.Logger
}

// StepResult is the outcome of one step.
type StepResult struct {
	Agent          string      `json:"agent"`
	Text           string      `json:"text"`
	DelegationHint string      `json:"delegation_hint,omitempty"`
	ToolCalls      []ToolTrace `json:"tool_calls,omitempty"`
	Degraded       bool        `json:"degraded,omitempty"`
}

// Executor runs agent steps. It holds no per-run state and is safe for
// concurrent use.
type Executor struct {
	opts Options
}

// NewExecutor creates an Executor.
func NewExecutor(optFns ...func(o *Options)) *Executor {
	opts := Options{
		MaxToolRounds: DefaultMaxToolRounds,
		Processors:    DefaultProcessors(),
		Logger:        logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.MaxToolRounds <= 0 {
		opts.MaxToolRounds = DefaultMaxToolRounds
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Executor{opts: opts}
}

// Execute runs step.Agent against step.Memory. On success the step text is
// appended to memory as an assistant message. Model failures are returned
// wrapped in core.ErrModelUnavailable; tool failures never fail the step.
func (e *Executor) Execute(ctx context.Context, step Step) (StepResult, error) {
	name := step.Agent.Name()
	result := StepResult{Agent: name}

	req := model.Request{}
	for _, p := range e.opts.Processors {
		if err := p.ProcessRequest(ctx, &step, &req); err != nil {
			return result, fmt.Errorf("request processor %s failed: %w", p.Name(), err)
		}
	}

	tools, err := tool.NewSet(stepTools(&step)...)
	if err != nil {
		return result, err
	}

	invoker := &toolInvoker{tools: tools, timeout: e.opts.ToolTimeout, logger: e.opts.Logger}

	e.opts.Logger.Debug("flow.step.start", "run_id", step.RunID, "agent", name, "step", step.Index, "contents", len(req.Contents), "tools", len(req.Tools))

	var (
		lastText string
		transfer string
	)

	for round := 0; ; round++ {
		resp, err := e.generate(ctx, &step, req)
		if err != nil {
			return result, err
		}

		text := strings.TrimSpace(resp.Content.Text())
		if text != "" {
			lastText = text
		}

		calls := resp.Content.FunctionCalls()
		if len(calls) == 0 {
			break
		}

		if round >= e.opts.MaxToolRounds {
			e.opts.Logger.Warn("flow.tool.rounds_exhausted", "agent", name, "rounds", round)
			result.Degraded = true
			break
		}

		responses := make([]core.Part, 0, len(calls))
		for _, fc := range calls {
			fr, trace, target := invoker.invoke(ctx, &step, fc)
			if target != "" {
				transfer = target
			}
			if trace.Degraded {
				result.Degraded = true
			}
			result.ToolCalls = append(result.ToolCalls, trace)
			responses = append(responses, core.FunctionResponsePart{FunctionResponse: fr})
		}

		if err := ctx.Err(); err != nil {
			return result, err
		}

		if transfer != "" {
			break
		}

		req.Contents = append(req.Contents,
			core.Content{Role: string(core.RoleAssistant), Parts: resp.Content.Parts},
			core.Content{Role: "tool", Parts: responses},
		)
	}

	text, hint, _ := ParseHandoff(lastText)
	if transfer != "" {
		hint = transfer
	}

	if text == "" {
		switch {
		case hint != "":
			text = fmt.Sprintf("Delegating to %s.", hint)
		case result.Degraded:
			text = exhaustedText
		default:
			return result, &core.StepError{Agent: name, Step: step.Index, Err: fmt.Errorf("%w: %w", core.ErrModelUnavailable, model.ErrEmptyResponse)}
		}
	}

	result.Text = text
	result.DelegationHint = hint

	if err := step.Memory.AppendText(core.RoleAssistant, text); err != nil {
		return result, err
	}

	e.opts.Logger.Info(
		"flow.step.completed",
		"run_id", step.RunID,
		"agent", name,
		"step", step.Index,
		"tool_calls", len(result.ToolCalls),
		"delegation_hint", hint,
		"degraded", result.Degraded,
	)

	return result, nil
}

// generate performs one model call bounded by the model timeout.
func (e *Executor) generate(ctx context.Context, step *Step, req model.Request) (model.Response, error) {
	callCtx := ctx
	if e.opts.ModelTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.opts.ModelTimeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := model.Collect(callCtx, step.Agent.Model(), req)

	e.opts.Logger.Debug("flow.model.call", "agent", step.Agent.Name(), "model", step.Agent.Model().Info().Name, "duration_ms", time.Since(start).Milliseconds(), "error", err != nil)

	if err != nil {
		// Cancellation of the run itself is not a model failure.
		if ctx.Err() != nil && !errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return model.Response{}, ctx.Err()
		}
		e.opts.Logger.Error("flow.model.failed", "agent", step.Agent.Name(), "error", err.Error())
		return model.Response{}, &core.StepError{Agent: step.Agent.Name(), Step: step.Index, Err: fmt.Errorf("%w: %w", core.ErrModelUnavailable, err)}
	}

	return resp, nil
}
