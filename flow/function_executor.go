package flow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/logging"
	"github.com/hupe1980/agentflow/model"
	"github.com/hupe1980/agentflow/tool"
)

// maxToolAttempts is the number of invocations per tool call: the first
// attempt and one retry.
const maxToolAttempts = 2

// ToolTrace records one resolved tool call of a step.
type ToolTrace struct {
	Call     core.FunctionCall `json:"call"`
	Output   string            `json:"output"`
	Attempts int               `json:"attempts"`
	Degraded bool              `json:"degraded"`
	Duration time.Duration     `json:"duration"`
	Err      error             `json:"-"`
}

// toolInvoker resolves function calls against a step's tools.
type toolInvoker struct {
	tools   *tool.Set
	timeout time.Duration
	logger  logging.Logger
}

// invoke runs fc, retrying once on failure. A call that fails twice yields a
// degraded function response instead of an error. The returned target is a
// delegation request recorded by the call, if any.
func (inv *toolInvoker) invoke(ctx context.Context, step *Step, fc core.FunctionCall) (core.FunctionResponse, ToolTrace, string) {
	trace := ToolTrace{Call: fc}
	start := time.Now()

	var (
		result any
		target string
		err    error
	)

	for trace.Attempts < maxToolAttempts {
		trace.Attempts++
		if trace.Attempts > 1 {
			inv.logger.Warn("flow.tool.retry", "agent", step.Agent.Name(), "tool", fc.Name, "error", err.Error())
		}

		result, target, err = inv.call(ctx, step, fc)
		if err == nil || ctx.Err() != nil {
			break
		}
	}

	trace.Duration = time.Since(start)

	inv.logger.Info(
		"flow.tool.executed",
		"agent", step.Agent.Name(),
		"tool", fc.Name,
		"attempts", trace.Attempts,
		"duration_ms", trace.Duration.Milliseconds(),
		"error", err != nil,
	)

	resp := core.FunctionResponse{ID: fc.ID, Name: fc.Name}

	if err != nil {
		trace.Err = fmt.Errorf("%w: %s: %w", core.ErrToolInvocationFailed, fc.Name, err)
		trace.Degraded = true
		trace.Output = degradedToolOutput(fc.Name, err)
		resp.Error = trace.Output

		inv.logger.Error("flow.tool.failed", "agent", step.Agent.Name(), "tool", fc.Name, "error", err.Error())

		return resp, trace, ""
	}

	resp.Response = result
	trace.Output = model.ToolResponseText(resp)

	return resp, trace, target
}

// call executes fc once, bounded by the tool timeout, converting panics to
// errors. It also returns the delegation target the tool requested, if any.
func (inv *toolInvoker) call(ctx context.Context, step *Step, fc core.FunctionCall) (any, string, error) {
	impl, ok := inv.tools.Get(fc.Name)
	if !ok {
		return nil, "", tool.NewToolError(fc.Name, fmt.Sprintf("tool %s not found", fc.Name), tool.CodeNotFound)
	}

	args := map[string]any{}
	if fc.Arguments != "" {
		if err := json.Unmarshal([]byte(fc.Arguments), &args); err != nil {
			return nil, "", tool.NewToolError(fc.Name, fmt.Sprintf("failed to unmarshal args: %v", err), tool.CodeValidation)
		}
	}

	callCtx := ctx
	if inv.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, inv.timeout)
		defer cancel()
	}

	toolCtx := core.NewToolContext(callCtx, step.RunID, step.Agent.Name(), fc.ID, inv.logger)

	type outcome struct {
		result any
		err    error
	}

	done := make(chan outcome, 1)

	go func() {
		var o outcome
		defer func() {
			if r := recover(); r != nil {
				inv.logger.Error("flow.tool.panic", "agent", step.Agent.Name(), "tool", fc.Name, "recover", r)
				o = outcome{err: panicError(r)}
			}
			done <- o
		}()
		o.result, o.err = impl.Call(toolCtx, args)
	}()

	select {
	case o := <-done:
		if o.err != nil {
			return nil, "", o.err
		}
		target, _ := toolCtx.TransferTarget()
		return o.result, target, nil
	case <-callCtx.Done():
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return nil, "", tool.NewToolError(fc.Name, "tool call timed out", tool.CodeTimeout)
		}
		return nil, "", callCtx.Err()
	}
}

func degradedToolOutput(name string, err error) string {
	return fmt.Sprintf("tool %s is unavailable (%v); tell the user this part of the task could not be completed", name, err)
}

// panicError converts a recovered panic value to an error.
func panicError(r any) error { return &panicErr{val: r, stack: debug.Stack()} }

type panicErr struct {
	val   any
	stack []byte
}

func (p *panicErr) Error() string { return fmt.Sprintf("panic recovered: %v", p.val) }
