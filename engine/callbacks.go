package engine

import (
	"context"

	"github.com/hupe1980/agentflow/flow"
	"github.com/hupe1980/agentflow/logging"
)

// CallbackType defines the lifecycle points of a run where callbacks execute.
//
// Callbacks run synchronously on the run's goroutine. A BeforeStep or
// AfterStep callback that returns an error fails the run; errors returned by
// OnError callbacks are logged and otherwise ignored.
type CallbackType string

const (
	// CallbackBeforeStep is triggered after the router selected an agent and
	// before the step executes.
	CallbackBeforeStep CallbackType = "before_step"

	// CallbackAfterStep is triggered after a step completed and before its
	// events are emitted.
	CallbackAfterStep CallbackType = "after_step"

	// CallbackOnError is triggered once when a run fails.
	CallbackOnError CallbackType = "on_error"
)

// CallbackContext describes the step a callback is invoked for.
type CallbackContext struct {
	// RunID identifies the run.
	RunID string

	// Agent is the name of the step's agent. Empty for failures that happen
	// outside a step (for example a fatal step limit).
	Agent string

	// Step is the one-based step index.
	Step int

	// Result is set for AfterStep callbacks.
	Result *flow.StepResult

	// Err is set for OnError callbacks.
	Err error

	// CallbackType indicates which callback type triggered this execution.
	CallbackType CallbackType
}

// Callback is an execution lifecycle hook.
type Callback interface {
	// Type returns the callback type this implementation handles.
	Type() CallbackType

	// Execute performs the callback logic with the provided context.
	Execute(ctx context.Context, callbackCtx *CallbackContext) error
}

// FunctionCallback wraps a function as a callback implementation.
//
// Example:
//
//	audit := NewFunctionCallback(
//	    CallbackAfterStep,
//	    func(ctx context.Context, cc *CallbackContext) error {
//	        log.Printf("%s answered: %s", cc.Agent, cc.Result.Text)
//	        return nil
//	    },
//	)
type FunctionCallback struct {
	callbackType CallbackType
	fn           func(ctx context.Context, callbackCtx *CallbackContext) error
}

// NewFunctionCallback creates a new function-based callback.
func NewFunctionCallback(
	callbackType CallbackType,
	fn func(ctx context.Context, callbackCtx *CallbackContext) error,
) *FunctionCallback {
	return &FunctionCallback{
		callbackType: callbackType,
		fn:           fn,
	}
}

// Type returns the callback type this function handles.
func (c *FunctionCallback) Type() CallbackType {
	return c.callbackType
}

// Execute calls the wrapped function with the provided context.
func (c *FunctionCallback) Execute(ctx context.Context, callbackCtx *CallbackContext) error {
	return c.fn(ctx, callbackCtx)
}

// CallbackManager routes lifecycle hooks to registered callbacks.
//
// Callbacks are executed in registration order; the first error stops the
// chain. The manager is not safe for concurrent registration. Register all
// callbacks before the engine starts runs; execution is then safe for
// concurrent use.
type CallbackManager struct {
	callbacks map[CallbackType][]Callback
}

// NewCallbackManager creates an empty callback manager.
func NewCallbackManager() *CallbackManager {
	return &CallbackManager{
		callbacks: make(map[CallbackType][]Callback),
	}
}

// RegisterCallback adds a callback for its type.
func (cm *CallbackManager) RegisterCallback(callback Callback) {
	callbackType := callback.Type()
	cm.callbacks[callbackType] = append(cm.callbacks[callbackType], callback)
}

// ExecuteCallbacks executes all registered callbacks for the given type and
// returns the first error.
func (cm *CallbackManager) ExecuteCallbacks(
	ctx context.Context,
	callbackType CallbackType,
	callbackCtx *CallbackContext,
) error {
	if cm == nil {
		return nil
	}

	callbacks, exists := cm.callbacks[callbackType]
	if !exists {
		return nil
	}

	callbackCtx.CallbackType = callbackType

	for _, callback := range callbacks {
		if err := callback.Execute(ctx, callbackCtx); err != nil {
			return err
		}
	}

	return nil
}

// LoggingCallback writes one structured log line per lifecycle event.
type LoggingCallback struct {
	callbackType CallbackType
	logger       logging.Logger
}

// NewLoggingCallback creates a new logging callback.
func NewLoggingCallback(callbackType CallbackType, logger logging.Logger) *LoggingCallback {
	return &LoggingCallback{
		callbackType: callbackType,
		logger:       logger,
	}
}

// Type returns the callback type this logger handles.
func (c *LoggingCallback) Type() CallbackType {
	return c.callbackType
}

// Execute logs the callback context.
func (c *LoggingCallback) Execute(_ context.Context, callbackCtx *CallbackContext) error {
	if c.logger == nil {
		return nil
	}

	args := []any{"run_id", callbackCtx.RunID, "agent", callbackCtx.Agent, "step", callbackCtx.Step}
	if callbackCtx.Result != nil {
		args = append(args, "delegation_hint", callbackCtx.Result.DelegationHint, "degraded", callbackCtx.Result.Degraded)
	}
	if callbackCtx.Err != nil {
		args = append(args, "error", callbackCtx.Err.Error())
	}

	c.logger.Info("engine.callback."+string(c.callbackType), args...)

	return nil
}
