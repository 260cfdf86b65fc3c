package core

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownAgent is returned when a name does not resolve to a registered agent.
	ErrUnknownAgent = errors.New("unknown agent")
	// ErrDuplicateAgent is returned when registering a name twice.
	ErrDuplicateAgent = errors.New("duplicate agent")
	// ErrRegistrySealed is returned when registering after the registry was sealed.
	ErrRegistrySealed = errors.New("registry sealed")
	// ErrToolInvocationFailed marks a tool call that failed after its retry.
	ErrToolInvocationFailed = errors.New("tool invocation failed")
	// ErrModelUnavailable marks a failed or timed out model call. Fatal to the run.
	ErrModelUnavailable = errors.New("model unavailable")
	// ErrStepLimitExceeded is returned when a run exceeds its step budget under the fail policy.
	ErrStepLimitExceeded = errors.New("step limit exceeded")
	// ErrMalformedRequest is returned for empty or invalid run input.
	ErrMalformedRequest = errors.New("malformed request")
	// ErrMalformedMessage is returned when appending a message without role or text.
	ErrMalformedMessage = errors.New("malformed message")
)

// StepError attributes a run failure to the step and agent that caused it.
type StepError struct {
	Agent string
	Step  int
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Step, e.Agent, e.Err)
}

// Unwrap exposes the underlying cause to errors.Is / errors.As.
func (e *StepError) Unwrap() error { return e.Err }
