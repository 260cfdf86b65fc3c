package core

import (
	"context"
	"sync"
	"time"
)

// RunStatus is the lifecycle state of a workflow run.
type RunStatus string

const (
	// RunStatusRunning is set while steps are executing.
	RunStatusRunning RunStatus = "RUNNING"
	// RunStatusCompleted is set once a Result was produced.
	RunStatusCompleted RunStatus = "COMPLETED"
	// RunStatusFailed is set when the run ended with an error.
	RunStatusFailed RunStatus = "FAILED"
)

// Result is the final answer of a successful run.
type Result struct {
	FinalAnswer string `json:"final_answer"`
	Agent       string `json:"agent"` // agent whose step produced the answer
	Steps       int    `json:"steps"`
}

// Run is the per-request state of one workflow execution. It owns its Memory
// and is discarded once the response is produced.
type Run struct {
	ID        string
	Memory    *Memory
	StartedAt time.Time

	mu     sync.Mutex
	status RunStatus
}

// NewRun creates a running workflow run with an empty memory.
func NewRun() *Run {
	return &Run{
		ID:        NewID(),
		Memory:    NewMemory(),
		StartedAt: time.Now().UTC(),
		status:    RunStatusRunning,
	}
}

// Status returns the current lifecycle state.
func (r *Run) Status() RunStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// SetStatus moves the run to s. Terminal states are sticky.
func (r *Run) SetStatus(s RunStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status == RunStatusRunning {
		r.status = s
	}
}

type runIDKey struct{}

// WithRunID returns a context carrying the run identifier.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunIDFromContext extracts the run identifier set by WithRunID.
func RunIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}
