package core

// EventType classifies an UpdateEvent.
type EventType string

const (
	// EventTypeUpdate carries the text produced by a completed step.
	EventTypeUpdate EventType = "update"
	// EventTypeDiagnostic carries a run-level notice such as a tripped step limit.
	EventTypeDiagnostic EventType = "diagnostic"
	// EventTypeTool traces one tool call of a completed step.
	EventTypeTool EventType = "tool"
)

// UpdateMetadata holds the optional, typed details of an UpdateEvent.
type UpdateMetadata struct {
	StepIndex int    `json:"step_index"`
	Tool      string `json:"tool,omitempty"`
	Degraded  bool   `json:"degraded,omitempty"`
	RunID     string `json:"run_id,omitempty"`
}

// UpdateEvent is a progress record emitted after a workflow step. Step is the
// name of the agent the event is attributed to.
type UpdateEvent struct {
	Step     string          `json:"step"`
	Type     EventType       `json:"type"`
	Content  string          `json:"content"`
	Metadata *UpdateMetadata `json:"metadata,omitempty"`
}

// NewUpdateEvent creates an update event for a completed step.
func NewUpdateEvent(step string, index int, content string) UpdateEvent {
	return UpdateEvent{
		Step:     step,
		Type:     EventTypeUpdate,
		Content:  content,
		Metadata: &UpdateMetadata{StepIndex: index},
	}
}

// NewDiagnosticEvent creates a diagnostic event attributed to step.
func NewDiagnosticEvent(step string, index int, content string) UpdateEvent {
	return UpdateEvent{
		Step:     step,
		Type:     EventTypeDiagnostic,
		Content:  content,
		Metadata: &UpdateMetadata{StepIndex: index},
	}
}

// NewToolEvent creates a tool trace event for a call made during step.
func NewToolEvent(step string, index int, tool, content string) UpdateEvent {
	return UpdateEvent{
		Step:     step,
		Type:     EventTypeTool,
		Content:  content,
		Metadata: &UpdateMetadata{StepIndex: index, Tool: tool},
	}
}

// IsUpdate reports whether the event carries step output.
func (e UpdateEvent) IsUpdate() bool { return e.Type == EventTypeUpdate }
