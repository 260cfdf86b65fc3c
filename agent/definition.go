package agent

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/hupe1980/agentflow/model"
	"github.com/hupe1980/agentflow/tool"
)

// Options configure a Definition.
type Options struct {
	// Description is shown to other agents when they consider delegating.
	Description string
	// Instruction is the agent's system prompt.
	Instruction Instruction
	// Tools are offered to the model in order.
	Tools []tool.Tool
	// Terminal marks an agent whose step always ends the run.
	Terminal bool
	// Delegates restricts delegation targets. Empty allows every other agent.
	Delegates []string
	// MaxHistoryMessages bounds the memory window sent to the model (0 = all).
	MaxHistoryMessages int
}

// WithInstructions sets a static instruction template.
func WithInstructions(text string) func(o *Options) {
	return func(o *Options) { o.Instruction = NewInstructionFromText(text) }
}

// WithTools appends tools.
func WithTools(tools ...tool.Tool) func(o *Options) {
	return func(o *Options) { o.Tools = append(o.Tools, tools...) }
}

// WithTerminal marks the agent as terminal.
func WithTerminal() func(o *Options) {
	return func(o *Options) { o.Terminal = true }
}

// WithDescription sets the agent description.
func WithDescription(desc string) func(o *Options) {
	return func(o *Options) { o.Description = desc }
}

// WithDelegates restricts the agents this one may hand off to.
func WithDelegates(names ...string) func(o *Options) {
	return func(o *Options) { o.Delegates = append(o.Delegates, names...) }
}

// Definition is the immutable description of an agent.
type Definition struct {
	name  string
	llm   model.Model
	opts  Options
	tools *tool.Set
}

// New creates a Definition. Names must be non-blank single-line strings and
// tool names unique within the agent.
func New(name string, llm model.Model, optFns ...func(o *Options)) (*Definition, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.ContainsAny(name, "\r\n") {
		return nil, fmt.Errorf("invalid agent name %q", name)
	}
	if llm == nil {
		return nil, errors.New("agent " + name + ": model is required")
	}

	var opts Options
	for _, fn := range optFns {
		fn(&opts)
	}

	set, err := tool.NewSet(opts.Tools...)
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", name, err)
	}
	if _, reserved := set.Get(tool.TransferToAgentName); reserved {
		return nil, fmt.Errorf("agent %s: tool name %q is reserved", name, tool.TransferToAgentName)
	}

	return &Definition{name: name, llm: llm, opts: opts, tools: set}, nil
}

// MustNew is like New but panics on error. Intended for static wiring and tests.
func MustNew(name string, llm model.Model, optFns ...func(o *Options)) *Definition {
	d, err := New(name, llm, optFns...)
	if err != nil {
		panic(err)
	}
	return d
}

// Name returns the unique agent name.
func (d *Definition) Name() string { return d.name }

// Description returns the agent description.
func (d *Definition) Description() string { return d.opts.Description }

// Model returns the model backing the agent.
func (d *Definition) Model() model.Model { return d.llm }

// Instruction returns the configured instruction.
func (d *Definition) Instruction() Instruction { return d.opts.Instruction }

// Tools returns the agent's tools in declaration order.
func (d *Definition) Tools() []tool.Tool { return d.tools.List() }

// Tool looks up one of the agent's tools by name.
func (d *Definition) Tool(name string) (tool.Tool, bool) { return d.tools.Get(name) }

// Terminal reports whether the agent always ends the run.
func (d *Definition) Terminal() bool { return d.opts.Terminal }

// Delegates returns a copy of the explicit delegation allow list (may be empty).
func (d *Definition) Delegates() []string { return slices.Clone(d.opts.Delegates) }

// MaxHistoryMessages returns the memory window size (0 = unbounded).
func (d *Definition) MaxHistoryMessages() int { return d.opts.MaxHistoryMessages }
