package testutil

import (
	"github.com/hupe1980/agentflow/core"
)

// MemoryBuilder seeds a run memory with fluent chaining.
// Example:
//
//	mem := NewMemoryBuilder().System("be brief").User("hi").Assistant("hello").Build()
type MemoryBuilder struct {
	messages []core.Message
}

// NewMemoryBuilder creates an empty builder.
func NewMemoryBuilder() *MemoryBuilder { return &MemoryBuilder{} }

// User appends a user message (chainable).
func (b *MemoryBuilder) User(text string) *MemoryBuilder {
	return b.add(core.RoleUser, text)
}

// Assistant appends an assistant message (chainable).
func (b *MemoryBuilder) Assistant(text string) *MemoryBuilder {
	return b.add(core.RoleAssistant, text)
}

// System appends a system message (chainable).
func (b *MemoryBuilder) System(text string) *MemoryBuilder {
	return b.add(core.RoleSystem, text)
}

func (b *MemoryBuilder) add(role core.Role, text string) *MemoryBuilder {
	b.messages = append(b.messages, core.NewMessage(role, text))
	return b
}

// Messages returns the seeded messages, e.g. as engine run input.
func (b *MemoryBuilder) Messages() []core.Message {
	out := make([]core.Message, len(b.messages))
	copy(out, b.messages)
	return out
}

// Build creates a Memory holding the seeded messages. It panics on a
// malformed message since builders are only used in tests.
func (b *MemoryBuilder) Build() *core.Memory {
	mem := core.NewMemory()
	for _, m := range b.messages {
		if err := mem.Append(m); err != nil {
			panic(err)
		}
	}
	return mem
}
