package core

import (
	"sync"
	"time"
)

// Memory is the append-only conversation log of a single run. It is safe for
// concurrent use, although a run only ever writes from one goroutine.
type Memory struct {
	mu       sync.RWMutex
	messages []Message
}

// NewMemory creates an empty Memory.
func NewMemory() *Memory {
	return &Memory{messages: make([]Message, 0, 8)}
}

// Append adds msg to the end of the log. A zero CreatedAt is stamped with now.
func (m *Memory) Append(msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	m.mu.Lock()
	m.messages = append(m.messages, msg)
	m.mu.Unlock()

	return nil
}

// AppendText appends a freshly stamped message.
func (m *Memory) AppendText(role Role, text string) error {
	return m.Append(NewMessage(role, text))
}

// Snapshot returns a copy of all messages in append order. Later appends do
// not affect the returned slice.
func (m *Memory) Snapshot() []Message {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Message, len(m.messages))
	copy(out, m.messages)

	return out
}

// Len returns the number of stored messages.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.messages)
}

// Last returns the most recent message, if any.
func (m *Memory) Last() (Message, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.messages) == 0 {
		return Message{}, false
	}

	return m.messages[len(m.messages)-1], true
}
