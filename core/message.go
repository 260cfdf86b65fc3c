package core

import (
	"fmt"
	"strings"
	"time"
)

// Role tags the author of a Message.
type Role string

const (
	// RoleUser marks input supplied by the caller.
	RoleUser Role = "user"
	// RoleAssistant marks text produced by an agent step.
	RoleAssistant Role = "assistant"
	// RoleSystem marks out-of-band instructions seeded by the caller.
	RoleSystem Role = "system"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Message is a single role-tagged conversation entry. Messages are never
// modified once appended to a Memory.
type Message struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// NewMessage creates a message stamped with the current UTC time.
func NewMessage(role Role, text string) Message {
	return Message{Role: role, Text: text, CreatedAt: time.Now().UTC()}
}

// NewUserMessage is shorthand for NewMessage(RoleUser, text).
func NewUserMessage(text string) Message { return NewMessage(RoleUser, text) }

// Validate checks that the message carries a known role and non-blank text.
func (m Message) Validate() error {
	if !m.Role.Valid() {
		return fmt.Errorf("%w: unknown role %q", ErrMalformedMessage, m.Role)
	}
	if strings.TrimSpace(m.Text) == "" {
		return fmt.Errorf("%w: empty text", ErrMalformedMessage)
	}
	return nil
}
