package models

import "time"

// Message represents an individual entry of a chat screen. It contains a sequential identifier that is
// unique within the screen's current conversation, the participant's role, the text as it was submitted
// or received, and the time the message was appended. A message is never modified after it is appended.
type Message struct {
	ID        int
	Role      Role
	Text      string
	CreatedAt time.Time
}

// Role represents the role of a message participant.
type Role string

const (
	// RoleUser represents a message typed by the visitor.
	RoleUser Role = "user"
	// RoleAssistant represents a message produced by the chat backend, or a synthetic fallback when the
	// backend could not respond.
	RoleAssistant Role = "assistant"
)

// IsUser reports whether the message was written by the visitor.
func (m Message) IsUser() bool {
	return m.Role == RoleUser
}
