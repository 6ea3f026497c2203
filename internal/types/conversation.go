package types

import "time"

// Role is the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of the client-side conversation.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// OutputReference points at an assistant output the user may transform later.
type OutputReference struct {
	MessageID string     `json:"message_id"`
	Action    ActionType `json:"action"`
	Preview   string     `json:"preview"`
	CreatedAt time.Time  `json:"created_at"`
}

// ConversationState is the per-session data persisted through the store.
// LockedContext is a snapshot for display; it is never reused as a cache.
type ConversationState struct {
	LastOutputs      []OutputReference `json:"last_outputs"`
	ActiveSourceID   string            `json:"active_source_id"`
	ActiveTemplateID string            `json:"active_template_id"`
	LockedContext    *LockedContext    `json:"locked_context,omitempty"`
	Version          int               `json:"version"`
}

// MaxTrackedOutputs bounds ConversationState.LastOutputs.
const MaxTrackedOutputs = 20

// RecordOutput appends an output reference, keeping the newest MaxTrackedOutputs.
func (s *ConversationState) RecordOutput(ref OutputReference) {
	s.LastOutputs = append(s.LastOutputs, ref)
	if n := len(s.LastOutputs); n > MaxTrackedOutputs {
		s.LastOutputs = append([]OutputReference(nil), s.LastOutputs[n-MaxTrackedOutputs:]...)
	}
	s.Version++
}
