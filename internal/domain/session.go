package domain

import "time"

// Role identifies who produced a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one logical utterance in the transcript.
type Turn struct {
	Role      Role
	Content   string
	Timestamp time.Time
	Streaming bool
}

// ExportedTurn is the persisted form of a Turn.
type ExportedTurn struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// Session is one realtime connection attempt.
type Session struct {
	ID        string
	Model     string
	State     string
	Saved     bool
	StartedAt time.Time
}

// ToolInvocation is an outstanding remote tool call awaiting a local result.
type ToolInvocation struct {
	CallID    string
	Name      string
	Arguments map[string]string
}

// VerifiedFields maps configured field keys to confirmed, trimmed, non-empty values.
type VerifiedFields map[string]string

// Clone returns a copy, or nil for an empty set.
func (v VerifiedFields) Clone() VerifiedFields {
	if len(v) == 0 {
		return nil
	}
	out := make(VerifiedFields, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}
