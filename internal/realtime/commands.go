package realtime

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Outbound message types.
const (
	TypeResponseCreate         = "response.create"
	TypeResponseCancel         = "response.cancel"
	TypeConversationItemCreate = "conversation.item.create"
	TypeSessionUpdate          = "session.update"
)

// Tool result statuses.
const (
	StatusVerified = "verified"
	StatusSkipped  = "skipped"
)

// Command is a bare typed message such as response.create.
type Command struct {
	Type string `json:"type"`
}

// ContentPart is one piece of a conversation message.
type ContentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Item is a conversation item: a function call output or a user message.
type Item struct {
	ID      string        `json:"id,omitempty"`
	Type    string        `json:"type"`
	CallID  string        `json:"call_id,omitempty"`
	Output  string        `json:"output,omitempty"`
	Role    string        `json:"role,omitempty"`
	Content []ContentPart `json:"content,omitempty"`
}

// ItemCreate adds an item to the remote conversation.
type ItemCreate struct {
	Type string `json:"type"`
	Item Item   `json:"item"`
}

// SessionUpdate changes remote session parameters.
type SessionUpdate struct {
	Type    string         `json:"type"`
	Session map[string]any `json:"session"`
}

// ToolResult is the JSON document carried in a function_call_output.
type ToolResult struct {
	Status string            `json:"status"`
	Data   map[string]string `json:"data,omitempty"`
}

// ResponseCreate asks the provider to generate the next assistant response.
func ResponseCreate() Command {
	return Command{Type: TypeResponseCreate}
}

// ResponseCancel tells the provider the local side is disconnecting.
func ResponseCancel() Command {
	return Command{Type: TypeResponseCancel}
}

// FunctionCallOutput builds the tool result for callID.
func FunctionCallOutput(callID string, result ToolResult) (ItemCreate, error) {
	out, err := json.Marshal(result)
	if err != nil {
		return ItemCreate{}, fmt.Errorf("marshal tool result: %w", err)
	}
	return ItemCreate{
		Type: TypeConversationItemCreate,
		Item: Item{
			Type:   "function_call_output",
			CallID: callID,
			Output: string(out),
		},
	}, nil
}

// UserMessage builds a synthetic user text message.
func UserMessage(text string) ItemCreate {
	return ItemCreate{
		Type: TypeConversationItemCreate,
		Item: Item{
			ID:      "msg_" + uuid.NewString()[:8],
			Type:    "message",
			Role:    "user",
			Content: []ContentPart{{Type: "input_text", Text: text}},
		},
	}
}

// RegisterTools installs tool definitions on the remote session.
func RegisterTools(tools ...any) SessionUpdate {
	return SessionUpdate{
		Type: TypeSessionUpdate,
		Session: map[string]any{
			"tools":       tools,
			"tool_choice": "auto",
		},
	}
}
