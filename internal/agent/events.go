package agent

import (
	"encoding/json"

	"goalwise/internal/tools"
)

// EventType identifies a streamed conversation event.
type EventType string

const (
	EventText       EventType = "text"
	EventToolCall   EventType = "tool_call"
	EventToolResult EventType = "tool_result"
	EventError      EventType = "error"
	EventDone       EventType = "done"
)

// Event is one item of the conversation stream. A tool_result event always
// follows the tool_call event with the same CallID.
type Event struct {
	Type      EventType       `json:"type"`
	Text      string          `json:"text,omitempty"`
	CallID    string          `json:"call_id,omitempty"`
	Tool      string          `json:"tool,omitempty"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	Result    tools.Result    `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	Steps     int             `json:"steps,omitempty"`
}

// Message is a client-supplied conversation message.
type Message struct {
	Role    Role   `json:"role" binding:"required,oneof=system user assistant" example:"user"`
	Content string `json:"content" example:"How close am I to my house goal?"`
}
