// Package agent runs assistant conversations: it drives an LLM runtime
// step by step, executes the tools the model asks for on behalf of the
// authenticated caller and streams what happens back as events.
package agent

import (
	"context"
	"encoding/json"

	"goalwise/internal/tools"
)

// Role is the author of a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ToolCall is a tool invocation proposed by the model.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolResult is the serialized outcome of a ToolCall, returned to the
// model in the next step.
type ToolResult struct {
	CallID  string `json:"call_id"`
	Content string `json:"content"`
	IsError bool   `json:"is_error"`
}

// Turn is one message of the model-facing history. Assistant turns may
// carry tool calls; the user turn that follows them carries their results.
type Turn struct {
	Role        Role
	Text        string
	ToolCalls   []ToolCall
	ToolResults []ToolResult
}

// ToolSpec describes a tool to the model.
type ToolSpec struct {
	Name        string
	Description string
	Schema      tools.Schema
}

// StepRequest is one model invocation. When AllowTools is false the model
// must answer in text only.
type StepRequest struct {
	System     string
	CallerID   string
	Turns      []Turn
	Tools      []ToolSpec
	AllowTools bool
}

// StepResponse is the model's complete reply for a step.
type StepResponse struct {
	Text      string
	ToolCalls []ToolCall
}

// Runtime is an LLM that can answer a step, streaming text deltas to
// onText as they arrive. onText is called from the goroutine running Step.
type Runtime interface {
	Step(ctx context.Context, req StepRequest, onText func(string)) (*StepResponse, error)
}
