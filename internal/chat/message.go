// Package chat implements the orchestrator loop that alternates model
// completions and tool invocations for a single chat request.
package chat

import "context"

// Role of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry of the conversation sent to the model.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`   // role=assistant
	ToolCallID string     `json:"tool_call_id,omitempty"` // role=tool
	Name       string     `json:"name,omitempty"`         // role=tool
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // JSON-encoded
}

// ToolDescriptor describes a tool advertised by the tool host.
type ToolDescriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// Completion is the model's reply: either final text or tool calls.
type Completion struct {
	Content   string
	ToolCalls []ToolCall
}

// Completer is the model service.
type Completer interface {
	// Complete sends the conversation and tool schemas with automatic tool choice.
	Complete(ctx context.Context, messages []Message, tools []ToolDescriptor) (*Completion, error)
}

// ToolHost lists and executes tools.
type ToolHost interface {
	ListTools(ctx context.Context) ([]ToolDescriptor, error)
	// CallTool returns the tool's text result.
	CallTool(ctx context.Context, name string, args map[string]any) (string, error)
}
