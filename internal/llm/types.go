package llm

import (
	"encoding/json"
	"fmt"
)

// Role identifies the author of a message in the conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	}
	return false
}

// Message is a single entry of the conversation log.
// Content is nil when the assistant produced only tool calls.
type Message struct {
	Role       Role       `json:"role"`
	Content    *string    `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// Text returns the message content, or "" when it is null.
func (m Message) Text() string {
	if m.Content == nil {
		return ""
	}
	return *m.Content
}

// ToolCall is a fully assembled tool invocation requested by the model.
// Arguments holds the raw JSON text exactly as streamed.
type ToolCall struct {
	ID        string `json:"id"`
	Type      string `json:"type,omitempty"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolSpec describes a tool advertised to the model.
type ToolSpec struct {
	Name        string
	Description string
	Schema      map[string]interface{}
}

// ToolResult is the outcome of one tool call. Exactly one of Result or Err is meaningful:
// a non-empty Err marks the failure variant.
type ToolResult struct {
	ID     string
	Name   string
	Result any
	Err    string
}

// IsError reports whether the result is the failure variant.
func (r ToolResult) IsError() bool {
	return r.Err != ""
}

// Content renders the result as the JSON text sent back to the model.
func (r ToolResult) Content() string {
	var v any = r.Result
	if r.IsError() {
		v = map[string]string{"error": r.Err}
	}
	data, err := json.Marshal(v)
	if err != nil {
		data, _ = json.Marshal(map[string]string{"error": fmt.Sprintf("marshal result: %v", err)})
	}
	return string(data)
}

// Usage reports token counts when the server includes them in the stream.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

func stringPtr(s string) *string {
	return &s
}

// SystemText creates a system message.
func SystemText(text string) Message {
	return Message{Role: RoleSystem, Content: stringPtr(text)}
}

// UserText creates a user message.
func UserText(text string) Message {
	return Message{Role: RoleUser, Content: stringPtr(text)}
}

// AssistantText creates an assistant message with text content.
func AssistantText(text string) Message {
	return Message{Role: RoleAssistant, Content: stringPtr(text)}
}

// AssistantMessage builds the message appended at the end of a streamed response.
// Empty content is stored as null.
func AssistantMessage(content string, calls []ToolCall) Message {
	msg := Message{Role: RoleAssistant}
	if content != "" {
		msg.Content = stringPtr(content)
	}
	if len(calls) > 0 {
		msg.ToolCalls = calls
	}
	return msg
}

// ToolResultMessage creates the tool message answering a tool call.
func ToolResultMessage(result ToolResult) Message {
	return Message{
		Role:       RoleTool,
		Content:    stringPtr(result.Content()),
		ToolCallID: result.ID,
	}
}

const (
	reasoningOpen  = "<think>\n"
	reasoningClose = "\n</think>"
)

// ReasoningMessage wraps buffered reasoning text in the reasoning marker.
func ReasoningMessage(text string) Message {
	return AssistantText(reasoningOpen + text + reasoningClose)
}
