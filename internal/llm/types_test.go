package llm

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestToolResultContent(t *testing.T) {
	tests := []struct {
		name   string
		result ToolResult
		want   string
	}{
		{
			name:   "success marshals result",
			result: ToolResult{ID: "1", Result: map[string]int{"exit_code": 0}},
			want:   `{"exit_code":0}`,
		},
		{
			name:   "error variant",
			result: ToolResult{ID: "1", Result: "ignored", Err: "TIMEOUT: too slow"},
			want:   `{"error":"TIMEOUT: too slow"}`,
		},
		{
			name:   "unmarshalable result becomes error",
			result: ToolResult{ID: "1", Result: make(chan int)},
			want:   `{"error":"marshal result:`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.result.Content(); !strings.HasPrefix(got, tt.want) {
				t.Errorf("Content() = %s, want prefix %s", got, tt.want)
			}
		})
	}
}

func TestAssistantMessageNullContent(t *testing.T) {
	calls := []ToolCall{{ID: "c1", Type: "function", Name: "read_file", Arguments: `{"path":"a"}`}}
	msg := AssistantMessage("", calls)

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"content":null`) {
		t.Errorf("expected null content, got %s", data)
	}

	var back Message
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if back.Content != nil || len(back.ToolCalls) != 1 || back.ToolCalls[0].Arguments != `{"path":"a"}` {
		t.Errorf("round trip = %+v", back)
	}
}

func TestMessageConstructors(t *testing.T) {
	tests := []struct {
		name     string
		msg      Message
		wantRole Role
		wantText string
	}{
		{"system", SystemText("rules"), RoleSystem, "rules"},
		{"user", UserText("hi"), RoleUser, "hi"},
		{"assistant", AssistantText("hello"), RoleAssistant, "hello"},
		{"reasoning", ReasoningMessage("pondering"), RoleAssistant, "<think>\npondering\n</think>"},
		{"tool", ToolResultMessage(ToolResult{ID: "c9", Result: "ok"}), RoleTool, `"ok"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.msg.Role != tt.wantRole || tt.msg.Text() != tt.wantText {
				t.Errorf("got %s %q, want %s %q", tt.msg.Role, tt.msg.Text(), tt.wantRole, tt.wantText)
			}
		})
	}
	if got := ToolResultMessage(ToolResult{ID: "c9"}).ToolCallID; got != "c9" {
		t.Errorf("ToolCallID = %q", got)
	}
}

func TestRoleValid(t *testing.T) {
	for _, r := range []Role{RoleSystem, RoleUser, RoleAssistant, RoleTool} {
		if !r.Valid() {
			t.Errorf("%s should be valid", r)
		}
	}
	if Role("developer").Valid() {
		t.Error("unknown role reported valid")
	}
}
