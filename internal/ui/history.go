package ui

import (
	"fmt"
	"strings"

	"github.com/samsaffron/term-agent/internal/llm"
)

// maxToolOutputPreview bounds tool message content shown in history.
const maxToolOutputPreview = 400

// HistoryMarkdown formats a conversation as markdown for display.
func HistoryMarkdown(msgs []llm.Message) string {
	if len(msgs) == 0 {
		return "_No messages yet._"
	}

	var sb strings.Builder
	for i, msg := range msgs {
		if i > 0 {
			sb.WriteString("\n---\n\n")
		}
		fmt.Fprintf(&sb, "**%s**\n\n", msg.Role)

		switch msg.Role {
		case llm.RoleTool:
			content := msg.Text()
			if len(content) > maxToolOutputPreview {
				content = content[:maxToolOutputPreview] + "..."
			}
			fmt.Fprintf(&sb, "`%s`\n\n```json\n%s\n```\n", msg.ToolCallID, content)
		default:
			if text := msg.Text(); text != "" {
				sb.WriteString(text)
				sb.WriteString("\n")
			}
			for _, call := range msg.ToolCalls {
				fmt.Fprintf(&sb, "\n- call `%s` `%s`\n", call.Name, Truncate(call.Arguments, 200))
			}
		}
	}
	return sb.String()
}
