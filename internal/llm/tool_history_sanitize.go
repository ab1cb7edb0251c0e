package llm

import (
	"fmt"
	"strings"
)

type toolCallRef struct {
	messageIndex int
	callIndex    int
}

// sanitizeToolHistory removes dangling tool calls and orphan tool results.
// A log saved mid-batch ends with calls that have no tool reply, which
// OpenAI-compatible servers reject. Unanswered calls are turned into text on
// the assistant message so the model still sees what it attempted.
func sanitizeToolHistory(messages []Message) []Message {
	if len(messages) == 0 {
		return nil
	}

	sanitized := make([]Message, 0, len(messages))
	pendingCalls := make(map[string][]toolCallRef)
	matchedCalls := make(map[int]map[int]bool)

	for _, msg := range messages {
		switch msg.Role {
		case RoleAssistant:
			assistantIndex := len(sanitized)
			for i, call := range msg.ToolCalls {
				callID := strings.TrimSpace(call.ID)
				if callID == "" {
					continue
				}
				pendingCalls[callID] = append(pendingCalls[callID], toolCallRef{
					messageIndex: assistantIndex,
					callIndex:    i,
				})
			}
			sanitized = append(sanitized, msg)

		case RoleTool:
			resultID := strings.TrimSpace(msg.ToolCallID)
			refs := pendingCalls[resultID]
			if resultID == "" || len(refs) == 0 {
				continue
			}

			ref := refs[0]
			if len(refs) == 1 {
				delete(pendingCalls, resultID)
			} else {
				pendingCalls[resultID] = refs[1:]
			}
			if matchedCalls[ref.messageIndex] == nil {
				matchedCalls[ref.messageIndex] = make(map[int]bool)
			}
			matchedCalls[ref.messageIndex][ref.callIndex] = true
			sanitized = append(sanitized, msg)

		default:
			sanitized = append(sanitized, msg)
		}
	}

	for msgIndex, msg := range sanitized {
		if msg.Role != RoleAssistant || len(msg.ToolCalls) == 0 {
			continue
		}

		matches := matchedCalls[msgIndex]
		var kept []ToolCall
		var interrupted []string
		for i, call := range msg.ToolCalls {
			if matches[i] {
				kept = append(kept, call)
				continue
			}
			interrupted = append(interrupted, fmt.Sprintf("[tool call interrupted: id=%s name=%s args=%s]",
				call.ID, call.Name, call.Arguments))
		}
		if len(interrupted) == 0 {
			continue
		}

		text := strings.Join(interrupted, "\n")
		if content := msg.Text(); content != "" {
			text = content + "\n" + text
		}
		sanitized[msgIndex] = Message{
			Role:      RoleAssistant,
			Content:   stringPtr(text),
			ToolCalls: kept,
		}
	}

	return sanitized
}
