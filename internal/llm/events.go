package llm

import (
	"fmt"
	"time"
)

// EventType identifies what an Event reports.
type EventType int

const (
	EventTextDelta EventType = iota
	EventReasoningDelta
	EventSectionStart
	EventSectionEnd
	EventToolCall
	EventToolExecStart
	EventToolExecEnd
	EventPhase
	EventRetry
	EventUsage
)

func (t EventType) String() string {
	switch t {
	case EventTextDelta:
		return "text_delta"
	case EventReasoningDelta:
		return "reasoning_delta"
	case EventSectionStart:
		return "section_start"
	case EventSectionEnd:
		return "section_end"
	case EventToolCall:
		return "tool_call"
	case EventToolExecStart:
		return "tool_exec_start"
	case EventToolExecEnd:
		return "tool_exec_end"
	case EventPhase:
		return "phase"
	case EventRetry:
		return "retry"
	case EventUsage:
		return "usage"
	default:
		return fmt.Sprintf("event(%d)", int(t))
	}
}

// Event is a side-channel notification for live display. Events never affect
// conversation state.
type Event struct {
	Type    EventType
	Text    string
	Channel Channel
	Phase   TurnState
	Tool    *ToolCall
	Result  *ToolResult
	Attempt int
	Wait    time.Duration
	Err     error
	Use     *Usage
}

// EventHandler receives events synchronously on the turn's goroutine.
type EventHandler func(Event)

func (h EventHandler) emit(ev Event) {
	if h != nil {
		h(ev)
	}
}
