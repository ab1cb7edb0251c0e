package llm

import "strings"

// Channel is the kind of delta currently being streamed.
type Channel int

const (
	ChannelNone Channel = iota
	ChannelContent
	ChannelReasoning
	ChannelToolCalls
)

func (c Channel) String() string {
	switch c {
	case ChannelContent:
		return "content"
	case ChannelReasoning:
		return "reasoning"
	case ChannelToolCalls:
		return "toolcalls"
	default:
		return "none"
	}
}

// Multiplexer routes stream deltas into content, reasoning and tool-call channels.
// Buffered reasoning is flushed through appendMsg whenever the reasoning channel
// is left and once more when the stream finishes.
type Multiplexer struct {
	active    Channel
	content   strings.Builder
	reasoning strings.Builder
	tools     *ToolCallAccumulator
	usage     *Usage

	appendMsg func(Message)
	emit      EventHandler
}

// NewMultiplexer creates a multiplexer. appendMsg receives flushed reasoning
// messages in order; onEvent may be nil.
func NewMultiplexer(appendMsg func(Message), onEvent EventHandler) *Multiplexer {
	return &Multiplexer{
		tools:     NewToolCallAccumulator(),
		appendMsg: appendMsg,
		emit:      onEvent,
	}
}

// Feed routes one chunk.
func (m *Multiplexer) Feed(chunk StreamChunk) {
	if chunk.Usage != nil {
		m.usage = chunk.Usage
	}
	for _, choice := range chunk.Choices {
		d := choice.Delta
		if d.Content != "" {
			m.switchTo(ChannelContent)
			m.content.WriteString(d.Content)
			m.emit.emit(Event{Type: EventTextDelta, Text: d.Content})
		}
		if text := d.ReasoningText(); text != "" {
			m.switchTo(ChannelReasoning)
			m.reasoning.WriteString(text)
			m.emit.emit(Event{Type: EventReasoningDelta, Text: text})
		}
		if len(d.ToolCalls) > 0 {
			m.switchTo(ChannelToolCalls)
			for _, idx := range m.tools.Add(d.ToolCalls) {
				m.emit.emit(Event{Type: EventToolCall, Tool: &ToolCall{Name: m.tools.Name(idx)}})
			}
		}
	}
}

// Finish closes the active section, flushes remaining reasoning and returns the
// accumulated content and tool calls.
func (m *Multiplexer) Finish() (string, []ToolCall) {
	m.closeSection()
	m.flushReasoning()
	if m.usage != nil {
		m.emit.emit(Event{Type: EventUsage, Use: m.usage})
	}
	return m.content.String(), m.tools.Calls()
}

// Active returns the current channel.
func (m *Multiplexer) Active() Channel {
	return m.active
}

func (m *Multiplexer) switchTo(ch Channel) {
	if m.active == ch {
		return
	}
	m.closeSection()
	m.flushReasoning()
	m.active = ch
	m.emit.emit(Event{Type: EventSectionStart, Channel: ch})
}

func (m *Multiplexer) closeSection() {
	if m.active == ChannelNone {
		return
	}
	m.emit.emit(Event{Type: EventSectionEnd, Channel: m.active})
	m.active = ChannelNone
}

func (m *Multiplexer) flushReasoning() {
	if m.reasoning.Len() == 0 {
		return
	}
	text := m.reasoning.String()
	m.reasoning.Reset()
	if m.appendMsg != nil {
		m.appendMsg(ReasoningMessage(text))
	}
}
