package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// TurnState is a phase of the turn state machine.
type TurnState int

const (
	StateSending TurnState = iota
	StateStreaming
	StateHasToolCalls
	StateExecuting
	StateDone
)

func (s TurnState) String() string {
	switch s {
	case StateSending:
		return "sending"
	case StateStreaming:
		return "streaming"
	case StateHasToolCalls:
		return "has_tool_calls"
	case StateExecuting:
		return "executing"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Transcript is the conversation a turn reads from and appends to.
type Transcript interface {
	Messages() []Message
	Append(msgs ...Message)
}

// Persister saves the conversation. Failures are logged and never abort a turn.
type Persister interface {
	Save(ctx context.Context, msgs []Message) error
}

// EngineConfig holds the request parameters for every turn.
type EngineConfig struct {
	Model        string
	SystemPrompt string
	Temperature  *float64
	MaxTokens    int
	ToolTimeout  time.Duration
}

// Engine drives the send, stream and tool-execution loop for a single turn.
type Engine struct {
	client     ChatClient
	tools      *ToolRegistry
	dispatcher *Dispatcher
	cfg        EngineConfig
	persist    Persister
	emit       EventHandler
	debug      *DebugLogger
}

func NewEngine(client ChatClient, tools *ToolRegistry, cfg EngineConfig) *Engine {
	if tools == nil {
		tools = NewToolRegistry()
	}
	e := &Engine{
		client: client,
		tools:  tools,
		cfg:    cfg,
	}
	e.dispatcher = NewDispatcher(tools, cfg.ToolTimeout, e.event)
	return e
}

// SetPersister sets where the conversation is saved after tool batches and at turn end.
func (e *Engine) SetPersister(p Persister) {
	e.persist = p
}

// SetEventHandler sets the live display handler.
func (e *Engine) SetEventHandler(h EventHandler) {
	e.emit = h
}

// SetDebugLogger records every request and event to l. A nil logger disables it.
func (e *Engine) SetDebugLogger(l *DebugLogger) {
	e.debug = l
}

func (e *Engine) event(ev Event) {
	e.debug.LogEvent(ev)
	e.emit.emit(ev)
}

// SystemPrompt returns the prompt prepended to every request.
func (e *Engine) SystemPrompt() string {
	return e.cfg.SystemPrompt
}

// Client returns the chat client used for requests.
func (e *Engine) Client() ChatClient {
	return e.client
}

// Request builds a chat request for the given conversation, system prompt first.
// Tool calls without a reply, left by an interrupted batch, are sent as text.
func (e *Engine) Request(msgs []Message, withTools bool) ChatRequest {
	all := make([]Message, 0, len(msgs)+1)
	if e.cfg.SystemPrompt != "" {
		all = append(all, SystemText(e.cfg.SystemPrompt))
	}
	all = append(all, sanitizeToolHistory(msgs)...)
	req := ChatRequest{
		Model:       e.cfg.Model,
		Messages:    all,
		Temperature: e.cfg.Temperature,
		MaxTokens:   e.cfg.MaxTokens,
	}
	if withTools {
		req.Tools = e.tools.AllSpecs()
	}
	return req
}

// RunTurn runs one turn to completion. It loops for as long as the model keeps
// requesting tools. On error the conversation keeps whatever was appended.
func (e *Engine) RunTurn(ctx context.Context, conv Transcript) error {
	state := StateSending
	var stream ChunkStream
	var calls []ToolCall
	round := 0

	for {
		e.event(Event{Type: EventPhase, Phase: state})

		switch state {
		case StateSending:
			round++
			req := e.Request(conv.Messages(), true)
			e.debug.LogRequest(round, req)
			s, err := e.client.Stream(ctx, req)
			if err != nil {
				return err
			}
			stream = s
			state = StateStreaming

		case StateStreaming:
			var err error
			calls, err = e.consume(stream, conv)
			stream.Close()
			if err != nil {
				return err
			}
			if len(calls) > 0 {
				state = StateHasToolCalls
			} else {
				state = StateDone
			}

		case StateHasToolCalls:
			state = StateExecuting

		case StateExecuting:
			for _, result := range e.dispatcher.Dispatch(ctx, calls) {
				conv.Append(ToolResultMessage(result))
			}
			e.save(ctx, conv)
			calls = nil
			state = StateSending

		case StateDone:
			e.save(ctx, conv)
			return nil
		}
	}
}

// consume drains the stream through a multiplexer and appends the assistant message.
func (e *Engine) consume(stream ChunkStream, conv Transcript) ([]ToolCall, error) {
	mux := NewMultiplexer(func(m Message) { conv.Append(m) }, e.event)

	var streamErr error
	for {
		chunk, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			streamErr = err
			break
		}
		if chunk.Done {
			break
		}
		mux.Feed(chunk)
	}

	content, calls := mux.Finish()
	if streamErr != nil {
		// Partial tool calls are dropped so no unanswered tool_calls reach history.
		if content != "" {
			conv.Append(AssistantMessage(content, nil))
		}
		return nil, fmt.Errorf("stream interrupted: %w", streamErr)
	}

	conv.Append(AssistantMessage(content, calls))
	return calls, nil
}

func (e *Engine) save(ctx context.Context, conv Transcript) {
	if e.persist == nil {
		return
	}
	if err := e.persist.Save(ctx, conv.Messages()); err != nil {
		slog.Warn("failed to persist conversation", "error", err)
	}
}
