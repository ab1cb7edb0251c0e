package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
)

// sliceStream replays scripted chunks.
type sliceStream struct {
	chunks []StreamChunk
	err    error
	closed bool
}

func (s *sliceStream) Next() (StreamChunk, error) {
	if len(s.chunks) == 0 {
		if s.err != nil {
			return StreamChunk{}, s.err
		}
		return StreamChunk{}, io.EOF
	}
	c := s.chunks[0]
	s.chunks = s.chunks[1:]
	return c, nil
}

func (s *sliceStream) Close() error {
	s.closed = true
	return nil
}

// fakeClient returns one scripted stream per Stream call.
type fakeClient struct {
	streams  []*sliceStream
	requests []ChatRequest
	sendErr  error
	complete func(req ChatRequest) (Message, error)
}

func (f *fakeClient) Stream(ctx context.Context, req ChatRequest) (ChunkStream, error) {
	f.requests = append(f.requests, req)
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	if len(f.streams) == 0 {
		return nil, errors.New("no scripted stream left")
	}
	s := f.streams[0]
	f.streams = f.streams[1:]
	return s, nil
}

func (f *fakeClient) Complete(ctx context.Context, req ChatRequest) (Message, error) {
	f.requests = append(f.requests, req)
	if f.complete == nil {
		return Message{}, errors.New("not scripted")
	}
	return f.complete(req)
}

// memTranscript is a minimal Transcript.
type memTranscript struct {
	mu   sync.Mutex
	msgs []Message
}

func (m *memTranscript) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.msgs...)
}

func (m *memTranscript) Append(msgs ...Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = append(m.msgs, msgs...)
}

type countingPersister struct {
	saves [][]Message
	err   error
}

func (p *countingPersister) Save(ctx context.Context, msgs []Message) error {
	p.saves = append(p.saves, msgs)
	return p.err
}

func stream(chunks ...StreamChunk) *sliceStream {
	return &sliceStream{chunks: append(chunks, StreamChunk{Done: true})}
}

func newTestEngine(client ChatClient, tools ...Tool) *Engine {
	reg := NewToolRegistry()
	for _, tool := range tools {
		reg.Register(tool)
	}
	return NewEngine(client, reg, EngineConfig{Model: "test-model", SystemPrompt: "be helpful", MaxTokens: 100})
}

func TestEngineHiThere(t *testing.T) {
	client := &fakeClient{streams: []*sliceStream{stream(contentChunk("Hi"), contentChunk(" there"))}}
	engine := newTestEngine(client)
	store := &countingPersister{}
	engine.SetPersister(store)

	conv := &memTranscript{}
	conv.Append(UserText("hello"))
	if err := engine.RunTurn(context.Background(), conv); err != nil {
		t.Fatalf("RunTurn() error = %v", err)
	}

	msgs := conv.Messages()
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	last := msgs[1]
	if last.Role != RoleAssistant || last.Text() != "Hi there" {
		t.Errorf("assistant message = %+v", last)
	}
	if len(last.ToolCalls) != 0 {
		t.Errorf("unexpected tool calls: %v", last.ToolCalls)
	}
	if len(store.saves) != 1 {
		t.Errorf("saves = %d, want 1", len(store.saves))
	}

	req := client.requests[0]
	if req.Messages[0].Role != RoleSystem || req.Messages[0].Text() != "be helpful" {
		t.Errorf("first request message = %+v, want system prompt", req.Messages[0])
	}
	if req.Model != "test-model" || req.MaxTokens != 100 {
		t.Errorf("request = %+v", req)
	}
}

func TestEngineToolLoop(t *testing.T) {
	var gotArgs string
	timer := &funcTool{name: "set_time_out", fn: func(ctx context.Context, args json.RawMessage) (any, error) {
		gotArgs = string(args)
		return map[string]any{"scheduled": true}, nil
	}}
	client := &fakeClient{streams: []*sliceStream{
		stream(
			reasoningChunk("I should wait"),
			toolChunk(fragment(0, "call_1", "set_time_out", `{"time":`)),
			toolChunk(fragment(0, "", "", `1000}`)),
		),
		stream(contentChunk("Done waiting")),
	}}
	engine := newTestEngine(client, timer)
	store := &countingPersister{}
	engine.SetPersister(store)

	var phases []TurnState
	engine.SetEventHandler(func(ev Event) {
		if ev.Type == EventPhase {
			phases = append(phases, ev.Phase)
		}
	})

	conv := &memTranscript{}
	conv.Append(UserText("wait a second"))
	if err := engine.RunTurn(context.Background(), conv); err != nil {
		t.Fatalf("RunTurn() error = %v", err)
	}

	if gotArgs != `{"time":1000}` {
		t.Errorf("tool received %q", gotArgs)
	}

	msgs := conv.Messages()
	wantRoles := []Role{RoleUser, RoleAssistant, RoleAssistant, RoleTool, RoleAssistant}
	if len(msgs) != len(wantRoles) {
		t.Fatalf("got %d messages, want %d: %+v", len(msgs), len(wantRoles), msgs)
	}
	for i, role := range wantRoles {
		if msgs[i].Role != role {
			t.Errorf("message %d role = %q, want %q", i, msgs[i].Role, role)
		}
	}
	if !strings.Contains(msgs[1].Text(), "I should wait") {
		t.Errorf("reasoning message = %q", msgs[1].Text())
	}
	if msgs[2].Content != nil {
		t.Errorf("tool-call message content = %q, want null", msgs[2].Text())
	}
	if len(msgs[2].ToolCalls) != 1 || msgs[2].ToolCalls[0].Arguments != `{"time":1000}` {
		t.Errorf("tool calls = %+v", msgs[2].ToolCalls)
	}
	if msgs[3].ToolCallID != "call_1" || msgs[3].Text() != `{"scheduled":true}` {
		t.Errorf("tool message = %+v", msgs[3])
	}
	if msgs[4].Text() != "Done waiting" {
		t.Errorf("final message = %q", msgs[4].Text())
	}

	// One save after the tool batch and one at Done.
	if len(store.saves) != 2 {
		t.Errorf("saves = %d, want 2", len(store.saves))
	}

	want := []TurnState{StateSending, StateStreaming, StateHasToolCalls, StateExecuting, StateSending, StateStreaming, StateDone}
	if len(phases) != len(want) {
		t.Fatalf("phases = %v, want %v", phases, want)
	}
	for i := range want {
		if phases[i] != want[i] {
			t.Fatalf("phases = %v, want %v", phases, want)
		}
	}
	if len(client.requests) != 2 || len(client.requests[0].Tools) != 1 {
		t.Errorf("requests = %d, tools advertised = %d", len(client.requests), len(client.requests[0].Tools))
	}
}

func TestEngineUnknownToolContinuesLoop(t *testing.T) {
	client := &fakeClient{streams: []*sliceStream{
		stream(toolChunk(fragment(0, "c1", "missing_tool", "{}"))),
		stream(contentChunk("sorry")),
	}}
	engine := newTestEngine(client)

	conv := &memTranscript{}
	if err := engine.RunTurn(context.Background(), conv); err != nil {
		t.Fatalf("RunTurn() error = %v", err)
	}
	msgs := conv.Messages()
	if len(msgs) != 3 {
		t.Fatalf("got %d messages", len(msgs))
	}
	if !strings.Contains(msgs[1].Text(), "unknown tool: missing_tool") {
		t.Errorf("tool message = %q", msgs[1].Text())
	}
}

func TestEngineSendFailurePreservesConversation(t *testing.T) {
	client := &fakeClient{sendErr: errors.New("connection refused")}
	engine := newTestEngine(client)

	conv := &memTranscript{}
	conv.Append(UserText("hello"))
	err := engine.RunTurn(context.Background(), conv)
	if err == nil {
		t.Fatal("expected error")
	}
	if len(conv.Messages()) != 1 {
		t.Errorf("conversation changed on failure: %+v", conv.Messages())
	}
}

func TestEngineStreamErrorKeepsPartialText(t *testing.T) {
	broken := &sliceStream{
		chunks: []StreamChunk{contentChunk("partial"), toolChunk(fragment(0, "c1", "x", "{"))},
		err:    errors.New("unexpected EOF"),
	}
	client := &fakeClient{streams: []*sliceStream{broken}}
	engine := newTestEngine(client)

	conv := &memTranscript{}
	err := engine.RunTurn(context.Background(), conv)
	if err == nil || !strings.Contains(err.Error(), "stream interrupted") {
		t.Fatalf("err = %v", err)
	}
	msgs := conv.Messages()
	if len(msgs) != 1 || msgs[0].Text() != "partial" || len(msgs[0].ToolCalls) != 0 {
		t.Errorf("messages = %+v", msgs)
	}
	if !broken.closed {
		t.Error("stream not closed")
	}
}

func TestEnginePersistFailureDoesNotAbort(t *testing.T) {
	client := &fakeClient{streams: []*sliceStream{stream(contentChunk("ok"))}}
	engine := newTestEngine(client)
	engine.SetPersister(&countingPersister{err: errors.New("read-only filesystem")})

	conv := &memTranscript{}
	if err := engine.RunTurn(context.Background(), conv); err != nil {
		t.Fatalf("RunTurn() error = %v", err)
	}
}

func TestEngineEmptyResponseStoresNullContent(t *testing.T) {
	client := &fakeClient{streams: []*sliceStream{stream()}}
	engine := newTestEngine(client)

	conv := &memTranscript{}
	if err := engine.RunTurn(context.Background(), conv); err != nil {
		t.Fatalf("RunTurn() error = %v", err)
	}
	msgs := conv.Messages()
	if len(msgs) != 1 || msgs[0].Content != nil {
		t.Errorf("messages = %+v", msgs)
	}
}
