package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/samsaffron/term-agent/internal/config"
	"github.com/samsaffron/term-agent/internal/llm"
	"github.com/samsaffron/term-agent/internal/session"
	"github.com/samsaffron/term-agent/internal/tools"
)

// scriptedServer replies to the n-th streaming request with the n-th script.
type scriptedServer struct {
	mu       sync.Mutex
	scripts  [][]string
	requests []map[string]any
}

func (s *scriptedServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)

	s.mu.Lock()
	n := len(s.requests)
	s.requests = append(s.requests, body)
	s.mu.Unlock()

	if n >= len(s.scripts) {
		http.Error(w, "unexpected request", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	for _, chunk := range s.scripts[n] {
		fmt.Fprintf(w, "data: %s\n\n", chunk)
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
}

func contentChunk(text string) string {
	data, _ := json.Marshal(map[string]any{
		"choices": []any{map[string]any{"delta": map[string]any{"content": text}}},
	})
	return string(data)
}

func toolCallChunk(id, name string, args any) string {
	argText, _ := json.Marshal(args)
	data, _ := json.Marshal(map[string]any{
		"choices": []any{map[string]any{"delta": map[string]any{
			"tool_calls": []any{map[string]any{
				"index": 0,
				"id":    id,
				"type":  "function",
				"function": map[string]any{
					"name":      name,
					"arguments": string(argText),
				},
			}},
		}}},
	})
	return string(data)
}

func testConfig(t *testing.T, serverURL string) *config.Config {
	t.Helper()
	u, err := url.Parse(serverURL)
	if err != nil {
		t.Fatal(err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatal(err)
	}
	return &config.Config{
		Host:          u.Hostname(),
		Port:          port,
		Model:         "test-model",
		Temperature:   0.7,
		MaxHistory:    100,
		ContextWindow: 32768,
		ToolTimeout:   5 * time.Second,
		SavePath:      filepath.Join(t.TempDir(), "conversation.json"),
		SystemPrompt:  "You are a test assistant.",
		CharsPerToken: 4,
		Retry:         config.RetryConfig{MaxAttempts: 1, Backoff: time.Millisecond, MaxBackoff: time.Millisecond},
		Tools:         tools.DefaultToolConfig(),
	}
}

func runApp(t *testing.T, cfg *config.Config, input string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	a, err := newApp(context.Background(), cfg, appOptions{
		in:      strings.NewReader(input),
		out:     &out,
		errOut:  io.Discard,
		noColor: true,
	})
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	replErr := a.repl(context.Background())
	if err := a.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	return out.String(), replErr
}

func loadSaved(t *testing.T, path string) []llm.Message {
	t.Helper()
	msgs, err := session.NewFileStore(path).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return msgs
}

func TestAppTextTurn(t *testing.T) {
	srv := &scriptedServer{scripts: [][]string{{contentChunk("Hi"), contentChunk(" there")}}}
	ts := httptest.NewServer(srv)
	defer ts.Close()
	cfg := testConfig(t, ts.URL)

	out, err := runApp(t, cfg, "hello\n")
	if err != nil {
		t.Fatalf("repl() error = %v", err)
	}
	if !strings.Contains(out, "Hi there") {
		t.Errorf("output missing streamed text:\n%s", out)
	}

	msgs := loadSaved(t, cfg.SavePath)
	if len(msgs) != 2 || msgs[0].Text() != "hello" || msgs[1].Text() != "Hi there" {
		t.Errorf("saved conversation = %+v", msgs)
	}

	req := srv.requests[0]
	if req["model"] != "test-model" || req["stream"] != true {
		t.Errorf("request = %v", req)
	}
	if advertised, ok := req["tools"].([]any); !ok || len(advertised) != 5 {
		t.Errorf("expected 5 advertised tools, got %v", req["tools"])
	}
}

func TestAppToolTurn(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(path, []byte("alpha\nbeta\n"), 0644); err != nil {
		t.Fatal(err)
	}

	srv := &scriptedServer{scripts: [][]string{
		{toolCallChunk("call_1", tools.ReadFileToolName, map[string]any{"path": path})},
		{contentChunk("The file has two lines.")},
	}}
	ts := httptest.NewServer(srv)
	defer ts.Close()
	cfg := testConfig(t, ts.URL)

	out, err := runApp(t, cfg, "read notes\n")
	if err != nil {
		t.Fatalf("repl() error = %v", err)
	}
	for _, want := range []string{"read_file", "(lines 1-2 of 2)", "The file has two lines."} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	msgs := loadSaved(t, cfg.SavePath)
	if len(msgs) != 4 {
		t.Fatalf("saved %d messages, want 4: %+v", len(msgs), msgs)
	}
	if msgs[2].Role != llm.RoleTool || msgs[2].ToolCallID != "call_1" || !strings.Contains(msgs[2].Text(), "beta") {
		t.Errorf("tool message = %+v", msgs[2])
	}
	if len(srv.requests) != 2 {
		t.Errorf("requests = %d, want 2", len(srv.requests))
	}
}

func TestAppResumesConversation(t *testing.T) {
	srv := &scriptedServer{scripts: [][]string{{contentChunk("first")}, {contentChunk("second")}}}
	ts := httptest.NewServer(srv)
	defer ts.Close()
	cfg := testConfig(t, ts.URL)

	if _, err := runApp(t, cfg, "one\n"); err != nil {
		t.Fatal(err)
	}
	out, err := runApp(t, cfg, "two\n")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Resumed conversation with 2 messages") {
		t.Errorf("missing resume notice:\n%s", out)
	}

	msgs, _ := srv.requests[1]["messages"].([]any)
	// system + one + first + two
	if len(msgs) != 4 {
		t.Errorf("second request carried %d messages, want 4", len(msgs))
	}
}

func TestAppSlashCommands(t *testing.T) {
	srv := &scriptedServer{}
	ts := httptest.NewServer(srv)
	defer ts.Close()
	cfg := testConfig(t, ts.URL)

	out, err := runApp(t, cfg, "/tokn\n/tokens\n/history\n/exit\nnever sent\n")
	if !errors.Is(err, errQuit) {
		t.Fatalf("repl() error = %v, want errQuit", err)
	}
	for _, want := range []string{
		"unknown command /tokn",
		"Did you mean /tokens?",
		"Context: ~",
		"No messages yet",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if len(srv.requests) != 0 {
		t.Errorf("commands should not reach the model, got %d requests", len(srv.requests))
	}
}

func TestAppTransportErrorKeepsRunning(t *testing.T) {
	srv := &scriptedServer{}
	ts := httptest.NewServer(srv)
	defer ts.Close()
	cfg := testConfig(t, ts.URL)

	out, err := runApp(t, cfg, "hello\n/tokens\n")
	if err != nil {
		t.Fatalf("repl() error = %v", err)
	}
	if !strings.Contains(out, "500") {
		t.Errorf("expected the HTTP error to be reported:\n%s", out)
	}
	if !strings.Contains(out, "Context: ~") {
		t.Errorf("loop stopped after a failed turn:\n%s", out)
	}
}

func TestAppClearCommand(t *testing.T) {
	srv := &scriptedServer{scripts: [][]string{{contentChunk("ok")}}}
	ts := httptest.NewServer(srv)
	defer ts.Close()
	cfg := testConfig(t, ts.URL)

	out, err := runApp(t, cfg, "hello\n/clear\n")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Conversation cleared.") {
		t.Errorf("missing clear notice:\n%s", out)
	}
	if msgs := loadSaved(t, cfg.SavePath); len(msgs) != 0 {
		t.Errorf("saved conversation after /clear = %+v", msgs)
	}
}

func TestAppMovesCorruptConversationAside(t *testing.T) {
	srv := &scriptedServer{scripts: [][]string{{contentChunk("fresh start")}}}
	ts := httptest.NewServer(srv)
	defer ts.Close()
	cfg := testConfig(t, ts.URL)
	if err := os.WriteFile(cfg.SavePath, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	out, err := runApp(t, cfg, "hello\n")
	if err != nil {
		t.Fatalf("repl() error = %v", err)
	}
	if !strings.Contains(out, "moved it to "+cfg.SavePath+".corrupt") {
		t.Errorf("missing recovery notice:\n%s", out)
	}

	data, err := os.ReadFile(cfg.SavePath + ".corrupt")
	if err != nil || string(data) != "{not json" {
		t.Errorf("corrupt file not preserved: %q, %v", data, err)
	}
	if msgs := loadSaved(t, cfg.SavePath); len(msgs) != 2 {
		t.Errorf("saved %d messages, want 2", len(msgs))
	}
}
