package llm

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DebugLogger logs requests and events to JSONL files for debugging.
// Each session gets its own file based on the session ID.
type DebugLogger struct {
	sessionID string
	path      string
	mu        sync.Mutex
	file      *os.File
	writer    *bufio.Writer
	closeOnce sync.Once
	closed    bool
	now       func() time.Time
}

// debugLogEntry is the common structure for all log entries
type debugLogEntry struct {
	Timestamp string `json:"timestamp"`
	SessionID string `json:"session_id"`
	Type      string `json:"type"` // "session_start", "request" or "event"
}

type debugRequestEntry struct {
	debugLogEntry
	Turn    int              `json:"turn"`
	Model   string           `json:"model"`
	Request debugRequestData `json:"request"`
}

type debugRequestData struct {
	Messages    []Message `json:"messages"`
	Tools       []string  `json:"tools,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type debugEventEntry struct {
	debugLogEntry
	EventType string `json:"event_type"`
	Data      any    `json:"data,omitempty"`
}

type debugSessionStartEntry struct {
	debugLogEntry
	Args []string `json:"args"`
	Cwd  string   `json:"cwd"`
}

// maxLoggedOutput bounds tool output and reasoning text written to the log.
const maxLoggedOutput = 500

// NewDebugLogger creates a new DebugLogger writing to baseDir/<sessionID>.jsonl.
// Old log files (>7 days) are automatically cleaned up.
func NewDebugLogger(baseDir, sessionID string) (*DebugLogger, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, err
	}

	_ = CleanupOldLogs(baseDir, 7*24*time.Hour)

	filename := filepath.Join(baseDir, sessionID+".jsonl")
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, err
	}

	return &DebugLogger{
		sessionID: sessionID,
		path:      filename,
		file:      file,
		writer:    bufio.NewWriter(file),
		now:       time.Now,
	}, nil
}

// Path returns the log file path.
func (l *DebugLogger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// LogSessionStart logs the CLI invocation.
func (l *DebugLogger) LogSessionStart(args []string, cwd string) {
	if l == nil {
		return
	}
	l.writeEntry(debugSessionStartEntry{
		debugLogEntry: l.header("session_start"),
		Args:          args,
		Cwd:           cwd,
	})
	l.Flush()
}

// LogRequest logs the request for one round trip of a turn.
func (l *DebugLogger) LogRequest(turn int, req ChatRequest) {
	if l == nil {
		return
	}
	var names []string
	for _, spec := range req.Tools {
		names = append(names, spec.Name)
	}
	l.writeEntry(debugRequestEntry{
		debugLogEntry: l.header("request"),
		Turn:          turn,
		Model:         req.Model,
		Request: debugRequestData{
			Messages:    req.Messages,
			Tools:       names,
			Temperature: req.Temperature,
			MaxTokens:   req.MaxTokens,
		},
	})
	// Requests are infrequent and important
	l.Flush()
}

// LogEvent logs a live event. Text deltas are logged individually but only
// flushed when the turn reaches a phase boundary.
func (l *DebugLogger) LogEvent(event Event) {
	if l == nil {
		return
	}

	entry := debugEventEntry{
		debugLogEntry: l.header("event"),
		EventType:     event.Type.String(),
	}

	switch event.Type {
	case EventTextDelta:
		entry.Data = map[string]string{"text": event.Text}
	case EventReasoningDelta:
		entry.Data = map[string]any{
			"text":     truncateForLog(event.Text),
			"text_len": len(event.Text),
		}
	case EventSectionStart, EventSectionEnd:
		entry.Data = map[string]string{"channel": event.Channel.String()}
	case EventToolCall:
		if event.Tool != nil {
			entry.Data = map[string]any{"name": event.Tool.Name}
		}
	case EventToolExecStart, EventToolExecEnd:
		data := map[string]any{}
		if event.Tool != nil {
			data["tool_call_id"] = event.Tool.ID
			data["tool_name"] = event.Tool.Name
		}
		if event.Text != "" {
			data["tool_info"] = event.Text
		}
		if event.Type == EventToolExecEnd && event.Result != nil {
			data["success"] = !event.Result.IsError()
			data["output"] = truncateForLog(event.Result.Content())
		}
		entry.Data = data
	case EventUsage:
		if event.Use != nil {
			entry.Data = event.Use
		}
	case EventPhase:
		entry.Data = map[string]string{"phase": event.Phase.String()}
	case EventRetry:
		data := map[string]any{
			"attempt":   event.Attempt,
			"wait_secs": event.Wait.Seconds(),
		}
		if event.Err != nil {
			data["error"] = event.Err.Error()
		}
		entry.Data = data
	}

	l.writeEntry(entry)

	if event.Type == EventPhase || event.Type == EventRetry {
		l.Flush()
	}
}

// Close closes the debug logger and flushes any buffered data.
// Close is idempotent and safe to call multiple times.
func (l *DebugLogger) Close() error {
	if l == nil {
		return nil
	}

	var closeErr error
	l.closeOnce.Do(func() {
		l.mu.Lock()
		defer l.mu.Unlock()

		if err := l.writer.Flush(); err != nil {
			closeErr = err
		}
		if err := l.file.Close(); err != nil && closeErr == nil {
			closeErr = err
		}
		l.closed = true
	})
	return closeErr
}

// Flush flushes the buffered writer to disk.
func (l *DebugLogger) Flush() {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.closed {
		l.writer.Flush()
	}
}

func (l *DebugLogger) header(kind string) debugLogEntry {
	return debugLogEntry{
		Timestamp: l.now().UTC().Format(time.RFC3339Nano),
		SessionID: l.sessionID,
		Type:      kind,
	}
}

// writeEntry writes a single log entry as a JSON line.
// Does not flush the buffer - caller is responsible for flushing when appropriate.
func (l *DebugLogger) writeEntry(entry any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}

	l.writer.Write(data)
	l.writer.WriteString("\n")
}

func truncateForLog(s string) string {
	if len(s) > maxLoggedOutput {
		return s[:maxLoggedOutput] + "...[truncated]"
	}
	return s
}

// CleanupOldLogs removes JSONL log files older than maxAge from the specified directory.
func CleanupOldLogs(baseDir string, maxAge time.Duration) error {
	entries, err := os.ReadDir(baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	cutoff := time.Now().Add(-maxAge)
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".jsonl" {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if info.ModTime().Before(cutoff) {
			_ = os.Remove(filepath.Join(baseDir, entry.Name()))
		}
	}

	return nil
}
