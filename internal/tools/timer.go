package tools

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/samsaffron/term-agent/internal/llm"
)

// WakeFunc is called on its own goroutine when a timer fires.
type WakeFunc func(firedAt time.Time)

// TimerTool implements the set_time_out tool. Each call schedules an
// independent one-shot timer.
type TimerTool struct {
	mu      sync.Mutex
	wake    WakeFunc
	pending map[*time.Timer]struct{}
	now     func() time.Time
}

// NewTimerTool creates a TimerTool that calls wake when a timer fires.
func NewTimerTool(wake WakeFunc) *TimerTool {
	return &TimerTool{
		wake:    wake,
		pending: make(map[*time.Timer]struct{}),
		now:     time.Now,
	}
}

// SetWakeFunc replaces the callback used by timers that fire after this call.
func (t *TimerTool) SetWakeFunc(wake WakeFunc) {
	t.mu.Lock()
	t.wake = wake
	t.mu.Unlock()
}

// TimerArgs are the arguments for set_time_out.
type TimerArgs struct {
	Time *int64 `json:"time"`
}

// TimerResult is returned to the model.
type TimerResult struct {
	Scheduled bool   `json:"scheduled"`
	FiresAt   string `json:"fires_at"`
}

func (t *TimerTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        SetTimeoutToolName,
		Description: "Schedule a wakeup. After the given number of milliseconds you will receive a system message telling you the time has elapsed.",
		Schema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"time": map[string]interface{}{
					"type":        "integer",
					"minimum":     0,
					"description": "Delay in milliseconds",
				},
			},
			"required":             []string{"time"},
			"additionalProperties": false,
		},
	}
}

func (t *TimerTool) Preview(args json.RawMessage) string {
	var a TimerArgs
	if err := json.Unmarshal(args, &a); err != nil || a.Time == nil || *a.Time > maxDelayMillis {
		return ""
	}
	return (time.Duration(*a.Time) * time.Millisecond).String()
}

// maxDelayMillis is the largest delay that fits in a time.Duration.
const maxDelayMillis = math.MaxInt64 / int64(time.Millisecond)

func (t *TimerTool) Execute(ctx context.Context, args json.RawMessage) (any, error) {
	var a TimerArgs
	if err := decodeArgs(SetTimeoutToolName, args, &a, "time"); err != nil {
		return nil, err
	}
	if a.Time == nil {
		return nil, NewToolError(ErrInvalidParams, "time is required")
	}
	if *a.Time < 0 {
		return nil, NewToolErrorf(ErrInvalidParams, "time must be >= 0, got %d", *a.Time)
	}
	if *a.Time > maxDelayMillis {
		return nil, NewToolErrorf(ErrInvalidParams, "time must be <= %d, got %d", maxDelayMillis, *a.Time)
	}

	delay := time.Duration(*a.Time) * time.Millisecond
	firesAt := t.now().Add(delay)

	t.mu.Lock()
	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		t.mu.Lock()
		delete(t.pending, timer)
		wake := t.wake
		t.mu.Unlock()
		t.fire(wake)
	})
	t.pending[timer] = struct{}{}
	t.mu.Unlock()

	slog.Debug("timer scheduled", "delay", delay, "fires_at", firesAt)
	return TimerResult{Scheduled: true, FiresAt: firesAt.Format(time.RFC3339)}, nil
}

func (t *TimerTool) fire(wake WakeFunc) {
	firedAt := t.now()
	if wake == nil {
		slog.Warn("timer fired with no wake handler", "fired_at", firedAt)
		return
	}
	wake(firedAt)
}

// Pending returns the number of timers that have not fired yet.
func (t *TimerTool) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Stop cancels all pending timers and reports how many were cancelled.
func (t *TimerTool) Stop() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	stopped := 0
	for timer := range t.pending {
		if timer.Stop() {
			stopped++
		}
		delete(t.pending, timer)
	}
	return stopped
}
