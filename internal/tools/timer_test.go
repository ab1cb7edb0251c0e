package tools

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestTimerToolFires(t *testing.T) {
	fired := make(chan time.Time, 1)
	tool := NewTimerTool(func(at time.Time) { fired <- at })

	out, err := tool.Execute(context.Background(), json.RawMessage(`{"time": 10}`))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	res := out.(TimerResult)
	if !res.Scheduled {
		t.Error("Scheduled = false")
	}
	if _, err := time.Parse(time.RFC3339, res.FiresAt); err != nil {
		t.Errorf("FiresAt %q is not RFC3339: %v", res.FiresAt, err)
	}

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("timer did not fire")
	}
	// The pending entry is removed before the callback runs.
	if n := tool.Pending(); n != 0 {
		t.Errorf("Pending() = %d after firing", n)
	}
}

func TestTimerToolZeroDelay(t *testing.T) {
	fired := make(chan struct{}, 1)
	tool := NewTimerTool(func(time.Time) { fired <- struct{}{} })
	if _, err := tool.Execute(context.Background(), json.RawMessage(`{"time": 0}`)); err != nil {
		t.Fatal(err)
	}
	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("zero delay timer did not fire")
	}
}

func TestTimerToolInvalid(t *testing.T) {
	tool := NewTimerTool(nil)
	tests := []struct {
		name string
		args string
	}{
		{"missing", `{}`},
		{"negative", `{"time": -5}`},
		{"wrong type", `{"time": "soon"}`},
		{"overflows duration", `{"time": 9300000000000000}`},
		{"max int64", `{"time": 9223372036854775807}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tool.Execute(context.Background(), json.RawMessage(tt.args))
			wantToolError(t, err, ErrInvalidParams)
		})
	}
	if n := tool.Pending(); n != 0 {
		t.Errorf("rejected calls left %d timers pending", n)
	}
}

func TestTimerToolStop(t *testing.T) {
	fired := make(chan struct{}, 2)
	tool := NewTimerTool(func(time.Time) { fired <- struct{}{} })
	for i := 0; i < 2; i++ {
		if _, err := tool.Execute(context.Background(), json.RawMessage(`{"time": 60000}`)); err != nil {
			t.Fatal(err)
		}
	}
	if n := tool.Pending(); n != 2 {
		t.Fatalf("Pending() = %d, want 2", n)
	}
	if n := tool.Stop(); n != 2 {
		t.Errorf("Stop() = %d, want 2", n)
	}
	if n := tool.Pending(); n != 0 {
		t.Errorf("Pending() after Stop = %d", n)
	}
}

func TestTimerToolSetWakeFunc(t *testing.T) {
	tool := NewTimerTool(nil)
	fired := make(chan struct{}, 1)
	tool.SetWakeFunc(func(time.Time) { fired <- struct{}{} })
	if _, err := tool.Execute(context.Background(), json.RawMessage(`{"time": 1}`)); err != nil {
		t.Fatal(err)
	}
	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("timer did not use the replacement wake func")
	}
}

func TestBuiltinsRegisterInOrder(t *testing.T) {
	b, err := NewBuiltins(DefaultToolConfig(), nil)
	if err != nil {
		t.Fatalf("NewBuiltins() error = %v", err)
	}
	var names []string
	for _, tool := range b.Tools() {
		names = append(names, tool.Spec().Name)
	}
	want := AllToolNames()
	if len(names) != len(want) {
		t.Fatalf("tools = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("tool %d = %s, want %s", i, names[i], want[i])
		}
	}
	if b.Timer == nil {
		t.Error("Timer not exposed")
	}

	if _, err := NewBuiltins(ToolConfig{ShellDeny: []string{"[bad"}}, nil); err == nil {
		t.Error("expected invalid config to fail")
	}
}
