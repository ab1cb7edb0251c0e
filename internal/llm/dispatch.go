package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"
)

// Dispatcher executes tool calls against a registry, one at a time and in
// request order. A failing call never prevents the rest of the batch.
type Dispatcher struct {
	registry *ToolRegistry
	timeout  time.Duration
	emit     EventHandler
}

// NewDispatcher creates a dispatcher. A zero timeout disables the per-call limit.
func NewDispatcher(registry *ToolRegistry, timeout time.Duration, onEvent EventHandler) *Dispatcher {
	return &Dispatcher{registry: registry, timeout: timeout, emit: onEvent}
}

// Dispatch runs every call and returns one result per call in the same order.
func (d *Dispatcher) Dispatch(ctx context.Context, calls []ToolCall) []ToolResult {
	results := make([]ToolResult, 0, len(calls))
	for i := range calls {
		call := calls[i]
		d.emit.emit(Event{Type: EventToolExecStart, Tool: &call, Text: d.preview(call)})
		result := d.execute(ctx, call)
		d.emit.emit(Event{Type: EventToolExecEnd, Tool: &call, Result: &result})
		results = append(results, result)
	}
	return results
}

func (d *Dispatcher) preview(call ToolCall) string {
	tool, ok := d.registry.Get(call.Name)
	if !ok {
		return ""
	}
	args, err := normalizeArguments(call.Arguments)
	if err != nil {
		return ""
	}
	return tool.Preview(args)
}

func (d *Dispatcher) execute(ctx context.Context, call ToolCall) ToolResult {
	res := ToolResult{ID: call.ID, Name: call.Name}

	args, err := normalizeArguments(call.Arguments)
	if err != nil {
		res.Err = fmt.Sprintf("invalid arguments: %v", err)
		return res
	}

	tool, ok := d.registry.Get(call.Name)
	if !ok {
		res.Err = fmt.Sprintf("unknown tool: %s", call.Name)
		return res
	}

	callCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	value, err := d.invoke(callCtx, tool, args)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			res.Err = fmt.Sprintf("tool %s timed out after %s", call.Name, d.timeout)
		} else {
			res.Err = err.Error()
		}
		return res
	}
	res.Result = value
	return res
}

// invoke runs the tool, converting a panic into an error. The tool runs on its
// own goroutine so a tool that ignores its context still honours the timeout.
func (d *Dispatcher) invoke(ctx context.Context, tool Tool, args json.RawMessage) (any, error) {
	type outcome struct {
		value any
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("tool panicked", "tool", tool.Spec().Name, "panic", r, "stack", string(debug.Stack()))
				done <- outcome{err: fmt.Errorf("tool %s panicked: %v", tool.Spec().Name, r)}
			}
		}()
		v, err := tool.Execute(ctx, args)
		done <- outcome{value: v, err: err}
	}()

	select {
	case out := <-done:
		return out.value, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// normalizeArguments treats empty arguments as {} and requires a JSON object.
func normalizeArguments(raw string) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace([]byte(raw))
	if len(trimmed) == 0 {
		return json.RawMessage("{}"), nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, errors.New("arguments must be a JSON object")
	}
	return json.RawMessage(trimmed), nil
}
