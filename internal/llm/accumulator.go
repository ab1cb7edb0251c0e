package llm

import (
	"fmt"
	"strings"
)

// ToolCallAccumulator merges streamed tool-call fragments keyed by index.
// Insertion order of indices is preserved.
type ToolCallAccumulator struct {
	byIndex map[int]*toolCallState
	order   []int
}

type toolCallState struct {
	id       string
	callType string
	name     string
	args     strings.Builder
}

func NewToolCallAccumulator() *ToolCallAccumulator {
	return &ToolCallAccumulator{byIndex: make(map[int]*toolCallState)}
}

// Add merges fragments. It reports the indices whose name became known by this call.
func (a *ToolCallAccumulator) Add(fragments []ToolCallDelta) []int {
	var named []int
	for _, frag := range fragments {
		state, ok := a.byIndex[frag.Index]
		if !ok {
			state = &toolCallState{}
			a.byIndex[frag.Index] = state
			a.order = append(a.order, frag.Index)
		}
		// Identity is first-fragment-wins.
		if state.id == "" && frag.ID != "" {
			state.id = frag.ID
		}
		if state.callType == "" && frag.Type != "" {
			state.callType = frag.Type
		}
		if state.name == "" && frag.Function.Name != "" {
			state.name = frag.Function.Name
			named = append(named, frag.Index)
		}
		if frag.Function.Arguments != "" {
			state.args.WriteString(frag.Function.Arguments)
		}
	}
	return named
}

// Name returns the resolved name for an index.
func (a *ToolCallAccumulator) Name(index int) string {
	if state, ok := a.byIndex[index]; ok {
		return state.name
	}
	return ""
}

// Len returns the number of distinct calls seen.
func (a *ToolCallAccumulator) Len() int {
	return len(a.order)
}

// Calls materializes the accumulated calls in first-seen order.
func (a *ToolCallAccumulator) Calls() []ToolCall {
	if len(a.order) == 0 {
		return nil
	}
	calls := make([]ToolCall, 0, len(a.order))
	for i, idx := range a.order {
		state := a.byIndex[idx]
		call := ToolCall{
			ID:        state.id,
			Type:      state.callType,
			Name:      state.name,
			Arguments: state.args.String(),
		}
		if call.ID == "" {
			call.ID = fmt.Sprintf("toolcall-%d", i+1)
		}
		if call.Type == "" {
			call.Type = "function"
		}
		calls = append(calls, call)
	}
	return calls
}
