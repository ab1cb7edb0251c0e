package tools

import (
	"errors"

	"github.com/samsaffron/term-agent/internal/llm"
)

// AllToolNames lists the built-in tools in the order they are advertised.
func AllToolNames() []string {
	return []string{
		SetTimeoutToolName,
		ReadFileToolName,
		WriteFileToolName,
		EditFileToolName,
		ExecShellToolName,
	}
}

// Builtins holds the built-in tools created from one ToolConfig.
type Builtins struct {
	Timer *TimerTool
	tools []llm.Tool
}

// NewBuiltins validates cfg and creates the built-in tools. wake is called
// when a set_time_out timer fires; it may be nil and set later on Timer.
func NewBuiltins(cfg ToolConfig, wake WakeFunc) (*Builtins, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	p, err := NewPolicy(cfg)
	if err != nil {
		return nil, err
	}
	limits := cfg.Limits()

	timer := NewTimerTool(wake)
	return &Builtins{
		Timer: timer,
		tools: []llm.Tool{
			timer,
			NewReadFileTool(limits),
			NewWriteFileTool(p),
			NewEditFileTool(p, limits),
			NewShellTool(p, limits),
		},
	}, nil
}

// RegisterWith adds every built-in tool to registry.
func (b *Builtins) RegisterWith(registry *llm.ToolRegistry) {
	for _, tool := range b.tools {
		registry.Register(tool)
	}
}

// Tools returns the built-in tools in advertised order.
func (b *Builtins) Tools() []llm.Tool {
	return append([]llm.Tool(nil), b.tools...)
}
