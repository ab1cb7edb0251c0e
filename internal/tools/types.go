// Package tools provides the built-in local tools the agent can call.
package tools

import (
	"fmt"
)

// Tool names as advertised to the model.
const (
	SetTimeoutToolName = "set_time_out"
	ReadFileToolName   = "read_file"
	WriteFileToolName  = "write_file"
	EditFileToolName   = "edit_file"
	ExecShellToolName  = "exec_shell"
)

// ToolErrorType classifies tool failures so the model can decide how to recover.
type ToolErrorType string

const (
	ErrFileNotFound     ToolErrorType = "FILE_NOT_FOUND"
	ErrInvalidParams    ToolErrorType = "INVALID_PARAMS"
	ErrExecutionFailed  ToolErrorType = "EXECUTION_FAILED"
	ErrPermissionDenied ToolErrorType = "PERMISSION_DENIED"
	ErrBinaryFile       ToolErrorType = "BINARY_FILE"
	ErrTimeout          ToolErrorType = "TIMEOUT"
	ErrNoMatch          ToolErrorType = "NO_MATCH"
)

// ToolError provides structured error information.
type ToolError struct {
	Type    ToolErrorType `json:"type"`
	Message string        `json:"message"`
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// NewToolError creates a new ToolError.
func NewToolError(errType ToolErrorType, message string) *ToolError {
	return &ToolError{Type: errType, Message: message}
}

// NewToolErrorf creates a new ToolError with formatted message.
func NewToolErrorf(errType ToolErrorType, format string, args ...interface{}) *ToolError {
	return &ToolError{Type: errType, Message: fmt.Sprintf(format, args...)}
}

// OutputLimits caps how much text a tool returns.
type OutputLimits struct {
	MaxLines int
	MaxBytes int64
}

// DefaultOutputLimits returns the limits used when none are configured.
func DefaultOutputLimits() OutputLimits {
	return OutputLimits{
		MaxLines: 2000,
		MaxBytes: 64 * 1024,
	}
}

// truncateBytes cuts s to at most max bytes without splitting a UTF-8 sequence.
func truncateBytes(s string, max int64) (string, bool) {
	if max <= 0 || int64(len(s)) <= max {
		return s, false
	}
	cut := int(max)
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut], true
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
