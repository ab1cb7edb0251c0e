package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/samsaffron/term-agent/internal/llm"
)

// ShellTool implements the exec_shell tool.
type ShellTool struct {
	policy *Policy
	limits OutputLimits
}

// NewShellTool creates a new ShellTool.
func NewShellTool(p *Policy, limits OutputLimits) *ShellTool {
	return &ShellTool{policy: p, limits: limits}
}

// ShellArgs are the arguments for the exec_shell tool.
type ShellArgs struct {
	Command string `json:"command"`
}

// ShellResult contains the result of a shell command.
type ShellResult struct {
	Stdout    string `json:"stdout"`
	Stderr    string `json:"stderr"`
	ExitCode  int    `json:"exit_code"`
	Truncated bool   `json:"truncated,omitempty"`
}

func (t *ShellTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        ExecShellToolName,
		Description: "Execute a shell command in the current directory. Returns stdout, stderr, and exit code.",
		Schema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"command": map[string]interface{}{
					"type":        "string",
					"description": "Shell command to execute",
				},
			},
			"required":             []string{"command"},
			"additionalProperties": false,
		},
	}
}

func (t *ShellTool) Preview(args json.RawMessage) string {
	var a ShellArgs
	if err := json.Unmarshal(args, &a); err != nil || a.Command == "" {
		return ""
	}
	return truncateCommand(a.Command)
}

func (t *ShellTool) Execute(ctx context.Context, args json.RawMessage) (any, error) {
	var a ShellArgs
	if err := decodeArgs(ExecShellToolName, args, &a, "command"); err != nil {
		return nil, err
	}
	if a.Command == "" {
		return nil, NewToolError(ErrInvalidParams, "command is required")
	}
	if pattern, denied := t.policy.deniedCommand(a.Command); denied {
		return nil, NewToolErrorf(ErrPermissionDenied, "command not allowed: %s (matches %q)", truncateCommand(a.Command), pattern)
	}

	cmd := exec.CommandContext(ctx, detectShell(), "-c", a.Command)
	// Run in its own process group so cancellation also kills children.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	result := ShellResult{}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, NewToolErrorf(ErrExecutionFailed, "command error: %v", err)
		}
		result.ExitCode = exitErr.ExitCode()
	}

	var cutOut, cutErr bool
	result.Stdout, cutOut = truncateBytes(stdout.String(), t.limits.MaxBytes)
	result.Stderr, cutErr = truncateBytes(stderr.String(), t.limits.MaxBytes)
	result.Truncated = cutOut || cutErr
	return result, nil
}

// detectShell returns the user's shell, falling back to sh.
func detectShell() string {
	if shell := os.Getenv("SHELL"); shell != "" {
		return shell
	}
	return "sh"
}

// truncateCommand truncates a command for previews and error messages.
func truncateCommand(cmd string) string {
	if len(cmd) > 50 {
		return cmd[:47] + "..."
	}
	return cmd
}
