package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/samsaffron/term-agent/internal/llm"
)

// ReadFileTool implements the read_file tool.
type ReadFileTool struct {
	limits OutputLimits
}

// NewReadFileTool creates a new ReadFileTool.
func NewReadFileTool(limits OutputLimits) *ReadFileTool {
	return &ReadFileTool{limits: limits}
}

// ReadFileArgs are the arguments for read_file.
type ReadFileArgs struct {
	Path      string `json:"path"`
	StartLine int    `json:"start_line,omitempty"`
	EndLine   int    `json:"end_line,omitempty"`
}

// ReadFileResult is returned to the model. Content lines are prefixed with
// their 1-indexed line number.
type ReadFileResult struct {
	Path       string `json:"path"`
	Content    string `json:"content"`
	TotalLines int    `json:"total_lines"`
	StartLine  int    `json:"start_line"`
	EndLine    int    `json:"end_line"`
	Truncated  bool   `json:"truncated,omitempty"`
}

func (t *ReadFileTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        ReadFileToolName,
		Description: "Read a text file. Returns line-numbered content. Use start_line/end_line to read part of a large file.",
		Schema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute or relative path to the file to read",
				},
				"start_line": map[string]interface{}{
					"type":        "integer",
					"description": "1-indexed first line to return (default: 1)",
				},
				"end_line": map[string]interface{}{
					"type":        "integer",
					"description": "1-indexed last line to return, inclusive (default: end of file)",
				},
			},
			"required":             []string{"path"},
			"additionalProperties": false,
		},
	}
}

func (t *ReadFileTool) Preview(args json.RawMessage) string {
	var a ReadFileArgs
	if err := json.Unmarshal(args, &a); err != nil || a.Path == "" {
		return ""
	}
	if a.StartLine > 0 && a.EndLine > 0 {
		return fmt.Sprintf("%s:%d-%d", a.Path, a.StartLine, a.EndLine)
	} else if a.StartLine > 0 {
		return fmt.Sprintf("%s:%d-", a.Path, a.StartLine)
	} else if a.EndLine > 0 {
		return fmt.Sprintf("%s:1-%d", a.Path, a.EndLine)
	}
	return a.Path
}

func (t *ReadFileTool) Execute(ctx context.Context, args json.RawMessage) (any, error) {
	var a ReadFileArgs
	if err := decodeArgs(ReadFileToolName, args, &a, "path", "start_line", "end_line"); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, NewToolError(ErrInvalidParams, "path is required")
	}
	if a.StartLine < 0 || a.EndLine < 0 {
		return nil, NewToolError(ErrInvalidParams, "start_line and end_line must be positive")
	}

	path := expandHome(a.Path)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, NewToolError(ErrFileNotFound, a.Path)
		}
		if os.IsPermission(err) {
			return nil, NewToolError(ErrPermissionDenied, a.Path)
		}
		return nil, NewToolErrorf(ErrExecutionFailed, "read error: %v", err)
	}

	if isBinaryContent(data) {
		return nil, NewToolErrorf(ErrBinaryFile, "%s appears to be a binary file", a.Path)
	}

	lines := splitLines(string(data))
	totalLines := len(lines)
	result := ReadFileResult{Path: a.Path, TotalLines: totalLines}
	if totalLines == 0 {
		return result, nil
	}

	start := 1
	if a.StartLine > 0 {
		start = a.StartLine
	}
	if start > totalLines {
		return nil, NewToolErrorf(ErrInvalidParams, "start_line %d exceeds file length %d", start, totalLines)
	}
	end := totalLines
	if a.EndLine > 0 && a.EndLine < totalLines {
		end = a.EndLine
	}
	if end < start {
		return nil, NewToolErrorf(ErrInvalidParams, "end_line %d is before start_line %d", end, start)
	}

	if end-start+1 > t.limits.MaxLines && t.limits.MaxLines > 0 {
		end = start + t.limits.MaxLines - 1
		result.Truncated = true
	}

	var sb strings.Builder
	for i := start; i <= end; i++ {
		fmt.Fprintf(&sb, "%d: %s\n", i, lines[i-1])
	}
	output, cut := truncateBytes(strings.TrimSuffix(sb.String(), "\n"), t.limits.MaxBytes)
	if cut {
		// Drop the partial last line unless it is the only one.
		if idx := strings.LastIndex(output, "\n"); idx >= 0 {
			output = output[:idx]
		}
		end = start + strings.Count(output, "\n")
		result.Truncated = true
	}

	result.Content = output
	result.StartLine = start
	result.EndLine = end
	return result, nil
}

// splitLines splits s into lines; a final trailing newline does not start a new line.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	s = strings.TrimSuffix(s, "\n")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

// isBinaryContent detects if content is binary using http.DetectContentType.
func isBinaryContent(data []byte) bool {
	if len(data) == 0 {
		return false
	}

	// Check first 512 bytes
	sample := data
	if len(sample) > 512 {
		sample = sample[:512]
	}

	contentType := http.DetectContentType(sample)
	if strings.HasPrefix(contentType, "text/") {
		return false
	}
	if strings.Contains(contentType, "json") || strings.Contains(contentType, "xml") {
		return false
	}

	for _, b := range sample {
		if b == 0 {
			return true
		}
	}
	return false
}
