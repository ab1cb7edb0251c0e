package tools

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"strings"

	diff "github.com/shogoki/gotextdiff"

	"github.com/samsaffron/term-agent/internal/llm"
)

// maxDiffSize bounds the content size for which a diff is generated.
const maxDiffSize = 256 * 1024

// EditFileTool implements the edit_file tool.
type EditFileTool struct {
	policy *Policy
	limits OutputLimits
}

// NewEditFileTool creates a new EditFileTool.
func NewEditFileTool(p *Policy, limits OutputLimits) *EditFileTool {
	return &EditFileTool{policy: p, limits: limits}
}

// EditFileArgs are the arguments for edit_file.
type EditFileArgs struct {
	Path    string `json:"path"`
	Find    string `json:"find"`
	Replace string `json:"replace"`
}

// EditFileResult is returned to the model.
type EditFileResult struct {
	Path         string `json:"path"`
	Replacements int    `json:"replacements"`
	Diff         string `json:"diff,omitempty"`
}

func (t *EditFileTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        EditFileToolName,
		Description: "Replace every occurrence of an exact text in a file. Returns the number of replacements and a unified diff.",
		Schema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Path of the file to edit",
				},
				"find": map[string]interface{}{
					"type":        "string",
					"description": "Exact text to find; must occur at least once",
				},
				"replace": map[string]interface{}{
					"type":        "string",
					"description": "Replacement text",
				},
			},
			"required":             []string{"path", "find", "replace"},
			"additionalProperties": false,
		},
	}
}

func (t *EditFileTool) Preview(args json.RawMessage) string {
	var a EditFileArgs
	if err := json.Unmarshal(args, &a); err != nil || a.Path == "" {
		return ""
	}
	return a.Path
}

func (t *EditFileTool) Execute(ctx context.Context, args json.RawMessage) (any, error) {
	var a EditFileArgs
	if err := decodeArgs(EditFileToolName, args, &a, "path", "find", "replace"); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, NewToolError(ErrInvalidParams, "path is required")
	}
	if a.Find == "" {
		return nil, NewToolError(ErrInvalidParams, "find must not be empty")
	}

	path := expandHome(a.Path)
	if err := t.policy.checkWritable(path); err != nil {
		return nil, err
	}

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

	content := string(data)
	count := strings.Count(content, a.Find)
	if count == 0 {
		return nil, NewToolErrorf(ErrNoMatch, "find text not present in %s", a.Path)
	}
	updated := strings.ReplaceAll(content, a.Find, a.Replace)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := writeFileAtomic(path, []byte(updated)); err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return nil, NewToolError(ErrPermissionDenied, a.Path)
		}
		return nil, NewToolErrorf(ErrExecutionFailed, "write error: %v", err)
	}

	result := EditFileResult{Path: a.Path, Replacements: count}
	if len(content) < maxDiffSize && len(updated) < maxDiffSize {
		result.Diff, _ = truncateBytes(UnifiedDiff(a.Path, content, updated), t.limits.MaxBytes)
	}
	return result, nil
}

// UnifiedDiff returns a unified diff between two versions of a file.
func UnifiedDiff(filePath, oldContent, newContent string) string {
	return string(diff.Diff(filePath, []byte(oldContent), filePath, []byte(newContent)))
}
