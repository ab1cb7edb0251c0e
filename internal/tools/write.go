package tools

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/samsaffron/term-agent/internal/llm"
)

// Content encodings accepted by write_file.
const (
	EncodingUTF8   = "utf8"
	EncodingBase64 = "base64"
)

// WriteFileTool implements the write_file tool.
type WriteFileTool struct {
	policy *Policy
}

// NewWriteFileTool creates a new WriteFileTool.
func NewWriteFileTool(p *Policy) *WriteFileTool {
	return &WriteFileTool{policy: p}
}

// WriteFileArgs are the arguments for write_file.
type WriteFileArgs struct {
	Path     string `json:"path"`
	Content  string `json:"content,omitempty"`
	Encoding string `json:"encoding,omitempty"`
	Append   bool   `json:"append,omitempty"`
}

// WriteFileResult is returned to the model.
type WriteFileResult struct {
	Path         string `json:"path"`
	BytesWritten int    `json:"bytes_written"`
	Created      bool   `json:"created,omitempty"`
}

func (t *WriteFileTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        WriteFileToolName,
		Description: "Write content to a file, replacing it or appending to it. Parent directories are created as needed.",
		Schema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Path of the file to write",
				},
				"content": map[string]interface{}{
					"type":        "string",
					"description": "Content to write (default: empty)",
				},
				"encoding": map[string]interface{}{
					"type":        "string",
					"enum":        []string{EncodingUTF8, EncodingBase64},
					"description": "How content is encoded (default: utf8)",
				},
				"append": map[string]interface{}{
					"type":        "boolean",
					"description": "Append to the file instead of replacing it",
				},
			},
			"required":             []string{"path"},
			"additionalProperties": false,
		},
	}
}

func (t *WriteFileTool) Preview(args json.RawMessage) string {
	var a WriteFileArgs
	if err := json.Unmarshal(args, &a); err != nil || a.Path == "" {
		return ""
	}
	if a.Append {
		return a.Path + " (append)"
	}
	return a.Path
}

func (t *WriteFileTool) Execute(ctx context.Context, args json.RawMessage) (any, error) {
	var a WriteFileArgs
	if err := decodeArgs(WriteFileToolName, args, &a, "path", "content", "encoding", "append"); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, NewToolError(ErrInvalidParams, "path is required")
	}

	data, err := decodeContent(a.Content, a.Encoding)
	if err != nil {
		return nil, err
	}

	path := expandHome(a.Path)
	if err := t.policy.checkWritable(path); err != nil {
		return nil, err
	}

	_, statErr := os.Stat(path)
	created := os.IsNotExist(statErr)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, NewToolErrorf(ErrExecutionFailed, "failed to create directory: %v", err)
	}

	if a.Append {
		err = appendFile(path, data)
	} else {
		err = writeFileAtomic(path, data)
	}
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return nil, NewToolError(ErrPermissionDenied, a.Path)
		}
		return nil, NewToolErrorf(ErrExecutionFailed, "write error: %v", err)
	}

	return WriteFileResult{Path: a.Path, BytesWritten: len(data), Created: created}, nil
}

func decodeContent(content, encoding string) ([]byte, error) {
	switch strings.ToLower(encoding) {
	case "", EncodingUTF8, "utf-8":
		return []byte(content), nil
	case EncodingBase64:
		data, err := base64.StdEncoding.DecodeString(content)
		if err != nil {
			return nil, NewToolErrorf(ErrInvalidParams, "invalid base64 content: %v", err)
		}
		return data, nil
	default:
		return nil, NewToolErrorf(ErrInvalidParams, "unsupported encoding %q (use %s or %s)", encoding, EncodingUTF8, EncodingBase64)
	}
}

func appendFile(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// writeFileAtomic writes to a uniquely-named temp file, then renames it over path.
// Existing file permissions are preserved; new files get 0644.
func writeFileAtomic(path string, data []byte) error {
	mode := os.FileMode(0644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	dir := filepath.Dir(path)
	tf, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tempPath := tf.Name()

	if _, err := tf.Write(data); err != nil {
		tf.Close()
		os.Remove(tempPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tf.Sync(); err != nil {
		tf.Close()
		os.Remove(tempPath)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tf.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	// CreateTemp creates files with 0600 which is too restrictive for source files.
	if err := os.Chmod(tempPath, mode); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("set file permissions: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
