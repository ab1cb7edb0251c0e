package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/samsaffron/term-agent/internal/llm"
)

// ErrCorrupt marks a conversation file that exists but cannot be used.
var ErrCorrupt = errors.New("conversation file is corrupt")

// FileStore keeps the conversation as a JSON array of messages.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Save writes atomically through a temp file in the same directory.
func (s *FileStore) Save(ctx context.Context, msgs []llm.Message) error {
	if msgs == nil {
		msgs = []llm.Message{}
	}
	data, err := json.MarshalIndent(msgs, "", "  ")
	if err != nil {
		return fmt.Errorf("encode conversation: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".conversation-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	success := false
	defer func() {
		if !success {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	success = true
	return nil
}

// Load returns nil when the file does not exist yet.
func (s *FileStore) Load(ctx context.Context) ([]llm.Message, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read conversation: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var msgs []llm.Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", ErrCorrupt, s.path, err)
	}
	if err := validate(msgs); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorrupt, s.path, err)
	}
	return msgs, nil
}

// MoveAside renames the file to <path>.corrupt so the next Save cannot
// overwrite it. It returns the new path.
func (s *FileStore) MoveAside() (string, error) {
	dest := s.path + ".corrupt"
	if err := os.Rename(s.path, dest); err != nil {
		return "", fmt.Errorf("move corrupt conversation aside: %w", err)
	}
	return dest, nil
}

func (s *FileStore) Close() error {
	return nil
}

func validate(msgs []llm.Message) error {
	for i, msg := range msgs {
		if !msg.Role.Valid() {
			return fmt.Errorf("message %d has unknown role %q", i, msg.Role)
		}
		if msg.Role == llm.RoleTool && msg.ToolCallID == "" {
			return fmt.Errorf("tool message %d has no tool_call_id", i)
		}
	}
	return nil
}
