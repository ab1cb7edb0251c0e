// Package session persists the conversation between runs.
package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/samsaffron/term-agent/internal/llm"
)

// Store is the interface for conversation persistence. A single store holds a
// single conversation, keyed by its configured path.
type Store interface {
	// Save replaces the stored conversation with msgs.
	Save(ctx context.Context, msgs []llm.Message) error
	// Load returns the stored conversation, or nil when nothing has been saved.
	Load(ctx context.Context) ([]llm.Message, error)
	Close() error
}

// GetDataDir returns the XDG data directory for term-agent.
// Uses $XDG_DATA_HOME if set, otherwise ~/.local/share
func GetDataDir() (string, error) {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "term-agent"), nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "term-agent"), nil
}

// DefaultPath returns the default save path.
func DefaultPath() string {
	dir, err := GetDataDir()
	if err != nil {
		return "conversation.json"
	}
	return filepath.Join(dir, "conversation.json")
}

// IsSQLitePath reports whether path selects the SQLite backend.
func IsSQLitePath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return true
	}
	return false
}

// NewStore creates a Store for path. An empty path disables persistence.
func NewStore(path string) (Store, error) {
	if path == "" {
		return &NoopStore{}, nil
	}
	path = expandHome(path)
	if IsSQLitePath(path) {
		return NewSQLiteStore(path)
	}
	return NewFileStore(path), nil
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
