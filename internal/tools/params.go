package tools

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// UnknownParams returns the keys of args that are not in knownKeys, sorted.
func UnknownParams(args json.RawMessage, knownKeys []string) []string {
	var m map[string]interface{}
	if err := json.Unmarshal(args, &m); err != nil {
		return nil
	}
	known := make(map[string]bool, len(knownKeys))
	for _, k := range knownKeys {
		known[k] = true
	}
	var unknown []string
	for k := range m {
		if !known[k] {
			unknown = append(unknown, k)
		}
	}
	sort.Strings(unknown)
	return unknown
}

// decodeArgs unmarshals args into v and logs any parameters the tool ignores.
func decodeArgs(tool string, args json.RawMessage, v any, knownKeys ...string) error {
	if err := json.Unmarshal(args, v); err != nil {
		return NewToolError(ErrInvalidParams, err.Error())
	}
	if unknown := UnknownParams(args, knownKeys); len(unknown) > 0 {
		slog.Warn("ignoring unknown tool parameters", "tool", tool, "params", unknown)
	}
	return nil
}

// expandHome replaces a leading ~ with the user's home directory.
func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
