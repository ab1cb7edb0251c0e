package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/samsaffron/term-agent/internal/llm"
)

// WarnFunc is a function that logs warnings.
type WarnFunc func(msg string, args ...any)

// LoggingStore wraps a Store and logs errors instead of silently discarding them.
// Callers still receive the error; persistence stays best-effort.
type LoggingStore struct {
	Store
	warnFunc WarnFunc
	mu       sync.Mutex
	warned   map[string]bool // Rate-limit warnings by operation type
}

// NewLoggingStore creates a new LoggingStore wrapper. A nil warnFunc logs via slog.Warn.
func NewLoggingStore(store Store, warnFunc WarnFunc) *LoggingStore {
	if warnFunc == nil {
		warnFunc = slog.Warn
	}
	return &LoggingStore{
		Store:    store,
		warnFunc: warnFunc,
		warned:   make(map[string]bool),
	}
}

// logOnce logs a warning only once per operation type to avoid spamming.
func (s *LoggingStore) logOnce(op string, err error) {
	if err == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.warned[op] {
		slog.Debug("conversation persistence failed again", "op", op, "error", err)
		return
	}
	s.warned[op] = true
	s.warnFunc("conversation persistence failed", "op", op, "error", err)
}

// Save wraps Store.Save with error logging.
func (s *LoggingStore) Save(ctx context.Context, msgs []llm.Message) error {
	err := s.Store.Save(ctx, msgs)
	s.logOnce("save", err)
	return err
}

// Load wraps Store.Load with error logging.
func (s *LoggingStore) Load(ctx context.Context) ([]llm.Message, error) {
	msgs, err := s.Store.Load(ctx)
	s.logOnce("load", err)
	return msgs, err
}
