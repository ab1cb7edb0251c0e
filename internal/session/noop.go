package session

import (
	"context"

	"github.com/samsaffron/term-agent/internal/llm"
)

// NoopStore is used when persistence is disabled. It discards writes and
// loads nothing.
type NoopStore struct{}

func (s *NoopStore) Save(ctx context.Context, msgs []llm.Message) error {
	return nil
}

func (s *NoopStore) Load(ctx context.Context) ([]llm.Message, error) {
	return nil, nil
}

func (s *NoopStore) Close() error {
	return nil
}
