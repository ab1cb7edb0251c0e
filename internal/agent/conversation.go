// Package agent owns the conversation, its context budget and the guard that
// admits one turn at a time.
package agent

import (
	"sync"

	"github.com/samsaffron/term-agent/internal/llm"
)

// Conversation is the ordered message log. It is safe for concurrent use so a
// signal handler can snapshot it while a turn is running.
type Conversation struct {
	mu   sync.Mutex
	msgs []llm.Message
}

func NewConversation(msgs []llm.Message) *Conversation {
	return &Conversation{msgs: append([]llm.Message(nil), msgs...)}
}

// Messages returns a copy of the log.
func (c *Conversation) Messages() []llm.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]llm.Message(nil), c.msgs...)
}

func (c *Conversation) Append(msgs ...llm.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msgs...)
}

// Replace swaps the whole log, used by summarization.
func (c *Conversation) Replace(msgs []llm.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append([]llm.Message(nil), msgs...)
}

func (c *Conversation) Clear() {
	c.Replace(nil)
}

func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.msgs)
}
