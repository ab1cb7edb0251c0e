package agent

import (
	"encoding/json"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/samsaffron/term-agent/internal/llm"
)

// DefaultCharsPerToken is the fixed ratio used to estimate tokens from characters.
const DefaultCharsPerToken = 4.0

// tokenThreshold is the share of the context window that triggers a summarization offer.
const tokenThreshold = 0.9

// Budget estimates context usage with a deterministic character heuristic.
type Budget struct {
	ContextWindow int
	MaxHistory    int
	CharsPerToken float64
}

// BudgetStatus is the outcome of a budget check.
type BudgetStatus struct {
	Tokens     int
	Limit      int
	Messages   int
	MaxHistory int
	OverTokens bool
	OverCount  bool
}

// Exceeded reports whether summarization should be offered.
func (s BudgetStatus) Exceeded() bool {
	return s.OverTokens || s.OverCount
}

func (s BudgetStatus) String() string {
	return fmt.Sprintf("~%d tokens of %d (%.0f%%), %d/%d messages",
		s.Tokens, s.Limit, percent(s.Tokens, s.Limit), s.Messages, s.MaxHistory)
}

func percent(n, of int) float64 {
	if of <= 0 {
		return 0
	}
	return float64(n) * 100 / float64(of)
}

// Estimate returns the estimated token count of the system prompt plus messages.
// Tool calls count by the length of their serialized payload.
func (b Budget) Estimate(system string, msgs []llm.Message) int {
	ratio := b.CharsPerToken
	if ratio <= 0 {
		ratio = DefaultCharsPerToken
	}
	chars := utf8.RuneCountInString(system)
	for _, msg := range msgs {
		chars += utf8.RuneCountInString(msg.Text())
		chars += utf8.RuneCountInString(msg.ToolCallID)
		if len(msg.ToolCalls) > 0 {
			payload, err := json.Marshal(msg.ToolCalls)
			if err == nil {
				chars += utf8.RuneCount(payload)
			}
		}
	}
	return int(math.Ceil(float64(chars) / ratio))
}

// Check compares the conversation against the window and history cap.
func (b Budget) Check(system string, msgs []llm.Message) BudgetStatus {
	status := BudgetStatus{
		Tokens:     b.Estimate(system, msgs),
		Limit:      b.ContextWindow,
		Messages:   len(msgs),
		MaxHistory: b.MaxHistory,
	}
	if b.ContextWindow > 0 && float64(status.Tokens) > tokenThreshold*float64(b.ContextWindow) {
		status.OverTokens = true
	}
	if b.MaxHistory > 0 && status.Messages > b.MaxHistory {
		status.OverCount = true
	}
	return status
}
