package llm

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
)

// StreamChunk is one decoded server event. Done marks the [DONE] sentinel.
type StreamChunk struct {
	Done    bool          `json:"-"`
	Choices []ChunkChoice `json:"choices"`
	Usage   *Usage        `json:"usage,omitempty"`
}

type ChunkChoice struct {
	Index        int        `json:"index"`
	Delta        ChunkDelta `json:"delta"`
	FinishReason string     `json:"finish_reason,omitempty"`
}

// ChunkDelta carries the incremental payload. Servers name the reasoning field
// either "reasoning" or "reasoning_content".
type ChunkDelta struct {
	Content          string          `json:"content,omitempty"`
	Reasoning        string          `json:"reasoning,omitempty"`
	ReasoningContent string          `json:"reasoning_content,omitempty"`
	ToolCalls        []ToolCallDelta `json:"tool_calls,omitempty"`
}

// ReasoningText returns whichever reasoning field is populated.
func (d ChunkDelta) ReasoningText() string {
	if d.Reasoning != "" {
		return d.Reasoning
	}
	return d.ReasoningContent
}

// ToolCallDelta is one tool-call fragment, keyed by Index.
type ToolCallDelta struct {
	Index    int    `json:"index"`
	ID       string `json:"id,omitempty"`
	Type     string `json:"type,omitempty"`
	Function struct {
		Name      string `json:"name,omitempty"`
		Arguments string `json:"arguments,omitempty"`
	} `json:"function"`
}

const doneSentinel = "[DONE]"

// Decoder reads server-sent event lines and yields parsed chunks lazily.
// It is not restartable: once Next returns io.EOF it keeps returning io.EOF.
type Decoder struct {
	r        *bufio.Reader
	finished bool
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Next returns the next chunk. Lines without a data: prefix and payloads that
// are not valid JSON are skipped. A [DONE] payload yields a chunk with Done set
// and ends the sequence.
func (d *Decoder) Next() (StreamChunk, error) {
	for !d.finished {
		line, err := d.r.ReadString('\n')
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return StreamChunk{}, err
			}
			// Flush a trailing partial line through the same rules.
			d.finished = true
			if line == "" {
				break
			}
		}

		chunk, ok := d.parseLine(line)
		if !ok {
			continue
		}
		if chunk.Done {
			d.finished = true
		}
		return chunk, nil
	}
	return StreamChunk{}, io.EOF
}

func (d *Decoder) parseLine(line string) (StreamChunk, bool) {
	line = strings.TrimRight(line, "\r\n")
	if !strings.HasPrefix(line, "data:") {
		return StreamChunk{}, false
	}
	payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
	if payload == "" {
		return StreamChunk{}, false
	}
	if payload == doneSentinel {
		return StreamChunk{Done: true}, true
	}

	var chunk StreamChunk
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		slog.Debug("dropping malformed stream payload", "error", err, "payload", truncateForLog(payload))
		return StreamChunk{}, false
	}
	return chunk, true
}
