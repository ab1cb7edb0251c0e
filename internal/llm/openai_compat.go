package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// httpClientTimeout bounds a whole request including the streamed body.
const httpClientTimeout = 10 * time.Minute

var defaultHTTPClient = &http.Client{
	Timeout: httpClientTimeout,
}

// ChatRequest is a provider-neutral chat completion request.
type ChatRequest struct {
	Model       string
	Messages    []Message
	Tools       []ToolSpec
	Temperature *float64
	MaxTokens   int
}

// ChunkStream yields decoded chunks until io.EOF.
type ChunkStream interface {
	Next() (StreamChunk, error)
	Close() error
}

// ChatClient talks to a chat-completion endpoint.
type ChatClient interface {
	Stream(ctx context.Context, req ChatRequest) (ChunkStream, error)
	Complete(ctx context.Context, req ChatRequest) (Message, error)
}

// ClientConfig configures an OpenAI-compatible client.
type ClientConfig struct {
	BaseURL    string // e.g. http://127.0.0.1:8080/v1
	APIKey     string
	Retry      RetryConfig
	HTTPClient *http.Client
	OnEvent    EventHandler
}

// Client is an OpenAI-compatible chat-completions client using raw HTTP and SSE.
type Client struct {
	baseURL string
	apiKey  string
	retry   RetryConfig
	http    *http.Client
	emit    EventHandler
}

func NewClient(cfg ClientConfig) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = defaultHTTPClient
	}
	retry := cfg.Retry
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = 1
	}
	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		retry:   retry,
		http:    httpClient,
		emit:    cfg.OnEvent,
	}
}

// BaseURL builds the API root from a host and port. A host that already has a
// scheme is used as-is.
func BaseURL(host string, port int) string {
	host = strings.TrimSuffix(host, "/")
	if !strings.Contains(host, "://") {
		host = "http://" + host
	}
	return fmt.Sprintf("%s:%d/v1", host, port)
}

type oaiChatRequest struct {
	Model       string       `json:"model"`
	Messages    []oaiMessage `json:"messages"`
	Tools       []oaiTool    `json:"tools,omitempty"`
	Temperature *float64     `json:"temperature,omitempty"`
	MaxTokens   int          `json:"max_tokens,omitempty"`
	Stream      bool         `json:"stream"`
}

type oaiMessage struct {
	Role       string        `json:"role"`
	Content    *string       `json:"content"`
	ToolCalls  []oaiToolCall `json:"tool_calls,omitempty"`
	ToolCallID string        `json:"tool_call_id,omitempty"`
}

type oaiTool struct {
	Type     string      `json:"type"`
	Function oaiFunction `json:"function"`
}

type oaiFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

type oaiToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type oaiChatResponse struct {
	Choices []struct {
		Message oaiMessage `json:"message"`
	} `json:"choices"`
	Usage *Usage       `json:"usage,omitempty"`
	Error *oaiAPIError `json:"error,omitempty"`
}

type oaiAPIError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func buildWireMessages(messages []Message) []oaiMessage {
	result := make([]oaiMessage, 0, len(messages))
	for _, msg := range messages {
		wire := oaiMessage{
			Role:       string(msg.Role),
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
		}
		for _, call := range msg.ToolCalls {
			var tc oaiToolCall
			tc.ID = call.ID
			tc.Type = call.Type
			if tc.Type == "" {
				tc.Type = "function"
			}
			tc.Function.Name = call.Name
			tc.Function.Arguments = call.Arguments
			wire.ToolCalls = append(wire.ToolCalls, tc)
		}
		result = append(result, wire)
	}
	return result
}

func fromWireMessage(wire oaiMessage) Message {
	msg := Message{
		Role:       Role(wire.Role),
		Content:    wire.Content,
		ToolCallID: wire.ToolCallID,
	}
	if msg.Role == "" {
		msg.Role = RoleAssistant
	}
	for _, tc := range wire.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, ToolCall{
			ID:        tc.ID,
			Type:      tc.Type,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return msg
}

func (c *Client) buildBody(req ChatRequest, stream bool) ([]byte, error) {
	tools, err := wireTools(req.Tools)
	if err != nil {
		return nil, err
	}
	return json.Marshal(oaiChatRequest{
		Model:       req.Model,
		Messages:    buildWireMessages(req.Messages),
		Tools:       tools,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      stream,
	})
}

func (c *Client) makeRequest(ctx context.Context, body []byte, stream bool) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, &requestBuildError{err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		resp.Body.Close()
		return nil, newHTTPError(resp, data)
	}
	return resp, nil
}

// send posts the request, retrying transport failures and non-2xx responses
// with linear backoff.
func (c *Client) send(ctx context.Context, req ChatRequest, stream bool) (*http.Response, error) {
	body, err := c.buildBody(req, stream)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		resp, err := c.makeRequest(ctx, body, stream)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !isRetryable(err) || ctx.Err() != nil {
			break
		}
		if attempt >= c.retry.MaxAttempts {
			break
		}

		wait := c.retry.calculateBackoff(attempt, err)
		slog.Warn("chat request failed, retrying", "attempt", attempt, "max_attempts", c.retry.MaxAttempts, "wait", wait, "error", err)
		c.emit.emit(Event{Type: EventRetry, Attempt: attempt, Wait: wait, Err: err})
		if err := sleepContext(ctx, wait); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("chat request failed after %d attempt(s): %w", c.retry.MaxAttempts, lastErr)
}

// Stream sends a streaming request and returns a chunk stream over the response body.
func (c *Client) Stream(ctx context.Context, req ChatRequest) (ChunkStream, error) {
	resp, err := c.send(ctx, req, true)
	if err != nil {
		return nil, err
	}
	return &bodyStream{Decoder: NewDecoder(resp.Body), body: resp.Body}, nil
}

// Complete sends a non-streaming request and returns the first choice's message.
func (c *Client) Complete(ctx context.Context, req ChatRequest) (Message, error) {
	resp, err := c.send(ctx, req, false)
	if err != nil {
		return Message{}, err
	}
	defer resp.Body.Close()

	var chatResp oaiChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return Message{}, fmt.Errorf("decode response: %w", err)
	}
	if chatResp.Error != nil {
		return Message{}, fmt.Errorf("API error: %s", chatResp.Error.Message)
	}
	if len(chatResp.Choices) == 0 {
		return Message{}, errors.New("response contained no choices")
	}
	return fromWireMessage(chatResp.Choices[0].Message), nil
}

type bodyStream struct {
	*Decoder
	body io.Closer
}

func (s *bodyStream) Close() error {
	return s.body.Close()
}
