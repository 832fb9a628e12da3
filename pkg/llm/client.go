// Package llm wraps the Anthropic Messages API behind the narrow
// request/response contract the executor consumes: one retrying RPC with
// backoff, timeout, cancellation, and tool-call extraction.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Sentinel errors classifying upstream failures. The executor maps these
// onto its error taxonomy with errors.Is.
var (
	// ErrRateLimited indicates the API returned 429 and retries were
	// exhausted
	ErrRateLimited = errors.New("llm rate limited")

	// ErrOverloaded indicates the API returned 529/503 and retries were
	// exhausted
	ErrOverloaded = errors.New("llm overloaded")

	// ErrAPI indicates a non-retryable API failure
	ErrAPI = errors.New("llm api error")

	// ErrTimeout indicates the per-request timeout elapsed
	ErrTimeout = errors.New("llm request timed out")
)

// StopReason is why the model stopped emitting tokens.
type StopReason string

// Stop reason values from the Messages API.
const (
	StopEndTurn      StopReason = "end_turn"
	StopMaxTokens    StopReason = "max_tokens"
	StopStopSequence StopReason = "stop_sequence"
	StopToolUse      StopReason = "tool_use"
)

// Role values for conversation messages.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Block types within a message.
const (
	BlockTypeText       = "text"
	BlockTypeToolUse    = "tool_use"
	BlockTypeToolResult = "tool_result"
)

// ContentBlock is one typed chunk of a message. Text blocks carry Text;
// tool_use blocks carry ToolUseID/ToolName/ToolInput; tool_result blocks
// carry ToolUseID/Content/IsError.
type ContentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	ToolName  string          `json:"tool_name,omitempty"`
	ToolInput json.RawMessage `json:"tool_input,omitempty"`
	Content   string          `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

// Message is one turn of the conversation. Plain turns set Content;
// tool-bearing turns set Blocks instead.
type Message struct {
	Role    string         `json:"role"`
	Content string         `json:"content,omitempty"`
	Blocks  []ContentBlock `json:"blocks,omitempty"`
}

// ToolSchema is the JSON-schema object fragment describing a tool's input.
type ToolSchema struct {
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties,omitempty"`
	Required   []string       `json:"required,omitempty"`
}

// ToolDefinition advertises one invocable tool to the model. Names use the
// qualified {tool}__{action} form.
type ToolDefinition struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	InputSchema ToolSchema `json:"input_schema"`
}

// ToolUse is a protocol-level request by the model to invoke a tool. It
// must be answered with a tool_result block referencing ID.
type ToolUse struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// Request is one Messages API call.
type Request struct {
	Model     string
	System    string
	Messages  []Message
	MaxTokens int
	Timeout   time.Duration
	Tools     []ToolDefinition
}

// Response is the translated Messages API result.
type Response struct {
	Content      string
	Model        string
	InputTokens  int
	OutputTokens int
	StopReason   StopReason
	Duration     time.Duration
	ToolUses     []ToolUse
	Blocks       []ContentBlock
}

// Truncated reports whether the model was cut off before a natural end of
// turn. Tool use is a deliberate stop, not truncation.
func (r *Response) Truncated() bool {
	return r.StopReason != StopEndTurn && r.StopReason != StopToolUse
}

// Client is the LLM contract consumed by the executor and review engine.
type Client interface {
	CreateMessage(ctx context.Context, req *Request) (*Response, error)
}
