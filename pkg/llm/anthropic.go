package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Retry schedules. Rate limits back off longer than transient server
// errors; timeouts get a single retry.
var (
	rateLimitBackoffs = []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second, 32 * time.Second, 60 * time.Second}
	serverBackoffs    = []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}
	timeoutRetries    = 1
)

// MessagesClient is the subset of the Anthropic SDK the adapter uses. It
// is satisfied by *sdk.MessageService so tests can substitute a fake.
type MessagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// AnthropicClient implements Client on the Anthropic Messages API with the
// bounded retry schedule.
type AnthropicClient struct {
	msg   MessagesClient
	log   *slog.Logger
	sleep func(ctx context.Context, d time.Duration) error
}

// AnthropicOption configures the adapter.
type AnthropicOption func(*AnthropicClient)

// WithSleep injects the backoff sleeper for deterministic tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) AnthropicOption {
	return func(c *AnthropicClient) { c.sleep = sleep }
}

// NewAnthropicClient builds the adapter over an SDK messages client.
func NewAnthropicClient(msg MessagesClient, opts ...AnthropicOption) (*AnthropicClient, error) {
	if msg == nil {
		return nil, errors.New("anthropic messages client is required")
	}
	c := &AnthropicClient{
		msg:   msg,
		log:   slog.With("component", "llm"),
		sleep: sleepCtx,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NewAnthropicClientFromAPIKey builds the adapter with the default HTTP
// transport. The SDK's own retries are disabled so this package's schedule
// is the only one in play.
func NewAnthropicClientFromAPIKey(apiKey string) (*AnthropicClient, error) {
	if apiKey == "" {
		return nil, errors.New("api key is required")
	}
	ac := sdk.NewClient(option.WithAPIKey(apiKey), option.WithMaxRetries(0))
	return NewAnthropicClient(&ac.Messages)
}

// sleepCtx waits for d or until the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// CreateMessage issues one Messages call, retrying rate limits, transient
// server errors, and a single timeout. Cancellation is re-checked between
// backoff sleeps.
func (c *AnthropicClient) CreateMessage(ctx context.Context, req *Request) (*Response, error) {
	params, err := encodeRequest(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAPI, err)
	}

	start := time.Now()
	var rateAttempt, serverAttempt, timeoutAttempt int
	for {
		resp, err := c.attempt(ctx, req, params)
		if err == nil {
			resp.Duration = time.Since(start)
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		switch classify(err) {
		case kindRateLimited:
			if rateAttempt >= len(rateLimitBackoffs) {
				return nil, fmt.Errorf("%w: %v", ErrRateLimited, err)
			}
			backoff := rateLimitBackoffs[rateAttempt]
			rateAttempt++
			c.log.Warn("Rate limited, backing off",
				"attempt", rateAttempt, "backoff", backoff)
			if serr := c.sleep(ctx, backoff); serr != nil {
				return nil, serr
			}
		case kindServerError:
			if serverAttempt >= len(serverBackoffs) {
				return nil, fmt.Errorf("%w: %v", ErrOverloaded, err)
			}
			backoff := serverBackoffs[serverAttempt]
			serverAttempt++
			c.log.Warn("Transient server error, backing off",
				"attempt", serverAttempt, "backoff", backoff)
			if serr := c.sleep(ctx, backoff); serr != nil {
				return nil, serr
			}
		case kindTimeout:
			if timeoutAttempt >= timeoutRetries {
				return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
			}
			timeoutAttempt++
			c.log.Warn("Request timed out, retrying once", "attempt", timeoutAttempt)
		default:
			return nil, fmt.Errorf("%w: %v", ErrAPI, err)
		}
	}
}

// attempt issues one call under the per-request timeout.
func (c *AnthropicClient) attempt(ctx context.Context, req *Request, params *sdk.MessageNewParams) (*Response, error) {
	callCtx := ctx
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}
	msg, err := c.msg.New(callCtx, *params)
	if err != nil {
		// A deadline on the call context with the parent still live is a
		// per-request timeout, which is retryable.
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return nil, err
	}
	return decodeResponse(msg)
}

type errorKind int

const (
	kindFatal errorKind = iota
	kindRateLimited
	kindServerError
	kindTimeout
)

// classify buckets an SDK error for the retry schedule.
func classify(err error) errorKind {
	if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return kindTimeout
	}
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return kindRateLimited
		case apiErr.StatusCode >= http.StatusInternalServerError:
			return kindServerError
		}
	}
	return kindFatal
}

// encodeRequest translates the request into SDK parameters.
func encodeRequest(req *Request) (*sdk.MessageNewParams, error) {
	if req.Model == "" {
		return nil, errors.New("model identifier is required")
	}
	if len(req.Messages) == 0 {
		return nil, errors.New("at least one message is required")
	}
	if req.MaxTokens <= 0 {
		return nil, errors.New("max_tokens must be positive")
	}

	msgs := make([]sdk.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		blocks, err := encodeBlocks(m)
		if err != nil {
			return nil, err
		}
		if len(blocks) == 0 {
			continue
		}
		switch m.Role {
		case RoleUser:
			msgs = append(msgs, sdk.NewUserMessage(blocks...))
		case RoleAssistant:
			msgs = append(msgs, sdk.NewAssistantMessage(blocks...))
		default:
			return nil, fmt.Errorf("unsupported message role %q", m.Role)
		}
	}
	if len(msgs) == 0 {
		return nil, errors.New("no non-empty messages to send")
	}

	params := &sdk.MessageNewParams{
		Model:     sdk.Model(req.Model),
		MaxTokens: int64(req.MaxTokens),
		Messages:  msgs,
	}
	if req.System != "" {
		params.System = []sdk.TextBlockParam{{Text: req.System}}
	}
	if len(req.Tools) > 0 {
		tools, err := encodeTools(req.Tools)
		if err != nil {
			return nil, err
		}
		params.Tools = tools
	}
	return params, nil
}

func encodeBlocks(m Message) ([]sdk.ContentBlockParamUnion, error) {
	if len(m.Blocks) == 0 {
		if m.Content == "" {
			return nil, nil
		}
		return []sdk.ContentBlockParamUnion{sdk.NewTextBlock(m.Content)}, nil
	}
	blocks := make([]sdk.ContentBlockParamUnion, 0, len(m.Blocks))
	for _, b := range m.Blocks {
		switch b.Type {
		case BlockTypeText:
			if b.Text != "" {
				blocks = append(blocks, sdk.NewTextBlock(b.Text))
			}
		case BlockTypeToolUse:
			blocks = append(blocks, sdk.NewToolUseBlock(b.ToolUseID, b.ToolInput, b.ToolName))
		case BlockTypeToolResult:
			blocks = append(blocks, sdk.NewToolResultBlock(b.ToolUseID, b.Content, b.IsError))
		default:
			return nil, fmt.Errorf("unsupported content block type %q", b.Type)
		}
	}
	return blocks, nil
}

func encodeTools(defs []ToolDefinition) ([]sdk.ToolUnionParam, error) {
	tools := make([]sdk.ToolUnionParam, 0, len(defs))
	for _, def := range defs {
		if def.Name == "" {
			return nil, errors.New("tool definition missing name")
		}
		schema := sdk.ToolInputSchemaParam{}
		if def.InputSchema.Properties != nil {
			schema.Properties = def.InputSchema.Properties
		}
		if len(def.InputSchema.Required) > 0 {
			schema.Required = def.InputSchema.Required
		}
		u := sdk.ToolUnionParamOfTool(schema, def.Name)
		if u.OfTool != nil && def.Description != "" {
			u.OfTool.Description = sdk.String(def.Description)
		}
		tools = append(tools, u)
	}
	return tools, nil
}

// decodeResponse translates an SDK message: text blocks concatenate into
// Content, tool_use blocks surface as ToolUses, and the raw block sequence
// is preserved for the executor's tool loop.
func decodeResponse(msg *sdk.Message) (*Response, error) {
	if msg == nil {
		return nil, errors.New("nil response message")
	}
	resp := &Response{
		Model:        string(msg.Model),
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
		StopReason:   StopReason(msg.StopReason),
	}
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			if block.Text == "" {
				continue
			}
			if resp.Content != "" {
				resp.Content += "\n"
			}
			resp.Content += block.Text
			resp.Blocks = append(resp.Blocks, ContentBlock{Type: BlockTypeText, Text: block.Text})
		case "tool_use":
			use := ToolUse{ID: block.ID, Name: block.Name, Input: block.Input}
			resp.ToolUses = append(resp.ToolUses, use)
			resp.Blocks = append(resp.Blocks, ContentBlock{
				Type:      BlockTypeToolUse,
				ToolUseID: block.ID,
				ToolName:  block.Name,
				ToolInput: block.Input,
			})
		}
	}
	return resp, nil
}
