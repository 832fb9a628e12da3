package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMessages scripts a sequence of SDK results for CreateMessage retries.
type fakeMessages struct {
	results []fakeResult
	calls   int
	params  []sdk.MessageNewParams
}

type fakeResult struct {
	msg *sdk.Message
	err error
}

func (f *fakeMessages) New(_ context.Context, body sdk.MessageNewParams, _ ...option.RequestOption) (*sdk.Message, error) {
	f.params = append(f.params, body)
	idx := f.calls
	if idx >= len(f.results) {
		idx = len(f.results) - 1
	}
	f.calls++
	r := f.results[idx]
	return r.msg, r.err
}

func textMessage(text string, stop string, in, out int64) *sdk.Message {
	return &sdk.Message{
		Model:      "claude-sonnet-4-5",
		StopReason: sdk.StopReason(stop),
		Usage:      sdk.Usage{InputTokens: in, OutputTokens: out},
		Content: []sdk.ContentBlockUnion{
			{Type: "text", Text: text},
		},
	}
}

func apiError(status int) error {
	req, _ := http.NewRequest(http.MethodPost, "https://api.anthropic.com/v1/messages", nil)
	return &sdk.Error{
		StatusCode: status,
		Request:    req,
		Response:   &http.Response{StatusCode: status, Request: req},
	}
}

func newTestClient(t *testing.T, fake *fakeMessages) (*AnthropicClient, *[]time.Duration) {
	t.Helper()
	var slept []time.Duration
	client, err := NewAnthropicClient(fake, WithSleep(func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}))
	require.NoError(t, err)
	return client, &slept
}

func basicRequest() *Request {
	return &Request{
		Model:     "claude-sonnet-4-5",
		System:    "You are a copywriter.",
		Messages:  []Message{{Role: RoleUser, Content: "Write a headline."}},
		MaxTokens: 1024,
	}
}

func TestCreateMessageSuccess(t *testing.T) {
	fake := &fakeMessages{results: []fakeResult{
		{msg: textMessage("Ship faster.", "end_turn", 12, 4)},
	}}
	client, _ := newTestClient(t, fake)

	resp, err := client.CreateMessage(context.Background(), basicRequest())
	require.NoError(t, err)
	assert.Equal(t, "Ship faster.", resp.Content)
	assert.Equal(t, StopEndTurn, resp.StopReason)
	assert.Equal(t, 12, resp.InputTokens)
	assert.Equal(t, 4, resp.OutputTokens)
	assert.False(t, resp.Truncated())
	assert.Equal(t, 1, fake.calls)

	// System prompt travels as a system block, not a message.
	require.Len(t, fake.params, 1)
	require.Len(t, fake.params[0].System, 1)
	assert.Equal(t, "You are a copywriter.", fake.params[0].System[0].Text)
}

func TestCreateMessageRateLimitRetries(t *testing.T) {
	fake := &fakeMessages{results: []fakeResult{
		{err: apiError(http.StatusTooManyRequests)},
		{err: apiError(http.StatusTooManyRequests)},
		{msg: textMessage("ok", "end_turn", 1, 1)},
	}}
	client, slept := newTestClient(t, fake)

	resp, err := client.CreateMessage(context.Background(), basicRequest())
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, 3, fake.calls)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, *slept)
}

func TestCreateMessageRateLimitExhausted(t *testing.T) {
	fake := &fakeMessages{results: []fakeResult{
		{err: apiError(http.StatusTooManyRequests)},
	}}
	client, slept := newTestClient(t, fake)

	_, err := client.CreateMessage(context.Background(), basicRequest())
	require.ErrorIs(t, err, ErrRateLimited)
	// Full schedule: 2s 4s 8s 16s 32s 60s, then give up.
	assert.Equal(t, []time.Duration{
		2 * time.Second, 4 * time.Second, 8 * time.Second,
		16 * time.Second, 32 * time.Second, 60 * time.Second,
	}, *slept)
	assert.Equal(t, 7, fake.calls)
}

func TestCreateMessageServerErrorSchedule(t *testing.T) {
	fake := &fakeMessages{results: []fakeResult{
		{err: apiError(http.StatusServiceUnavailable)},
	}}
	client, slept := newTestClient(t, fake)

	_, err := client.CreateMessage(context.Background(), basicRequest())
	require.ErrorIs(t, err, ErrOverloaded)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}, *slept)
}

func TestCreateMessageTimeoutSingleRetry(t *testing.T) {
	fake := &fakeMessages{results: []fakeResult{
		{err: context.DeadlineExceeded},
	}}
	client, _ := newTestClient(t, fake)

	_, err := client.CreateMessage(context.Background(), basicRequest())
	require.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, 2, fake.calls)
}

func TestCreateMessageFatalErrorNoRetry(t *testing.T) {
	fake := &fakeMessages{results: []fakeResult{
		{err: apiError(http.StatusBadRequest)},
	}}
	client, slept := newTestClient(t, fake)

	_, err := client.CreateMessage(context.Background(), basicRequest())
	require.ErrorIs(t, err, ErrAPI)
	assert.Empty(t, *slept)
	assert.Equal(t, 1, fake.calls)
}

func TestCreateMessageCancellationBetweenBackoffs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fake := &fakeMessages{results: []fakeResult{
		{err: apiError(http.StatusTooManyRequests)},
	}}
	var slept []time.Duration
	client, err := NewAnthropicClient(fake, WithSleep(func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		cancel()
		return ctx.Err()
	}))
	require.NoError(t, err)

	_, err = client.CreateMessage(ctx, basicRequest())
	require.ErrorIs(t, err, context.Canceled)
	assert.Len(t, slept, 1)
}

func TestCreateMessageToolUseExtraction(t *testing.T) {
	input := json.RawMessage(`{"query":"competitor pricing"}`)
	fake := &fakeMessages{results: []fakeResult{
		{msg: &sdk.Message{
			Model:      "claude-sonnet-4-5",
			StopReason: "tool_use",
			Usage:      sdk.Usage{InputTokens: 20, OutputTokens: 8},
			Content: []sdk.ContentBlockUnion{
				{Type: "text", Text: "Let me check."},
				{Type: "tool_use", ID: "toolu_01", Name: "analytics__query", Input: input},
			},
		}},
	}}
	client, _ := newTestClient(t, fake)

	req := basicRequest()
	req.Tools = []ToolDefinition{{
		Name:        "analytics__query",
		Description: "Query the analytics warehouse",
		InputSchema: ToolSchema{Type: "object", Properties: map[string]any{"query": map[string]any{"type": "string"}}},
	}}
	resp, err := client.CreateMessage(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, StopToolUse, resp.StopReason)
	require.Len(t, resp.ToolUses, 1)
	assert.Equal(t, "toolu_01", resp.ToolUses[0].ID)
	assert.Equal(t, "analytics__query", resp.ToolUses[0].Name)
	assert.JSONEq(t, string(input), string(resp.ToolUses[0].Input))
	assert.False(t, resp.Truncated())

	require.Len(t, fake.params[0].Tools, 1)
}

func TestCreateMessageValidation(t *testing.T) {
	fake := &fakeMessages{results: []fakeResult{{msg: textMessage("x", "end_turn", 1, 1)}}}
	client, _ := newTestClient(t, fake)

	tests := []struct {
		name string
		req  *Request
	}{
		{"missing model", &Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}, MaxTokens: 10}},
		{"no messages", &Request{Model: "m", MaxTokens: 10}},
		{"non-positive max tokens", &Request{Model: "m", Messages: []Message{{Role: RoleUser, Content: "hi"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.CreateMessage(context.Background(), tt.req)
			assert.ErrorIs(t, err, ErrAPI)
		})
	}
	assert.Zero(t, fake.calls)
}

func TestResponseTruncated(t *testing.T) {
	assert.True(t, (&Response{StopReason: StopMaxTokens}).Truncated())
	assert.True(t, (&Response{StopReason: StopStopSequence}).Truncated())
	assert.False(t, (&Response{StopReason: StopEndTurn}).Truncated())
	assert.False(t, (&Response{StopReason: StopToolUse}).Truncated())
}
