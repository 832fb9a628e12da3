package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/maestrohq/maestro/pkg/config"
	"github.com/maestrohq/maestro/pkg/llm"
)

// ToolRunner executes one resolved tool action. Implementations are
// provider-specific; the executor only sees the result string.
type ToolRunner interface {
	Invoke(ctx context.Context, tool, action string, cfg *config.ToolConfig, actionCfg *config.ToolActionConfig, input json.RawMessage) (string, error)
}

// StubRunner is the built-in provider: it performs no external call and
// returns a JSON metadata blob describing what would have run.
type StubRunner struct{}

// Invoke implements ToolRunner.
func (StubRunner) Invoke(_ context.Context, tool, action string, _ *config.ToolConfig, _ *config.ToolActionConfig, input json.RawMessage) (string, error) {
	payload := map[string]any{
		"tool":   tool,
		"action": action,
		"status": "stub",
		"note":   "tool execution is stubbed; no external call was made",
	}
	if len(input) > 0 {
		var params any
		if err := json.Unmarshal(input, &params); err == nil {
			payload["params"] = params
		}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// toolDefinitions builds the wire tool list a skill may invoke, in sorted
// qualified-name order for deterministic requests.
func (e *Executor) toolDefinitions(skill string) []llm.ToolDefinition {
	if e.tools == nil {
		return nil
	}
	names := e.tools.QualifiedNamesForSkill(skill)
	defs := make([]llm.ToolDefinition, 0, len(names))
	for _, qualified := range names {
		_, _, action, err := e.tools.ResolveAction(qualified)
		if err != nil {
			continue
		}
		schema := llm.ToolSchema{
			Type:       action.Parameters.Type,
			Properties: action.Parameters.Properties,
			Required:   action.Parameters.Required,
		}
		if schema.Type == "" {
			schema.Type = "object"
		}
		defs = append(defs, llm.ToolDefinition{
			Name:        qualified,
			Description: action.Description,
			InputSchema: schema,
		})
	}
	return defs
}

// runToolCall resolves and invokes one tool_use request, returning the
// tool_result block to feed back. Capability violations come back as
// is_error results rather than failing the task: the model may recover by
// choosing another tool.
func (e *Executor) runToolCall(ctx context.Context, skillName string, use llm.ToolUse) llm.ContentBlock {
	result := llm.ContentBlock{
		Type:      llm.BlockTypeToolResult,
		ToolUseID: use.ID,
	}

	toolName, toolCfg, actionCfg, err := e.tools.ResolveAction(use.Name)
	if err != nil {
		result.IsError = true
		result.Content = fmt.Sprintf("unknown tool %q", use.Name)
		return result
	}
	if !toolCfg.IsEnabled() || !toolCfg.AllowsSkill(skillName) {
		result.IsError = true
		result.Content = fmt.Sprintf("skill %q is not authorized to invoke %q", skillName, use.Name)
		return result
	}

	out, err := e.toolRunner.Invoke(ctx, toolName, actionCfg.Name, toolCfg, actionCfg, use.Input)
	if err != nil {
		result.IsError = true
		result.Content = fmt.Sprintf("tool invocation failed: %v", err)
		return result
	}
	result.Content = out
	return result
}
