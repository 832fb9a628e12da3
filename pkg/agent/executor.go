// Package agent executes exactly one task at a time: gate, select a
// model, assemble the prompt, drive the LLM (including the tool-use
// loop), and persist the output. Execute never throws; every path
// returns a status-bearing result.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/maestrohq/maestro/pkg/agent/prompt"
	"github.com/maestrohq/maestro/pkg/budget"
	"github.com/maestrohq/maestro/pkg/config"
	"github.com/maestrohq/maestro/pkg/llm"
	"github.com/maestrohq/maestro/pkg/models"
	"github.com/maestrohq/maestro/pkg/workspace"
)

// MetadataModelTier is the task metadata key carrying an explicit model
// override. It wins over the budget override and squad defaults.
const MetadataModelTier = "model_tier"

// concisePrompt is the follow-up issued once after a truncated response.
const concisePrompt = "Your previous response was cut off. Continue from where you stopped and be more concise."

// Result is the outcome of one execution. Err is nil on success.
type Result struct {
	TaskID         string
	Status         models.TaskStatus
	OutputPath     string
	Content        string
	Model          models.ModelTier
	InputTokens    int
	OutputTokens   int
	Retries        int
	ToolIterations int
	Truncated      bool
	Duration       time.Duration
	CostUSD        float64
	Err            *ExecError
}

// Failed reports whether the execution ended in error.
func (r *Result) Failed() bool {
	return r.Err != nil
}

// Executor runs tasks against the LLM. All collaborators are injected;
// the budget arrives as a read-only closure.
type Executor struct {
	skills     *config.SkillRegistry
	squads     *config.SquadRegistry
	tools      *config.ToolRegistry
	llm        llm.Client
	ws         workspace.Workspace
	budget     budget.StateFunc
	tracker    *budget.Tracker
	llmCfg     *config.LLMConfig
	toolRunner ToolRunner
	log        *slog.Logger
	now        func() time.Time
}

// Deps bundles the executor's collaborators.
type Deps struct {
	Skills    *config.SkillRegistry
	Squads    *config.SquadRegistry
	Tools     *config.ToolRegistry
	LLM       llm.Client
	Workspace workspace.Workspace
	Budget    budget.StateFunc
	Tracker   *budget.Tracker
	LLMConfig *config.LLMConfig
	// ToolRunner defaults to the stub provider when nil.
	ToolRunner ToolRunner
	// Clock defaults to time.Now when nil.
	Clock func() time.Time
}

// NewExecutor creates an executor.
func NewExecutor(deps Deps) *Executor {
	runner := deps.ToolRunner
	if runner == nil {
		runner = StubRunner{}
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Executor{
		skills:     deps.Skills,
		squads:     deps.Squads,
		tools:      deps.Tools,
		llm:        deps.LLM,
		ws:         deps.Workspace,
		budget:     deps.Budget,
		tracker:    deps.Tracker,
		llmCfg:     deps.LLMConfig,
		toolRunner: runner,
		log:        slog.With("component", "executor"),
		now:        clock,
	}
}

// Execute runs one task end to end. It never panics and never returns a
// Go error; failures are typed values on the result.
func (e *Executor) Execute(ctx context.Context, task *models.Task) (res *Result) {
	start := e.now()
	res = &Result{TaskID: task.ID, Status: task.Status}
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("Executor panic recovered", "task_id", task.ID, "panic", r)
			res.Err = newExecError(CodeUnknown, fmt.Sprintf("panic: %v", r), nil)
			res.Status = models.TaskStatusFailed
		}
		res.Duration = e.now().Sub(start)
	}()

	log := e.log.With("task_id", task.ID, "skill", task.Skill)

	// 1. Pre-aborted signal.
	if ctx.Err() != nil {
		res.Err = newExecError(CodeAborted, "context cancelled before execution", ctx.Err())
		return res
	}

	// 2. Status gate.
	if !task.Status.IsExecutable() {
		res.Err = newExecError(CodeTaskNotExecutable,
			fmt.Sprintf("task in status %q is not executable", task.Status), nil)
		return res
	}

	// 3. Budget gate: no RPC is issued past this point unless allowed.
	state := e.budget()
	if state.Exhausted() || !state.Allows(task.Priority) {
		res.Err = newExecError(CodeBudgetExhausted,
			fmt.Sprintf("budget level %s does not allow priority %s", state.Level, task.Priority), nil)
		return res
	}

	// 4. Skill resolution.
	skill, err := e.skills.Get(task.Skill)
	if err != nil {
		res.Err = newExecError(CodeSkillNotFound, fmt.Sprintf("skill %q", task.Skill), err)
		return res
	}

	// 5. Model selection.
	tier := e.selectModel(task, skill, state)
	res.Model = tier

	// 6. Prompt assembly.
	built := e.buildPrompt(task, skill)
	for _, warning := range built.Warnings {
		log.Warn("Prompt budget warning", "warning", warning)
	}
	for _, missing := range built.MissingInputs {
		log.Warn("Task input missing", "path", missing)
	}

	// 7. Transition to in_progress.
	if err := e.ws.UpdateTaskStatus(task.ID, models.TaskStatusInProgress); err != nil {
		res.Err = newExecError(CodeWorkspaceWriteFailed, "marking task in_progress", err)
		return res
	}
	task.Status = models.TaskStatusInProgress
	res.Status = models.TaskStatusInProgress

	// 8-11. LLM conversation: initial call, truncation recovery, tool loop.
	resp, execErr := e.converse(ctx, task, skill, built, tier, res)
	if execErr != nil {
		res.Err = execErr
		e.markFailed(task.ID, log)
		res.Status = models.TaskStatusFailed
		e.recordCost(task, tier, res)
		return res
	}
	res.Content = resp.Content

	// 12. Output persistence.
	outputPath := e.outputPath(task, skill)
	res.OutputPath = outputPath
	if err := e.ws.WriteOutput(outputPath, resp.Content); err != nil {
		res.Err = newExecError(CodeWorkspaceWriteFailed, fmt.Sprintf("writing output %s", outputPath), err)
		e.markFailed(task.ID, log)
		res.Status = models.TaskStatusFailed
		e.recordCost(task, tier, res)
		return res
	}

	// 13. Transition to completed.
	if err := e.ws.UpdateTaskStatus(task.ID, models.TaskStatusCompleted); err != nil {
		res.Err = newExecError(CodeWorkspaceWriteFailed, "marking task completed", err)
		res.Status = models.TaskStatusFailed
		e.recordCost(task, tier, res)
		return res
	}
	res.Status = models.TaskStatusCompleted

	// 14. Cost accounting.
	e.recordCost(task, tier, res)

	log.Info("Task executed",
		"model", tier,
		"input_tokens", res.InputTokens,
		"output_tokens", res.OutputTokens,
		"tool_iterations", res.ToolIterations,
		"truncated", res.Truncated,
		"output", outputPath)
	return res
}

// ExecuteOrThrow wraps Execute and raises the recorded error on failure.
func (e *Executor) ExecuteOrThrow(ctx context.Context, task *models.Task) (*Result, error) {
	res := e.Execute(ctx, task)
	if res.Failed() {
		return res, res.Err
	}
	return res, nil
}

// selectModel applies the precedence explicit override > budget override >
// squad default. Strategy and foundation skills default to opus, everyone
// else to sonnet; a squad may configure its own tier.
func (e *Executor) selectModel(task *models.Task, skill *config.SkillConfig, state budget.State) models.ModelTier {
	if task.Metadata != nil {
		if explicit := models.ModelTier(task.Metadata[MetadataModelTier]); explicit.IsValid() {
			return explicit
		}
	}
	if state.ModelOverride != "" {
		return state.ModelOverride
	}
	if skill.Squad != "" && e.squads != nil {
		if squad, err := e.squads.Get(skill.Squad); err == nil && squad.ModelTier.IsValid() {
			return squad.ModelTier
		}
	}
	if skill.Foundation || skill.Squad == string(models.SquadStrategy) {
		return models.ModelTierOpus
	}
	return models.ModelTierSonnet
}

// buildPrompt gathers workspace content and delegates to the builder.
func (e *Executor) buildPrompt(task *models.Task, skill *config.SkillConfig) *prompt.Result {
	in := prompt.Input{
		Task:           task,
		SystemPrompt:   skill.SystemPrompt,
		TokenBudget:    e.llmCfg.ContextTokenBudget,
		LearningsLimit: e.llmCfg.LearningsLimit,
	}

	if !skill.Foundation {
		if ctx, err := e.ws.ReadContext(); err == nil {
			in.ProductContext = ctx
		}
	}
	if learnings, err := e.ws.ReadLearnings(); err == nil {
		in.Learnings = learnings
	}
	if task.RevisionCount > 0 {
		if prev, err := e.ws.ReadOutput(e.outputPath(task, skill)); err == nil {
			in.PreviousOutput = prev
		}
	}
	for _, input := range task.Inputs {
		file := prompt.File{Path: input.Path}
		if data, err := e.ws.ReadFile(input.Path); err == nil {
			file.Content = string(data)
		} else {
			file.Missing = true
		}
		in.InputFiles = append(in.InputFiles, file)
	}
	for _, ref := range skill.ReferenceFiles {
		file := prompt.File{Path: ref}
		if data, err := e.ws.ReadFile(ref); err == nil {
			file.Content = string(data)
		} else {
			file.Missing = true
		}
		in.ReferenceFiles = append(in.ReferenceFiles, file)
	}
	return prompt.Build(in)
}

// converse drives the LLM conversation: the initial call, one truncation
// recovery, and the bounded tool loop. Tokens from every call accumulate
// on the result.
func (e *Executor) converse(ctx context.Context, task *models.Task, skill *config.SkillConfig, built *prompt.Result, tier models.ModelTier, res *Result) (*llm.Response, *ExecError) {
	messages := []llm.Message{{Role: llm.RoleUser, Content: built.UserMessage}}
	tools := e.toolDefinitions(task.Skill)

	resp, execErr := e.call(ctx, built.SystemPrompt, messages, tier, tools, res)
	if execErr != nil {
		return nil, execErr
	}

	// 9. Truncation recovery: one concise retry, keep the better response.
	if resp.Truncated() && ctx.Err() == nil {
		e.log.Warn("Response truncated, retrying once",
			"task_id", task.ID, "stop_reason", resp.StopReason)
		res.Retries++
		retryMessages := append(append([]llm.Message(nil), messages...),
			llm.Message{Role: llm.RoleAssistant, Content: resp.Content},
			llm.Message{Role: llm.RoleUser, Content: concisePrompt},
		)
		retry, retryErr := e.call(ctx, built.SystemPrompt, retryMessages, tier, tools, res)
		if retryErr == nil {
			if len(retry.Content) > len(resp.Content) || !retry.Truncated() {
				resp = retry
			}
		}
		res.Truncated = resp.Truncated()
	}

	// 11. Tool loop, bounded by MaxToolIterations.
	for resp.StopReason == llm.StopToolUse {
		if res.ToolIterations >= e.llmCfg.MaxToolIterations {
			return nil, newExecError(CodeToolLoopLimit,
				fmt.Sprintf("tool loop exceeded %d iterations", e.llmCfg.MaxToolIterations), nil)
		}
		res.ToolIterations++

		results := make([]llm.ContentBlock, 0, len(resp.ToolUses))
		for _, use := range resp.ToolUses {
			results = append(results, e.runToolCall(ctx, task.Skill, use))
		}
		messages = append(messages,
			llm.Message{Role: llm.RoleAssistant, Blocks: resp.Blocks},
			llm.Message{Role: llm.RoleUser, Blocks: results},
		)
		next, execErr := e.call(ctx, built.SystemPrompt, messages, tier, tools, res)
		if execErr != nil {
			return nil, execErr
		}
		resp = next
	}

	// 10. Response validation.
	if strings.TrimSpace(resp.Content) == "" {
		return nil, newExecError(CodeResponseEmpty, "model returned empty content", nil)
	}
	return resp, nil
}

// call issues one LLM request and accumulates token usage.
func (e *Executor) call(ctx context.Context, system string, messages []llm.Message, tier models.ModelTier, tools []llm.ToolDefinition, res *Result) (*llm.Response, *ExecError) {
	req := &llm.Request{
		Model:     e.llmCfg.ModelID(tier),
		System:    system,
		Messages:  messages,
		MaxTokens: e.llmCfg.MaxTokens,
		Timeout:   e.llmCfg.RequestTimeout,
		Tools:     tools,
	}
	resp, err := e.llm.CreateMessage(ctx, req)
	if err != nil {
		return nil, classifyLLMError(err)
	}
	res.InputTokens += resp.InputTokens
	res.OutputTokens += resp.OutputTokens
	return resp, nil
}

// outputPath resolves the task's deliverable location from its skill.
func (e *Executor) outputPath(task *models.Task, skill *config.SkillConfig) string {
	if task.Output.Path != "" {
		return task.Output.Path
	}
	squad := skill.Squad
	if squad != "" && e.squads != nil && !e.squads.Has(squad) {
		squad = ""
	}
	return workspace.TaskOutputPath(squad, task.Skill, task.ID, skill.Foundation)
}

// markFailed moves the task to failed, best-effort. A task that cannot be
// marked stays in its prior status and is picked up by intervention.
func (e *Executor) markFailed(taskID string, log *slog.Logger) {
	if err := e.ws.UpdateTaskStatus(taskID, models.TaskStatusFailed); err != nil {
		if !errors.Is(err, workspace.ErrIllegalTransition) {
			log.Warn("Failed to mark task failed", "error", err)
		}
	}
}

// recordCost estimates and records spend for the accumulated tokens.
func (e *Executor) recordCost(task *models.Task, tier models.ModelTier, res *Result) {
	if res.InputTokens == 0 && res.OutputTokens == 0 {
		return
	}
	cost := budget.EstimateCost(e.llmCfg.Rate(tier), res.InputTokens, res.OutputTokens)
	res.CostUSD = cost
	if e.tracker == nil {
		return
	}
	e.tracker.Record(models.CostEntry{
		Timestamp:    e.now().UTC().Format(time.RFC3339),
		TaskID:       task.ID,
		Skill:        task.Skill,
		Model:        tier,
		InputTokens:  res.InputTokens,
		OutputTokens: res.OutputTokens,
		CostUSD:      cost,
	})
}
