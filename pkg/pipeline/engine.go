package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/maestrohq/maestro/pkg/models"
	"github.com/maestrohq/maestro/pkg/workspace"
)

// ErrorCode classifies engine-level failures.
type ErrorCode string

const (
	CodeNoSteps      ErrorCode = "NO_STEPS"
	CodeNotStartable ErrorCode = "NOT_STARTABLE"
	CodeBadStep      ErrorCode = "BAD_STEP"
	CodeStepFailed   ErrorCode = "STEP_FAILED"
	CodeCancelled    ErrorCode = "CANCELLED"
	CodePersistence  ErrorCode = "PERSISTENCE"
	CodePanic        ErrorCode = "PANIC"
)

// EngineError is a typed pipeline failure, returned inside results.
type EngineError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

func (e *EngineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *EngineError) Unwrap() error { return e.Cause }

func newEngineError(code ErrorCode, message string, cause error) *EngineError {
	return &EngineError{Code: code, Message: message, Cause: cause}
}

// StepResult records one executed step of a run.
type StepResult struct {
	Index       int
	Type        models.StepType
	TaskIDs     []string
	OutputPaths []string
	Paused      bool
	Failed      bool
}

// RunResult is the outcome of one engine invocation. Err is nil unless
// Status is failed or cancelled.
type RunResult struct {
	RunID       string
	Status      models.RunStatus
	Steps       []StepResult
	OutputPaths []string
	Err         *EngineError
}

// Paused reports whether the run stopped at a review step.
func (r *RunResult) Paused() bool {
	return r.Status == models.RunStatusPaused
}

// Options tune one engine invocation.
type Options struct {
	// InitialInputPaths seed the first executed step's inputs. Required
	// to carry prior outputs across a resume; optional otherwise.
	InitialInputPaths []string

	// GoalText is threaded into every materialized task.
	GoalText string

	// Priority for materialized tasks.
	Priority models.Priority
}

// Engine drives one pipeline run through its steps. It never throws:
// unexpected panics are captured as typed errors on the result.
type Engine struct {
	runner         Runner
	factory        *Factory
	ws             workspace.Workspace
	maxConcurrency int
	log            *slog.Logger
	now            func() time.Time
}

// EngineOption configures the engine.
type EngineOption func(*Engine)

// WithMaxConcurrency caps parallel-step fan-out. Defaults to 3.
func WithMaxConcurrency(n int) EngineOption {
	return func(e *Engine) { e.maxConcurrency = n }
}

// WithEngineClock injects a clock for tests.
func WithEngineClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates a pipeline engine.
func NewEngine(runner Runner, factory *Factory, ws workspace.Workspace, opts ...EngineOption) *Engine {
	e := &Engine{
		runner:         runner,
		factory:        factory,
		ws:             ws,
		maxConcurrency: 3,
		log:            slog.With("component", "pipeline"),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewRun creates a pending run for a definition.
func (e *Engine) NewRun(def *models.PipelineDefinition, goalID string) *models.PipelineRun {
	now := e.now().UTC()
	return &models.PipelineRun{
		ID:           models.NewIDAt("pipe", now),
		DefinitionID: def.ID,
		GoalID:       goalID,
		Status:       models.RunStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Execute runs the definition from the run's current position. Pending
// runs start at step zero; paused runs resume one past the pause point,
// seeded with opts.InitialInputPaths. The run document is persisted on
// every state change.
func (e *Engine) Execute(ctx context.Context, def *models.PipelineDefinition, run *models.PipelineRun, opts Options) (res *RunResult) {
	res = &RunResult{RunID: run.ID, Status: run.Status}
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("Pipeline panic recovered", "run_id", run.ID, "panic", r)
			res.Err = newEngineError(CodePanic, fmt.Sprintf("panic: %v", r), nil)
			res.Status = models.RunStatusFailed
			e.transition(run, models.RunStatusFailed)
		}
	}()

	log := e.log.With("run_id", run.ID, "pipeline", def.ID)

	if len(def.Steps) == 0 {
		res.Err = newEngineError(CodeNoSteps, "pipeline has no steps", nil)
		res.Status = models.RunStatusFailed
		e.transition(run, models.RunStatusFailed)
		return res
	}

	start := 0
	switch run.Status {
	case models.RunStatusPending:
	case models.RunStatusPaused:
		// Resume skips the review step the run paused at.
		start = run.CurrentStep + 1
	default:
		res.Err = newEngineError(CodeNotStartable,
			fmt.Sprintf("run in status %q cannot start", run.Status), nil)
		return res
	}

	if err := e.transition(run, models.RunStatusRunning); err != nil {
		res.Err = newEngineError(CodePersistence, "persisting running status", err)
		res.Status = models.RunStatusFailed
		return res
	}
	res.Status = models.RunStatusRunning
	log.Info("Pipeline run started", "from_step", start, "steps", len(def.Steps))

	inputs := append([]string(nil), opts.InitialInputPaths...)

	for i := start; i < len(def.Steps); i++ {
		if ctx.Err() != nil {
			res.Err = newEngineError(CodeCancelled, "run cancelled between steps", ctx.Err())
			res.Status = models.RunStatusCancelled
			e.transition(run, models.RunStatusCancelled)
			return res
		}

		step := def.Steps[i]
		run.CurrentStep = i

		switch step.Type {
		case models.StepTypeReview:
			res.Steps = append(res.Steps, StepResult{Index: i, Type: step.Type, Paused: true})
			res.Status = models.RunStatusPaused
			if err := e.transition(run, models.RunStatusPaused); err != nil {
				res.Err = newEngineError(CodePersistence, "persisting paused status", err)
				res.Status = models.RunStatusFailed
				return res
			}
			log.Info("Pipeline paused for review", "step", i, "reviewer", step.Reviewer)
			return res

		case models.StepTypeSequential, models.StepTypeParallel:
			stepRes, engErr := e.runStep(ctx, run, step, i, inputs, opts)
			res.Steps = append(res.Steps, *stepRes)
			if engErr != nil {
				res.Err = engErr
				if engErr.Code == CodeCancelled {
					res.Status = models.RunStatusCancelled
					e.transition(run, models.RunStatusCancelled)
				} else {
					res.Status = models.RunStatusFailed
					e.transition(run, models.RunStatusFailed)
				}
				return res
			}
			// Output wiring: this step's outputs feed the next step.
			inputs = stepRes.OutputPaths
			res.OutputPaths = stepRes.OutputPaths

		default:
			res.Err = newEngineError(CodeBadStep,
				fmt.Sprintf("step %d has unknown type %q", i, step.Type), nil)
			res.Status = models.RunStatusFailed
			e.transition(run, models.RunStatusFailed)
			return res
		}
	}

	res.Status = models.RunStatusCompleted
	if err := e.transition(run, models.RunStatusCompleted); err != nil {
		res.Err = newEngineError(CodePersistence, "persisting completed status", err)
		res.Status = models.RunStatusFailed
		return res
	}
	log.Info("Pipeline run completed", "steps", len(res.Steps))
	return res
}

// runStep materializes and executes one sequential or parallel step.
func (e *Engine) runStep(ctx context.Context, run *models.PipelineRun, step models.PipelineStep, index int, inputs []string, opts Options) (*StepResult, *EngineError) {
	stepRes := &StepResult{Index: index, Type: step.Type}

	tasks := e.factory.NewStepTasks(step, TaskSpec{
		GoalID:     run.GoalID,
		GoalText:   opts.GoalText,
		PipelineID: run.ID,
		Priority:   opts.Priority,
		InputPaths: inputs,
	})
	if len(tasks) == 0 {
		return stepRes, newEngineError(CodeBadStep,
			fmt.Sprintf("step %d materialized no tasks", index), nil)
	}

	for _, task := range tasks {
		if err := e.ws.WriteTask(task); err != nil {
			return stepRes, newEngineError(CodePersistence,
				fmt.Sprintf("persisting task %s", task.ID), err)
		}
		run.TaskIDs = append(run.TaskIDs, task.ID)
		stepRes.TaskIDs = append(stepRes.TaskIDs, task.ID)
	}
	if err := e.persistRun(run); err != nil {
		return stepRes, newEngineError(CodePersistence, "persisting run", err)
	}

	fanout := runParallel(ctx, tasks, e.maxConcurrency, e.runner)
	for _, outcome := range fanout.Outcomes {
		if outcome.Result != nil && outcome.Result.OutputPath != "" {
			stepRes.OutputPaths = append(stepRes.OutputPaths, outcome.Result.OutputPath)
		}
	}

	if fanout.Aborted {
		return stepRes, newEngineError(CodeCancelled,
			fmt.Sprintf("step %d aborted", index), ctx.Err())
	}
	if fanout.Failed() {
		stepRes.Failed = true
		failed := fanout.Outcomes[fanout.FirstFailureIndex]
		return stepRes, newEngineError(CodeStepFailed,
			fmt.Sprintf("step %d task %s failed", index, failed.Task.ID), failed.Result.Err)
	}
	return stepRes, nil
}

// transition updates and persists the run status. Failures to persist a
// terminal status are logged, not propagated; the in-memory run is the
// source of truth for the caller.
func (e *Engine) transition(run *models.PipelineRun, status models.RunStatus) error {
	run.Status = status
	run.UpdatedAt = e.now().UTC()
	if err := e.persistRun(run); err != nil {
		e.log.Warn("Failed to persist run status",
			"run_id", run.ID, "status", status, "error", err)
		return err
	}
	return nil
}

func (e *Engine) persistRun(run *models.PipelineRun) error {
	return e.ws.WritePipelineRun(run)
}
