package queue

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/maestrohq/maestro/pkg/agent"
	"github.com/maestrohq/maestro/pkg/budget"
	"github.com/maestrohq/maestro/pkg/config"
	"github.com/maestrohq/maestro/pkg/metrics"
	"github.com/maestrohq/maestro/pkg/models"
	"github.com/maestrohq/maestro/pkg/workspace"
)

// WorkerStatus represents the current state of a worker.
type WorkerStatus string

// Worker status constants.
const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusWorking WorkerStatus = "working"
)

// Runner executes one task. Satisfied by *agent.Executor.
type Runner interface {
	Execute(ctx context.Context, task *models.Task) *agent.Result
}

// WorkerHealth is one worker's health snapshot.
type WorkerHealth struct {
	ID            string       `json:"id"`
	Status        WorkerStatus `json:"status"`
	CurrentTaskID string       `json:"current_task_id,omitempty"`
	JobsProcessed int          `json:"jobs_processed"`
	LastActivity  time.Time    `json:"last_activity"`
}

// Worker polls the queue and processes one job at a time: budget check,
// execute, route, re-enqueue follow-ups. A single bad job never crashes
// the worker.
type Worker struct {
	id       string
	adapter  Adapter
	manager  *Manager
	ws       workspace.Workspace
	runner   Runner
	router   *CompletionRouter
	failures *FailureTracker
	budget   budget.StateFunc
	cfg      *config.QueueConfig
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu            sync.RWMutex
	status        WorkerStatus
	currentTaskID string
	jobsProcessed int
	lastActivity  time.Time
}

// NewWorker creates a queue worker.
func NewWorker(id string, adapter Adapter, manager *Manager, ws workspace.Workspace, runner Runner, router *CompletionRouter, failures *FailureTracker, budgetFn budget.StateFunc, cfg *config.QueueConfig) *Worker {
	return &Worker{
		id:           id,
		adapter:      adapter,
		manager:      manager,
		ws:           ws,
		runner:       runner,
		router:       router,
		failures:     failures,
		budget:       budgetFn,
		cfg:          cfg,
		stopCh:       make(chan struct{}),
		status:       WorkerStatusIdle,
		lastActivity: time.Now(),
	}
}

// Start begins the worker polling loop in a goroutine.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop signals the worker to stop and waits for it to finish its current
// job. Safe to call multiple times.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
}

// Health returns the worker's health snapshot.
func (w *Worker) Health() WorkerHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return WorkerHealth{
		ID:            w.id,
		Status:        w.status,
		CurrentTaskID: w.currentTaskID,
		JobsProcessed: w.jobsProcessed,
		LastActivity:  w.lastActivity,
	}
}

// run is the main polling loop.
func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	log := slog.With("component", "queue", "worker_id", w.id)
	log.Info("Worker started")

	for {
		select {
		case <-w.stopCh:
			log.Info("Worker shutting down")
			return
		case <-ctx.Done():
			log.Info("Context cancelled, worker shutting down")
			return
		default:
			processed := w.pollAndProcess(ctx, log)
			if !processed {
				w.sleep(ctx)
			}
		}
	}
}

// sleep waits the jittered poll interval or until shutdown.
func (w *Worker) sleep(ctx context.Context) {
	interval := w.cfg.PollInterval
	if j := w.cfg.PollIntervalJitter; j > 0 {
		interval += time.Duration(rand.Int64N(int64(2*j))) - j
	}
	timer := time.NewTimer(interval)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-w.stopCh:
	case <-ctx.Done():
	}
}

// pollAndProcess claims and processes at most one job. Returns false when
// the queue was empty so the loop backs off.
func (w *Worker) pollAndProcess(ctx context.Context, log *slog.Logger) bool {
	job, err := w.adapter.Claim(ctx)
	if errors.Is(err, ErrQueueEmpty) {
		return false
	}
	if err != nil {
		log.Warn("Queue claim failed", "error", err)
		return false
	}

	w.setWorking(job.TaskID)
	defer w.setIdle()

	w.process(ctx, job, log.With("job_id", job.ID, "task_id", job.TaskID))
	return true
}

// process runs one claimed job end to end. Every claimed job counts as
// processed, whatever its outcome.
func (w *Worker) process(ctx context.Context, job *Job, log *slog.Logger) {
	w.mu.Lock()
	w.jobsProcessed++
	w.mu.Unlock()

	task, err := w.ws.ReadTask(job.TaskID)
	if err != nil {
		log.Warn("Claimed job references unreadable task, dropping", "error", err)
		return
	}

	// Budget re-check at execution time: the state may have degraded
	// since enqueue.
	state := w.budget()
	if state.Exhausted() || !state.Allows(task.Priority) {
		log.Info("Budget degraded since enqueue, deferring task",
			"level", state.Level, "priority", task.Priority)
		status := models.TaskStatusDeferred
		if state.Exhausted() {
			status = models.TaskStatusBlocked
		}
		if err := w.ws.UpdateTaskStatus(task.ID, status); err != nil {
			log.Warn("Failed to defer task", "error", err)
		}
		return
	}

	execCtx := ctx
	if w.cfg.TaskTimeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, w.cfg.TaskTimeout)
		defer cancel()
	}

	result := w.runner.Execute(execCtx, task)

	metrics.TasksExecuted.WithLabelValues(task.Skill, string(result.Status)).Inc()
	metrics.TokensUsed.WithLabelValues("input").Add(float64(result.InputTokens))
	metrics.TokensUsed.WithLabelValues("output").Add(float64(result.OutputTokens))

	if result.Failed() {
		w.handleFailure(task, result, log)
		return
	}
	w.failures.RecordSuccess(task.PipelineID)

	// Persist where the output landed so downstream phases can wire it
	// as an input.
	if result.OutputPath != "" && task.Output.Path == "" {
		task.Output.Path = result.OutputPath
		task.Status = result.Status
		if err := w.ws.WriteTask(task); err != nil {
			log.Warn("Failed to record task output path", "error", err)
		}
	}

	action, err := w.router.Route(ctx, task, result)
	if err != nil {
		log.Warn("Completion routing failed", "error", err)
		return
	}

	switch action.Type {
	case RouteEnqueueTasks:
		for _, next := range action.Tasks {
			if _, err := w.manager.Enqueue(ctx, next); err != nil {
				log.Warn("Failed to enqueue follow-up task", "next_task_id", next.ID, "error", err)
			}
		}
	case RoutePauseCascade:
		w.pausePipeline(task.PipelineID, log)
	}
}

// handleFailure records the failure and pauses the pipeline when the
// consecutive-failure threshold is reached.
func (w *Worker) handleFailure(task *models.Task, result *agent.Result, log *slog.Logger) {
	code := agent.CodeUnknown
	if result.Err != nil {
		code = result.Err.Code
	}
	log.Warn("Task execution failed", "code", code)

	// Budget and gating failures are not pipeline health signals.
	if code == agent.CodeBudgetExhausted || code == agent.CodeTaskNotExecutable {
		return
	}

	count := w.failures.RecordFailure(task.PipelineID)
	if w.failures.ShouldPause(task.PipelineID) {
		log.Error("Cascading failures detected, pausing pipeline",
			"pipeline_id", task.PipelineID, "consecutive_failures", count)
		w.pausePipeline(task.PipelineID, log)
	}
}

// pausePipeline transitions the run to paused so no further phases start
// until an operator intervenes.
func (w *Worker) pausePipeline(pipelineID string, log *slog.Logger) {
	if pipelineID == "" {
		return
	}
	run, err := w.ws.ReadPipelineRun(pipelineID)
	if err != nil {
		log.Warn("Failed to load pipeline run for pause", "pipeline_id", pipelineID, "error", err)
		return
	}
	if run.Status.IsTerminal() || run.Status == models.RunStatusPaused {
		return
	}
	run.Status = models.RunStatusPaused
	run.UpdatedAt = time.Now().UTC()
	if err := w.ws.WritePipelineRun(run); err != nil {
		log.Warn("Failed to pause pipeline run", "pipeline_id", pipelineID, "error", err)
	}
}

func (w *Worker) setWorking(taskID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = WorkerStatusWorking
	w.currentTaskID = taskID
	w.lastActivity = time.Now()
}

func (w *Worker) setIdle() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = WorkerStatusIdle
	w.currentTaskID = ""
	w.lastActivity = time.Now()
}
