package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/maestrohq/maestro/pkg/budget"
	"github.com/maestrohq/maestro/pkg/config"
	"github.com/maestrohq/maestro/pkg/models"
	"github.com/maestrohq/maestro/pkg/workspace"
)

// Manager gates enqueues by budget state and falls back to disk when the
// backend is unavailable.
type Manager struct {
	adapter Adapter
	ws      workspace.Workspace
	budget  budget.StateFunc
	cfg     *config.QueueConfig
	log     *slog.Logger
	now     func() time.Time
}

// NewManager creates a queue manager.
func NewManager(adapter Adapter, ws workspace.Workspace, budgetFn budget.StateFunc, cfg *config.QueueConfig, clock func() time.Time) *Manager {
	if clock == nil {
		clock = time.Now
	}
	return &Manager{
		adapter: adapter,
		ws:      ws,
		budget:  budgetFn,
		cfg:     cfg,
		log:     slog.With("component", "queue"),
		now:     clock,
	}
}

// Enqueue submits one task for dispatch. The budget gate runs first: at
// exhausted the task is blocked, at lower levels a disallowed priority is
// deferred; in both cases nothing reaches the queue. Backend failures
// persist the job under the fallback directory instead of dropping it.
func (m *Manager) Enqueue(ctx context.Context, task *models.Task) (EnqueueOutcome, error) {
	state := m.budget()
	if state.Exhausted() {
		m.holdTask(task, models.TaskStatusBlocked)
		m.log.Info("Task blocked by exhausted budget", "task_id", task.ID, "priority", task.Priority)
		return OutcomeDeferred, nil
	}
	if !state.Allows(task.Priority) {
		m.holdTask(task, models.TaskStatusDeferred)
		m.log.Info("Task deferred by budget level", "task_id", task.ID,
			"priority", task.Priority, "level", state.Level)
		return OutcomeDeferred, nil
	}

	job := &Job{
		ID:         models.NewIDAt("job", m.now().UTC()),
		TaskID:     task.ID,
		Priority:   task.Priority,
		GoalID:     task.GoalID,
		PipelineID: task.PipelineID,
		EnqueuedAt: m.now().UTC(),
	}
	if err := m.adapter.Submit(ctx, job); err != nil {
		m.log.Warn("Queue backend rejected job, writing fallback",
			"task_id", task.ID, "error", err)
		if ferr := m.writeFallback(job); ferr != nil {
			return OutcomeFallback, fmt.Errorf("fallback persistence for task %s: %w", task.ID, ferr)
		}
		return OutcomeFallback, nil
	}

	if err := m.ws.UpdateTaskStatus(task.ID, models.TaskStatusAssigned); err != nil {
		m.log.Warn("Failed to mark task assigned", "task_id", task.ID, "error", err)
	}
	return OutcomeEnqueued, nil
}

// Dispatch satisfies the director's dispatcher contract: enqueue each
// task, surfacing only hard fallback-persistence failures.
func (m *Manager) Dispatch(ctx context.Context, tasks []*models.Task) error {
	for _, task := range tasks {
		if _, err := m.Enqueue(ctx, task); err != nil {
			return err
		}
	}
	return nil
}

// Depth reports queued jobs for health and status surfaces.
func (m *Manager) Depth(ctx context.Context) (int, error) {
	return m.adapter.Depth(ctx)
}

// Ping checks the backend for health probes.
func (m *Manager) Ping(ctx context.Context) error {
	return m.adapter.Ping(ctx)
}

// RecoverFallback resubmits jobs persisted under the fallback directory.
// Jobs that submit cleanly are removed from disk.
func (m *Manager) RecoverFallback(ctx context.Context) (int, error) {
	dir := m.cfg.FallbackDir
	names, err := m.ws.ListDir(dir)
	if err != nil {
		return 0, err
	}
	recovered := 0
	for _, name := range names {
		rel := path.Join(dir, name)
		data, err := m.ws.ReadFile(rel)
		if err != nil {
			m.log.Warn("Unreadable fallback job", "path", rel, "error", err)
			continue
		}
		var job Job
		if err := json.Unmarshal(data, &job); err != nil {
			m.log.Warn("Malformed fallback job", "path", rel, "error", err)
			continue
		}
		job.Attempts++
		if err := m.adapter.Submit(ctx, &job); err != nil {
			return recovered, fmt.Errorf("resubmitting fallback job %s: %w", job.ID, err)
		}
		if err := m.ws.RemoveFile(rel); err != nil {
			m.log.Warn("Failed to remove recovered fallback job", "path", rel, "error", err)
		}
		recovered++
	}
	if recovered > 0 {
		m.log.Info("Recovered fallback jobs", "count", recovered)
	}
	return recovered, nil
}

// holdTask updates a gated task's status, best-effort.
func (m *Manager) holdTask(task *models.Task, status models.TaskStatus) {
	if err := m.ws.UpdateTaskStatus(task.ID, status); err != nil {
		m.log.Warn("Failed to update gated task status",
			"task_id", task.ID, "status", status, "error", err)
	}
}

func (m *Manager) writeFallback(job *Job) error {
	data, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return err
	}
	return m.ws.WriteFile(path.Join(m.cfg.FallbackDir, job.ID+".json"), data)
}
