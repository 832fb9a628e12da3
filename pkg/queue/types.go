// Package queue dispatches tasks to workers under budget gating: a
// priority-aware adapter (memory or Redis), a manager that gates and
// falls back to disk, a worker pool, a completion router, and a
// cascading-failure tracker.
package queue

import (
	"errors"
	"time"

	"github.com/maestrohq/maestro/pkg/models"
)

var (
	// ErrQueueUnavailable indicates the backing store rejected the job
	ErrQueueUnavailable = errors.New("queue backend unavailable")

	// ErrQueueEmpty indicates no job was ready to claim
	ErrQueueEmpty = errors.New("queue empty")
)

// Job is the unit placed on the queue. The task document itself stays in
// the workspace; the job carries only what dispatch needs.
type Job struct {
	ID         string          `json:"id"`
	TaskID     string          `json:"task_id"`
	Priority   models.Priority `json:"priority"`
	GoalID     string          `json:"goal_id,omitempty"`
	PipelineID string          `json:"pipeline_id,omitempty"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	Attempts   int             `json:"attempts"`
}

// EnqueueOutcome is the manager's per-task enqueue result.
type EnqueueOutcome string

const (
	// OutcomeEnqueued means the job reached the queue backend
	OutcomeEnqueued EnqueueOutcome = "enqueued"
	// OutcomeDeferred means the budget gate held the task back
	OutcomeDeferred EnqueueOutcome = "deferred"
	// OutcomeFallback means the backend failed and the job went to disk
	OutcomeFallback EnqueueOutcome = "fallback"
)

// RoutingType is the completion router's verdict for a finished job.
type RoutingType string

const (
	// RouteComplete means the task is finalized and nothing follows
	RouteComplete RoutingType = "complete"
	// RouteEnqueueTasks means follow-up tasks should be enqueued
	RouteEnqueueTasks RoutingType = "enqueue_tasks"
	// RoutePauseCascade means the pipeline hit the failure threshold
	RoutePauseCascade RoutingType = "pause_cascade"
)

// RoutingAction is what the worker does after processing one job.
type RoutingAction struct {
	Type  RoutingType
	Tasks []*models.Task
}

// priorityOrder is the dispatch order across priority classes. Within a
// class, submission order is preserved.
var priorityOrder = []models.Priority{
	models.PriorityP0, models.PriorityP1, models.PriorityP2, models.PriorityP3,
}
