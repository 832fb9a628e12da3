package queue

import (
	"context"
	"log/slog"

	"github.com/maestrohq/maestro/pkg/agent"
	"github.com/maestrohq/maestro/pkg/director"
	"github.com/maestrohq/maestro/pkg/models"
	"github.com/maestrohq/maestro/pkg/workspace"
)

// GoalDirector is the slice of the director the router needs.
type GoalDirector interface {
	ReviewTask(ctx context.Context, taskID string) (*director.Decision, error)
	AdvanceGoal(ctx context.Context, goalID string) (*director.Advancement, error)
	CompleteGoal(goalID string) error
}

// CompletionRouter maps a completed task to what happens next: finalize,
// enqueue follow-up tasks, or escalate a failure cascade. All persistence
// happens before an action returns.
type CompletionRouter struct {
	ws       workspace.Workspace
	director GoalDirector
	log      *slog.Logger
}

// NewCompletionRouter creates a router. The director may be nil, in which
// case every task routes to complete.
func NewCompletionRouter(ws workspace.Workspace, d GoalDirector) *CompletionRouter {
	return &CompletionRouter{
		ws:       ws,
		director: d,
		log:      slog.With("component", "router"),
	}
}

// Route decides the follow-up for one successfully executed task.
func (r *CompletionRouter) Route(ctx context.Context, task *models.Task, result *agent.Result) (*RoutingAction, error) {
	log := r.log.With("task_id", task.ID, "next", task.Next.Type)

	if r.director == nil {
		return r.finalize(task, log)
	}

	switch task.Next.Type {
	case models.NextActionDirectorReview:
		decision, err := r.director.ReviewTask(ctx, task.ID)
		if err != nil {
			return nil, err
		}
		return r.fromDecision(ctx, task, decision, log)

	case models.NextActionPipelineContinue:
		if task.GoalID == "" {
			return r.finalize(task, log)
		}
		return r.advance(ctx, task.GoalID, log)

	default: // complete
		return r.finalize(task, log)
	}
}

// finalize approves the task and ends the chain.
func (r *CompletionRouter) finalize(task *models.Task, log *slog.Logger) (*RoutingAction, error) {
	if err := r.ws.UpdateTaskStatus(task.ID, models.TaskStatusApproved); err != nil {
		log.Warn("Failed to approve completed task", "error", err)
	}
	return &RoutingAction{Type: RouteComplete}, nil
}

// fromDecision translates a director decision into a routing action.
func (r *CompletionRouter) fromDecision(ctx context.Context, task *models.Task, decision *director.Decision, log *slog.Logger) (*RoutingAction, error) {
	switch decision.Action {
	case director.ActionRevise, director.ActionRejectReassign:
		log.Info("Routing follow-up tasks", "action", decision.Action, "count", len(decision.NextTasks))
		return &RoutingAction{Type: RouteEnqueueTasks, Tasks: decision.NextTasks}, nil

	case director.ActionPipelineNext:
		return r.advance(ctx, task.GoalID, log)

	case director.ActionGoalComplete:
		if err := r.director.CompleteGoal(task.GoalID); err != nil {
			log.Warn("Goal completion failed", "goal_id", task.GoalID, "error", err)
		}
		return &RoutingAction{Type: RouteComplete}, nil

	case director.ActionEscalateHuman:
		log.Warn("Task escalated to human", "reason", decision.Escalation)
		return &RoutingAction{Type: RouteComplete}, nil

	default: // approve
		return &RoutingAction{Type: RouteComplete}, nil
	}
}

// advance asks the director for the goal's next phase.
func (r *CompletionRouter) advance(ctx context.Context, goalID string, log *slog.Logger) (*RoutingAction, error) {
	adv, err := r.director.AdvanceGoal(ctx, goalID)
	if err != nil {
		return nil, err
	}
	if adv.Complete {
		log.Info("Goal complete", "goal_id", goalID)
		return &RoutingAction{Type: RouteComplete}, nil
	}
	if adv.InFlight || len(adv.Tasks) == 0 {
		return &RoutingAction{Type: RouteComplete}, nil
	}
	log.Info("Goal advanced", "goal_id", goalID, "phase", adv.PhaseIndex, "tasks", len(adv.Tasks))
	return &RoutingAction{Type: RouteEnqueueTasks, Tasks: adv.Tasks}, nil
}
