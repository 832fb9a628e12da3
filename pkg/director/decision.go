package director

import (
	"context"
	"fmt"

	"github.com/maestrohq/maestro/pkg/models"
	"github.com/maestrohq/maestro/pkg/pipeline"
	"github.com/maestrohq/maestro/pkg/workspace"
)

// DecisionAction is what the director decided to do with a reviewed task.
type DecisionAction string

const (
	ActionApprove        DecisionAction = "approve"
	ActionRevise         DecisionAction = "revise"
	ActionRejectReassign DecisionAction = "reject_reassign"
	ActionEscalateHuman  DecisionAction = "escalate_human"
	ActionPipelineNext   DecisionAction = "pipeline_next"
	ActionGoalComplete   DecisionAction = "goal_complete"
	ActionGoalIterate    DecisionAction = "goal_iterate"
)

// actionStatus maps a decision action to the reviewed task's new status.
var actionStatus = map[DecisionAction]models.TaskStatus{
	ActionApprove:        models.TaskStatusApproved,
	ActionPipelineNext:   models.TaskStatusApproved,
	ActionGoalComplete:   models.TaskStatusApproved,
	ActionGoalIterate:    models.TaskStatusApproved,
	ActionRevise:         models.TaskStatusRevision,
	ActionRejectReassign: models.TaskStatusFailed,
	ActionEscalateHuman:  models.TaskStatusBlocked,
}

// Decision is the director's full review outcome. Reviews, next tasks,
// and learnings are already persisted when a decision returns.
type Decision struct {
	Action     DecisionAction
	Review     *models.Review
	NextTasks  []*models.Task
	Learning   *models.Learning
	Escalation string
	Reasoning  string
}

// ReviewTask reads a completed task's output, scores it, and decides what
// happens next. All persistence (review document, status update, revision
// or reassignment tasks, learning entry) happens before the decision
// returns.
func (d *Director) ReviewTask(ctx context.Context, taskID string) (*Decision, error) {
	task, err := d.ws.ReadTask(taskID)
	if err != nil {
		return nil, err
	}
	outputPath := task.Output.Path
	if outputPath == "" {
		outputPath = d.defaultOutputPath(task)
	}
	content, err := d.ws.ReadOutput(outputPath)
	if err != nil {
		return nil, fmt.Errorf("%w: task %s at %s: %v", ErrNoOutput, taskID, outputPath, err)
	}

	eval := d.reviews.Evaluate(ctx, content)
	now := d.now().UTC()
	rev := reviewDoc(taskID, eval, now)
	decision := &Decision{Review: rev}

	switch eval.Verdict {
	case models.VerdictApprove:
		decision.Action = d.approveAction(task)
		decision.Reasoning = fmt.Sprintf("weighted score %.1f meets the bar", eval.WeightedScore)
	case models.VerdictRevise:
		if task.RevisionCount >= d.cfg.MaxRevisions {
			decision.Action = ActionEscalateHuman
			decision.Escalation = fmt.Sprintf("task %s still needs revision after %d attempts", taskID, task.RevisionCount)
			decision.Reasoning = "revision budget spent, needs a human"
		} else {
			decision.Action = ActionRevise
			decision.Reasoning = fmt.Sprintf("weighted score %.1f below the approve bar", eval.WeightedScore)
		}
	case models.VerdictReject:
		if task.RevisionCount >= d.cfg.MaxRevisions {
			decision.Action = ActionEscalateHuman
			decision.Escalation = fmt.Sprintf("task %s rejected after %d attempts", taskID, task.RevisionCount)
			decision.Reasoning = "repeated rejection, needs a human"
		} else {
			decision.Action = ActionRejectReassign
			decision.Reasoning = "output rejected, reassigning fresh"
		}
	}

	if err := d.ws.WriteReview(rev); err != nil {
		d.log.Warn("Failed to persist review", "task_id", taskID, "error", err)
	}

	switch decision.Action {
	case ActionRevise:
		revised := task.Clone()
		revised.Status = models.TaskStatusRevision
		revised.RevisionCount++
		revised.UpdatedAt = now
		if err := d.ws.WriteTask(revised); err != nil {
			return nil, fmt.Errorf("persisting revision task: %w", err)
		}
		decision.NextTasks = []*models.Task{revised}
	case ActionRejectReassign:
		replacement := d.factory.NewTask(pipeline.TaskSpec{
			Skill:      task.Skill,
			GoalID:     task.GoalID,
			GoalText:   task.Goal,
			PipelineID: task.PipelineID,
			Priority:   task.Priority,
			InputPaths: inputPaths(task),
			Next:       task.Next.Type,
		})
		if err := d.ws.WriteTask(replacement); err != nil {
			return nil, fmt.Errorf("persisting replacement task: %w", err)
		}
		decision.NextTasks = []*models.Task{replacement}
		if err := d.ws.UpdateTaskStatus(taskID, models.TaskStatusFailed); err != nil {
			d.log.Warn("Failed to mark rejected task", "task_id", taskID, "error", err)
		}
	default:
		status := actionStatus[decision.Action]
		if err := d.ws.UpdateTaskStatus(taskID, status); err != nil {
			d.log.Warn("Failed to update reviewed task status",
				"task_id", taskID, "status", status, "error", err)
		}
	}

	decision.Learning = d.recordLearning(task, decision, eval.WeightedScore)

	d.log.Info("Task reviewed", "task_id", taskID, "verdict", eval.Verdict,
		"action", decision.Action, "score", fmt.Sprintf("%.1f", eval.WeightedScore))
	return decision, nil
}

// approveAction refines a plain approval by goal context: a goal with
// remaining phases advances, a fully approved goal completes.
func (d *Director) approveAction(task *models.Task) DecisionAction {
	if task.GoalID == "" {
		return ActionApprove
	}
	plan, err := d.ws.ReadGoalPlan(task.GoalID)
	if err != nil {
		return ActionApprove
	}
	next, done, err := d.nextPhase(task.GoalID, plan, task.ID)
	if err != nil {
		d.log.Warn("Phase lookup failed during review", "goal_id", task.GoalID, "error", err)
		return ActionApprove
	}
	if done {
		return ActionGoalComplete
	}
	_ = next
	return ActionPipelineNext
}

func (d *Director) defaultOutputPath(task *models.Task) string {
	squad := d.skills.SquadOf(task.Skill)
	return workspace.TaskOutputPath(squad, task.Skill, task.ID, d.skills.IsFoundation(task.Skill))
}

func (d *Director) recordLearning(task *models.Task, decision *Decision, score float64) *models.Learning {
	outcome := "approved"
	action := string(decision.Action)
	switch decision.Action {
	case ActionRevise:
		outcome = "revision_requested"
	case ActionRejectReassign:
		outcome = "rejected"
	case ActionEscalateHuman:
		outcome = "escalated"
	}
	learning := models.Learning{
		Timestamp:   d.now().UTC(),
		Agent:       task.Skill,
		GoalID:      task.GoalID,
		Outcome:     outcome,
		Learning:    fmt.Sprintf("%s output scored %.1f for goal %q", task.Skill, score, firstLine(task.Goal)),
		ActionTaken: action,
	}
	if err := d.ws.AppendLearning(learning); err != nil {
		d.log.Warn("Failed to append learning", "task_id", task.ID, "error", err)
		return nil
	}
	return &learning
}

func inputPaths(task *models.Task) []string {
	paths := make([]string, 0, len(task.Inputs))
	for _, in := range task.Inputs {
		paths = append(paths, in.Path)
	}
	return paths
}
