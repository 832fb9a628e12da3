package director

import (
	"context"
	"time"

	"github.com/maestrohq/maestro/pkg/models"
	"github.com/maestrohq/maestro/pkg/review"
)

// Advancement is the outcome of one AdvanceGoal call.
type Advancement struct {
	// Complete is true when every phase is fully approved.
	Complete bool

	// InFlight is true when the next phase already has live tasks, so
	// nothing new was materialized.
	InFlight bool

	// PhaseIndex is the materialized phase, meaningful when Tasks is set.
	PhaseIndex int

	// Tasks are the newly materialized next-phase tasks.
	Tasks []*models.Task
}

// AdvanceGoal computes the goal's next phase from approved-task counts
// and materializes it, seeding the new tasks' inputs with the approved
// tasks' output paths. Returns Complete when every phase is consumed.
func (d *Director) AdvanceGoal(ctx context.Context, goalID string) (*Advancement, error) {
	goal, err := d.ws.ReadGoal(goalID)
	if err != nil {
		return nil, err
	}
	plan, err := d.ws.ReadGoalPlan(goalID)
	if err != nil {
		return nil, err
	}

	next, complete, err := d.nextPhase(goalID, plan, "")
	if err != nil {
		return nil, err
	}
	if complete {
		if err := d.CompleteGoal(goalID); err != nil {
			d.log.Warn("Goal completion bookkeeping failed", "goal_id", goalID, "error", err)
		}
		return &Advancement{Complete: true}, nil
	}

	tasks, err := d.goalTasks(goalID)
	if err != nil {
		return nil, err
	}

	// Overlap guard: never double-materialize a phase whose tasks are
	// still live.
	phaseSkills := make(map[string]bool, len(plan.Phases[next].Skills))
	for _, skill := range plan.Phases[next].Skills {
		phaseSkills[skill] = true
	}
	for _, task := range tasks {
		if phaseSkills[task.Skill] && taskLive(task.Status) {
			d.log.Debug("Next phase still in flight", "goal_id", goalID,
				"phase", next, "task_id", task.ID)
			return &Advancement{InFlight: true, PhaseIndex: next}, nil
		}
	}

	inputs := d.approvedOutputPaths(tasks)
	materialized, err := d.MaterializePhase(ctx, goal, plan, next, inputs)
	if err != nil {
		return nil, err
	}
	return &Advancement{PhaseIndex: next, Tasks: materialized}, nil
}

// nextPhase walks the plan's phases against approved-task counts and
// returns the first phase not yet fully approved, or complete=true when
// every phase is consumed. extraApproved, when non-empty, names a task
// counted as approved before its status write lands.
func (d *Director) nextPhase(goalID string, plan *models.GoalPlan, extraApproved string) (int, bool, error) {
	tasks, err := d.goalTasks(goalID)
	if err != nil {
		return 0, false, err
	}
	counts := make(map[string]int)
	for _, task := range tasks {
		if task.Status == models.TaskStatusApproved || task.ID == extraApproved {
			counts[task.Skill]++
		}
	}

	if d.cfg.StrictOrder() {
		// Approvals are consumed phase-by-phase, so a skill recurring in
		// a later phase needs a fresh approval for it.
		for i, phase := range plan.Phases {
			for _, skill := range phase.Skills {
				if counts[skill] == 0 {
					return i, false, nil
				}
				counts[skill]--
			}
		}
		return 0, true, nil
	}

	// Relaxed ordering: one approval per skill satisfies every phase
	// naming it.
	for i, phase := range plan.Phases {
		for _, skill := range phase.Skills {
			if counts[skill] == 0 {
				return i, false, nil
			}
		}
	}
	return 0, true, nil
}

func (d *Director) goalTasks(goalID string) ([]*models.Task, error) {
	all, err := d.ws.ListTasks()
	if err != nil {
		return nil, err
	}
	var tasks []*models.Task
	for _, task := range all {
		if task.GoalID == goalID {
			tasks = append(tasks, task)
		}
	}
	return tasks, nil
}

// taskLive reports whether a task may still produce an approval.
func taskLive(s models.TaskStatus) bool {
	switch s {
	case models.TaskStatusPending, models.TaskStatusAssigned,
		models.TaskStatusInProgress, models.TaskStatusCompleted,
		models.TaskStatusRevision:
		return true
	default:
		return false
	}
}

// approvedOutputPaths collects where approved tasks wrote their
// deliverables. Tasks persisted before execution may lack an explicit
// output path, in which case the deterministic squad/skill path applies.
func (d *Director) approvedOutputPaths(tasks []*models.Task) []string {
	var paths []string
	for _, task := range tasks {
		if task.Status != models.TaskStatusApproved {
			continue
		}
		path := task.Output.Path
		if path == "" {
			path = d.defaultOutputPath(task)
		}
		paths = append(paths, path)
	}
	return paths
}

func reviewDoc(taskID string, eval *review.Evaluation, now time.Time) *models.Review {
	return review.NewReview(taskID, ReviewerName, eval, now)
}
