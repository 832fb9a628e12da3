package pipeline

import (
	"fmt"
	"time"

	"github.com/maestrohq/maestro/pkg/config"
	"github.com/maestrohq/maestro/pkg/models"
)

// Factory materializes tasks for pipeline steps and goal phases. Output
// paths are left empty so the executor derives them from squad and skill.
type Factory struct {
	skills *config.SkillRegistry
	now    func() time.Time
}

// NewFactory creates a task factory.
func NewFactory(skills *config.SkillRegistry, clock func() time.Time) *Factory {
	if clock == nil {
		clock = time.Now
	}
	return &Factory{skills: skills, now: clock}
}

// TaskSpec carries the per-task parameters of one materialization.
type TaskSpec struct {
	Skill      string
	GoalID     string
	GoalText   string
	PipelineID string
	Priority   models.Priority
	InputPaths []string
	Next       models.NextActionType
}

// NewTask builds a pending task for one skill. Requirements are derived
// from the goal text and the skill's declared purpose; input paths become
// task inputs read at prompt time.
func (f *Factory) NewTask(spec TaskSpec) *models.Task {
	now := f.now().UTC()
	task := &models.Task{
		ID:         models.NewIDAt("task", now),
		Sender:     "director",
		Skill:      spec.Skill,
		Priority:   spec.Priority,
		Status:     models.TaskStatusPending,
		GoalID:     spec.GoalID,
		PipelineID: spec.PipelineID,
		Goal:       spec.GoalText,
		Next:       models.NextAction{Type: spec.Next},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if !task.Priority.IsValid() {
		task.Priority = models.PriorityP2
	}
	if task.Next.Type == "" {
		task.Next.Type = models.NextActionComplete
	}
	for _, path := range spec.InputPaths {
		task.Inputs = append(task.Inputs, models.TaskInput{Path: path})
	}
	task.Requirements = f.requirements(spec)
	return task
}

// NewStepTasks builds the tasks for one pipeline step, one per skill in
// declaration order.
func (f *Factory) NewStepTasks(step models.PipelineStep, spec TaskSpec) []*models.Task {
	var skills []string
	switch step.Type {
	case models.StepTypeSequential:
		skills = []string{step.Skill}
	case models.StepTypeParallel:
		skills = step.Skills
	default:
		return nil
	}
	tasks := make([]*models.Task, 0, len(skills))
	for _, skill := range skills {
		s := spec
		s.Skill = skill
		tasks = append(tasks, f.NewTask(s))
	}
	return tasks
}

func (f *Factory) requirements(spec TaskSpec) string {
	desc := ""
	if f.skills != nil {
		if cfg, err := f.skills.Get(spec.Skill); err == nil {
			desc = cfg.Description
		}
	}
	switch {
	case desc != "" && spec.GoalText != "":
		return fmt.Sprintf("%s\n\nApply this to the goal: %s", desc, spec.GoalText)
	case desc != "":
		return desc
	case spec.GoalText != "":
		return fmt.Sprintf("Produce the %s deliverable for: %s", spec.Skill, spec.GoalText)
	default:
		return fmt.Sprintf("Produce the %s deliverable.", spec.Skill)
	}
}
