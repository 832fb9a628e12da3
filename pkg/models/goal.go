package models

import "time"

// Goal is a user-facing marketing objective. Goals are persisted once at
// creation and treated as immutable afterwards.
type Goal struct {
	ID          string            `yaml:"id" json:"id"`
	Description string            `yaml:"-" json:"description"`
	Category    GoalCategory      `yaml:"category" json:"category"`
	Priority    Priority          `yaml:"priority" json:"priority"`
	CreatedAt   time.Time         `yaml:"created_at" json:"created_at"`
	Deadline    *time.Time        `yaml:"deadline,omitempty" json:"deadline,omitempty"`
	Metadata    map[string]string `yaml:"metadata,omitempty" json:"metadata,omitempty"`
}

// PlanPhase is one ordered grouping of skills within a goal plan.
type PlanPhase struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Parallel    bool     `yaml:"parallel" json:"parallel"`
	After       *int     `yaml:"after,omitempty" json:"after,omitempty"`
	Skills      []string `yaml:"skills" json:"skills"`
}

// GoalPlan is the phased decomposition of a goal. Persisted once alongside
// the goal document.
type GoalPlan struct {
	GoalID           string      `yaml:"goal_id" json:"goal_id"`
	Phases           []PlanPhase `yaml:"phases" json:"phases"`
	PipelineTemplate string      `yaml:"pipeline_template,omitempty" json:"pipeline_template,omitempty"`
	EstimatedTasks   int         `yaml:"estimated_tasks" json:"estimated_tasks"`
}

// TotalSkills counts the skill slots across all phases.
func (p *GoalPlan) TotalSkills() int {
	n := 0
	for _, phase := range p.Phases {
		n += len(phase.Skills)
	}
	return n
}
