package models

import "time"

// StepType tags the variant of a pipeline step.
type StepType string

const (
	StepTypeSequential StepType = "sequential"
	StepTypeParallel   StepType = "parallel"
	StepTypeReview     StepType = "review"
)

// IsValid checks if the step type is valid
func (t StepType) IsValid() bool {
	return t == StepTypeSequential || t == StepTypeParallel || t == StepTypeReview
}

// PipelineStep is a tagged variant: exactly one of Skill (sequential),
// Skills (parallel), or Reviewer (review) is meaningful for a given Type.
type PipelineStep struct {
	Type     StepType `yaml:"type" json:"type"`
	Skill    string   `yaml:"skill,omitempty" json:"skill,omitempty"`
	Skills   []string `yaml:"skills,omitempty" json:"skills,omitempty"`
	Reviewer string   `yaml:"reviewer,omitempty" json:"reviewer,omitempty"`
}

// PipelineDefinition is an ordered list of steps executed by the engine.
type PipelineDefinition struct {
	ID    string         `yaml:"id" json:"id"`
	Name  string         `yaml:"name" json:"name"`
	Steps []PipelineStep `yaml:"steps" json:"steps"`
}

// RunStatus tracks a pipeline run through its lifecycle.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusPaused    RunStatus = "paused"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// IsValid checks if the run status is valid
func (s RunStatus) IsValid() bool {
	switch s {
	case RunStatusPending, RunStatusRunning, RunStatusPaused,
		RunStatusCompleted, RunStatusFailed, RunStatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the run can make no further progress.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed || s == RunStatusCancelled
}

// PipelineRun is one execution of a pipeline definition. Task IDs are
// appended in execution order as steps materialize tasks.
type PipelineRun struct {
	ID           string    `json:"id"`
	DefinitionID string    `json:"definition_id"`
	GoalID       string    `json:"goal_id,omitempty"`
	Status       RunStatus `json:"status"`
	CurrentStep  int       `json:"current_step"`
	TaskIDs      []string  `json:"task_ids"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
