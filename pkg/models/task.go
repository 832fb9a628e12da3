package models

import "time"

// TaskInput references a workspace file a task should read before working.
type TaskInput struct {
	Path        string `yaml:"path" json:"path"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// TaskOutput describes where and how a task's deliverable is persisted.
type TaskOutput struct {
	Path   string `yaml:"path" json:"path"`
	Format string `yaml:"format,omitempty" json:"format,omitempty"`
}

// NextAction tells the completion router what to do once the task finishes.
type NextAction struct {
	Type NextActionType `yaml:"type" json:"type"`
}

// Task is one unit of work assigned to one skill.
type Task struct {
	ID            string            `yaml:"id" json:"id"`
	Sender        string            `yaml:"sender,omitempty" json:"sender,omitempty"`
	Skill         string            `yaml:"skill" json:"skill"`
	Priority      Priority          `yaml:"priority" json:"priority"`
	Deadline      *time.Time        `yaml:"deadline,omitempty" json:"deadline,omitempty"`
	Status        TaskStatus        `yaml:"status" json:"status"`
	RevisionCount int               `yaml:"revision_count" json:"revision_count"`
	GoalID        string            `yaml:"goal_id,omitempty" json:"goal_id,omitempty"`
	PipelineID    string            `yaml:"pipeline_id,omitempty" json:"pipeline_id,omitempty"`
	Goal          string            `yaml:"goal,omitempty" json:"goal,omitempty"`
	Inputs        []TaskInput       `yaml:"inputs,omitempty" json:"inputs,omitempty"`
	Requirements  string            `yaml:"requirements,omitempty" json:"requirements,omitempty"`
	Output        TaskOutput        `yaml:"output" json:"output"`
	Next          NextAction        `yaml:"next" json:"next"`
	Tags          []string          `yaml:"tags,omitempty" json:"tags,omitempty"`
	Metadata      map[string]string `yaml:"metadata,omitempty" json:"metadata,omitempty"`
	CreatedAt     time.Time         `yaml:"created_at" json:"created_at"`
	UpdatedAt     time.Time         `yaml:"updated_at" json:"updated_at"`
}

// Clone returns a deep copy so callers can mutate without aliasing.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	out := *t
	if t.Deadline != nil {
		d := *t.Deadline
		out.Deadline = &d
	}
	out.Inputs = append([]TaskInput(nil), t.Inputs...)
	out.Tags = append([]string(nil), t.Tags...)
	if t.Metadata != nil {
		out.Metadata = make(map[string]string, len(t.Metadata))
		for k, v := range t.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}
