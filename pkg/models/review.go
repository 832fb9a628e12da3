package models

import "time"

// Finding is a single issue raised during review.
type Finding struct {
	Section     string   `yaml:"section" json:"section"`
	Severity    Severity `yaml:"severity" json:"severity"`
	Description string   `yaml:"description" json:"description"`
}

// Review is the outcome of evaluating one task's output.
type Review struct {
	ID        string    `yaml:"id" json:"id"`
	TaskID    string    `yaml:"task_id" json:"task_id"`
	Reviewer  string    `yaml:"reviewer" json:"reviewer"`
	Verdict   Verdict   `yaml:"verdict" json:"verdict"`
	Findings  []Finding `yaml:"findings,omitempty" json:"findings,omitempty"`
	CreatedAt time.Time `yaml:"created_at" json:"created_at"`
}
