package models

import "time"

// Learning is one entry in the append-only memory log. Agents record what
// worked (or didn't) so later prompts can carry the lesson forward.
type Learning struct {
	Timestamp   time.Time `json:"timestamp"`
	Agent       string    `json:"agent"`
	GoalID      string    `json:"goal_id,omitempty"`
	Outcome     string    `json:"outcome"`
	Learning    string    `json:"learning"`
	ActionTaken string    `json:"action_taken,omitempty"`
}
