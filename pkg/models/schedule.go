package models

import (
	"strings"
	"time"
)

// GoalTargetPrefix marks a schedule target that creates a single-skill goal
// instead of starting a pipeline template, e.g. "goal:weekly-metrics".
const GoalTargetPrefix = "goal:"

// ScheduleEntry is a declarative cron trigger.
type ScheduleEntry struct {
	ID           string       `yaml:"id" json:"id"`
	Name         string       `yaml:"name" json:"name"`
	Cron         string       `yaml:"cron" json:"cron"`
	Target       string       `yaml:"target" json:"target"`
	Enabled      bool         `yaml:"enabled" json:"enabled"`
	Priority     Priority     `yaml:"priority" json:"priority"`
	GoalCategory GoalCategory `yaml:"goal_category,omitempty" json:"goal_category,omitempty"`
	CatchUp      bool         `yaml:"catch_up" json:"catch_up"`
}

// GoalSkill returns the skill name when the target has the goal:{skill}
// form, and "" when the target names a pipeline template.
func (s *ScheduleEntry) GoalSkill() string {
	if strings.HasPrefix(s.Target, GoalTargetPrefix) {
		return strings.TrimPrefix(s.Target, GoalTargetPrefix)
	}
	return ""
}

// ScheduleState is the persisted firing record for one schedule.
type ScheduleState struct {
	ScheduleID     string    `json:"scheduleId"`
	LastFiredAt    time.Time `json:"lastFiredAt"`
	LastSkipReason string    `json:"lastSkipReason,omitempty"`
	FireCount      int       `json:"fireCount"`
}
