package models

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIDAt(t *testing.T) {
	ts := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	id := NewIDAt(IDPrefixTask, ts)

	re := regexp.MustCompile(`^task-20260314-[0-9a-f]{6}$`)
	assert.Regexp(t, re, id)
}

func TestNewIDUniqueness(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		id := NewID(IDPrefixGoal)
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
	}
}

func TestScheduleEntryGoalSkill(t *testing.T) {
	pipeline := ScheduleEntry{Target: "weekly-content-wave"}
	assert.Equal(t, "", pipeline.GoalSkill())

	goal := ScheduleEntry{Target: "goal:seo-audit"}
	assert.Equal(t, "seo-audit", goal.GoalSkill())
}
