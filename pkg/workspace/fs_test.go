package workspace

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maestrohq/maestro/pkg/models"
)

func newTestFS(t *testing.T) *FS {
	t.Helper()
	ws, err := NewFS(t.TempDir())
	require.NoError(t, err)
	return ws
}

func TestTaskOutputPath(t *testing.T) {
	tests := []struct {
		name       string
		squad      string
		skill      string
		foundation bool
		want       string
	}{
		{
			name:  "squad skill",
			squad: "creative",
			skill: "copywriting",
			want:  "outputs/creative/copywriting/task-20260203-ab12cd.md",
		},
		{
			name:       "foundation skill",
			skill:      "product-marketing-context",
			foundation: true,
			want:       "context/product-marketing-context.md",
		},
		{
			name:  "unknown squad falls back to flat layout",
			skill: "one-off",
			want:  "outputs/one-off/task-20260203-ab12cd.md",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TaskOutputPath(tt.squad, tt.skill, "task-20260203-ab12cd", tt.foundation)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTaskRoundTrip(t *testing.T) {
	ws := newTestFS(t)

	deadline := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	task := &models.Task{
		ID:           "task-20260203-ab12cd",
		Sender:       "director",
		Skill:        "copywriting",
		Priority:     models.PriorityP1,
		Deadline:     &deadline,
		Status:       models.TaskStatusPending,
		GoalID:       "goal-20260203-ffeedd",
		Goal:         "Launch the Q2 campaign",
		Inputs:       []models.TaskInput{{Path: "context/product-marketing-context.md", Description: "product context"}},
		Requirements: "Write three headline variants.\n\nKeep each under 60 characters.",
		Output:       models.TaskOutput{Path: "outputs/creative/copywriting/task-20260203-ab12cd.md", Format: "markdown"},
		Next:         models.NextAction{Type: models.NextActionDirectorReview},
		Tags:         []string{"launch"},
		Metadata:     map[string]string{"campaign": "q2"},
	}
	require.NoError(t, ws.WriteTask(task))

	got, err := ws.ReadTask(task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.ID, got.ID)
	assert.Equal(t, task.Skill, got.Skill)
	assert.Equal(t, task.Priority, got.Priority)
	assert.Equal(t, task.Requirements, got.Requirements)
	assert.Equal(t, task.Inputs, got.Inputs)
	assert.Equal(t, task.Output, got.Output)
	assert.Equal(t, task.Next, got.Next)
	assert.Equal(t, task.Metadata, got.Metadata)
	require.NotNil(t, got.Deadline)
	assert.True(t, got.Deadline.Equal(deadline))
}

func TestReadTaskNotFound(t *testing.T) {
	ws := newTestFS(t)
	_, err := ws.ReadTask("task-20260203-000000")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestUpdateTaskStatus(t *testing.T) {
	ws := newTestFS(t)
	task := &models.Task{
		ID:       "task-20260203-ab12cd",
		Skill:    "copywriting",
		Priority: models.PriorityP2,
		Status:   models.TaskStatusPending,
	}
	require.NoError(t, ws.WriteTask(task))

	t.Run("legal transition", func(t *testing.T) {
		require.NoError(t, ws.UpdateTaskStatus(task.ID, models.TaskStatusInProgress))
		got, err := ws.ReadTask(task.ID)
		require.NoError(t, err)
		assert.Equal(t, models.TaskStatusInProgress, got.Status)
	})

	t.Run("illegal transition rejected", func(t *testing.T) {
		err := ws.UpdateTaskStatus(task.ID, models.TaskStatusApproved)
		assert.ErrorIs(t, err, ErrIllegalTransition)
	})

	t.Run("idempotent self transition", func(t *testing.T) {
		require.NoError(t, ws.UpdateTaskStatus(task.ID, models.TaskStatusInProgress))
	})
}

func TestGoalRoundTrip(t *testing.T) {
	ws := newTestFS(t)

	created := time.Date(2026, 2, 3, 9, 30, 0, 0, time.UTC)
	goal := &models.Goal{
		ID:          "goal-20260203-ffeedd",
		Description: "Grow trial signups 20% this quarter",
		Category:    models.GoalCategoryContent,
		Priority:    models.PriorityP1,
		CreatedAt:   created,
		Metadata:    map[string]string{"source": "cli"},
	}
	require.NoError(t, ws.WriteGoal(goal))

	got, err := ws.ReadGoal(goal.ID)
	require.NoError(t, err)
	assert.Equal(t, goal.ID, got.ID)
	assert.Equal(t, goal.Description, got.Description)
	assert.Equal(t, goal.Category, got.Category)
	assert.Equal(t, goal.Priority, got.Priority)
	assert.True(t, got.CreatedAt.Equal(created))
	assert.Nil(t, got.Deadline)
	assert.Equal(t, goal.Metadata, got.Metadata)
}

func TestListGoalsSkipsPlans(t *testing.T) {
	ws := newTestFS(t)

	goal := &models.Goal{ID: "goal-20260203-ffeedd", Description: "d", Category: models.GoalCategoryStrategic, Priority: models.PriorityP2}
	require.NoError(t, ws.WriteGoal(goal))
	require.NoError(t, ws.WriteGoalPlan(&models.GoalPlan{
		GoalID: goal.ID,
		Phases: []models.PlanPhase{{Name: "research", Skills: []string{"competitor-analysis"}}},
	}))

	goals, err := ws.ListGoals()
	require.NoError(t, err)
	require.Len(t, goals, 1)
	assert.Equal(t, goal.ID, goals[0].ID)

	plan, err := ws.ReadGoalPlan(goal.ID)
	require.NoError(t, err)
	require.Len(t, plan.Phases, 1)
	assert.Equal(t, []string{"competitor-analysis"}, plan.Phases[0].Skills)
}

func TestLearningsAppendAndRead(t *testing.T) {
	ws := newTestFS(t)

	first := models.Learning{
		Timestamp: time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC),
		Agent:     "copywriting",
		GoalID:    "goal-20260203-ffeedd",
		Outcome:   "approved",
		Learning:  "Short subject lines doubled open rate",
	}
	second := models.Learning{
		Timestamp:   time.Date(2026, 2, 4, 10, 0, 0, 0, time.UTC),
		Agent:       "seo-audit",
		Outcome:     "revision",
		Learning:    "Always include canonical tags in the audit",
		ActionTaken: "Added a canonical-tag checklist item",
	}
	require.NoError(t, ws.AppendLearning(first))
	require.NoError(t, ws.AppendLearning(second))

	got, err := ws.ReadLearnings()
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, first.Agent, got[0].Agent)
	assert.Equal(t, first.GoalID, got[0].GoalID)
	assert.Equal(t, first.Learning, got[0].Learning)
	assert.Equal(t, second.ActionTaken, got[1].ActionTaken)
	assert.True(t, got[1].Timestamp.Equal(second.Timestamp))
}

func TestReadLearningsEmpty(t *testing.T) {
	ws := newTestFS(t)
	got, err := ws.ReadLearnings()
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReviewsFilterByTask(t *testing.T) {
	ws := newTestFS(t)

	r1 := &models.Review{
		ID:        "rev-20260203-aa0001",
		TaskID:    "task-20260203-ab12cd",
		Reviewer:  "director",
		Verdict:   models.VerdictApprove,
		CreatedAt: time.Date(2026, 2, 3, 11, 0, 0, 0, time.UTC),
	}
	r2 := &models.Review{
		ID:       "rev-20260203-aa0002",
		TaskID:   "task-20260203-other1",
		Reviewer: "director",
		Verdict:  models.VerdictRevise,
		Findings: []models.Finding{{Section: "intro", Severity: models.SeverityMajor, Description: "missing hook"}},
	}
	require.NoError(t, ws.WriteReview(r1))
	require.NoError(t, ws.WriteReview(r2))

	got, err := ws.ListReviews("task-20260203-ab12cd")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, r1.ID, got[0].ID)

	all, err := ws.ListReviews("")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestScheduleStateRoundTrip(t *testing.T) {
	ws := newTestFS(t)

	state := &models.ScheduleState{
		ScheduleID:  "sched-weekly-metrics",
		LastFiredAt: time.Date(2026, 2, 3, 9, 0, 0, 0, time.UTC),
		FireCount:   4,
	}
	require.NoError(t, ws.WriteScheduleState(state))

	got, err := ws.ReadScheduleState(state.ScheduleID)
	require.NoError(t, err)
	assert.Equal(t, state.ScheduleID, got.ScheduleID)
	assert.True(t, got.LastFiredAt.Equal(state.LastFiredAt))
	assert.Equal(t, 4, got.FireCount)
}

func TestPipelineRunRoundTrip(t *testing.T) {
	ws := newTestFS(t)

	run := &models.PipelineRun{
		ID:           "pipe-20260203-ab12cd",
		DefinitionID: "launch",
		Status:       models.RunStatusPaused,
		CurrentStep:  2,
		TaskIDs:      []string{"task-20260203-aa0001", "task-20260203-aa0002"},
	}
	require.NoError(t, ws.WritePipelineRun(run))

	got, err := ws.ReadPipelineRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.Status, got.Status)
	assert.Equal(t, run.CurrentStep, got.CurrentStep)
	assert.Equal(t, run.TaskIDs, got.TaskIDs)
}

func TestContextReadWrite(t *testing.T) {
	ws := newTestFS(t)

	assert.False(t, ws.ContextExists())
	require.NoError(t, ws.WriteOutput(ContextPath, "# Product Context\n"))
	assert.True(t, ws.ContextExists())

	content, err := ws.ReadContext()
	require.NoError(t, err)
	assert.Contains(t, content, "Product Context")
}

func TestPathEscapeRejected(t *testing.T) {
	ws := newTestFS(t)
	err := ws.WriteFile("../outside.md", []byte("nope"))
	assert.Error(t, err)
	_, err = ws.ReadFile("/etc/passwd")
	assert.Error(t, err)
}
