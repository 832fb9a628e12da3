package director

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maestrohq/maestro/pkg/config"
	"github.com/maestrohq/maestro/pkg/models"
	"github.com/maestrohq/maestro/pkg/pipeline"
	"github.com/maestrohq/maestro/pkg/review"
	"github.com/maestrohq/maestro/pkg/workspace"
)

func testClockAt() func() time.Time {
	at := time.Date(2026, 3, 12, 10, 0, 0, 0, time.UTC)
	return func() time.Time { return at }
}

// testSkills carries every skill the routing table names.
func testSkills() *config.SkillRegistry {
	squads := map[string]models.Squad{
		"competitor-analysis": models.SquadStrategy,
		"positioning":         models.SquadStrategy,
		"brand-strategy":      models.SquadStrategy,
		"launch-plan":         models.SquadStrategy,
		"copywriting":         models.SquadCreative,
		"social-calendar":     models.SquadCreative,
		"email-campaign":      models.SquadCreative,
		"seo-audit":           models.SquadConvert,
		"page-cro":            models.SquadConvert,
		"paid-ads-brief":      models.SquadConvert,
		"onboarding-flow":     models.SquadActivate,
		"lifecycle-email":     models.SquadActivate,
		"analytics-report":    models.SquadMeasure,
		"weekly-metrics":      models.SquadMeasure,
	}
	skills := make(map[string]*config.SkillConfig, len(squads))
	for name, squad := range squads {
		skills[name] = &config.SkillConfig{
			Squad:        string(squad),
			SystemPrompt: "You are the " + name + " specialist.",
		}
	}
	return config.NewSkillRegistry(skills)
}

// reviewAlways builds a structural review config whose thresholds force a
// single verdict for any content.
func reviewAlways(verdict models.Verdict) *config.ReviewConfig {
	cfg := &config.ReviewConfig{
		Mode:             config.ReviewModeStructural,
		ApproveThreshold: 11,
		RejectThreshold:  -1,
	}
	switch verdict {
	case models.VerdictApprove:
		cfg.ApproveThreshold = 0
	case models.VerdictReject:
		cfg.RejectThreshold = 11
	}
	return cfg
}

type recorderDispatcher struct {
	tasks []*models.Task
}

func (r *recorderDispatcher) Dispatch(ctx context.Context, tasks []*models.Task) error {
	r.tasks = append(r.tasks, tasks...)
	return nil
}

func newTestDirector(t *testing.T, reviewCfg *config.ReviewConfig, dispatcher Dispatcher) (*Director, workspace.Workspace) {
	t.Helper()
	ws, err := workspace.NewFS(t.TempDir())
	require.NoError(t, err)
	if reviewCfg == nil {
		reviewCfg = reviewAlways(models.VerdictApprove)
	}
	skills := testSkills()
	clock := testClockAt()
	d := New(Deps{
		Config:     config.DefaultDirectorConfig(),
		Skills:     skills,
		Workspace:  ws,
		Factory:    pipeline.NewFactory(skills, clock),
		Reviews:    review.NewEngine(reviewCfg, nil, "", 0),
		Dispatcher: dispatcher,
		Clock:      clock,
	})
	return d, ws
}

// completedTask persists a task in the completed state with its deliverable
// already written, ready for review.
func completedTask(t *testing.T, ws workspace.Workspace, d *Director, skill, goalID string) *models.Task {
	t.Helper()
	task := d.factory.NewTask(pipeline.TaskSpec{
		Skill:    skill,
		GoalID:   goalID,
		GoalText: "Ship the spring launch content",
		Priority: models.PriorityP1,
		Next:     models.NextActionDirectorReview,
	})
	task.Status = models.TaskStatusCompleted
	task.Output.Path = "outputs/" + skill + "/" + task.ID + ".md"
	require.NoError(t, ws.WriteTask(task))
	require.NoError(t, ws.WriteOutput(task.Output.Path, "# Deliverable\n\nDraft body.\n"))
	return task
}

func TestCreateGoalRejectsUnknownCategory(t *testing.T) {
	d, _ := newTestDirector(t, nil, nil)
	_, err := d.CreateGoal(GoalSpec{Description: "grow", Category: "growth-hacking"})
	assert.ErrorIs(t, err, ErrUnknownCategory)
}

func TestCreateGoalDefaultsPriority(t *testing.T) {
	d, ws := newTestDirector(t, nil, nil)
	goal, err := d.CreateGoal(GoalSpec{
		Description: "Quarterly metrics review",
		Category:    models.GoalCategoryMeasurement,
	})
	require.NoError(t, err)
	assert.Equal(t, models.PriorityP2, goal.Priority)

	stored, err := ws.ReadGoal(goal.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GoalCategoryMeasurement, stored.Category)
}

func TestDecomposeContentRoute(t *testing.T) {
	d, ws := newTestDirector(t, nil, nil)
	goal, err := d.CreateGoal(GoalSpec{
		Description: "Launch the spring content wave",
		Category:    models.GoalCategoryContent,
		Priority:    models.PriorityP1,
	})
	require.NoError(t, err)

	plan, err := d.Decompose(goal)
	require.NoError(t, err)
	require.Len(t, plan.Phases, 3)

	assert.Equal(t, "phase-1-strategy", plan.Phases[0].Name)
	assert.Equal(t, []string{"positioning"}, plan.Phases[0].Skills)
	assert.Nil(t, plan.Phases[0].After)

	assert.Equal(t, "phase-2-creative", plan.Phases[1].Name)
	assert.Equal(t, []string{"copywriting", "social-calendar", "email-campaign"}, plan.Phases[1].Skills)
	assert.True(t, plan.Phases[1].Parallel)
	require.NotNil(t, plan.Phases[1].After)
	assert.Equal(t, 0, *plan.Phases[1].After)

	// Measurement always closes the route.
	assert.Equal(t, "phase-3-measure", plan.Phases[2].Name)
	assert.Equal(t, []string{"analytics-report"}, plan.Phases[2].Skills)

	assert.Equal(t, 5, plan.EstimatedTasks)

	stored, err := ws.ReadGoalPlan(goal.ID)
	require.NoError(t, err)
	assert.Equal(t, plan.EstimatedTasks, stored.EstimatedTasks)
}

func TestDecomposeMeasurementRouteHasSingleMeasurePhase(t *testing.T) {
	d, _ := newTestDirector(t, nil, nil)
	goal, err := d.CreateGoal(GoalSpec{
		Description: "Weekly digest",
		Category:    models.GoalCategoryMeasurement,
	})
	require.NoError(t, err)

	plan, err := d.Decompose(goal)
	require.NoError(t, err)
	require.Len(t, plan.Phases, 1)
	assert.Equal(t, []string{"weekly-metrics"}, plan.Phases[0].Skills)
}

func TestDecomposeDropsUnknownSkills(t *testing.T) {
	ws, err := workspace.NewFS(t.TempDir())
	require.NoError(t, err)
	// A sparse registry: the creative squad only knows copywriting.
	skills := config.NewSkillRegistry(map[string]*config.SkillConfig{
		"positioning":      {Squad: "strategy"},
		"copywriting":      {Squad: "creative"},
		"analytics-report": {Squad: "measure"},
	})
	clock := testClockAt()
	d := New(Deps{
		Config:    config.DefaultDirectorConfig(),
		Skills:    skills,
		Workspace: ws,
		Factory:   pipeline.NewFactory(skills, clock),
		Reviews:   review.NewEngine(reviewAlways(models.VerdictApprove), nil, "", 0),
		Clock:     clock,
	})

	goal, err := d.CreateGoal(GoalSpec{
		Description: "Content with a thin roster",
		Category:    models.GoalCategoryContent,
	})
	require.NoError(t, err)

	plan, err := d.Decompose(goal)
	require.NoError(t, err)
	require.Len(t, plan.Phases, 3)
	assert.Equal(t, []string{"copywriting"}, plan.Phases[1].Skills)
	assert.Equal(t, 3, plan.EstimatedTasks)
}

func TestDecomposeRecordsTemplateWhenRegistered(t *testing.T) {
	ws, err := workspace.NewFS(t.TempDir())
	require.NoError(t, err)
	skills := testSkills()
	clock := testClockAt()
	pipelines := config.NewPipelineRegistry(map[string]*config.PipelineConfig{
		"content-wave": {Steps: []config.PipelineStepConfig{
			{Type: models.StepTypeSequential, Skill: "copywriting"},
		}},
	})
	d := New(Deps{
		Config:    config.DefaultDirectorConfig(),
		Skills:    skills,
		Pipelines: pipelines,
		Workspace: ws,
		Factory:   pipeline.NewFactory(skills, clock),
		Reviews:   review.NewEngine(reviewAlways(models.VerdictApprove), nil, "", 0),
		Clock:     clock,
	})

	goal, err := d.CreateGoal(GoalSpec{Description: "wave", Category: models.GoalCategoryContent})
	require.NoError(t, err)
	plan, err := d.Decompose(goal)
	require.NoError(t, err)
	assert.Equal(t, "content-wave", plan.PipelineTemplate)

	// Without the registry entry the plan carries no template.
	bare, _ := newTestDirector(t, nil, nil)
	goal2, err := bare.CreateGoal(GoalSpec{Description: "wave", Category: models.GoalCategoryContent})
	require.NoError(t, err)
	plan2, err := bare.Decompose(goal2)
	require.NoError(t, err)
	assert.Empty(t, plan2.PipelineTemplate)
}

func TestStartGoalMaterializesAndDispatchesFirstPhase(t *testing.T) {
	ctx := context.Background()
	dispatcher := &recorderDispatcher{}
	d, ws := newTestDirector(t, nil, dispatcher)

	goal, plan, tasks, err := d.StartGoal(ctx, GoalSpec{
		Description: "Spring launch content",
		Category:    models.GoalCategoryContent,
		Priority:    models.PriorityP1,
	})
	require.NoError(t, err)
	require.Len(t, plan.Phases, 3)

	// Only phase one runs up front.
	require.Len(t, tasks, 1)
	assert.Equal(t, "positioning", tasks[0].Skill)
	assert.Equal(t, goal.ID, tasks[0].GoalID)
	assert.Equal(t, models.NextActionDirectorReview, tasks[0].Next.Type)
	assert.Len(t, dispatcher.tasks, 1)

	stored, err := ws.ReadTask(tasks[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusPending, stored.Status)
}

func TestStartGoalFromSkill(t *testing.T) {
	ctx := context.Background()
	dispatcher := &recorderDispatcher{}
	d, ws := newTestDirector(t, nil, dispatcher)

	goalID, err := d.StartGoalFromSkill(ctx, "weekly-metrics", TriggerOptions{
		Priority: models.PriorityP2,
		Source:   "schedule:weekly-report",
	})
	require.NoError(t, err)

	plan, err := ws.ReadGoalPlan(goalID)
	require.NoError(t, err)
	require.Len(t, plan.Phases, 1)
	assert.Equal(t, []string{"weekly-metrics"}, plan.Phases[0].Skills)
	assert.Equal(t, 1, plan.EstimatedTasks)
	require.Len(t, dispatcher.tasks, 1)

	goal, err := ws.ReadGoal(goalID)
	require.NoError(t, err)
	assert.Equal(t, models.GoalCategoryMeasurement, goal.Category)
	assert.Equal(t, "schedule:weekly-report", goal.Metadata["source"])
}

func TestStartGoalFromSkillUnknownSkill(t *testing.T) {
	d, _ := newTestDirector(t, nil, nil)
	_, err := d.StartGoalFromSkill(context.Background(), "guerrilla-marketing", TriggerOptions{})
	assert.Error(t, err)
}

func TestReviewTaskApprove(t *testing.T) {
	ctx := context.Background()
	d, ws := newTestDirector(t, reviewAlways(models.VerdictApprove), nil)
	task := completedTask(t, ws, d, "copywriting", "")

	decision, err := d.ReviewTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, ActionApprove, decision.Action)
	require.NotNil(t, decision.Review)
	assert.Equal(t, models.VerdictApprove, decision.Review.Verdict)
	assert.Empty(t, decision.NextTasks)

	stored, err := ws.ReadTask(task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusApproved, stored.Status)

	reviews, err := ws.ListReviews(task.ID)
	require.NoError(t, err)
	assert.Len(t, reviews, 1)
}

func TestReviewTaskApproveAdvancesGoalPhase(t *testing.T) {
	ctx := context.Background()
	d, ws := newTestDirector(t, reviewAlways(models.VerdictApprove), nil)

	goal, err := d.CreateGoal(GoalSpec{Description: "wave", Category: models.GoalCategoryContent})
	require.NoError(t, err)
	require.NoError(t, ws.WriteGoalPlan(&models.GoalPlan{
		GoalID: goal.ID,
		Phases: []models.PlanPhase{
			{Name: "phase-1-creative", Skills: []string{"copywriting"}},
			{Name: "phase-2-measure", Skills: []string{"analytics-report"}},
		},
		EstimatedTasks: 2,
	}))
	task := completedTask(t, ws, d, "copywriting", goal.ID)

	decision, err := d.ReviewTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, ActionPipelineNext, decision.Action)
}

func TestReviewTaskApproveCompletesGoal(t *testing.T) {
	ctx := context.Background()
	d, ws := newTestDirector(t, reviewAlways(models.VerdictApprove), nil)

	goal, err := d.CreateGoal(GoalSpec{Description: "digest", Category: models.GoalCategoryMeasurement})
	require.NoError(t, err)
	require.NoError(t, ws.WriteGoalPlan(&models.GoalPlan{
		GoalID:         goal.ID,
		Phases:         []models.PlanPhase{{Name: "phase-1-measure", Skills: []string{"weekly-metrics"}}},
		EstimatedTasks: 1,
	}))
	task := completedTask(t, ws, d, "weekly-metrics", goal.ID)

	decision, err := d.ReviewTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, ActionGoalComplete, decision.Action)
}

func TestReviewTaskRevise(t *testing.T) {
	ctx := context.Background()
	d, ws := newTestDirector(t, reviewAlways(models.VerdictRevise), nil)
	task := completedTask(t, ws, d, "copywriting", "")

	decision, err := d.ReviewTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, ActionRevise, decision.Action)
	require.Len(t, decision.NextTasks, 1)
	assert.Equal(t, task.ID, decision.NextTasks[0].ID, "revision reuses the task")
	assert.Equal(t, 1, decision.NextTasks[0].RevisionCount)
	assert.Equal(t, models.TaskStatusRevision, decision.NextTasks[0].Status)

	stored, err := ws.ReadTask(task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusRevision, stored.Status)
	assert.Equal(t, 1, stored.RevisionCount)
}

func TestReviewTaskEscalatesAfterMaxRevisions(t *testing.T) {
	ctx := context.Background()
	d, ws := newTestDirector(t, reviewAlways(models.VerdictRevise), nil)
	task := completedTask(t, ws, d, "copywriting", "")
	task.RevisionCount = d.cfg.MaxRevisions
	require.NoError(t, ws.WriteTask(task))

	decision, err := d.ReviewTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, ActionEscalateHuman, decision.Action)
	assert.NotEmpty(t, decision.Escalation)
	assert.Empty(t, decision.NextTasks)
}

func TestReviewTaskRejectReassigns(t *testing.T) {
	ctx := context.Background()
	d, ws := newTestDirector(t, reviewAlways(models.VerdictReject), nil)
	task := completedTask(t, ws, d, "copywriting", "")

	decision, err := d.ReviewTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, ActionRejectReassign, decision.Action)
	require.Len(t, decision.NextTasks, 1)

	replacement := decision.NextTasks[0]
	assert.NotEqual(t, task.ID, replacement.ID, "reassignment starts fresh")
	assert.Equal(t, task.Skill, replacement.Skill)
	assert.Zero(t, replacement.RevisionCount)
	assert.Equal(t, models.TaskStatusPending, replacement.Status)

	stored, err := ws.ReadTask(task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusFailed, stored.Status)
}

func TestReviewTaskMissingOutput(t *testing.T) {
	ctx := context.Background()
	d, ws := newTestDirector(t, nil, nil)
	task := d.factory.NewTask(pipeline.TaskSpec{Skill: "copywriting"})
	task.Status = models.TaskStatusCompleted
	require.NoError(t, ws.WriteTask(task))

	_, err := d.ReviewTask(ctx, task.ID)
	assert.ErrorIs(t, err, ErrNoOutput)
}

func TestReviewTaskFallsBackToDefaultOutputPath(t *testing.T) {
	ctx := context.Background()
	d, ws := newTestDirector(t, reviewAlways(models.VerdictApprove), nil)

	task := d.factory.NewTask(pipeline.TaskSpec{Skill: "copywriting"})
	task.Status = models.TaskStatusCompleted
	require.NoError(t, ws.WriteTask(task))

	// No explicit output path on the task: the deterministic squad/skill
	// location is where the review looks.
	path := workspace.TaskOutputPath("creative", "copywriting", task.ID, false)
	require.NoError(t, ws.WriteOutput(path, "# Landing copy\n\nBody.\n"))

	decision, err := d.ReviewTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, ActionApprove, decision.Action)
}

func TestReviewTaskRecordsLearning(t *testing.T) {
	ctx := context.Background()
	d, ws := newTestDirector(t, reviewAlways(models.VerdictApprove), nil)
	task := completedTask(t, ws, d, "copywriting", "")

	decision, err := d.ReviewTask(ctx, task.ID)
	require.NoError(t, err)
	require.NotNil(t, decision.Learning)
	assert.Equal(t, "approved", decision.Learning.Outcome)

	learnings, err := ws.ReadLearnings()
	require.NoError(t, err)
	require.Len(t, learnings, 1)
	assert.Equal(t, "copywriting", learnings[0].Agent)
}

func TestAdvanceGoalMaterializesNextPhaseWithInputs(t *testing.T) {
	ctx := context.Background()
	d, ws := newTestDirector(t, nil, nil)

	goal, err := d.CreateGoal(GoalSpec{Description: "wave", Category: models.GoalCategoryContent})
	require.NoError(t, err)
	require.NoError(t, ws.WriteGoalPlan(&models.GoalPlan{
		GoalID: goal.ID,
		Phases: []models.PlanPhase{
			{Name: "phase-1-strategy", Skills: []string{"positioning"}},
			{Name: "phase-2-creative", Skills: []string{"copywriting"}},
		},
		EstimatedTasks: 2,
	}))

	approved := d.factory.NewTask(pipeline.TaskSpec{Skill: "positioning", GoalID: goal.ID})
	approved.Status = models.TaskStatusApproved
	approved.Output.Path = "outputs/strategy/positioning/" + approved.ID + ".md"
	require.NoError(t, ws.WriteTask(approved))

	adv, err := d.AdvanceGoal(ctx, goal.ID)
	require.NoError(t, err)
	assert.False(t, adv.Complete)
	assert.False(t, adv.InFlight)
	assert.Equal(t, 1, adv.PhaseIndex)
	require.Len(t, adv.Tasks, 1)
	assert.Equal(t, "copywriting", adv.Tasks[0].Skill)
	// The approved phase's deliverable feeds the next phase.
	require.Len(t, adv.Tasks[0].Inputs, 1)
	assert.Equal(t, approved.Output.Path, adv.Tasks[0].Inputs[0].Path)
}

func TestAdvanceGoalInFlightGuard(t *testing.T) {
	ctx := context.Background()
	d, ws := newTestDirector(t, nil, nil)

	goal, err := d.CreateGoal(GoalSpec{Description: "wave", Category: models.GoalCategoryContent})
	require.NoError(t, err)
	require.NoError(t, ws.WriteGoalPlan(&models.GoalPlan{
		GoalID: goal.ID,
		Phases: []models.PlanPhase{
			{Name: "phase-1-strategy", Skills: []string{"positioning"}},
			{Name: "phase-2-creative", Skills: []string{"copywriting"}},
		},
		EstimatedTasks: 2,
	}))

	approved := d.factory.NewTask(pipeline.TaskSpec{Skill: "positioning", GoalID: goal.ID})
	approved.Status = models.TaskStatusApproved
	require.NoError(t, ws.WriteTask(approved))

	// Phase two already has a live task, nothing new materializes.
	live := d.factory.NewTask(pipeline.TaskSpec{Skill: "copywriting", GoalID: goal.ID})
	require.NoError(t, ws.WriteTask(live))

	adv, err := d.AdvanceGoal(ctx, goal.ID)
	require.NoError(t, err)
	assert.True(t, adv.InFlight)
	assert.Equal(t, 1, adv.PhaseIndex)
	assert.Empty(t, adv.Tasks)
}

func TestAdvanceGoalComplete(t *testing.T) {
	ctx := context.Background()
	d, ws := newTestDirector(t, nil, nil)

	goal, err := d.CreateGoal(GoalSpec{Description: "digest", Category: models.GoalCategoryMeasurement})
	require.NoError(t, err)
	require.NoError(t, ws.WriteGoalPlan(&models.GoalPlan{
		GoalID:         goal.ID,
		Phases:         []models.PlanPhase{{Name: "phase-1-measure", Skills: []string{"weekly-metrics"}}},
		EstimatedTasks: 1,
	}))

	approved := d.factory.NewTask(pipeline.TaskSpec{Skill: "weekly-metrics", GoalID: goal.ID})
	approved.Status = models.TaskStatusApproved
	require.NoError(t, ws.WriteTask(approved))

	adv, err := d.AdvanceGoal(ctx, goal.ID)
	require.NoError(t, err)
	assert.True(t, adv.Complete)

	learnings, err := ws.ReadLearnings()
	require.NoError(t, err)
	require.Len(t, learnings, 1)
	assert.Equal(t, "goal_completed", learnings[0].Outcome)
}

func TestNextPhaseStrictConsumesApprovalsPerPhase(t *testing.T) {
	d, ws := newTestDirector(t, nil, nil)

	goal, err := d.CreateGoal(GoalSpec{Description: "recurring", Category: models.GoalCategoryContent})
	require.NoError(t, err)
	// Positioning recurs in phase three: strict ordering needs a second
	// approval for it.
	plan := &models.GoalPlan{
		GoalID: goal.ID,
		Phases: []models.PlanPhase{
			{Name: "phase-1", Skills: []string{"positioning"}},
			{Name: "phase-2", Skills: []string{"copywriting"}},
			{Name: "phase-3", Skills: []string{"positioning"}},
		},
	}

	for _, skill := range []string{"positioning", "copywriting"} {
		task := d.factory.NewTask(pipeline.TaskSpec{Skill: skill, GoalID: goal.ID})
		task.Status = models.TaskStatusApproved
		require.NoError(t, ws.WriteTask(task))
	}

	next, done, err := d.nextPhase(goal.ID, plan, "")
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, 2, next)

	// Relaxed ordering lets one approval satisfy every phase naming the
	// skill.
	relaxed := false
	d.cfg.StrictPhaseOrder = &relaxed
	_, done, err = d.nextPhase(goal.ID, plan, "")
	require.NoError(t, err)
	assert.True(t, done)
}

func TestCompleteGoalAppendsLearning(t *testing.T) {
	d, ws := newTestDirector(t, nil, nil)
	goal, err := d.CreateGoal(GoalSpec{Description: "digest\nwith detail", Category: models.GoalCategoryMeasurement})
	require.NoError(t, err)

	require.NoError(t, d.CompleteGoal(goal.ID))

	learnings, err := ws.ReadLearnings()
	require.NoError(t, err)
	require.Len(t, learnings, 1)
	assert.Equal(t, ReviewerName, learnings[0].Agent)
	assert.Contains(t, learnings[0].Learning, "digest")
	assert.NotContains(t, learnings[0].Learning, "with detail", "learning keeps the first line only")
}
