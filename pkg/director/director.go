// Package director owns the goal lifecycle: decomposition into phased
// plans, task materialization, output review, phase advancement, and
// escalation. The director surfaces errors through decision objects
// rather than aborting the loop.
package director

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/maestrohq/maestro/pkg/config"
	"github.com/maestrohq/maestro/pkg/models"
	"github.com/maestrohq/maestro/pkg/pipeline"
	"github.com/maestrohq/maestro/pkg/review"
	"github.com/maestrohq/maestro/pkg/workspace"
)

var (
	// ErrUnknownCategory indicates the goal category has no routing
	ErrUnknownCategory = errors.New("unknown goal category")

	// ErrNoOutput indicates a reviewed task has no readable output
	ErrNoOutput = errors.New("task output not found")
)

// ReviewerName identifies director-issued reviews in persisted documents.
const ReviewerName = "director"

// Dispatcher hands materialized tasks to the execution side, typically
// the queue manager. A nil dispatcher leaves tasks persisted but idle,
// which is what dry runs and inline pipeline execution want.
type Dispatcher interface {
	Dispatch(ctx context.Context, tasks []*models.Task) error
}

// Launcher starts a pipeline run asynchronously. A nil launcher makes
// StartPipeline execute the run synchronously on the caller's goroutine.
// The source tag identifies who fired the run (schedule, event, api) so
// launchers can report completion back to the right place.
type Launcher interface {
	Launch(def *models.PipelineDefinition, run *models.PipelineRun, opts pipeline.Options, source string)
}

// Director coordinates goals end to end.
type Director struct {
	cfg        *config.DirectorConfig
	skills     *config.SkillRegistry
	pipelines  *config.PipelineRegistry
	ws         workspace.Workspace
	factory    *pipeline.Factory
	engine     *pipeline.Engine
	reviews    *review.Engine
	dispatcher Dispatcher
	launcher   Launcher
	log        *slog.Logger
	now        func() time.Time
}

// Deps bundles the director's collaborators. Dispatcher, Launcher, and
// Engine are optional.
type Deps struct {
	Config    *config.DirectorConfig
	Skills    *config.SkillRegistry
	Pipelines *config.PipelineRegistry
	Workspace workspace.Workspace
	Factory   *pipeline.Factory
	Engine    *pipeline.Engine
	Reviews   *review.Engine
	// Dispatcher receives materialized tasks; nil disables dispatch.
	Dispatcher Dispatcher
	// Launcher runs pipelines asynchronously; nil runs them inline.
	Launcher Launcher
	// Clock defaults to time.Now when nil.
	Clock func() time.Time
}

// New creates a director.
func New(deps Deps) *Director {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Director{
		cfg:        deps.Config,
		skills:     deps.Skills,
		pipelines:  deps.Pipelines,
		ws:         deps.Workspace,
		factory:    deps.Factory,
		engine:     deps.Engine,
		reviews:    deps.Reviews,
		dispatcher: deps.Dispatcher,
		launcher:   deps.Launcher,
		log:        slog.With("component", "director"),
		now:        clock,
	}
}

// GoalSpec describes a goal to create.
type GoalSpec struct {
	Description string
	Category    models.GoalCategory
	Priority    models.Priority
	Deadline    *time.Time
	Metadata    map[string]string
}

// CreateGoal assigns an id, stamps timestamps, and persists the goal
// document. Goals are immutable after this write.
func (d *Director) CreateGoal(spec GoalSpec) (*models.Goal, error) {
	if !spec.Category.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, spec.Category)
	}
	now := d.now().UTC()
	goal := &models.Goal{
		ID:          models.NewIDAt(models.IDPrefixGoal, now),
		Description: spec.Description,
		Category:    spec.Category,
		Priority:    spec.Priority,
		CreatedAt:   now,
		Deadline:    spec.Deadline,
		Metadata:    spec.Metadata,
	}
	if !goal.Priority.IsValid() {
		goal.Priority = d.cfg.DefaultPriority
	}
	if err := d.ws.WriteGoal(goal); err != nil {
		return nil, fmt.Errorf("persisting goal: %w", err)
	}
	d.log.Info("Goal created", "goal_id", goal.ID, "category", goal.Category, "priority", goal.Priority)
	return goal, nil
}

// Decompose routes the goal's category through the routing table and
// persists the resulting phased plan.
func (d *Director) Decompose(goal *models.Goal) (*models.GoalPlan, error) {
	route := routeFor(goal.Category)
	if len(route) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, goal.Category)
	}

	plan := &models.GoalPlan{
		GoalID:           goal.ID,
		PipelineTemplate: d.matchTemplate(goal.Category),
	}
	for i, entry := range route {
		var after *int
		if i > 0 {
			prev := i - 1
			after = &prev
		}
		skills := make([]string, 0, len(entry.Skills))
		for _, skill := range entry.Skills {
			if !d.skills.Has(skill) {
				d.log.Warn("Routing names unknown skill, dropping from plan",
					"goal_id", goal.ID, "skill", skill)
				continue
			}
			skills = append(skills, skill)
		}
		if len(skills) == 0 {
			continue
		}
		plan.Phases = append(plan.Phases, models.PlanPhase{
			Name:        fmt.Sprintf("phase-%d-%s", len(plan.Phases)+1, entry.Squad),
			Description: entry.Rationale,
			Parallel:    entry.Parallel,
			After:       after,
			Skills:      skills,
		})
	}
	plan.EstimatedTasks = plan.TotalSkills()

	if err := d.ws.WriteGoalPlan(plan); err != nil {
		return nil, fmt.Errorf("persisting goal plan: %w", err)
	}
	d.log.Info("Goal decomposed", "goal_id", goal.ID,
		"phases", len(plan.Phases), "tasks", plan.EstimatedTasks)
	return plan, nil
}

// matchTemplate returns the pipeline template recorded on plans for this
// category, when the registry actually carries it.
func (d *Director) matchTemplate(category models.GoalCategory) string {
	name := pipelineTemplates[category]
	if name == "" || d.pipelines == nil || !d.pipelines.Has(name) {
		return ""
	}
	return name
}

// MaterializePhase builds and persists the tasks of one plan phase. The
// supplied input paths become task inputs.
func (d *Director) MaterializePhase(ctx context.Context, goal *models.Goal, plan *models.GoalPlan, phase int, inputPaths []string) ([]*models.Task, error) {
	if phase < 0 || phase >= len(plan.Phases) {
		return nil, fmt.Errorf("phase %d out of range for goal %s", phase, goal.ID)
	}
	p := plan.Phases[phase]
	tasks := make([]*models.Task, 0, len(p.Skills))
	for _, skill := range p.Skills {
		task := d.factory.NewTask(pipeline.TaskSpec{
			Skill:      skill,
			GoalID:     goal.ID,
			GoalText:   goal.Description,
			Priority:   goal.Priority,
			InputPaths: inputPaths,
			Next:       models.NextActionDirectorReview,
		})
		if err := d.ws.WriteTask(task); err != nil {
			return nil, fmt.Errorf("persisting task %s: %w", task.ID, err)
		}
		tasks = append(tasks, task)
	}
	d.log.Info("Phase materialized", "goal_id", goal.ID, "phase", phase,
		"name", p.Name, "tasks", len(tasks))
	return tasks, nil
}

// dispatch hands tasks to the dispatcher when one is wired. Called only
// from the goal entry points; advancement and review leave dispatch to
// the completion router so tasks are never enqueued twice.
func (d *Director) dispatch(ctx context.Context, tasks []*models.Task) error {
	if d.dispatcher == nil || len(tasks) == 0 {
		return nil
	}
	return d.dispatcher.Dispatch(ctx, tasks)
}

// StartGoal creates, decomposes, and materializes phase one of a goal.
func (d *Director) StartGoal(ctx context.Context, spec GoalSpec) (*models.Goal, *models.GoalPlan, []*models.Task, error) {
	goal, err := d.CreateGoal(spec)
	if err != nil {
		return nil, nil, nil, err
	}
	plan, err := d.Decompose(goal)
	if err != nil {
		return goal, nil, nil, err
	}
	tasks, err := d.MaterializePhase(ctx, goal, plan, 0, nil)
	if err != nil {
		return goal, plan, tasks, err
	}
	if err := d.dispatch(ctx, tasks); err != nil {
		return goal, plan, tasks, fmt.Errorf("dispatching phase 0: %w", err)
	}
	return goal, plan, tasks, nil
}

// TriggerOptions carry the scheduler's and event bus's per-fire settings.
type TriggerOptions struct {
	Priority    models.Priority
	Category    models.GoalCategory
	Source      string
	Description string
}

// StartPipeline instantiates a run of a named pipeline template. With a
// launcher the run executes asynchronously and the run id returns
// immediately; without one the run executes on this goroutine.
func (d *Director) StartPipeline(ctx context.Context, template string, opts TriggerOptions) (string, error) {
	def, err := d.pipelines.Definition(template)
	if err != nil {
		return "", err
	}
	run := d.engine.NewRun(def, "")
	if err := d.ws.WritePipelineRun(run); err != nil {
		return "", fmt.Errorf("persisting pipeline run: %w", err)
	}

	engineOpts := pipeline.Options{
		GoalText: opts.Description,
		Priority: opts.Priority,
	}
	if engineOpts.GoalText == "" {
		engineOpts.GoalText = fmt.Sprintf("Execute the %s pipeline", template)
	}

	d.log.Info("Pipeline run starting", "run_id", run.ID,
		"template", template, "source", opts.Source)
	if d.launcher != nil {
		d.launcher.Launch(def, run, engineOpts, opts.Source)
		return run.ID, nil
	}
	res := d.engine.Execute(ctx, def, run, engineOpts)
	if res.Err != nil {
		return run.ID, res.Err
	}
	return run.ID, nil
}

// StartGoalFromSkill handles the goal:{skill} trigger form: a goal whose
// plan is a single phase running just that skill.
func (d *Director) StartGoalFromSkill(ctx context.Context, skill string, opts TriggerOptions) (string, error) {
	if !d.skills.Has(skill) {
		return "", fmt.Errorf("%w: %s", config.ErrSkillNotFound, skill)
	}
	category := opts.Category
	if !category.IsValid() {
		category = models.GoalCategoryMeasurement
	}
	description := opts.Description
	if description == "" {
		description = fmt.Sprintf("Scheduled %s run", skill)
	}
	goal, err := d.CreateGoal(GoalSpec{
		Description: description,
		Category:    category,
		Priority:    opts.Priority,
		Metadata:    map[string]string{"source": opts.Source},
	})
	if err != nil {
		return "", err
	}

	plan := &models.GoalPlan{
		GoalID:         goal.ID,
		Phases:         []models.PlanPhase{{Name: "phase-1-" + skill, Skills: []string{skill}}},
		EstimatedTasks: 1,
	}
	if err := d.ws.WriteGoalPlan(plan); err != nil {
		return goal.ID, fmt.Errorf("persisting goal plan: %w", err)
	}
	tasks, err := d.MaterializePhase(ctx, goal, plan, 0, nil)
	if err != nil {
		return goal.ID, err
	}
	if err := d.dispatch(ctx, tasks); err != nil {
		return goal.ID, fmt.Errorf("dispatching %s goal: %w", skill, err)
	}
	return goal.ID, nil
}

// CompleteGoal records goal completion in the learnings log. The goal
// document itself is immutable.
func (d *Director) CompleteGoal(goalID string) error {
	goal, err := d.ws.ReadGoal(goalID)
	if err != nil {
		return err
	}
	learning := models.Learning{
		Timestamp:   d.now().UTC(),
		Agent:       ReviewerName,
		GoalID:      goalID,
		Outcome:     "goal_completed",
		Learning:    fmt.Sprintf("Completed %s goal: %s", goal.Category, firstLine(goal.Description)),
		ActionTaken: "all phases approved",
	}
	if err := d.ws.AppendLearning(learning); err != nil {
		d.log.Warn("Failed to record goal completion learning",
			"goal_id", goalID, "error", err)
	}
	d.log.Info("Goal completed", "goal_id", goalID)
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
