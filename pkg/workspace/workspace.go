// Package workspace owns the filesystem-backed document store: tasks,
// outputs, reviews, goals, learnings, and schedule state. All persisted
// entities live here; in-memory copies elsewhere are transient.
package workspace

import (
	"errors"
	"fmt"
	"path"

	"github.com/maestrohq/maestro/pkg/models"
)

var (
	// ErrNotFound indicates the requested document does not exist
	ErrNotFound = errors.New("workspace document not found")

	// ErrTaskNotFound indicates the task document does not exist
	ErrTaskNotFound = errors.New("task not found")

	// ErrGoalNotFound indicates the goal document does not exist
	ErrGoalNotFound = errors.New("goal not found")

	// ErrIllegalTransition indicates a task status update violated the
	// lifecycle table
	ErrIllegalTransition = errors.New("illegal task status transition")
)

// ContextPath is the shared product marketing context document. The
// foundation skill writes here instead of the per-skill output tree.
const ContextPath = "context/product-marketing-context.md"

// LearningsPath is the append-only memory log.
const LearningsPath = "memory/learnings.md"

// TaskOutputPath resolves where a task's deliverable lives. Foundation
// output replaces the shared context document; skills without a squad fall
// back to a flat per-skill directory.
func TaskOutputPath(squad, skill, taskID string, foundation bool) string {
	if foundation {
		return ContextPath
	}
	if squad == "" {
		return path.Join("outputs", skill, taskID+".md")
	}
	return path.Join("outputs", squad, skill, taskID+".md")
}

// TaskPath resolves the task document location.
func TaskPath(id string) string {
	return path.Join("tasks", id+".md")
}

// GoalPath resolves the goal document location.
func GoalPath(id string) string {
	return path.Join("goals", id+".md")
}

// GoalPlanPath resolves the goal plan document location.
func GoalPlanPath(id string) string {
	return path.Join("goals", id+"-plan.md")
}

// ReviewPath resolves the review document location.
func ReviewPath(id string) string {
	return path.Join("reviews", id+".md")
}

// ScheduleStatePath resolves the schedule state document location.
func ScheduleStatePath(id string) string {
	return path.Join("schedules", id+".json")
}

// PipelineRunPath resolves the pipeline run document location.
func PipelineRunPath(id string) string {
	return path.Join("pipelines", id+".json")
}

// Workspace is the persistence contract every component consumes. Paths
// are relative to the workspace root; implementations are responsible for
// concurrent-safe reads and writes of their own files.
type Workspace interface {
	// Raw file access
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte) error
	AppendFile(path string, data []byte) error
	FileExists(path string) bool
	ListDir(dir string) ([]string, error)
	RemoveFile(path string) error

	// Tasks
	ReadTask(id string) (*models.Task, error)
	WriteTask(task *models.Task) error
	UpdateTaskStatus(id string, status models.TaskStatus) error
	ListTasks() ([]*models.Task, error)

	// Outputs
	ReadOutput(outputPath string) (string, error)
	WriteOutput(outputPath, content string) error

	// Learnings
	ReadLearnings() ([]models.Learning, error)
	AppendLearning(l models.Learning) error

	// Goals
	ReadGoal(id string) (*models.Goal, error)
	WriteGoal(goal *models.Goal) error
	ListGoals() ([]*models.Goal, error)
	ReadGoalPlan(goalID string) (*models.GoalPlan, error)
	WriteGoalPlan(plan *models.GoalPlan) error

	// Reviews
	WriteReview(review *models.Review) error
	ListReviews(taskID string) ([]*models.Review, error)

	// Shared product context
	ReadContext() (string, error)
	ContextExists() bool

	// Schedule state
	ReadScheduleState(id string) (*models.ScheduleState, error)
	WriteScheduleState(state *models.ScheduleState) error

	// Pipeline runs
	ReadPipelineRun(id string) (*models.PipelineRun, error)
	WritePipelineRun(run *models.PipelineRun) error
}

// ValidateTransition checks a status move against the lifecycle table.
func ValidateTransition(id string, from, to models.TaskStatus) error {
	if !models.CanTransition(from, to) {
		return fmt.Errorf("%w: task %s %s -> %s", ErrIllegalTransition, id, from, to)
	}
	return nil
}
