package workspace

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/maestrohq/maestro/pkg/models"
)

// FS is the filesystem-backed workspace rooted at a directory. A single
// writer lock serializes mutations; reads take the same lock because
// documents are small and local.
type FS struct {
	root string
	mu   sync.RWMutex
	log  *slog.Logger
	now  func() time.Time
}

// Option configures the filesystem workspace.
type Option func(*FS)

// WithClock injects a clock for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(f *FS) { f.now = now }
}

// NewFS opens a workspace at root, creating the directory if needed.
func NewFS(root string, opts ...Option) (*FS, error) {
	if root == "" {
		return nil, fmt.Errorf("workspace root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating workspace root: %w", err)
	}
	f := &FS{
		root: root,
		log:  slog.With("component", "workspace"),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Root returns the workspace root directory.
func (f *FS) Root() string {
	return f.root
}

// abs resolves a workspace-relative path and rejects escapes from the root.
func (f *FS) abs(rel string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(rel))
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("path %q escapes workspace root", rel)
	}
	return filepath.Join(f.root, cleaned), nil
}

// ReadFile reads a workspace-relative file.
func (f *FS) ReadFile(rel string) ([]byte, error) {
	path, err := f.abs(rel)
	if err != nil {
		return nil, err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, rel)
		}
		return nil, err
	}
	return data, nil
}

// WriteFile writes a workspace-relative file, creating parent directories.
func (f *FS) WriteFile(rel string, data []byte) error {
	path, err := f.abs(rel)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return writeFileAtomic(path, data)
}

// AppendFile appends to a workspace-relative file, creating it if missing.
func (f *FS) AppendFile(rel string, data []byte) error {
	path, err := f.abs(rel)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()
	_, err = file.Write(data)
	return err
}

// FileExists reports whether a workspace-relative file exists.
func (f *FS) FileExists(rel string) bool {
	path, err := f.abs(rel)
	if err != nil {
		return false
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// ListDir enumerates file names in a workspace subdirectory. A missing
// directory yields an empty list.
func (f *FS) ListDir(dir string) ([]string, error) {
	path, err := f.abs(dir)
	if err != nil {
		return nil, err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	entries, err := os.ReadDir(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

// RemoveFile deletes a workspace-relative file. Removing a missing file
// is not an error.
func (f *FS) RemoveFile(rel string) error {
	path, err := f.abs(rel)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// writeFileAtomic writes via a temp file and rename so readers never see a
// partial document.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

// ReadTask loads a task document.
func (f *FS) ReadTask(id string) (*models.Task, error) {
	data, err := f.ReadFile(TaskPath(id))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	task, err := decodeTask(data)
	if err != nil {
		return nil, fmt.Errorf("decoding task %s: %w", id, err)
	}
	return task, nil
}

// WriteTask persists a task document.
func (f *FS) WriteTask(task *models.Task) error {
	if task.ID == "" {
		return fmt.Errorf("task id is required")
	}
	task.UpdatedAt = f.now().UTC()
	data, err := encodeTask(task)
	if err != nil {
		return fmt.Errorf("encoding task %s: %w", task.ID, err)
	}
	return f.WriteFile(TaskPath(task.ID), data)
}

// UpdateTaskStatus moves a task through its lifecycle. Illegal transitions
// are rejected at this boundary.
func (f *FS) UpdateTaskStatus(id string, status models.TaskStatus) error {
	task, err := f.ReadTask(id)
	if err != nil {
		return err
	}
	if err := ValidateTransition(id, task.Status, status); err != nil {
		return err
	}
	task.Status = status
	return f.WriteTask(task)
}

// ListTasks loads every task document, sorted by ID. Undecodable documents
// are skipped with a warning so one corrupt file cannot wedge the queue.
func (f *FS) ListTasks() ([]*models.Task, error) {
	ids, err := f.listIDs("tasks", ".md")
	if err != nil {
		return nil, err
	}
	tasks := make([]*models.Task, 0, len(ids))
	for _, id := range ids {
		task, err := f.ReadTask(id)
		if err != nil {
			f.log.Warn("Skipping undecodable task document", "task_id", id, "error", err)
			continue
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// ReadOutput reads a task deliverable by its output path.
func (f *FS) ReadOutput(outputPath string) (string, error) {
	data, err := f.ReadFile(outputPath)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// WriteOutput persists a task deliverable.
func (f *FS) WriteOutput(outputPath, content string) error {
	return f.WriteFile(outputPath, []byte(content))
}

// ReadLearnings loads the full memory log.
func (f *FS) ReadLearnings() ([]models.Learning, error) {
	data, err := f.ReadFile(LearningsPath)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return parseLearnings(data), nil
}

// AppendLearning appends one entry to the memory log.
func (f *FS) AppendLearning(l models.Learning) error {
	if l.Timestamp.IsZero() {
		l.Timestamp = f.now().UTC()
	}
	return f.AppendFile(LearningsPath, encodeLearning(l))
}

// ReadGoal loads a goal document.
func (f *FS) ReadGoal(id string) (*models.Goal, error) {
	data, err := f.ReadFile(GoalPath(id))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrGoalNotFound, id)
	}
	goal, err := decodeGoal(data)
	if err != nil {
		return nil, fmt.Errorf("decoding goal %s: %w", id, err)
	}
	return goal, nil
}

// WriteGoal persists a goal document. Goals are written once at creation
// and treated as immutable afterwards.
func (f *FS) WriteGoal(goal *models.Goal) error {
	if goal.ID == "" {
		return fmt.Errorf("goal id is required")
	}
	data, err := encodeGoal(goal)
	if err != nil {
		return fmt.Errorf("encoding goal %s: %w", goal.ID, err)
	}
	return f.WriteFile(GoalPath(goal.ID), data)
}

// ListGoals loads every goal document, sorted by ID.
func (f *FS) ListGoals() ([]*models.Goal, error) {
	ids, err := f.listIDs("goals", ".md")
	if err != nil {
		return nil, err
	}
	goals := make([]*models.Goal, 0, len(ids))
	for _, id := range ids {
		if strings.HasSuffix(id, "-plan") {
			continue
		}
		goal, err := f.ReadGoal(id)
		if err != nil {
			f.log.Warn("Skipping undecodable goal document", "goal_id", id, "error", err)
			continue
		}
		goals = append(goals, goal)
	}
	return goals, nil
}

// ReadGoalPlan loads the phased plan persisted alongside a goal.
func (f *FS) ReadGoalPlan(goalID string) (*models.GoalPlan, error) {
	data, err := f.ReadFile(GoalPlanPath(goalID))
	if err != nil {
		return nil, err
	}
	var plan models.GoalPlan
	if _, err := decodeFrontmatter(data, &plan); err != nil {
		return nil, fmt.Errorf("decoding plan for goal %s: %w", goalID, err)
	}
	return &plan, nil
}

// WriteGoalPlan persists a goal plan. Written once at decomposition.
func (f *FS) WriteGoalPlan(plan *models.GoalPlan) error {
	if plan.GoalID == "" {
		return fmt.Errorf("plan goal id is required")
	}
	var body strings.Builder
	for i, phase := range plan.Phases {
		fmt.Fprintf(&body, "## Phase %d: %s\n\n", i+1, phase.Name)
		if phase.Description != "" {
			body.WriteString(phase.Description + "\n\n")
		}
	}
	data, err := encodeFrontmatter(plan, body.String())
	if err != nil {
		return fmt.Errorf("encoding plan for goal %s: %w", plan.GoalID, err)
	}
	return f.WriteFile(GoalPlanPath(plan.GoalID), data)
}

// WriteReview persists a review document.
func (f *FS) WriteReview(review *models.Review) error {
	if review.ID == "" {
		return fmt.Errorf("review id is required")
	}
	data, err := encodeReview(review)
	if err != nil {
		return fmt.Errorf("encoding review %s: %w", review.ID, err)
	}
	return f.WriteFile(ReviewPath(review.ID), data)
}

// ListReviews loads reviews for a task, newest last. An empty taskID lists
// every review.
func (f *FS) ListReviews(taskID string) ([]*models.Review, error) {
	ids, err := f.listIDs("reviews", ".md")
	if err != nil {
		return nil, err
	}
	reviews := make([]*models.Review, 0, len(ids))
	for _, id := range ids {
		data, err := f.ReadFile(ReviewPath(id))
		if err != nil {
			continue
		}
		review, err := decodeReview(data)
		if err != nil {
			f.log.Warn("Skipping undecodable review document", "review_id", id, "error", err)
			continue
		}
		if taskID != "" && review.TaskID != taskID {
			continue
		}
		reviews = append(reviews, review)
	}
	sort.Slice(reviews, func(i, j int) bool { return reviews[i].CreatedAt.Before(reviews[j].CreatedAt) })
	return reviews, nil
}

// ReadContext loads the shared product context document.
func (f *FS) ReadContext() (string, error) {
	return f.ReadOutput(ContextPath)
}

// ContextExists reports whether the shared product context exists yet.
func (f *FS) ContextExists() bool {
	return f.FileExists(ContextPath)
}

// ReadScheduleState loads one schedule's firing record.
func (f *FS) ReadScheduleState(id string) (*models.ScheduleState, error) {
	data, err := f.ReadFile(ScheduleStatePath(id))
	if err != nil {
		return nil, err
	}
	var state models.ScheduleState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decoding schedule state %s: %w", id, err)
	}
	return &state, nil
}

// WriteScheduleState persists one schedule's firing record.
func (f *FS) WriteScheduleState(state *models.ScheduleState) error {
	if state.ScheduleID == "" {
		return fmt.Errorf("schedule id is required")
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	return f.WriteFile(ScheduleStatePath(state.ScheduleID), data)
}

// ReadPipelineRun loads one pipeline run record.
func (f *FS) ReadPipelineRun(id string) (*models.PipelineRun, error) {
	data, err := f.ReadFile(PipelineRunPath(id))
	if err != nil {
		return nil, err
	}
	var run models.PipelineRun
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("decoding pipeline run %s: %w", id, err)
	}
	return &run, nil
}

// WritePipelineRun persists one pipeline run record.
func (f *FS) WritePipelineRun(run *models.PipelineRun) error {
	if run.ID == "" {
		return fmt.Errorf("pipeline run id is required")
	}
	run.UpdatedAt = f.now().UTC()
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return err
	}
	return f.WriteFile(PipelineRunPath(run.ID), data)
}

// listIDs enumerates document IDs (base names without extension) in a
// workspace subdirectory. A missing directory yields an empty list.
func (f *FS) listIDs(dir, ext string) ([]string, error) {
	path, err := f.abs(dir)
	if err != nil {
		return nil, err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	entries, err := os.ReadDir(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ext) || strings.HasPrefix(name, ".") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ext))
	}
	sort.Strings(ids)
	return ids, nil
}
