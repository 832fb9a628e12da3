package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maestrohq/maestro/pkg/budget"
	"github.com/maestrohq/maestro/pkg/config"
	"github.com/maestrohq/maestro/pkg/models"
	"github.com/maestrohq/maestro/pkg/workspace"
)

func testWS(t *testing.T) workspace.Workspace {
	t.Helper()
	ws, err := workspace.NewFS(t.TempDir())
	require.NoError(t, err)
	return ws
}

// stateAt builds a budget state for a fixed level.
func stateAt(level models.BudgetLevel) budget.StateFunc {
	return func() budget.State {
		return budget.State{
			Level:             level,
			AllowedPriorities: budget.AllowedPriorities(level),
		}
	}
}

func testTask(id string, priority models.Priority) *models.Task {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	return &models.Task{
		ID:        id,
		Skill:     "copywriting",
		Priority:  priority,
		Status:    models.TaskStatusPending,
		Next:      models.NextAction{Type: models.NextActionComplete},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// failingAdapter rejects every submit.
type failingAdapter struct{}

func (failingAdapter) Submit(context.Context, *Job) error { return ErrQueueUnavailable }
func (failingAdapter) Claim(context.Context) (*Job, error) {
	return nil, ErrQueueEmpty
}
func (failingAdapter) Depth(context.Context) (int, error) { return 0, ErrQueueUnavailable }
func (failingAdapter) Ping(context.Context) error         { return ErrQueueUnavailable }

func TestMemoryAdapterPriorityOrder(t *testing.T) {
	ctx := context.Background()
	adapter := NewMemoryAdapter()

	submit := func(id string, p models.Priority) {
		require.NoError(t, adapter.Submit(ctx, &Job{ID: id, TaskID: id, Priority: p}))
	}
	submit("low-1", models.PriorityP3)
	submit("mid-1", models.PriorityP2)
	submit("high-1", models.PriorityP0)
	submit("mid-2", models.PriorityP2)

	var order []string
	for {
		job, err := adapter.Claim(ctx)
		if errors.Is(err, ErrQueueEmpty) {
			break
		}
		require.NoError(t, err)
		order = append(order, job.ID)
	}
	// Higher priority first, FIFO within a class.
	assert.Equal(t, []string{"high-1", "mid-1", "mid-2", "low-1"}, order)
}

func TestEnqueueHappyPath(t *testing.T) {
	ctx := context.Background()
	ws := testWS(t)
	adapter := NewMemoryAdapter()
	m := NewManager(adapter, ws, stateAt(models.BudgetLevelNormal), config.DefaultQueueConfig(), nil)

	task := testTask("task-20260310-aaa111", models.PriorityP2)
	require.NoError(t, ws.WriteTask(task))

	outcome, err := m.Enqueue(ctx, task)
	require.NoError(t, err)
	assert.Equal(t, OutcomeEnqueued, outcome)

	stored, err := ws.ReadTask(task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusAssigned, stored.Status)

	depth, err := m.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, depth)
}

func TestEnqueueBlockedWhenExhausted(t *testing.T) {
	ctx := context.Background()
	ws := testWS(t)
	adapter := NewMemoryAdapter()
	m := NewManager(adapter, ws, stateAt(models.BudgetLevelExhausted), config.DefaultQueueConfig(), nil)

	task := testTask("task-20260310-bbb222", models.PriorityP0)
	require.NoError(t, ws.WriteTask(task))

	outcome, err := m.Enqueue(ctx, task)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDeferred, outcome)

	stored, err := ws.ReadTask(task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusBlocked, stored.Status)

	depth, _ := m.Depth(ctx)
	assert.Zero(t, depth, "nothing reaches the queue when exhausted")
}

func TestEnqueueDefersDisallowedPriority(t *testing.T) {
	ctx := context.Background()
	ws := testWS(t)
	adapter := NewMemoryAdapter()
	// Throttle allows P0 and P1 only.
	m := NewManager(adapter, ws, stateAt(models.BudgetLevelThrottle), config.DefaultQueueConfig(), nil)

	deferred := testTask("task-20260310-ccc333", models.PriorityP2)
	allowed := testTask("task-20260310-ddd444", models.PriorityP1)
	require.NoError(t, ws.WriteTask(deferred))
	require.NoError(t, ws.WriteTask(allowed))

	outcome, err := m.Enqueue(ctx, deferred)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDeferred, outcome)

	stored, _ := ws.ReadTask(deferred.ID)
	assert.Equal(t, models.TaskStatusDeferred, stored.Status)

	outcome, err = m.Enqueue(ctx, allowed)
	require.NoError(t, err)
	assert.Equal(t, OutcomeEnqueued, outcome)
}

func TestEnqueueFallsBackToDisk(t *testing.T) {
	ctx := context.Background()
	ws := testWS(t)
	cfg := config.DefaultQueueConfig()
	m := NewManager(failingAdapter{}, ws, stateAt(models.BudgetLevelNormal), cfg, nil)

	task := testTask("task-20260310-eee555", models.PriorityP1)
	require.NoError(t, ws.WriteTask(task))

	outcome, err := m.Enqueue(ctx, task)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFallback, outcome)

	names, err := ws.ListDir(cfg.FallbackDir)
	require.NoError(t, err)
	require.Len(t, names, 1)
}

func TestRecoverFallbackResubmits(t *testing.T) {
	ctx := context.Background()
	ws := testWS(t)
	cfg := config.DefaultQueueConfig()

	// First manager writes the fallback; second one recovers it into a
	// healthy backend.
	broken := NewManager(failingAdapter{}, ws, stateAt(models.BudgetLevelNormal), cfg, nil)
	task := testTask("task-20260310-fff666", models.PriorityP1)
	require.NoError(t, ws.WriteTask(task))
	_, err := broken.Enqueue(ctx, task)
	require.NoError(t, err)

	adapter := NewMemoryAdapter()
	healthy := NewManager(adapter, ws, stateAt(models.BudgetLevelNormal), cfg, nil)
	recovered, err := healthy.RecoverFallback(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, recovered)

	job, err := adapter.Claim(ctx)
	require.NoError(t, err)
	assert.Equal(t, task.ID, job.TaskID)
	assert.Equal(t, 1, job.Attempts)

	names, err := ws.ListDir(cfg.FallbackDir)
	require.NoError(t, err)
	assert.Empty(t, names, "recovered job removed from disk")
}

func TestDispatchEnqueuesAll(t *testing.T) {
	ctx := context.Background()
	ws := testWS(t)
	adapter := NewMemoryAdapter()
	m := NewManager(adapter, ws, stateAt(models.BudgetLevelNormal), config.DefaultQueueConfig(), nil)

	tasks := []*models.Task{
		testTask("task-20260310-abc001", models.PriorityP1),
		testTask("task-20260310-abc002", models.PriorityP2),
	}
	for _, task := range tasks {
		require.NoError(t, ws.WriteTask(task))
	}

	require.NoError(t, m.Dispatch(ctx, tasks))
	depth, _ := m.Depth(ctx)
	assert.Equal(t, 2, depth)
}

func TestFailureTrackerThreshold(t *testing.T) {
	ft := NewFailureTracker(3)

	assert.False(t, ft.ShouldPause("run-1"))
	ft.RecordFailure("run-1")
	ft.RecordFailure("run-1")
	assert.False(t, ft.ShouldPause("run-1"))
	ft.RecordFailure("run-1")
	assert.True(t, ft.ShouldPause("run-1"))

	// Success resets the streak.
	ft.RecordSuccess("run-1")
	assert.False(t, ft.ShouldPause("run-1"))
	assert.Zero(t, ft.Count("run-1"))
}

func TestFailureTrackerIgnoresEmptyPipeline(t *testing.T) {
	ft := NewFailureTracker(1)
	ft.RecordFailure("")
	assert.False(t, ft.ShouldPause(""))
}
