// Package pipeline executes pipeline definitions step by step and fans
// parallel steps out under a bounded-concurrency harness.
package pipeline

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/maestrohq/maestro/pkg/agent"
	"github.com/maestrohq/maestro/pkg/models"
)

// Runner executes one task. Satisfied by *agent.Executor.
type Runner interface {
	Execute(ctx context.Context, task *models.Task) *agent.Result
}

// TaskOutcome is one slot of a parallel fan-out, positioned by input index.
// Started is false for tasks that were never launched because a sibling
// failed or the parent signal fired first.
type TaskOutcome struct {
	Index   int
	Task    *models.Task
	Started bool
	Result  *agent.Result
}

// FanOutResult collects a parallel fan-out in input order.
type FanOutResult struct {
	Outcomes []TaskOutcome

	// FirstFailureIndex is the input index of the first failure observed,
	// or -1 when every started task succeeded.
	FirstFailureIndex int

	// Aborted is true only when the parent signal fired, not when the
	// harness cancelled siblings after a failure.
	Aborted bool
}

// Failed reports whether any started task failed.
func (r *FanOutResult) Failed() bool {
	return r.FirstFailureIndex >= 0
}

// runParallel launches at most maxConcurrency tasks at a time. Each task
// sees a child context cancelled when the parent context is done or when
// any sibling fails. After cancellation no new tasks launch; outcomes come
// back in input order regardless of completion order.
func runParallel(ctx context.Context, tasks []*models.Task, maxConcurrency int, runner Runner) *FanOutResult {
	res := &FanOutResult{
		Outcomes:          make([]TaskOutcome, len(tasks)),
		FirstFailureIndex: -1,
	}
	for i, task := range tasks {
		res.Outcomes[i] = TaskOutcome{Index: i, Task: task}
	}
	if len(tasks) == 0 {
		return res
	}
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}

	childCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(maxConcurrency)

	for i, task := range tasks {
		// Launch gate: once the child context is cancelled, the
		// remaining tasks stay unstarted.
		if childCtx.Err() != nil {
			break
		}
		g.Go(func() error {
			if childCtx.Err() != nil {
				return nil
			}
			mu.Lock()
			res.Outcomes[i].Started = true
			mu.Unlock()

			taskRes := runner.Execute(childCtx, task)

			mu.Lock()
			res.Outcomes[i].Result = taskRes
			if taskRes.Failed() && res.FirstFailureIndex == -1 {
				res.FirstFailureIndex = i
				cancel()
			}
			mu.Unlock()
			return nil
		})
	}
	g.Wait() //nolint:errcheck // workers only return nil

	// Sibling failures may race; keep the smallest failed input index so
	// the report is deterministic.
	res.FirstFailureIndex = -1
	for i := range res.Outcomes {
		o := res.Outcomes[i]
		if o.Started && o.Result != nil && o.Result.Failed() {
			res.FirstFailureIndex = i
			break
		}
	}

	res.Aborted = ctx.Err() != nil
	return res
}
