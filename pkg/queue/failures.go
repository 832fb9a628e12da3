package queue

import "sync"

// FailureTracker counts consecutive failures per pipeline. Reaching the
// threshold flags the pipeline for a cascade pause; any success resets
// its counter.
type FailureTracker struct {
	mu        sync.Mutex
	threshold int
	counts    map[string]int
}

// NewFailureTracker creates a tracker. A non-positive threshold falls
// back to 3.
func NewFailureTracker(threshold int) *FailureTracker {
	if threshold <= 0 {
		threshold = 3
	}
	return &FailureTracker{
		threshold: threshold,
		counts:    make(map[string]int),
	}
}

// RecordFailure increments the pipeline's consecutive-failure count and
// returns the new count. Failures without a pipeline are not tracked.
func (t *FailureTracker) RecordFailure(pipelineID string) int {
	if pipelineID == "" {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts[pipelineID]++
	return t.counts[pipelineID]
}

// RecordSuccess resets the pipeline's counter.
func (t *FailureTracker) RecordSuccess(pipelineID string) {
	if pipelineID == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.counts, pipelineID)
}

// ShouldPause reports whether the pipeline hit the failure threshold.
func (t *FailureTracker) ShouldPause(pipelineID string) bool {
	if pipelineID == "" {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[pipelineID] >= t.threshold
}

// Count returns the pipeline's current consecutive-failure count.
func (t *FailureTracker) Count(pipelineID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[pipelineID]
}
