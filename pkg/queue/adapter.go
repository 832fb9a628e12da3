package queue

import (
	"context"
	"sync"
)

// Adapter is the queue backend contract. Implementations keep FIFO order
// within a priority class; Claim prefers higher priorities.
type Adapter interface {
	// Submit places a job on the queue.
	Submit(ctx context.Context, job *Job) error

	// Claim pops the highest-priority ready job. Returns ErrQueueEmpty
	// when nothing is queued.
	Claim(ctx context.Context) (*Job, error)

	// Depth reports the number of queued jobs across all priorities.
	Depth(ctx context.Context) (int, error)

	// Ping checks backend liveness for health probes.
	Ping(ctx context.Context) error
}

// MemoryAdapter keeps jobs in process memory, one FIFO slice per
// priority class. It is the default backend and the test double.
type MemoryAdapter struct {
	mu    sync.Mutex
	lanes map[string][]*Job
}

// NewMemoryAdapter creates an empty in-memory queue.
func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{lanes: make(map[string][]*Job)}
}

// Submit appends the job to its priority lane.
func (m *MemoryAdapter) Submit(_ context.Context, job *Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	lane := string(job.Priority)
	m.lanes[lane] = append(m.lanes[lane], job)
	return nil
}

// Claim pops from the highest-priority non-empty lane.
func (m *MemoryAdapter) Claim(_ context.Context) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range priorityOrder {
		lane := string(p)
		if len(m.lanes[lane]) == 0 {
			continue
		}
		job := m.lanes[lane][0]
		m.lanes[lane] = m.lanes[lane][1:]
		return job, nil
	}
	return nil, ErrQueueEmpty
}

// Depth counts queued jobs across lanes.
func (m *MemoryAdapter) Depth(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, lane := range m.lanes {
		n += len(lane)
	}
	return n, nil
}

// Ping always succeeds for the in-memory backend.
func (m *MemoryAdapter) Ping(_ context.Context) error {
	return nil
}
