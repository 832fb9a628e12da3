package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/maestrohq/maestro/pkg/budget"
	"github.com/maestrohq/maestro/pkg/config"
	"github.com/maestrohq/maestro/pkg/workspace"
)

// PoolHealth is the pool's aggregate health snapshot.
type PoolHealth struct {
	Started     bool           `json:"started"`
	WorkerCount int            `json:"worker_count"`
	Active      int            `json:"active"`
	QueueDepth  int            `json:"queue_depth"`
	Workers     []WorkerHealth `json:"workers"`
}

// WorkerPool manages a fixed set of queue workers.
type WorkerPool struct {
	adapter  Adapter
	manager  *Manager
	ws       workspace.Workspace
	runner   Runner
	router   *CompletionRouter
	failures *FailureTracker
	budget   budget.StateFunc
	cfg      *config.QueueConfig
	workers  []*Worker
	started  bool
	mu       sync.Mutex
}

// NewWorkerPool creates a worker pool.
func NewWorkerPool(adapter Adapter, manager *Manager, ws workspace.Workspace, runner Runner, router *CompletionRouter, budgetFn budget.StateFunc, cfg *config.QueueConfig) *WorkerPool {
	return &WorkerPool{
		adapter:  adapter,
		manager:  manager,
		ws:       ws,
		runner:   runner,
		router:   router,
		failures: NewFailureTracker(cfg.FailureThreshold),
		budget:   budgetFn,
		cfg:      cfg,
		workers:  make([]*Worker, 0, cfg.WorkerCount),
	}
}

// Start spawns the worker goroutines. Safe to call multiple times;
// subsequent calls are no-ops.
func (p *WorkerPool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		slog.Warn("Worker pool already started, ignoring duplicate Start call")
		return
	}
	p.started = true

	slog.Info("Starting worker pool", "worker_count", p.cfg.WorkerCount)
	for i := 0; i < p.cfg.WorkerCount; i++ {
		worker := NewWorker(fmt.Sprintf("worker-%d", i), p.adapter, p.manager, p.ws,
			p.runner, p.router, p.failures, p.budget, p.cfg)
		p.workers = append(p.workers, worker)
		worker.Start(ctx)
	}
	slog.Info("Worker pool started")
}

// Stop signals all workers to stop and waits for them to finish their
// current jobs.
func (p *WorkerPool) Stop() {
	p.mu.Lock()
	workers := p.workers
	p.mu.Unlock()

	slog.Info("Stopping worker pool gracefully")
	for _, worker := range workers {
		worker.Stop()
	}
	slog.Info("Worker pool stopped")
}

// Failures exposes the pool's failure tracker.
func (p *WorkerPool) Failures() *FailureTracker {
	return p.failures
}

// Health returns the pool health snapshot.
func (p *WorkerPool) Health(ctx context.Context) *PoolHealth {
	p.mu.Lock()
	defer p.mu.Unlock()

	health := &PoolHealth{
		Started:     p.started,
		WorkerCount: len(p.workers),
	}
	for _, worker := range p.workers {
		wh := worker.Health()
		if wh.Status == WorkerStatusWorking {
			health.Active++
		}
		health.Workers = append(health.Workers, wh)
	}
	if depth, err := p.adapter.Depth(ctx); err == nil {
		health.QueueDepth = depth
	}
	return health
}
