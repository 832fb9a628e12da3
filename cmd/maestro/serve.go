package main

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/maestrohq/maestro/pkg/api"
	"github.com/maestrohq/maestro/pkg/budget"
	"github.com/maestrohq/maestro/pkg/config"
	"github.com/maestrohq/maestro/pkg/events"
	"github.com/maestrohq/maestro/pkg/health"
	"github.com/maestrohq/maestro/pkg/metrics"
	"github.com/maestrohq/maestro/pkg/models"
	"github.com/maestrohq/maestro/pkg/pipeline"
	"github.com/maestrohq/maestro/pkg/queue"
	"github.com/maestrohq/maestro/pkg/scheduler"
	"github.com/maestrohq/maestro/pkg/version"
	"github.com/maestrohq/maestro/pkg/workspace"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the orchestrator daemon: workers, scheduler, event bus, and HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("Starting maestro", "version", version.Full(), "config_dir", configDir)

	// 1. Configuration and workspace.
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	ws, err := openWorkspace(cfg)
	if err != nil {
		return err
	}

	// 2. Cost tracker, restored from the persisted ledger.
	tracker := buildTracker(cfg, ws)
	if tracker.State().Exhausted() {
		slog.Warn("Budget exhausted at startup; enqueues will be blocked until the window resets")
	}

	// 3. Execution stack.
	c, err := buildCore(cfg, ws, tracker)
	if err != nil {
		return err
	}

	// 4. Queue backend. Redis when configured and reachable, otherwise
	// the in-process adapter.
	adapter := selectAdapter(ctx, cfg.Queue)
	manager := queue.NewManager(adapter, ws, tracker.StateFunc(), cfg.Queue, time.Now)

	// 5. Director with async pipeline launches and queue dispatch.
	launcher := &pipelineLauncher{engine: c.engine}
	dir := c.director(manager, launcher)

	// 6. Completion routing and worker pool.
	router := queue.NewCompletionRouter(ws, dir)
	pool := queue.NewWorkerPool(adapter, manager, ws, c.executor, router, tracker.StateFunc(), cfg.Queue)

	// 7. Scheduler; the launcher reports pipeline completion back so the
	// overlap guard clears.
	sched := scheduler.New(cfg.Scheduler, ws, dir, tracker.StateFunc())
	launcher.setScheduler(sched)
	if err := sched.Start(ctx, cfg.Schedules); err != nil {
		slog.Error("Scheduler start failed", "error", err)
	}

	// 8. Event bus.
	bus := events.NewBus(cfg.Events, cfg.EventMappings, dir)

	// 9. Health monitor.
	monitor := health.NewMonitor()
	monitor.Register("workspace", workspaceCheck(ws))
	monitor.Register("queue", queueCheck(manager))
	monitor.Register("llm", llmCheck(cfg))

	// 10. Recover jobs stranded in the fallback directory by a previous
	// backend outage.
	if n, err := manager.RecoverFallback(ctx); err != nil {
		slog.Warn("Fallback recovery failed", "error", err)
	} else if n > 0 {
		slog.Info("Recovered fallback jobs", "count", n)
	}

	// 11. HTTP API.
	server := api.NewServer(api.Deps{
		Config:   cfg,
		WS:       ws,
		Tracker:  tracker,
		Monitor:  monitor,
		Pool:     pool,
		Director: dir,
		Bus:      bus,
	})

	pool.Start(ctx)
	go sched.Run(ctx)
	go sampleGauges(ctx, manager, tracker)

	serverErr := make(chan error, 1)
	go func() { serverErr <- server.Start() }()

	select {
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			slog.Error("API server failed", "error", err)
		}
		stop()
	}

	// Staged shutdown: scheduler state persists via its Run loop, then
	// workers drain, then HTTP.
	waitWithTimeout(pool.Stop, cfg.Queue.GracefulShutdownTimeout, "worker pool")
	waitWithTimeout(launcher.wait, cfg.Queue.GracefulShutdownTimeout, "pipeline launches")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Warn("API server shutdown failed", "error", err)
	}

	slog.Info("Maestro stopped")
	return nil
}

// selectAdapter picks the queue backend. An unreachable Redis degrades
// to the in-process adapter so the daemon still comes up.
func selectAdapter(ctx context.Context, cfg *config.QueueConfig) queue.Adapter {
	if cfg.Backend != config.QueueBackendRedis {
		return queue.NewMemoryAdapter()
	}
	adapter := queue.NewRedisAdapterFromAddr(cfg.RedisAddr)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := adapter.Ping(pingCtx); err != nil {
		slog.Warn("Redis unreachable, falling back to in-process queue",
			"addr", cfg.RedisAddr, "error", err)
		return queue.NewMemoryAdapter()
	}
	slog.Info("Connected to Redis queue backend", "addr", cfg.RedisAddr)
	return adapter
}

// waitWithTimeout runs a blocking stop function but gives up after the
// graceful window so shutdown never hangs on a stuck task.
func waitWithTimeout(stop func(), timeout time.Duration, what string) {
	done := make(chan struct{})
	go func() {
		stop()
		close(done)
	}()
	if timeout <= 0 {
		<-done
		return
	}
	select {
	case <-done:
	case <-time.After(timeout):
		slog.Warn("Graceful stop timed out", "component", what, "timeout", timeout)
	}
}

// sampleGauges refreshes the budget-level and queue-depth gauges every
// 15 seconds.
func sampleGauges(ctx context.Context, manager *queue.Manager, tracker *budget.Tracker) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.BudgetLevel.Set(float64(tracker.State().Level.Rank()))
			if depth, err := manager.Depth(ctx); err == nil {
				metrics.QueueDepth.Set(float64(depth))
			}
		}
	}
}

// workspaceCheck probes the workspace by listing the task directory. A
// missing directory just means an empty workspace.
func workspaceCheck(ws workspace.Workspace) health.CheckFunc {
	return func(ctx context.Context) health.ComponentHealth {
		if _, err := ws.ListDir("tasks"); err != nil && !errors.Is(err, workspace.ErrNotFound) {
			return health.ComponentHealth{Status: health.StatusOffline, Details: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	}
}

// queueCheck probes the queue backend.
func queueCheck(manager *queue.Manager) health.CheckFunc {
	return func(ctx context.Context) health.ComponentHealth {
		if err := manager.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusOffline, Details: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	}
}

// llmCheck verifies the API key is still present. No request is made;
// a paid call is too expensive for a liveness probe.
func llmCheck(cfg *config.Config) health.CheckFunc {
	return func(ctx context.Context) health.ComponentHealth {
		if getEnv(cfg.LLM.APIKeyEnv, "") == "" {
			return health.ComponentHealth{Status: health.StatusOffline, Details: "API key not set"}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	}
}

// pipelineLauncher runs pipeline executions on their own goroutines and
// clears the scheduler's overlap guard when a schedule-fired run ends.
type pipelineLauncher struct {
	engine *pipeline.Engine
	wg     sync.WaitGroup

	mu    sync.Mutex
	sched *scheduler.Scheduler
}

func (l *pipelineLauncher) setScheduler(s *scheduler.Scheduler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sched = s
}

// Launch implements director.Launcher.
func (l *pipelineLauncher) Launch(def *models.PipelineDefinition, run *models.PipelineRun, opts pipeline.Options, source string) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		res := l.engine.Execute(context.Background(), def, run, opts)
		slog.Info("Pipeline run finished",
			"run_id", run.ID, "status", res.Status, "source", source)

		if id, ok := strings.CutPrefix(source, "schedule:"); ok {
			l.mu.Lock()
			sched := l.sched
			l.mu.Unlock()
			if sched != nil {
				if err := sched.MarkCompleted(id); err != nil {
					slog.Warn("Could not clear schedule overlap guard",
						"schedule_id", id, "error", err)
				}
			}
		}
	}()
}

// wait blocks until all launched runs finish.
func (l *pipelineLauncher) wait() {
	l.wg.Wait()
}
