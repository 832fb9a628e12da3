// Package health fans out per-component probes and fuses the results
// with the budget level into one derived system state.
package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/maestrohq/maestro/pkg/budget"
	"github.com/maestrohq/maestro/pkg/models"
)

// Status of a single component.
type Status string

const (
	StatusUp       Status = "up"
	StatusDegraded Status = "degraded"
	StatusOffline  Status = "offline"
)

// Level is the derived system degradation, 0 (healthy) to 4 (offline).
type Level int

const (
	LevelHealthy  Level = 0
	LevelDegraded Level = 1
	LevelReduced  Level = 2
	LevelPaused   Level = 3
	LevelOffline  Level = 4
)

// String names the level for logs and API responses.
func (l Level) String() string {
	switch l {
	case LevelHealthy:
		return "HEALTHY"
	case LevelDegraded, LevelReduced:
		return "DEGRADED"
	case LevelPaused:
		return "PAUSED"
	case LevelOffline:
		return "OFFLINE"
	default:
		return fmt.Sprintf("LEVEL_%d", int(l))
	}
}

// ComponentHealth is one probe's result.
type ComponentHealth struct {
	Status  Status `json:"status"`
	Details string `json:"details,omitempty"`
}

// CheckFunc probes one component. It should respect the context deadline;
// the monitor treats errors and timeouts as offline.
type CheckFunc func(ctx context.Context) ComponentHealth

// SystemHealth is the fused snapshot.
type SystemHealth struct {
	Level        Level                      `json:"level"`
	State        string                     `json:"state"`
	Components   map[string]ComponentHealth `json:"components"`
	ActiveAgents int                        `json:"active_agents"`
	QueueDepth   int                        `json:"queue_depth"`
	BudgetLevel  models.BudgetLevel         `json:"budget_level,omitempty"`
	CheckedAt    time.Time                  `json:"checked_at"`
}

// Monitor runs registered component checks concurrently with a per-check
// timeout.
type Monitor struct {
	timeout time.Duration
	now     func() time.Time

	mu     sync.Mutex
	names  []string
	checks map[string]CheckFunc
}

// Option configures the monitor.
type Option func(*Monitor)

// WithTimeout sets the per-check timeout. Defaults to 5 seconds.
func WithTimeout(d time.Duration) Option {
	return func(m *Monitor) { m.timeout = d }
}

// WithClock injects a clock for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// NewMonitor creates a health monitor.
func NewMonitor(opts ...Option) *Monitor {
	m := &Monitor{
		timeout: 5 * time.Second,
		now:     time.Now,
		checks:  make(map[string]CheckFunc),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register adds a named component check. Re-registering a name replaces
// its check.
func (m *Monitor) Register(name string, check CheckFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.checks[name]; !ok {
		m.names = append(m.names, name)
	}
	m.checks[name] = check
}

// CheckHealth fans the registered probes out, waits for all of them, and
// derives the system level. A nil budget skips budget fusion.
func (m *Monitor) CheckHealth(ctx context.Context, activeAgents, queueDepth int, budgetState *budget.State) *SystemHealth {
	m.mu.Lock()
	names := append([]string(nil), m.names...)
	checks := make(map[string]CheckFunc, len(m.checks))
	for name, check := range m.checks {
		checks[name] = check
	}
	m.mu.Unlock()

	health := &SystemHealth{
		Components:   make(map[string]ComponentHealth, len(names)),
		ActiveAgents: activeAgents,
		QueueDepth:   queueDepth,
		CheckedAt:    m.now().UTC(),
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, name := range names {
		check := checks[name]
		g.Go(func() error {
			result := m.runCheck(gctx, check)
			mu.Lock()
			health.Components[name] = result
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	offline, degraded := 0, 0
	for _, c := range health.Components {
		switch c.Status {
		case StatusOffline:
			offline++
		case StatusDegraded:
			degraded++
		}
	}

	level := LevelHealthy
	switch {
	case len(names) > 0 && offline == len(names):
		level = LevelOffline
	case offline >= 2:
		level = LevelPaused
	case offline == 1:
		level = LevelReduced
	case degraded > 0:
		level = LevelDegraded
	}

	if budgetState != nil {
		health.BudgetLevel = budgetState.Level
		switch budgetState.Level {
		case models.BudgetLevelExhausted:
			if level < LevelPaused {
				level = LevelPaused
			}
		case models.BudgetLevelCritical:
			if level < LevelReduced {
				level = LevelReduced
			}
		}
	}

	health.Level = level
	health.State = level.String()
	return health
}

// runCheck executes one probe under the per-check timeout, converting
// panics and timeouts into offline results.
func (m *Monitor) runCheck(ctx context.Context, check CheckFunc) (result ComponentHealth) {
	checkCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	done := make(chan ComponentHealth, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- ComponentHealth{Status: StatusOffline, Details: fmt.Sprintf("check panicked: %v", r)}
			}
		}()
		done <- check(checkCtx)
	}()

	select {
	case result = <-done:
		return result
	case <-checkCtx.Done():
		return ComponentHealth{Status: StatusOffline, Details: "health check timed out"}
	}
}
