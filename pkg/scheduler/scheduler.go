// Package scheduler evaluates cron schedules deterministically: one tick
// per minute with per-schedule dedup, overlap protection, budget gating,
// catch-up replay, and persisted firing state.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/maestrohq/maestro/pkg/budget"
	"github.com/maestrohq/maestro/pkg/config"
	"github.com/maestrohq/maestro/pkg/director"
	"github.com/maestrohq/maestro/pkg/metrics"
	"github.com/maestrohq/maestro/pkg/models"
	"github.com/maestrohq/maestro/pkg/workspace"
)

// Skip reasons reported per tick.
const (
	SkipAlreadyFired    = "already_fired"
	SkipStillRunning    = "pipeline_still_running"
	SkipBudgetThrottle  = "budget_throttle"
	SkipBudgetExhausted = "budget_exhausted"
	SkipBadCron         = "invalid_cron"
	SkipFireFailed      = "fire_failed"
)

// ErrUnknownSchedule indicates an id with no registered schedule.
var ErrUnknownSchedule = errors.New("unknown schedule")

// Trigger is the slice of the director the scheduler fires through.
type Trigger interface {
	StartPipeline(ctx context.Context, template string, opts director.TriggerOptions) (string, error)
	StartGoalFromSkill(ctx context.Context, skill string, opts director.TriggerOptions) (string, error)
}

// Skip records one skipped schedule and why.
type Skip struct {
	ID     string
	Reason string
}

// TickResult reports one tick's outcome.
type TickResult struct {
	Fired   []string
	Skipped []Skip
}

// entry is one registered schedule with its parsed cron expression and
// mutable state.
type entry struct {
	schedule models.ScheduleEntry
	spec     cron.Schedule
	state    *models.ScheduleState
	// inFlight guards against overlapping runs: set on fire, cleared by
	// MarkCompleted.
	inFlight bool
}

// Scheduler owns the schedule-state map and the tick loop. Ticks are
// serialized; schedules are evaluated in registration order.
type Scheduler struct {
	cfg     *config.SchedulerConfig
	ws      workspace.Workspace
	trigger Trigger
	budget  budget.StateFunc
	log     *slog.Logger
	now     func() time.Time

	mu      sync.Mutex
	entries []*entry
	byID    map[string]*entry
	started bool
}

// Option configures the scheduler.
type Option func(*Scheduler)

// WithClock injects a clock for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// New creates a scheduler.
func New(cfg *config.SchedulerConfig, ws workspace.Workspace, trigger Trigger, budgetFn budget.StateFunc, opts ...Option) *Scheduler {
	s := &Scheduler{
		cfg:     cfg,
		ws:      ws,
		trigger: trigger,
		budget:  budgetFn,
		log:     slog.With("component", "scheduler"),
		now:     time.Now,
		byID:    make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start registers the schedules, restores their persisted state, and
// replays missed occurrences for catch-up schedules. Invalid cron
// expressions are logged and the schedule is registered disabled.
func (s *Scheduler) Start(ctx context.Context, schedules []models.ScheduleEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	s.started = true

	for _, sched := range schedules {
		e := &entry{schedule: sched}
		spec, err := cron.ParseStandard(sched.Cron)
		if err != nil {
			s.log.Error("Invalid cron expression, disabling schedule",
				"schedule_id", sched.ID, "cron", sched.Cron, "error", err)
			e.schedule.Enabled = false
		} else {
			e.spec = spec
		}

		state, err := s.ws.ReadScheduleState(sched.ID)
		if err != nil {
			state = &models.ScheduleState{ScheduleID: sched.ID}
		}
		e.state = state

		s.entries = append(s.entries, e)
		s.byID[sched.ID] = e
	}
	s.log.Info("Scheduler started", "schedules", len(s.entries))

	s.catchUpLocked(ctx)
	return nil
}

// catchUpLocked replays missed occurrences for catch-up schedules, in
// order, bounded by the lookback window and the per-schedule fire cap.
// Budget gating applies to each replayed fire.
func (s *Scheduler) catchUpLocked(ctx context.Context) {
	now := s.now()
	for _, e := range s.entries {
		if !e.schedule.Enabled || !e.schedule.CatchUp || e.spec == nil {
			continue
		}
		from := e.state.LastFiredAt
		if from.IsZero() || now.Sub(from) > s.cfg.CatchUpLookback {
			from = now.Add(-s.cfg.CatchUpLookback)
		}

		fired := 0
		for t := e.spec.Next(from); !t.After(now) && fired < s.cfg.MaxCatchUpFires; t = e.spec.Next(t) {
			if !s.budgetAllowsLocked(e) {
				s.log.Info("Catch-up fire skipped by budget",
					"schedule_id", e.schedule.ID, "occurrence", t)
				break
			}
			s.log.Info("Catch-up fire", "schedule_id", e.schedule.ID, "occurrence", t)
			if err := s.fireLocked(ctx, e, t); err != nil {
				s.log.Warn("Catch-up fire failed", "schedule_id", e.schedule.ID, "error", err)
				break
			}
			fired++
		}
	}
}

// Tick evaluates every enabled schedule against the current minute.
// Ticks never fire the same schedule twice within one minute floor.
func (s *Scheduler) Tick(ctx context.Context) *TickResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := &TickResult{}
	minute := s.now().Truncate(time.Minute)

	for _, e := range s.entries {
		if !e.schedule.Enabled {
			continue
		}
		if e.spec == nil {
			res.Skipped = append(res.Skipped, Skip{ID: e.schedule.ID, Reason: SkipBadCron})
			continue
		}
		// Cron match: the next occurrence strictly after minute-1s must
		// be the minute floor itself.
		if !e.spec.Next(minute.Add(-time.Second)).Equal(minute) {
			continue
		}
		if e.state.LastFiredAt.Equal(minute) {
			res.Skipped = append(res.Skipped, Skip{ID: e.schedule.ID, Reason: SkipAlreadyFired})
			continue
		}
		if e.inFlight {
			s.recordSkipLocked(e, SkipStillRunning)
			res.Skipped = append(res.Skipped, Skip{ID: e.schedule.ID, Reason: SkipStillRunning})
			continue
		}
		if !s.budgetAllowsLocked(e) {
			reason := SkipBudgetThrottle
			if s.budget().Exhausted() {
				reason = SkipBudgetExhausted
			}
			s.recordSkipLocked(e, reason)
			res.Skipped = append(res.Skipped, Skip{ID: e.schedule.ID, Reason: reason})
			continue
		}

		if err := s.fireLocked(ctx, e, minute); err != nil {
			s.log.Error("Schedule fire failed", "schedule_id", e.schedule.ID, "error", err)
			res.Skipped = append(res.Skipped, Skip{ID: e.schedule.ID, Reason: SkipFireFailed})
			continue
		}
		res.Fired = append(res.Fired, e.schedule.ID)
	}
	return res
}

// fireLocked invokes the director, marks the schedule in flight, and
// persists the new state.
func (s *Scheduler) fireLocked(ctx context.Context, e *entry, at time.Time) error {
	opts := director.TriggerOptions{
		Priority: e.schedule.Priority,
		Category: e.schedule.GoalCategory,
		Source:   "schedule:" + e.schedule.ID,
	}

	var err error
	pipelineFire := true
	if skill := e.schedule.GoalSkill(); skill != "" {
		// Goal fires are complete once the goal's tasks are dispatched,
		// so they never hold the overlap guard.
		pipelineFire = false
		_, err = s.trigger.StartGoalFromSkill(ctx, skill, opts)
	} else {
		_, err = s.trigger.StartPipeline(ctx, e.schedule.Target, opts)
	}
	if err != nil {
		return fmt.Errorf("firing %s: %w", e.schedule.ID, err)
	}

	e.inFlight = pipelineFire
	e.state.LastFiredAt = at
	e.state.LastSkipReason = ""
	e.state.FireCount++
	s.persistLocked(e)
	metrics.ScheduleFires.WithLabelValues(e.schedule.ID).Inc()
	s.log.Info("Schedule fired", "schedule_id", e.schedule.ID,
		"target", e.schedule.Target, "fire_count", e.state.FireCount)
	return nil
}

// MarkCompleted clears the overlap guard for a schedule. Idempotent;
// unknown ids return an error.
func (s *Scheduler) MarkCompleted(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSchedule, id)
	}
	e.inFlight = false
	return nil
}

// Stop persists every schedule's state and returns.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		s.persistLocked(e)
	}
	s.started = false
	s.log.Info("Scheduler stopped")
}

// State returns a copy of one schedule's state.
func (s *Scheduler) State(id string) (*models.ScheduleState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSchedule, id)
	}
	state := *e.state
	return &state, nil
}

func (s *Scheduler) budgetAllowsLocked(e *entry) bool {
	state := s.budget()
	return !state.Exhausted() && state.Allows(e.schedule.Priority)
}

func (s *Scheduler) recordSkipLocked(e *entry, reason string) {
	e.state.LastSkipReason = reason
	s.persistLocked(e)
}

// persistLocked writes schedule state, best-effort.
func (s *Scheduler) persistLocked(e *entry) {
	if err := s.ws.WriteScheduleState(e.state); err != nil {
		s.log.Warn("Failed to persist schedule state",
			"schedule_id", e.schedule.ID, "error", err)
	}
}

// Run drives Tick on the configured interval until the context ends.
// Intended for the daemon; tests call Tick directly.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.Stop()
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}
