// Package events routes externally sourced events to pipelines and
// goals: ID dedup over a bounded LRU, per-type cooldowns, declarative
// condition evaluation, and dispatch through the director.
package events

import (
	"container/list"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/maestrohq/maestro/pkg/config"
	"github.com/maestrohq/maestro/pkg/director"
	"github.com/maestrohq/maestro/pkg/metrics"
	"github.com/maestrohq/maestro/pkg/models"
)

// Skip reasons reported per emit.
const (
	SkipDuplicateID = "duplicate_id"
	SkipCooldown    = "cooldown"
	SkipNoMapping   = "no_mapping"
	SkipCondition   = "condition_not_met"
	SkipTriggerErr  = "trigger_failed"
)

// Trigger is the slice of the director the bus dispatches through.
type Trigger interface {
	StartPipeline(ctx context.Context, template string, opts director.TriggerOptions) (string, error)
	StartGoalFromSkill(ctx context.Context, skill string, opts director.TriggerOptions) (string, error)
}

// EmitResult reports what one event caused.
type EmitResult struct {
	PipelinesTriggered int
	PipelineIDs        []string
	SkippedReasons     []string
}

// Bus is the event intake. Emit is safe for concurrent use.
type Bus struct {
	cfg      *config.EventBusConfig
	mappings []config.EventMappingConfig
	trigger  Trigger
	log      *slog.Logger
	now      func() time.Time

	mu sync.Mutex
	// seen is the bounded LRU of recent event ids: list of ids in
	// recency order plus an index into it.
	seen      *list.List
	seenIndex map[string]*list.Element
	// lastTrigger records the last successful trigger per event type for
	// cooldown checks.
	lastTrigger map[string]time.Time
}

// Option configures the bus.
type Option func(*Bus)

// WithClock injects a clock for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(b *Bus) { b.now = now }
}

// NewBus creates an event bus over the declarative mappings.
func NewBus(cfg *config.EventBusConfig, mappings []config.EventMappingConfig, trigger Trigger, opts ...Option) *Bus {
	b := &Bus{
		cfg:         cfg,
		mappings:    mappings,
		trigger:     trigger,
		log:         slog.With("component", "events"),
		now:         time.Now,
		seen:        list.New(),
		seenIndex:   make(map[string]*list.Element),
		lastTrigger: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Emit processes one event: dedup, cooldown, condition evaluation, then
// dispatch for each matching mapping. Never fails; skips carry reasons.
func (b *Bus) Emit(ctx context.Context, event *models.Event) *EmitResult {
	res := &EmitResult{}
	log := b.log.With("event_id", event.ID, "event_type", event.Type)

	b.mu.Lock()
	if b.isDuplicateLocked(event.ID) {
		b.mu.Unlock()
		log.Debug("Duplicate event id, skipping")
		res.SkippedReasons = append(res.SkippedReasons, SkipDuplicateID)
		return res
	}
	b.rememberLocked(event.ID)

	if reason, onCooldown := b.cooldownLocked(event.Type); onCooldown {
		b.mu.Unlock()
		log.Debug("Event type on cooldown, skipping")
		res.SkippedReasons = append(res.SkippedReasons, reason)
		return res
	}
	b.mu.Unlock()

	matched := false
	for _, mapping := range b.mappings {
		if mapping.Type != event.Type {
			continue
		}
		matched = true
		if !evalConditions(mapping.Conditions, event.Data) {
			res.SkippedReasons = append(res.SkippedReasons, SkipCondition)
			continue
		}

		id, err := b.dispatch(ctx, event, mapping)
		if err != nil {
			log.Error("Event trigger failed", "error", err)
			res.SkippedReasons = append(res.SkippedReasons, SkipTriggerErr)
			continue
		}
		res.PipelinesTriggered++
		res.PipelineIDs = append(res.PipelineIDs, id)
		metrics.EventsTriggered.WithLabelValues(event.Type).Inc()
	}

	if !matched {
		res.SkippedReasons = append(res.SkippedReasons, SkipNoMapping)
		return res
	}
	if res.PipelinesTriggered > 0 {
		b.mu.Lock()
		b.lastTrigger[event.Type] = b.now()
		b.mu.Unlock()
		log.Info("Event triggered work", "count", res.PipelinesTriggered)
	}
	return res
}

// dispatch fires one mapping through the director.
func (b *Bus) dispatch(ctx context.Context, event *models.Event, mapping config.EventMappingConfig) (string, error) {
	opts := director.TriggerOptions{
		Priority:    mapping.Priority,
		Category:    mapping.GoalCategory,
		Source:      "event:" + event.Type,
		Description: fmt.Sprintf("React to %s event from %s", event.Type, event.Source),
	}
	if mapping.GoalSkill != "" {
		return b.trigger.StartGoalFromSkill(ctx, mapping.GoalSkill, opts)
	}
	return b.trigger.StartPipeline(ctx, mapping.Pipeline, opts)
}

// cooldownLocked checks whether the event type's last successful trigger
// is within its cooldown window.
func (b *Bus) cooldownLocked(eventType string) (string, bool) {
	last, ok := b.lastTrigger[eventType]
	if !ok {
		return "", false
	}
	window := b.cfg.Cooldown
	for _, mapping := range b.mappings {
		if mapping.Type == eventType && mapping.Cooldown > 0 {
			window = mapping.Cooldown
			break
		}
	}
	if b.now().Sub(last) < window {
		return SkipCooldown, true
	}
	return "", false
}

func (b *Bus) isDuplicateLocked(id string) bool {
	_, ok := b.seenIndex[id]
	return ok
}

// rememberLocked records an event id, evicting the oldest id once the
// LRU is full.
func (b *Bus) rememberLocked(id string) {
	if elem, ok := b.seenIndex[id]; ok {
		b.seen.MoveToFront(elem)
		return
	}
	b.seenIndex[id] = b.seen.PushFront(id)
	for b.seen.Len() > b.cfg.DedupSize {
		oldest := b.seen.Back()
		b.seen.Remove(oldest)
		delete(b.seenIndex, oldest.Value.(string))
	}
}
