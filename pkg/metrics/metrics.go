// Package metrics registers the Prometheus collectors incremented across
// the orchestrator. Collectors live on the default registry so promhttp
// exposes them without extra wiring.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TasksExecuted counts executor runs by skill and terminal status.
	TasksExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "maestro",
		Name:      "tasks_executed_total",
		Help:      "Tasks executed, labeled by skill and terminal status.",
	}, []string{"skill", "status"})

	// TokensUsed counts LLM tokens by direction.
	TokensUsed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "maestro",
		Name:      "llm_tokens_total",
		Help:      "LLM tokens consumed, labeled by direction (input/output).",
	}, []string{"direction"})

	// SpentMicrodollars accumulates recorded cost in integer microdollars.
	SpentMicrodollars = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "maestro",
		Name:      "spend_microdollars_total",
		Help:      "Cumulative recorded spend in microdollars.",
	})

	// BudgetLevel gauges the current budget degradation (0=normal ..
	// 4=exhausted).
	BudgetLevel = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "maestro",
		Name:      "budget_level",
		Help:      "Current budget level: 0 normal, 1 warning, 2 throttle, 3 critical, 4 exhausted.",
	})

	// QueueDepth gauges queued jobs across priorities.
	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "maestro",
		Name:      "queue_depth",
		Help:      "Jobs currently queued across all priority classes.",
	})

	// ScheduleFires counts scheduler fires by schedule id.
	ScheduleFires = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "maestro",
		Name:      "schedule_fires_total",
		Help:      "Schedule fires, labeled by schedule id.",
	}, []string{"schedule_id"})

	// EventsTriggered counts event-bus dispatches by event type.
	EventsTriggered = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "maestro",
		Name:      "events_triggered_total",
		Help:      "Event-bus dispatches, labeled by event type.",
	}, []string{"type"})
)
