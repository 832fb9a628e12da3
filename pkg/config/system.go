package config

import (
	"time"

	"github.com/maestrohq/maestro/pkg/models"
)

// SystemConfig groups system-wide settings.
type SystemConfig struct {
	// WorkspaceDir is the root of the filesystem workspace.
	WorkspaceDir string `yaml:"workspace_dir"`
}

// SchedulerConfig controls the cron scheduler.
type SchedulerConfig struct {
	// TickInterval is how often schedules are evaluated. Cron matching is
	// minute-granular, so this should stay at or below one minute.
	TickInterval time.Duration `yaml:"tick_interval"`

	// CatchUpLookback bounds how far back missed occurrences are replayed
	// for schedules with catch_up enabled.
	CatchUpLookback time.Duration `yaml:"catch_up_lookback"`

	// MaxCatchUpFires caps replayed occurrences per schedule per start.
	MaxCatchUpFires int `yaml:"max_catch_up_fires"`
}

// DefaultSchedulerConfig returns the built-in scheduler defaults.
func DefaultSchedulerConfig() *SchedulerConfig {
	return &SchedulerConfig{
		TickInterval:    1 * time.Minute,
		CatchUpLookback: 24 * time.Hour,
		MaxCatchUpFires: 10,
	}
}

// EventBusConfig controls event dedup and cooldown behavior.
type EventBusConfig struct {
	// DedupSize is the capacity of the recent-event-id LRU.
	DedupSize int `yaml:"dedup_size"`

	// Cooldown is the default per-type window between successful triggers.
	// Mappings may override it.
	Cooldown time.Duration `yaml:"cooldown"`
}

// DefaultEventBusConfig returns the built-in event bus defaults.
func DefaultEventBusConfig() *EventBusConfig {
	return &EventBusConfig{
		DedupSize: 256,
		Cooldown:  15 * time.Minute,
	}
}

// EventConditionConfig is one declarative predicate over event data.
// Supported ops: eq, ne, gt, gte, lt, lte, contains.
type EventConditionConfig struct {
	Field string `yaml:"field"`
	Op    string `yaml:"op"`
	Value any    `yaml:"value"`
}

// EventMappingConfig maps an event type to a pipeline or goal trigger.
// Exactly one of Pipeline or GoalSkill must be set.
type EventMappingConfig struct {
	// Type is the event type this mapping matches.
	Type string `yaml:"type"`

	// Pipeline names the pipeline template to start.
	Pipeline string `yaml:"pipeline,omitempty"`

	// GoalSkill creates a single-skill goal instead of a pipeline.
	GoalSkill string `yaml:"goal_skill,omitempty"`

	// GoalCategory categorizes goals created by this mapping.
	GoalCategory models.GoalCategory `yaml:"goal_category,omitempty"`

	// Priority for the triggered work.
	Priority models.Priority `yaml:"priority,omitempty"`

	// Cooldown overrides the bus-wide per-type cooldown for this mapping's type.
	Cooldown time.Duration `yaml:"cooldown,omitempty"`

	// Conditions all have to hold for the mapping to fire.
	Conditions []EventConditionConfig `yaml:"conditions,omitempty"`
}

// DirectorConfig controls goal decomposition and review behavior.
type DirectorConfig struct {
	// StrictPhaseOrder makes recurring skills consume approvals
	// phase-by-phase during advancement. Defaults to true.
	StrictPhaseOrder *bool `yaml:"strict_phase_order,omitempty"`

	// MaxRevisions bounds how many times one task may be sent back
	// before the director escalates.
	MaxRevisions int `yaml:"max_revisions"`

	// DefaultPriority applies to goals created without one.
	DefaultPriority models.Priority `yaml:"default_priority"`
}

// StrictOrder resolves the StrictPhaseOrder pointer with its default.
func (c *DirectorConfig) StrictOrder() bool {
	return c.StrictPhaseOrder == nil || *c.StrictPhaseOrder
}

// DefaultDirectorConfig returns the built-in director defaults.
func DefaultDirectorConfig() *DirectorConfig {
	return &DirectorConfig{
		MaxRevisions:    2,
		DefaultPriority: models.PriorityP2,
	}
}

// ReviewConfig controls the review engine's scoring and verdicts.
type ReviewConfig struct {
	// Mode selects structural or semantic scoring.
	Mode ReviewMode `yaml:"mode"`

	// ApproveThreshold is the weighted score at or above which the
	// verdict is APPROVE.
	ApproveThreshold float64 `yaml:"approve_threshold"`

	// RejectThreshold is the weighted score below which the verdict
	// is REJECT.
	RejectThreshold float64 `yaml:"reject_threshold"`

	// DimensionMinimums set per-dimension floors. A dimension under its
	// minimum forces at least REVISE.
	DimensionMinimums map[string]float64 `yaml:"dimension_minimums,omitempty"`

	// Weights set per-dimension weights for the aggregate score.
	// Unlisted dimensions weigh 1.
	Weights map[string]float64 `yaml:"weights,omitempty"`
}

// DefaultReviewConfig returns the built-in review defaults.
func DefaultReviewConfig() *ReviewConfig {
	return &ReviewConfig{
		Mode:             ReviewModeStructural,
		ApproveThreshold: 7.0,
		RejectThreshold:  4.0,
		DimensionMinimums: map[string]float64{
			"completeness": 4.0,
		},
	}
}

// ServerConfig controls the ops HTTP API.
type ServerConfig struct {
	// ListenAddr is the host:port the API binds to.
	ListenAddr string `yaml:"listen_addr"`
}

// DefaultServerConfig returns the built-in server defaults.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		ListenAddr: ":8090",
	}
}
