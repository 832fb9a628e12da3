package config

import "github.com/maestrohq/maestro/pkg/models"

// Config is the umbrella configuration object that encapsulates
// all registries, settings, and declarative triggers.
// This is the primary object returned by Initialize() and used throughout
// the application.
type Config struct {
	configDir string // Configuration directory path (for reference)

	System    *SystemConfig
	Budget    *BudgetConfig
	LLM       *LLMConfig
	Queue     *QueueConfig
	Scheduler *SchedulerConfig
	Events    *EventBusConfig
	Director  *DirectorConfig
	Review    *ReviewConfig
	Server    *ServerConfig

	// Declarative triggers
	Schedules     []models.ScheduleEntry
	EventMappings []EventMappingConfig

	// Component registries
	SkillRegistry    *SkillRegistry
	SquadRegistry    *SquadRegistry
	ToolRegistry     *ToolRegistry
	PipelineRegistry *PipelineRegistry
}

// Stats contains statistics about loaded configuration
type Stats struct {
	Skills    int
	Squads    int
	Tools     int
	Pipelines int
	Schedules int
	Mappings  int
}

// Stats returns configuration statistics for logging/monitoring
func (c *Config) Stats() Stats {
	s := Stats{
		Schedules: len(c.Schedules),
		Mappings:  len(c.EventMappings),
	}
	if c.SkillRegistry != nil {
		s.Skills = c.SkillRegistry.Len()
	}
	if c.SquadRegistry != nil {
		s.Squads = c.SquadRegistry.Len()
	}
	if c.ToolRegistry != nil {
		s.Tools = c.ToolRegistry.Len()
	}
	if c.PipelineRegistry != nil {
		s.Pipelines = c.PipelineRegistry.Len()
	}
	return s
}

// ConfigDir returns the configuration directory path
func (c *Config) ConfigDir() string {
	return c.configDir
}

// GetSkill retrieves a skill configuration by name.
// This is a convenience method that wraps SkillRegistry.Get().
func (c *Config) GetSkill(name string) (*SkillConfig, error) {
	return c.SkillRegistry.Get(name)
}

// GetSquad retrieves a squad configuration by name.
// This is a convenience method that wraps SquadRegistry.Get().
func (c *Config) GetSquad(name string) (*SquadConfig, error) {
	return c.SquadRegistry.Get(name)
}

// GetPipeline retrieves a pipeline template by name.
// This is a convenience method that wraps PipelineRegistry.Get().
func (c *Config) GetPipeline(name string) (*PipelineConfig, error) {
	return c.PipelineRegistry.Get(name)
}
