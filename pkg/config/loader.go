package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"

	"github.com/maestrohq/maestro/pkg/models"
)

// MaestroYAMLConfig represents the complete maestro.yaml file structure
type MaestroYAMLConfig struct {
	System    *SystemConfig             `yaml:"system"`
	Budget    *BudgetConfig             `yaml:"budget"`
	LLM       *LLMConfig                `yaml:"llm"`
	Queue     *QueueConfig              `yaml:"queue"`
	Scheduler *SchedulerConfig          `yaml:"scheduler"`
	Events    *EventsYAMLConfig         `yaml:"events"`
	Director  *DirectorConfig           `yaml:"director"`
	Review    *ReviewConfig             `yaml:"review"`
	Server    *ServerConfig             `yaml:"server"`
	Skills    map[string]SkillConfig    `yaml:"skills"`
	Squads    map[string]SquadConfig    `yaml:"squads"`
	Pipelines map[string]PipelineConfig `yaml:"pipelines"`
	Schedules []models.ScheduleEntry    `yaml:"schedules"`
}

// EventsYAMLConfig groups event bus settings and mappings in YAML
type EventsYAMLConfig struct {
	DedupSize int                  `yaml:"dedup_size"`
	Cooldown  string               `yaml:"cooldown"` // Parsed to time.Duration
	Mappings  []EventMappingConfig `yaml:"mappings"`
}

// ToolsYAMLConfig represents the complete .agents/tools.yaml file structure
type ToolsYAMLConfig struct {
	Tools map[string]ToolConfig `yaml:"tools"`
}

// ToolsFile is the well-known tools declaration path, relative to configDir.
const ToolsFile = ".agents/tools.yaml"

// MainFile is the primary configuration file name.
const MainFile = "maestro.yaml"

// Initialize loads, validates, and returns ready-to-use configuration.
// This is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Load YAML files from configDir (both optional; built-ins apply)
//  2. Expand environment variables
//  3. Parse YAML into structs
//  4. Merge built-in + user-defined configurations
//  5. Load skill manifests from disk
//  6. Build in-memory registries
//  7. Apply default values and environment overrides
//  8. Validate all configuration
//  9. Return Config ready for use
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	cfg, err := load(ctx, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}

	stats := cfg.Stats()
	log.Info("Configuration initialized successfully",
		"skills", stats.Skills,
		"squads", stats.Squads,
		"tools", stats.Tools,
		"pipelines", stats.Pipelines,
		"schedules", stats.Schedules,
		"event_mappings", stats.Mappings)

	return cfg, nil
}

// load is the internal loader (not exported)
func load(_ context.Context, configDir string) (*Config, error) {
	loader := &configLoader{
		configDir: configDir,
	}

	// 1. Load maestro.yaml (missing file falls back to built-ins)
	userConfig, err := loader.loadMaestroYAML()
	if err != nil {
		return nil, NewLoadError(MainFile, err)
	}

	// 2. Load .agents/tools.yaml (optional)
	userTools, err := loader.loadToolsYAML()
	if err != nil {
		return nil, NewLoadError(ToolsFile, err)
	}

	// 3. Get built-in configuration
	builtin := GetBuiltinConfig()

	// 4. Merge built-in + user-defined components (user overrides built-in)
	skills := mergeSkills(builtin.Skills, userConfig.Skills)
	squads := mergeSquads(builtin.Squads, userConfig.Squads)
	pipelines := mergePipelines(builtin.Pipelines, userConfig.Pipelines)
	tools := mergeTools(userTools)

	// 5. Load skill manifests (user skills may declare a manifest path
	// instead of inline system_prompt)
	if err := loader.loadManifests(skills); err != nil {
		return nil, err
	}

	// 6. Build registries
	skillRegistry := NewSkillRegistry(skills)
	squadRegistry := NewSquadRegistry(squads)
	toolRegistry, err := NewToolRegistry(tools)
	if err != nil {
		return nil, err
	}
	pipelineRegistry := NewPipelineRegistry(pipelines)

	// 7. Resolve section configs (merge user YAML over built-in defaults;
	// non-zero user values override)
	systemCfg, err := resolveSection(DefaultSystemConfig(), userConfig.System, "system")
	if err != nil {
		return nil, err
	}
	budgetCfg, err := resolveSection(DefaultBudgetConfig(), userConfig.Budget, "budget")
	if err != nil {
		return nil, err
	}
	llmCfg, err := resolveSection(DefaultLLMConfig(), userConfig.LLM, "llm")
	if err != nil {
		return nil, err
	}
	queueCfg, err := resolveSection(DefaultQueueConfig(), userConfig.Queue, "queue")
	if err != nil {
		return nil, err
	}
	schedulerCfg, err := resolveSection(DefaultSchedulerConfig(), userConfig.Scheduler, "scheduler")
	if err != nil {
		return nil, err
	}
	directorCfg, err := resolveSection(DefaultDirectorConfig(), userConfig.Director, "director")
	if err != nil {
		return nil, err
	}
	reviewCfg, err := resolveSection(DefaultReviewConfig(), userConfig.Review, "review")
	if err != nil {
		return nil, err
	}
	serverCfg, err := resolveSection(DefaultServerConfig(), userConfig.Server, "server")
	if err != nil {
		return nil, err
	}

	eventsCfg, mappings := resolveEventsConfig(userConfig.Events)

	cfg := &Config{
		configDir:        configDir,
		System:           systemCfg,
		Budget:           budgetCfg,
		LLM:              llmCfg,
		Queue:            queueCfg,
		Scheduler:        schedulerCfg,
		Events:           eventsCfg,
		Director:         directorCfg,
		Review:           reviewCfg,
		Server:           serverCfg,
		Schedules:        userConfig.Schedules,
		EventMappings:    mappings,
		SkillRegistry:    skillRegistry,
		SquadRegistry:    squadRegistry,
		ToolRegistry:     toolRegistry,
		PipelineRegistry: pipelineRegistry,
	}

	// 8. Environment overrides win over YAML for the documented variables
	applyEnvOverrides(cfg)

	return cfg, nil
}

// resolveSection merges a user-provided section over its defaults.
func resolveSection[T any](defaults *T, user *T, section string) (*T, error) {
	if user == nil {
		return defaults, nil
	}
	if err := mergo.Merge(defaults, user, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("failed to merge %s config: %w", section, err)
	}
	return defaults, nil
}

// resolveEventsConfig resolves event bus settings and mappings from YAML,
// applying defaults.
func resolveEventsConfig(events *EventsYAMLConfig) (*EventBusConfig, []EventMappingConfig) {
	cfg := DefaultEventBusConfig()
	if events == nil {
		return cfg, nil
	}

	if events.DedupSize > 0 {
		cfg.DedupSize = events.DedupSize
	}
	if events.Cooldown != "" {
		if d, err := time.ParseDuration(events.Cooldown); err == nil {
			cfg.Cooldown = d
		} else {
			slog.Warn("Invalid cooldown in events config, using default",
				"value", events.Cooldown,
				"default", cfg.Cooldown,
				"error", err)
		}
	}
	return cfg, events.Mappings
}

// validate performs comprehensive validation on loaded configuration
func validate(cfg *Config) error {
	validator := NewValidator(cfg)
	return validator.ValidateAll()
}

type configLoader struct {
	configDir string
}

// loadYAML reads, env-expands, and parses one YAML file. Returns
// ErrConfigNotFound when the file does not exist so callers can decide
// whether that is fatal.
func (l *configLoader) loadYAML(filename string, target any) error {
	path := filepath.Join(l.configDir, filename)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return err
	}

	// Expand environment variables using {{.VAR}} template syntax.
	// Note: ExpandEnv passes through original data on parse/execution
	// errors, letting the YAML parser produce the clearer error message.
	data = ExpandEnv(data)

	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	return nil
}

func (l *configLoader) loadMaestroYAML() (*MaestroYAMLConfig, error) {
	var config MaestroYAMLConfig

	// Initialize maps to avoid nil maps
	config.Skills = make(map[string]SkillConfig)
	config.Squads = make(map[string]SquadConfig)
	config.Pipelines = make(map[string]PipelineConfig)

	if err := l.loadYAML(MainFile, &config); err != nil {
		if errors.Is(err, ErrConfigNotFound) {
			slog.Info("No maestro.yaml found, using built-in configuration")
			return &config, nil
		}
		return nil, err
	}

	return &config, nil
}

func (l *configLoader) loadToolsYAML() (map[string]ToolConfig, error) {
	var config ToolsYAMLConfig
	config.Tools = make(map[string]ToolConfig)

	if err := l.loadYAML(ToolsFile, &config); err != nil {
		if errors.Is(err, ErrConfigNotFound) {
			return config.Tools, nil
		}
		return nil, err
	}

	return config.Tools, nil
}

// loadManifests populates SystemPrompt from each skill's manifest path.
// Inline system_prompt wins when both are present.
func (l *configLoader) loadManifests(skills map[string]*SkillConfig) error {
	for name, skill := range skills {
		if skill.SystemPrompt != "" || skill.Manifest == "" {
			continue
		}
		path := filepath.Join(l.configDir, skill.Manifest)
		data, err := os.ReadFile(path)
		if err != nil {
			return NewValidationError("skill", name, "manifest",
				fmt.Errorf("cannot read %s: %w", path, err))
		}
		skill.SystemPrompt = string(data)
	}
	return nil
}
