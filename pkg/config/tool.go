package config

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// QualifiedToolName builds the wire-level name for one tool action.
// Tool names sent to the LLM use the {tool}__{action} form so a single
// flat namespace covers every action of every tool.
func QualifiedToolName(tool, action string) string {
	return tool + "__" + action
}

// SplitQualifiedToolName splits a {tool}__{action} name. Returns ok=false
// when the separator is missing.
func SplitQualifiedToolName(qualified string) (tool, action string, ok bool) {
	idx := strings.Index(qualified, "__")
	if idx <= 0 || idx+2 >= len(qualified) {
		return "", "", false
	}
	return qualified[:idx], qualified[idx+2:], true
}

// ParameterSchema is a JSON-schema object fragment for one action's input
type ParameterSchema struct {
	Type       string         `yaml:"type" json:"type"`
	Properties map[string]any `yaml:"properties,omitempty" json:"properties,omitempty"`
	Required   []string       `yaml:"required,omitempty" json:"required,omitempty"`
}

// ToolActionConfig declares one invocable action of a tool
type ToolActionConfig struct {
	Name        string          `yaml:"name"`
	Description string          `yaml:"description"`
	Parameters  ParameterSchema `yaml:"parameters"`
}

// RateLimitConfig caps tool invocations
type RateLimitConfig struct {
	MaxPerMinute int `yaml:"max_per_minute"`
}

// ToolConfig declares a tool, its provider, and the skills allowed to use it
type ToolConfig struct {
	// Human-readable description
	Description string `yaml:"description"`

	// Provider determines how actions execute (stub, mcp, rest)
	Provider ToolProviderType `yaml:"provider"`

	// Enabled defaults to true when omitted
	Enabled *bool `yaml:"enabled,omitempty"`

	// CredentialsEnv names the environment variable holding credentials
	CredentialsEnv string `yaml:"credentials_env,omitempty"`

	// Skills allowed to invoke this tool
	Skills []string `yaml:"skills"`

	// RateLimit caps invocation frequency (optional)
	RateLimit *RateLimitConfig `yaml:"rate_limit,omitempty"`

	// Actions this tool exposes (min 1)
	Actions []ToolActionConfig `yaml:"actions"`
}

// IsEnabled resolves the Enabled pointer with its default
func (t *ToolConfig) IsEnabled() bool {
	return t.Enabled == nil || *t.Enabled
}

// AllowsSkill reports whether the named skill may invoke this tool
func (t *ToolConfig) AllowsSkill(skill string) bool {
	for _, s := range t.Skills {
		if s == skill {
			return true
		}
	}
	return false
}

// ToolRegistry stores tool configurations in memory with thread-safe access.
// Qualified action names are globally unique, enforced at construction.
type ToolRegistry struct {
	tools map[string]*ToolConfig
	// qualified name → (tool name, action index), built once
	actions map[string]actionRef
	mu      sync.RWMutex
}

type actionRef struct {
	tool   string
	action int
}

// NewToolRegistry creates a new tool registry. Duplicate qualified action
// names are a construction error.
func NewToolRegistry(tools map[string]*ToolConfig) (*ToolRegistry, error) {
	copied := make(map[string]*ToolConfig, len(tools))
	actions := make(map[string]actionRef)

	for name, tool := range tools {
		copied[name] = tool
		for i, action := range tool.Actions {
			qualified := QualifiedToolName(name, action.Name)
			if prev, exists := actions[qualified]; exists {
				return nil, NewValidationError("tool", name, "actions",
					fmt.Errorf("qualified name %q collides with tool %q", qualified, prev.tool))
			}
			actions[qualified] = actionRef{tool: name, action: i}
		}
	}

	return &ToolRegistry{
		tools:   copied,
		actions: actions,
	}, nil
}

// Get retrieves a tool configuration by name (thread-safe)
func (r *ToolRegistry) Get(name string) (*ToolConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, exists := r.tools[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return tool, nil
}

// ResolveAction maps a qualified {tool}__{action} name to its tool and
// action declaration.
func (r *ToolRegistry) ResolveAction(qualified string) (string, *ToolConfig, *ToolActionConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ref, exists := r.actions[qualified]
	if !exists {
		return "", nil, nil, fmt.Errorf("%w: %s", ErrToolNotFound, qualified)
	}
	tool := r.tools[ref.tool]
	return ref.tool, tool, &tool.Actions[ref.action], nil
}

// ForSkill returns the enabled tools that list the given skill, sorted by
// tool name for deterministic prompt and definition ordering.
func (r *ToolRegistry) ForSkill(skill string) map[string]*ToolConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]*ToolConfig)
	for name, tool := range r.tools {
		if tool.IsEnabled() && tool.AllowsSkill(skill) {
			result[name] = tool
		}
	}
	return result
}

// QualifiedNamesForSkill returns the sorted qualified action names the
// given skill may invoke.
func (r *ToolRegistry) QualifiedNamesForSkill(skill string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var names []string
	for qualified, ref := range r.actions {
		tool := r.tools[ref.tool]
		if tool.IsEnabled() && tool.AllowsSkill(skill) {
			names = append(names, qualified)
		}
	}
	sort.Strings(names)
	return names
}

// GetAll returns all tool configurations (thread-safe, returns copy)
func (r *ToolRegistry) GetAll() map[string]*ToolConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]*ToolConfig, len(r.tools))
	for k, v := range r.tools {
		result[k] = v
	}
	return result
}

// Has checks if a tool exists in the registry (thread-safe)
func (r *ToolRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.tools[name]
	return exists
}

// Len returns the number of tools in the registry (thread-safe)
func (r *ToolRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}
