package config

import (
	"fmt"
	"sort"
	"sync"
)

// SkillConfig defines a named capability backed by a system-prompt manifest
type SkillConfig struct {
	// Human-readable description
	Description string `yaml:"description,omitempty"`

	// Squad this skill belongs to (empty for foundation skills)
	Squad string `yaml:"squad,omitempty"`

	// Foundation marks the skill that produces the shared product context
	Foundation bool `yaml:"foundation,omitempty"`

	// Manifest is the path to the skill's system-prompt markdown,
	// relative to the config directory. Loaded into SystemPrompt at startup.
	Manifest string `yaml:"manifest,omitempty"`

	// SystemPrompt is the manifest body. Populated by the loader; may be
	// set directly when constructing registries in tests.
	SystemPrompt string `yaml:"system_prompt,omitempty"`

	// ReferenceFiles are workspace paths appended to the user message,
	// droppable from the tail under context-budget pressure.
	ReferenceFiles []string `yaml:"reference_files,omitempty"`

	// DependsOn lists skills whose output this skill typically consumes.
	// Bidirectional pairs are permitted and logged at load time.
	DependsOn []string `yaml:"depends_on,omitempty"`

	// Tools this skill is allowed to invoke (tool names, not qualified actions)
	Tools []string `yaml:"tools,omitempty"`
}

// SkillRegistry stores skill configurations in memory with thread-safe access
type SkillRegistry struct {
	skills map[string]*SkillConfig
	mu     sync.RWMutex
}

// NewSkillRegistry creates a new skill registry
func NewSkillRegistry(skills map[string]*SkillConfig) *SkillRegistry {
	// Defensive copy to prevent external mutation
	copied := make(map[string]*SkillConfig, len(skills))
	for k, v := range skills {
		copied[k] = v
	}
	return &SkillRegistry{
		skills: copied,
	}
}

// Get retrieves a skill configuration by name (thread-safe)
func (r *SkillRegistry) Get(name string) (*SkillConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	skill, exists := r.skills[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrSkillNotFound, name)
	}
	return skill, nil
}

// SquadOf returns the squad a skill belongs to, or "" for foundation and
// unknown skills.
func (r *SkillRegistry) SquadOf(name string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	skill, exists := r.skills[name]
	if !exists {
		return ""
	}
	return skill.Squad
}

// IsFoundation reports whether the named skill is the foundation skill.
func (r *SkillRegistry) IsFoundation(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	skill, exists := r.skills[name]
	return exists && skill.Foundation
}

// ReferenceFiles returns a copy of the skill's reference file list.
// Unknown skills yield nil.
func (r *SkillRegistry) ReferenceFiles(name string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	skill, exists := r.skills[name]
	if !exists || len(skill.ReferenceFiles) == 0 {
		return nil
	}
	out := make([]string, len(skill.ReferenceFiles))
	copy(out, skill.ReferenceFiles)
	return out
}

// GetAll returns all skill configurations (thread-safe, returns copy)
func (r *SkillRegistry) GetAll() map[string]*SkillConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]*SkillConfig, len(r.skills))
	for k, v := range r.skills {
		result[k] = v
	}
	return result
}

// Has checks if a skill exists in the registry (thread-safe)
func (r *SkillRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.skills[name]
	return exists
}

// Len returns the number of skills in the registry (thread-safe)
func (r *SkillRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.skills)
}

// Names returns a sorted list of all skill names.
func (r *SkillRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.skills))
	for name := range r.skills {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
