package config

import (
	"fmt"
	"sort"
	"sync"

	"github.com/maestrohq/maestro/pkg/models"
)

// SquadConfig defines a marketing squad and its default model tier
type SquadConfig struct {
	// Human-readable description
	Description string `yaml:"description,omitempty"`

	// ModelTier is the default tier for this squad's skills.
	// Empty means the executor's built-in squad defaults apply.
	ModelTier models.ModelTier `yaml:"model_tier,omitempty"`
}

// SquadRegistry stores squad configurations in memory with thread-safe access
type SquadRegistry struct {
	squads map[string]*SquadConfig
	mu     sync.RWMutex
}

// NewSquadRegistry creates a new squad registry
func NewSquadRegistry(squads map[string]*SquadConfig) *SquadRegistry {
	copied := make(map[string]*SquadConfig, len(squads))
	for k, v := range squads {
		copied[k] = v
	}
	return &SquadRegistry{
		squads: copied,
	}
}

// Get retrieves a squad configuration by name (thread-safe)
func (r *SquadRegistry) Get(name string) (*SquadConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	squad, exists := r.squads[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrSquadNotFound, name)
	}
	return squad, nil
}

// GetAll returns all squad configurations (thread-safe, returns copy)
func (r *SquadRegistry) GetAll() map[string]*SquadConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]*SquadConfig, len(r.squads))
	for k, v := range r.squads {
		result[k] = v
	}
	return result
}

// Has checks if a squad exists in the registry (thread-safe)
func (r *SquadRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.squads[name]
	return exists
}

// Len returns the number of squads in the registry (thread-safe)
func (r *SquadRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.squads)
}

// Names returns a sorted list of all squad names.
func (r *SquadRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.squads))
	for name := range r.squads {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
