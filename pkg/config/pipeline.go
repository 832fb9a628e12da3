package config

import (
	"fmt"
	"sort"
	"sync"

	"github.com/maestrohq/maestro/pkg/models"
)

// PipelineStepConfig declares one step of a pipeline template
type PipelineStepConfig struct {
	// Type tags the step variant (sequential, parallel, review)
	Type models.StepType `yaml:"type"`

	// Skill for sequential steps
	Skill string `yaml:"skill,omitempty"`

	// Skills for parallel steps (min 1)
	Skills []string `yaml:"skills,omitempty"`

	// Reviewer for review steps
	Reviewer string `yaml:"reviewer,omitempty"`
}

// PipelineConfig declares a reusable pipeline template
type PipelineConfig struct {
	// Human-readable description
	Description string `yaml:"description,omitempty"`

	// Steps to execute in order (min 1)
	Steps []PipelineStepConfig `yaml:"steps"`
}

// PipelineRegistry stores pipeline templates in memory with thread-safe access
type PipelineRegistry struct {
	pipelines map[string]*PipelineConfig
	mu        sync.RWMutex
}

// NewPipelineRegistry creates a new pipeline registry
func NewPipelineRegistry(pipelines map[string]*PipelineConfig) *PipelineRegistry {
	copied := make(map[string]*PipelineConfig, len(pipelines))
	for k, v := range pipelines {
		copied[k] = v
	}
	return &PipelineRegistry{
		pipelines: copied,
	}
}

// Get retrieves a pipeline template by name (thread-safe)
func (r *PipelineRegistry) Get(name string) (*PipelineConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, exists := r.pipelines[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrPipelineNotFound, name)
	}
	return p, nil
}

// Definition materializes the template into a pipeline definition the
// engine can execute. The definition ID is the template name.
func (r *PipelineRegistry) Definition(name string) (*models.PipelineDefinition, error) {
	p, err := r.Get(name)
	if err != nil {
		return nil, err
	}

	steps := make([]models.PipelineStep, len(p.Steps))
	for i, s := range p.Steps {
		steps[i] = models.PipelineStep{
			Type:     s.Type,
			Skill:    s.Skill,
			Skills:   append([]string(nil), s.Skills...),
			Reviewer: s.Reviewer,
		}
	}
	return &models.PipelineDefinition{
		ID:    name,
		Name:  name,
		Steps: steps,
	}, nil
}

// GetAll returns all pipeline templates (thread-safe, returns copy)
func (r *PipelineRegistry) GetAll() map[string]*PipelineConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]*PipelineConfig, len(r.pipelines))
	for k, v := range r.pipelines {
		result[k] = v
	}
	return result
}

// Has checks if a pipeline template exists in the registry (thread-safe)
func (r *PipelineRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.pipelines[name]
	return exists
}

// Len returns the number of pipeline templates in the registry (thread-safe)
func (r *PipelineRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.pipelines)
}

// Names returns a sorted list of all pipeline template names.
func (r *PipelineRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.pipelines))
	for name := range r.pipelines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
