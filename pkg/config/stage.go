package config

import (
	"fmt"
	"sync"
)

// StageConfig declares one node in the pipeline DAG: which pool executes
// it, whether completion is mandatory for the owning document to reach
// `complete`, and which stage(s) the Pool Dispatcher enqueues on the
// stage's completion event.
type StageConfig struct {
	Name       string   `yaml:"name" validate:"required"`
	Pool       string   `yaml:"pool" validate:"required"`
	NextStages []string `yaml:"next_stages,omitempty"`
	Mandatory  bool     `yaml:"mandatory"`
}

// StageRegistry stores stage configurations in memory with thread-safe access.
type StageRegistry struct {
	stages map[string]*StageConfig
	mu     sync.RWMutex
}

// NewStageRegistry creates a new stage registry.
func NewStageRegistry(stages map[string]*StageConfig) *StageRegistry {
	copied := make(map[string]*StageConfig, len(stages))
	for k, v := range stages {
		copied[k] = v
	}
	return &StageRegistry{stages: copied}
}

// Get retrieves a stage configuration by name (thread-safe).
func (r *StageRegistry) Get(name string) (*StageConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stage, exists := r.stages[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrStageNotFound, name)
	}
	return stage, nil
}

// GetAll returns all stage configurations (thread-safe, returns a copy).
func (r *StageRegistry) GetAll() map[string]*StageConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]*StageConfig, len(r.stages))
	for k, v := range r.stages {
		result[k] = v
	}
	return result
}

// Mandatory returns the names of every stage flagged mandatory, used by
// the Content Store to decide when a document may transition to complete.
func (r *StageRegistry) Mandatory() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var names []string
	for name, s := range r.stages {
		if s.Mandatory {
			names = append(names, name)
		}
	}
	return names
}

// Has checks if a stage exists in the registry (thread-safe).
func (r *StageRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.stages[name]
	return exists
}

// Len returns the number of stages in the registry (thread-safe).
func (r *StageRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.stages)
}
