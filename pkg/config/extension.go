package config

import (
	"fmt"
	"sync"
)

// ExtensionConfig declares an analytic extension. An extension is either
// declared entirely inline or fetched from a pinned git ref via the
// extension host's manifest source (ManifestRef non-empty).
type ExtensionConfig struct {
	Name        string            `yaml:"name" validate:"required"`
	Version     string            `yaml:"version" validate:"required"`
	APIPrefix   string            `yaml:"api_prefix" validate:"required"`
	SchemaName  string            `yaml:"schema_name" validate:"required"`
	Subscribe   []string          `yaml:"subscribe,omitempty"`
	Publishes   []string          `yaml:"publishes,omitempty"`
	Pools       []string          `yaml:"pools,omitempty"`
	ManifestRef string            `yaml:"manifest_ref,omitempty"`
	Metadata    map[string]string `yaml:"metadata,omitempty"`
	Enabled     bool              `yaml:"enabled"`
}

// ExtensionRegistry stores extension configurations in memory with
// thread-safe access.
type ExtensionRegistry struct {
	extensions map[string]*ExtensionConfig
	mu         sync.RWMutex
}

// NewExtensionRegistry creates a new extension registry.
func NewExtensionRegistry(extensions map[string]*ExtensionConfig) *ExtensionRegistry {
	copied := make(map[string]*ExtensionConfig, len(extensions))
	for k, v := range extensions {
		copied[k] = v
	}
	return &ExtensionRegistry{extensions: copied}
}

// Get retrieves an extension configuration by name (thread-safe).
func (r *ExtensionRegistry) Get(name string) (*ExtensionConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ext, exists := r.extensions[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrExtensionNotFound, name)
	}
	return ext, nil
}

// GetAll returns all extension configurations (thread-safe, returns a copy).
func (r *ExtensionRegistry) GetAll() map[string]*ExtensionConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]*ExtensionConfig, len(r.extensions))
	for k, v := range r.extensions {
		result[k] = v
	}
	return result
}

// Has checks if an extension exists in the registry (thread-safe).
func (r *ExtensionRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.extensions[name]
	return exists
}

// Len returns the number of extensions in the registry (thread-safe).
func (r *ExtensionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.extensions)
}
