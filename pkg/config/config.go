package config

// Config is the umbrella configuration object that encapsulates all
// registries, defaults, and configuration state. This is the primary
// object returned by Initialize() and used throughout the application.
type Config struct {
	configDir string

	Queue             *QueueConfig
	Defaults          *DefaultsConfig
	PoolRegistry      *PoolRegistry
	StageRegistry     *StageRegistry
	ExtensionRegistry *ExtensionRegistry
	EngineRegistry    *EngineRegistry
}

// Initialize is defined in loader.go

// ConfigStats contains statistics about loaded configuration, surfaced at
// startup for operator visibility.
type ConfigStats struct {
	Pools      int
	Stages     int
	Extensions int
	Engines    int
}

// Stats returns configuration statistics for logging/monitoring.
func (c *Config) Stats() ConfigStats {
	return ConfigStats{
		Pools:      c.PoolRegistry.Len(),
		Stages:     c.StageRegistry.Len(),
		Extensions: c.ExtensionRegistry.Len(),
		Engines:    c.EngineRegistry.Len(),
	}
}

// ConfigDir returns the configuration directory path.
func (c *Config) ConfigDir() string {
	return c.configDir
}

// GetPool retrieves a pool configuration by name.
// This is a convenience method that wraps PoolRegistry.Get().
func (c *Config) GetPool(name string) (*PoolConfig, error) {
	return c.PoolRegistry.Get(name)
}

// GetStage retrieves a stage configuration by name.
// This is a convenience method that wraps StageRegistry.Get().
func (c *Config) GetStage(name string) (*StageConfig, error) {
	return c.StageRegistry.Get(name)
}

// GetExtension retrieves an extension configuration by name.
// This is a convenience method that wraps ExtensionRegistry.Get().
func (c *Config) GetExtension(name string) (*ExtensionConfig, error) {
	return c.ExtensionRegistry.Get(name)
}

// GetEngine retrieves an engine configuration by name.
// This is a convenience method that wraps EngineRegistry.Get().
func (c *Config) GetEngine(name string) (*EngineConfig, error) {
	return c.EngineRegistry.Get(name)
}
