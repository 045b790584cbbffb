package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// Initialize loads, validates, and returns ready-to-use configuration.
// This is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Load docintel.yaml from configDir
//  2. Expand environment variables
//  3. Parse YAML into structs
//  4. Merge built-in + user-defined pools/stages/extensions/engines
//  5. Build in-memory registries
//  6. Apply default values
//  7. Validate all configuration
//  8. Return Config ready for use
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	cfg, err := load(ctx, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	stats := cfg.Stats()
	log.Info("Configuration initialized successfully",
		"pools", stats.Pools,
		"stages", stats.Stages,
		"extensions", stats.Extensions,
		"engines", stats.Engines)

	return cfg, nil
}

// load is the internal loader (not exported).
func load(_ context.Context, configDir string) (*Config, error) {
	loader := &configLoader{configDir: configDir}

	userConfig, err := loader.loadDocintelYAML()
	if err != nil {
		return nil, NewLoadError("docintel.yaml", err)
	}

	builtin := GetBuiltinConfig()

	pools := mergePools(builtin.Pools, userConfig.Pools)
	stages := mergeStages(builtin.Stages, userConfig.Stages)
	extensions := mergeExtensions(nil, userConfig.Extensions)
	engines := mergeEngines(builtin.Engines, userConfig.Engines)

	poolRegistry := NewPoolRegistry(pools)
	stageRegistry := NewStageRegistry(stages)
	extensionRegistry := NewExtensionRegistry(extensions)
	engineRegistry := NewEngineRegistry(engines)

	// Resolve queue config: start with defaults, then merge user config on
	// top so unset user fields preserve the built-in value.
	queueConfig := DefaultQueueConfig()
	if userConfig.Queue != nil {
		if err := mergo.Merge(queueConfig, userConfig.Queue, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge queue config: %w", err)
		}
	}

	defaultsConfig := resolveDefaults(userConfig.Defaults)

	return &Config{
		configDir:         configDir,
		Queue:             queueConfig,
		Defaults:          defaultsConfig,
		PoolRegistry:      poolRegistry,
		StageRegistry:     stageRegistry,
		ExtensionRegistry: extensionRegistry,
		EngineRegistry:    engineRegistry,
	}, nil
}

// validate performs comprehensive validation on loaded configuration.
func validate(cfg *Config) error {
	validator := NewValidator(cfg)
	return validator.ValidateAll()
}

// resolveDefaults merges user-provided pipeline defaults on top of the
// built-in floor values, applying built-in defaults for anything left unset.
func resolveDefaults(user *DefaultsConfig) *DefaultsConfig {
	cfg := &DefaultsConfig{
		DataRoot:           ".",
		OCRConfidenceFloor: 0.6,
		OCRMinTextLength:   20,
		ChunkSize:          800,
		ChunkOverlap:       100,
		ChunkMethod:        ChunkMethodSentence,
		MaxWorkerRequeues:  3,
		Redaction: &RedactionConfig{
			Enabled:      true,
			PatternGroup: "document",
		},
	}

	if user != nil {
		if err := mergo.Merge(cfg, user, mergo.WithOverride); err != nil {
			slog.Warn("failed to merge defaults config, using built-in floor", "error", err)
		}
	}

	// DATA_ROOT env var takes precedence over YAML
	if root := os.Getenv("DATA_ROOT"); root != "" {
		cfg.DataRoot = root
	}
	// MAX_WORKER_REQUEUES env var takes precedence over YAML
	if n := os.Getenv("MAX_WORKER_REQUEUES"); n != "" {
		if parsed, err := strconv.Atoi(n); err == nil {
			cfg.MaxWorkerRequeues = parsed
		}
	}
	return cfg
}

type configLoader struct {
	configDir string
}

func (l *configLoader) loadYAML(filename string, target any) error {
	path := filepath.Join(l.configDir, filename)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return err
	}

	// Expand environment variables (shell-style ${VAR}/$VAR syntax).
	// Note: ExpandEnv never errors — missing variables expand to empty
	// string, and validation catches required fields left empty.
	data = ExpandEnv(data)

	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	return nil
}

func (l *configLoader) loadDocintelYAML() (*DocintelYAMLConfig, error) {
	var cfg DocintelYAMLConfig
	cfg.Pools = make(map[string]PoolConfig)
	cfg.Stages = make(map[string]StageConfig)
	cfg.Extensions = make(map[string]ExtensionConfig)
	cfg.Engines = make(map[string]EngineConfig)

	if err := l.loadYAML("docintel.yaml", &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
