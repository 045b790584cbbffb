package config

import "fmt"

// Validator validates configuration comprehensively with clear error messages.
type Validator struct {
	cfg *Config
}

// NewValidator creates a validator for the given configuration.
func NewValidator(cfg *Config) *Validator {
	return &Validator{cfg: cfg}
}

// ValidateAll performs comprehensive validation (fail-fast — stops at the
// first error). Order matters: pools must validate before stages (which
// reference them), stages before extensions (which may reference pools
// and subscribe to stage-completion topics).
func (v *Validator) ValidateAll() error {
	if err := v.validateQueue(); err != nil {
		return fmt.Errorf("queue validation failed: %w", err)
	}
	if err := v.validatePools(); err != nil {
		return fmt.Errorf("pool validation failed: %w", err)
	}
	if err := v.validateStages(); err != nil {
		return fmt.Errorf("stage validation failed: %w", err)
	}
	if err := v.validateEngines(); err != nil {
		return fmt.Errorf("engine validation failed: %w", err)
	}
	if err := v.validateExtensions(); err != nil {
		return fmt.Errorf("extension validation failed: %w", err)
	}
	if err := v.validateDefaults(); err != nil {
		return fmt.Errorf("defaults validation failed: %w", err)
	}
	return nil
}

func (v *Validator) validateQueue() error {
	q := v.cfg.Queue
	if q == nil {
		return fmt.Errorf("queue configuration is nil")
	}

	if q.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %v", q.PollInterval)
	}
	if q.PollIntervalJitter < 0 {
		return fmt.Errorf("poll_interval_jitter must be non-negative, got %v", q.PollIntervalJitter)
	}
	if q.PollIntervalJitter >= q.PollInterval {
		return fmt.Errorf("poll_interval_jitter must be less than poll_interval, got jitter=%v interval=%v", q.PollIntervalJitter, q.PollInterval)
	}
	if q.GracefulShutdownTimeout <= 0 {
		return fmt.Errorf("graceful_shutdown_timeout must be positive, got %v", q.GracefulShutdownTimeout)
	}
	if q.OrphanDetectionInterval <= 0 {
		return fmt.Errorf("orphan_detection_interval must be positive, got %v", q.OrphanDetectionInterval)
	}
	if q.OrphanThreshold <= 0 {
		return fmt.Errorf("orphan_threshold must be positive, got %v", q.OrphanThreshold)
	}
	if q.HeartbeatInterval <= 0 {
		return fmt.Errorf("heartbeat_interval must be positive, got %v", q.HeartbeatInterval)
	}
	if q.HeartbeatInterval >= q.OrphanThreshold {
		return fmt.Errorf("heartbeat_interval must be less than orphan_threshold to prevent false orphan detection, got heartbeat=%v threshold=%v", q.HeartbeatInterval, q.OrphanThreshold)
	}
	if q.MaxWorkerRequeues < 0 {
		return fmt.Errorf("max_worker_requeues must be non-negative, got %d", q.MaxWorkerRequeues)
	}

	return nil
}

func (v *Validator) validatePools() error {
	for name, pool := range v.cfg.PoolRegistry.GetAll() {
		if pool.Name == "" {
			return NewValidationError("pool", name, "name", fmt.Errorf("name is required"))
		}
		if !pool.ResourceTier.IsValid() {
			return NewValidationError("pool", name, "resource_tier", fmt.Errorf("invalid resource tier: %s", pool.ResourceTier))
		}
		if pool.MaxConcurrency < 1 {
			return NewValidationError("pool", name, "max_concurrency", fmt.Errorf("must be at least 1, got %d", pool.MaxConcurrency))
		}
		if pool.JobTimeout <= 0 {
			return NewValidationError("pool", name, "job_timeout", fmt.Errorf("must be positive, got %v", pool.JobTimeout))
		}
		if pool.StaleThreshold <= 0 {
			return NewValidationError("pool", name, "stale_pool_threshold", fmt.Errorf("must be positive, got %v", pool.StaleThreshold))
		}
	}
	return nil
}

func (v *Validator) validateStages() error {
	for name, stage := range v.cfg.StageRegistry.GetAll() {
		if stage.Pool == "" {
			return NewValidationError("stage", name, "pool", fmt.Errorf("pool is required"))
		}
		if !v.cfg.PoolRegistry.Has(stage.Pool) {
			return NewValidationError("stage", name, "pool", fmt.Errorf("%w: %s", ErrInvalidReference, stage.Pool))
		}
		for _, next := range stage.NextStages {
			if !v.cfg.StageRegistry.Has(next) {
				return NewValidationError("stage", name, "next_stages", fmt.Errorf("%w: %s", ErrInvalidReference, next))
			}
		}
	}
	return nil
}

func (v *Validator) validateEngines() error {
	for name, engine := range v.cfg.EngineRegistry.GetAll() {
		if !engine.Kind.IsValid() {
			return NewValidationError("engine", name, "kind", fmt.Errorf("invalid engine kind: %s", engine.Kind))
		}
	}
	return nil
}

func (v *Validator) validateExtensions() error {
	for name, ext := range v.cfg.ExtensionRegistry.GetAll() {
		if ext.APIPrefix == "" {
			return NewValidationError("extension", name, "api_prefix", fmt.Errorf("api_prefix is required"))
		}
		if ext.SchemaName == "" {
			return NewValidationError("extension", name, "schema_name", fmt.Errorf("schema_name is required"))
		}
		for _, pool := range ext.Pools {
			if v.cfg.PoolRegistry.Has(pool) {
				return NewValidationError("extension", name, "pools", fmt.Errorf("pool '%s' collides with a core pool name", pool))
			}
		}
	}
	return nil
}

func (v *Validator) validateDefaults() error {
	d := v.cfg.Defaults
	if d == nil {
		return fmt.Errorf("defaults configuration is nil")
	}

	if !d.ChunkMethod.IsValid() {
		return NewValidationError("defaults", "", "chunk_method", fmt.Errorf("invalid chunk method: %s", d.ChunkMethod))
	}
	if d.ChunkSize < 1 {
		return NewValidationError("defaults", "", "chunk_size", fmt.Errorf("must be at least 1, got %d", d.ChunkSize))
	}
	if d.ChunkOverlap < 0 {
		return NewValidationError("defaults", "", "chunk_overlap", fmt.Errorf("must be non-negative, got %d", d.ChunkOverlap))
	}
	if d.OCRConfidenceFloor < 0 || d.OCRConfidenceFloor > 1 {
		return NewValidationError("defaults", "", "ocr_confidence_floor", fmt.Errorf("must be in [0,1], got %v", d.OCRConfidenceFloor))
	}

	if d.Redaction != nil && d.Redaction.Enabled {
		builtin := GetBuiltinConfig()
		groupName := d.Redaction.PatternGroup
		if groupName == "" {
			return NewValidationError("defaults", "", "redaction.pattern_group",
				fmt.Errorf("pattern_group is required when redaction is enabled"))
		}
		if _, exists := builtin.PatternGroups[groupName]; !exists {
			return NewValidationError("defaults", "", "redaction.pattern_group",
				fmt.Errorf("pattern group '%s' not found in built-in groups", groupName))
		}
	}

	return nil
}
