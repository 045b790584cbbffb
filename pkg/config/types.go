package config

// DocintelYAMLConfig is the shape of a user-supplied docintel.yaml. Every
// collection is a map keyed by name so a partially-specified file only
// overrides the entries it sets; everything else falls back to the
// built-in defaults (see builtin.go).
type DocintelYAMLConfig struct {
	Queue      *QueueConfig               `yaml:"queue,omitempty"`
	Pools      map[string]PoolConfig      `yaml:"pools,omitempty"`
	Stages     map[string]StageConfig     `yaml:"stages,omitempty"`
	Extensions map[string]ExtensionConfig `yaml:"extensions,omitempty"`
	Engines    map[string]EngineConfig    `yaml:"engines,omitempty"`
	Defaults   *DefaultsConfig            `yaml:"defaults,omitempty"`
}

// EngineConfig declares an out-of-process or in-process OCR/NER/embedding
// engine behind the uniform pipeline.Engine interface.
type EngineConfig struct {
	Name     string            `yaml:"name" validate:"required"`
	Kind     EngineKind        `yaml:"kind" validate:"required"`
	Endpoint string            `yaml:"endpoint,omitempty"`
	Options  map[string]string `yaml:"options,omitempty"`
}

// DefaultsConfig holds pipeline-wide tunables that don't belong to any
// single pool, stage, or extension.
type DefaultsConfig struct {
	DataRoot           string           `yaml:"data_root"`
	OCRConfidenceFloor float64          `yaml:"ocr_confidence_floor" validate:"omitempty,min=0,max=1"`
	OCRMinTextLength   int              `yaml:"ocr_min_text_length" validate:"omitempty,min=0"`
	ChunkSize          int              `yaml:"chunk_size" validate:"omitempty,min=1"`
	ChunkOverlap       int              `yaml:"chunk_overlap" validate:"omitempty,min=0"`
	ChunkMethod        ChunkMethod      `yaml:"chunk_method"`
	MaxWorkerRequeues  int              `yaml:"max_worker_requeues" validate:"omitempty,min=0"`
	Redaction          *RedactionConfig `yaml:"redaction,omitempty"`
}
