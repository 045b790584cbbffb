package config

import (
	"sync"
	"time"
)

// BuiltinConfig holds all built-in configuration data: the default pool
// topology, stage DAG, engine registrations, and masking patterns used to
// redact sensitive text before it's persisted to the event log or handed
// to an extension.
type BuiltinConfig struct {
	Pools           map[string]PoolConfig
	Stages          map[string]StageConfig
	Engines         map[string]EngineConfig
	MaskingPatterns map[string]MaskingPattern
	PatternGroups   map[string][]string
	CodeMaskers     []string
}

// MaskingPattern defines a regex-based redaction pattern.
type MaskingPattern struct {
	Pattern     string
	Replacement string
	Description string
}

var (
	builtinConfig     *BuiltinConfig
	builtinConfigOnce sync.Once
)

// GetBuiltinConfig returns the singleton built-in configuration (thread-safe, lazy-initialized).
func GetBuiltinConfig() *BuiltinConfig {
	builtinConfigOnce.Do(initBuiltinConfig)
	return builtinConfig
}

func initBuiltinConfig() {
	builtinConfig = &BuiltinConfig{
		Pools:           initBuiltinPools(),
		Stages:          initBuiltinStages(),
		Engines:         initBuiltinEngines(),
		MaskingPatterns: initBuiltinMaskingPatterns(),
		PatternGroups:   initBuiltinPatternGroups(),
		CodeMaskers:     initBuiltinCodeMaskers(),
	}
}

// initBuiltinPools returns the default pool topology covering every
// default stage's resource class.
func initBuiltinPools() map[string]PoolConfig {
	return map[string]PoolConfig{
		"extract": {
			Name:           "extract",
			ResourceTier:   TierCPUExtract,
			MaxConcurrency: 4,
			JobTimeout:     2 * time.Minute,
			StaleThreshold: 1 * time.Minute,
		},
		"ocr-fast": {
			Name:           "ocr-fast",
			ResourceTier:   TierGPUPaddle,
			MaxConcurrency: 2,
			JobTimeout:     3 * time.Minute,
			StaleThreshold: 1 * time.Minute,
		},
		"ocr-heavy": {
			Name:           "ocr-heavy",
			ResourceTier:   TierGPUQwen,
			MaxConcurrency: 1,
			JobTimeout:     5 * time.Minute,
			StaleThreshold: 2 * time.Minute,
		},
		"normalize": {
			Name:           "normalize",
			ResourceTier:   TierCPULight,
			MaxConcurrency: 8,
			JobTimeout:     30 * time.Second,
			StaleThreshold: 1 * time.Minute,
		},
		"ner": {
			Name:           "ner",
			ResourceTier:   TierCPUNER,
			MaxConcurrency: 4,
			JobTimeout:     1 * time.Minute,
			StaleThreshold: 1 * time.Minute,
		},
		"chunk": {
			Name:           "chunk",
			ResourceTier:   TierCPULight,
			MaxConcurrency: 8,
			JobTimeout:     30 * time.Second,
			StaleThreshold: 1 * time.Minute,
		},
		"embed": {
			Name:           "embed",
			ResourceTier:   TierGPUEmbed,
			MaxConcurrency: 2,
			JobTimeout:     2 * time.Minute,
			StaleThreshold: 1 * time.Minute,
		},
	}
}

// initBuiltinStages returns the default document pipeline DAG state
// machine: extract → (ocr) → normalize → ner → chunk → embed.
func initBuiltinStages() map[string]StageConfig {
	return map[string]StageConfig{
		"extract": {
			Name:       "extract",
			Pool:       "extract",
			NextStages: []string{"normalize"},
			Mandatory:  true,
		},
		"ocr": {
			Name:       "ocr",
			Pool:       "ocr-fast",
			NextStages: []string{"normalize"},
			Mandatory:  true,
		},
		"normalize": {
			Name:       "normalize",
			Pool:       "normalize",
			NextStages: []string{"ner", "chunk"},
			Mandatory:  true,
		},
		"ner": {
			Name:       "ner",
			Pool:       "ner",
			NextStages: nil,
			Mandatory:  true,
		},
		"chunk": {
			Name:       "chunk",
			Pool:       "chunk",
			NextStages: []string{"embed"},
			Mandatory:  true,
		},
		"embed": {
			Name:       "embed",
			Pool:       "embed",
			NextStages: nil,
			Mandatory:  false, // missing GPU workers degrades to `partial`
		},
	}
}

func initBuiltinEngines() map[string]EngineConfig {
	return map[string]EngineConfig{
		"paddle-ocr": {
			Name: "paddle-ocr",
			Kind: EngineKindOCRFast,
		},
		"qwen-vl-ocr": {
			Name: "qwen-vl-ocr",
			Kind: EngineKindOCRHeavy,
		},
		"spacy-ner": {
			Name: "spacy-ner",
			Kind: EngineKindNER,
		},
		"sentence-transformers": {
			Name: "sentence-transformers",
			Kind: EngineKindEmbed,
		},
	}
}

func initBuiltinMaskingPatterns() map[string]MaskingPattern {
	return map[string]MaskingPattern{
		"api_key": {
			Pattern:     `(?i)(?:api[_-]?key|apikey|key)["\']?\s*[:=]\s*["\']?([A-Za-z0-9_\-]{20,})["\']?`,
			Replacement: `"api_key": "[MASKED_API_KEY]"`,
			Description: "API keys",
		},
		"password": {
			Pattern:     `(?i)(?:password|pwd|pass)["\']?\s*[:=]\s*["\']?([^"\'\s\n]{6,})["\']?`,
			Replacement: `"password": "[MASKED_PASSWORD]"`,
			Description: "Passwords",
		},
		"email": {
			Pattern:     `\b[A-Za-z0-9._%+-]+@[A-Za-z0-9]+(?:[.-][A-Za-z0-9]+)*\.[A-Za-z]{2,63}\b`,
			Replacement: `[MASKED_EMAIL]`,
			Description: "Email addresses",
		},
		"ssh_key": {
			Pattern:     `ssh-(?:rsa|dss|ed25519|ecdsa)\s+[A-Za-z0-9+/=]+`,
			Replacement: `[MASKED_SSH_KEY]`,
			Description: "SSH public keys",
		},
		"token": {
			Pattern:     `(?i)(?:token|bearer|jwt)["\']?\s*[:=]\s*["\']?([A-Za-z0-9_\-\.]{20,})["\']?`,
			Replacement: `"token": "[MASKED_TOKEN]"`,
			Description: "Access tokens",
		},
		"private_key": {
			Pattern:     `(?i)(?:private[_-]?key)["\']?\s*[:=]\s*["\']?([A-Za-z0-9_\-\.]{20,})["\']?`,
			Replacement: `"private_key": "[MASKED_PRIVATE_KEY]"`,
			Description: "Private keys",
		},
	}
}

// initBuiltinPatternGroups returns predefined groups of masking patterns.
// Members can reference either MaskingPatterns (regex) or CodeMaskers
// (structural parsing, e.g. form-field detection in extracted document
// text). Implemented in pkg/extension/redact/.
func initBuiltinPatternGroups() map[string][]string {
	return map[string][]string{
		"basic":    {"api_key", "password"},
		"secrets":  {"api_key", "password", "token", "private_key"},
		"document": {"form_field_pii", "api_key", "password", "email", "ssh_key"},
		"all":      {"form_field_pii", "api_key", "password", "email", "token", "ssh_key", "private_key"},
	}
}

// initBuiltinCodeMaskers returns names of code-based maskers for complex
// masking scenarios that require structural parsing rather than regex.
func initBuiltinCodeMaskers() []string {
	return []string{
		"form_field_pii", // pkg/extension/redact/form_field.go
	}
}
