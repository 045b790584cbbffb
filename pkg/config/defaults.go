package config

// RedactionConfig controls masking of sensitive text before it is
// persisted to the event log or handed to an extension.
type RedactionConfig struct {
	Enabled      bool   `yaml:"enabled"`
	PatternGroup string `yaml:"pattern_group"`
}
