package redact

import (
	"log/slog"

	"github.com/arkhamforge/docintel/pkg/config"
)

// Service applies a configured masking pattern group to text. Created
// once at startup; safe for concurrent use, stateless aside from its
// compiled patterns.
type Service struct {
	enabled bool
	group   string

	patterns map[string]*compiledPattern
	groups   map[string][]string
	maskers  map[string]Masker
}

// NewService compiles every built-in masking pattern and registers the
// built-in code maskers. cfg controls whether Redact is a no-op and which
// pattern group it applies.
func NewService(cfg config.RedactionConfig) *Service {
	builtin := config.GetBuiltinConfig()

	s := &Service{
		enabled:  cfg.Enabled,
		group:    cfg.PatternGroup,
		patterns: compilePatterns(builtin.MaskingPatterns),
		groups:   builtin.PatternGroups,
		maskers:  make(map[string]Masker),
	}
	s.register(&FormFieldPIIMasker{})

	slog.Info("redaction service initialized",
		"enabled", cfg.Enabled, "pattern_group", cfg.PatternGroup,
		"compiled_patterns", len(s.patterns), "code_maskers", len(s.maskers))
	return s
}

func (s *Service) register(m Masker) {
	s.maskers[m.Name()] = m
}

// Redact applies the configured pattern group's code maskers then regex
// patterns to text. Fail-open: a masker or pattern error never blocks the
// document pipeline, it just leaves that piece of text unmasked — losing
// a redaction opportunity is safer here than losing document content.
func (s *Service) Redact(text string) string {
	if !s.enabled || text == "" {
		return text
	}

	regexes, maskerNames := resolveGroup(s.group, s.groups, s.patterns, codeMaskerNames(s.maskers))
	if len(regexes) == 0 && len(maskerNames) == 0 {
		return text
	}

	masked := text
	for _, name := range maskerNames {
		masker, ok := s.maskers[name]
		if !ok {
			continue
		}
		if masker.AppliesTo(masked) {
			masked = masker.Mask(masked)
		}
	}
	for _, pattern := range regexes {
		masked = pattern.Regex.ReplaceAllString(masked, pattern.Replacement)
	}
	return masked
}

func codeMaskerNames(maskers map[string]Masker) []string {
	names := make([]string, 0, len(maskers))
	for name := range maskers {
		names = append(names, name)
	}
	return names
}
