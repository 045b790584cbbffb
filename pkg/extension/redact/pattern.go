package redact

import (
	"log/slog"
	"regexp"

	"github.com/arkhamforge/docintel/pkg/config"
)

// compiledPattern holds a pre-compiled regex pattern with its replacement.
type compiledPattern struct {
	Name        string
	Regex       *regexp.Regexp
	Replacement string
}

// compilePatterns compiles every declared pattern eagerly. An invalid
// regex is logged and skipped rather than failing construction: one bad
// custom pattern shouldn't disable redaction entirely.
func compilePatterns(patterns map[string]config.MaskingPattern) map[string]*compiledPattern {
	compiled := make(map[string]*compiledPattern, len(patterns))
	for name, p := range patterns {
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			slog.Error("failed to compile masking pattern, skipping", "pattern", name, "error", err)
			continue
		}
		compiled[name] = &compiledPattern{Name: name, Regex: re, Replacement: p.Replacement}
	}
	return compiled
}

// resolveGroup expands a pattern group name into the compiled regex
// patterns and code-masker names it references, deduplicated.
func resolveGroup(groupName string, groups map[string][]string, patterns map[string]*compiledPattern, codeMaskerNames []string) ([]*compiledPattern, []string) {
	members, ok := groups[groupName]
	if !ok {
		return nil, nil
	}

	isCodeMasker := make(map[string]bool, len(codeMaskerNames))
	for _, n := range codeMaskerNames {
		isCodeMasker[n] = true
	}

	seen := make(map[string]bool, len(members))
	var regexes []*compiledPattern
	var maskers []string
	for _, name := range members {
		if seen[name] {
			continue
		}
		seen[name] = true

		if isCodeMasker[name] {
			maskers = append(maskers, name)
			continue
		}
		if cp, ok := patterns[name]; ok {
			regexes = append(regexes, cp)
		}
	}
	return regexes, maskers
}
