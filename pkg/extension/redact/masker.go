// Package redact applies pattern- and structure-based redaction to
// extracted document text before it's persisted to the event log or
// handed to an analytic extension.
package redact

// Masker is a code-based redactor for structured data that needs parsing
// rather than a single regex to redact safely — e.g. a JSON or YAML block
// embedded in OCR/NER output, where only specific sub-fields must be
// blanked and the surrounding structure preserved.
type Masker interface {
	// Name identifies this masker. Must match an entry in
	// config.GetBuiltinConfig().CodeMaskers.
	Name() string

	// AppliesTo is a cheap pre-check (substring match, not parsing) for
	// whether Mask should run at all.
	AppliesTo(data string) bool

	// Mask returns the redacted form of data. Must be defensive: on any
	// parse or processing error, return data unchanged rather than fail.
	Mask(data string) string
}
