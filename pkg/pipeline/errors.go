package pipeline

import "errors"

var (
	// ErrNoEngineAvailable is returned when a stage needs an engine of a
	// given kind but none is registered.
	ErrNoEngineAvailable = errors.New("pipeline: no engine available")

	// ErrOCRExhausted is returned when both the fast and heavy OCR
	// engines fail or are unregistered.
	ErrOCRExhausted = errors.New("pipeline: ocr engines exhausted")

	// ErrEmptyDocument is returned by Extract when a PDF has zero pages
	// or every page's GetPlainText call fails.
	ErrEmptyDocument = errors.New("pipeline: document has no extractable content")
)
