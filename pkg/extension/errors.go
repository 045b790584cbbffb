package extension

import "errors"

var (
	// ErrNotDeclared indicates Register was called for an extension name
	// with no matching entry in the config.ExtensionRegistry.
	ErrNotDeclared = errors.New("extension not declared in configuration")

	// ErrDisabled indicates the extension's manifest declares enabled=false.
	ErrDisabled = errors.New("extension disabled in configuration")

	// ErrAlreadyRegistered indicates Register was called twice for the
	// same extension name; Initialize must run exactly once per process.
	ErrAlreadyRegistered = errors.New("extension already registered")

	// ErrManifestFetch indicates a pinned-ref manifest could not be
	// retrieved or parsed.
	ErrManifestFetch = errors.New("failed to fetch extension manifest")
)
