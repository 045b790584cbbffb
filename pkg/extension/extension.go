package extension

import (
	"context"
	"net/http"
)

// Route is one HTTP route an extension wants mounted under its manifest's
// api_prefix, merged into the external API router at mount time.
type Route struct {
	Method  string
	Path    string
	Handler http.HandlerFunc
}

// Extension is a modular analytic unit: it subscribes to events, persists
// to its own content-store schema, optionally contributes worker pools,
// and exposes routes under its declared api_prefix.
type Extension interface {
	// Name must match the "name" field of the extension's declared
	// config.ExtensionConfig.
	Name() string

	// Initialize wires the extension to its host-provided capabilities.
	// Must be idempotent: the host calls it exactly once per process, but
	// an extension that re-initializes itself internally (e.g. on a
	// config reload) must tolerate a second call without double-registering
	// subscriptions.
	Initialize(ctx context.Context, host *Host) error

	// Shutdown releases any resources acquired in Initialize. The host
	// awaits every extension's Shutdown before terminating.
	Shutdown(ctx context.Context) error

	// Routes returns the extension's HTTP route table. May be called
	// before or after Initialize; implementations should return a static
	// table built at construction time.
	Routes() []Route
}
