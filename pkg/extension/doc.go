// Package extension implements the extension host: discovery, lifecycle,
// and capability injection for analytic extensions layered on top of the
// core pipeline.
//
// The declared capability is an extension manifest (pkg/config.ExtensionConfig).
// Host.Register resolves a compiled-in Extension against its manifest,
// constructs its scoped SchemaStore, and calls its Initialize hook exactly
// once before the extension can receive events or serve routes.
package extension
