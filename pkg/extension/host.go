package extension

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/arkhamforge/docintel/pkg/config"
	"github.com/arkhamforge/docintel/pkg/events"
	"github.com/arkhamforge/docintel/pkg/models"
	"github.com/arkhamforge/docintel/pkg/worker"
)

// Host discovers, initializes, and injects capabilities into analytic
// extensions. It holds no extension-specific logic itself;
// every capability it exposes — event pub/sub, pool enqueue with admission
// checks, schema-scoped storage, pool contribution, route mounting — is a
// thin forward onto the core components it was constructed with.
// Capabilities are passed explicitly to each extension's Initialize call
// rather than resolved through a global singleton or service locator.
type Host struct {
	bus        *events.Bus
	dispatcher *worker.Dispatcher
	db         *sql.DB
	configs    *config.ExtensionRegistry

	mu           sync.RWMutex
	extensions   map[string]Extension
	poolHandlers map[string]worker.Handler
}

// NewHost constructs a Host. db may be nil in tests that don't exercise
// SchemaStore.
func NewHost(bus *events.Bus, dispatcher *worker.Dispatcher, db *sql.DB, configs *config.ExtensionRegistry) *Host {
	return &Host{
		bus:          bus,
		dispatcher:   dispatcher,
		db:           db,
		configs:      configs,
		extensions:   make(map[string]Extension),
		poolHandlers: make(map[string]worker.Handler),
	}
}

// Register resolves ext against its declared configuration and, if found
// and enabled, calls Initialize exactly once. Returns ErrNotDeclared if no
// manifest exists for ext.Name(), ErrDisabled if the manifest is present
// but enabled=false, or ErrAlreadyRegistered on a duplicate call.
func (h *Host) Register(ctx context.Context, ext Extension) error {
	name := ext.Name()

	h.mu.Lock()
	if _, exists := h.extensions[name]; exists {
		h.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, name)
	}
	h.mu.Unlock()

	cfg, err := h.configs.Get(name)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrNotDeclared, name)
	}
	if !cfg.Enabled {
		return fmt.Errorf("%w: %s", ErrDisabled, name)
	}

	if err := ext.Initialize(ctx, h); err != nil {
		return fmt.Errorf("initialize extension %q: %w", name, err)
	}

	h.mu.Lock()
	h.extensions[name] = ext
	h.mu.Unlock()
	return nil
}

// Shutdown calls Shutdown on every registered extension, awaiting all of
// them before returning. Errors from individual extensions are joined, not short-circuited,
// so one extension's shutdown failure doesn't skip another's.
func (h *Host) Shutdown(ctx context.Context) error {
	h.mu.RLock()
	exts := make([]Extension, 0, len(h.extensions))
	for _, ext := range h.extensions {
		exts = append(exts, ext)
	}
	h.mu.RUnlock()

	var errs []error
	for _, ext := range exts {
		if err := ext.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown extension %q: %w", ext.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Extensions returns every successfully registered extension, for the API
// surface to mount routes and the CLI to report on.
func (h *Host) Extensions() map[string]Extension {
	h.mu.RLock()
	defer h.mu.RUnlock()
	result := make(map[string]Extension, len(h.extensions))
	for k, v := range h.extensions {
		result[k] = v
	}
	return result
}

// Publish forwards to the event bus (which redacts the payload first if
// a Redactor is installed there — see events.Bus.SetRedactor). source
// should identify the publishing extension (typically its Name()) so
// correlated events can be traced back to their origin in the session
// log.
func (h *Host) Publish(topic, source string, payload []byte, correlationID string) models.Event {
	return h.bus.Publish(topic, source, payload, correlationID)
}

// Subscribe forwards to the event bus. pattern follows the same
// dot-segment glob syntax as events.Bus.Subscribe.
func (h *Host) Subscribe(pattern string) *events.Subscription {
	return h.bus.Subscribe(pattern)
}

// Enqueue places a job on pool through the Pool Dispatcher, subject to the
// same stale-pool admission check every core stage's enqueue goes
// through — an extension cannot bypass pool_unavailable handling.
func (h *Host) Enqueue(ctx context.Context, pool, jobID string, payload []byte, priority int) error {
	return h.dispatcher.Enqueue(ctx, pool, jobID, payload, priority)
}

// RegisterPoolHandler lets an extension define a new pool and register the
// handler that processes its jobs. The pool must still be
// declared in configuration (config.PoolRegistry) for a worker to be
// started against it; RegisterPoolHandler only supplies the handler the
// CLI's worker command wires up when starting that pool.
func (h *Host) RegisterPoolHandler(pool string, handler worker.Handler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.poolHandlers[pool] = handler
}

// PoolHandler returns the handler an extension registered for pool, if any.
func (h *Host) PoolHandler(pool string) (worker.Handler, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	handler, ok := h.poolHandlers[pool]
	return handler, ok
}

// Store returns a SchemaStore scoped to schema, the storage capability
// passed to extensions.
func (h *Host) Store(schema string) *SchemaStore {
	return NewSchemaStore(h.db, schema)
}

// Routes collects every registered extension's route table, prefixed by
// its declared api_prefix, for the HTTP server to mount.
func (h *Host) Routes() map[string][]Route {
	h.mu.RLock()
	defer h.mu.RUnlock()

	result := make(map[string][]Route, len(h.extensions))
	for name, ext := range h.extensions {
		cfg, err := h.configs.Get(name)
		if err != nil {
			continue
		}
		result[cfg.APIPrefix] = ext.Routes()
	}
	return result
}
