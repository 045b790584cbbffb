// Package e2e boots a complete docintel instance — every stage handler,
// a real Postgres-backed broker/job store/event log, and the Pool
// Dispatcher/CompletionTracker goroutines — against scripted OCR/NER/
// embedding engines, so a scenario test can submit a document and assert
// on its terminal status and persisted artifacts without any network
// dependency on the real inference services.
package e2e

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arkhamforge/docintel/pkg/broker"
	"github.com/arkhamforge/docintel/pkg/config"
	"github.com/arkhamforge/docintel/pkg/database"
	"github.com/arkhamforge/docintel/pkg/events"
	"github.com/arkhamforge/docintel/pkg/extension"
	"github.com/arkhamforge/docintel/pkg/jobstore"
	"github.com/arkhamforge/docintel/pkg/pipeline"
	"github.com/arkhamforge/docintel/pkg/store"
	"github.com/arkhamforge/docintel/pkg/worker"

	testdb "github.com/arkhamforge/docintel/test/database"
)

// TestApp boots a complete docintel pipeline for end-to-end testing.
type TestApp struct {
	Config   *config.Config
	DBClient *database.Client
	DB       *sql.DB

	Bus        *events.Bus
	EventLog   *events.Log
	Broker     *broker.Broker
	Jobs       *jobstore.Store
	Documents  *store.Documents
	Chunks     *store.Chunks
	Entities   *store.Entities
	Vectors    *store.Vectors
	Registry   *worker.Registry
	Dispatcher *worker.Dispatcher
	Completion *pipeline.CompletionTracker
	ExtHost    *extension.Host
	Engines    *ScriptedEngines

	pools map[string]*worker.Pool
}

// testAppConfig collects the options NewTestApp applies before wiring.
type testAppConfig struct {
	skipPools map[string]bool
	engines   *ScriptedEngines
}

// TestAppOption customizes a TestApp before it starts.
type TestAppOption func(*testAppConfig)

// WithoutPoolWorker omits the worker pool for the named pool, leaving it
// unregistered with the worker Registry. A job routed to that pool is
// rejected by the Pool Dispatcher's admission check (ErrPoolUnavailable)
// exactly as it would be in production when no GPU worker for that
// resource tier has ever checked in — the harness's way of simulating a
// missing capacity class.
func WithoutPoolWorker(pool string) TestAppOption {
	return func(c *testAppConfig) { c.skipPools[pool] = true }
}

// WithEngines overrides the default scripted engines (which return
// canned, always-successful results) with a caller-provided set, letting
// a scenario script OCR confidence, NER entities, or embedding
// dimensions precisely.
func WithEngines(engines *ScriptedEngines) TestAppOption {
	return func(c *testAppConfig) { c.engines = engines }
}

// NewTestApp wires a full docintel instance against a real,
// migration-applied Postgres (testcontainers-backed, or CI_DATABASE_URL
// if set — see test/database.NewTestClient) and starts the Pool
// Dispatcher, CompletionTracker, and every stage's worker pool (other
// than pools excluded via WithoutPoolWorker). Everything is torn down
// via t.Cleanup in reverse start order.
func NewTestApp(t *testing.T, opts ...TestAppOption) *TestApp {
	t.Helper()

	tac := &testAppConfig{skipPools: make(map[string]bool)}
	for _, opt := range opts {
		opt(tac)
	}
	if tac.engines == nil {
		tac.engines = NewScriptedEngines()
	}

	cfg := testConfig()

	dbClient := testdb.NewTestClient(t)
	db := dbClient.DB()

	bus := events.New()

	eventLog := events.NewLog(db)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, eventLog.Truncate(ctx))
	eventLog.Subscribe(ctx, bus, func(err error) {
		t.Logf("event log append failed: %v", err)
	})

	br := broker.New(db)
	jobs := jobstore.New(db)

	documents := store.NewDocuments(db, 64)
	chunks := store.NewChunks(db, 64)
	entities := store.NewEntities(db)
	vectors := store.NewVectors(db)

	registry := worker.NewRegistry()
	routes := dispatcherRoutesFrom(cfg.StageRegistry)
	dispatcher := worker.NewDispatcher(br, bus, registry, routes, minStaleThresholdFrom(cfg.PoolRegistry))

	extHost := extension.NewHost(bus, dispatcher, db, cfg.ExtensionRegistry)

	groups, optionalStage := completionGroupsFrom(cfg.StageRegistry)
	completion := pipeline.NewCompletionTracker(documents, bus, groups, optionalStage)

	app := &TestApp{
		Config:     cfg,
		DBClient:   dbClient,
		DB:         db,
		Bus:        bus,
		EventLog:   eventLog,
		Broker:     br,
		Jobs:       jobs,
		Documents:  documents,
		Chunks:     chunks,
		Entities:   entities,
		Vectors:    vectors,
		Registry:   registry,
		Dispatcher: dispatcher,
		Completion: completion,
		ExtHost:    extHost,
		Engines:    tac.engines,
		pools:      make(map[string]*worker.Pool),
	}

	go dispatcher.Run(ctx)
	go completion.Run(ctx)

	workerCfg := worker.Config{
		PollInterval:       20 * time.Millisecond,
		PollIntervalJitter: 5 * time.Millisecond,
		HeartbeatInterval:  50 * time.Millisecond,
	}

	for name, poolCfg := range cfg.PoolRegistry.GetAll() {
		if tac.skipPools[name] {
			continue
		}
		handler, ok := app.buildHandler(name)
		if !ok {
			// ocr-heavy has no dedicated job stream; OCRHandler calls the
			// heavy engine in-process. Nothing to drain for it here either.
			continue
		}
		pool := worker.NewPool(poolModelFromCfg(poolCfg), br, handler, bus, registry, workerCfg)
		pool.Start(ctx)
		app.pools[name] = pool
	}

	t.Cleanup(func() {
		for _, pool := range app.pools {
			pool.Stop()
		}
		cancel()
		if err := dbClient.Close(); err != nil {
			t.Logf("error closing test database client: %v", err)
		}
	})

	return app
}

// buildHandler mirrors cmd/docintel/bootstrap.go's stage switch, wiring
// the scripted engines in place of pipeline.HTTPEngine.
func (a *TestApp) buildHandler(pool string) (worker.Handler, bool) {
	stageName, _ := stageForPoolFrom(a.Config.StageRegistry, pool)
	if stageName == "" {
		return nil, false
	}

	switch stageName {
	case "extract":
		return &pipeline.ExtractHandler{
			Documents:  a.Documents,
			Bus:        a.Bus,
			EnqueueOCR: a.enqueueOCR(),
		}, true
	case "ocr":
		defaults := a.Config.Defaults
		return &pipeline.OCRHandler{
			Fast:            a.Engines.OCRFast,
			Heavy:           a.Engines.OCRHeavy,
			ConfidenceFloor: defaults.OCRConfidenceFloor,
			MinTextLength:   defaults.OCRMinTextLength,
			Documents:       a.Documents,
			Bus:             a.Bus,
		}, true
	case "normalize":
		return &pipeline.NormalizeHandler{Documents: a.Documents, Bus: a.Bus}, true
	case "ner":
		return &pipeline.NERHandler{Engine: a.Engines.NER, Chunks: a.Chunks, Entities: a.Entities, Bus: a.Bus}, true
	case "chunk":
		defaults := a.Config.Defaults
		return &pipeline.ChunkHandler{
			Method:    string(defaults.ChunkMethod),
			Size:      defaults.ChunkSize,
			Overlap:   defaults.ChunkOverlap,
			Documents: a.Documents,
			Chunks:    a.Chunks,
			Bus:       a.Bus,
		}, true
	case "embed":
		return &pipeline.EmbedHandler{Engine: a.Engines.Embed, Chunks: a.Chunks, Vectors: a.Vectors, Bus: a.Bus}, true
	}
	return nil, false
}

func (a *TestApp) enqueueOCR() func(ctx context.Context, documentID, filePath string) error {
	return func(ctx context.Context, documentID, filePath string) error {
		payload, err := jsonMarshalOCRPayload(documentID, filePath)
		if err != nil {
			return err
		}
		return a.Dispatcher.Enqueue(ctx, "ocr-fast", documentID, payload, 0)
	}
}

// testConfig hand-builds a *config.Config the way production does from a
// docintel.yaml, but directly from the built-in defaults: the harness
// has no YAML file to load, and none of the behavior under test depends
// on config-file parsing.
func testConfig() *config.Config {
	builtin := config.GetBuiltinConfig()

	pools := make(map[string]*config.PoolConfig, len(builtin.Pools))
	for name, p := range builtin.Pools {
		p := p
		pools[name] = &p
	}
	stages := make(map[string]*config.StageConfig, len(builtin.Stages))
	for name, s := range builtin.Stages {
		s := s
		stages[name] = &s
	}
	engines := make(map[string]*config.EngineConfig, len(builtin.Engines))
	for name, e := range builtin.Engines {
		e := e
		engines[name] = &e
	}

	return &config.Config{
		Queue: config.DefaultQueueConfig(),
		Defaults: &config.DefaultsConfig{
			DataRoot:           "",
			OCRConfidenceFloor: 0.6,
			OCRMinTextLength:   20,
			ChunkSize:          500,
			ChunkOverlap:       50,
			ChunkMethod:        config.ChunkMethodFixed,
			MaxWorkerRequeues:  3,
		},
		PoolRegistry:      config.NewPoolRegistry(pools),
		StageRegistry:     config.NewStageRegistry(stages),
		ExtensionRegistry: config.NewExtensionRegistry(nil),
		EngineRegistry:    config.NewEngineRegistry(engines),
	}
}
