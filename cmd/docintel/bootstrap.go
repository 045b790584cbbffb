package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/arkhamforge/docintel/pkg/broker"
	"github.com/arkhamforge/docintel/pkg/config"
	"github.com/arkhamforge/docintel/pkg/database"
	"github.com/arkhamforge/docintel/pkg/events"
	"github.com/arkhamforge/docintel/pkg/extension"
	"github.com/arkhamforge/docintel/pkg/extension/redact"
	"github.com/arkhamforge/docintel/pkg/jobstore"
	"github.com/arkhamforge/docintel/pkg/models"
	"github.com/arkhamforge/docintel/pkg/pipeline"
	"github.com/arkhamforge/docintel/pkg/store"
	"github.com/arkhamforge/docintel/pkg/worker"
)

const defaultVectorCacheSize = 1024

// core bundles every shared dependency a subcommand needs. Not every
// field is used by every subcommand; enqueue/status/pools only touch a
// handful of them, but building the whole thing is cheap next to a
// database round trip and keeps bootstrapping in one place.
type core struct {
	cfg    *config.Config
	dbConn *database.Client
	db     *sql.DB

	bus        *events.Bus
	eventLog   *events.Log
	br         *broker.Broker
	jobs       *jobstore.Store
	documents  *store.Documents
	chunks     *store.Chunks
	entities   *store.Entities
	vectors    *store.Vectors
	registry   *worker.Registry
	dispatcher *worker.Dispatcher
	extHost    *extension.Host
	completion *pipeline.CompletionTracker
}

// newCore loads configuration and connects to Postgres, then constructs
// every shared component. Callers are responsible for closing the
// returned core's database connection.
func newCore(ctx context.Context, configDir string) (*core, error) {
	loadDotEnv(configDir)

	cfg, err := config.Initialize(ctx, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize configuration: %w", err)
	}

	dbConfig, err := database.LoadConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load database config: %w", err)
	}

	dbClient, err := database.NewClient(ctx, dbConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Println("connected to PostgreSQL, schema migrated")

	db := dbClient.DB()

	bus := events.New()
	if cfg.Defaults.Redaction != nil {
		bus.SetRedactor(redact.NewService(*cfg.Defaults.Redaction))
	}

	eventLog := events.NewLog(db)
	if err := eventLog.Truncate(ctx); err != nil {
		dbClient.Close()
		return nil, fmt.Errorf("failed to truncate event log: %w", err)
	}
	eventLog.Subscribe(ctx, bus, func(err error) {
		log.Printf("event log append failed: %v", err)
	})

	br := broker.New(db)
	jobs := jobstore.New(db)

	cacheSize, _ := strconv.Atoi(getEnv("STORE_CACHE_SIZE", strconv.Itoa(defaultVectorCacheSize)))
	documents := store.NewDocuments(db, cacheSize)
	chunks := store.NewChunks(db, cacheSize)
	entities := store.NewEntities(db)
	vectors := store.NewVectors(db)

	registry := worker.NewRegistry()
	routes := dispatcherRoutes(cfg.StageRegistry)
	dispatcher := worker.NewDispatcher(br, bus, registry, routes, minStaleThreshold(cfg.PoolRegistry))

	extHost := extension.NewHost(bus, dispatcher, db, cfg.ExtensionRegistry)

	groups, optionalStage := completionGroups(cfg.StageRegistry)
	completion := pipeline.NewCompletionTracker(documents, bus, groups, optionalStage)

	return &core{
		cfg:        cfg,
		dbConn:     dbClient,
		db:         db,
		bus:        bus,
		eventLog:   eventLog,
		br:         br,
		jobs:       jobs,
		documents:  documents,
		chunks:     chunks,
		entities:   entities,
		vectors:    vectors,
		registry:   registry,
		dispatcher: dispatcher,
		extHost:    extHost,
		completion: completion,
	}, nil
}

func (c *core) Close() {
	if err := c.dbConn.Close(); err != nil {
		log.Printf("error closing database client: %v", err)
	}
}

// minStaleThreshold picks the most conservative (smallest) stale_pool_
// threshold across every configured pool. The Dispatcher applies one
// threshold to every pool's admission check, so the tightest per-pool
// value is the only one that never under-admits.
func minStaleThreshold(pools *config.PoolRegistry) time.Duration {
	var min time.Duration
	for _, p := range pools.GetAll() {
		if min == 0 || p.StaleThreshold < min {
			min = p.StaleThreshold
		}
	}
	if min == 0 {
		min = 60 * time.Second
	}
	return min
}

// dispatcherRoutes builds the Pool Dispatcher's stage-completion routing
// table from the stage DAG: every one of a stage's NextStages becomes a
// route keyed by the completing stage's name, addressed at that
// successor's own pool. A stage with more than one NextStages entry
// (e.g. "normalize" feeding both "ner" and "chunk") gets one Route per
// successor, and the Dispatcher enqueues all of them on completion —
// there is no single-successor truncation here.
func dispatcherRoutes(stages *config.StageRegistry) map[string][]worker.Route {
	all := stages.GetAll()
	routes := make(map[string][]worker.Route, len(all))
	for name, stage := range all {
		for _, next := range stage.NextStages {
			nextStage, err := stages.Get(next)
			if err != nil {
				log.Printf("dispatcher route for stage %q references unknown next stage %q, skipping", name, next)
				continue
			}
			routes[name] = append(routes[name], worker.Route{NextStage: next, Pool: nextStage.Pool, Priority: 0})
		}
	}
	return routes
}

// completionGroups derives the document-completion tracker's mandatory
// stage groups and single optional stage from the stage DAG. Mandatory
// stages that declare the exact same NextStages are alternative entry
// points for one logical step (extract and ocr both feed normalize) and
// are grouped together, satisfied by whichever one the document
// actually goes through; every other mandatory stage gets its own
// singleton group. At most one non-mandatory stage is expected
// (embed); if config ever declares more than one, the last one seen
// wins and the rest are tracked as ordinary unmonitored stages.
func completionGroups(stages *config.StageRegistry) ([]pipeline.MandatoryGroup, string) {
	bySuccessor := make(map[string][]string)
	var optionalStage string

	for name, stage := range stages.GetAll() {
		if !stage.Mandatory {
			optionalStage = name
			continue
		}
		sig := strings.Join(stage.NextStages, ",")
		bySuccessor[sig] = append(bySuccessor[sig], name)
	}

	groups := make([]pipeline.MandatoryGroup, 0, len(bySuccessor))
	for _, names := range bySuccessor {
		sort.Strings(names)
		groups = append(groups, pipeline.MandatoryGroup(names))
	}
	return groups, optionalStage
}

// buildEngines resolves every engine the pipeline stage handlers need
// from cfg.EngineRegistry, constructing one pipeline.HTTPEngine per
// declared engine. An engine kind with no declared endpoint is left
// nil; the owning stage handler degrades accordingly (e.g. OCR falls
// back to whichever of Fast/Heavy is non-nil).
type stageEngines struct {
	ocrFast  pipeline.OCREngine
	ocrHeavy pipeline.OCREngine
	ner      pipeline.NEREngine
	embed    pipeline.EmbedEngine
}

func buildEngines(cfg *config.Config) stageEngines {
	var se stageEngines

	if e := firstEngine(cfg, config.EngineKindOCRFast); e != nil {
		se.ocrFast = pipeline.NewHTTPEngine(e.Endpoint, e.Name, 0)
	}
	if e := firstEngine(cfg, config.EngineKindOCRHeavy); e != nil {
		se.ocrHeavy = pipeline.NewHTTPEngine(e.Endpoint, e.Name, 0)
	}
	if e := firstEngine(cfg, config.EngineKindNER); e != nil {
		se.ner = pipeline.NewHTTPEngine(e.Endpoint, e.Name, 0)
	}
	if e := firstEngine(cfg, config.EngineKindEmbed); e != nil {
		dims, _ := strconv.Atoi(e.Options["dimensions"])
		se.embed = pipeline.NewHTTPEngine(e.Endpoint, e.Name, dims)
	}
	return se
}

// firstEngine returns the first declared engine of kind with a
// non-empty endpoint, or nil if none is configured.
func firstEngine(cfg *config.Config, kind config.EngineKind) *config.EngineConfig {
	for _, e := range cfg.EngineRegistry.ByKind(kind) {
		if e.Endpoint != "" {
			return e
		}
	}
	return nil
}

// buildHandler constructs the pkg/worker.Handler for the stage that
// declares pool as its home pool. Returns an error if no stage targets
// pool, since the worker subcommand has nothing to dispatch to.
func buildHandler(c *core, pool string) (worker.Handler, error) {
	se := buildEngines(c.cfg)

	stageName, stage, err := stageForPool(c.cfg.StageRegistry, pool)
	if err != nil {
		return nil, err
	}

	switch stageName {
	case "extract":
		return &pipeline.ExtractHandler{
			Documents:  c.documents,
			Bus:        c.bus,
			EnqueueOCR: enqueueOCR(c),
		}, nil
	case "ocr":
		defaults := c.cfg.Defaults
		return &pipeline.OCRHandler{
			Fast:            se.ocrFast,
			Heavy:           se.ocrHeavy,
			ConfidenceFloor: defaults.OCRConfidenceFloor,
			MinTextLength:   defaults.OCRMinTextLength,
			Documents:       c.documents,
			Bus:             c.bus,
		}, nil
	case "normalize":
		return &pipeline.NormalizeHandler{Documents: c.documents, Bus: c.bus}, nil
	case "ner":
		return &pipeline.NERHandler{Engine: se.ner, Chunks: c.chunks, Entities: c.entities, Bus: c.bus}, nil
	case "chunk":
		defaults := c.cfg.Defaults
		return &pipeline.ChunkHandler{
			Method:    string(defaults.ChunkMethod),
			Size:      defaults.ChunkSize,
			Overlap:   defaults.ChunkOverlap,
			Documents: c.documents,
			Chunks:    c.chunks,
			Bus:       c.bus,
		}, nil
	case "embed":
		return &pipeline.EmbedHandler{Engine: se.embed, Chunks: c.chunks, Vectors: c.vectors, Bus: c.bus}, nil
	}

	if h, ok := c.extHost.PoolHandler(pool); ok {
		return h, nil
	}
	return nil, fmt.Errorf("no stage handler registered for pool %q (stage %q)", pool, stage.Name)
}

// poolModelFrom converts a config.PoolConfig into the models.Pool shape
// worker.NewPool operates on.
func poolModelFrom(cfg *config.PoolConfig) models.Pool {
	return models.Pool{
		Name:           cfg.Name,
		ResourceTier:   models.ResourceTier(cfg.ResourceTier),
		MaxConcurrency: cfg.MaxConcurrency,
		JobTimeout:     cfg.JobTimeout,
	}
}

// stageForPool finds the stage declared against pool. Built-in stages
// are 1:1 with their pool by convention, so the first match wins.
//
// ocr-heavy has no stage of its own: the OCR stage's handler calls the
// heavy engine in-process when the fast engine's result is insufficient
// (see OCRHandler.recognize), so no job is ever dispatched to an
// ocr-heavy worker directly. The pool still exists in config so its
// resource tier and concurrency can be reasoned about independently,
// but `docintel worker --pool ocr-heavy` has nothing to drain and
// returns an error here rather than starting an idle worker.
func stageForPool(stages *config.StageRegistry, pool string) (string, *config.StageConfig, error) {
	for name, stage := range stages.GetAll() {
		if stage.Pool == pool {
			return name, stage, nil
		}
	}
	return "", nil, fmt.Errorf("no stage dispatches to pool %q directly (it may be an engine resource tier consumed in-process by another stage's handler)", pool)
}

// enqueueOCR hands a document off to the ocr-fast pool through the Pool
// Dispatcher, the same admission-controlled path every other stage
// transition goes through.
func enqueueOCR(c *core) func(ctx context.Context, documentID, filePath string) error {
	return func(ctx context.Context, documentID, filePath string) error {
		payload, err := json.Marshal(pipeline.OCRPayload{DocumentID: documentID, FilePath: filePath})
		if err != nil {
			return fmt.Errorf("marshal ocr payload: %w", err)
		}
		return c.dispatcher.Enqueue(ctx, "ocr-fast", documentID, payload, 0)
	}
}
