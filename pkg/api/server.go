// Package api serves docintel's external HTTP surface: document/chunk/
// entity/vector reads, job submission and inspection, pool health, the
// event tail, extension-mounted routes, and Prometheus metrics.
// Built on gin-gonic/gin, the only web framework actually pinned as a
// dependency rather than merely imported.
package api

import (
	"context"
	"database/sql"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arkhamforge/docintel/pkg/config"
	"github.com/arkhamforge/docintel/pkg/database"
	"github.com/arkhamforge/docintel/pkg/events"
	"github.com/arkhamforge/docintel/pkg/extension"
	"github.com/arkhamforge/docintel/pkg/jobstore"
	"github.com/arkhamforge/docintel/pkg/store"
	"github.com/arkhamforge/docintel/pkg/version"
	"github.com/arkhamforge/docintel/pkg/worker"
)

// Server is the HTTP API server.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server

	db         *sql.DB
	pools      *config.PoolRegistry
	workers    *worker.Registry
	dispatcher *worker.Dispatcher

	documents *store.Documents
	chunks    *store.Chunks
	entities  *store.Entities
	vectors   *store.Vectors
	jobs      *jobstore.Store
	eventLog  *events.Log
	extHost   *extension.Host

	tailServer *events.TailServer // nil until SetTailServer
	authHash   []byte             // nil when operator auth is disabled
}

// NewServer constructs a Server with every mandatory dependency wired
// and routes registered. The WebSocket event tail and operator auth are
// optional and wired afterward via SetTailServer/SetAuthHash.
func NewServer(
	db *sql.DB,
	pools *config.PoolRegistry,
	workers *worker.Registry,
	dispatcher *worker.Dispatcher,
	documents *store.Documents,
	chunks *store.Chunks,
	entities *store.Entities,
	vectors *store.Vectors,
	jobs *jobstore.Store,
	eventLog *events.Log,
	extHost *extension.Host,
) *Server {
	s := &Server{
		router:     gin.New(),
		db:         db,
		pools:      pools,
		workers:    workers,
		dispatcher: dispatcher,
		documents:  documents,
		chunks:     chunks,
		entities:   entities,
		vectors:    vectors,
		jobs:       jobs,
		eventLog:   eventLog,
		extHost:    extHost,
	}

	s.router.Use(gin.Recovery(), securityHeaders())
	s.setupRoutes()
	return s
}

// SetTailServer wires the WebSocket event-tail bridge. Until called,
// GET /api/v1/jobs/:id/events responds 503.
func (s *Server) SetTailServer(ts *events.TailServer) {
	s.tailServer = ts
}

// SetAuthHash enables bcrypt operator auth for every /api/* route using
// hash as the bearer-token digest. A nil hash leaves auth disabled,
// which is the default — this guards the HTTP surface, not a tenancy
// boundary.
func (s *Server) SetAuthHash(hash []byte) {
	s.authHash = hash
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.router.Group("/api/v1")
	api.Use(s.operatorAuth())

	api.GET("/documents/:id", s.getDocumentHandler)
	api.GET("/documents/:id/chunks", s.listChunksHandler)
	api.GET("/documents/:id/entities", s.listEntitiesHandler)
	api.GET("/documents/:id/vectors", s.listVectorsHandler)
	api.GET("/entities/:id", s.getCanonicalEntityHandler)

	api.POST("/jobs", s.enqueueJobHandler)
	api.GET("/jobs", s.listJobsHandler)
	api.GET("/jobs/:id", s.getJobHandler)
	api.GET("/jobs/:id/history", s.jobHistoryHandler)
	api.GET("/jobs/:id/events", s.jobEventsHandler)

	api.GET("/pools", s.listPoolsHandler)
	api.GET("/pools/:name", s.getPoolHandler)

	for prefix, routes := range s.extHost.Routes() {
		group := s.router.Group(prefix)
		for _, route := range routes {
			group.Handle(route.Method, route.Path, gin.WrapF(route.Handler))
		}
	}
}

// Handler returns the server's root http.Handler, for test infrastructure
// that drives requests directly against it without binding a listener.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server on addr (blocking).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.router}
	return s.httpServer.ListenAndServe()
}

// StartWithListener starts the HTTP server on a pre-created listener.
// Used by test infrastructure to serve on a random OS-assigned port.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.router}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status   string                  `json:"status"`
	Version  string                  `json:"version"`
	Database *database.HealthStatus  `json:"database"`
	Pools    map[string]PoolResponse `json:"pools"`
}

func (s *Server) healthHandler(c *gin.Context) {
	reqCtx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	dbHealth, err := database.Health(reqCtx, s.db)
	status := http.StatusOK
	respStatus := "healthy"
	if err != nil {
		status = http.StatusServiceUnavailable
		respStatus = "unhealthy"
	}

	poolHealth := make(map[string]PoolResponse, len(s.pools.GetAll()))
	for name, pool := range s.pools.GetAll() {
		poolHealth[name] = s.poolResponse(name, pool)
	}

	c.JSON(status, HealthResponse{
		Status:   respStatus,
		Version:  version.Full(),
		Database: dbHealth,
		Pools:    poolHealth,
	})
}
