package api_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/arkhamforge/docintel/pkg/api"
	"github.com/arkhamforge/docintel/pkg/broker"
	"github.com/arkhamforge/docintel/pkg/config"
	"github.com/arkhamforge/docintel/pkg/events"
	"github.com/arkhamforge/docintel/pkg/extension"
	"github.com/arkhamforge/docintel/pkg/jobstore"
	"github.com/arkhamforge/docintel/pkg/store"
	"github.com/arkhamforge/docintel/pkg/worker"
	testdb "github.com/arkhamforge/docintel/test/database"
)

func newTestServer(t *testing.T) *api.Server {
	t.Helper()
	client := testdb.NewTestClient(t)

	pools := config.NewPoolRegistry(map[string]*config.PoolConfig{
		"extract": {Name: "extract", ResourceTier: config.TierCPULight, MaxConcurrency: 1, JobTimeout: time.Minute, StaleThreshold: time.Minute},
	})
	registry := worker.NewRegistry()
	registry.Register("extract-worker-0", "extract")

	b := broker.New(client.DB())
	bus := events.New()
	dispatcher := worker.NewDispatcher(b, bus, registry, nil, time.Minute)

	extHost := extension.NewHost(bus, dispatcher, client.DB(), config.NewExtensionRegistry(nil))

	return api.NewServer(
		client.DB(),
		pools,
		registry,
		dispatcher,
		store.NewDocuments(client.DB(), 0),
		store.NewChunks(client.DB(), 0),
		store.NewEntities(client.DB()),
		store.NewVectors(client.DB()),
		jobstore.New(client.DB()),
		events.NewLog(client.DB()),
		extHost,
	)
}

func TestHealthEndpointReportsHealthy(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetUnknownDocumentReturns404(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents/"+uuid.NewString(), nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEnqueueJobRejectsUnregisteredPool(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", strings.NewReader(`{"pool":"embed","payload":{}}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestEnqueueJobAdmitsRegisteredPool(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", strings.NewReader(`{"pool":"extract","payload":{}}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
}
