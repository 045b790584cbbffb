package notify_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkhamforge/docintel/pkg/broker"
	"github.com/arkhamforge/docintel/pkg/config"
	"github.com/arkhamforge/docintel/pkg/events"
	"github.com/arkhamforge/docintel/pkg/extension"
	"github.com/arkhamforge/docintel/pkg/notify"
	"github.com/arkhamforge/docintel/pkg/worker"
	testdb "github.com/arkhamforge/docintel/test/database"
)

func newTestHost(t *testing.T, configs map[string]*config.ExtensionConfig) (*extension.Host, *events.Bus) {
	t.Helper()
	client := testdb.NewTestClient(t)
	b := broker.New(client.DB())
	registry := worker.NewRegistry()
	bus := events.New()
	dispatcher := worker.NewDispatcher(b, bus, registry, nil, time.Minute)

	return extension.NewHost(bus, dispatcher, client.DB(), config.NewExtensionRegistry(configs)), bus
}

func TestNotifierExtensionRelaysDocumentCompleteToSlack(t *testing.T) {
	var posted int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		posted++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	client := notify.NewClientWithAPIURL("xoxb-test", "C123", srv.URL+"/")
	service := notify.NewServiceWithClient(client, "https://dash.example.com")

	configs := map[string]*config.ExtensionConfig{
		"notifier": {Name: "notifier", Version: "1.0.0", APIPrefix: "/api/notifier", SchemaName: "notifier", Enabled: true},
	}
	host, bus := newTestHost(t, configs)

	ext := notify.NewExtension(service)
	require.NoError(t, host.Register(context.Background(), ext))

	bus.Publish(events.TopicDocumentComplete, "test", []byte(`{"document_id":"doc-1","status":"complete"}`), "doc-1")

	require.Eventually(t, func() bool { return posted == 1 }, 2*time.Second, 20*time.Millisecond)

	require.NoError(t, ext.Shutdown(context.Background()))
}

func TestNotifierExtensionRoutesIncludeStatus(t *testing.T) {
	ext := notify.NewExtension(nil)
	routes := ext.Routes()
	require.Len(t, routes, 1)
	assert.Equal(t, "/status", routes[0].Path)
}

func TestNotifierExtensionShutdownIsIdempotentWithoutInitialize(t *testing.T) {
	ext := notify.NewExtension(nil)
	require.NoError(t, ext.Shutdown(context.Background()))
}
