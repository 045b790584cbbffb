package events_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkhamforge/docintel/pkg/events"
	"github.com/arkhamforge/docintel/pkg/models"
	testdb "github.com/arkhamforge/docintel/test/database"
)

func TestLogAppendAndByCorrelationID(t *testing.T) {
	client := testdb.NewTestClient(t)
	log := events.NewLog(client.DB())
	ctx := context.Background()

	corr := uuid.NewString()
	evt := models.Event{
		ID:            uuid.NewString(),
		Type:          events.TopicDocumentIngested,
		Source:        "core",
		Payload:       []byte(`{"document_id":"d1"}`),
		Sequence:      1,
		CorrelationID: corr,
	}
	require.NoError(t, log.Append(ctx, evt))

	got, err := log.ByCorrelationID(ctx, corr)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, evt.Type, got[0].Type)
	assert.Equal(t, corr, got[0].CorrelationID)
}

func TestLogTruncateEmptiesLog(t *testing.T) {
	client := testdb.NewTestClient(t)
	log := events.NewLog(client.DB())
	ctx := context.Background()

	corr := uuid.NewString()
	require.NoError(t, log.Append(ctx, models.Event{
		ID: uuid.NewString(), Type: "document.ingested", Source: "core",
		Payload: []byte(`{}`), Sequence: 1, CorrelationID: corr,
	}))

	require.NoError(t, log.Truncate(ctx))

	got, err := log.ByCorrelationID(ctx, corr)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLogSubscribeAppendsPublishedEvents(t *testing.T) {
	client := testdb.NewTestClient(t)
	log := events.NewLog(client.DB())
	bus := events.New()
	ctx := context.Background()

	log.Subscribe(ctx, bus, func(err error) { t.Logf("log append error: %v", err) })

	corr := uuid.NewString()
	bus.Publish(events.TopicDocumentIngested, "core", []byte(`{"document_id":"d1"}`), corr)

	require.Eventually(t, func() bool {
		got, err := log.ByCorrelationID(ctx, corr)
		return err == nil && len(got) == 1
	}, defaultEventualTimeout, defaultEventualTick)
}
