package database_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkhamforge/docintel/pkg/broker"
	"github.com/arkhamforge/docintel/pkg/database"
	testdb "github.com/arkhamforge/docintel/test/database"
)

func TestHealthReportsConnectivityAndQueueBacklog(t *testing.T) {
	client := testdb.NewTestClient(t)
	ctx := context.Background()

	status, err := database.Health(ctx, client.DB())
	require.NoError(t, err)
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, 0, status.PendingJobs)
	assert.Equal(t, 0, status.DeadLetteredJobs)

	b := broker.New(client.DB())
	require.NoError(t, b.Enqueue(ctx, "extract", uuid.NewString(), []byte(`{}`), 0))

	status, err = database.Health(ctx, client.DB())
	require.NoError(t, err)
	assert.Equal(t, 1, status.PendingJobs)
	assert.Positive(t, status.OldestPendingJobAge.Nanoseconds())
}
