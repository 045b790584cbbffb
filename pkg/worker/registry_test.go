package worker_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/arkhamforge/docintel/pkg/worker"
)

func TestRegistryLastHeartbeatUnknownPool(t *testing.T) {
	r := worker.NewRegistry()
	_, ok := r.LastHeartbeat("extract")
	assert.False(t, ok)
}

func TestRegistryTracksMostRecentHeartbeatAcrossWorkers(t *testing.T) {
	r := worker.NewRegistry()
	r.Register("extract-worker-0", "extract")
	r.Register("extract-worker-1", "extract")

	r.Heartbeat("extract-worker-0")
	time.Sleep(5 * time.Millisecond)
	r.Heartbeat("extract-worker-1")

	last, ok := r.LastHeartbeat("extract")
	assert.True(t, ok)
	assert.WithinDuration(t, time.Now(), last, time.Second)
	assert.Equal(t, 2, r.PoolWorkerCount("extract"))
}

func TestRegistryUnregisterRemovesWorker(t *testing.T) {
	r := worker.NewRegistry()
	r.Register("w1", "ocr")
	r.Unregister("w1")

	assert.Equal(t, 0, r.PoolWorkerCount("ocr"))
	_, ok := r.LastHeartbeat("ocr")
	assert.False(t, ok)
}
