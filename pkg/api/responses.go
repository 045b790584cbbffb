package api

import (
	"time"

	"github.com/arkhamforge/docintel/pkg/config"
)

// PoolResponse is a pool's declared configuration joined with its live
// worker-registry state, the shape GET /api/v1/pools and /health surface.
type PoolResponse struct {
	Name           string        `json:"name"`
	ResourceTier   string        `json:"resource_tier"`
	MaxConcurrency int           `json:"max_concurrency"`
	JobTimeout     time.Duration `json:"job_timeout"`
	WorkerCount    int           `json:"worker_count"`
	LastHeartbeat  *time.Time    `json:"last_heartbeat,omitempty"`
}

func (s *Server) poolResponse(name string, pool *config.PoolConfig) PoolResponse {
	resp := PoolResponse{
		Name:           name,
		ResourceTier:   string(pool.ResourceTier),
		MaxConcurrency: pool.MaxConcurrency,
		JobTimeout:     pool.JobTimeout,
		WorkerCount:    s.workers.PoolWorkerCount(name),
	}
	if last, ok := s.workers.LastHeartbeat(name); ok {
		resp.LastHeartbeat = &last
	}
	return resp
}
