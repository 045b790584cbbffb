package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/arkhamforge/docintel/pkg/jobstore"
	"github.com/arkhamforge/docintel/pkg/models"
)

// EnqueueJobRequest is the body of POST /api/v1/jobs.
type EnqueueJobRequest struct {
	Pool     string          `json:"pool" binding:"required"`
	Payload  json.RawMessage `json:"payload" binding:"required"`
	Priority int             `json:"priority"`
}

// enqueueJobHandler handles POST /api/v1/jobs, admitting the job through
// the Pool Dispatcher so a stale/unregistered pool is rejected with 503
// rather than silently queued.
func (s *Server) enqueueJobHandler(c *gin.Context) {
	var req EnqueueJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	jobID := uuid.NewString()
	if err := s.dispatcher.Enqueue(c.Request.Context(), req.Pool, jobID, req.Payload, req.Priority); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"id": jobID})
}

// getJobHandler handles GET /api/v1/jobs/:id.
func (s *Server) getJobHandler(c *gin.Context) {
	job, err := s.jobs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// listJobsHandler handles GET /api/v1/jobs, filterable by ?pool=&status=&limit=&offset=.
func (s *Server) listJobsHandler(c *gin.Context) {
	filter := jobstore.ListFilter{
		Pool:   c.Query("pool"),
		Status: models.JobStatus(c.Query("status")),
	}
	if limit, err := strconv.Atoi(c.Query("limit")); err == nil {
		filter.Limit = limit
	}
	if offset, err := strconv.Atoi(c.Query("offset")); err == nil {
		filter.Offset = offset
	}

	jobs, err := s.jobs.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, jobs)
}

// jobHistoryHandler handles GET /api/v1/jobs/:id/history, returning the
// full event trail for a job via its correlation id (the dispatcher
// stamps every downstream stage enqueue with the originating job's id as
// its correlation id).
func (s *Server) jobHistoryHandler(c *gin.Context) {
	history, err := s.eventLog.ByCorrelationID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}
