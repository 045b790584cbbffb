package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arkhamforge/docintel/pkg/broker"
	"github.com/arkhamforge/docintel/pkg/config"
	"github.com/arkhamforge/docintel/pkg/jobstore"
	"github.com/arkhamforge/docintel/pkg/store"
	"github.com/arkhamforge/docintel/pkg/worker"
)

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError maps err to an HTTP status and writes the JSON error body.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrDocumentNotFound),
		errors.Is(err, jobstore.ErrJobNotFound),
		errors.Is(err, broker.ErrNoJobAvailable),
		errors.Is(err, config.ErrPoolNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})

	case errors.Is(err, broker.ErrAlreadyClaimed):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})

	case errors.Is(err, worker.ErrPoolUnavailable), errors.Is(err, broker.ErrBrokerUnavailable):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: err.Error()})

	default:
		slog.Error("unexpected api error", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}
