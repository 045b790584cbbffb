package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// getDocumentHandler handles GET /api/v1/documents/:id.
func (s *Server) getDocumentHandler(c *gin.Context) {
	doc, err := s.documents.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// listChunksHandler handles GET /api/v1/documents/:id/chunks.
func (s *Server) listChunksHandler(c *gin.Context) {
	chunks, err := s.chunks.ChunksForDocument(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, chunks)
}

// listEntitiesHandler handles GET /api/v1/documents/:id/entities.
func (s *Server) listEntitiesHandler(c *gin.Context) {
	mentions, err := s.entities.MentionsForDocument(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, mentions)
}

// listVectorsHandler handles GET /api/v1/documents/:id/vectors.
func (s *Server) listVectorsHandler(c *gin.Context) {
	vectors, err := s.vectors.VectorsForDocument(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, vectors)
}

// getCanonicalEntityHandler handles GET /api/v1/entities/:id.
func (s *Server) getCanonicalEntityHandler(c *gin.Context) {
	entity, err := s.entities.Canonical(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entity)
}
