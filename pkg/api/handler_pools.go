package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// listPoolsHandler handles GET /api/v1/pools.
func (s *Server) listPoolsHandler(c *gin.Context) {
	pools := s.pools.GetAll()
	resp := make(map[string]PoolResponse, len(pools))
	for name, pool := range pools {
		resp[name] = s.poolResponse(name, pool)
	}
	c.JSON(http.StatusOK, resp)
}

// getPoolHandler handles GET /api/v1/pools/:name.
func (s *Server) getPoolHandler(c *gin.Context) {
	name := c.Param("name")
	pool, err := s.pools.Get(name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.poolResponse(name, pool))
}
