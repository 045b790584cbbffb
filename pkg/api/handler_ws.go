package api

import (
	"net/http"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
)

// jobEventsHandler handles GET /api/v1/jobs/:id/events, upgrading to a
// WebSocket and bridging it onto the event bus via TailServer. The pattern query parameter
// selects which topics are relayed; it defaults to every topic. Unlike
// jobHistoryHandler, the live tail is not scoped to the job's
// correlation id — a connected client narrows the stream itself by
// sending a {"action":"subscribe","pattern":"..."} message.
func (s *Server) jobEventsHandler(c *gin.Context) {
	if s.tailServer == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "event tail not enabled"})
		return
	}

	pattern := c.Query("pattern")

	conn, err := websocket.Accept(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.CloseNow()

	s.tailServer.HandleConnection(c.Request.Context(), conn, pattern)
}
