package handler

import (
	"io"
	"net/http"
	"roastarena/backend/internal/hub"

	"github.com/gin-gonic/gin"
)

// QueueEvents godoc
// @Summary      Subscribe to queue events
// @Description  SSE stream pushing match-found events for the authenticated user.
// @Tags         events
// @Produce      text/event-stream
// @Security     BearerAuth
// @Success      200 {string} string "event stream"
// @Router       /queue/events [get]
func QueueEvents(c *gin.Context) {
	userID := c.GetString("userID")
	streamTopic(c, hub.QueueTopic(userID))
}

// MatchEvents godoc
// @Summary      Subscribe to match events
// @Description  SSE stream pushing phase changes, tally updates and the final result for one match. Participants' connection liveness is tracked here for forfeit detection.
// @Tags         events
// @Produce      text/event-stream
// @Param        id path string true "Match ID"
// @Success      200 {string} string "event stream"
// @Failure      404 {object} ErrorResponse "Match not found"
// @Router       /matches/{id}/events [get]
func MatchEvents(c *gin.Context) {
	matchID := c.Param("id")

	if _, err := Battles.Snapshot(matchID); err != nil {
		respondError(c, err)
		return
	}

	// A participant holding this stream open counts as connected; dropping it
	// mid-battle starts the forfeit grace timer.
	userID := c.GetString("userID")
	if userID != "" {
		if ok, err := Battles.IsParticipant(matchID, userID); err == nil && ok {
			Battles.ReportReconnect(matchID, userID)
			defer Battles.ReportDisconnect(matchID, userID)
		}
	}

	streamTopic(c, hub.MatchTopic(matchID))
}

// streamTopic pipes hub events for one topic down an SSE connection until the
// client goes away.
func streamTopic(c *gin.Context, topic string) {
	client := make(hub.Client, 16)
	Events.Subscribe(topic, client)
	defer Events.Unsubscribe(topic, client)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no") // nginx
	c.Status(http.StatusOK)

	c.Stream(func(w io.Writer) bool {
		select {
		case message, ok := <-client:
			if !ok {
				return false
			}
			c.SSEvent("message", string(message))
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
