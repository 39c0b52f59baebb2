package handler

import (
	"net/http"
	"roastarena/backend/internal/models"

	"github.com/gin-gonic/gin"
)

// region --- DTOs ---

// QueueInput identifies the queue bucket a command applies to.
type QueueInput struct {
	TeamSize models.TeamSize `json:"team_size" binding:"required" example:"1v1"`
}

// QueueJoinResponse confirms a queue join.
type QueueJoinResponse struct {
	EntryID              uint            `json:"entry_id" example:"42"`
	TeamSize             models.TeamSize `json:"team_size" example:"1v1"`
	Position             int             `json:"position" example:"3"`
	EstimatedWaitSeconds int             `json:"estimated_wait_seconds" example:"45"`
}

// QueueStatusResponse describes the caller's place in a queue bucket.
type QueueStatusResponse struct {
	InQueue              bool            `json:"in_queue"`
	TeamSize             models.TeamSize `json:"team_size,omitempty" example:"1v1"`
	Position             int             `json:"position,omitempty" example:"3"`
	EstimatedWaitSeconds int             `json:"estimated_wait_seconds,omitempty" example:"45"`
}

// endregion

// JoinQueue godoc
// @Summary      Join the matchmaking queue
// @Description  Adds the caller to the queue for a team size and kicks a pairing run.
// @Tags         queue
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        input body QueueInput true "Queue bucket"
// @Success      201  {object}  QueueJoinResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse "Already queued for this team size"
// @Router       /queue/join [post]
func JoinQueue(c *gin.Context) {
	userID := c.GetString("userID")

	var input QueueInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !input.TeamSize.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown team size"})
		return
	}

	entryID, err := Queue.Join(userID, input.TeamSize)
	if err != nil {
		respondError(c, err)
		return
	}

	// Try to pair immediately instead of waiting for the next sweep.
	Matchmaker.Kick()

	position, _ := Queue.Position(userID, input.TeamSize)
	wait, _ := Queue.EstimatedWait(input.TeamSize)

	c.JSON(http.StatusCreated, QueueJoinResponse{
		EntryID:              entryID,
		TeamSize:             input.TeamSize,
		Position:             position,
		EstimatedWaitSeconds: int(wait.Seconds()),
	})
}

// LeaveQueue godoc
// @Summary      Leave the matchmaking queue
// @Description  Cancels the caller's waiting entry. Leaving without an entry succeeds as a no-op.
// @Tags         queue
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        input body QueueInput true "Queue bucket"
// @Success      200  {object}  map[string]string "{"message": "Left matchmaking queue"}"
// @Failure      400  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse "Entry already claimed into a match"
// @Router       /queue/leave [post]
func LeaveQueue(c *gin.Context) {
	userID := c.GetString("userID")

	var input QueueInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := Queue.Leave(userID, input.TeamSize); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Left matchmaking queue"})
}

// QueueStatus godoc
// @Summary      Get queue status
// @Description  Returns the caller's position and a non-binding wait estimate for a team size.
// @Tags         queue
// @Produce      json
// @Security     BearerAuth
// @Param        team_size query string true "Team size (1v1..5v5)"
// @Success      200  {object}  QueueStatusResponse
// @Failure      400  {object}  ErrorResponse
// @Router       /queue/status [get]
func QueueStatus(c *gin.Context) {
	userID := c.GetString("userID")

	size := models.TeamSize(c.Query("team_size"))
	if !size.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown team size"})
		return
	}

	position, err := Queue.Position(userID, size)
	if err != nil {
		// Not being queued is a normal answer, not an error.
		c.JSON(http.StatusOK, QueueStatusResponse{InQueue: false})
		return
	}

	wait, _ := Queue.EstimatedWait(size)
	c.JSON(http.StatusOK, QueueStatusResponse{
		InQueue:              true,
		TeamSize:             size,
		Position:             position,
		EstimatedWaitSeconds: int(wait.Seconds()),
	})
}
