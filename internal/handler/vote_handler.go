package handler

import (
	"net/http"
	"roastarena/backend/internal/models"

	"github.com/gin-gonic/gin"
)

// region --- DTOs ---

// VoteInput is a viewer's pick for one side of a match.
type VoteInput struct {
	Team models.Team `json:"team" binding:"required" example:"team_a"`
}

// VoteResponse confirms a cast vote and returns the resulting tally.
type VoteResponse struct {
	Team  models.Team      `json:"team" example:"team_a"`
	Tally models.VoteCount `json:"tally"`
}

// endregion

// CastVote godoc
// @Summary      Vote for a team
// @Description  Casts or changes the caller's vote. One vote per viewer per match; a second cast overwrites the first.
// @Tags         matches
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path string    true "Match ID"
// @Param        input body VoteInput true "Vote"
// @Success      200  {object}  VoteResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse "Participants may not vote in their own match"
// @Failure      404  {object}  ErrorResponse "Match not found"
// @Failure      409  {object}  ErrorResponse "Match is not accepting votes"
// @Router       /matches/{id}/vote [post]
func CastVote(c *gin.Context) {
	userID := c.GetString("userID")
	matchID := c.Param("id")

	var input VoteInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !input.Team.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown team"})
		return
	}

	if err := Votes.CastVote(matchID, userID, input.Team); err != nil {
		respondError(c, err)
		return
	}

	tally, _ := Votes.Tally(matchID)
	c.JSON(http.StatusOK, VoteResponse{Team: input.Team, Tally: tally})
}
