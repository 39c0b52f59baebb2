package handler

import (
	"net/http"
	"roastarena/backend/internal/models"

	"github.com/gin-gonic/gin"
)

// region --- DTOs ---

// ParticipantResponse describes one battler in a match.
type ParticipantResponse struct {
	UserID  string      `json:"user_id" example:"user_123"`
	Team    models.Team `json:"team" example:"team_a"`
	IsReady bool        `json:"is_ready"`
}

// MatchSnapshotResponse is the authoritative match state as clients should
// render it.
type MatchSnapshotResponse struct {
	MatchID              string                `json:"match_id"`
	TeamSize             models.TeamSize       `json:"team_size" example:"1v1"`
	Status               models.MatchStatus    `json:"status" example:"active"`
	DurationSeconds      int                   `json:"duration_seconds" example:"180"`
	TimeRemainingSeconds int                   `json:"time_remaining_seconds" example:"120"`
	Countdown            int                   `json:"countdown,omitempty" example:"3"`
	Participants         []ParticipantResponse `json:"participants"`
	Tally                models.VoteCount      `json:"tally"`
	YourTeam             *models.Team          `json:"your_team,omitempty"`
}

// MatchResultResponse is the immutable outcome of a completed match.
type MatchResultResponse struct {
	MatchID    string        `json:"match_id"`
	Winner     models.Winner `json:"winner" example:"team_a"`
	TeamAVotes int64         `json:"team_a_votes" example:"100"`
	TeamBVotes int64         `json:"team_b_votes" example:"80"`
	TotalVotes int64         `json:"total_votes" example:"180"`
	DecidedAt  string        `json:"decided_at"`
}

func newMatchResultResponse(result models.MatchResult) MatchResultResponse {
	return MatchResultResponse{
		MatchID:    result.MatchID,
		Winner:     result.Winner,
		TeamAVotes: result.TeamAVotes,
		TeamBVotes: result.TeamBVotes,
		TotalVotes: result.TotalVotes,
		DecidedAt:  result.DecidedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

// endregion

// GetMatch godoc
// @Summary      Get a match snapshot
// @Description  Returns the current phase, participants, server time remaining and live tally.
// @Tags         matches
// @Produce      json
// @Param        id path string true "Match ID"
// @Success      200  {object}  MatchSnapshotResponse
// @Failure      404  {object}  ErrorResponse "Match not found"
// @Router       /matches/{id} [get]
func GetMatch(c *gin.Context) {
	matchID := c.Param("id")

	snap, err := Battles.Snapshot(matchID)
	if err != nil {
		respondError(c, err)
		return
	}

	viewerID := c.GetString("userID")
	response := MatchSnapshotResponse{
		MatchID:              snap.Match.ID,
		TeamSize:             snap.Match.TeamSize,
		Status:               snap.Match.Status,
		DurationSeconds:      snap.Match.DurationSeconds,
		TimeRemainingSeconds: int(snap.TimeRemaining.Seconds()),
		Countdown:            snap.Countdown,
		Tally:                snap.Tally,
	}
	for _, p := range snap.Participants {
		response.Participants = append(response.Participants, ParticipantResponse{
			UserID:  p.UserID,
			Team:    p.Team,
			IsReady: p.IsReady,
		})
		if viewerID != "" && p.UserID == viewerID {
			team := p.Team
			response.YourTeam = &team
		}
	}

	c.JSON(http.StatusOK, response)
}

// MarkReady godoc
// @Summary      Mark ready for battle
// @Description  Confirms readiness during the ready check. The countdown starts once everyone is ready.
// @Tags         matches
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Match ID"
// @Success      200  {object}  map[string]string "{"message": "Ready"}"
// @Failure      404  {object}  ErrorResponse "Match not found"
// @Failure      409  {object}  ErrorResponse "Match is not in ready check"
// @Router       /matches/{id}/ready [post]
func MarkReady(c *gin.Context) {
	userID := c.GetString("userID")
	matchID := c.Param("id")

	if err := Battles.MarkReady(matchID, userID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Ready"})
}

// RequestRematch godoc
// @Summary      Request a rematch
// @Description  Asks for a rematch after completion. A new match forms once all participants ask within the offer window.
// @Tags         matches
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Match ID"
// @Success      200  {object}  map[string]string "{"message": "Rematch requested"}"
// @Failure      404  {object}  ErrorResponse "Match not found"
// @Failure      409  {object}  ErrorResponse "Match is not completed or the offer expired"
// @Router       /matches/{id}/rematch [post]
func RequestRematch(c *gin.Context) {
	userID := c.GetString("userID")
	matchID := c.Param("id")

	if err := Battles.RequestRematch(matchID, userID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Rematch requested"})
}

// GetMatchResult godoc
// @Summary      Get the final result of a match
// @Description  Returns the immutable result written when voting closed.
// @Tags         matches
// @Produce      json
// @Param        id path string true "Match ID"
// @Success      200  {object}  MatchResultResponse
// @Failure      404  {object}  ErrorResponse "No result for this match"
// @Router       /matches/{id}/result [get]
func GetMatchResult(c *gin.Context) {
	matchID := c.Param("id")

	result, err := Votes.Result(matchID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, newMatchResultResponse(*result))
}
