package handler

import (
	"errors"
	"net/http"
	"roastarena/backend/internal/database"
	"roastarena/backend/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// region --- DTOs ---

// BattleStatsResponse is a battler's lifetime record.
type BattleStatsResponse struct {
	UserID       string  `json:"user_id" example:"user_123"`
	TotalBattles int64   `json:"total_battles" example:"10"`
	BattlesWon   int64   `json:"battles_won" example:"6"`
	BattlesLost  int64   `json:"battles_lost" example:"3"`
	BattlesTied  int64   `json:"battles_tied" example:"1"`
	WinRate      float64 `json:"win_rate" example:"60"`
	TotalXP      int64   `json:"total_xp" example:"825"`
}

// endregion

// GetUserStats godoc
// @Summary      Get a user's battle stats
// @Description  Returns the lifetime win/loss/tie record and XP. Users with no battles get zeroes.
// @Tags         users
// @Produce      json
// @Param        id path string true "User ID"
// @Success      200  {object}  BattleStatsResponse
// @Router       /users/{id}/stats [get]
func GetUserStats(c *gin.Context) {
	userID := c.Param("id")

	var stats models.PlayerStats
	err := database.DB.First(&stats, "user_id = ?", userID).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load stats"})
		return
	}

	c.JSON(http.StatusOK, BattleStatsResponse{
		UserID:       userID,
		TotalBattles: stats.TotalBattles,
		BattlesWon:   stats.BattlesWon,
		BattlesLost:  stats.BattlesLost,
		BattlesTied:  stats.BattlesTied,
		WinRate:      stats.WinRate(),
		TotalXP:      stats.TotalXP,
	})
}

// GetUserHistory godoc
// @Summary      Get a user's battle history
// @Description  Returns a paginated list of results for matches the user battled in, newest first.
// @Tags         users
// @Produce      json
// @Param        id    path  string true  "User ID"
// @Param        page  query int    false "Page number" default(1)
// @Param        limit query int    false "Items per page" default(20)
// @Success      200  {object}  PaginatedResponse[MatchResultResponse]
// @Router       /users/{id}/history [get]
func GetUserHistory(c *gin.Context) {
	userID := c.Param("id")
	page, limit := pageParams(c)

	query := database.DB.
		Joins("JOIN participants ON participants.match_id = match_results.match_id").
		Where("participants.user_id = ?", userID).
		Order("match_results.decided_at DESC")

	results, err := Paginate[models.MatchResult](query, page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load history"})
		return
	}

	data := make([]MatchResultResponse, 0, len(results.Data))
	for _, r := range results.Data {
		data = append(data, newMatchResultResponse(r))
	}

	c.JSON(http.StatusOK, PaginatedResponse[MatchResultResponse]{
		Data: data,
		Meta: results.Meta,
	})
}
