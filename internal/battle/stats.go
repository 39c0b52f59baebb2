package battle

import (
	"time"

	"roastarena/backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// upsertStats applies one battle outcome to a player's lifetime record in a
// single atomic statement.
func upsertStats(db *gorm.DB, userID string, wins, losses, ties, xp int64) error {
	stats := models.PlayerStats{
		UserID:       userID,
		BattlesWon:   wins,
		BattlesLost:  losses,
		BattlesTied:  ties,
		TotalBattles: 1,
		TotalXP:      xp,
		UpdatedAt:    time.Now(),
	}
	return db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"battles_won":   gorm.Expr("player_stats.battles_won + ?", wins),
			"battles_lost":  gorm.Expr("player_stats.battles_lost + ?", losses),
			"battles_tied":  gorm.Expr("player_stats.battles_tied + ?", ties),
			"total_battles": gorm.Expr("player_stats.total_battles + 1"),
			"total_xp":      gorm.Expr("player_stats.total_xp + ?", xp),
			"updated_at":    time.Now(),
		}),
	}).Create(&stats).Error
}
