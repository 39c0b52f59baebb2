package models

import "time"

// XP awarded per battle outcome.
const (
	XPWin  = 100
	XPLoss = 50
	XPTie  = 75
)

// PlayerStats tracks a battler's lifetime record across matches. Rows are
// upserted on match completion; cancelled matches leave no trace here.
type PlayerStats struct {
	UserID       string `gorm:"primaryKey;size:64"`
	BattlesWon   int64  `gorm:"not null;default:0"`
	BattlesLost  int64  `gorm:"not null;default:0"`
	BattlesTied  int64  `gorm:"not null;default:0"`
	TotalBattles int64  `gorm:"not null;default:0"`
	TotalXP      int64  `gorm:"not null;default:0"`
	UpdatedAt    time.Time
}

// WinRate returns the percentage of battles won, 0 when no battles were fought.
func (s PlayerStats) WinRate() float64 {
	if s.TotalBattles == 0 {
		return 0
	}
	return float64(s.BattlesWon) / float64(s.TotalBattles) * 100
}
