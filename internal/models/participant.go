package models

import "time"

// Team identifies one of the two sides of a battle.
type Team string

const (
	TeamA Team = "team_a"
	TeamB Team = "team_b"
)

// Valid reports whether t names a real side.
func (t Team) Valid() bool {
	return t == TeamA || t == TeamB
}

// Participant is a battler assigned to one side of a match. A participant row
// lives and dies with its match.
// The primary key is a composite of (MatchID, UserID) to ensure uniqueness.
type Participant struct {
	MatchID  string    `gorm:"primaryKey;size:64"`
	UserID   string    `gorm:"primaryKey;size:64"`
	Team     Team      `gorm:"size:8;not null"`
	IsReady  bool      `gorm:"not null;default:false"`
	JoinedAt time.Time `gorm:"not null"`
}
