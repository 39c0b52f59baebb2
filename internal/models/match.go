package models

import "time"

// MatchStatus defines the lifecycle phase of a battle match. Transitions are
// monotonic along forming → ready_check → countdown → active → voting →
// completed, with cancelled as the only side exit.
type MatchStatus string

const (
	MatchForming    MatchStatus = "forming"
	MatchReadyCheck MatchStatus = "ready_check"
	MatchCountdown  MatchStatus = "countdown"
	MatchActive     MatchStatus = "active"
	MatchVoting     MatchStatus = "voting"
	MatchCompleted  MatchStatus = "completed"
	MatchCancelled  MatchStatus = "cancelled"
)

// Terminal reports whether no further transitions are possible.
func (s MatchStatus) Terminal() bool {
	return s == MatchCompleted || s == MatchCancelled
}

// Votable reports whether the audience may cast or change votes in this phase.
func (s MatchStatus) Votable() bool {
	return s == MatchActive || s == MatchVoting
}

// Match represents a timed head-to-head roast battle.
type Match struct {
	ID              string      `gorm:"primaryKey;size:64"`
	TeamSize        TeamSize    `gorm:"size:8;not null"`
	Status          MatchStatus `gorm:"size:16;not null;index"`
	DurationSeconds int         `gorm:"not null"`
	CreatedAt       time.Time
	StartedAt       *time.Time
	EndedAt         *time.Time

	Participants []Participant `gorm:"foreignKey:MatchID"`
}
