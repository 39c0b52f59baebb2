package models

import "time"

// Winner is the outcome of a finished battle.
type Winner string

const (
	WinnerTeamA Winner = "team_a"
	WinnerTeamB Winner = "team_b"
	WinnerTie   Winner = "tie"
)

// DecideWinner applies the winner rule: strictly more votes wins, equal counts
// (including 0-0) are a tie.
func DecideWinner(teamAVotes, teamBVotes int64) Winner {
	switch {
	case teamAVotes > teamBVotes:
		return WinnerTeamA
	case teamBVotes > teamAVotes:
		return WinnerTeamB
	default:
		return WinnerTie
	}
}

// MatchResult is the single authoritative outcome of a match. It is written
// exactly once when voting closes and never changes afterwards; cancelled
// matches have no result row.
type MatchResult struct {
	MatchID    string    `gorm:"primaryKey;size:64"`
	Winner     Winner    `gorm:"size:8;not null"`
	TeamAVotes int64     `gorm:"not null"`
	TeamBVotes int64     `gorm:"not null"`
	TotalVotes int64     `gorm:"not null"`
	DecidedAt  time.Time `gorm:"not null"`
}
