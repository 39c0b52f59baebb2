package models

import "time"

// Vote is a viewer's pick for one side of a match. The primary key is a
// composite of (MatchID, VoterID): a second cast from the same voter
// overwrites Team and UpdatedAt instead of inserting a new row.
type Vote struct {
	MatchID   string    `gorm:"primaryKey;size:64"`
	VoterID   string    `gorm:"primaryKey;size:64"`
	Team      Team      `gorm:"size:8;not null"`
	CastAt    time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// VoteCount is a live tally for a match. Percentages default to 50/50 when no
// votes have been cast yet, so the UI has a neutral split to render.
type VoteCount struct {
	TeamA int64   `json:"team_a"`
	TeamB int64   `json:"team_b"`
	Total int64   `json:"total"`
	PctA  float64 `json:"pct_a"`
	PctB  float64 `json:"pct_b"`
}

// NewVoteCount builds a VoteCount from raw per-team totals.
func NewVoteCount(teamA, teamB int64) VoteCount {
	count := VoteCount{
		TeamA: teamA,
		TeamB: teamB,
		Total: teamA + teamB,
		PctA:  50,
		PctB:  50,
	}
	if count.Total > 0 {
		count.PctA = float64(teamA) / float64(count.Total) * 100
		count.PctB = float64(teamB) / float64(count.Total) * 100
	}
	return count
}
