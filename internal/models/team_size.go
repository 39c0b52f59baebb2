package models

import (
	"strconv"
	"strings"
)

// TeamSize is the match format, e.g. "1v1" or "3v3". It determines how many
// battlers stand on each side.
type TeamSize string

const (
	TeamSize1v1 TeamSize = "1v1"
	TeamSize2v2 TeamSize = "2v2"
	TeamSize3v3 TeamSize = "3v3"
	TeamSize4v4 TeamSize = "4v4"
	TeamSize5v5 TeamSize = "5v5"
)

// AllTeamSizes lists every supported format, smallest first.
var AllTeamSizes = []TeamSize{TeamSize1v1, TeamSize2v2, TeamSize3v3, TeamSize4v4, TeamSize5v5}

// PerSide returns the number of battlers on each team (e.g. 3 for "3v3").
// Returns 0 for an unknown format.
func (s TeamSize) PerSide() int {
	parts := strings.SplitN(string(s), "v", 2)
	if len(parts) != 2 {
		return 0
	}
	n, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0
	}
	return n
}

// TotalPlayers returns the number of participants a match of this size needs
// across both teams.
func (s TeamSize) TotalPlayers() int {
	return s.PerSide() * 2
}

// Valid reports whether s is one of the supported formats.
func (s TeamSize) Valid() bool {
	for _, size := range AllTeamSizes {
		if s == size {
			return true
		}
	}
	return false
}
