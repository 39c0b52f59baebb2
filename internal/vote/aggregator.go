package vote

import (
	"errors"
	"time"

	"roastarena/backend/internal/hub"
	"roastarena/backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Aggregator records one vote per viewer per match and turns the final tally
// into a MatchResult. Concurrent votes are safe: casting is an atomic upsert
// keyed by (match_id, voter_id), so the tally always reflects exactly one row
// per voter holding their latest choice.
type Aggregator struct {
	db     *gorm.DB
	events *hub.Hub
}

// NewAggregator creates a vote aggregator backed by db, pushing tally changes
// through events.
func NewAggregator(db *gorm.DB, events *hub.Hub) *Aggregator {
	return &Aggregator{db: db, events: events}
}

// CastVote records voterID's pick for a team. A second cast from the same
// voter overwrites the previous one. Fails with ErrMatchNotVotable outside the
// active/voting phases and ErrSelfVoteForbidden for participants of the match.
func (a *Aggregator) CastVote(matchID, voterID string, team models.Team) error {
	var match models.Match
	if err := a.db.First(&match, "id = ?", matchID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.ErrMatchNotFound
		}
		return err
	}
	if !match.Status.Votable() {
		return models.ErrMatchNotVotable
	}

	var participants int64
	err := a.db.Model(&models.Participant{}).
		Where("match_id = ? AND user_id = ?", matchID, voterID).
		Count(&participants).Error
	if err != nil {
		return err
	}
	if participants > 0 {
		return models.ErrSelfVoteForbidden
	}

	now := time.Now()
	vote := models.Vote{
		MatchID:   matchID,
		VoterID:   voterID,
		Team:      team,
		CastAt:    now,
		UpdatedAt: now,
	}
	err = a.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "match_id"}, {Name: "voter_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"team", "updated_at"}),
	}).Create(&vote).Error
	if err != nil {
		return err
	}

	tally, err := a.Tally(matchID)
	if err == nil {
		a.events.Broadcast(hub.MatchTopic(matchID), hub.EventVoteTallyChanged, tally)
	}
	return nil
}

// Tally returns the live vote counts for a match.
func (a *Aggregator) Tally(matchID string) (models.VoteCount, error) {
	return tally(a.db, matchID)
}

func tally(db *gorm.DB, matchID string) (models.VoteCount, error) {
	var teamA, teamB int64
	err := db.Model(&models.Vote{}).
		Where("match_id = ? AND team = ?", matchID, models.TeamA).
		Count(&teamA).Error
	if err != nil {
		return models.VoteCount{}, err
	}
	err = db.Model(&models.Vote{}).
		Where("match_id = ? AND team = ?", matchID, models.TeamB).
		Count(&teamB).Error
	if err != nil {
		return models.VoteCount{}, err
	}
	return models.NewVoteCount(teamA, teamB), nil
}

// UserVote returns the team the voter currently backs, or ok=false if they
// have not voted in this match.
func (a *Aggregator) UserVote(matchID, voterID string) (models.Team, bool, error) {
	var vote models.Vote
	err := a.db.
		Where("match_id = ? AND voter_id = ?", matchID, voterID).
		First(&vote).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return vote.Team, true, nil
}

// Finalize freezes the tally into a MatchResult. It is idempotent: a second
// call returns the stored result untouched, so votes landing after the window
// closed can never change the outcome.
func (a *Aggregator) Finalize(matchID string) (*models.MatchResult, error) {
	return a.finalize(matchID, nil)
}

// FinalizeForfeit freezes the tally but forces the winner, used when a
// participant abandons the match and the remaining team is awarded the win.
func (a *Aggregator) FinalizeForfeit(matchID string, winner models.Winner) (*models.MatchResult, error) {
	return a.finalize(matchID, &winner)
}

func (a *Aggregator) finalize(matchID string, forced *models.Winner) (*models.MatchResult, error) {
	var result models.MatchResult

	err := a.db.Transaction(func(tx *gorm.DB) error {
		err := tx.First(&result, "match_id = ?", matchID).Error
		if err == nil {
			return nil // already decided, stored result wins
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		counts, err := tally(tx, matchID)
		if err != nil {
			return err
		}

		winner := models.DecideWinner(counts.TeamA, counts.TeamB)
		if forced != nil {
			winner = *forced
		}

		result = models.MatchResult{
			MatchID:    matchID,
			Winner:     winner,
			TeamAVotes: counts.TeamA,
			TeamBVotes: counts.TeamB,
			TotalVotes: counts.Total,
			DecidedAt:  time.Now(),
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&result).Error
	})
	if err != nil {
		return nil, err
	}

	// Re-read in case a concurrent finalize won the insert.
	if err := a.db.First(&result, "match_id = ?", matchID).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

// Result returns the stored MatchResult, or ErrMatchNotFound if the match was
// never finalized.
func (a *Aggregator) Result(matchID string) (*models.MatchResult, error) {
	var result models.MatchResult
	err := a.db.First(&result, "match_id = ?", matchID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrMatchNotFound
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}
