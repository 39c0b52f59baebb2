package battle

import (
	"testing"
	"time"

	"roastarena/backend/internal/hub"
	"roastarena/backend/internal/models"
	"roastarena/backend/internal/queue"
	"roastarena/backend/internal/vote"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&models.QueueEntry{},
		&models.Match{},
		&models.Participant{},
		&models.Vote{},
		&models.MatchResult{},
		&models.PlayerStats{},
	))
	return db
}

type testEngine struct {
	db      *gorm.DB
	store   *queue.Store
	votes   *vote.Aggregator
	battles *Controller
}

func newTestEngine(t *testing.T) *testEngine {
	t.Helper()
	db := newTestDB(t)
	events := hub.NewHub()
	store := queue.NewStore(db)
	votes := vote.NewAggregator(db, events)
	opts := Options{
		ReadyTimeout:    150 * time.Millisecond,
		CountdownTick:   10 * time.Millisecond,
		CountdownTicks:  3,
		BattleDuration:  150 * time.Millisecond,
		VotingWindow:    75 * time.Millisecond,
		RematchWindow:   2 * time.Second,
		DisconnectGrace: 50 * time.Millisecond,
	}
	return &testEngine{
		db:      db,
		store:   store,
		votes:   votes,
		battles: NewController(db, store, votes, events, opts),
	}
}

func (e *testEngine) matchStatus(t *testing.T, matchID string) models.MatchStatus {
	t.Helper()
	var match models.Match
	require.NoError(t, e.db.First(&match, "id = ?", matchID).Error)
	return match.Status
}

func (e *testEngine) waitForStatus(t *testing.T, matchID string, want models.MatchStatus) {
	t.Helper()
	require.Eventually(t, func() bool {
		return e.matchStatus(t, matchID) == want
	}, 3*time.Second, 5*time.Millisecond, "match %s never reached %s", matchID, want)
}

func TestStartMatchAssignsTeamsInOrder(t *testing.T) {
	e := newTestEngine(t)
	match, err := e.battles.StartMatch(models.TeamSize2v2, []string{"u1", "u2", "u3", "u4"})
	require.NoError(t, err)

	var participants []models.Participant
	require.NoError(t, e.db.Where("match_id = ?", match.ID).Order("joined_at ASC").Find(&participants).Error)
	require.Len(t, participants, 4)

	teams := make(map[string]models.Team, 4)
	for _, p := range participants {
		teams[p.UserID] = p.Team
	}
	assert.Equal(t, models.TeamA, teams["u1"])
	assert.Equal(t, models.TeamA, teams["u2"])
	assert.Equal(t, models.TeamB, teams["u3"])
	assert.Equal(t, models.TeamB, teams["u4"])

	e.waitForStatus(t, match.ID, models.MatchReadyCheck)
}

func TestReadyCheckTimeoutCancelsAndRequeues(t *testing.T) {
	e := newTestEngine(t)
	match, err := e.battles.StartMatch(models.TeamSize1v1, []string{"u1", "u2"})
	require.NoError(t, err)

	require.NoError(t, e.battles.MarkReady(match.ID, "u1"))
	e.waitForStatus(t, match.ID, models.MatchCancelled)

	// No result row for a cancelled match.
	_, err = e.votes.Result(match.ID)
	assert.ErrorIs(t, err, models.ErrMatchNotFound)

	// The battler who readied up goes back to the queue; the no-show does not.
	pos, err := e.store.Position("u1", models.TeamSize1v1)
	require.NoError(t, err)
	assert.Equal(t, 1, pos)
	_, err = e.store.Position("u2", models.TeamSize1v1)
	assert.ErrorIs(t, err, models.ErrNotInQueue)

	// Cancelled matches leave no stats trace.
	var statRows int64
	require.NoError(t, e.db.Model(&models.PlayerStats{}).Count(&statRows).Error)
	assert.Zero(t, statRows)
}

func TestFullLifecycleEndsInTieWithoutVotes(t *testing.T) {
	e := newTestEngine(t)
	match, err := e.battles.StartMatch(models.TeamSize1v1, []string{"u1", "u2"})
	require.NoError(t, err)

	require.NoError(t, e.battles.MarkReady(match.ID, "u1"))
	require.NoError(t, e.battles.MarkReady(match.ID, "u2"))
	e.waitForStatus(t, match.ID, models.MatchCompleted)

	result, err := e.votes.Result(match.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WinnerTie, result.Winner)
	assert.Zero(t, result.TotalVotes)

	var stored models.Match
	require.NoError(t, e.db.First(&stored, "id = ?", match.ID).Error)
	assert.NotNil(t, stored.StartedAt)
	assert.NotNil(t, stored.EndedAt)

	for _, userID := range []string{"u1", "u2"} {
		var stats models.PlayerStats
		require.NoError(t, e.db.First(&stats, "user_id = ?", userID).Error)
		assert.Equal(t, int64(1), stats.TotalBattles)
		assert.Equal(t, int64(1), stats.BattlesTied)
		assert.Equal(t, int64(models.XPTie), stats.TotalXP)
	}
}

func TestAudienceVotesDecideTheWinner(t *testing.T) {
	e := newTestEngine(t)
	match, err := e.battles.StartMatch(models.TeamSize1v1, []string{"u1", "u2"})
	require.NoError(t, err)

	require.NoError(t, e.battles.MarkReady(match.ID, "u1"))
	require.NoError(t, e.battles.MarkReady(match.ID, "u2"))
	e.waitForStatus(t, match.ID, models.MatchActive)

	require.NoError(t, e.votes.CastVote(match.ID, "viewer1", models.TeamA))
	require.NoError(t, e.votes.CastVote(match.ID, "viewer2", models.TeamA))
	require.NoError(t, e.votes.CastVote(match.ID, "viewer3", models.TeamB))

	e.waitForStatus(t, match.ID, models.MatchCompleted)

	result, err := e.votes.Result(match.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WinnerTeamA, result.Winner)
	assert.Equal(t, int64(2), result.TeamAVotes)
	assert.Equal(t, int64(1), result.TeamBVotes)

	var winner, loser models.PlayerStats
	require.NoError(t, e.db.First(&winner, "user_id = ?", "u1").Error)
	require.NoError(t, e.db.First(&loser, "user_id = ?", "u2").Error)
	assert.Equal(t, int64(1), winner.BattlesWon)
	assert.Equal(t, int64(models.XPWin), winner.TotalXP)
	assert.Equal(t, int64(1), loser.BattlesLost)
	assert.Equal(t, int64(models.XPLoss), loser.TotalXP)
}

func TestDisconnectDuringBattleForfeits(t *testing.T) {
	e := newTestEngine(t)
	match, err := e.battles.StartMatch(models.TeamSize1v1, []string{"u1", "u2"})
	require.NoError(t, err)

	require.NoError(t, e.battles.MarkReady(match.ID, "u1"))
	require.NoError(t, e.battles.MarkReady(match.ID, "u2"))
	e.waitForStatus(t, match.ID, models.MatchActive)

	e.battles.ReportDisconnect(match.ID, "u2")
	e.waitForStatus(t, match.ID, models.MatchCompleted)

	result, err := e.votes.Result(match.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WinnerTeamA, result.Winner)

	var stats models.PlayerStats
	require.NoError(t, e.db.First(&stats, "user_id = ?", "u1").Error)
	assert.Equal(t, int64(1), stats.BattlesWon)
}

func TestReconnectWithinGraceAvoidsForfeit(t *testing.T) {
	e := newTestEngine(t)
	match, err := e.battles.StartMatch(models.TeamSize1v1, []string{"u1", "u2"})
	require.NoError(t, err)

	require.NoError(t, e.battles.MarkReady(match.ID, "u1"))
	require.NoError(t, e.battles.MarkReady(match.ID, "u2"))
	e.waitForStatus(t, match.ID, models.MatchActive)

	e.battles.ReportDisconnect(match.ID, "u2")
	e.battles.ReportReconnect(match.ID, "u2")

	e.waitForStatus(t, match.ID, models.MatchCompleted)

	// The battle ran its full course: no forfeit, tie on zero votes.
	result, err := e.votes.Result(match.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WinnerTie, result.Winner)
}

// hideMatchesTable makes every write to the matches table fail, simulating a
// transient database fault during a phase transition.
func hideMatchesTable(t *testing.T, db *gorm.DB) {
	t.Helper()
	require.NoError(t, db.Exec("ALTER TABLE matches RENAME TO matches_hidden").Error)
}

func restoreMatchesTable(t *testing.T, db *gorm.DB) {
	t.Helper()
	require.NoError(t, db.Exec("ALTER TABLE matches_hidden RENAME TO matches").Error)
}

func TestCountdownPersistFailureRetriesSameTransition(t *testing.T) {
	e := newTestEngine(t)
	match, err := e.battles.StartMatch(models.TeamSize1v1, []string{"u1", "u2"})
	require.NoError(t, err)
	e.waitForStatus(t, match.ID, models.MatchReadyCheck)

	// Both players ready up while the countdown write cannot land.
	hideMatchesTable(t, e.db)
	require.NoError(t, e.battles.MarkReady(match.ID, "u1"))
	require.NoError(t, e.battles.MarkReady(match.ID, "u2"))

	time.Sleep(100 * time.Millisecond)
	restoreMatchesTable(t, e.db)

	// The failed write must not have advanced anything: the row still says
	// ready_check, and the retry re-runs the countdown transition instead of
	// the ready timeout, so the fully-ready match goes on to complete.
	assert.Equal(t, models.MatchReadyCheck, e.matchStatus(t, match.ID))
	e.waitForStatus(t, match.ID, models.MatchCompleted)

	result, err := e.votes.Result(match.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WinnerTie, result.Winner)
}

func TestForfeitCompletionPersistFailureRetries(t *testing.T) {
	e := newTestEngine(t)
	match, err := e.battles.StartMatch(models.TeamSize1v1, []string{"u1", "u2"})
	require.NoError(t, err)

	require.NoError(t, e.battles.MarkReady(match.ID, "u1"))
	require.NoError(t, e.battles.MarkReady(match.ID, "u2"))
	e.waitForStatus(t, match.ID, models.MatchActive)

	// The forfeit's completion write fails; the retry must re-attempt
	// completion, not fall back to the active phase's expiry action.
	hideMatchesTable(t, e.db)
	e.battles.ReportDisconnect(match.ID, "u2")

	time.Sleep(200 * time.Millisecond)
	restoreMatchesTable(t, e.db)

	e.waitForStatus(t, match.ID, models.MatchCompleted)
	result, err := e.votes.Result(match.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WinnerTeamA, result.Winner)
}

func TestRematchStartsFreshMatch(t *testing.T) {
	e := newTestEngine(t)
	match, err := e.battles.StartMatch(models.TeamSize1v1, []string{"u1", "u2"})
	require.NoError(t, err)

	require.NoError(t, e.battles.MarkReady(match.ID, "u1"))
	require.NoError(t, e.battles.MarkReady(match.ID, "u2"))
	e.waitForStatus(t, match.ID, models.MatchCompleted)

	// One request alone does not trigger the rematch.
	require.NoError(t, e.battles.RequestRematch(match.ID, "u1"))
	var count int64
	require.NoError(t, e.db.Model(&models.Match{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	require.NoError(t, e.battles.RequestRematch(match.ID, "u2"))
	require.NoError(t, e.db.Model(&models.Match{}).Count(&count).Error)
	require.Equal(t, int64(2), count)

	var next models.Match
	require.NoError(t, e.db.Preload("Participants").First(&next, "id <> ?", match.ID).Error)
	assert.Len(t, next.Participants, 2)

	// The finished match is retired; further commands read as invalid.
	assert.ErrorIs(t, e.battles.RequestRematch(match.ID, "u1"), models.ErrInvalidTransition)
}

func TestMarkReadyOutsideReadyCheck(t *testing.T) {
	e := newTestEngine(t)
	match, err := e.battles.StartMatch(models.TeamSize1v1, []string{"u1", "u2"})
	require.NoError(t, err)

	require.NoError(t, e.battles.MarkReady(match.ID, "u1"))
	require.NoError(t, e.battles.MarkReady(match.ID, "u2"))
	e.waitForStatus(t, match.ID, models.MatchActive)

	assert.ErrorIs(t, e.battles.MarkReady(match.ID, "u1"), models.ErrInvalidTransition)
}

func TestMarkReadyRejectsOutsiders(t *testing.T) {
	e := newTestEngine(t)
	match, err := e.battles.StartMatch(models.TeamSize1v1, []string{"u1", "u2"})
	require.NoError(t, err)

	e.waitForStatus(t, match.ID, models.MatchReadyCheck)
	assert.ErrorIs(t, e.battles.MarkReady(match.ID, "stranger"), models.ErrInvalidTransition)
}

func TestCommandsOnUnknownMatch(t *testing.T) {
	e := newTestEngine(t)
	assert.ErrorIs(t, e.battles.MarkReady("battle_missing", "u1"), models.ErrMatchNotFound)
	assert.ErrorIs(t, e.battles.RequestRematch("battle_missing", "u1"), models.ErrMatchNotFound)
	_, err := e.battles.Snapshot("battle_missing")
	assert.ErrorIs(t, err, models.ErrMatchNotFound)
}

func TestSnapshotTracksLivePhase(t *testing.T) {
	e := newTestEngine(t)
	match, err := e.battles.StartMatch(models.TeamSize1v1, []string{"u1", "u2"})
	require.NoError(t, err)
	e.waitForStatus(t, match.ID, models.MatchReadyCheck)

	snap, err := e.battles.Snapshot(match.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchReadyCheck, snap.Match.Status)
	assert.Len(t, snap.Participants, 2)
	assert.Greater(t, snap.TimeRemaining, time.Duration(0))
	assert.LessOrEqual(t, snap.TimeRemaining, 150*time.Millisecond)

	ok, err := e.battles.IsParticipant(match.ID, "u1")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = e.battles.IsParticipant(match.ID, "viewer1")
	require.NoError(t, err)
	assert.False(t, ok)
}
