package battle

import (
	"errors"
	"log"
	"sync"
	"time"

	"roastarena/backend/internal/hub"
	"roastarena/backend/internal/models"
	"roastarena/backend/internal/queue"
	"roastarena/backend/internal/vote"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Options are the server-authoritative phase timings.
type Options struct {
	ReadyTimeout    time.Duration
	CountdownTick   time.Duration
	CountdownTicks  int
	BattleDuration  time.Duration
	VotingWindow    time.Duration
	RematchWindow   time.Duration
	DisconnectGrace time.Duration
}

// DefaultOptions returns the production timings.
func DefaultOptions() Options {
	return Options{
		ReadyTimeout:    30 * time.Second,
		CountdownTick:   time.Second,
		CountdownTicks:  3,
		BattleDuration:  180 * time.Second,
		VotingWindow:    5 * time.Second,
		RematchWindow:   60 * time.Second,
		DisconnectGrace: 15 * time.Second,
	}
}

// Controller owns every live match. Each match runs as its own actor goroutine
// that serializes all transitions, so a ready-up arriving at the same instant
// as a ready-timeout resolves to a single total order. There is no global lock
// across matches; the registry mutex only guards the actor map.
type Controller struct {
	db     *gorm.DB
	store  *queue.Store
	votes  *vote.Aggregator
	events *hub.Hub
	opts   Options

	mu     sync.Mutex
	actors map[string]*actor
}

// NewController creates the match controller.
func NewController(db *gorm.DB, store *queue.Store, votes *vote.Aggregator, events *hub.Hub, opts Options) *Controller {
	return &Controller{
		db:     db,
		store:  store,
		votes:  votes,
		events: events,
		opts:   opts,
		actors: make(map[string]*actor),
	}
}

// NewMatchID mints a match identifier. The scheduler pre-generates it so the
// queue claim can stamp entries with the match they were consumed into.
func NewMatchID() string {
	return "battle_" + uuid.NewString()
}

// StartMatch creates a match for the given users (first half team_a, second
// half team_b), persists it in forming status and spins up its actor, which
// immediately moves to ready_check and notifies the participants.
func (c *Controller) StartMatch(size models.TeamSize, userIDs []string) (*models.Match, error) {
	return c.StartMatchWithID(NewMatchID(), size, userIDs)
}

// StartMatchWithID is StartMatch with a caller-supplied id.
func (c *Controller) StartMatchWithID(matchID string, size models.TeamSize, userIDs []string) (*models.Match, error) {
	match := models.Match{
		ID:              matchID,
		TeamSize:        size,
		Status:          models.MatchForming,
		DurationSeconds: int(c.opts.BattleDuration / time.Second),
		CreatedAt:       time.Now(),
	}

	perSide := size.PerSide()
	participants := make([]models.Participant, 0, len(userIDs))
	for i, userID := range userIDs {
		team := models.TeamA
		if i >= perSide {
			team = models.TeamB
		}
		participants = append(participants, models.Participant{
			MatchID:  match.ID,
			UserID:   userID,
			Team:     team,
			JoinedAt: time.Now(),
		})
	}

	err := c.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&match).Error; err != nil {
			return err
		}
		return tx.Create(&participants).Error
	})
	if err != nil {
		return nil, err
	}

	a := newActor(c, match, participants)
	c.mu.Lock()
	c.actors[match.ID] = a
	c.mu.Unlock()
	go a.run()

	log.Printf("battle: match %s formed (%s, %d players)", match.ID, size, len(userIDs))
	match.Participants = participants
	return &match, nil
}

// MarkReady records a participant's ready-up during the ready check. When the
// last participant readies up, the match moves to countdown immediately.
func (c *Controller) MarkReady(matchID, userID string) error {
	a, err := c.actor(matchID)
	if err != nil {
		return err
	}
	return a.do(cmdMarkReady, userID)
}

// RequestRematch asks for a rematch after completion. A new match with the
// same participants is formed once every participant has asked within the
// rematch window.
func (c *Controller) RequestRematch(matchID, userID string) error {
	a, err := c.actor(matchID)
	if err != nil {
		return err
	}
	return a.do(cmdRequestRematch, userID)
}

// ReportDisconnect tells the match that a participant's event stream dropped.
// During the active phase this starts the forfeit grace timer.
func (c *Controller) ReportDisconnect(matchID, userID string) {
	if a, err := c.actor(matchID); err == nil {
		_ = a.do(cmdDisconnect, userID)
	}
}

// ReportReconnect cancels a pending forfeit grace timer for the participant.
func (c *Controller) ReportReconnect(matchID, userID string) {
	if a, err := c.actor(matchID); err == nil {
		_ = a.do(cmdReconnect, userID)
	}
}

// Snapshot describes the current authoritative state of a match.
type Snapshot struct {
	Match         models.Match
	Participants  []models.Participant
	TimeRemaining time.Duration
	Countdown     int
	Tally         models.VoteCount
}

// Snapshot returns the match state as clients should render it. Works for
// both live matches (actor-backed timings) and archived ones.
func (c *Controller) Snapshot(matchID string) (*Snapshot, error) {
	var match models.Match
	err := c.db.Preload("Participants").First(&match, "id = ?", matchID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrMatchNotFound
	}
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{Match: match, Participants: match.Participants}

	if tally, err := c.votes.Tally(matchID); err == nil {
		snap.Tally = tally
	}

	c.mu.Lock()
	a := c.actors[matchID]
	c.mu.Unlock()
	if a != nil {
		if live, err := a.snapshot(); err == nil {
			snap.Match.Status = live.status
			snap.Countdown = live.countdown
			if !live.phaseEnd.IsZero() {
				snap.TimeRemaining = time.Until(live.phaseEnd)
				if snap.TimeRemaining < 0 {
					snap.TimeRemaining = 0
				}
			}
		}
	}
	return snap, nil
}

// IsParticipant reports whether userID battles in matchID.
func (c *Controller) IsParticipant(matchID, userID string) (bool, error) {
	var count int64
	err := c.db.Model(&models.Participant{}).
		Where("match_id = ? AND user_id = ?", matchID, userID).
		Count(&count).Error
	return count > 0, err
}

func (c *Controller) actor(matchID string) (*actor, error) {
	c.mu.Lock()
	a := c.actors[matchID]
	c.mu.Unlock()
	if a != nil {
		return a, nil
	}

	// No live actor: distinguish unknown matches from finished ones.
	var match models.Match
	err := c.db.Select("id", "status").First(&match, "id = ?", matchID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrMatchNotFound
	}
	if err != nil {
		return nil, err
	}
	return nil, models.ErrInvalidTransition
}

func (c *Controller) unregister(matchID string) {
	c.mu.Lock()
	delete(c.actors, matchID)
	c.mu.Unlock()
}
