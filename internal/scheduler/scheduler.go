package scheduler

import (
	"log"
	"time"

	"roastarena/backend/internal/battle"
	"roastarena/backend/internal/models"
	"roastarena/backend/internal/queue"

	"github.com/go-co-op/gocron/v2"
)

// Scheduler continuously pairs compatible queue entries into matches. It runs
// a periodic sweep plus reactive runs kicked by queue joins, so a full bucket
// doesn't wait for the next poll tick.
type Scheduler struct {
	store    *queue.Store
	battles  *battle.Controller
	interval time.Duration
	queueTTL time.Duration

	sched gocron.Scheduler
	kick  chan struct{}
	stop  chan struct{}
}

// New creates a scheduler over the given queue and match controller. queueTTL
// bounds how long an unmatched entry may wait before it expires; zero disables
// expiry.
func New(store *queue.Store, battles *battle.Controller, interval, queueTTL time.Duration) *Scheduler {
	return &Scheduler{
		store:    store,
		battles:  battles,
		interval: interval,
		queueTTL: queueTTL,
		kick:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
	}
}

// Start launches the poll job and the kick listener.
func (s *Scheduler) Start() error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	_, err = sched.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(s.RunOnce),
	)
	if err != nil {
		return err
	}
	sched.Start()
	s.sched = sched

	go func() {
		for {
			select {
			case <-s.kick:
				s.RunOnce()
			case <-s.stop:
				return
			}
		}
	}()

	log.Printf("scheduler: matchmaking sweep every %s", s.interval)
	return nil
}

// Stop shuts the scheduler down.
func (s *Scheduler) Stop() {
	close(s.stop)
	if s.sched != nil {
		_ = s.sched.Shutdown()
	}
}

// Kick requests an immediate pairing run. Non-blocking; a run is already
// pending when the channel is full.
func (s *Scheduler) Kick() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// RunOnce sweeps every team-size bucket and forms as many matches as the
// waiting entries allow, expiring stale entries first.
func (s *Scheduler) RunOnce() {
	if s.queueTTL > 0 {
		if expired, err := s.store.ExpireStale(s.queueTTL); err != nil {
			log.Printf("scheduler: expire stale entries: %v", err)
		} else if expired > 0 {
			log.Printf("scheduler: expired %d stale queue entries", expired)
		}
	}
	for _, size := range models.AllTeamSizes {
		s.formBucket(size)
	}
}

func (s *Scheduler) formBucket(size models.TeamSize) {
	needed := size.TotalPlayers()
	for {
		matchID := battle.NewMatchID()
		entries, err := s.store.ClaimOldest(size, needed, matchID)
		if err != nil {
			log.Printf("scheduler: claim %s bucket: %v", size, err)
			return
		}
		if entries == nil {
			return
		}

		userIDs := make([]string, 0, needed)
		for _, e := range entries {
			userIDs = append(userIDs, e.UserID)
		}

		if _, err := s.battles.StartMatchWithID(matchID, size, userIDs); err != nil {
			log.Printf("scheduler: start match %s: %v", matchID, err)
			if relErr := s.store.ReleaseClaim(matchID); relErr != nil {
				log.Printf("scheduler: release claim %s: %v", matchID, relErr)
			}
			return
		}

		s.store.RecordFormationTime(time.Since(entries[0].JoinedAt))
	}
}
