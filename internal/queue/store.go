package queue

import (
	"errors"
	"sync"
	"time"

	"roastarena/backend/internal/models"

	"gorm.io/gorm"
)

// defaultFormationTime seeds the wait estimate until real samples exist.
const defaultFormationTime = 30 * time.Second

// formationSamples caps the rolling window used by EstimatedWait.
const formationSamples = 20

// Store is the durable record of players waiting for a match, keyed by team
// size. All mutations are serialized by the store mutex: the scheduler's claim
// and a concurrent Leave resolve to a single order, so no entry is ever paired
// twice or cancelled out from under a pairing that already claimed it.
type Store struct {
	db *gorm.DB

	mu         sync.Mutex
	formations []time.Duration
}

// NewStore creates a queue store backed by db.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Join adds the user to the queue for the given team size. Returns
// ErrAlreadyQueued if the user already has a waiting entry for that size.
func (s *Store) Join(userID string, size models.TeamSize) (uint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var entry models.QueueEntry
	err := s.db.
		Where("user_id = ? AND team_size = ? AND status = ?", userID, size, models.QueueWaiting).
		First(&entry).Error
	if err == nil {
		return 0, models.ErrAlreadyQueued
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, err
	}

	entry = models.QueueEntry{
		UserID:   userID,
		TeamSize: size,
		Status:   models.QueueWaiting,
		JoinedAt: time.Now(),
	}
	if err := s.db.Create(&entry).Error; err != nil {
		return 0, err
	}
	return entry.ID, nil
}

// Leave cancels the user's waiting entry for the given team size. Leaving
// without an active entry is a no-op success. If the entry was already claimed
// into a match, Leave fails with ErrAlreadyMatched and the client reconciles
// via the match-found push.
func (s *Store) Leave(userID string, size models.TeamSize) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var entry models.QueueEntry
	err := s.db.
		Where("user_id = ? AND team_size = ? AND status IN ?", userID, size,
			[]models.QueueEntryStatus{models.QueueWaiting, models.QueueMatched}).
		Order("joined_at DESC").
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if entry.Status == models.QueueMatched {
		return models.ErrAlreadyMatched
	}

	return s.db.Model(&entry).Update("status", models.QueueCancelled).Error
}

// Position returns the user's 1-based rank by join time among waiting entries
// of the given team size. This is a UX estimate, not a correctness guarantee.
func (s *Store) Position(userID string, size models.TeamSize) (int, error) {
	var entry models.QueueEntry
	err := s.db.
		Where("user_id = ? AND team_size = ? AND status = ?", userID, size, models.QueueWaiting).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, models.ErrNotInQueue
	}
	if err != nil {
		return 0, err
	}

	var ahead int64
	err = s.db.Model(&models.QueueEntry{}).
		Where("team_size = ? AND status = ?", size, models.QueueWaiting).
		Where("joined_at < ? OR (joined_at = ? AND id < ?)", entry.JoinedAt, entry.JoinedAt, entry.ID).
		Count(&ahead).Error
	if err != nil {
		return 0, err
	}
	return int(ahead) + 1, nil
}

// Waiting returns the number of waiting entries for the given team size.
func (s *Store) Waiting(size models.TeamSize) (int64, error) {
	var count int64
	err := s.db.Model(&models.QueueEntry{}).
		Where("team_size = ? AND status = ?", size, models.QueueWaiting).
		Count(&count).Error
	return count, err
}

// ClaimOldest atomically claims the n oldest waiting entries of the given team
// size and marks them matched under matchID. It returns nil without error when
// fewer than n entries are waiting. FIFO fairness: oldest joined_at first, ties
// broken by entry id.
func (s *Store) ClaimOldest(size models.TeamSize, n int, matchID string) ([]models.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var claimed []models.QueueEntry
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var entries []models.QueueEntry
		err := tx.
			Where("team_size = ? AND status = ?", size, models.QueueWaiting).
			Order("joined_at ASC, id ASC").
			Limit(n).
			Find(&entries).Error
		if err != nil {
			return err
		}
		if len(entries) < n {
			return nil
		}

		ids := make([]uint, 0, n)
		for _, e := range entries {
			ids = append(ids, e.ID)
		}
		err = tx.Model(&models.QueueEntry{}).
			Where("id IN ?", ids).
			Updates(map[string]interface{}{
				"status":   models.QueueMatched,
				"match_id": matchID,
			}).Error
		if err != nil {
			return err
		}

		claimed = entries
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// ExpireStale cancels waiting entries older than ttl. Queue entries are
// destroyed on leave, match or timeout; this is the timeout leg.
func (s *Store) ExpireStale(ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := s.db.Model(&models.QueueEntry{}).
		Where("status = ? AND joined_at < ?", models.QueueWaiting, time.Now().Add(-ttl)).
		Update("status", models.QueueCancelled)
	return res.RowsAffected, res.Error
}

// ReleaseClaim returns entries claimed under matchID to waiting state, used
// when match creation fails after a successful claim.
func (s *Store) ReleaseClaim(matchID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Model(&models.QueueEntry{}).
		Where("match_id = ? AND status = ?", matchID, models.QueueMatched).
		Updates(map[string]interface{}{
			"status":   models.QueueWaiting,
			"match_id": nil,
		}).Error
}

// RecordFormationTime feeds the rolling average behind EstimatedWait.
func (s *Store) RecordFormationTime(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.formations = append(s.formations, d)
	if len(s.formations) > formationSamples {
		s.formations = s.formations[len(s.formations)-formationSamples:]
	}
}

// EstimatedWait returns a non-binding wait estimate for the given team size:
// groups ahead of a new joiner times the average recent formation time.
func (s *Store) EstimatedWait(size models.TeamSize) (time.Duration, error) {
	if size.TotalPlayers() == 0 {
		return 0, nil
	}

	waiting, err := s.Waiting(size)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	avg := defaultFormationTime
	if len(s.formations) > 0 {
		var total time.Duration
		for _, d := range s.formations {
			total += d
		}
		avg = total / time.Duration(len(s.formations))
	}
	s.mu.Unlock()

	groupsAhead := waiting / int64(size.TotalPlayers())
	return time.Duration(groupsAhead) * avg, nil
}
