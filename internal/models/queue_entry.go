package models

import (
	"time"

	"gorm.io/gorm"
)

// QueueEntryStatus defines the state of a matchmaking queue entry.
type QueueEntryStatus string

const (
	QueueWaiting   QueueEntryStatus = "waiting"
	QueueMatched   QueueEntryStatus = "matched"
	QueueCancelled QueueEntryStatus = "cancelled"
)

// QueueEntry represents a user's request to be matched, scoped to a team size.
// At most one waiting entry may exist per (user, team size).
type QueueEntry struct {
	gorm.Model
	UserID   string           `gorm:"size:64;not null;index:idx_queue_user_size"`
	TeamSize TeamSize         `gorm:"size:8;not null;index:idx_queue_user_size"`
	Status   QueueEntryStatus `gorm:"size:16;not null;default:'waiting';index"`
	JoinedAt time.Time        `gorm:"not null;index"`

	// Set when the scheduler claims the entry into a match.
	MatchID *string `gorm:"size:64;index"`
}
