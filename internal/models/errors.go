package models

import "errors"

// Engine error taxonomy. Handlers map these to HTTP status codes; the engine
// never retries a failed command on the caller's behalf.
var (
	// ErrAlreadyQueued is returned when a user joins a queue they already
	// have a waiting entry in.
	ErrAlreadyQueued = errors.New("already queued for this team size")

	// ErrAlreadyMatched is returned when a Leave races a pairing that has
	// already claimed the entry. The client reconciles via the match-found
	// push instead.
	ErrAlreadyMatched = errors.New("entry already claimed into a match")

	// ErrNotInQueue is returned by queries that require a waiting entry.
	ErrNotInQueue = errors.New("not in queue")

	// ErrMatchNotFound is returned for an unknown match id.
	ErrMatchNotFound = errors.New("match not found")

	// ErrInvalidTransition is returned when a command arrives for a phase it
	// does not apply to, e.g. readying up after the countdown started.
	ErrInvalidTransition = errors.New("command not valid in current match phase")

	// ErrSelfVoteForbidden is returned when a participant votes in their own
	// match.
	ErrSelfVoteForbidden = errors.New("participants may not vote in their own match")

	// ErrMatchNotVotable is returned when a vote arrives outside the active
	// or voting phases.
	ErrMatchNotVotable = errors.New("match is not accepting votes")
)
