package handler

import (
	"roastarena/backend/internal/battle"
	"roastarena/backend/internal/hub"
	"roastarena/backend/internal/queue"
	"roastarena/backend/internal/scheduler"
	"roastarena/backend/internal/vote"
)

// Engine components the handlers translate HTTP commands into. Wired once at
// startup from main.
var (
	Queue      *queue.Store
	Matchmaker *scheduler.Scheduler
	Battles    *battle.Controller
	Votes      *vote.Aggregator
	Events     *hub.Hub
)

// Setup wires the handler package to the engine components.
func Setup(q *queue.Store, m *scheduler.Scheduler, b *battle.Controller, v *vote.Aggregator, e *hub.Hub) {
	Queue = q
	Matchmaker = m
	Battles = b
	Votes = v
	Events = e
}
