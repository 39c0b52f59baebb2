package battle

import (
	"log"
	"time"

	"roastarena/backend/internal/hub"
	"roastarena/backend/internal/models"
)

// retryDelay is how long a timer-driven transition waits before retrying after
// a failed persist. The in-memory state does not advance until the write
// lands, so the retry reproduces the same transition.
const retryDelay = time.Second

type cmdKind int

const (
	cmdMarkReady cmdKind = iota
	cmdRequestRematch
	cmdDisconnect
	cmdReconnect
	cmdSnapshot
	cmdPhaseTimer
	cmdGraceTimer
)

type command struct {
	kind   cmdKind
	userID string
	gen    int
	reply  chan error
	snap   chan liveState
}

type liveState struct {
	status    models.MatchStatus
	phaseEnd  time.Time
	countdown int
}

// Phase payloads. Each phase carries only the fields that exist in that phase,
// so a result can never appear on a cancelled match.
type matchFoundPayload struct {
	MatchID   string          `json:"match_id"`
	TeamSize  models.TeamSize `json:"team_size"`
	Team      models.Team     `json:"team"`
	Teammates []string        `json:"teammates"`
	Opponents []string        `json:"opponents"`
}

type readyCheckPayload struct {
	MatchID  string             `json:"match_id"`
	Status   models.MatchStatus `json:"status"`
	Deadline time.Time          `json:"deadline"`
	Ready    map[string]bool    `json:"ready"`
}

type countdownPayload struct {
	MatchID string             `json:"match_id"`
	Status  models.MatchStatus `json:"status"`
	Count   int                `json:"count"`
}

type activePayload struct {
	MatchID         string             `json:"match_id"`
	Status          models.MatchStatus `json:"status"`
	DurationSeconds int                `json:"duration_seconds"`
	EndsAt          time.Time          `json:"ends_at"`
}

type votingPayload struct {
	MatchID  string             `json:"match_id"`
	Status   models.MatchStatus `json:"status"`
	ClosesAt time.Time          `json:"closes_at"`
	Tally    models.VoteCount   `json:"tally"`
}

type completedPayload struct {
	MatchID string             `json:"match_id"`
	Status  models.MatchStatus `json:"status"`
	Result  models.MatchResult `json:"result"`
}

type cancelledPayload struct {
	MatchID string             `json:"match_id"`
	Status  models.MatchStatus `json:"status"`
	Reason  string             `json:"reason"`
}

type rematchPayload struct {
	MatchID    string   `json:"match_id"`
	Requested  []string `json:"requested"`
	NewMatchID string   `json:"new_match_id,omitempty"`
}

// actor is the single owner goroutine of one match. Every transition — ready
// up, timer expiry, forfeit, finalize — funnels through its command channel.
type actor struct {
	c    *Controller
	id   string
	size models.TeamSize

	durationSeconds int
	order           []string // team_a first, then team_b
	teams           map[string]models.Team
	ready           map[string]bool
	rematch         map[string]bool
	disconnected    map[string]bool

	status        models.MatchStatus
	phaseEnd      time.Time
	countdownLeft int

	timerGen    int
	phaseTimer  *time.Timer
	retry       func()
	graceGens   map[string]int
	graceTimers map[string]*time.Timer

	cmds chan command
	done chan struct{}
}

func newActor(c *Controller, match models.Match, participants []models.Participant) *actor {
	a := &actor{
		c:               c,
		id:              match.ID,
		size:            match.TeamSize,
		durationSeconds: match.DurationSeconds,
		teams:           make(map[string]models.Team, len(participants)),
		ready:           make(map[string]bool),
		rematch:         make(map[string]bool),
		disconnected:    make(map[string]bool),
		graceGens:       make(map[string]int),
		graceTimers:     make(map[string]*time.Timer),
		status:          match.Status,
		cmds:            make(chan command, 64),
		done:            make(chan struct{}),
	}
	for _, p := range participants {
		a.order = append(a.order, p.UserID)
		a.teams[p.UserID] = p.Team
	}
	return a
}

func (a *actor) run() {
	a.enterReadyCheck()
	for {
		select {
		case cmd := <-a.cmds:
			a.handle(cmd)
		case <-a.done:
			return
		}
	}
}

// do submits a command and waits for the actor's answer. A command landing on
// a finished match reads as an invalid transition.
func (a *actor) do(kind cmdKind, userID string) error {
	reply := make(chan error, 1)
	select {
	case a.cmds <- command{kind: kind, userID: userID, reply: reply}:
	case <-a.done:
		return models.ErrInvalidTransition
	}
	select {
	case err := <-reply:
		return err
	case <-a.done:
		select {
		case err := <-reply:
			return err
		default:
			return models.ErrInvalidTransition
		}
	}
}

func (a *actor) snapshot() (liveState, error) {
	snap := make(chan liveState, 1)
	select {
	case a.cmds <- command{kind: cmdSnapshot, snap: snap}:
	case <-a.done:
		return liveState{}, models.ErrMatchNotFound
	}
	select {
	case s := <-snap:
		return s, nil
	case <-a.done:
		select {
		case s := <-snap:
			return s, nil
		default:
			return liveState{}, models.ErrMatchNotFound
		}
	}
}

func (a *actor) post(cmd command) {
	select {
	case a.cmds <- cmd:
	case <-a.done:
	}
}

func (a *actor) handle(cmd command) {
	switch cmd.kind {
	case cmdSnapshot:
		cmd.snap <- liveState{status: a.status, phaseEnd: a.phaseEnd, countdown: a.countdownLeft}
	case cmdMarkReady:
		cmd.reply <- a.markReady(cmd.userID)
	case cmdRequestRematch:
		cmd.reply <- a.requestRematch(cmd.userID)
	case cmdDisconnect:
		a.markDisconnected(cmd.userID)
		cmd.reply <- nil
	case cmdReconnect:
		a.markReconnected(cmd.userID)
		cmd.reply <- nil
	case cmdPhaseTimer:
		if cmd.gen == a.timerGen {
			a.phaseTimerFired()
		}
	case cmdGraceTimer:
		if cmd.gen == a.graceGens[cmd.userID] && a.status == models.MatchActive && a.disconnected[cmd.userID] {
			a.forfeit(cmd.userID)
		}
	}
}

// phaseTimerFired dispatches on the phase the timer was armed for. Stale
// timers never reach here; the generation check in handle filters them. A
// pending retry takes precedence: after a failed persist the in-memory phase
// has not advanced, so dispatching on the current status would run the old
// phase's timeout action instead of the transition that failed.
func (a *actor) phaseTimerFired() {
	if a.retry != nil {
		transition := a.retry
		a.retry = nil
		transition()
		return
	}
	switch a.status {
	case models.MatchReadyCheck:
		a.readyTimeout()
	case models.MatchCountdown:
		a.countdownTick()
	case models.MatchActive:
		a.enterVoting()
	case models.MatchVoting:
		a.finalize(nil)
	case models.MatchCompleted:
		a.shutdown() // rematch offer expired
	}
}

// --- phase entries ---

func (a *actor) enterReadyCheck() {
	if err := a.persistStatus(models.MatchReadyCheck, nil); err != nil {
		a.armRetry(a.enterReadyCheck)
		return
	}
	a.phaseEnd = time.Now().Add(a.c.opts.ReadyTimeout)

	for userID, team := range a.teams {
		var teammates, opponents []string
		for _, other := range a.order {
			if other == userID {
				continue
			}
			if a.teams[other] == team {
				teammates = append(teammates, other)
			} else {
				opponents = append(opponents, other)
			}
		}
		a.c.events.Broadcast(hub.QueueTopic(userID), hub.EventMatchFound, matchFoundPayload{
			MatchID:   a.id,
			TeamSize:  a.size,
			Team:      team,
			Teammates: teammates,
			Opponents: opponents,
		})
	}

	a.broadcastReadyState()
	a.armPhaseTimer(a.c.opts.ReadyTimeout)
}

func (a *actor) markReady(userID string) error {
	if _, ok := a.teams[userID]; !ok {
		return models.ErrInvalidTransition
	}
	if a.status != models.MatchReadyCheck {
		return models.ErrInvalidTransition
	}
	if a.ready[userID] {
		return nil
	}

	err := a.c.db.Model(&models.Participant{}).
		Where("match_id = ? AND user_id = ?", a.id, userID).
		Update("is_ready", true).Error
	if err != nil {
		return err
	}
	a.ready[userID] = true
	a.broadcastReadyState()

	if len(a.ready) == len(a.teams) {
		a.enterCountdown()
	}
	return nil
}

func (a *actor) readyTimeout() {
	// Ready participants go straight back into the queue; the no-shows are
	// simply freed to rejoin on their own.
	for userID := range a.ready {
		if _, err := a.c.store.Join(userID, a.size); err != nil {
			log.Printf("battle: requeue %s after cancelled match %s: %v", userID, a.id, err)
		}
	}
	a.cancel("ready check timed out")
}

func (a *actor) enterCountdown() {
	if err := a.persistStatus(models.MatchCountdown, nil); err != nil {
		a.armRetry(a.enterCountdown)
		return
	}
	a.countdownLeft = a.c.opts.CountdownTicks
	a.phaseEnd = time.Now().Add(time.Duration(a.countdownLeft) * a.c.opts.CountdownTick)
	a.broadcastPhase(countdownPayload{MatchID: a.id, Status: a.status, Count: a.countdownLeft})
	a.armPhaseTimer(a.c.opts.CountdownTick)
}

func (a *actor) countdownTick() {
	a.countdownLeft--
	if a.countdownLeft > 0 {
		a.broadcastPhase(countdownPayload{MatchID: a.id, Status: a.status, Count: a.countdownLeft})
		a.armPhaseTimer(a.c.opts.CountdownTick)
		return
	}
	a.enterActive()
}

func (a *actor) enterActive() {
	now := time.Now()
	if err := a.persistStatus(models.MatchActive, map[string]interface{}{"started_at": &now}); err != nil {
		a.armRetry(a.enterActive)
		return
	}
	a.countdownLeft = 0
	duration := a.c.opts.BattleDuration
	a.phaseEnd = now.Add(duration)
	a.broadcastPhase(activePayload{
		MatchID:         a.id,
		Status:          a.status,
		DurationSeconds: a.durationSeconds,
		EndsAt:          a.phaseEnd,
	})
	a.armPhaseTimer(duration)

	// Anyone who dropped during ready check or countdown is already on the
	// clock once the battle goes live.
	for userID := range a.disconnected {
		a.armGraceTimer(userID)
	}
}

func (a *actor) enterVoting() {
	if err := a.persistStatus(models.MatchVoting, nil); err != nil {
		a.armRetry(a.enterVoting)
		return
	}
	a.stopGraceTimers()
	a.phaseEnd = time.Now().Add(a.c.opts.VotingWindow)

	tally, err := a.c.votes.Tally(a.id)
	if err != nil {
		log.Printf("battle: tally for %s: %v", a.id, err)
	}
	a.broadcastPhase(votingPayload{
		MatchID:  a.id,
		Status:   a.status,
		ClosesAt: a.phaseEnd,
		Tally:    tally,
	})
	a.armPhaseTimer(a.c.opts.VotingWindow)
}

// finalize freezes the vote tally into the match result and completes the
// match. With a forced winner it records a forfeit outcome instead of the
// tally's verdict.
func (a *actor) finalize(forced *models.Winner) {
	var result *models.MatchResult
	var err error
	if forced != nil {
		result, err = a.c.votes.FinalizeForfeit(a.id, *forced)
	} else {
		result, err = a.c.votes.Finalize(a.id)
	}
	if err != nil {
		// A match that cannot be finalized is fatal for that match only: it
		// ends cancelled with no result rather than ambiguous.
		log.Printf("battle: finalize %s: %v", a.id, err)
		a.cancel("finalize failed")
		return
	}

	now := time.Now()
	if err := a.persistStatus(models.MatchCompleted, map[string]interface{}{"ended_at": &now}); err != nil {
		a.armRetry(func() { a.finalize(forced) })
		return
	}

	a.awardStats(result)
	a.broadcastPhase(completedPayload{MatchID: a.id, Status: a.status, Result: *result})
	a.c.events.Broadcast(hub.MatchTopic(a.id), hub.EventMatchCompleted, completedPayload{
		MatchID: a.id,
		Status:  a.status,
		Result:  *result,
	})

	log.Printf("battle: match %s completed, winner %s (%d-%d)",
		a.id, result.Winner, result.TeamAVotes, result.TeamBVotes)

	// Keep the actor alive through the rematch offer window.
	a.phaseEnd = time.Now().Add(a.c.opts.RematchWindow)
	a.armPhaseTimer(a.c.opts.RematchWindow)
}

func (a *actor) forfeit(userID string) {
	winner := models.WinnerTeamA
	if a.teams[userID] == models.TeamA {
		winner = models.WinnerTeamB
	}
	log.Printf("battle: %s forfeited match %s, awarding %s", userID, a.id, winner)
	a.stopGraceTimers()
	a.finalize(&winner)
}

func (a *actor) requestRematch(userID string) error {
	if _, ok := a.teams[userID]; !ok {
		return models.ErrInvalidTransition
	}
	if a.status != models.MatchCompleted {
		return models.ErrInvalidTransition
	}
	a.rematch[userID] = true

	requested := make([]string, 0, len(a.rematch))
	for _, id := range a.order {
		if a.rematch[id] {
			requested = append(requested, id)
		}
	}

	if len(a.rematch) < len(a.teams) {
		a.c.events.Broadcast(hub.MatchTopic(a.id), hub.EventRematchOffered, rematchPayload{
			MatchID:   a.id,
			Requested: requested,
		})
		return nil
	}

	// Everyone is in: seed a fresh match with the same line-up.
	next, err := a.c.StartMatch(a.size, a.order)
	if err != nil {
		return err
	}
	a.c.events.Broadcast(hub.MatchTopic(a.id), hub.EventRematchOffered, rematchPayload{
		MatchID:    a.id,
		Requested:  requested,
		NewMatchID: next.ID,
	})
	a.shutdown()
	return nil
}

func (a *actor) cancel(reason string) {
	err := a.c.db.Model(&models.Match{}).
		Where("id = ?", a.id).
		Updates(map[string]interface{}{"status": models.MatchCancelled, "ended_at": time.Now()}).Error
	if err != nil {
		log.Printf("battle: persist cancel of %s: %v", a.id, err)
	}
	a.status = models.MatchCancelled
	a.broadcastPhase(cancelledPayload{MatchID: a.id, Status: a.status, Reason: reason})
	log.Printf("battle: match %s cancelled: %s", a.id, reason)
	a.shutdown()
}

// --- liveness ---

func (a *actor) markDisconnected(userID string) {
	if _, ok := a.teams[userID]; !ok {
		return
	}
	a.disconnected[userID] = true
	if a.status == models.MatchActive {
		a.armGraceTimer(userID)
	}
}

func (a *actor) markReconnected(userID string) {
	if _, ok := a.teams[userID]; !ok {
		return
	}
	delete(a.disconnected, userID)
	a.graceGens[userID]++
	if t, ok := a.graceTimers[userID]; ok {
		t.Stop()
		delete(a.graceTimers, userID)
	}
}

func (a *actor) armGraceTimer(userID string) {
	a.graceGens[userID]++
	gen := a.graceGens[userID]
	if t, ok := a.graceTimers[userID]; ok {
		t.Stop()
	}
	a.graceTimers[userID] = time.AfterFunc(a.c.opts.DisconnectGrace, func() {
		a.post(command{kind: cmdGraceTimer, userID: userID, gen: gen})
	})
}

func (a *actor) stopGraceTimers() {
	for userID, t := range a.graceTimers {
		t.Stop()
		a.graceGens[userID]++
		delete(a.graceTimers, userID)
	}
}

// --- plumbing ---

// persistStatus is the write-then-commit step of every transition: the row is
// updated first and the in-memory phase only advances when the write lands.
func (a *actor) persistStatus(status models.MatchStatus, extra map[string]interface{}) error {
	updates := map[string]interface{}{"status": status}
	for k, v := range extra {
		updates[k] = v
	}
	err := a.c.db.Model(&models.Match{}).Where("id = ?", a.id).Updates(updates).Error
	if err != nil {
		log.Printf("battle: persist %s -> %s: %v", a.id, status, err)
		return err
	}
	a.status = status
	return nil
}

func (a *actor) broadcastPhase(payload interface{}) {
	a.c.events.Broadcast(hub.MatchTopic(a.id), hub.EventPhaseChanged, payload)
}

func (a *actor) broadcastReadyState() {
	ready := make(map[string]bool, len(a.teams))
	for _, userID := range a.order {
		ready[userID] = a.ready[userID]
	}
	a.broadcastPhase(readyCheckPayload{
		MatchID:  a.id,
		Status:   a.status,
		Deadline: a.phaseEnd,
		Ready:    ready,
	})
}

func (a *actor) armPhaseTimer(d time.Duration) {
	a.retry = nil
	a.timerGen++
	gen := a.timerGen
	if a.phaseTimer != nil {
		a.phaseTimer.Stop()
	}
	a.phaseTimer = time.AfterFunc(d, func() {
		a.post(command{kind: cmdPhaseTimer, gen: gen})
	})
}

// armRetry schedules a re-run of a transition whose persist failed. The same
// transition fires again once the delay elapses, regardless of what the
// current phase's timeout action would be.
func (a *actor) armRetry(transition func()) {
	a.armPhaseTimer(retryDelay)
	a.retry = transition
}

func (a *actor) awardStats(result *models.MatchResult) {
	for userID, team := range a.teams {
		var wins, losses, ties, xp int64
		switch {
		case result.Winner == models.WinnerTie:
			ties, xp = 1, models.XPTie
		case models.Winner(team) == result.Winner:
			wins, xp = 1, models.XPWin
		default:
			losses, xp = 1, models.XPLoss
		}
		if err := upsertStats(a.c.db, userID, wins, losses, ties, xp); err != nil {
			log.Printf("battle: stats for %s after %s: %v", userID, a.id, err)
		}
	}
}

func (a *actor) shutdown() {
	if a.phaseTimer != nil {
		a.phaseTimer.Stop()
	}
	a.stopGraceTimers()
	a.timerGen++
	a.c.unregister(a.id)
	close(a.done)
}
