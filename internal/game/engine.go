package game

import (
	"strings"

	"github.com/rs/zerolog"
)

// Fixed inter-phase delays, in seconds. The active-turn window itself comes
// from the room settings.
const (
	delayRoundStart  = 3
	delayTurnPending = 3
	delayTurnEnd     = 3
)

// RoomDirectory is the registry surface the engine depends on. The engine
// holds room ids, never room pointers across a suspension point: every
// scheduled step re-fetches the room through Room first.
type RoomDirectory interface {
	Room(id string) (*Room, bool)
	RoomsChanged()
}

// Engine drives the turn cycle of every active room:
//
//	Idle -> RoundStart -> TurnPending -> TurnActive -> TurnEnd
//	          ^------ RoundEnd <- (turn exhausted) ------'
//
// until the round counter passes its end, which finishes the game. All
// transitions after Start are timer-driven. Each room's transitions run
// under that room's lock, serialized with every other mutation of it.
type Engine struct {
	rooms  RoomDirectory
	words  WordProvider
	timers *TimerService
	bcast  Broadcaster
	log    zerolog.Logger
}

func NewEngine(rooms RoomDirectory, words WordProvider, timers *TimerService, bcast Broadcaster, log zerolog.Logger) *Engine {
	return &Engine{
		rooms:  rooms,
		words:  words,
		timers: timers,
		bcast:  bcast,
		log:    log.With().Str("component", "engine").Logger(),
	}
}

// Start activates a game session. The turn order and turn count are frozen
// to the membership at this moment: users who leave mid-game keep their
// slot, and their turns still occur.
func (e *Engine) Start(roomID string) error {
	room, ok := e.rooms.Room(roomID)
	if !ok {
		return ErrRoomNotFound
	}

	room.mu.Lock()
	if room.session != nil {
		room.mu.Unlock()
		return ErrAlreadyActive
	}
	if len(room.users) == 0 {
		room.mu.Unlock()
		return ErrInvalidSessionState
	}

	order := make([]string, 0, len(room.users))
	for _, u := range room.orderedUsers() {
		order = append(order, u.ID)
	}

	room.active = true
	room.pending = false
	room.session = &Session{
		Round:     1,
		RoundEnd:  room.settings.Rounds,
		Turn:      1,
		TurnEnd:   len(order),
		Phase:     PhaseIdle,
		turnOrder: order,
	}

	e.log.Info().Str("room", roomID).Int("turns", len(order)).Int("rounds", room.settings.Rounds).Msg("game started")
	e.bcast.ToRoom(roomID, EventGameStart, nil)
	e.enterRoundStart(room)
	room.mu.Unlock()

	e.rooms.RoomsChanged()
	return nil
}

// End tears a session down: the phase timer is cancelled synchronously, so
// once End returns no callback can fire against the discarded session.
func (e *Engine) End(roomID string) {
	room, ok := e.rooms.Room(roomID)
	if !ok {
		return
	}

	room.mu.Lock()
	room.disarmTimer()
	had := room.session != nil
	room.session = nil
	room.active = false
	room.pending = false
	room.mu.Unlock()

	if had {
		e.log.Info().Str("room", roomID).Msg("game ended")
		e.bcast.ToRoom(roomID, EventGameOver, nil)
		e.rooms.RoomsChanged()
	}
}

// Guess evaluates a submission against the current secret word. Only valid
// while a turn is active; comparison is case-insensitive, full string. The
// first match per user per turn scores exactly one point, no matter how many
// further correct guesses they submit. The drawer and non-members are
// rejected silently with no state change.
func (e *Engine) Guess(roomID, userID, text string) (bool, error) {
	room, ok := e.rooms.Room(roomID)
	if !ok {
		return false, ErrRoomNotFound
	}

	room.mu.Lock()
	s := room.session
	if s == nil || s.Phase != PhaseTurnActive || s.Word == "" {
		room.mu.Unlock()
		return false, ErrInvalidSessionState
	}

	u, member := room.users[userID]
	if !member || userID == s.DrawerID {
		room.mu.Unlock()
		return false, nil
	}

	u.Guesses = append(u.Guesses, Guess{UserID: userID, Text: text})
	matched := strings.EqualFold(text, s.Word)
	if matched && !u.Match {
		u.Match = true
		u.Score++
	}
	snap := Snapshot(room)
	room.mu.Unlock()

	e.bcast.ToRoom(roomID, EventUpdateRoom, snap)
	return matched, nil
}

// --- transitions; all run with the room lock held ---

func (e *Engine) enterRoundStart(room *Room) {
	s := room.session
	s.Phase = PhaseRoundStart
	s.Turn = 1
	e.log.Debug().Str("room", room.id).Int("round", s.Round).Msg("round start")
	e.broadcastRoom(room)
	e.armPhaseTimer(room, delayRoundStart)
}

func (e *Engine) enterTurnPending(room *Room) {
	s := room.session
	s.Phase = PhaseTurnPending
	e.broadcastRoom(room)
	e.armPhaseTimer(room, delayTurnPending)
}

func (e *Engine) enterTurnActive(room *Room) {
	s := room.session
	s.Phase = PhaseTurnActive
	s.Word = e.words.NextWord()
	s.DrawerID = s.turnOrder[s.Turn-1]

	for _, u := range room.users {
		u.Match = false
		u.Guesses = nil
	}

	e.log.Debug().Str("room", room.id).Int("turn", s.Turn).Str("drawer", s.DrawerID).Msg("turn active")
	e.broadcastRoom(room)
	e.armPhaseTimer(room, room.settings.TurnSeconds)
}

func (e *Engine) enterTurnEnd(room *Room) {
	s := room.session
	// The word stays set through TurnEnd for late display.
	s.Phase = PhaseTurnEnd
	e.broadcastRoom(room)
	e.armPhaseTimer(room, delayTurnEnd)
}

// advance applies the timer-expiry transition for the current phase.
// Returns true when the transition finished the game.
func (e *Engine) advance(room *Room) bool {
	s := room.session

	switch s.Phase {
	case PhaseRoundStart:
		e.enterTurnPending(room)
	case PhaseTurnPending:
		e.enterTurnActive(room)
	case PhaseTurnActive:
		e.enterTurnEnd(room)
	case PhaseTurnEnd:
		s.Turn++
		if s.Turn <= s.TurnEnd {
			e.enterTurnPending(room)
			return false
		}
		// Round exhausted: RoundEnd is an immediate transition.
		s.Phase = PhaseRoundEnd
		e.broadcastRoom(room)
		s.Round++
		if s.Round <= s.RoundEnd {
			e.enterRoundStart(room)
			return false
		}
		return e.finish(room)
	default:
		e.log.Error().Str("room", room.id).Str("phase", s.Phase.String()).Msg("timer expired in unexpected phase")
	}
	return false
}

// finish runs the GameEnd transition. Disconnected members only stayed to
// hold their turn slots, so they are released here. Caller holds the lock.
func (e *Engine) finish(room *Room) bool {
	s := room.session
	s.Phase = PhaseGameEnd
	e.log.Info().Str("room", room.id).Msg("game over")

	room.disarmTimer()
	room.session = nil
	room.active = false
	for id, u := range room.users {
		if !u.Connected {
			delete(room.users, id)
			u.RoomID = ""
			continue
		}
		u.Ready = false
		u.Match = false
		u.Guesses = nil
	}

	e.bcast.ToRoom(room.id, EventGameOver, nil)
	e.broadcastRoom(room)
	return true
}

// armPhaseTimer schedules the next transition. Callbacks re-fetch the room
// and verify both the timer sequence and session liveness under the lock, so
// a timer dangling past a cancel, restart, or room teardown is a no-op
// rather than a crash. Caller holds the lock.
func (e *Engine) armPhaseTimer(room *Room, seconds int) {
	roomID := room.id
	seq := room.nextTimerSeq()
	room.session.TimerRemaining = seconds

	room.timer = e.timers.Start(seconds,
		func(remaining int) { e.onTick(roomID, seq, remaining) },
		func() { e.onExpire(roomID, seq) },
	)
}

func (e *Engine) onTick(roomID string, seq uint64, remaining int) {
	room, ok := e.rooms.Room(roomID)
	if !ok {
		return
	}
	room.mu.Lock()
	live := room.timerSeq == seq && room.session != nil
	if live {
		room.session.TimerRemaining = remaining
	}
	room.mu.Unlock()

	if live {
		e.bcast.ToRoom(roomID, EventUpdateGameTimer, remaining)
	}
}

func (e *Engine) onExpire(roomID string, seq uint64) {
	room, ok := e.rooms.Room(roomID)
	if !ok {
		return
	}
	room.mu.Lock()
	if room.timerSeq != seq || room.session == nil {
		room.mu.Unlock()
		return
	}
	ended := e.advance(room)
	room.mu.Unlock()

	if ended {
		e.rooms.RoomsChanged()
	}
}

func (e *Engine) broadcastRoom(room *Room) {
	e.bcast.ToRoom(room.id, EventUpdateRoom, Snapshot(room))
}
