package game

import (
	"sort"
	"sync"
)

// Settings are the per-room game options supplied at room creation.
type Settings struct {
	Rounds      int `json:"rounds"`
	TurnSeconds int `json:"turnSeconds"`
}

const (
	DefaultRounds      = 5
	DefaultTurnSeconds = 60
)

// User is a connected participant. Identity is stable across reconnects;
// the room-scoped fields (Ready, Match, Score, Guesses, Color) are reset
// whenever the user enters a room.
type User struct {
	ID        string
	Username  string
	RoomID    string
	Connected bool
	Ready     bool
	Match     bool
	Score     int
	Color     string
	Guesses   []Guess

	joinSeq int
}

// Guess is an ephemeral per-turn record, kept only for the current turn's
// match display and cleared at each turn start.
type Guess struct {
	UserID string
	Text   string
}

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRoundStart
	PhaseTurnPending
	PhaseTurnActive
	PhaseTurnEnd
	PhaseRoundEnd
	PhaseGameEnd
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRoundStart:
		return "round-start"
	case PhaseTurnPending:
		return "turn-pending"
	case PhaseTurnActive:
		return "turn-active"
	case PhaseTurnEnd:
		return "turn-end"
	case PhaseRoundEnd:
		return "round-end"
	case PhaseGameEnd:
		return "game-end"
	default:
		return "unknown"
	}
}

// Session is the state of one active game. TurnEnd and the turn order are
// frozen at activation and never change, even if users leave mid-game.
type Session struct {
	Round          int
	RoundEnd       int
	Turn           int
	TurnEnd        int
	Phase          Phase
	Word           string
	DrawerID       string
	TimerRemaining int

	turnOrder []string
}

// Room is a group of users sharing at most one game session. All mutations
// of a room and its session happen under mu; rooms never share locks, so
// operations on different rooms proceed independently.
type Room struct {
	mu sync.Mutex

	id       string
	name     string
	hostID   string
	settings Settings
	active   bool
	pending  bool // ready-countdown in progress
	users    map[string]*User
	joinSeq  int
	session  *Session

	timer    *Countdown
	timerSeq uint64
}

// orderedUsers returns the members sorted by join sequence. Caller holds mu.
func (r *Room) orderedUsers() []*User {
	out := make([]*User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].joinSeq < out[j].joinSeq })
	return out
}

// connectedCount reports how many members are currently connected. Caller holds mu.
func (r *Room) connectedCount() int {
	n := 0
	for _, u := range r.users {
		if u.Connected {
			n++
		}
	}
	return n
}

// nextTimerSeq disarms any active countdown and advances the timer sequence.
// Callbacks from a previous countdown compare their captured sequence against
// the current one under mu and discard themselves when stale. Caller holds mu.
func (r *Room) nextTimerSeq() uint64 {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.timerSeq++
	return r.timerSeq
}

// disarmTimer cancels the room's countdown, if any. Caller holds mu.
func (r *Room) disarmTimer() {
	r.nextTimerSeq()
}
