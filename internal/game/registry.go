package game

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const readyCountdownSeconds = 3

// GameController is the slice of the turn-cycle engine the registry needs:
// activating a game once everyone is ready, and tearing one down before a
// room is destroyed.
type GameController interface {
	Start(roomID string) error
	End(roomID string)
}

// Registry owns the room and user maps. The registry-level lock guards only
// the maps themselves; every mutation of a room's contents runs under that
// room's own lock, so rooms stay independent of each other.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
	users map[string]*User

	games  GameController
	timers *TimerService
	bcast  Broadcaster
	log    zerolog.Logger
}

func NewRegistry(timers *TimerService, bcast Broadcaster, log zerolog.Logger) *Registry {
	return &Registry{
		rooms:  make(map[string]*Room),
		users:  make(map[string]*User),
		timers: timers,
		bcast:  bcast,
		log:    log.With().Str("component", "registry").Logger(),
	}
}

// SetGames wires the turn-cycle engine in after construction; the engine
// needs the registry first, so the dependency is closed here.
func (g *Registry) SetGames(games GameController) {
	g.games = games
}

// Shutdown ends every active game and drops all rooms, cancelling any
// outstanding timers so no callback fires against freed state.
func (g *Registry) Shutdown() {
	g.mu.Lock()
	ids := make([]string, 0, len(g.rooms))
	for id := range g.rooms {
		ids = append(ids, id)
	}
	g.mu.Unlock()

	for _, id := range ids {
		g.RemoveRoom(id)
	}
}

// --- users ---

// AddUser registers (or refreshes) an identity arriving on a connection.
func (g *Registry) AddUser(id, username string) {
	g.mu.Lock()
	u, ok := g.users[id]
	if !ok {
		u = &User{ID: id}
		g.users[id] = u
	}
	u.Username = username
	u.Connected = true
	g.mu.Unlock()

	g.log.Debug().Str("user", id).Str("username", username).Msg("user added")
	g.broadcastUsers()
}

// RemoveUser drops an identity, leaving its room first if it is in one.
func (g *Registry) RemoveUser(id string) {
	g.mu.RLock()
	u, ok := g.users[id]
	g.mu.RUnlock()
	if !ok {
		return
	}

	if u.RoomID != "" {
		if err := g.Leave(u.RoomID, id); err != nil {
			g.log.Debug().Err(err).Str("user", id).Msg("leave on remove")
		}
	}

	g.mu.Lock()
	delete(g.users, id)
	g.mu.Unlock()

	g.broadcastUsers()
}

// Disconnect handles a dropped connection: the room keeps or releases the
// member per the active-game rules in Leave, then the identity is removed.
func (g *Registry) Disconnect(userID string) {
	g.RemoveUser(userID)
}

// --- rooms ---

// Room looks up a room by id. The engine re-fetches through here at the
// start of every scheduled step rather than caching a stale reference.
func (g *Registry) Room(id string) (*Room, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	r, ok := g.rooms[id]
	return r, ok
}

// RoomsChanged re-broadcasts the public room list. Called by the engine
// after a game starts or ends.
func (g *Registry) RoomsChanged() {
	g.broadcastRooms()
}

// IsHost reports whether the user currently holds the room's host role.
func (g *Registry) IsHost(roomID, userID string) bool {
	room, ok := g.Room(roomID)
	if !ok {
		return false
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	return room.hostID == userID
}

// CreateRoom registers a new room. An empty id gets a generated one. The
// creator becomes host but is not a member until they join.
func (g *Registry) CreateRoom(id, name, hostID string, settings Settings) (string, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if settings.Rounds <= 0 {
		settings.Rounds = DefaultRounds
	}
	if settings.TurnSeconds <= 0 {
		settings.TurnSeconds = DefaultTurnSeconds
	}

	room := &Room{
		id:       id,
		name:     name,
		hostID:   hostID,
		settings: settings,
		users:    make(map[string]*User),
	}

	g.mu.Lock()
	if _, exists := g.rooms[id]; exists {
		g.mu.Unlock()
		return "", ErrRoomExists
	}
	g.rooms[id] = room
	g.mu.Unlock()

	g.log.Info().Str("room", id).Str("host", hostID).Msg("room created")
	g.broadcastRooms()
	return id, nil
}

// RemoveRoom destroys a room. Any active game is ended first so its timers
// are cancelled before the room is discarded.
func (g *Registry) RemoveRoom(id string) error {
	g.mu.RLock()
	room, ok := g.rooms[id]
	g.mu.RUnlock()
	if !ok {
		return ErrRoomNotFound
	}

	if g.games != nil {
		g.games.End(id)
	}

	room.mu.Lock()
	room.disarmTimer()
	for _, u := range room.users {
		u.RoomID = ""
	}
	room.users = make(map[string]*User)
	room.mu.Unlock()

	g.mu.Lock()
	delete(g.rooms, id)
	g.mu.Unlock()

	g.log.Info().Str("room", id).Msg("room removed")
	g.broadcastRooms()
	return nil
}

// Join adds a user to a room, or reconnects them if they are already a
// member. Returns the room snapshot sent back to the joining connection.
func (g *Registry) Join(roomID, userID string) (RoomSnapshot, error) {
	g.mu.RLock()
	room, roomOK := g.rooms[roomID]
	user, userOK := g.users[userID]
	g.mu.RUnlock()

	if !roomOK {
		return RoomSnapshot{}, ErrRoomNotFound
	}
	if !userOK {
		return RoomSnapshot{}, ErrUserNotFound
	}

	if user.RoomID != "" && user.RoomID != roomID {
		if err := g.Leave(user.RoomID, userID); err != nil {
			g.log.Debug().Err(err).Str("user", userID).Msg("leave previous room")
		}
	}

	room.mu.Lock()
	if existing, ok := room.users[userID]; ok {
		// Reconnection: identity key is the userid, not the connection. The
		// room's record carries the accumulated state; fold it back onto the
		// freshly registered identity and swap the pointer.
		if existing != user {
			user.Ready = existing.Ready
			user.Match = existing.Match
			user.Score = existing.Score
			user.Guesses = existing.Guesses
			user.Color = existing.Color
			user.joinSeq = existing.joinSeq
			room.users[userID] = user
		}
		user.Connected = true
		user.RoomID = roomID
	} else {
		user.RoomID = roomID
		user.Connected = true
		user.Ready = false
		user.Match = false
		user.Score = 0
		user.Guesses = nil
		user.Color = pickColor(room.users)
		room.joinSeq++
		user.joinSeq = room.joinSeq
		room.users[userID] = user
	}
	g.ensureHost(room)
	snap := Snapshot(room)
	room.mu.Unlock()

	g.log.Info().Str("room", roomID).Str("user", userID).Msg("user joined")
	g.bcast.ToRoom(roomID, EventUpdateRoom, snap)
	g.broadcastRooms()
	return snap, nil
}

// Leave removes a user from a room. While a game is active the member is
// retained with connected=false so the frozen turn order stays intact;
// otherwise they are removed entirely. The last member out (or the last
// connected one) takes the room down with them.
func (g *Registry) Leave(roomID, userID string) error {
	g.mu.RLock()
	room, ok := g.rooms[roomID]
	g.mu.RUnlock()
	if !ok {
		return ErrRoomNotFound
	}

	room.mu.Lock()
	u, member := room.users[userID]
	if !member {
		room.mu.Unlock()
		return ErrUserNotFound
	}

	if room.active {
		// The slot must survive for the frozen turn order, but detached
		// from the live identity: state the user accrues in another room
		// must never bleed back into this one. Rejoining the same room
		// folds the copy back, same as a reconnect.
		retained := *u
		retained.Connected = false
		room.users[userID] = &retained
		u.RoomID = ""
		u.Ready = false
		u.Match = false
		u.Score = 0
		u.Guesses = nil
	} else {
		delete(room.users, userID)
		u.RoomID = ""
		u.Ready = false
		u.Match = false
		u.Score = 0
		u.Guesses = nil
	}

	cancelled := false
	if room.pending {
		// A departure during the pre-game countdown cancels it.
		room.pending = false
		room.disarmTimer()
		cancelled = true
	}

	destroy := len(room.users) == 0 || room.connectedCount() == 0
	var snap RoomSnapshot
	if !destroy {
		g.ensureHost(room)
		snap = Snapshot(room)
	}
	room.mu.Unlock()

	if cancelled && !destroy {
		g.bcast.ToRoom(roomID, EventCountdownCancel, nil)
	}

	g.log.Info().Str("room", roomID).Str("user", userID).Bool("destroy", destroy).Msg("user left")

	if destroy {
		return g.RemoveRoom(roomID)
	}

	g.bcast.ToRoom(roomID, EventUpdateRoom, snap)
	g.broadcastRooms()
	return nil
}

// SetReady flags a member ready or not. Once all present members (more than
// one) are ready, a short broadcasted countdown runs and then the game
// starts; any member un-readying before it completes cancels it.
func (g *Registry) SetReady(roomID, userID string, flag bool) error {
	g.mu.RLock()
	room, ok := g.rooms[roomID]
	g.mu.RUnlock()
	if !ok {
		return ErrRoomNotFound
	}

	room.mu.Lock()
	u, member := room.users[userID]
	if !member {
		room.mu.Unlock()
		return ErrUserNotFound
	}
	u.Ready = flag

	cancelled := false
	if !flag && room.pending {
		room.pending = false
		room.disarmTimer()
		cancelled = true
	}

	start := flag && !room.active && !room.pending && len(room.users) > 1 && allReady(room)
	if start {
		room.pending = true
		g.armReadyCountdown(room)
	}
	snap := Snapshot(room)
	room.mu.Unlock()

	if cancelled {
		g.bcast.ToRoom(roomID, EventCountdownCancel, nil)
	}
	if start {
		g.bcast.ToRoom(roomID, EventCountdown, readyCountdownSeconds)
	}
	g.bcast.ToRoom(roomID, EventUpdateRoom, snap)
	g.broadcastRooms()
	return nil
}

// SetColor updates a member's display color.
func (g *Registry) SetColor(roomID, userID, color string) error {
	g.mu.RLock()
	room, ok := g.rooms[roomID]
	g.mu.RUnlock()
	if !ok {
		return ErrRoomNotFound
	}

	room.mu.Lock()
	u, member := room.users[userID]
	if !member {
		room.mu.Unlock()
		return ErrUserNotFound
	}
	u.Color = color
	snap := Snapshot(room)
	room.mu.Unlock()

	g.bcast.ToRoom(roomID, EventUpdateRoom, snap)
	return nil
}

// ListRooms snapshots every room for the lobby view.
func (g *Registry) ListRooms() []RoomSnapshot {
	g.mu.RLock()
	rooms := make([]*Room, 0, len(g.rooms))
	for _, r := range g.rooms {
		rooms = append(rooms, r)
	}
	g.mu.RUnlock()

	out := make([]RoomSnapshot, 0, len(rooms))
	for _, r := range rooms {
		r.mu.Lock()
		out = append(out, Snapshot(r))
		r.mu.Unlock()
	}
	return out
}

// ListUsers returns the known identities for the lobby view.
func (g *Registry) ListUsers() []UserSnapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]UserSnapshot, 0, len(g.users))
	for _, u := range g.users {
		out = append(out, UserSnapshot{
			UserID:    u.ID,
			Username:  u.Username,
			Connected: u.Connected,
		})
	}
	return out
}

// --- internals ---

// ensureHost keeps the host invariant: whenever the room has members, the
// host is a present, connected one. Departing hosts hand off to the lowest
// join-order connected survivor. Caller holds the room lock.
func (g *Registry) ensureHost(room *Room) {
	if len(room.users) == 0 {
		return
	}
	if h, ok := room.users[room.hostID]; ok && h.Connected {
		return
	}
	for _, u := range room.orderedUsers() {
		if u.Connected {
			room.hostID = u.ID
			return
		}
	}
	room.hostID = room.orderedUsers()[0].ID
}

// armReadyCountdown schedules game activation. Ticks and expiry re-acquire
// the room lock and verify the countdown is still the live one, so a cancel
// or room teardown racing a tick is a no-op. Caller holds the room lock.
func (g *Registry) armReadyCountdown(room *Room) {
	roomID := room.id
	seq := room.nextTimerSeq()

	room.timer = g.timers.Start(readyCountdownSeconds,
		func(remaining int) {
			room, ok := g.Room(roomID)
			if !ok {
				return
			}
			room.mu.Lock()
			live := room.timerSeq == seq && room.pending
			room.mu.Unlock()
			if live {
				g.bcast.ToRoom(roomID, EventCountdown, remaining)
			}
		},
		func() {
			room, ok := g.Room(roomID)
			if !ok {
				return
			}
			room.mu.Lock()
			live := room.timerSeq == seq && room.pending
			if live {
				room.pending = false
			}
			room.mu.Unlock()
			if !live {
				return
			}
			if err := g.games.Start(roomID); err != nil {
				g.log.Warn().Err(err).Str("room", roomID).Msg("game start failed")
			}
		},
	)
}

func allReady(room *Room) bool {
	for _, u := range room.users {
		if !u.Ready {
			return false
		}
	}
	return true
}

func (g *Registry) broadcastRooms() {
	g.bcast.ToAll(EventUpdateRooms, g.ListRooms())
}

func (g *Registry) broadcastUsers() {
	g.bcast.ToAll(EventUpdateUsers, g.ListUsers())
}
