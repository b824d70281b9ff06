package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_CreateRoom(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)
	env.reg.AddUser("a", "alice")

	id, err := env.reg.CreateRoom("", "my room", "a", Settings{})
	require.NoError(t, err)
	assert.NotEmpty(t, id, "blank id gets a generated one")

	room, ok := env.reg.Room(id)
	require.True(t, ok)
	room.mu.Lock()
	assert.Equal(t, DefaultRounds, room.settings.Rounds)
	assert.Equal(t, DefaultTurnSeconds, room.settings.TurnSeconds)
	assert.Equal(t, "a", room.hostID)
	assert.Empty(t, room.users, "creator is not a member until they join")
	room.mu.Unlock()

	_, err = env.reg.CreateRoom(id, "dup", "a", Settings{})
	assert.ErrorIs(t, err, ErrRoomExists)
}

func TestRegistry_JoinErrors(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)
	env.reg.AddUser("a", "alice")

	_, err := env.reg.Join("nope", "a")
	assert.ErrorIs(t, err, ErrRoomNotFound)

	_, err = env.reg.CreateRoom("r1", "room", "a", Settings{})
	require.NoError(t, err)
	_, err = env.reg.Join("r1", "ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestRegistry_JoinThenLeaveRestoresMembership(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)
	room := env.setupRoom(t, "r1", Settings{}, "a", "b")

	snap, err := env.reg.Join("r1", "b")
	require.NoError(t, err)
	assert.Len(t, snap.Users, 2, "rejoin is idempotent")

	require.NoError(t, env.reg.Leave("r1", "b"))
	room.mu.Lock()
	_, member := room.users["b"]
	n := len(room.users)
	room.mu.Unlock()
	assert.False(t, member)
	assert.Equal(t, 1, n)

	assert.ErrorIs(t, env.reg.Leave("r1", "b"), ErrUserNotFound)
}

func TestRegistry_JoinLeavesPreviousRoom(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)
	first := env.setupRoom(t, "r1", Settings{}, "a", "b")
	_, err := env.reg.CreateRoom("r2", "second", "a", Settings{})
	require.NoError(t, err)

	_, err = env.reg.Join("r2", "b")
	require.NoError(t, err)

	first.mu.Lock()
	_, stillInFirst := first.users["b"]
	first.mu.Unlock()
	assert.False(t, stillInFirst)

	env.reg.mu.RLock()
	u := env.reg.users["b"]
	env.reg.mu.RUnlock()
	assert.Equal(t, "r2", u.RoomID)
}

func TestRegistry_JoinAssignsDistinctColors(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)
	room := env.setupRoom(t, "r1", Settings{}, "a", "b", "c")

	room.mu.Lock()
	seen := map[string]bool{}
	for _, u := range room.users {
		assert.NotEmpty(t, u.Color)
		assert.False(t, seen[u.Color], "colors are unique while the palette lasts")
		seen[u.Color] = true
	}
	room.mu.Unlock()
}

func TestRegistry_LastLeaveDestroysRoom(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)
	env.setupRoom(t, "r1", Settings{}, "a")

	require.NoError(t, env.reg.Leave("r1", "a"))
	_, ok := env.reg.Room("r1")
	assert.False(t, ok)
}

func TestRegistry_HostHandoffFollowsJoinOrder(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)
	env.setupRoom(t, "r1", Settings{}, "a", "b", "c")
	assert.True(t, env.reg.IsHost("r1", "a"))

	require.NoError(t, env.reg.Leave("r1", "a"))
	assert.True(t, env.reg.IsHost("r1", "b"), "host passes to the earliest remaining joiner")

	require.NoError(t, env.reg.Leave("r1", "b"))
	assert.True(t, env.reg.IsHost("r1", "c"))
}

func TestRegistry_ReadyCountdownStartsGame(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)
	room := env.setupRoom(t, "r1", Settings{Rounds: 1, TurnSeconds: 5}, "a", "b")

	require.NoError(t, env.reg.SetReady("r1", "a", true))
	room.mu.Lock()
	pending := room.pending
	room.mu.Unlock()
	assert.False(t, pending, "one ready member arms nothing")

	require.NoError(t, env.reg.SetReady("r1", "b", true))
	room.mu.Lock()
	pending = room.pending
	room.mu.Unlock()
	assert.True(t, pending)
	assert.Equal(t, 1, env.bcast.count(EventCountdown))

	ticks := env.ticks.latest()
	for i := 0; i < readyCountdownSeconds; i++ {
		ticks <- time.Now()
	}
	require.Eventually(t, func() bool {
		return phaseOf(room) == PhaseRoundStart
	}, time.Second, 5*time.Millisecond, "countdown expiry activates the game")
}

func TestRegistry_UnreadyCancelsCountdown(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)
	room := env.setupRoom(t, "r1", Settings{Rounds: 1, TurnSeconds: 5}, "a", "b")

	require.NoError(t, env.reg.SetReady("r1", "a", true))
	require.NoError(t, env.reg.SetReady("r1", "b", true))
	ticks := env.ticks.latest()

	require.NoError(t, env.reg.SetReady("r1", "b", false))
	assert.Equal(t, 1, env.bcast.count(EventCountdownCancel))

	for i := 0; i < readyCountdownSeconds; i++ {
		ticks <- time.Now()
	}
	assert.Never(t, func() bool {
		return phaseOf(room) != PhaseIdle
	}, 100*time.Millisecond, 10*time.Millisecond, "cancelled countdown never starts the game")
}

func TestRegistry_LeaveDuringCountdownCancelsIt(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)
	room := env.setupRoom(t, "r1", Settings{Rounds: 1, TurnSeconds: 5}, "a", "b", "c")

	require.NoError(t, env.reg.SetReady("r1", "a", true))
	require.NoError(t, env.reg.SetReady("r1", "b", true))
	require.NoError(t, env.reg.SetReady("r1", "c", true))

	require.NoError(t, env.reg.Leave("r1", "c"))
	assert.Equal(t, 1, env.bcast.count(EventCountdownCancel))
	room.mu.Lock()
	assert.False(t, room.pending)
	room.mu.Unlock()
}

func TestRegistry_SingleUserNeverStarts(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)
	room := env.setupRoom(t, "r1", Settings{Rounds: 1, TurnSeconds: 5}, "a")

	require.NoError(t, env.reg.SetReady("r1", "a", true))
	room.mu.Lock()
	assert.False(t, room.pending)
	room.mu.Unlock()
	assert.Zero(t, env.bcast.count(EventCountdown))
}

func TestRegistry_ReconnectKeepsGameState(t *testing.T) {
	t.Parallel()
	words := &scriptedWords{words: []string{"w"}}
	env := newTestEnv(t, words)
	room := env.setupRoom(t, "r1", Settings{Rounds: 1, TurnSeconds: 5}, "a", "b")

	require.NoError(t, env.engine.Start("r1"))
	env.fireTimer(room) // pending
	env.fireTimer(room) // active
	_, err := env.engine.Guess("r1", "b", "w")
	require.NoError(t, err)
	require.Equal(t, 1, userOf(room, "b").Score)

	// Drop the connection, then come back under the same userid with a
	// fresh identity record.
	env.reg.Disconnect("b")
	assert.False(t, userOf(room, "b").Connected)

	env.reg.AddUser("b", "bob-again")
	_, err = env.reg.Join("r1", "b")
	require.NoError(t, err)

	u := userOf(room, "b")
	assert.True(t, u.Connected)
	assert.Equal(t, 1, u.Score, "accumulated score survives a reconnect")
	assert.NotEmpty(t, u.Color)
}

func TestRegistry_LeaveActiveGameSeversIdentity(t *testing.T) {
	t.Parallel()
	words := &scriptedWords{words: []string{"w"}}
	env := newTestEnv(t, words)
	first := env.setupRoom(t, "r1", Settings{Rounds: 1, TurnSeconds: 5}, "a", "b")

	require.NoError(t, env.engine.Start("r1"))
	env.fireTimer(first) // pending
	env.fireTimer(first) // active
	_, err := env.engine.Guess("r1", "b", "w")
	require.NoError(t, err)
	require.Equal(t, 1, userOf(first, "b").Score)

	require.NoError(t, env.reg.Leave("r1", "b"))

	_, err = env.reg.CreateRoom("r2", "second", "b", Settings{})
	require.NoError(t, err)
	_, err = env.reg.Join("r2", "b")
	require.NoError(t, err)

	// The slot held in the departed room is untouched by the new membership.
	held := userOf(first, "b")
	assert.False(t, held.Connected)
	assert.Equal(t, 1, held.Score, "mid-game score survives joining another room")

	second, ok := env.reg.Room("r2")
	require.True(t, ok)
	fresh := userOf(second, "b")
	assert.True(t, fresh.Connected)
	assert.Zero(t, fresh.Score, "nothing carries over into the new room")

	// The departed room's destroy rule still sees b as disconnected.
	require.NoError(t, env.reg.Leave("r1", "a"))
	_, ok = env.reg.Room("r1")
	assert.False(t, ok)
}

func TestRegistry_AllDisconnectedDestroysRoom(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)
	env.setupRoom(t, "r1", Settings{Rounds: 1, TurnSeconds: 5}, "a", "b")

	require.NoError(t, env.engine.Start("r1"))

	// Active game, so departures only mark the member disconnected until
	// nobody is left at all.
	require.NoError(t, env.reg.Leave("r1", "a"))
	_, ok := env.reg.Room("r1")
	assert.True(t, ok)

	require.NoError(t, env.reg.Leave("r1", "b"))
	_, ok = env.reg.Room("r1")
	assert.False(t, ok, "last connected member out takes the room down")
}

func TestRegistry_RemoveRoomEndsActiveGame(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)
	env.setupRoom(t, "r1", Settings{Rounds: 1, TurnSeconds: 5}, "a", "b")
	require.NoError(t, env.engine.Start("r1"))

	require.NoError(t, env.reg.RemoveRoom("r1"))
	assert.Equal(t, 1, env.bcast.count(EventGameOver))

	env.reg.mu.RLock()
	u := env.reg.users["a"]
	env.reg.mu.RUnlock()
	assert.Empty(t, u.RoomID)

	assert.ErrorIs(t, env.reg.RemoveRoom("r1"), ErrRoomNotFound)
}

func TestRegistry_SetColor(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)
	room := env.setupRoom(t, "r1", Settings{}, "a")

	require.NoError(t, env.reg.SetColor("r1", "a", "#112233"))
	assert.Equal(t, "#112233", userOf(room, "a").Color)

	assert.ErrorIs(t, env.reg.SetColor("r1", "ghost", "#fff"), ErrUserNotFound)
	assert.ErrorIs(t, env.reg.SetColor("nope", "a", "#fff"), ErrRoomNotFound)
}

func TestRegistry_ListRooms(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)
	env.setupRoom(t, "r1", Settings{}, "a")
	env.reg.AddUser("b", "bob")
	_, err := env.reg.CreateRoom("r2", "second", "b", Settings{})
	require.NoError(t, err)

	rooms := env.reg.ListRooms()
	assert.Len(t, rooms, 2)
	ids := map[string]bool{}
	for _, r := range rooms {
		ids[r.RoomID] = true
	}
	assert.True(t, ids["r1"] && ids["r2"])
}

func TestRegistry_ShutdownDropsEverything(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)
	env.setupRoom(t, "r1", Settings{Rounds: 1, TurnSeconds: 5}, "a", "b")
	require.NoError(t, env.engine.Start("r1"))
	env.setupRoom(t, "r2", Settings{}, "c")

	env.reg.Shutdown()
	assert.Empty(t, env.reg.ListRooms())
}
