package ws

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/nbirus/draw-with-friends-api/internal/game"
)

// Hub is the session front door: it tracks live connections, maps inbound
// client events onto registry and engine calls, and implements the
// game.Broadcaster fan-out for outbound snapshots.
type Hub struct {
	mu     sync.RWMutex
	byUser map[string]*Conn
	byRoom map[string]map[*Conn]struct{}

	reg   *game.Registry
	games *game.Engine
	log   zerolog.Logger
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		byUser: make(map[string]*Conn),
		byRoom: make(map[string]map[*Conn]struct{}),
		log:    log.With().Str("component", "ws").Logger(),
	}
}

// Bind wires in the registry and engine after construction; the registry
// itself needs the hub as its Broadcaster.
func (h *Hub) Bind(reg *game.Registry, games *game.Engine) {
	h.reg = reg
	h.games = games
}

// Serve runs the pumps for an upgraded connection. Blocks until the
// connection drops.
func (h *Hub) Serve(socket *websocket.Conn) {
	c := newConn(h, socket, h.log)
	go c.writePump()
	c.readPump()
}

// --- game.Broadcaster ---

func (h *Hub) ToRoom(roomID, event string, payload any) {
	data, err := encode(event, payload)
	if err != nil {
		h.log.Error().Err(err).Str("event", event).Msg("encode failed")
		return
	}

	h.mu.RLock()
	conns := make([]*Conn, 0, len(h.byRoom[roomID]))
	users := make([]string, 0, len(h.byRoom[roomID]))
	for c := range h.byRoom[roomID] {
		conns = append(conns, c)
		users = append(users, c.userID)
	}
	h.mu.RUnlock()

	for i, c := range conns {
		if !c.send(data) {
			h.log.Debug().Str("event", event).Str("user", users[i]).Msg("send dropped")
		}
	}
}

func (h *Hub) ToUser(userID, event string, payload any) {
	data, err := encode(event, payload)
	if err != nil {
		h.log.Error().Err(err).Str("event", event).Msg("encode failed")
		return
	}

	h.mu.RLock()
	c := h.byUser[userID]
	h.mu.RUnlock()

	if c != nil {
		c.send(data)
	}
}

func (h *Hub) ToAll(event string, payload any) {
	data, err := encode(event, payload)
	if err != nil {
		h.log.Error().Err(err).Str("event", event).Msg("encode failed")
		return
	}

	h.mu.RLock()
	conns := make([]*Conn, 0, len(h.byUser))
	for _, c := range h.byUser {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		c.send(data)
	}
}

// --- inbound dispatch ---

func (h *Hub) dispatch(c *Conn, env Envelope) {
	switch env.Event {
	case eventSetUser:
		h.handleSetUser(c, env.Data)
	case eventCreateRoom:
		h.handleCreateRoom(c, env.Data)
	case eventRemoveRoom:
		h.handleRemoveRoom(c, env.Data)
	case eventJoinRoom:
		h.handleJoinRoom(c, env.Data)
	case eventLeaveRoom:
		h.handleLeaveRoom(c, env.Data)
	case eventReady:
		h.handleReady(c, env.Data)
	case eventColor:
		h.handleColor(c, env.Data)
	case eventGuess:
		h.handleGuess(c, env.Data)
	case eventMouseMove:
		h.handleMouseMove(c, env.Data)
	default:
		h.log.Debug().Str("event", env.Event).Msg("unknown event")
	}
}

func (h *Hub) handleSetUser(c *Conn, data json.RawMessage) {
	var p setUserPayload
	if err := json.Unmarshal(data, &p); err != nil || p.UserID == "" {
		return
	}

	h.mu.Lock()
	// A second connection for the same identity replaces the first.
	if old, ok := h.byUser[p.UserID]; ok && old != c {
		h.unbindLocked(old)
		old.close()
	}
	c.userID = p.UserID
	h.byUser[p.UserID] = c
	h.mu.Unlock()

	h.reg.AddUser(p.UserID, p.Username)
}

func (h *Hub) handleCreateRoom(c *Conn, data json.RawMessage) {
	userID := h.connUser(c)
	if userID == "" {
		return
	}
	var p createRoomPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}

	settings := game.Settings{Rounds: p.Settings.Rounds, TurnSeconds: p.Settings.TurnSeconds}
	if _, err := h.reg.CreateRoom(p.RoomID, p.Name, userID, settings); err != nil {
		h.log.Debug().Err(err).Str("room", p.RoomID).Msg("create room")
	}
}

func (h *Hub) handleRemoveRoom(c *Conn, data json.RawMessage) {
	userID := h.connUser(c)
	roomID := roomRef(data)
	if roomID == "" || !h.reg.IsHost(roomID, userID) {
		return
	}
	if err := h.reg.RemoveRoom(roomID); err != nil {
		h.log.Debug().Err(err).Str("room", roomID).Msg("remove room")
	}
}

func (h *Hub) handleJoinRoom(c *Conn, data json.RawMessage) {
	userID := h.connUser(c)
	roomID := roomRef(data)

	snap, err := h.reg.Join(roomID, userID)
	if err != nil {
		if errors.Is(err, game.ErrRoomNotFound) || errors.Is(err, game.ErrUserNotFound) {
			h.sendTo(c, game.EventJoinRoomError, nil)
		}
		return
	}

	h.mu.Lock()
	h.unbindRoomLocked(c)
	c.roomID = roomID
	if h.byRoom[roomID] == nil {
		h.byRoom[roomID] = make(map[*Conn]struct{})
	}
	h.byRoom[roomID][c] = struct{}{}
	h.mu.Unlock()

	h.sendTo(c, game.EventJoinRoom, snap)
}

func (h *Hub) handleLeaveRoom(c *Conn, data json.RawMessage) {
	userID := h.connUser(c)
	roomID := roomRef(data)

	// Only a leave for the room this connection is bound to detaches it
	// from that room's broadcasts.
	h.mu.Lock()
	if roomID == "" {
		roomID = c.roomID
	}
	if roomID == c.roomID {
		h.unbindRoomLocked(c)
	}
	h.mu.Unlock()

	if err := h.reg.Leave(roomID, userID); err != nil {
		h.log.Debug().Err(err).Str("room", roomID).Msg("leave room")
	}
}

func (h *Hub) handleReady(c *Conn, data json.RawMessage) {
	var flag bool
	if err := json.Unmarshal(data, &flag); err != nil {
		return
	}
	if err := h.reg.SetReady(h.connRoom(c), h.connUser(c), flag); err != nil {
		h.log.Debug().Err(err).Msg("ready")
	}
}

func (h *Hub) handleColor(c *Conn, data json.RawMessage) {
	var color string
	if err := json.Unmarshal(data, &color); err != nil {
		return
	}
	if err := h.reg.SetColor(h.connRoom(c), h.connUser(c), color); err != nil {
		h.log.Debug().Err(err).Msg("color")
	}
}

func (h *Hub) handleGuess(c *Conn, data json.RawMessage) {
	var p guessPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}
	if _, err := h.games.Guess(p.RoomID, h.connUser(c), p.Guess); err != nil {
		h.log.Debug().Err(err).Str("room", p.RoomID).Msg("guess")
	}
}

// handleMouseMove relays canvas events to the room untouched; the payload
// is never inspected beyond its room id.
func (h *Hub) handleMouseMove(c *Conn, data json.RawMessage) {
	roomID := roomRef(data)
	if roomID == "" {
		return
	}
	h.ToRoom(roomID, game.EventMoving, data)
}

// --- connection bookkeeping ---

// dropConn runs when a read pump exits: the connection is unbound and, if
// it still owned its identity, the user is disconnected from the registry.
func (h *Hub) dropConn(c *Conn) {
	h.mu.Lock()
	owned := c.userID != "" && h.byUser[c.userID] == c
	h.unbindLocked(c)
	h.mu.Unlock()

	c.close()
	c.socket.Close()

	if owned {
		h.reg.Disconnect(c.userID)
	}
}

func (h *Hub) unbindLocked(c *Conn) {
	if c.userID != "" && h.byUser[c.userID] == c {
		delete(h.byUser, c.userID)
	}
	h.unbindRoomLocked(c)
}

func (h *Hub) unbindRoomLocked(c *Conn) {
	if c.roomID != "" {
		if set := h.byRoom[c.roomID]; set != nil {
			delete(set, c)
			if len(set) == 0 {
				delete(h.byRoom, c.roomID)
			}
		}
		c.roomID = ""
	}
}

func (h *Hub) connUser(c *Conn) string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return c.userID
}

func (h *Hub) connRoom(c *Conn) string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return c.roomID
}

func (h *Hub) sendTo(c *Conn, event string, payload any) {
	data, err := encode(event, payload)
	if err != nil {
		h.log.Error().Err(err).Str("event", event).Msg("encode failed")
		return
	}
	c.send(data)
}
