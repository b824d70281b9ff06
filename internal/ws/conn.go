package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 16 * 1024
	outboxSize     = 256
)

// Conn wraps one websocket connection: a read pump that decodes and
// dispatches inbound envelopes, and a write pump draining a buffered outbox.
// Sends are best-effort; a full outbox drops the frame rather than stalling
// a broadcast.
type Conn struct {
	hub    *Hub
	socket *websocket.Conn
	log    zerolog.Logger

	outbox    chan []byte
	done      chan struct{}
	closeOnce sync.Once

	// guarded by the hub lock
	userID string
	roomID string

	limiter *rate.Limiter
}

func newConn(hub *Hub, socket *websocket.Conn, log zerolog.Logger) *Conn {
	return &Conn{
		hub:     hub,
		socket:  socket,
		log:     log,
		outbox:  make(chan []byte, outboxSize),
		done:    make(chan struct{}),
		limiter: rate.NewLimiter(rate.Limit(10), 20),
	}
}

// send queues a frame without blocking. Returns false when the outbox is
// full or the connection is closing. The outbox itself is never closed, so
// a broadcast racing a close cannot panic; stragglers land in the buffer
// and are dropped with it.
func (c *Conn) send(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.outbox <- data:
		return true
	default:
		return false
	}
}

func (c *Conn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

func (c *Conn) readPump() {
	defer c.hub.dropConn(c)

	c.socket.SetReadLimit(maxMessageSize)
	c.socket.SetReadDeadline(time.Now().Add(pongWait))
	c.socket.SetPongHandler(func(string) error {
		c.socket.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug().Err(err).Msg("read failed")
			}
			return
		}

		env := Envelope{}
		if err := json.Unmarshal(data, &env); err != nil {
			c.log.Debug().Err(err).Msg("bad envelope")
			continue
		}

		// Canvas relay is high frequency and exempt from the limiter.
		if env.Event != eventMouseMove && !c.limiter.Allow() {
			c.log.Debug().Str("event", env.Event).Msg("rate limited")
			continue
		}

		c.hub.dispatch(c, env)
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.socket.Close()
	}()

	for {
		select {
		case data := <-c.outbox:
			c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-c.done:
			c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			c.socket.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case <-ticker.C:
			c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
