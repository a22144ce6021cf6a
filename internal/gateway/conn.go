package gateway

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"promptvc.dev/internal/auth"
)

// Connection lifecycle. Transitions only move forward; Closed is terminal.
type connState int32

const (
	stateConnecting connState = iota
	stateJoined
	stateActive
	stateClosed
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
	sendBuffer = 32
)

// Conn is one authenticated client connection. Identity and workspace are
// fixed at handshake time and never change for the life of the connection.
type Conn struct {
	id          string
	ws          *websocket.Conn
	identity    auth.Identity
	workspaceID string

	state     atomic.Int32
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newConn(id string, ws *websocket.Conn, identity auth.Identity, workspaceID string) *Conn {
	c := &Conn{
		id:          id,
		ws:          ws,
		identity:    identity,
		workspaceID: workspaceID,
		send:        make(chan []byte, sendBuffer),
		done:        make(chan struct{}),
	}
	c.state.Store(int32(stateConnecting))
	return c
}

func (c *Conn) ID() string { return c.id }

// Send queues a payload for the write pump. It never blocks: a full buffer
// or a closed connection reports false and the payload is dropped.
func (c *Conn) Send(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// markJoined moves Connecting -> Joined. It fails if the connection already
// closed, which is the completion-race guard: an in-flight handshake must not
// register a dead connection into a room.
func (c *Conn) markJoined() bool {
	return c.state.CompareAndSwap(int32(stateConnecting), int32(stateJoined))
}

// markActive moves Joined -> Active; the connection may now relay events.
func (c *Conn) markActive() bool {
	return c.state.CompareAndSwap(int32(stateJoined), int32(stateActive))
}

func (c *Conn) closed() bool {
	return connState(c.state.Load()) == stateClosed
}

// close transitions to Closed exactly once and tears down the socket.
func (c *Conn) close() {
	c.closeOnce.Do(func() {
		c.state.Store(int32(stateClosed))
		close(c.done)
		_ = c.ws.Close()
	})
}

// writePump owns all writes to the socket: queued payloads plus keepalive
// pings. It exits when the connection closes.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			return
		case payload := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
