package server

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"lockstep/internal/protocol"
)

// Connection lifecycle states.
const (
	stateConnecting int32 = iota
	stateAuthed
	stateInGame
	stateReconnecting
	stateClosed
)

// readLimit is what the transport will accept before killing the
// connection outright. The protocol cap (10 KiB) is enforced per
// message so oversized frames can be dropped and counted without
// tearing the socket down.
const readLimit = 64 * 1024

// Conn is one player's transport session. The read loop is the only
// reader; Send serializes writers with sendMu. The owning room looks
// connections up by player id and never retains them across ticks.
type Conn struct {
	ws       *websocket.Conn
	playerID string
	roomID   string

	srv   *Server
	room  *Room
	state int32 // atomic

	sendMu sync.Mutex
	broken int32 // atomic; set on first write failure

	lastRx     time.Time
	violations *ViolationWindow

	closeOnce sync.Once
}

func newConn(ws *websocket.Conn, srv *Server) *Conn {
	return &Conn{
		ws:         ws,
		srv:        srv,
		state:      stateConnecting,
		lastRx:     time.Now(),
		violations: NewViolationWindow(srv.cfg.Limits.MaxViolations, srv.cfg.Limits.ViolationWindow),
	}
}

// Send writes one prepared message. Best effort: the first failure
// marks the connection broken and detaches it; later sends no-op.
func (c *Conn) Send(data []byte) {
	if atomic.LoadInt32(&c.broken) != 0 || atomic.LoadInt32(&c.state) == stateClosed {
		return
	}
	c.sendMu.Lock()
	c.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
	err := c.ws.WriteMessage(websocket.BinaryMessage, data)
	c.sendMu.Unlock()

	if err != nil {
		if atomic.CompareAndSwapInt32(&c.broken, 0, 1) {
			log.Printf("📡 Write to %s failed: %v", c.playerID, err)
			if r := c.room; r != nil {
				go r.Drop(c)
			}
		}
	}
}

// SendError ships an error payload before an intentional close.
func (c *Conn) SendError(code int, message string) {
	if data, err := protocol.Encode(protocol.TypeError, protocol.ErrorPayload{
		Code:    code,
		Message: message,
	}); err == nil {
		c.Send(data)
	}
}

// CloseWithCode sends a close frame with the given application code and
// shuts the socket.
func (c *Conn) CloseWithCode(code int, reason string) {
	c.closeOnce.Do(func() {
		atomic.StoreInt32(&c.state, stateClosed)
		c.sendMu.Lock()
		c.ws.SetWriteDeadline(time.Now().Add(2 * time.Second))
		c.ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, reason))
		c.sendMu.Unlock()
		c.ws.Close()
	})
}

// readLoop drives the whole session: admission first, then dispatch
// until the socket dies. Runs on its own goroutine per connection.
func (c *Conn) readLoop() {
	connectionCount.Inc()
	defer func() {
		connectionCount.Dec()
		atomic.StoreInt32(&c.state, stateClosed)
		if r := c.room; r != nil {
			r.Drop(c)
		}
		c.ws.Close()
	}()

	c.ws.SetReadLimit(readLimit)

	if !c.admit() {
		return
	}

	for {
		c.ws.SetReadDeadline(time.Now().Add(c.srv.cfg.Limits.HeartbeatTimeout))
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		c.lastRx = time.Now()

		if len(data) > protocol.MaxMessageSize {
			recordDrop("oversized")
			c.violation("oversized message")
			continue
		}
		if !c.srv.rateLimiter.Allow(c.playerID) {
			recordDrop("rate_limit")
			if c.violations.Add() {
				c.CloseWithCode(protocol.CloseRateLimited, "rate limit exceeded")
				return
			}
			continue
		}

		env, err := protocol.Decode(data)
		if err != nil {
			recordDrop("malformed")
			c.violation("malformed envelope")
			continue
		}
		if !c.dispatch(env) {
			return
		}
	}
}

// admit runs the auth handshake: one auth or reconnect message within
// the deadline, validated and routed to a room.
func (c *Conn) admit() bool {
	c.ws.SetReadDeadline(time.Now().Add(c.srv.cfg.Limits.AuthTimeout))
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		c.CloseWithCode(protocol.CloseAuthTimeout, "auth timeout")
		return false
	}
	if len(data) > protocol.MaxMessageSize {
		c.CloseWithCode(protocol.CloseAuthFailed, "oversized auth")
		return false
	}

	env, err := protocol.Decode(data)
	if err != nil {
		c.CloseWithCode(protocol.CloseAuthFailed, "malformed auth")
		return false
	}

	switch env.Type {
	case protocol.TypeAuth:
		var p protocol.AuthPayload
		if err := env.DecodePayload(&p); err != nil {
			c.CloseWithCode(protocol.CloseAuthFailed, "malformed auth payload")
			return false
		}
		if !validIdentifier(p.PlayerID) || !validIdentifier(p.RoomID) {
			c.CloseWithCode(protocol.CloseAuthFailed, "invalid player or room id")
			return false
		}
		c.playerID = p.PlayerID
		c.roomID = p.RoomID

		room := c.srv.roomFor(p.RoomID)
		if room == nil || !room.Join(c) {
			c.SendError(protocol.CloseRoomFull, "room full or already started")
			c.CloseWithCode(protocol.CloseRoomFull, "room full")
			return false
		}
		c.room = room
		atomic.StoreInt32(&c.state, stateAuthed)
		return true

	case protocol.TypeReconnect:
		var p protocol.ReconnectPayload
		if err := env.DecodePayload(&p); err != nil {
			c.CloseWithCode(protocol.CloseAuthFailed, "malformed reconnect payload")
			return false
		}
		if !validIdentifier(p.PlayerID) || !validIdentifier(p.RoomID) {
			c.CloseWithCode(protocol.CloseAuthFailed, "invalid player or room id")
			return false
		}
		c.playerID = p.PlayerID
		c.roomID = p.RoomID
		atomic.StoreInt32(&c.state, stateReconnecting)

		room := c.srv.lookupRoom(p.RoomID)
		if room == nil || !room.Reconnect(c, p.LastFrame) {
			c.CloseWithCode(protocol.CloseAuthFailed, "no session to resume")
			return false
		}
		c.room = room
		atomic.StoreInt32(&c.state, stateInGame)
		return true

	default:
		c.CloseWithCode(protocol.CloseAuthFailed, "expected auth")
		return false
	}
}

// dispatch routes one post-admission message. Returns false when the
// loop should end.
func (c *Conn) dispatch(env protocol.Envelope) bool {
	switch env.Type {
	case protocol.TypeInput:
		var p protocol.InputPayload
		if err := env.DecodePayload(&p); err != nil {
			recordDrop("malformed")
			c.violation("malformed input payload")
			return true
		}
		if !c.room.HandleInput(c, p) {
			c.violation("invalid input")
		} else {
			atomic.CompareAndSwapInt32(&c.state, stateAuthed, stateInGame)
		}
		return true

	case protocol.TypeLeave:
		c.room.Leave(c)
		c.CloseWithCode(websocket.CloseNormalClosure, "bye")
		return false

	case protocol.TypeAuth, protocol.TypeReconnect:
		c.violation("duplicate handshake")
		return true

	default:
		// Known vocabulary, wrong direction.
		recordDrop("unknown_type")
		c.violation("unexpected message type")
		return true
	}
}

// violation records one strike; crossing the threshold closes with the
// policy-violation code.
func (c *Conn) violation(reason string) {
	violationsTotal.Inc()
	if c.violations.Add() {
		log.Printf("🚫 Closing %s: violations over threshold (%s)", c.playerID, reason)
		c.CloseWithCode(protocol.ClosePolicyViolation, "policy violation")
	}
}

// validIdentifier bounds player and room ids: non-empty printable
// ASCII, at most 64 bytes.
func validIdentifier(s string) bool {
	if len(s) == 0 || len(s) > 64 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < 0x21 || s[i] > 0x7e {
			return false
		}
	}
	return true
}
