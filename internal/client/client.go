package client

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"lockstep/internal/game"
	"lockstep/internal/protocol"
)

// Client phases.
const (
	PhaseConnecting int32 = iota
	PhaseJoined
	PhaseInGame
	PhaseCatchingUp
	PhaseClosed
)

// Config identifies the session to establish.
type Config struct {
	URL      string // ws://host:port/ws
	PlayerID string
	RoomID   string
	Token    string
}

// Client is one player's connection to the coordinator: it performs
// the handshake, mirrors the authoritative tick stream into a local
// predicted simulation, and ships local inputs.
type Client struct {
	cfg Config

	ws     *websocket.Conn
	sendMu sync.Mutex

	mu        sync.Mutex
	phase     int32
	roster    []string
	seed      uint32
	tickRate  int
	pred      *Predictor
	slot      uint16
	lastFrame uint32 // Highest authoritative frame applied
	started   bool

	// OnFrame, when set, observes every authoritative frame after it
	// has been reconciled. Called on the receive goroutine.
	OnFrame func(f protocol.GameFramePayload)

	// OnStart fires once when game_start arrives.
	OnStart func(seed uint32, roster []string)

	startCh   chan struct{}
	startOnce sync.Once
	doneCh    chan struct{}
	runErr    error
}

// New creates an unconnected client.
func New(cfg Config) *Client {
	return &Client{
		cfg:     cfg,
		phase:   PhaseConnecting,
		startCh: make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Dial connects and authenticates as a fresh join, then starts the
// receive loop.
func (c *Client) Dial(ctx context.Context) error {
	if err := c.connect(ctx); err != nil {
		return err
	}
	if err := c.write(protocol.TypeAuth, protocol.AuthPayload{
		PlayerID: c.cfg.PlayerID,
		RoomID:   c.cfg.RoomID,
		Token:    c.cfg.Token,
	}); err != nil {
		return err
	}
	go c.readLoop()
	return nil
}

// Reconnect connects and resumes a prior session at lastFrame. The
// caller must hold the original seed and roster (a client that already
// played the match does); the simulation is rebuilt before the replay
// arrives so catch-up frames apply cleanly.
func (c *Client) Reconnect(ctx context.Context, lastFrame uint32) error {
	c.mu.Lock()
	if c.seed == 0 && !c.started {
		c.mu.Unlock()
		return fmt.Errorf("reconnect %s: no prior session state", c.cfg.PlayerID)
	}
	c.phase = PhaseCatchingUp
	// Fresh lifecycle for the new socket.
	c.doneCh = make(chan struct{})
	c.runErr = nil
	c.mu.Unlock()

	if err := c.connect(ctx); err != nil {
		return err
	}
	if err := c.write(protocol.TypeReconnect, protocol.ReconnectPayload{
		PlayerID:  c.cfg.PlayerID,
		RoomID:    c.cfg.RoomID,
		LastFrame: lastFrame,
	}); err != nil {
		return err
	}
	go c.readLoop()
	return nil
}

func (c *Client) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	ws, _, err := dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.cfg.URL, err)
	}
	c.ws = ws
	return nil
}

// WaitStart blocks until game_start has been processed or the
// connection ends.
func (c *Client) WaitStart(ctx context.Context) error {
	select {
	case <-c.startCh:
		return nil
	case <-c.doneCh:
		return fmt.Errorf("connection closed before start: %w", c.runErr)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed when the receive loop exits.
func (c *Client) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.doneCh
}

// Err reports why the receive loop exited.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runErr
}

// Predictor exposes the local simulation once the match has started.
func (c *Client) Predictor() *Predictor {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pred
}

// LastFrame is the highest authoritative frame applied so far.
func (c *Client) LastFrame() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastFrame
}

// SendInput executes the next local tick speculatively and submits the
// input for it. Returns the frame id it targeted.
func (c *Client) SendInput(flags protocol.Flags, targetX, targetY int32) (uint32, error) {
	c.mu.Lock()
	if c.pred == nil {
		c.mu.Unlock()
		return 0, fmt.Errorf("send input: match not started")
	}
	frameID := c.pred.CurrentFrame()
	in := protocol.PlayerInput{
		FrameID:  frameID,
		PlayerID: c.slot,
		Flags:    flags,
		TargetX:  targetX,
		TargetY:  targetY,
	}
	data := in.Marshal()
	c.pred.SubmitLocal(data)
	c.mu.Unlock()

	err := c.write(protocol.TypeInput, protocol.InputPayload{
		FrameID:   frameID,
		InputData: data,
	})
	return frameID, err
}

// Leave announces a voluntary departure and closes.
func (c *Client) Leave() error {
	err := c.write(protocol.TypeLeave, struct{}{})
	c.Close()
	return err
}

// Close tears the connection down.
func (c *Client) Close() {
	c.mu.Lock()
	c.phase = PhaseClosed
	ws := c.ws
	c.mu.Unlock()
	if ws != nil {
		ws.Close()
	}
}

func (c *Client) write(msgType string, payload interface{}) error {
	data, err := protocol.Encode(msgType, payload)
	if err != nil {
		return err
	}
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.ws.WriteMessage(websocket.BinaryMessage, data)
}

func (c *Client) readLoop() {
	defer close(c.doneCh)
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			c.mu.Lock()
			if c.phase != PhaseClosed {
				c.runErr = err
			}
			c.phase = PhaseClosed
			c.mu.Unlock()
			return
		}
		env, err := protocol.Decode(data)
		if err != nil {
			log.Printf("⚠️ %s: dropping malformed message: %v", c.cfg.PlayerID, err)
			continue
		}
		if err := c.handle(env); err != nil {
			c.mu.Lock()
			c.runErr = err
			c.phase = PhaseClosed
			c.mu.Unlock()
			c.ws.Close()
			return
		}
	}
}

func (c *Client) handle(env protocol.Envelope) error {
	switch env.Type {
	case protocol.TypeJoinSuccess:
		var p protocol.JoinSuccessPayload
		if err := env.DecodePayload(&p); err != nil {
			return err
		}
		c.mu.Lock()
		c.roster = append([]string(nil), p.Roster...)
		sort.Strings(c.roster)
		c.phase = PhaseJoined
		c.mu.Unlock()
		return nil

	case protocol.TypePlayerJoined:
		var p protocol.PlayerEventPayload
		if err := env.DecodePayload(&p); err != nil {
			return err
		}
		c.mu.Lock()
		if !c.started && !contains(c.roster, p.PlayerID) {
			c.roster = append(c.roster, p.PlayerID)
			sort.Strings(c.roster)
		}
		c.mu.Unlock()
		return nil

	case protocol.TypePlayerLeft:
		// Roster is frozen once started; before start the member just
		// never makes it into the match.
		return nil

	case protocol.TypeGameStart:
		var p protocol.GameStartPayload
		if err := env.DecodePayload(&p); err != nil {
			return err
		}
		c.mu.Lock()
		c.seed = p.Seed
		c.tickRate = p.TickRate
		c.initMatchLocked()
		c.phase = PhaseInGame
		onStart := c.OnStart
		roster := c.roster
		c.mu.Unlock()

		c.startOnce.Do(func() { close(c.startCh) })
		if onStart != nil {
			onStart(p.Seed, roster)
		}
		return nil

	case protocol.TypeGameFrame:
		var p protocol.GameFramePayload
		if err := env.DecodePayload(&p); err != nil {
			return err
		}
		return c.applyFrame(p)

	case protocol.TypeSyncFrames:
		var p protocol.SyncFramesPayload
		if err := env.DecodePayload(&p); err != nil {
			return err
		}
		c.mu.Lock()
		if c.pred == nil {
			c.initMatchLocked()
		}
		c.mu.Unlock()
		for _, f := range p.Frames {
			if err := c.applyFrame(f); err != nil {
				return err
			}
		}
		c.mu.Lock()
		c.phase = PhaseInGame
		c.mu.Unlock()
		c.startOnce.Do(func() { close(c.startCh) })
		return nil

	case protocol.TypeResyncFull:
		var p protocol.ResyncFullPayload
		if err := env.DecodePayload(&p); err != nil {
			return err
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.pred == nil {
			c.initMatchLocked()
		}
		if err := c.pred.State().Deserialize(p.Snapshot); err != nil {
			return err
		}
		c.lastFrame = c.pred.State().FrameID
		c.phase = PhaseInGame
		c.startOnce.Do(func() { close(c.startCh) })
		return nil

	case protocol.TypeError:
		var p protocol.ErrorPayload
		if err := env.DecodePayload(&p); err != nil {
			return err
		}
		return fmt.Errorf("server error %d: %s", p.Code, p.Message)

	default:
		// Known vocabulary, unexpected direction; ignore.
		return nil
	}
}

// initMatchLocked builds the deterministic simulation from the shared
// seed and roster, identically to the server.
func (c *Client) initMatchLocked() {
	state := game.NewMatchState(c.seed, c.roster)
	c.pred = NewPredictor(state, c.cfg.PlayerID, c.roster)
	c.slot = game.Slots(c.roster)[c.cfg.PlayerID]
	c.started = true
}

func (c *Client) applyFrame(f protocol.GameFramePayload) error {
	c.mu.Lock()
	if c.pred == nil {
		c.mu.Unlock()
		return nil
	}
	if err := c.pred.OnAuthoritativeFrame(f); err != nil {
		c.mu.Unlock()
		// Rollback target evicted; only a full resync can recover.
		return fmt.Errorf("desync beyond snapshot window: %w", err)
	}
	if f.FrameID >= c.lastFrame {
		c.lastFrame = f.FrameID
	}
	onFrame := c.OnFrame
	c.mu.Unlock()

	if onFrame != nil {
		onFrame(f)
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
