package server

import (
	"hash/fnv"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"lockstep/internal/config"
	"lockstep/internal/frame"
	"lockstep/internal/game"
	"lockstep/internal/protocol"
)

// Room owns one match: the membership, the frame engine, and the
// authoritative simulation. All room state is guarded by mu; the tick
// loop and the per-connection read loops both take it.
type Room struct {
	ID string

	mu        sync.Mutex
	members   map[string]*Conn
	slots     map[string]uint16
	departed  map[string]bool      // Left for good; inputs auto-filled
	dropped   map[string]time.Time // Network loss; reconnect window open
	engine    *frame.Engine
	state     *game.State
	started   bool
	seed      uint32
	lastTick  time.Time // Last committed frame (wall clock)
	emptyAt   time.Time // When the room last became empty
	validator *InputValidator

	gameCfg   config.GameConfig
	limitsCfg config.LimitsConfig

	stopOnce sync.Once
	stopChan chan struct{}
	onClose  func(roomID string)
}

// NewRoom creates a room and starts its tick loop. onClose is invoked
// once when the room shuts down (empty past the TTL or server stop).
func NewRoom(id string, gameCfg config.GameConfig, limitsCfg config.LimitsConfig, onClose func(string)) *Room {
	r := &Room{
		ID:        id,
		members:   make(map[string]*Conn),
		departed:  make(map[string]bool),
		dropped:   make(map[string]time.Time),
		seed:      roomSeed(id, gameCfg.Seed),
		validator: NewInputValidator(limitsCfg),
		gameCfg:   gameCfg,
		limitsCfg: limitsCfg,
		emptyAt:   time.Now(),
		stopChan:  make(chan struct{}),
		onClose:   onClose,
	}
	roomCount.Inc()
	go r.run()
	return r
}

// roomSeed derives the shared simulation seed from the room id, unless
// a global override is configured.
func roomSeed(roomID string, override uint32) uint32 {
	if override != 0 {
		return override
	}
	h := fnv.New32a()
	h.Write([]byte(roomID))
	return h.Sum32()
}

// Join admits a fresh connection. Fails once the match has started or
// the room is full; reconnecting players go through Reconnect instead.
func (r *Room) Join(c *Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return false
	}
	if _, taken := r.members[c.playerID]; taken {
		return false
	}
	if len(r.members) >= r.gameCfg.MaxPlayers {
		return false
	}

	r.members[c.playerID] = c
	roster := r.rosterLocked()

	ack, err := protocol.Encode(protocol.TypeJoinSuccess, protocol.JoinSuccessPayload{
		RoomID:   r.ID,
		PlayerID: c.playerID,
		Roster:   roster,
	})
	if err == nil {
		c.Send(ack)
	}

	joined, err := protocol.Encode(protocol.TypePlayerJoined, protocol.PlayerEventPayload{
		PlayerID: c.playerID,
	})
	if err == nil {
		r.broadcastLocked(joined, c.playerID)
	}

	log.Printf("🎮 Player %s joined room %s (%d/%d)",
		c.playerID, r.ID, len(r.members), r.gameCfg.MaxPlayers)

	if len(r.members) >= r.gameCfg.StartPlayers {
		r.startLocked()
	}
	return true
}

// startLocked freezes the roster and begins the match. Clients build
// the identical initial state from the seed and the roster they already
// hold.
func (r *Room) startLocked() {
	roster := r.rosterLocked()
	r.slots = game.Slots(roster)
	r.engine = frame.NewEngine(r.slots)
	r.state = game.NewMatchState(r.seed, roster)
	r.started = true
	r.lastTick = time.Now()

	data, err := protocol.Encode(protocol.TypeGameStart, protocol.GameStartPayload{
		Seed:        r.seed,
		PlayerCount: len(roster),
		TickRate:    r.gameCfg.TickRate,
	})
	if err == nil {
		r.broadcastLocked(data, "")
	}

	log.Printf("🚀 Room %s started: %d players, seed %d", r.ID, len(roster), r.seed)
}

// Reconnect reattaches a dropped player and brings them back in sync.
func (r *Room) Reconnect(c *Conn, lastFrame uint32) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.started {
		return false
	}
	if _, ok := r.slots[c.playerID]; !ok {
		reconnectsTotal.WithLabelValues("rejected").Inc()
		return false
	}
	if _, open := r.dropped[c.playerID]; !open {
		if _, live := r.members[c.playerID]; live {
			// Stale session still attached; replace it.
			r.members[c.playerID].CloseWithCode(protocol.ClosePolicyViolation, "session replaced")
		} else {
			reconnectsTotal.WithLabelValues("rejected").Inc()
			return false
		}
	}
	delete(r.dropped, c.playerID)
	r.members[c.playerID] = c

	r.sendCatchUpLocked(c, lastFrame)

	joined, err := protocol.Encode(protocol.TypePlayerJoined, protocol.PlayerEventPayload{
		PlayerID: c.playerID,
	})
	if err == nil {
		r.broadcastLocked(joined, c.playerID)
	}
	log.Printf("🔄 Player %s reconnected to room %s at frame %d", c.playerID, r.ID, lastFrame)
	return true
}

// sendCatchUpLocked replays the frames the client missed, or ships the
// full state when the gap exceeds the history window.
func (r *Room) sendCatchUpLocked(c *Conn, lastFrame uint32) {
	cur := r.engine.CurrentFrame()
	if cur == 0 || lastFrame+1 >= cur {
		// Nothing committed since; an empty replay confirms liveness.
		if data, err := protocol.Encode(protocol.TypeSyncFrames, protocol.SyncFramesPayload{}); err == nil {
			c.Send(data)
		}
		reconnectsTotal.WithLabelValues("replay").Inc()
		return
	}

	last := cur - 1
	frames := r.engine.Range(lastFrame, last)
	gapTooLarge := last-lastFrame > frame.MaxFrameHistory
	incomplete := len(frames) == 0 || frames[0].FrameID != lastFrame+1

	if gapTooLarge || incomplete {
		snap, err := r.state.Serialize()
		if err != nil {
			log.Printf("⚠️ Room %s: serialize for resync failed: %v", r.ID, err)
			return
		}
		if data, err := protocol.Encode(protocol.TypeResyncFull, protocol.ResyncFullPayload{Snapshot: snap}); err == nil {
			c.Send(data)
		}
		reconnectsTotal.WithLabelValues("full").Inc()
		return
	}

	payload := protocol.SyncFramesPayload{
		Frames: make([]protocol.GameFramePayload, 0, len(frames)),
	}
	for _, f := range frames {
		payload.Frames = append(payload.Frames, protocol.GameFramePayload{
			FrameID:   f.FrameID,
			Inputs:    f.Inputs,
			Confirmed: f.Confirmed,
		})
	}
	if data, err := protocol.Encode(protocol.TypeSyncFrames, payload); err == nil {
		c.Send(data)
	}
	reconnectsTotal.WithLabelValues("replay").Inc()
}

// HandleInput validates and buffers one input submission. Returns false
// when the submission counted as a violation.
func (r *Room) HandleInput(c *Conn, p protocol.InputPayload) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.started {
		return false
	}
	slot, ok := r.slots[c.playerID]
	if !ok {
		return false
	}

	err := r.validator.Validate(p.InputData, r.engine.CurrentFrame(), slot)
	if err == errInputStale {
		// Raced a commit; not the client's fault.
		return true
	}
	if err != nil {
		recordDrop("invalid_input")
		return false
	}

	r.engine.AddInput(p.FrameID, c.playerID, p.InputData)
	return true
}

// Leave removes a player for good. Mid-game the slot stays in the
// roster and its inputs are auto-filled so ticks keep confirming.
func (r *Room) Leave(c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.detachLocked(c, true)
}

// Drop handles a network loss: the slot is held for the reconnect
// window before it is treated as a leave.
func (r *Room) Drop(c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.members[c.playerID] != c {
		return
	}
	delete(r.members, c.playerID)
	if r.started && !r.departed[c.playerID] {
		r.dropped[c.playerID] = time.Now()
		log.Printf("📡 Player %s dropped from room %s, holding slot", c.playerID, r.ID)
	} else {
		r.announceLeftLocked(c.playerID)
	}
	if len(r.members) == 0 {
		r.emptyAt = time.Now()
	}
}

func (r *Room) detachLocked(c *Conn, voluntary bool) {
	if cur, ok := r.members[c.playerID]; !ok || cur != c {
		return
	}
	delete(r.members, c.playerID)
	delete(r.dropped, c.playerID)
	if r.started {
		r.departed[c.playerID] = true
	}
	r.announceLeftLocked(c.playerID)
	if voluntary {
		log.Printf("👋 Player %s left room %s", c.playerID, r.ID)
	}
	if len(r.members) == 0 {
		r.emptyAt = time.Now()
	}
}

func (r *Room) announceLeftLocked(playerID string) {
	data, err := protocol.Encode(protocol.TypePlayerLeft, protocol.PlayerEventPayload{
		PlayerID: playerID,
	})
	if err == nil {
		r.broadcastLocked(data, playerID)
	}
}

// run is the room's tick loop.
func (r *Room) run() {
	ticker := time.NewTicker(r.gameCfg.TickInterval())
	defer ticker.Stop()

	for {
		select {
		case <-r.stopChan:
			return
		case <-ticker.C:
			if r.tick() {
				r.Stop()
				return
			}
		}
	}
}

// tick runs one scheduler pass. Returns true when the room should shut
// down.
func (r *Room) tick() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.members) == 0 {
		if time.Since(r.emptyAt) > r.limitsCfg.EmptyRoomTTL {
			log.Printf("🧹 Room %s empty past TTL, closing", r.ID)
			return true
		}
		return false
	}

	r.expireDroppedLocked()

	if !r.started {
		return false
	}

	// Departed players never send again; fill their inputs so complete
	// frames still commit without waiting out the timeout.
	cur := r.engine.CurrentFrame()
	for pid := range r.departed {
		r.engine.AddInput(cur, pid, protocol.EmptyInput(cur, r.slots[pid]).Marshal())
	}

	f := r.engine.Tick()
	kind := "complete"
	if f == nil {
		if time.Since(r.lastTick) < r.gameCfg.FrameTimeout {
			return false
		}
		f = r.engine.ForceTick()
		kind = "forced"
	}

	begin := time.Now()
	r.state.ApplyTick(f.FrameID, f.Inputs)
	r.state.SaveSnapshot()

	data, err := protocol.Encode(protocol.TypeGameFrame, protocol.GameFramePayload{
		FrameID:   f.FrameID,
		Inputs:    f.Inputs,
		Confirmed: f.Confirmed,
	})
	if err != nil {
		log.Printf("⚠️ Room %s: encode frame %d failed: %v", r.ID, f.FrameID, err)
		return false
	}
	r.broadcastLocked(data, "")

	r.lastTick = time.Now()
	framesCommitted.WithLabelValues(kind).Inc()
	tickDuration.Observe(time.Since(begin).Seconds())
	return false
}

// expireDroppedLocked converts dropped players whose reconnect window
// lapsed into permanent leaves.
func (r *Room) expireDroppedLocked() {
	now := time.Now()
	for pid, at := range r.dropped {
		if now.Sub(at) > r.limitsCfg.DisconnectRetention {
			delete(r.dropped, pid)
			r.departed[pid] = true
			r.announceLeftLocked(pid)
			log.Printf("⏰ Player %s reconnect window expired in room %s", pid, r.ID)
		}
	}
}

// broadcastLocked sends data to every attached member except skip.
// Encode once, write per member.
func (r *Room) broadcastLocked(data []byte, skip string) {
	for pid, c := range r.members {
		if pid == skip {
			continue
		}
		c.Send(data)
	}
	broadcastBytes.Add(float64(len(data) * len(r.members)))
}

// rosterLocked returns the member ids (unordered; consumers sort).
func (r *Room) rosterLocked() []string {
	roster := make([]string, 0, len(r.members))
	for pid := range r.members {
		roster = append(roster, pid)
	}
	return roster
}

// RoomStats summarizes the room for the /stats surface.
type RoomStats struct {
	RoomID    string       `json:"room_id"`
	Players   int          `json:"players"`
	Started   bool         `json:"started"`
	Seed      uint32       `json:"seed"`
	Engine    *frame.Stats `json:"engine,omitempty"`
	FrameID   uint32       `json:"frame_id"`
	StateHash string       `json:"state_hash,omitempty"`
}

// Stats returns a point-in-time view of the room.
func (r *Room) Stats() RoomStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := RoomStats{
		RoomID:  r.ID,
		Players: len(r.members),
		Started: r.started,
		Seed:    r.seed,
	}
	if r.started {
		es := r.engine.GetStats()
		s.Engine = &es
		s.FrameID = r.state.FrameID
		s.StateHash = r.state.ComputeStateHash()
	}
	return s
}

// Stop shuts the room down and detaches every member.
func (r *Room) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopChan)
		roomCount.Dec()

		r.mu.Lock()
		conns := make([]*Conn, 0, len(r.members))
		for _, c := range r.members {
			conns = append(conns, c)
		}
		r.members = make(map[string]*Conn)
		r.mu.Unlock()

		for _, c := range conns {
			c.CloseWithCode(websocket.CloseGoingAway, "room closed")
		}
		if r.onClose != nil {
			r.onClose(r.ID)
		}
	})
}
