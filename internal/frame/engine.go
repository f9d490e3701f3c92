package frame

import (
	"time"

	"lockstep/internal/protocol"
)

const (
	// DefaultBufferSize is the pending-tick window used to absorb
	// network jitter.
	DefaultBufferSize = 3

	// MaxFrameAhead is how far past the current frame an input may
	// target.
	MaxFrameAhead = 100

	// MaxFrameHistory bounds the committed-frame history (ten seconds
	// at 30 Hz); it is also the catch-up replay cap.
	MaxFrameHistory = 300
)

// Engine collects inputs per future tick and commits ticks in order.
// It is not goroutine safe; the owning room serializes access.
type Engine struct {
	current uint32

	// players maps each member to its input slot, fixed at start.
	players map[string]uint16

	pending map[uint32]map[string][]byte
	history map[uint32]*Frame
	buffer  int
}

// NewEngine creates an engine for a fixed roster. The slot values are
// the numeric ids carried inside each player's 16-byte inputs.
func NewEngine(players map[string]uint16) *Engine {
	roster := make(map[string]uint16, len(players))
	for id, slot := range players {
		roster[id] = slot
	}
	return &Engine{
		players: roster,
		pending: make(map[uint32]map[string][]byte),
		history: make(map[uint32]*Frame),
		buffer:  DefaultBufferSize,
	}
}

// CurrentFrame is the id of the next tick to commit.
func (e *Engine) CurrentFrame() uint32 {
	return e.current
}

// PlayerCount returns the roster size.
func (e *Engine) PlayerCount() int {
	return len(e.players)
}

// AddInput records a player's input for a frame. Inputs for already
// committed frames are discarded silently; a second input from the
// same player for the same frame wins (last write).
func (e *Engine) AddInput(frameID uint32, playerID string, data []byte) {
	if frameID < e.current {
		return
	}
	if frameID >= e.current+MaxFrameAhead {
		return
	}
	if _, ok := e.players[playerID]; !ok {
		return
	}

	slot, ok := e.pending[frameID]
	if !ok {
		slot = make(map[string][]byte, len(e.players))
		e.pending[frameID] = slot
	}
	slot[playerID] = data
}

// Tick commits the current frame if every player's input has arrived.
// Returns nil (and leaves the clock untouched) otherwise.
func (e *Engine) Tick() *Frame {
	inputs, ok := e.pending[e.current]
	if !ok || len(inputs) != len(e.players) {
		return nil
	}

	f := &Frame{
		FrameID:   e.current,
		Inputs:    inputs,
		Confirmed: true,
		Timestamp: time.Now(),
	}
	delete(e.pending, e.current)
	e.commit(f)
	return f
}

// ForceTick commits the current frame regardless of missing inputs,
// substituting the deterministic empty input for each absent player.
// The frame is marked unconfirmed. Called by the room scheduler after
// the frame timeout.
func (e *Engine) ForceTick() *Frame {
	inputs, ok := e.pending[e.current]
	if !ok {
		inputs = make(map[string][]byte, len(e.players))
	}
	for id, slot := range e.players {
		if _, have := inputs[id]; !have {
			inputs[id] = protocol.EmptyInput(e.current, slot).Marshal()
		}
	}

	f := &Frame{
		FrameID:   e.current,
		Inputs:    inputs,
		Confirmed: false,
		Timestamp: time.Now(),
	}
	delete(e.pending, e.current)
	e.commit(f)
	return f
}

func (e *Engine) commit(f *Frame) {
	e.history[f.FrameID] = f
	e.current++

	if f.FrameID >= MaxFrameHistory {
		oldest := f.FrameID - MaxFrameHistory
		for fid := range e.history {
			if fid < oldest {
				delete(e.history, fid)
			}
		}
	}
}

// Frame returns a committed frame from history, or nil.
func (e *Engine) Frame(frameID uint32) *Frame {
	return e.history[frameID]
}

// Range returns committed frames with id in (after, until], ascending,
// capped at MaxFrameHistory entries. Frames already evicted from
// history are skipped; the caller detects the gap by comparing the
// first returned id against after+1.
func (e *Engine) Range(after, until uint32) []*Frame {
	if until <= after {
		return nil
	}
	out := make([]*Frame, 0, min(int(until-after), MaxFrameHistory))
	for fid := after + 1; fid <= until; fid++ {
		if f, ok := e.history[fid]; ok {
			out = append(out, f)
			if len(out) >= MaxFrameHistory {
				break
			}
		}
	}
	return out
}

// Stats summarizes engine occupancy for the /stats surface.
type Stats struct {
	CurrentFrame uint32 `json:"current_frame"`
	PlayerCount  int    `json:"player_count"`
	PendingTicks int    `json:"pending_ticks"`
	HistorySize  int    `json:"history_size"`
}

// GetStats returns current engine statistics.
func (e *Engine) GetStats() Stats {
	return Stats{
		CurrentFrame: e.current,
		PlayerCount:  len(e.players),
		PendingTicks: len(e.pending),
		HistorySize:  len(e.history),
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
