package client

import (
	"bytes"
	"fmt"
	"sort"

	"lockstep/internal/game"
	"lockstep/internal/protocol"
)

// predictedTick is one locally executed tick awaiting authoritative
// confirmation. The snapshot taken before it ran lives in the game
// state's ring, keyed by the tick's frame id.
type predictedTick struct {
	frameID uint32
	inputs  map[string][]byte // Full input set: mine plus guesses
}

// Predictor runs the simulation ahead of the server. Each local input
// is applied immediately against guessed remote inputs; authoritative
// frames either confirm the guess or trigger a rollback and replay.
// Not goroutine safe; the client's receive loop is the sole caller.
type Predictor struct {
	state    *game.State
	playerID string
	slots    map[string]uint16

	// lastConfirmed holds each player's most recent authoritative
	// input bytes; it is the guess for their next frames.
	lastConfirmed map[string][]byte

	predicted []predictedTick // Ascending frame id
	rollbacks uint64
}

// NewPredictor wraps a freshly initialized match state for local
// prediction.
func NewPredictor(state *game.State, playerID string, roster []string) *Predictor {
	return &Predictor{
		state:         state,
		playerID:      playerID,
		slots:         game.Slots(roster),
		lastConfirmed: make(map[string][]byte),
	}
}

// State exposes the underlying simulation (for rendering reads).
func (p *Predictor) State() *game.State {
	return p.state
}

// Rollbacks returns how many mispredictions forced a rollback.
func (p *Predictor) Rollbacks() uint64 {
	return p.rollbacks
}

// Pending returns the number of unconfirmed speculative ticks.
func (p *Predictor) Pending() int {
	return len(p.predicted)
}

// CurrentFrame is the next frame the local simulation will execute.
func (p *Predictor) CurrentFrame() uint32 {
	return p.state.FrameID
}

// SubmitLocal executes the current frame speculatively with the given
// local input bytes. A snapshot is saved first so the tick can be
// rolled back, then each remote player's input is guessed from their
// last confirmed submission.
func (p *Predictor) SubmitLocal(input []byte) uint32 {
	frameID := p.state.FrameID
	p.state.SaveSnapshot()

	inputs := make(map[string][]byte, len(p.slots))
	inputs[p.playerID] = input
	for pid, slot := range p.slots {
		if pid == p.playerID {
			continue
		}
		inputs[pid] = p.guess(pid, slot, frameID)
	}

	p.state.ApplyTick(frameID, inputs)
	p.predicted = append(p.predicted, predictedTick{frameID: frameID, inputs: inputs})
	return frameID
}

func (p *Predictor) guess(pid string, slot uint16, frameID uint32) []byte {
	if last, ok := p.lastConfirmed[pid]; ok {
		return last
	}
	return protocol.EmptyInput(frameID, slot).Marshal()
}

// OnAuthoritativeFrame reconciles a committed server frame with the
// speculative timeline. Returns an error only when a needed rollback
// snapshot has been evicted; the caller should then request a full
// resync.
func (p *Predictor) OnAuthoritativeFrame(f protocol.GameFramePayload) error {
	defer p.noteConfirmed(f.Inputs)

	idx := p.findPredicted(f.FrameID)
	if idx < 0 {
		// Never predicted (catching up, or input submission lagged the
		// server). Apply directly when it lines up with the clock.
		if f.FrameID == p.state.FrameID {
			p.state.SaveSnapshot()
			p.state.ApplyTick(f.FrameID, f.Inputs)
		}
		return nil
	}

	if inputSetsEqual(p.predicted[idx].inputs, f.Inputs) {
		// Prediction held; the state is already correct.
		p.predicted = append(p.predicted[:idx], p.predicted[idx+1:]...)
		return nil
	}

	// Misprediction: rewind to before the frame, apply the truth, then
	// replay the still speculative ticks with refreshed guesses.
	if err := p.state.RollbackTo(f.FrameID); err != nil {
		return fmt.Errorf("rollback to frame %d: %w", f.FrameID, err)
	}
	p.rollbacks++

	p.state.ApplyTick(f.FrameID, f.Inputs)
	p.noteConfirmed(f.Inputs)

	later := make([]predictedTick, len(p.predicted[idx+1:]))
	copy(later, p.predicted[idx+1:])
	p.predicted = p.predicted[:0]
	for i := range later {
		tick := later[i]
		p.state.SaveSnapshot()
		for pid, slot := range p.slots {
			if pid == p.playerID {
				continue
			}
			tick.inputs[pid] = p.guess(pid, slot, tick.frameID)
		}
		p.state.ApplyTick(tick.frameID, tick.inputs)
		p.predicted = append(p.predicted, tick)
	}
	return nil
}

// noteConfirmed remembers the latest authoritative input per remote
// player for future guessing.
func (p *Predictor) noteConfirmed(inputs map[string][]byte) {
	for pid, data := range inputs {
		if pid == p.playerID {
			continue
		}
		p.lastConfirmed[pid] = data
	}
}

func (p *Predictor) findPredicted(frameID uint32) int {
	i := sort.Search(len(p.predicted), func(i int) bool {
		return p.predicted[i].frameID >= frameID
	})
	if i < len(p.predicted) && p.predicted[i].frameID == frameID {
		return i
	}
	return -1
}

func inputSetsEqual(a, b map[string][]byte) bool {
	if len(a) != len(b) {
		return false
	}
	for pid, av := range a {
		bv, ok := b[pid]
		if !ok || !bytes.Equal(av, bv) {
			return false
		}
	}
	return true
}
