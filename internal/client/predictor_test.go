package client

import (
	"testing"

	"lockstep/internal/game"
	"lockstep/internal/protocol"
)

func input(frameID uint32, slot uint16, flags protocol.Flags) []byte {
	in := protocol.PlayerInput{FrameID: frameID, PlayerID: slot, Flags: flags}
	return in.Marshal()
}

// Slots follow the sorted roster: alice=0, bob=1.
var roster = []string{"alice", "bob"}

func TestConfirmedPredictionChangesNothing(t *testing.T) {
	const seed = 7
	pred := NewPredictor(game.NewMatchState(seed, roster), "alice", roster)
	reference := game.NewMatchState(seed, roster)

	// No confirmed input from bob yet, so the guess is the empty input.
	myInput := input(0, 0, protocol.FlagMoveRight)
	pred.SubmitLocal(myInput)
	predictedHash := pred.State().ComputeStateHash()

	authoritative := protocol.GameFramePayload{
		FrameID: 0,
		Inputs: map[string][]byte{
			"alice": myInput,
			"bob":   input(0, 1, 0),
		},
		Confirmed: false,
	}
	if err := pred.OnAuthoritativeFrame(authoritative); err != nil {
		t.Fatalf("OnAuthoritativeFrame: %v", err)
	}

	if pred.Rollbacks() != 0 {
		t.Fatalf("Rollbacks() = %d, want 0 for a confirmed prediction", pred.Rollbacks())
	}
	if pred.Pending() != 0 {
		t.Fatalf("Pending() = %d, want 0 after confirmation", pred.Pending())
	}
	if got := pred.State().ComputeStateHash(); got != predictedHash {
		t.Fatalf("state changed on confirmation: %s != %s", got, predictedHash)
	}

	reference.ApplyTick(0, authoritative.Inputs)
	if want := reference.ComputeStateHash(); predictedHash != want {
		t.Fatalf("predicted hash %s, reference %s", predictedHash, want)
	}
}

func TestMispredictionRollsBackAndReplays(t *testing.T) {
	const seed = 99
	pred := NewPredictor(game.NewMatchState(seed, roster), "alice", roster)
	reference := game.NewMatchState(seed, roster)

	my0 := input(0, 0, protocol.FlagMoveRight)
	my1 := input(1, 0, protocol.FlagMoveRight|protocol.FlagMoveDown)
	pred.SubmitLocal(my0)
	pred.SubmitLocal(my1)

	// Bob actually moved left at frame 0; the empty-input guess was
	// wrong and frame 1's guess must be refreshed from this input.
	bob0 := input(0, 1, protocol.FlagMoveLeft)
	auth0 := protocol.GameFramePayload{
		FrameID:   0,
		Inputs:    map[string][]byte{"alice": my0, "bob": bob0},
		Confirmed: true,
	}
	if err := pred.OnAuthoritativeFrame(auth0); err != nil {
		t.Fatalf("OnAuthoritativeFrame: %v", err)
	}
	if pred.Rollbacks() != 1 {
		t.Fatalf("Rollbacks() = %d, want 1", pred.Rollbacks())
	}
	if pred.Pending() != 1 {
		t.Fatalf("Pending() = %d, want frame 1 still speculative", pred.Pending())
	}

	// Reference timeline: authoritative frame 0, then frame 1 with
	// bob's guess being his frame 0 input.
	reference.ApplyTick(0, auth0.Inputs)
	reference.ApplyTick(1, map[string][]byte{"alice": my1, "bob": bob0})
	if got, want := pred.State().ComputeStateHash(), reference.ComputeStateHash(); got != want {
		t.Fatalf("replayed state hash %s, reference %s", got, want)
	}

	// Confirming frame 1 with the same guess retires it quietly.
	auth1 := protocol.GameFramePayload{
		FrameID:   1,
		Inputs:    map[string][]byte{"alice": my1, "bob": bob0},
		Confirmed: true,
	}
	if err := pred.OnAuthoritativeFrame(auth1); err != nil {
		t.Fatalf("OnAuthoritativeFrame: %v", err)
	}
	if pred.Rollbacks() != 1 || pred.Pending() != 0 {
		t.Fatalf("after frame 1: rollbacks %d pending %d, want 1 and 0",
			pred.Rollbacks(), pred.Pending())
	}
}

func TestCatchUpMatchesContinuousState(t *testing.T) {
	const seed = 12345
	continuous := game.NewMatchState(seed, roster)
	pred := NewPredictor(game.NewMatchState(seed, roster), "bob", roster)

	flagCycle := []protocol.Flags{
		protocol.FlagMoveRight,
		protocol.FlagMoveLeft | protocol.FlagJump,
		protocol.FlagMoveDown,
		0,
	}
	for fid := uint32(0); fid < 30; fid++ {
		inputs := map[string][]byte{
			"alice": input(fid, 0, flagCycle[fid%4]),
			"bob":   input(fid, 1, flagCycle[(fid+1)%4]),
		}
		continuous.ApplyTick(fid, inputs)

		frame := protocol.GameFramePayload{FrameID: fid, Inputs: inputs, Confirmed: true}
		if err := pred.OnAuthoritativeFrame(frame); err != nil {
			t.Fatalf("catch-up frame %d: %v", fid, err)
		}
	}

	if pred.State().FrameID != continuous.FrameID {
		t.Fatalf("frame id %d, want %d", pred.State().FrameID, continuous.FrameID)
	}
	if got, want := pred.State().ComputeStateHash(), continuous.ComputeStateHash(); got != want {
		t.Fatalf("catch-up hash %s, continuous %s", got, want)
	}
	if pred.Rollbacks() != 0 {
		t.Fatalf("catch-up caused %d rollbacks, want 0", pred.Rollbacks())
	}
}

func TestUnknownFrameAppliedDirectly(t *testing.T) {
	pred := NewPredictor(game.NewMatchState(3, roster), "alice", roster)

	inputs := map[string][]byte{
		"alice": input(0, 0, protocol.FlagMoveUp),
		"bob":   input(0, 1, 0),
	}
	if err := pred.OnAuthoritativeFrame(protocol.GameFramePayload{
		FrameID: 0, Inputs: inputs, Confirmed: true,
	}); err != nil {
		t.Fatalf("OnAuthoritativeFrame: %v", err)
	}
	if pred.CurrentFrame() != 1 {
		t.Fatalf("CurrentFrame() = %d, want 1", pred.CurrentFrame())
	}

	// A frame from the past (already applied) must be a no-op.
	before := pred.State().ComputeStateHash()
	if err := pred.OnAuthoritativeFrame(protocol.GameFramePayload{
		FrameID: 0, Inputs: inputs, Confirmed: true,
	}); err != nil {
		t.Fatalf("replayed frame: %v", err)
	}
	if got := pred.State().ComputeStateHash(); got != before {
		t.Fatal("stale authoritative frame mutated state")
	}
}
