// Package frame implements the per-room tick pipeline: a bounded buffer
// of pending inputs, the all-or-nothing commit policy, the forced
// advance on timeout, and the committed-frame history used for
// reconnect catch-up.
package frame

import "time"

// Frame is one committed tick: the complete input set for a frame id.
// Confirmed is false only for frames produced by a forced advance.
type Frame struct {
	FrameID   uint32
	Inputs    map[string][]byte // player id -> 16-byte input
	Confirmed bool
	Timestamp time.Time
}

// Input returns a player's input bytes, or nil.
func (f *Frame) Input(playerID string) []byte {
	return f.Inputs[playerID]
}

// IsComplete reports whether every player has an input in this frame.
func (f *Frame) IsComplete(playerCount int) bool {
	return len(f.Inputs) == playerCount
}
