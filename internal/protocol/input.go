// Package protocol defines the wire formats of the lockstep coordinator:
// the fixed-layout 16-byte player input and the msgpack envelope that
// carries every message between client and server.
package protocol

import (
	"encoding/binary"
	"errors"
)

// InputSize is the exact serialized size of a PlayerInput.
const InputSize = 16

// ErrMalformedInput is returned when an input blob is not exactly
// InputSize bytes.
var ErrMalformedInput = errors.New("protocol: malformed input")

// PlayerInput is one player's input for one tick.
//
// Wire layout, little-endian, 16 octets:
//
//	frame_id  uint32
//	player_id uint16
//	flags     uint8
//	reserved  uint8
//	target_x  int32   (Q16.16 raw)
//	target_y  int32   (Q16.16 raw)
type PlayerInput struct {
	FrameID  uint32
	PlayerID uint16
	Flags    Flags
	TargetX  int32
	TargetY  int32
}

// EmptyInput is the deterministic zero input substituted for a player
// whose input never arrived before the frame timeout.
func EmptyInput(frameID uint32, playerID uint16) PlayerInput {
	return PlayerInput{FrameID: frameID, PlayerID: playerID}
}

// Marshal serializes the input into its fixed 16-byte layout.
func (in PlayerInput) Marshal() []byte {
	buf := make([]byte, InputSize)
	binary.LittleEndian.PutUint32(buf[0:4], in.FrameID)
	binary.LittleEndian.PutUint16(buf[4:6], in.PlayerID)
	buf[6] = byte(in.Flags)
	buf[7] = 0 // reserved
	binary.LittleEndian.PutUint32(buf[8:12], uint32(in.TargetX))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(in.TargetY))
	return buf
}

// UnmarshalInput decodes a 16-byte input blob.
func UnmarshalInput(data []byte) (PlayerInput, error) {
	if len(data) != InputSize {
		return PlayerInput{}, ErrMalformedInput
	}
	return PlayerInput{
		FrameID:  binary.LittleEndian.Uint32(data[0:4]),
		PlayerID: binary.LittleEndian.Uint16(data[4:6]),
		Flags:    Flags(data[6]),
		TargetX:  int32(binary.LittleEndian.Uint32(data[8:12])),
		TargetY:  int32(binary.LittleEndian.Uint32(data[12:16])),
	}, nil
}
