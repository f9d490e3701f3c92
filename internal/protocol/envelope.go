package protocol

import (
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// MaxMessageSize is the upper bound for any wire message. Oversized
// messages are dropped before decoding.
const MaxMessageSize = 10 * 1024

// Message types. The envelope's type field is a closed vocabulary;
// anything else is rejected at decode.
const (
	TypeAuth         = "auth"
	TypeJoinSuccess  = "join_success"
	TypePlayerJoined = "player_joined"
	TypePlayerLeft   = "player_left"
	TypeGameStart    = "game_start"
	TypeInput        = "input"
	TypeGameFrame    = "game_frame"
	TypeReconnect    = "reconnect"
	TypeSyncFrames   = "sync_frames"
	TypeResyncFull   = "resync_full"
	TypeLeave        = "leave"
	TypeError        = "error"
)

// WebSocket close codes.
const (
	CloseAuthFailed      = 4001
	CloseAuthTimeout     = 4002
	CloseRateLimited     = 4003
	CloseRoomFull        = 4004
	ClosePolicyViolation = 4005
)

var (
	// ErrMalformedEnvelope is returned when the outer envelope cannot
	// be decoded.
	ErrMalformedEnvelope = errors.New("protocol: malformed envelope")

	// ErrUnknownType is returned for a type outside the vocabulary.
	ErrUnknownType = errors.New("protocol: unknown message type")

	// ErrOversized is returned when a message exceeds MaxMessageSize.
	ErrOversized = errors.New("protocol: oversized message")
)

var knownTypes = map[string]bool{
	TypeAuth: true, TypeJoinSuccess: true, TypePlayerJoined: true,
	TypePlayerLeft: true, TypeGameStart: true, TypeInput: true,
	TypeGameFrame: true, TypeReconnect: true, TypeSyncFrames: true,
	TypeResyncFull: true, TypeLeave: true, TypeError: true,
}

// Envelope is the outer message: a msgpack map with a type tag and a
// payload whose shape depends on the tag. The payload is kept raw here
// and decoded by the handler that knows its type.
type Envelope struct {
	Type    string             `msgpack:"type"`
	Payload msgpack.RawMessage `msgpack:"payload"`
}

// Encode wraps a typed payload in an envelope and serializes it.
func Encode(msgType string, payload interface{}) ([]byte, error) {
	raw, err := msgpack.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", msgType, err)
	}
	data, err := msgpack.Marshal(Envelope{Type: msgType, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("encode %s envelope: %w", msgType, err)
	}
	return data, nil
}

// Decode parses an envelope, enforcing the size cap and the closed
// type vocabulary.
func Decode(data []byte) (Envelope, error) {
	if len(data) > MaxMessageSize {
		return Envelope{}, ErrOversized
	}
	var env Envelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if !knownTypes[env.Type] {
		return Envelope{}, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
	return env, nil
}

// DecodePayload unmarshals the raw payload into a typed struct.
func (e Envelope) DecodePayload(v interface{}) error {
	if err := msgpack.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return nil
}

// AuthPayload is the first client message on a fresh connection.
type AuthPayload struct {
	PlayerID string `msgpack:"player_id"`
	RoomID   string `msgpack:"room_id"`
	Token    string `msgpack:"token,omitempty"`
}

// JoinSuccessPayload acknowledges admission and carries the roster.
type JoinSuccessPayload struct {
	RoomID   string   `msgpack:"room_id"`
	PlayerID string   `msgpack:"player_id"`
	Roster   []string `msgpack:"roster"`
}

// PlayerEventPayload announces a join or leave to the rest of the room.
type PlayerEventPayload struct {
	PlayerID string `msgpack:"player_id"`
}

// GameStartPayload starts the match: every client seeds its simulation
// from the shared seed and runs at the given tick rate.
type GameStartPayload struct {
	Seed        uint32 `msgpack:"seed"`
	PlayerCount int    `msgpack:"player_count"`
	TickRate    int    `msgpack:"tick_rate"`
}

// InputPayload submits one 16-byte input for a future frame.
type InputPayload struct {
	FrameID   uint32 `msgpack:"frame_id"`
	InputData []byte `msgpack:"input_data"`
}

// GameFramePayload is a committed tick: the complete input set.
type GameFramePayload struct {
	FrameID   uint32            `msgpack:"frame_id"`
	Inputs    map[string][]byte `msgpack:"inputs"`
	Confirmed bool              `msgpack:"confirmed"`
}

// ReconnectPayload asks to rejoin a room and resume from LastFrame.
type ReconnectPayload struct {
	PlayerID  string `msgpack:"player_id"`
	RoomID    string `msgpack:"room_id"`
	LastFrame uint32 `msgpack:"last_frame"`
}

// SyncFramesPayload replays the committed ticks a reconnecting client
// missed, in ascending frame order.
type SyncFramesPayload struct {
	Frames []GameFramePayload `msgpack:"frames"`
}

// ResyncFullPayload carries a full serialized game state for clients
// too far behind to replay.
type ResyncFullPayload struct {
	Snapshot []byte `msgpack:"snapshot"`
}

// ErrorPayload reports a terminal error before the server closes.
type ErrorPayload struct {
	Code    int    `msgpack:"code"`
	Message string `msgpack:"message"`
}
