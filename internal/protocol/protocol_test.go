package protocol

import (
	"bytes"
	"errors"
	"testing"
)

func TestInputRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   PlayerInput
	}{
		{"zero", PlayerInput{}},
		{"movement", PlayerInput{FrameID: 7, PlayerID: 2, Flags: FlagMoveRight | FlagJump}},
		{"negative targets", PlayerInput{FrameID: 1000, PlayerID: 65535, Flags: FlagAttack, TargetX: -5 << 16, TargetY: -9999}},
		{"max frame", PlayerInput{FrameID: 0xFFFFFFFF, PlayerID: 1, TargetX: 1 << 30, TargetY: -(1 << 30)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := tt.in.Marshal()
			if len(data) != InputSize {
				t.Fatalf("marshaled length %d, want %d", len(data), InputSize)
			}
			got, err := UnmarshalInput(data)
			if err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got != tt.in {
				t.Errorf("round trip = %+v, want %+v", got, tt.in)
			}
		})
	}
}

func TestInputWireLayout(t *testing.T) {
	in := PlayerInput{FrameID: 0x04030201, PlayerID: 0x0605, Flags: 0x08, TargetX: 0x0D0C0B0A, TargetY: 0x11100F0E}
	want := []byte{
		0x01, 0x02, 0x03, 0x04, // frame_id LE
		0x05, 0x06, // player_id LE
		0x08, 0x00, // flags, reserved
		0x0A, 0x0B, 0x0C, 0x0D, // target_x LE
		0x0E, 0x0F, 0x10, 0x11, // target_y LE
	}
	if got := in.Marshal(); !bytes.Equal(got, want) {
		t.Errorf("layout = % x, want % x", got, want)
	}
}

func TestUnmarshalWrongLength(t *testing.T) {
	for _, n := range []int{0, 1, 15, 17, 32} {
		if _, err := UnmarshalInput(make([]byte, n)); !errors.Is(err, ErrMalformedInput) {
			t.Errorf("length %d: got %v, want ErrMalformedInput", n, err)
		}
	}
}

func TestFlags(t *testing.T) {
	f := Flags(0).Set(FlagMoveLeft).Set(FlagAttack)
	if !f.Has(FlagMoveLeft) || !f.Has(FlagAttack) {
		t.Error("Set/Has mismatch")
	}
	f = f.Clear(FlagAttack)
	if f.Has(FlagAttack) {
		t.Error("Clear did not clear")
	}
	if !f.Valid() {
		t.Error("defined bits should be valid")
	}

	dx, dy := (FlagMoveRight | FlagMoveUp).Direction()
	if dx != 1 || dy != -1 {
		t.Errorf("Direction = (%d,%d), want (1,-1)", dx, dy)
	}
	dx, dy = (FlagMoveLeft | FlagMoveRight).Direction()
	if dx != 0 {
		t.Errorf("opposing bits should cancel, dx = %d", dx)
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	payload := GameFramePayload{
		FrameID: 42,
		Inputs: map[string][]byte{
			"alice": EmptyInput(42, 0).Marshal(),
			"bob":   {1, 0, 0, 0, 1, 0, 8, 0, 0, 0, 0, 0, 0, 0, 0, 0},
		},
		Confirmed: true,
	}

	data, err := Encode(TypeGameFrame, payload)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	env, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Type != TypeGameFrame {
		t.Fatalf("type = %q, want game_frame", env.Type)
	}

	var got GameFramePayload
	if err := env.DecodePayload(&got); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if got.FrameID != 42 || !got.Confirmed {
		t.Errorf("payload = %+v", got)
	}
	if !bytes.Equal(got.Inputs["bob"], payload.Inputs["bob"]) {
		t.Error("input bytes did not survive the round trip")
	}
}

func TestDecodeRejectsUnknownType(t *testing.T) {
	data, err := Encode(TypeAuth, AuthPayload{PlayerID: "p", RoomID: "r"})
	if err != nil {
		t.Fatal(err)
	}
	// Rewriting the type requires re-encoding; craft directly instead.
	bad, err := Encode("teleport", map[string]string{})
	if err == nil {
		if _, derr := Decode(bad); !errors.Is(derr, ErrUnknownType) {
			t.Errorf("unknown type: got %v, want ErrUnknownType", derr)
		}
	}
	if _, err := Decode(data); err != nil {
		t.Errorf("known type rejected: %v", err)
	}
}

func TestDecodeRejectsGarbageAndOversize(t *testing.T) {
	if _, err := Decode([]byte{0xc1, 0xff, 0x00}); !errors.Is(err, ErrMalformedEnvelope) {
		t.Errorf("garbage: got %v, want ErrMalformedEnvelope", err)
	}
	if _, err := Decode(make([]byte, MaxMessageSize+1)); !errors.Is(err, ErrOversized) {
		t.Errorf("oversize: got %v, want ErrOversized", err)
	}
}
