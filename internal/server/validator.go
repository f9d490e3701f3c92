package server

import (
	"errors"

	"lockstep/internal/config"
	"lockstep/internal/fixed"
	"lockstep/internal/frame"
	"lockstep/internal/protocol"
)

// Input rejection reasons, used as bounded metric labels.
var (
	errInputSize     = errors.New("server: input not 16 bytes")
	errInputStale    = errors.New("server: input for committed frame")
	errInputTooFar   = errors.New("server: input beyond frame window")
	errInputIdentity = errors.New("server: input player id mismatch")
	errInputFlags    = errors.New("server: undefined input flags")
	errInputTarget   = errors.New("server: input target out of range")
)

// InputValidator checks decoded inputs against the submitting
// connection and the room clock before they reach the frame engine.
type InputValidator struct {
	maxCoord fixed.Fixed
}

// NewInputValidator builds a validator from the configured limits.
func NewInputValidator(limits config.LimitsConfig) *InputValidator {
	return &InputValidator{maxCoord: fixed.FromInt(limits.MaxCoordinate)}
}

// Validate checks one input submission. currentFrame is the engine's
// next-to-commit frame; slot is the numeric id assigned to the
// submitting player at game start. A stale frame id is not an error to
// punish (the engine discards it silently); everything else counts as
// a violation for the caller.
func (v *InputValidator) Validate(data []byte, currentFrame uint32, slot uint16) error {
	if len(data) != protocol.InputSize {
		return errInputSize
	}
	in, err := protocol.UnmarshalInput(data)
	if err != nil {
		return errInputSize
	}

	if in.FrameID < currentFrame {
		return errInputStale
	}
	if in.FrameID >= currentFrame+frame.MaxFrameAhead {
		return errInputTooFar
	}
	if in.PlayerID != slot {
		return errInputIdentity
	}
	if !in.Flags.Valid() {
		return errInputFlags
	}
	if fixed.FromRaw(in.TargetX).Abs() > v.maxCoord ||
		fixed.FromRaw(in.TargetY).Abs() > v.maxCoord {
		return errInputTarget
	}
	return nil
}
