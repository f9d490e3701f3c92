package game

// HashMismatch records one divergence between a locally computed state
// hash and the one a peer reported for the same frame.
type HashMismatch struct {
	FrameID  uint32
	Expected string
	Actual   string
}

// HashValidator records per-frame state hashes and collects mismatches
// against peer-reported values. It is bookkeeping only; reacting to a
// desync (resync, disconnect) is the caller's decision.
type HashValidator struct {
	history    map[uint32]string
	mismatches []HashMismatch
	maxHistory int
}

// NewHashValidator creates a validator keeping up to maxHistory hashes.
func NewHashValidator(maxHistory int) *HashValidator {
	return &HashValidator{
		history:    make(map[uint32]string),
		maxHistory: maxHistory,
	}
}

// Record stores the local hash for a frame, trimming old entries.
func (v *HashValidator) Record(frameID uint32, hash string) {
	v.history[frameID] = hash
	if len(v.history) > v.maxHistory {
		var oldest uint32
		first := true
		for fid := range v.history {
			if first || fid < oldest {
				oldest = fid
				first = false
			}
		}
		delete(v.history, oldest)
	}
}

// Verify checks a peer-reported hash against the local record. Frames
// with no local record pass vacuously.
func (v *HashValidator) Verify(frameID uint32, expected string) bool {
	actual, ok := v.history[frameID]
	if !ok {
		return true
	}
	if actual != expected {
		v.mismatches = append(v.mismatches, HashMismatch{
			FrameID: frameID, Expected: expected, Actual: actual,
		})
		return false
	}
	return true
}

// Mismatches returns a copy of the recorded divergences.
func (v *HashValidator) Mismatches() []HashMismatch {
	out := make([]HashMismatch, len(v.mismatches))
	copy(out, v.mismatches)
	return out
}

// Reset clears recorded mismatches.
func (v *HashValidator) Reset() {
	v.mismatches = v.mismatches[:0]
}
