package protocol

// SeqDelta computes a - b as a signed 16-bit delta, the basis for every
// modular sequence-number comparison in this transport (§3's
// invariant: "Sequence comparisons are modular 16-bit with signed
// delta"). A positive result means a is "after" b; negative means
// "before"; zero means equal. This is how past/future are
// distinguished across a 16-bit wrap.
func SeqDelta(a, b uint16) int16 {
	return int16(a - b)
}

// SeqAfter reports whether a is strictly after b under modular
// 16-bit comparison.
func SeqAfter(a, b uint16) bool {
	return SeqDelta(a, b) > 0
}

// SeqAfterOrEqual reports whether a is after or equal to b under
// modular 16-bit comparison.
func SeqAfterOrEqual(a, b uint16) bool {
	return SeqDelta(a, b) >= 0
}
