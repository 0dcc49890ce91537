package chain

import "github.com/proteus-audio/proteus/internal/dsp/effects"

// Transition blends the outputs of an old and a new Chain over a fixed
// number of frames, per the inline-swap semantics: at frame index i of
// total T, the output gain is ((T-i)/T) for the old chain and (i/T) for
// the new chain, so the two always sum to one.
type Transition struct {
	Old, New *Chain

	totalFrames     int
	remainingFrames int
}

// NewTransition starts a transition that lasts transitionMS milliseconds
// at the given sample rate. A transitionMS of 0 is the caller's signal to
// promote to an immediate replacement instead of constructing a
// Transition at all — see engine's pending-update handling.
func NewTransition(oldChain, newChain *Chain, transitionMS float64, sampleRate int) *Transition {
	frames := int(transitionMS / 1000 * float64(sampleRate))
	if frames < 1 {
		frames = 1
	}
	return &Transition{Old: oldChain, New: newChain, totalFrames: frames, remainingFrames: frames}
}

// Done reports whether the transition has fully resolved to the new chain.
func (t *Transition) Done() bool { return t.remainingFrames <= 0 }

// Process runs input through both chains and blends them, advancing the
// transition by one chunk's worth of output frames. The blend covers the
// whole emitted block, so an effect that grows or shrinks the block
// mid-transition still gets every sample ramped rather than leaving a
// raw (or zero) tail.
func (t *Transition) Process(input []float32, ctx *effects.Context, drain bool) []float32 {
	oldOut := t.Old.Process(input, ctx, drain)
	newOut := t.New.Process(input, ctx, drain)

	channels := ctx.Channels
	if channels <= 0 {
		channels = 1
	}
	if len(oldOut) < len(newOut) {
		oldOut = padTo(oldOut, len(newOut))
	} else if len(newOut) < len(oldOut) {
		newOut = padTo(newOut, len(oldOut))
	}

	out := make([]float32, len(oldOut))
	frames := len(out) / channels
	for f := 0; f < frames; f++ {
		remaining := t.remainingFrames - f
		if remaining < 0 {
			remaining = 0
		}
		newGain := float32(t.totalFrames-remaining) / float32(t.totalFrames)
		oldGain := 1 - newGain
		for ch := 0; ch < channels; ch++ {
			idx := f*channels + ch
			out[idx] = oldOut[idx]*oldGain + newOut[idx]*newGain
		}
	}
	// A stray sub-frame remainder (never produced by the effects here,
	// all of which emit whole frames) blends at the trailing edge's gains.
	if frames*channels < len(out) {
		remaining := t.remainingFrames - frames
		if remaining < 0 {
			remaining = 0
		}
		newGain := float32(t.totalFrames-remaining) / float32(t.totalFrames)
		oldGain := 1 - newGain
		for idx := frames * channels; idx < len(out); idx++ {
			out[idx] = oldOut[idx]*oldGain + newOut[idx]*newGain
		}
	}
	t.remainingFrames -= frames
	if t.remainingFrames < 0 {
		t.remainingFrames = 0
	}
	return out
}

func padTo(s []float32, n int) []float32 {
	if len(s) >= n {
		return s
	}
	out := make([]float32, n)
	copy(out, s)
	return out
}
