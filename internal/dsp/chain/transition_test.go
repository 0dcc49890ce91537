package chain

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/proteus-audio/proteus/internal/dsp/effects"
)

func TestTransitionBlendsOldAndNewToOne(t *testing.T) {
	old := New([]effects.Effect{})  // identity: passes input through unmodified
	next := New([]effects.Effect{}) // also identity, so gains are directly observable
	ctx := &effects.Context{SampleRate: 100, Channels: 1}

	tr := NewTransition(old, next, 10, 100) // 10ms at 100Hz = a 1-frame window
	require.False(t, tr.Done())

	input := []float32{1}
	out := tr.Process(input, ctx, false)
	require.Len(t, out, 1)
	require.InDelta(t, 1.0, out[0], 1e-6) // old gain + new gain on identity chains
}

func TestTransitionCompletesAfterTotalFrames(t *testing.T) {
	old := New([]effects.Effect{})
	next := New([]effects.Effect{})
	ctx := &effects.Context{SampleRate: 1000, Channels: 1}

	tr := NewTransition(old, next, 10, 1000) // 10ms @ 1000Hz = 10 frames
	require.False(t, tr.Done())

	tr.Process(make([]float32, 10), ctx, false)
	require.True(t, tr.Done())
}

func TestTransitionZeroDurationClampsToOneFrame(t *testing.T) {
	tr := NewTransition(New(nil), New(nil), 0, 48000)
	require.Equal(t, 1, tr.totalFrames)
}
