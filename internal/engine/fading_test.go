package engine

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/proteus-audio/proteus/internal/ring"
)

func TestFadingSetAdvanceToExpiry(t *testing.T) {
	s := newFadingSet()
	key := ring.Key(1)
	s.Start(key, 10)
	require.True(t, s.Active(key))

	gain, expired := s.Advance(key, 4)
	require.False(t, expired)
	require.Equal(t, float32(1.0), gain) // gain reported before the advance

	gain, expired = s.Advance(key, 6)
	require.True(t, expired)
	require.Equal(t, float32(6)/float32(10), gain)
	require.False(t, s.Active(key))
}

func TestFadingSetAdvanceUnknownKeyIsNoOp(t *testing.T) {
	s := newFadingSet()
	gain, expired := s.Advance(ring.Key(99), 5)
	require.Equal(t, float32(1), gain)
	require.False(t, expired)
}

func TestFadeStateGainAtZeroTotalFrames(t *testing.T) {
	f := fadeState{framesRemaining: 0, totalFrames: 0}
	require.Equal(t, float32(0), f.gain())
}

func TestFadeStateGainLinearInterpolation(t *testing.T) {
	f := fadeState{framesRemaining: 5, totalFrames: 10}
	require.Equal(t, float32(0.5), f.gain())
}
