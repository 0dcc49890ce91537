package effects

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLimiterAttenuatesAboveThreshold(t *testing.T) {
	l := NewLimiter(-6, 2, 1, 20)
	ctx := &Context{SampleRate: 48000, Channels: 1}

	input := make([]float32, 2000)
	for i := range input {
		input[i] = 1.0 // 0 dBFS, well above the -6dB threshold
	}
	out := l.Process(input, ctx, false)
	require.Len(t, out, len(input))
	// After the attack settles, output should sit below the input level.
	require.Less(t, out[len(out)-1], input[len(input)-1])
}

func TestLimiterBitIdenticalAcrossSplitCalls(t *testing.T) {
	ctx := &Context{SampleRate: 48000, Channels: 1}
	input := make([]float32, 200)
	for i := range input {
		input[i] = float32(i%13) / 10
	}

	whole := NewLimiter(-3, 2, 5, 50)
	oneShot := whole.Process(input, ctx, false)

	split := NewLimiter(-3, 2, 5, 50)
	first := split.Process(input[:100], ctx, false)
	second := split.Process(input[100:], ctx, false)
	combined := append(append([]float32{}, first...), second...)

	require.Equal(t, oneShot, combined)
}

func TestLimiterReset(t *testing.T) {
	l := NewLimiter(-6, 2, 1, 20)
	ctx := &Context{SampleRate: 48000, Channels: 1}
	l.Process(make([]float32, 100), ctx, false)
	l.Reset()
	require.Equal(t, 1.0, l.gain)
	require.False(t, l.primed)
}

func TestLimiterDrainReturnsNil(t *testing.T) {
	l := NewLimiter(-6, 2, 1, 20)
	ctx := &Context{SampleRate: 48000, Channels: 1}
	require.Nil(t, l.Process([]float32{1, 2, 3}, ctx, true))
}
