package effects

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompressorReducesGainAboveThreshold(t *testing.T) {
	c := NewCompressor(-20, 4, 1, 50, 0)
	ctx := &Context{SampleRate: 48000, Channels: 1}

	input := make([]float32, 2000)
	for i := range input {
		input[i] = 1.0 // 0 dBFS, far above the -20dB threshold
	}
	out := c.Process(input, ctx, false)
	require.Less(t, out[len(out)-1], input[len(input)-1])
}

func TestCompressorPassesSignalBelowThresholdUnchanged(t *testing.T) {
	c := NewCompressor(-20, 4, 1, 50, 0)
	ctx := &Context{SampleRate: 48000, Channels: 1}

	input := make([]float32, 500)
	for i := range input {
		input[i] = 0.01 // well below threshold
	}
	out := c.Process(input, ctx, false)
	require.InDelta(t, float64(input[len(input)-1]), float64(out[len(out)-1]), 1e-4)
}

func TestCompressorClampsInvalidConstructorArgs(t *testing.T) {
	c := NewCompressor(10, 0, -5, -5, 0)
	require.LessOrEqual(t, c.ThresholdDB, 0.0)
	require.GreaterOrEqual(t, c.Ratio, 1.0)
	require.GreaterOrEqual(t, c.AttackMS, 0.0)
	require.GreaterOrEqual(t, c.ReleaseMS, 0.0)
}

func TestCompressorDrainReturnsNil(t *testing.T) {
	c := NewCompressor(-20, 4, 1, 50, 0)
	ctx := &Context{SampleRate: 48000, Channels: 1}
	require.Nil(t, c.Process([]float32{1, 2}, ctx, true))
}

func TestCompressorEmptyInput(t *testing.T) {
	c := NewCompressor(-20, 4, 1, 50, 0)
	ctx := &Context{SampleRate: 48000, Channels: 1}
	require.Nil(t, c.Process(nil, ctx, false))
}
