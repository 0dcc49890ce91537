package effects

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMultibandEQSanitizesPointParameters(t *testing.T) {
	eq := NewMultibandEQ([]EQPoint{
		{FreqHz: 500, Q: 100, GainDB: 90},
		{FreqHz: 2000, Q: 0.001, GainDB: -90},
	})
	require.InDelta(t, 10.0, eq.Points[0].Q, 1e-9)
	require.InDelta(t, 24.0, eq.Points[0].GainDB, 1e-9)
	require.InDelta(t, 0.1, eq.Points[1].Q, 1e-9)
	require.InDelta(t, -24.0, eq.Points[1].GainDB, 1e-9)
}

func TestMultibandEQZeroGainBandsAreNearIdentity(t *testing.T) {
	ctx := stereoCtx()
	eq := NewMultibandEQ(nil) // default points, all 0 dB

	input := make([]float32, 256)
	for i := range input {
		input[i] = float32((i*5)%7-3) / 8.0
	}
	out := eq.Process(input, ctx, false)
	require.Equal(t, len(input), len(out))
	for i := range input {
		require.InDelta(t, input[i], out[i], 1e-4, "sample %d", i)
	}
}

func TestMultibandEQSplitEquivalence(t *testing.T) {
	ctx := stereoCtx()
	points := []EQPoint{{FreqHz: 800, Q: 1.2, GainDB: 6}}

	whole := NewMultibandEQ(points)
	input := make([]float32, 400)
	for i := range input {
		input[i] = float32((i*3)%11-5) / 8.0
	}
	wantOut := whole.Process(input, ctx, false)

	split := NewMultibandEQ(points)
	got := append(
		append([]float32{}, split.Process(input[:150], ctx, false)...),
		split.Process(input[150:], ctx, false)...)
	for i := range wantOut {
		require.InDelta(t, wantOut[i], got[i], 1e-6, "sample %d", i)
	}
}

func TestMultibandEQDrainHasNoTail(t *testing.T) {
	ctx := stereoCtx()
	eq := NewMultibandEQ(nil)
	eq.Process(make([]float32, 64), ctx, false)
	require.Empty(t, eq.Process(nil, ctx, true))
}
