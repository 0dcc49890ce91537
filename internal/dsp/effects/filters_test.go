package effects

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLowPassAttenuatesNyquistAdjacentSignalMoreThanDC(t *testing.T) {
	ctx := &Context{SampleRate: 48000, Channels: 1}
	lp := NewLowPass(200, 0.707)
	lp.WarmUp(ctx)

	dc := make([]float32, 2000)
	for i := range dc {
		dc[i] = 1.0
	}
	dcOut := lp.Process(dc, ctx, false)

	lp2 := NewLowPass(200, 0.707)
	lp2.WarmUp(ctx)
	highFreq := make([]float32, 2000)
	for i := range highFreq {
		if i%2 == 0 {
			highFreq[i] = 1.0
		} else {
			highFreq[i] = -1.0
		}
	}
	hfOut := lp2.Process(highFreq, ctx, false)

	dcEnergy := float64(dcOut[len(dcOut)-1]) * float64(dcOut[len(dcOut)-1])
	var hfEnergy float64
	for _, v := range hfOut[len(hfOut)-100:] {
		hfEnergy += float64(v) * float64(v)
	}
	hfEnergy /= 100

	require.Greater(t, dcEnergy, hfEnergy)
}

func TestHighPassBlocksDC(t *testing.T) {
	ctx := &Context{SampleRate: 48000, Channels: 1}
	hp := NewHighPass(200, 0.707)
	hp.WarmUp(ctx)

	dc := make([]float32, 4000)
	for i := range dc {
		dc[i] = 1.0
	}
	out := hp.Process(dc, ctx, false)
	require.InDelta(t, 0, out[len(out)-1], 0.05)
}

func TestFilterRebuildsCoefficientsOnParamChange(t *testing.T) {
	ctx := &Context{SampleRate: 48000, Channels: 2}
	lp := NewLowPass(500, 0.707)
	lp.Process(make([]float32, 16), ctx, false)
	first := lp.coeffs

	lp.FreqHz = 2000
	lp.Process(make([]float32, 16), ctx, false)
	require.NotEqual(t, first, lp.coeffs)
}

func TestFilterDefaultsQWhenNonPositive(t *testing.T) {
	lp := NewLowPass(1000, 0)
	require.Equal(t, 0.707, lp.Q)
	hp := NewHighPass(1000, -1)
	require.Equal(t, 0.707, hp.Q)
}
