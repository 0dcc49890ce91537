package chain

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/proteus-audio/proteus/internal/container"
	"github.com/proteus-audio/proteus/internal/dsp/effects"
)

func TestBuildDropsDisabledEffects(t *testing.T) {
	disabled := false
	specs := []container.EffectSpec{
		{Kind: container.KindLimiter, Limiter: &container.LimiterSpec{ThresholdDB: -1, Enabled: &disabled}},
		{Kind: container.KindDistortion, Distortion: &container.DistortionSpec{Gain: 2, Threshold: 0.5}},
	}
	c := Build(specs, nil)
	fx := c.Snapshot()
	require.Len(t, fx, 1)
	_, isDistortion := fx[0].(*effects.Distortion)
	require.True(t, isDistortion, "only the enabled effect survives the build")
}

func TestBuildWiresConvolutionDryWet(t *testing.T) {
	specs := []container.EffectSpec{
		{Kind: container.KindConvolutionReverb, ConvolutionReverb: &container.ConvolutionReverbSpec{DryWet: 0.4}},
	}
	c := Build(specs, nil)
	fx := c.Snapshot()
	require.Len(t, fx, 1)
	conv, ok := fx[0].(*effects.ConvolutionReverb)
	require.True(t, ok)
	require.InDelta(t, 0.4, conv.Mix, 1e-9)
}
