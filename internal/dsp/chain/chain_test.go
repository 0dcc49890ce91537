package chain

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/proteus-audio/proteus/internal/dsp/effects"
)

type passthroughEffect struct{ resets int }

func (p *passthroughEffect) Process(input []float32, ctx *effects.Context, drain bool) []float32 {
	if drain {
		return nil
	}
	out := make([]float32, len(input))
	copy(out, input)
	return out
}
func (p *passthroughEffect) Reset()             { p.resets++ }
func (p *passthroughEffect) WarmUp(*effects.Context) {}

type doublingEffect struct{}

func (doublingEffect) Process(input []float32, ctx *effects.Context, drain bool) []float32 {
	if drain {
		return nil
	}
	out := make([]float32, len(input))
	for i, v := range input {
		out[i] = v * 2
	}
	return out
}
func (doublingEffect) Reset()             {}
func (doublingEffect) WarmUp(*effects.Context) {}

func TestChainProcessesEffectsInOrder(t *testing.T) {
	c := New([]effects.Effect{doublingEffect{}, doublingEffect{}})
	ctx := &effects.Context{SampleRate: 48000, Channels: 1}
	out := c.Process([]float32{1, 2, 3}, ctx, false)
	require.Equal(t, []float32{4, 8, 12}, out)
}

func TestChainResetCallsEveryEffect(t *testing.T) {
	pt := &passthroughEffect{}
	c := New([]effects.Effect{pt})
	c.Reset()
	require.Equal(t, 1, pt.resets)
}

func TestChainWarmUpIsIdempotent(t *testing.T) {
	calls := 0
	warmer := &countingWarmUp{onWarmUp: func() { calls++ }}
	c := New([]effects.Effect{warmer})
	ctx := &effects.Context{SampleRate: 48000, Channels: 1}
	c.WarmUp(ctx)
	c.WarmUp(ctx)
	require.Equal(t, 1, calls)
}

func TestChainReplaceSwapsContents(t *testing.T) {
	c := New([]effects.Effect{doublingEffect{}})
	ctx := &effects.Context{SampleRate: 48000, Channels: 1}
	c.Replace([]effects.Effect{})
	out := c.Process([]float32{5}, ctx, false)
	require.Equal(t, []float32{5}, out)
}

func TestChainSnapshotReturnsCurrentEffects(t *testing.T) {
	fx := []effects.Effect{doublingEffect{}}
	c := New(fx)
	require.Len(t, c.Snapshot(), 1)
}

type countingWarmUp struct {
	onWarmUp func()
}

func (c *countingWarmUp) Process(input []float32, ctx *effects.Context, drain bool) []float32 { return input }
func (c *countingWarmUp) Reset()                                                              {}
func (c *countingWarmUp) WarmUp(*effects.Context)                                              { c.onWarmUp() }
