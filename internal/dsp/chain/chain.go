// Package chain implements the ordered effect chain and its two
// replacement modes: a hard reset (clear everything, rebuild) and an
// inline crossfade swap that blends the outputs of the old and new chains
// over a configurable transition window.
package chain

import (
	"sync"

	"github.com/proteus-audio/proteus/internal/dsp/effects"
)

// Chain is an ordered, mutex-guarded list of effects, run in sequence
// against one mix chunk at a time.
type Chain struct {
	mu      sync.Mutex
	effects []effects.Effect
	warm    bool
}

func New(fx []effects.Effect) *Chain {
	return &Chain{effects: fx}
}

// Process runs input through every effect in order, threading the output
// of each into the input of the next.
func (c *Chain) Process(input []float32, ctx *effects.Context, drain bool) []float32 {
	c.mu.Lock()
	fx := c.effects
	c.mu.Unlock()

	out := input
	for _, e := range fx {
		out = e.Process(out, ctx, drain)
		if out == nil {
			out = []float32{}
		}
	}
	return out
}

// Reset clears every effect's internal state without changing the chain's
// contents.
func (c *Chain) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.effects {
		e.Reset()
	}
	c.warm = false
}

// WarmUp primes every effect's filter memory with a silent block before
// the first real chunk is processed.
func (c *Chain) WarmUp(ctx *effects.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.warm {
		return
	}
	for _, e := range c.effects {
		e.WarmUp(ctx)
	}
	c.warm = true
}

// Replace swaps the chain's contents immediately and clears the warm-up
// flag. It does not reset the effects it is handed and does not count
// hard resets; the engine's Mixer keeps its own effects_reset counter.
func (c *Chain) Replace(fx []effects.Effect) {
	c.mu.Lock()
	c.effects = fx
	c.warm = false
	c.mu.Unlock()
}

// Snapshot returns the current effect list for use building a parallel
// Chain during an inline crossfade transition.
func (c *Chain) Snapshot() []effects.Effect {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.effects
}
