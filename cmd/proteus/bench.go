package main

import (
	"fmt"
	"time"

	"github.com/proteus-audio/proteus/internal/dsp/chain"
	"github.com/proteus-audio/proteus/internal/dsp/convolve"
	"github.com/proteus-audio/proteus/internal/dsp/effects"
)

const (
	benchSampleRate = 48000
	benchChannels   = 2
	benchBlockMS    = 20
)

func syntheticBlock(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		// A cheap deterministic signal stands in for real audio; bench
		// timing only cares about sample count, not spectral content.
		out[i] = float32((i%2000)-1000) / 1000
	}
	return out
}

// benchDSP times a representative effect chain against synthetic audio and
// reports its real-time factor: how many seconds of audio it can process
// per wall-clock second.
func benchDSP() error {
	fx := []effects.Effect{
		effects.NewLowPass(8000, 0.707),
		effects.NewCompressor(-24, 4, 10, 100, 0),
		effects.NewLimiter(-1, 3, 5, 50),
		effects.NewMultibandEQ([]effects.EQPoint{
			{FreqHz: 100, Q: 0.7, GainDB: 2},
			{FreqHz: 2000, Q: 0.7, GainDB: -3},
		}),
	}
	c := chain.New(fx)
	ctx := &effects.Context{SampleRate: benchSampleRate, Channels: benchChannels}
	c.WarmUp(ctx)

	blockFrames := benchSampleRate * benchBlockMS / 1000
	block := syntheticBlock(blockFrames * benchChannels)

	const iterations = 500
	start := time.Now()
	for i := 0; i < iterations; i++ {
		c.Process(block, ctx, false)
	}
	elapsed := time.Since(start)

	audioSeconds := float64(iterations*blockFrames) / float64(benchSampleRate)
	fmt.Printf("dsp chain: %d blocks x %dms, %.3fs audio in %s (%.1fx real-time)\n",
		iterations, benchBlockMS, audioSeconds, elapsed, audioSeconds/elapsed.Seconds())
	return nil
}

// benchSweep times the partitioned-FFT convolution reverb across a range of
// impulse-response lengths, since its cost scales with IR length rather
// than staying constant the way the other effects do.
func benchSweep() error {
	irLengths := []int{benchSampleRate / 2, benchSampleRate * 2, benchSampleRate * 6}

	for _, irLen := range irLengths {
		ir := syntheticBlock(irLen)
		conv, err := convolve.New(ir, convolve.DefaultFFTSize)
		if err != nil {
			return fmt.Errorf("bench: sweep: %w", err)
		}
		block := syntheticBlock(conv.PreferredBlock())

		const iterations = 200
		start := time.Now()
		for i := 0; i < iterations; i++ {
			conv.Process(block)
		}
		elapsed := time.Since(start)

		audioSeconds := float64(iterations*conv.PreferredBlock()) / float64(benchSampleRate)
		fmt.Printf("convolve: ir=%.1fs block=%d, %.3fs audio in %s (%.1fx real-time)\n",
			float64(irLen)/float64(benchSampleRate), conv.PreferredBlock(), audioSeconds, elapsed,
			audioSeconds/elapsed.Seconds())
	}
	return nil
}
