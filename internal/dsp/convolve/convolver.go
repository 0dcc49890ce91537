// Package convolve implements uniform-partitioned, overlap-add FFT
// convolution: the algorithmic center of the convolution reverb. An
// impulse response of arbitrary length is split into K equal partitions,
// each pre-transformed once; every input block is transformed once and
// convolved against all K partitions via a rolling history of past input
// spectra.
package convolve

import (
	"fmt"

	algofft "github.com/MeKo-Christian/algo-fft"
)

// DefaultFFTSize is the block size used unless the caller overrides it.
// It must be a power of two; the hop size (and thus the hardware block
// granularity the caller must supply input in) is always FFTSize/2.
const DefaultFFTSize = 32768

// spectrum is a frequency-domain block: one complex bin per FFT sample.
type spectrum = []complex128

// Convolver performs block-based convolution of one audio channel against
// one impulse response channel using the uniform-partitioned overlap-add
// algorithm described in the component design.
type Convolver struct {
	fftSize int
	hop     int
	engine  *algofft.FFT

	partitions []spectrum // K pre-transformed IR segments
	history    []spectrum // ring of the last K input spectra
	historyPos int

	tail    []float32 // carried overlap-add tail, length hop
	pending []float32 // queued output not yet returned to the caller
}

// New builds a convolver for the given impulse response (time domain,
// mono) and FFT size. fftSize must be a power of two; pass 0 to use
// DefaultFFTSize.
func New(ir []float32, fftSize int) (*Convolver, error) {
	if fftSize <= 0 {
		fftSize = DefaultFFTSize
	}
	hop := fftSize / 2
	if len(ir) == 0 {
		ir = []float32{0}
	}
	k := (len(ir) + hop - 1) / hop

	engine, err := algofft.New(fftSize)
	if err != nil {
		return nil, fmt.Errorf("convolve: fft init: %w", err)
	}

	c := &Convolver{
		fftSize:    fftSize,
		hop:        hop,
		engine:     engine,
		partitions: make([]spectrum, k),
		history:    make([]spectrum, k),
		tail:       make([]float32, hop),
	}

	for i := 0; i < k; i++ {
		seg := make([]complex128, fftSize)
		start := i * hop
		end := start + hop
		if end > len(ir) {
			end = len(ir)
		}
		for j := start; j < end; j++ {
			seg[j-start] = complex(float64(ir[j]), 0)
		}
		c.partitions[i] = engine.Forward(seg)
		c.history[i] = make(spectrum, fftSize)
	}
	return c, nil
}

// PreferredBlock returns the hop size this convolver wants input in.
func (c *Convolver) PreferredBlock() int { return c.hop }

// Reset clears history, tail, and pending output, but keeps the loaded IR.
func (c *Convolver) Reset() {
	for i := range c.history {
		c.history[i] = make(spectrum, c.fftSize)
	}
	c.historyPos = 0
	for i := range c.tail {
		c.tail[i] = 0
	}
	c.pending = nil
}

// Process convolves one block of mono input. Input need not be a multiple
// of the hop size; partial blocks are zero-padded for this call (callers
// that want exact boundary semantics should batch to multiples of
// PreferredBlock() themselves, which is what the effect wrapper does).
func (c *Convolver) Process(input []float32) []float32 {
	out := make([]float32, 0, len(c.pending)+len(input))
	out = append(out, c.pending...)
	c.pending = c.pending[:0]

	for off := 0; off < len(input); off += c.hop {
		end := off + c.hop
		block := input[off:min(end, len(input))]
		out = append(out, c.processHop(block)...)
	}
	return out
}

func (c *Convolver) processHop(block []float32) []float32 {
	freq := make([]complex128, c.fftSize)
	for i, v := range block {
		freq[i] = complex(float64(v), 0)
	}
	freqSpec := c.engine.Forward(freq)

	k := len(c.partitions)
	c.history[c.historyPos] = freqSpec

	acc := make(spectrum, c.fftSize)
	for i := 0; i < k; i++ {
		histIdx := (c.historyPos - i + k) % k
		h := c.history[histIdx]
		p := c.partitions[i]
		for b := 0; b < c.fftSize; b++ {
			acc[b] += h[b] * p[b]
		}
	}
	c.historyPos = (c.historyPos + 1) % k

	timeDomain := c.engine.Inverse(acc)
	norm := 1.0 / float64(c.fftSize)

	result := make([]float32, c.hop)
	for i := 0; i < c.hop; i++ {
		result[i] = float32(real(timeDomain[i])*norm) + c.tail[i]
	}
	newTail := make([]float32, c.hop)
	for i := 0; i < c.hop; i++ {
		newTail[i] = float32(real(timeDomain[c.hop+i]) * norm)
	}
	c.tail = newTail
	return result
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
