// Package ir resolves and prepares impulse responses for convolution
// reverb: locate the IR bytes inside (or alongside) a container, decode
// them to per-channel float32 samples, normalize by the global peak across
// channels, and truncate the tail once it has decayed tailDB below that
// peak.
package ir

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"sync"

	"github.com/proteus-audio/proteus/internal/container"
	"github.com/proteus-audio/proteus/internal/decode"
	"github.com/proteus-audio/proteus/internal/dsp/effects"
)

// batchConcurrency bounds how many files BatchNormalize decodes at once.
const batchConcurrency = 4

// nopCloser adapts a bytes.Reader to io.ReadCloser for decode.Open, which
// expects to own and close its source.
type nopCloser struct {
	*bytes.Reader
}

func (nopCloser) Close() error { return nil }

// Load resolves spec against c and decodes it into per-channel samples,
// normalized and tail-truncated per tailDB. Loader wraps it, with c bound,
// as an effects.IRLoader for a ConvolutionReverb constructor.
func Load(c *container.Container, spec string, tailDB float64) (channels [][]float32, sampleRate int, err error) {
	data, err := c.ResolveImpulseResponse(spec)
	if err != nil {
		return nil, 0, fmt.Errorf("ir: resolve %q: %w", spec, err)
	}
	return Decode(data, spec, tailDB)
}

// Loader returns an effects.IRLoader bound to c, for use as a chain-build
// constructor argument.
func Loader(c *container.Container) effects.IRLoader {
	return func(spec string, tailDB float64) ([][]float32, int, error) {
		return Load(c, spec, tailDB)
	}
}

// Decode decodes raw IR file bytes (identified by name for codec
// classification) into normalized, tail-truncated per-channel samples.
func Decode(data []byte, name string, tailDB float64) (channels [][]float32, sampleRate int, err error) {
	rc := nopCloser{bytes.NewReader(data)}
	dec, err := decode.Open(rc, "", name)
	if err != nil {
		return nil, 0, fmt.Errorf("ir: decode %s: %w", name, err)
	}
	defer dec.Close()

	nchan := dec.Channels()
	if nchan <= 0 {
		nchan = 1
	}
	sampleRate = dec.SampleRate()

	var interleaved []float32
	buf := make([]float32, 4096*nchan)
	for {
		n, rerr := dec.Read(buf)
		if n > 0 {
			interleaved = append(interleaved, buf[:n]...)
		}
		if rerr != nil {
			if rerr == io.EOF {
				break
			}
			return nil, 0, fmt.Errorf("ir: decode %s: %w", name, rerr)
		}
	}

	channels = make([][]float32, nchan)
	frames := len(interleaved) / nchan
	for ch := 0; ch < nchan; ch++ {
		channels[ch] = make([]float32, frames)
	}
	for f := 0; f < frames; f++ {
		for ch := 0; ch < nchan; ch++ {
			channels[ch][f] = interleaved[f*nchan+ch]
		}
	}

	normalize(channels)
	channels = truncateTail(channels, tailDB)
	return channels, sampleRate, nil
}

// BatchResult is one file's outcome from BatchNormalize.
type BatchResult struct {
	Path     string
	Channels [][]float32
	Err      error
}

// BatchNormalize decodes, normalizes, and tail-truncates every file in
// paths concurrently (bounded to batchConcurrency in flight at once), for
// offline re-export of a library of impulse responses. One slow or
// corrupt file never blocks the others; its slot simply carries an error.
func BatchNormalize(paths []string, tailDB float64) []BatchResult {
	results := make([]BatchResult, len(paths))
	var wg sync.WaitGroup
	sem := make(chan struct{}, batchConcurrency)

	for i, p := range paths {
		wg.Add(1)
		go func(idx int, path string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			data, err := os.ReadFile(path)
			if err != nil {
				results[idx] = BatchResult{Path: path, Err: fmt.Errorf("ir: read %s: %w", path, err)}
				return
			}
			channels, _, err := Decode(data, path, tailDB)
			results[idx] = BatchResult{Path: path, Channels: channels, Err: err}
		}(i, p)
	}
	wg.Wait()
	return results
}

// normalize scales every channel by the reciprocal of the single largest
// absolute sample across all channels, so the loudest peak in the IR hits
// unity gain and the relative balance between channels is preserved.
func normalize(channels [][]float32) {
	peak := float32(0)
	for _, ch := range channels {
		for _, s := range ch {
			a := s
			if a < 0 {
				a = -a
			}
			if a > peak {
				peak = a
			}
		}
	}
	if peak == 0 {
		return
	}
	scale := 1 / peak
	for _, ch := range channels {
		for i := range ch {
			ch[i] *= scale
		}
	}
}

// truncateTail finds the last sample, across all channels, whose absolute
// value is still within tailDB of the IR's peak (post-normalization, that
// peak is 1.0), and trims every channel to that length. Containers write
// the threshold as negative decibels (-60 means "cut 60 dB below peak")
// but a bare magnitude is accepted too; zero disables truncation.
func truncateTail(channels [][]float32, tailDB float64) [][]float32 {
	if tailDB == 0 || len(channels) == 0 {
		return channels
	}
	threshold := float32(math.Pow(10, -math.Abs(tailDB)/20))
	last := -1
	for _, ch := range channels {
		for i := len(ch) - 1; i > last; i-- {
			a := ch[i]
			if a < 0 {
				a = -a
			}
			if a >= threshold {
				last = i
				break
			}
		}
	}
	if last < 0 {
		last = 0
	}
	out := make([][]float32, len(channels))
	for i, ch := range channels {
		end := last + 1
		if end > len(ch) {
			end = len(ch)
		}
		out[i] = ch[:end]
	}
	return out
}
