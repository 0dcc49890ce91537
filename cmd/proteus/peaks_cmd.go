package main

import (
	"fmt"
	"io"

	"github.com/proteus-audio/proteus/internal/audio"
	"github.com/proteus-audio/proteus/internal/container"
	"github.com/proteus-audio/proteus/internal/decode"
	"github.com/proteus-audio/proteus/internal/peaks"
)

// writePeaksFile decodes every resolvable track in path's play settings,
// downmixes them into one unity-gain preview signal, and writes a PPEAKS01
// file of per-channel max/min envelopes at windowSize-sample resolution.
// This is a decode-only preview, independent of the mix engine: it never
// runs the effect chain, so the peaks only approximate what playback sounds
// like.
func writePeaksFile(path, outPath string, windowSize int) error {
	if windowSize <= 0 {
		windowSize = 512
	}
	c, err := container.Open(path)
	if err != nil {
		return err
	}
	defer c.Close()

	sampleRate, err := probeSampleRate(c)
	if err != nil {
		return err
	}
	const channels = defaultOutputChannels

	mix := make([]float32, 0)
	for i, t := range c.Settings.Tracks {
		if len(t.IDs) == 0 {
			continue
		}
		samples, err := decodeTrackPreview(c, t.IDs[0], i, channels)
		if err != nil {
			continue
		}
		if len(samples) > len(mix) {
			grown := make([]float32, len(samples))
			copy(grown, mix)
			mix = grown
		}
		for j, v := range samples {
			mix[j] += v
		}
	}

	perChannel := deinterleave(mix, channels)
	windows := make([][]peaks.Pair, channels)
	for ch := 0; ch < channels; ch++ {
		windows[ch] = computeWindows(perChannel[ch], windowSize)
	}
	return peaks.WriteFile(outPath, windows, sampleRate, windowSize)
}

func decodeTrackPreview(c *container.Container, trackID uint32, index, outChannels int) ([]float32, error) {
	ti, ok := c.TrackByNumber(uint64(trackID))
	if !ok {
		return nil, fmt.Errorf("peaks: matroska track %d not found", trackID)
	}
	rc, _, err := c.OpenTrackStream(uint64(trackID))
	if err != nil {
		return nil, err
	}
	dec, err := decode.Open(rc, ti.CodecID, fmt.Sprintf("track[%d]", index))
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	native := dec.Channels()
	var out []float32
	buf := make([]float32, 4096*native)
	for {
		n, err := dec.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			if native != outChannels {
				chunk = audio.Remix(chunk, native, outChannels)
			}
			out = append(out, chunk...)
		}
		if err != nil {
			if err == io.EOF {
				return out, nil
			}
			return out, err
		}
	}
}

func deinterleave(in []float32, channels int) [][]float32 {
	frames := len(in) / channels
	out := make([][]float32, channels)
	for ch := 0; ch < channels; ch++ {
		out[ch] = make([]float32, frames)
		for f := 0; f < frames; f++ {
			out[ch][f] = in[f*channels+ch]
		}
	}
	return out
}

func computeWindows(samples []float32, windowSize int) []peaks.Pair {
	count := (len(samples) + windowSize - 1) / windowSize
	if count == 0 {
		return []peaks.Pair{{Max: 0, Min: 0}}
	}
	out := make([]peaks.Pair, count)
	for i := 0; i < count; i++ {
		start := i * windowSize
		end := start + windowSize
		if end > len(samples) {
			end = len(samples)
		}
		max, min := samples[start], samples[start]
		for _, v := range samples[start:end] {
			if v > max {
				max = v
			}
			if v < min {
				min = v
			}
		}
		out[i] = peaks.Pair{Max: max, Min: min}
	}
	return out
}
