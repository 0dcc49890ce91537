// Package audio holds the sample container type and bit-depth/channel
// conversion helpers shared by every decoder and by the mix thread. The
// conversion routines do the manual byte math audio decoding commonly needs to
// turn ffmpeg's raw f32le stdout into a []float32 slice, generalized to the
// full set of PCM encodings this engine's containers can carry.
package audio

import (
	"encoding/binary"
	"math"
	"time"
)

// SamplesBuffer is the unit handed from the mix thread to the output sink.
type SamplesBuffer struct {
	Samples    []float32
	Channels   int
	SampleRate int
}

// Duration returns how long this buffer plays for, derived instead of
// stored so it can never drift from Samples/Channels/SampleRate.
func (s SamplesBuffer) Duration() time.Duration {
	if s.Channels == 0 || s.SampleRate == 0 {
		return 0
	}
	frames := len(s.Samples) / s.Channels
	secs := float64(frames) / float64(s.SampleRate)
	return time.Duration(secs * float64(time.Second))
}

// Downmix/upmix by duplicating or averaging channels; used when a source's
// native channel count doesn't match the session's output channel count.
func Remix(in []float32, inChannels, outChannels int) []float32 {
	if inChannels == outChannels || inChannels == 0 {
		return in
	}
	frames := len(in) / inChannels
	out := make([]float32, frames*outChannels)
	for f := 0; f < frames; f++ {
		if inChannels == 1 {
			v := in[f]
			for c := 0; c < outChannels; c++ {
				out[f*outChannels+c] = v
			}
			continue
		}
		if outChannels == 1 {
			var sum float32
			for c := 0; c < inChannels; c++ {
				sum += in[f*inChannels+c]
			}
			out[f] = sum / float32(inChannels)
			continue
		}
		for c := 0; c < outChannels; c++ {
			src := c
			if src >= inChannels {
				src = inChannels - 1
			}
			out[f*outChannels+c] = in[f*inChannels+src]
		}
	}
	return out
}

// Int16ToFloat32 converts little-endian signed 16-bit PCM to [-1, 1] f32.
func Int16ToFloat32(pcm []byte) []float32 {
	n := len(pcm) / 2
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		v := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		out[i] = float32(v) / 32768.0
	}
	return out
}

// Int24ToFloat32 converts little-endian signed 24-bit PCM (3 bytes/sample).
func Int24ToFloat32(pcm []byte) []float32 {
	n := len(pcm) / 3
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		b0, b1, b2 := pcm[i*3], pcm[i*3+1], pcm[i*3+2]
		v := int32(b0) | int32(b1)<<8 | int32(b2)<<16
		if v&0x800000 != 0 {
			v |= ^0xFFFFFF // sign extend
		}
		out[i] = float32(v) / 8388608.0
	}
	return out
}

// Int32ToFloat32 converts little-endian signed 32-bit PCM.
func Int32ToFloat32(pcm []byte) []float32 {
	n := len(pcm) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		v := int32(binary.LittleEndian.Uint32(pcm[i*4:]))
		out[i] = float32(v) / 2147483648.0
	}
	return out
}

// Uint8ToFloat32 converts unsigned 8-bit PCM.
func Uint8ToFloat32(pcm []byte) []float32 {
	out := make([]float32, len(pcm))
	for i, b := range pcm {
		out[i] = (float32(b) - 128.0) / 128.0
	}
	return out
}

// Float32LEToFloat32 reinterprets little-endian f32 PCM directly.
func Float32LEToFloat32(pcm []byte) []float32 {
	n := len(pcm) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		bits := binary.LittleEndian.Uint32(pcm[i*4:])
		out[i] = math.Float32frombits(bits)
	}
	return out
}

// Float64LEToFloat32 reinterprets little-endian f64 PCM, narrowing to f32.
func Float64LEToFloat32(pcm []byte) []float32 {
	n := len(pcm) / 8
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		bits := binary.LittleEndian.Uint64(pcm[i*8:])
		out[i] = float32(math.Float64frombits(bits))
	}
	return out
}
