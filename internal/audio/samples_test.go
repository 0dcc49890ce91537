package audio

import (
	"encoding/binary"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSamplesBufferDuration(t *testing.T) {
	b := SamplesBuffer{Samples: make([]float32, 96000), Channels: 2, SampleRate: 48000}
	require.Equal(t, time.Second, b.Duration())

	require.Zero(t, SamplesBuffer{}.Duration())
}

func TestRemixMonoToStereoDuplicates(t *testing.T) {
	out := Remix([]float32{0.1, 0.2, 0.3}, 1, 2)
	require.Equal(t, []float32{0.1, 0.1, 0.2, 0.2, 0.3, 0.3}, out)
}

func TestRemixStereoToMonoAverages(t *testing.T) {
	out := Remix([]float32{1, 0, 0.5, 0.5}, 2, 1)
	require.InDelta(t, 0.5, out[0], 1e-6)
	require.InDelta(t, 0.5, out[1], 1e-6)
}

func TestRemixSameChannelCountIsPassthrough(t *testing.T) {
	in := []float32{1, 2, 3, 4}
	require.Equal(t, in, Remix(in, 2, 2))
}

func TestInt16ToFloat32FullScale(t *testing.T) {
	pcm := make([]byte, 6)
	binary.LittleEndian.PutUint16(pcm[0:], uint16(int16(-32768)))
	binary.LittleEndian.PutUint16(pcm[2:], 0)
	binary.LittleEndian.PutUint16(pcm[4:], uint16(int16(32767)))

	out := Int16ToFloat32(pcm)
	require.InDelta(t, -1.0, out[0], 1e-6)
	require.InDelta(t, 0.0, out[1], 1e-6)
	require.InDelta(t, 1.0, out[2], 1e-4)
}

func TestInt24ToFloat32SignExtension(t *testing.T) {
	// -1 in 24-bit two's complement is 0xFFFFFF.
	pcm := []byte{0xFF, 0xFF, 0xFF, 0x00, 0x00, 0x40}
	out := Int24ToFloat32(pcm)
	require.InDelta(t, -1.0/8388608.0, out[0], 1e-9)
	require.InDelta(t, 0.5, out[1], 1e-6)
}

func TestInt32ToFloat32FullScale(t *testing.T) {
	pcm := make([]byte, 8)
	binary.LittleEndian.PutUint32(pcm[0:], uint32(int32(math.MinInt32)))
	binary.LittleEndian.PutUint32(pcm[4:], uint32(int32(1<<30)))
	out := Int32ToFloat32(pcm)
	require.InDelta(t, -1.0, out[0], 1e-6)
	require.InDelta(t, 0.5, out[1], 1e-6)
}

func TestUint8ToFloat32Midpoint(t *testing.T) {
	out := Uint8ToFloat32([]byte{0, 128, 255})
	require.InDelta(t, -1.0, out[0], 1e-6)
	require.InDelta(t, 0.0, out[1], 1e-6)
	require.InDelta(t, 127.0/128.0, out[2], 1e-6)
}

func TestFloat32LERoundTrip(t *testing.T) {
	want := []float32{0.25, -0.75, 1.0}
	pcm := make([]byte, len(want)*4)
	for i, v := range want {
		binary.LittleEndian.PutUint32(pcm[i*4:], math.Float32bits(v))
	}
	require.Equal(t, want, Float32LEToFloat32(pcm))
}

func TestFloat64LENarrowing(t *testing.T) {
	pcm := make([]byte, 8)
	binary.LittleEndian.PutUint64(pcm, math.Float64bits(0.125))
	out := Float64LEToFloat32(pcm)
	require.InDelta(t, 0.125, out[0], 1e-9)
}
