package decode

import (
	"encoding/binary"
	"io"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/proteus-audio/proteus/internal/container/ebml"
	"github.com/proteus-audio/proteus/internal/ring"
)

// slicePacketSource replays a fixed packet list, standing in for a real
// Cluster scan.
type slicePacketSource struct {
	packets []ebml.Packet
	pos     int
}

func (s *slicePacketSource) Next() (ebml.Packet, error) {
	if s.pos >= len(s.packets) {
		return ebml.Packet{}, io.EOF
	}
	p := s.packets[s.pos]
	s.pos++
	return p, nil
}

// pcmPacket builds a float32-LE payload of constant samples, decodable by
// the raw PCM path under the A_PCM/FLOAT/IEEE codec id.
func pcmPacket(track uint64, tc int64, frames int, v float32) ebml.Packet {
	data := make([]byte, frames*2*4) // stereo float32
	for i := 0; i < frames*2; i++ {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(v))
	}
	return ebml.Packet{TrackNumber: track, Timecode: tc, Data: data}
}

func waitFinished(t *testing.T, store *ring.Store, key ring.Key) {
	t.Helper()
	require.Eventually(t, func() bool {
		return store.IsFinished(key)
	}, 5*time.Second, time.Millisecond)
}

func TestMultiWorkerDispatchesByTrackNumber(t *testing.T) {
	store := ring.NewStore()
	k1, b1 := store.Add(1 << 16)
	k2, b2 := store.Add(1 << 16)

	mw := NewMultiWorker(store, []MultiTrack{
		{TrackNumber: 1, CodecID: "A_PCM/FLOAT/IEEE", Key: k1, Buf: b1},
		{TrackNumber: 2, CodecID: "A_PCM/FLOAT/IEEE", Key: k2, Buf: b2},
	}, 2, 0)

	src := &slicePacketSource{packets: []ebml.Packet{
		pcmPacket(1, 0, 64, 0.25),
		pcmPacket(2, 0, 64, 0.5),
		pcmPacket(1, 20, 64, 0.25),
	}}
	go mw.Run(src)

	waitFinished(t, store, k1)
	waitFinished(t, store, k2)

	require.Equal(t, 2*64*2, b1.Len(), "track 1 got both its packets")
	require.Equal(t, 64*2, b2.Len(), "track 2 got its one packet")

	out := make([]float32, 4)
	b1.Pop(out, 4)
	for _, v := range out {
		require.InDelta(t, 0.25, v, 1e-6)
	}
}

func TestMultiWorkerEOSHeuristicFinishesLaggingTrack(t *testing.T) {
	store := ring.NewStore()
	k1, b1 := store.Add(1 << 16)
	k2, b2 := store.Add(1 << 16)

	mw := NewMultiWorker(store, []MultiTrack{
		{TrackNumber: 1, CodecID: "A_PCM/FLOAT/IEEE", Key: k1, Buf: b1},
		{TrackNumber: 2, CodecID: "A_PCM/FLOAT/IEEE", Key: k2, Buf: b2},
	}, 2, 1000)

	// Track 2 stops at tc=0 while track 1 runs on past the 1000ms gap.
	packets := []ebml.Packet{
		pcmPacket(1, 0, 16, 0.1),
		pcmPacket(2, 0, 16, 0.2),
	}
	for tc := int64(100); tc <= 1200; tc += 100 {
		packets = append(packets, pcmPacket(1, tc, 16, 0.1))
	}
	done := make(chan struct{})
	go func() {
		mw.Run(&slicePacketSource{packets: packets})
		close(done)
	}()

	waitFinished(t, store, k2)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("dispatch loop did not finish")
	}
	waitFinished(t, store, k1)
}

func TestMultiWorkerUnknownTrackPacketsAreIgnored(t *testing.T) {
	store := ring.NewStore()
	k1, b1 := store.Add(1 << 16)

	mw := NewMultiWorker(store, []MultiTrack{
		{TrackNumber: 1, CodecID: "A_PCM/FLOAT/IEEE", Key: k1, Buf: b1},
	}, 2, 0)

	src := &slicePacketSource{packets: []ebml.Packet{
		pcmPacket(9, 0, 16, 0.9), // no such track registered
		pcmPacket(1, 0, 16, 0.3),
	}}
	go mw.Run(src)
	waitFinished(t, store, k1)
	require.Equal(t, 16*2, b1.Len())
}
