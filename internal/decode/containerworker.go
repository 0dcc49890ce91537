package decode

import (
	"encoding/binary"
	"io"

	"github.com/proteus-audio/proteus/internal/audio"
	"github.com/proteus-audio/proteus/internal/container/ebml"
	"github.com/proteus-audio/proteus/internal/logging"
	"github.com/proteus-audio/proteus/internal/ring"
)

// MultiTrack binds one container track number to the ring buffer its
// decoded samples land in.
type MultiTrack struct {
	TrackNumber uint64
	CodecID     string
	Key         ring.Key
	Buf         *ring.Buffer
}

// MultiWorker is the single-worker container decode variant: one goroutine
// scans every Cluster once, dispatching each packet to its track's decoder
// by track number instead of running one full container scan per track.
// It additionally applies the timestamp-gap end-of-stream heuristic — a
// track whose last packet lags the maximum observed timecode by more than
// eosMS is considered finished even though the scan has not reached EOF.
type MultiWorker struct {
	store       *ring.Store
	outChannels int
	eosMS       int64
	tracks      map[uint64]*multiTrackState
}

type multiTrackState struct {
	key    ring.Key
	isOpus bool
	pw     *io.PipeWriter
	lastTC int64
	closed bool
}

// NewMultiWorker builds a worker for the given tracks. eosMS <= 0 disables
// the end-of-stream heuristic.
func NewMultiWorker(store *ring.Store, tracks []MultiTrack, outChannels int, eosMS int) *MultiWorker {
	m := &MultiWorker{
		store:       store,
		outChannels: outChannels,
		eosMS:       int64(eosMS),
		tracks:      make(map[uint64]*multiTrackState, len(tracks)),
	}
	for _, t := range tracks {
		pr, pw := io.Pipe()
		st := &multiTrackState{
			key:    t.Key,
			isOpus: isOpusCodec(t.CodecID),
			pw:     pw,
		}
		m.tracks[t.TrackNumber] = st
		go m.decodeTrack(t, pr)
	}
	return m
}

// decodeTrack mirrors Worker.Run for one dispatched track: decode from the
// pipe, remix, push, mark finished on any exit path.
func (m *MultiWorker) decodeTrack(t MultiTrack, pr *io.PipeReader) {
	defer m.store.MarkFinished(t.Key)

	dec, err := Open(pr, t.CodecID, "container-track")
	if err != nil {
		logging.L().Warn("decode: unsupported container track", "track", t.TrackNumber, "err", err)
		return
	}
	defer dec.Close()

	native := dec.Channels()
	frame := make([]float32, 4096*native)
	for {
		n, err := dec.Read(frame)
		if n > 0 {
			out := frame[:n]
			if native != m.outChannels {
				out = audio.Remix(out, native, m.outChannels)
			}
			if !t.Buf.Push(out) {
				return
			}
		}
		if err != nil {
			if err != io.EOF {
				logging.L().Warn("decode: container track read error, ending track", "track", t.TrackNumber, "err", err)
			}
			return
		}
	}
}

// PacketSource is the slice of ebml.PacketReader the dispatch loop needs.
type PacketSource interface {
	Next() (ebml.Packet, error)
}

// Run dispatches packets until the scan ends, then closes every remaining
// track's feed. Callers spawn it with `go m.Run(pr)`.
func (m *MultiWorker) Run(src PacketSource) {
	defer m.closeAll()

	var maxTC int64
	for {
		pkt, err := src.Next()
		if err != nil {
			if err != io.EOF {
				logging.L().Warn("decode: container scan error", "err", err)
			}
			return
		}
		if pkt.Timecode > maxTC {
			maxTC = pkt.Timecode
		}
		st := m.tracks[pkt.TrackNumber]
		if st != nil && !st.closed {
			st.lastTC = pkt.Timecode
			if err := writeFramed(st.pw, pkt.Data, st.isOpus); err != nil {
				// The track-side decoder closed its end (abort or fatal
				// decode error); stop feeding it.
				st.closed = true
			}
		}
		if m.eosMS > 0 {
			for num, other := range m.tracks {
				if !other.closed && maxTC-other.lastTC > m.eosMS {
					logging.L().Debug("decode: track lags stream, marking finished", "track", num, "lag_ms", maxTC-other.lastTC)
					other.pw.Close()
					other.closed = true
				}
			}
		}
	}
}

func (m *MultiWorker) closeAll() {
	for _, st := range m.tracks {
		if !st.closed {
			st.pw.Close()
			st.closed = true
		}
	}
}

// writeFramed applies the same per-codec framing packetStream uses: Opus
// packets get a 4-byte big-endian length prefix, everything else is a raw
// concatenated byte stream.
func writeFramed(w io.Writer, data []byte, isOpus bool) error {
	if isOpus {
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(data)))
		if _, err := w.Write(lenBuf[:]); err != nil {
			return err
		}
	}
	_, err := w.Write(data)
	return err
}

func isOpusCodec(codecID string) bool {
	return classify(codecID, "") == kindOpus
}
