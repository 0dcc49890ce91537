package ebml

import (
	"bytes"
	"io"
)

// Packet is one frame of coded audio belonging to a single track. Timecode
// is the cluster timecode plus the block's relative offset, in the
// container's native timestamp units (the default TimecodeScale of 1 ms is
// assumed; this engine's authoring side never changes it).
type Packet struct {
	TrackNumber uint64
	Timecode    int64
	Data        []byte
}

// PacketReader streams Packets from the container's Clusters, in file
// order, starting from the Segment's beginning — either filtered to one
// track number or, with trackNum 0, every audio track at once. Seeking is
// not supported: every reader starts at the first Cluster and delivers
// every packet from there on.
type PacketReader struct {
	rd        *reader
	trackNum  uint64
	clusterTC int64
}

// Packets opens a fresh linear scan of doc's Clusters filtered to
// trackNum. Each reader runs over its own io.SectionReader, so multiple
// PacketReaders — one per concurrently-decoding track — never disturb each
// other's position in the shared file.
func (doc *Document) Packets(trackNum uint64) (*PacketReader, error) {
	sr := io.NewSectionReader(doc.src, doc.segmentOffset, 1<<62)
	return &PacketReader{rd: newReader(sr), trackNum: trackNum}, nil
}

// AllPackets opens a scan over every track at once, used by the
// single-worker container decode variant that dispatches packets to
// per-track decoders itself.
func (doc *Document) AllPackets() (*PacketReader, error) {
	return doc.Packets(0)
}

// Next returns the next packet for this reader's track, or io.EOF once the
// Segment is exhausted.
func (pr *PacketReader) Next() (Packet, error) {
	for {
		h, err := pr.rd.readHeader()
		if err == io.EOF {
			return Packet{}, io.EOF
		}
		if err != nil {
			return Packet{}, err
		}
		switch h.id {
		case idCluster:
			continue // descend: cluster children follow immediately in the same stream
		case idTimecode:
			data, err := readAll(pr.rd.r, h.size)
			if err != nil {
				return Packet{}, err
			}
			pr.clusterTC = int64(readUint(data))
		case idSimpleBlock:
			data, err := readAll(pr.rd.r, h.size)
			if err != nil {
				return Packet{}, err
			}
			if pkt, ok := parseSimpleBlock(data, pr.trackNum, pr.clusterTC); ok {
				return pkt, nil
			}
		case idBlockGroup:
			data, err := readAll(pr.rd.r, h.size)
			if err != nil {
				return Packet{}, err
			}
			if pkt, ok := parseBlockGroup(data, pr.trackNum, pr.clusterTC); ok {
				return pkt, nil
			}
		default:
			if err := discard(pr.rd.r, h.size); err != nil {
				return Packet{}, err
			}
		}
	}
}

// parseSimpleBlock decodes a SimpleBlock's track number (vint), signed
// 16-bit relative timecode, flags byte, and frame payload (lacing is not
// supported — every SimpleBlock this engine writes carries exactly one
// frame, matching how the container/creation side of this module emits
// audio). A wantTrack of 0 matches every track.
func parseSimpleBlock(data []byte, wantTrack uint64, clusterTC int64) (Packet, bool) {
	r := bytes.NewReader(data)
	trackNum, err := readVintSize(byteReaderAdapter{r})
	if err != nil || trackNum <= 0 {
		return Packet{}, false
	}
	if wantTrack != 0 && uint64(trackNum) != wantTrack {
		return Packet{}, false
	}
	var tcBuf [2]byte
	if _, err := io.ReadFull(r, tcBuf[:]); err != nil {
		return Packet{}, false
	}
	relative := int64(int16(uint16(tcBuf[0])<<8 | uint16(tcBuf[1])))
	if _, err := r.ReadByte(); err != nil { // flags
		return Packet{}, false
	}
	payload, _ := io.ReadAll(r)
	return Packet{TrackNumber: uint64(trackNum), Timecode: clusterTC + relative, Data: payload}, true
}

func parseBlockGroup(data []byte, wantTrack uint64, clusterTC int64) (Packet, bool) {
	rd := newReader(bytes.NewReader(data))
	for {
		h, err := rd.readHeader()
		if err == io.EOF {
			return Packet{}, false
		}
		if err != nil {
			return Packet{}, false
		}
		body, err := readAll(rd.r, h.size)
		if err != nil {
			return Packet{}, false
		}
		if h.id == idBlock {
			return parseSimpleBlock(body, wantTrack, clusterTC)
		}
	}
}

// byteReaderAdapter lets *bytes.Reader satisfy io.ByteReader for the vint
// helpers, which take the narrower interface so they can be reused inside
// already-bounded byte slices like this one.
type byteReaderAdapter struct{ r *bytes.Reader }

func (b byteReaderAdapter) ReadByte() (byte, error) { return b.r.ReadByte() }
