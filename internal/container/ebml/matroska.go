package ebml

import (
	"bytes"
	"fmt"
	"io"
)

// Attachment is one embedded file, such as play_settings.json or an
// impulse-response audio file.
type Attachment struct {
	Name string
	Data []byte
}

// TrackInfo describes one audio track found in the Tracks element.
type TrackInfo struct {
	Number          uint64
	CodecID         string
	SamplingFreqHz  float64
	Channels        uint64
	BitDepth        uint64
}

// Source is what a Document reads from: sequential access for the opening
// scan, random access so every PacketReader gets its own independent view
// of the Cluster region. *os.File satisfies both.
type Source interface {
	io.ReadSeeker
	io.ReaderAt
}

// Document holds everything this engine ever reads out of a .prot/.mka
// container, gathered in one linear scan of the Segment element.
type Document struct {
	Attachments []Attachment
	Tracks      []TrackInfo

	segmentOffset int64 // byte offset of the Segment's payload, for re-scanning Clusters
	src           Source
}

// plainByteReader reads single bytes straight off src with no readahead,
// so the top-level scan's Seek-based skips stay byte-exact.
type plainByteReader struct{ r io.Reader }

func (p plainByteReader) ReadByte() (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(p.r, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

// Open parses just enough of src to populate Attachments and Tracks,
// keeping src for later frame extraction via Packets.
func Open(src Source) (*Document, error) {
	doc := &Document{src: src}
	br := plainByteReader{r: src}

	for {
		id, err := readVintID(br)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ebml: top-level scan: %w", err)
		}
		size, err := readVintSize(br)
		if err != nil {
			return nil, fmt.Errorf("ebml: top-level scan: %w", err)
		}
		if id != idSegment {
			if err := skip(src, size); err != nil {
				return nil, err
			}
			continue
		}
		pos, err := src.Seek(0, io.SeekCurrent)
		if err != nil {
			return nil, fmt.Errorf("ebml: segment offset: %w", err)
		}
		doc.segmentOffset = pos
		var body io.Reader = src
		if size >= 0 {
			body = io.LimitReader(src, size)
		}
		if err := doc.scanSegment(body); err != nil {
			return nil, err
		}
		break
	}
	return doc, nil
}

func (doc *Document) scanSegment(r io.Reader) error {
	rd := newReader(r)
	for {
		h, err := rd.readHeader()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("ebml: segment scan: %w", err)
		}
		switch h.id {
		case idAttachments:
			body := io.LimitReader(rd.r, h.size)
			if err := doc.scanAttachments(body); err != nil {
				return err
			}
		case idTracks:
			body := io.LimitReader(rd.r, h.size)
			if err := doc.scanTracks(body); err != nil {
				return err
			}
		case idCluster:
			// Clusters are read lazily by Packets; skip them here so Open
			// stays cheap even on a large container.
			if h.size >= 0 {
				if err := discard(rd.r, h.size); err != nil {
					return err
				}
			}
		default:
			if h.size >= 0 {
				if err := discard(rd.r, h.size); err != nil {
					return err
				}
			}
		}
	}
}

func (doc *Document) scanAttachments(r io.Reader) error {
	rd := newReader(r)
	for {
		h, err := rd.readHeader()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if h.id != idAttachedFile {
			discard(rd.r, h.size)
			continue
		}
		body, err := readAll(rd.r, h.size)
		if err != nil {
			return err
		}
		att, err := parseAttachedFile(body)
		if err == nil {
			doc.Attachments = append(doc.Attachments, att)
		}
	}
}

func parseAttachedFile(body []byte) (Attachment, error) {
	rd := newReader(bytes.NewReader(body))
	var att Attachment
	for {
		h, err := rd.readHeader()
		if err == io.EOF {
			break
		}
		if err != nil {
			return att, err
		}
		data, err := readAll(rd.r, h.size)
		if err != nil {
			return att, err
		}
		switch h.id {
		case idFileName:
			att.Name = string(data)
		case idFileData:
			att.Data = data
		}
	}
	return att, nil
}

func (doc *Document) scanTracks(r io.Reader) error {
	rd := newReader(r)
	for {
		h, err := rd.readHeader()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if h.id != idTrackEntry {
			discard(rd.r, h.size)
			continue
		}
		body, err := readAll(rd.r, h.size)
		if err != nil {
			return err
		}
		ti, err := parseTrackEntry(body)
		if err == nil {
			doc.Tracks = append(doc.Tracks, ti)
		}
	}
}

func parseTrackEntry(body []byte) (TrackInfo, error) {
	rd := newReader(bytes.NewReader(body))
	var ti TrackInfo
	for {
		h, err := rd.readHeader()
		if err == io.EOF {
			break
		}
		if err != nil {
			return ti, err
		}
		switch h.id {
		case idTrackNumber:
			data, _ := readAll(rd.r, h.size)
			ti.Number = readUint(data)
		case idCodecID:
			data, _ := readAll(rd.r, h.size)
			ti.CodecID = string(data)
		case idAudio:
			data, _ := readAll(rd.r, h.size)
			parseAudioSettings(data, &ti)
		default:
			discard(rd.r, h.size)
		}
	}
	return ti, nil
}

func parseAudioSettings(body []byte, ti *TrackInfo) {
	rd := newReader(bytes.NewReader(body))
	for {
		h, err := rd.readHeader()
		if err == io.EOF {
			return
		}
		if err != nil {
			return
		}
		data, _ := readAll(rd.r, h.size)
		switch h.id {
		case idSamplingFreq:
			ti.SamplingFreqHz = readFloat(data)
		case idChannels:
			ti.Channels = readUint(data)
		case idBitDepth:
			ti.BitDepth = readUint(data)
		}
	}
}

func skip(s io.Seeker, n int64) error {
	if n < 0 {
		return fmt.Errorf("ebml: cannot skip unknown-size element at top level")
	}
	_, err := s.Seek(n, io.SeekCurrent)
	return err
}

func discard(r io.Reader, n int64) error {
	if n < 0 {
		return nil
	}
	_, err := io.CopyN(io.Discard, r, n)
	return err
}

func readAll(r io.Reader, n int64) ([]byte, error) {
	if n < 0 {
		return io.ReadAll(r)
	}
	buf := make([]byte, n)
	_, err := io.ReadFull(r, buf)
	return buf, err
}
