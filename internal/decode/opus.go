package decode

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/thesyncim/gopus"
)

// opusDecoder wraps gopus's frame decoder. Matroska carries one raw Opus
// packet per SimpleBlock/Block; packetStream (internal/container) and
// writeFramed (used by MultiWorker) prefix each packet with its length
// before handing it over, so this type never has to parse EBML itself.
type opusDecoder struct {
	rc     io.ReadCloser
	dec    *gopus.Decoder
	rate   int
	chans  int
	frame  int
	pcmBuf []int16
}

const defaultOpusFrameSamples = 960 // 20ms @ 48kHz

func newOpusDecoder(r io.ReadCloser) (Decoder, error) {
	const rate, chans = 48000, 2
	dec, err := gopus.NewDecoder(rate, chans)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("decode: opus: %w", err)
	}
	return &opusDecoder{
		rc:     r,
		dec:    dec,
		rate:   rate,
		chans:  chans,
		frame:  defaultOpusFrameSamples,
		pcmBuf: make([]int16, defaultOpusFrameSamples*chans),
	}, nil
}

func (d *opusDecoder) Channels() int   { return d.chans }
func (d *opusDecoder) SampleRate() int { return d.rate }
func (d *opusDecoder) Close() error    { return d.rc.Close() }

// Read decodes packets framed as a 4-byte big-endian length prefix followed
// by the Opus packet payload, the framing packetStream and writeFramed use
// when handing container-sourced Opus data to this decoder.
func (d *opusDecoder) Read(out []float32) (int, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(d.rc, lenBuf[:]); err != nil {
		return 0, nonEOFErr(err)
	}
	packetLen := binary.BigEndian.Uint32(lenBuf[:])
	packet := make([]byte, packetLen)
	if _, err := io.ReadFull(d.rc, packet); err != nil {
		return 0, nonEOFErr(err)
	}
	pcm, err := d.dec.Decode(packet, d.frame, false)
	if err != nil {
		return 0, fmt.Errorf("decode: opus: %w", err)
	}
	n := len(pcm)
	if n > len(out) {
		n = len(out)
	}
	for i := 0; i < n; i++ {
		out[i] = float32(pcm[i]) / 32768.0
	}
	return n, nil
}
