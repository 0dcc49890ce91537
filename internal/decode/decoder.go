// Package decode turns a demuxed audio source — a file or a container
// track — into interleaved float32 samples. Every concrete decoder
// implements the narrow Decoder interface; dispatch on codec happens once,
// in Open, rather than scattering codec checks through the mix path.
package decode

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	"github.com/mewkiz/flac"

	"github.com/proteus-audio/proteus/internal/audio"
)

// Decoder produces interleaved float32 samples at its own native channel
// count and sample rate; callers remix/resample as needed.
type Decoder interface {
	Read(out []float32) (n int, err error)
	Channels() int
	SampleRate() int
	Close() error
}

// Open picks a Decoder implementation for r based on codecID (a Matroska
// codec id such as "A_FLAC", "A_OPUS", "A_VORBIS", "A_MPEG/L3", or
// "A_PCM/FLOAT/IEEE"/"A_PCM/INT/LIT") when non-empty, falling back to the
// file extension in path.
func Open(r io.ReadCloser, codecID, path string) (Decoder, error) {
	kind := classify(codecID, path)
	switch kind {
	case kindFLAC:
		return newFLACDecoder(r)
	case kindVorbis:
		return newVorbisDecoder(r)
	case kindMP3:
		return newMP3Decoder(r)
	case kindOpus:
		return newOpusDecoder(r)
	case kindPCM:
		return newPCMDecoder(r, codecID)
	default:
		r.Close()
		return nil, fmt.Errorf("decode: unsupported codec %q (path %q)", codecID, path)
	}
}

type kind int

const (
	kindUnknown kind = iota
	kindFLAC
	kindVorbis
	kindMP3
	kindOpus
	kindPCM
)

func classify(codecID, path string) kind {
	c := strings.ToUpper(codecID)
	switch {
	case strings.Contains(c, "FLAC"):
		return kindFLAC
	case strings.Contains(c, "VORBIS"):
		return kindVorbis
	case strings.Contains(c, "OPUS"):
		return kindOpus
	case strings.Contains(c, "MPEG") && strings.Contains(c, "L3"):
		return kindMP3
	case strings.Contains(c, "PCM"):
		return kindPCM
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".flac":
		return kindFLAC
	case ".ogg", ".oga":
		return kindVorbis
	case ".opus":
		return kindOpus
	case ".mp3":
		return kindMP3
	case ".wav", ".pcm":
		return kindPCM
	}
	return kindUnknown
}

// --- FLAC ---

type flacDecoder struct {
	rc     io.ReadCloser
	stream *flac.Stream
	chans  int
	rate   int
	pend   []float32
}

func newFLACDecoder(r io.ReadCloser) (Decoder, error) {
	stream, err := flac.Decode(r)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("decode: flac: %w", err)
	}
	return &flacDecoder{
		rc:     r,
		stream: stream,
		chans:  int(stream.Info.NChannels),
		rate:   int(stream.Info.SampleRate),
	}, nil
}

func (d *flacDecoder) Channels() int   { return d.chans }
func (d *flacDecoder) SampleRate() int { return d.rate }
func (d *flacDecoder) Close() error    { return d.rc.Close() }

func (d *flacDecoder) Read(out []float32) (int, error) {
	n := 0
	for n < len(out) {
		if len(d.pend) > 0 {
			c := copy(out[n:], d.pend)
			d.pend = d.pend[c:]
			n += c
			continue
		}
		frame, err := d.stream.ParseNext()
		if err != nil {
			if err == io.EOF {
				if n == 0 {
					return 0, io.EOF
				}
				return n, nil
			}
			if n == 0 {
				return 0, fmt.Errorf("decode: flac: %w", err)
			}
			return n, nil
		}
		maxShift := uint(frame.BitsPerSample)
		scale := float32(1 << (maxShift - 1))
		for i := 0; i < int(frame.BlockSize); i++ {
			for ch := 0; ch < d.chans && ch < len(frame.Subframes); ch++ {
				d.pend = append(d.pend, float32(frame.Subframes[ch].Samples[i])/scale)
			}
		}
	}
	return n, nil
}

// --- Ogg Vorbis ---

type vorbisDecoder struct {
	rc     io.ReadCloser
	reader *oggvorbis.Reader
}

func newVorbisDecoder(r io.ReadCloser) (Decoder, error) {
	rd, err := oggvorbis.NewReader(r)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("decode: vorbis: %w", err)
	}
	return &vorbisDecoder{rc: r, reader: rd}, nil
}

func (d *vorbisDecoder) Channels() int   { return d.reader.Channels() }
func (d *vorbisDecoder) SampleRate() int { return d.reader.SampleRate() }
func (d *vorbisDecoder) Close() error    { return d.rc.Close() }
func (d *vorbisDecoder) Read(out []float32) (int, error) {
	n, err := d.reader.Read(out)
	if err != nil && err != io.EOF {
		return n, fmt.Errorf("decode: vorbis: %w", err)
	}
	return n, err
}

// --- MP3 ---

type mp3Decoder struct {
	rc   io.ReadCloser
	dec  *mp3.Decoder
	rate int
	buf  []byte
}

func newMP3Decoder(r io.ReadCloser) (Decoder, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("decode: mp3: %w", err)
	}
	return &mp3Decoder{rc: r, dec: dec, rate: dec.SampleRate()}, nil
}

func (d *mp3Decoder) Channels() int   { return 2 }
func (d *mp3Decoder) SampleRate() int { return d.rate }
func (d *mp3Decoder) Close() error    { return d.rc.Close() }
func (d *mp3Decoder) Read(out []float32) (int, error) {
	need := len(out) * 2
	if cap(d.buf) < need {
		d.buf = make([]byte, need)
	}
	buf := d.buf[:need]
	n, err := io.ReadFull(d.dec, buf)
	if n > 0 {
		samples := audio.Int16ToFloat32(buf[:n-(n%2)])
		copy(out, samples)
		if err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		return len(samples), nonEOFErr(err)
	}
	return 0, nonEOFErr(err)
}

func nonEOFErr(err error) error {
	if err == nil {
		return nil
	}
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return io.EOF
	}
	return err
}

// --- PCM (raw Matroska PCM tracks) ---

type pcmDecoder struct {
	rc    io.ReadCloser
	chans int
	rate  int
	conv  func([]byte) []float32
	width int
}

func newPCMDecoder(r io.ReadCloser, codecID string) (Decoder, error) {
	c := strings.ToUpper(codecID)
	d := &pcmDecoder{rc: r, chans: 2, rate: 48000}
	switch {
	case strings.Contains(c, "FLOAT"):
		d.conv, d.width = audio.Float32LEToFloat32, 4
	case strings.Contains(c, "INT/LIT") || strings.Contains(c, "INT"):
		d.conv, d.width = audio.Int16ToFloat32, 2
	default:
		d.conv, d.width = audio.Int16ToFloat32, 2
	}
	return d, nil
}

func (d *pcmDecoder) Channels() int   { return d.chans }
func (d *pcmDecoder) SampleRate() int { return d.rate }
func (d *pcmDecoder) Close() error    { return d.rc.Close() }
func (d *pcmDecoder) Read(out []float32) (int, error) {
	need := len(out) * d.width
	buf := make([]byte, need)
	n, err := io.ReadFull(d.rc, buf)
	usable := n - (n % d.width)
	samples := d.conv(buf[:usable])
	copy(out, samples)
	if err != nil {
		return len(samples), nonEOFErr(err)
	}
	return len(samples), nil
}
