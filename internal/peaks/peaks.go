// Package peaks reads and writes the PPEAKS01 binary waveform-peaks
// format: a fixed 64-byte header followed by per-window, per-channel
// (max, min) float32 pairs, used by a host UI to render a waveform without
// decoding full audio.
package peaks

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
)

const (
	magic         = "PPEAKS01"
	headerSize    = 64
	formatVersion = uint16(1)
)

// File is a fully-loaded peaks file.
type File struct {
	Channels   int
	SampleRate int
	WindowSize int
	// Peaks[c][i] is the (max, min) pair for channel c, window i.
	Peaks [][]Pair
}

// Pair is one window's peak and trough for a single channel.
type Pair struct {
	Max float32
	Min float32
}

// WriteFile writes f to path in the PPEAKS01 format. Channels must be
// non-empty, windowSize must be nonzero, and every channel slice must have
// equal length.
func WriteFile(path string, channels [][]Pair, sampleRate, windowSize int) error {
	if len(channels) == 0 {
		return fmt.Errorf("peaks: no channels")
	}
	if windowSize <= 0 {
		return fmt.Errorf("peaks: window size must be positive")
	}
	peakCount := len(channels[0])
	for i, ch := range channels {
		if len(ch) != peakCount {
			return fmt.Errorf("peaks: channel %d has %d windows, want %d", i, len(ch), peakCount)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("peaks: create %s: %w", path, err)
	}
	defer f.Close()

	header := make([]byte, headerSize)
	copy(header[0:8], magic)
	binary.LittleEndian.PutUint16(header[8:10], formatVersion)
	binary.LittleEndian.PutUint16(header[10:12], uint16(len(channels)))
	binary.LittleEndian.PutUint32(header[12:16], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[16:20], uint32(windowSize))
	binary.LittleEndian.PutUint64(header[20:28], uint64(peakCount))
	binary.LittleEndian.PutUint64(header[28:36], uint64(headerSize))
	if _, err := f.Write(header); err != nil {
		return fmt.Errorf("peaks: write header: %w", err)
	}

	buf := make([]byte, 8*len(channels))
	for i := 0; i < peakCount; i++ {
		for c, ch := range channels {
			binary.LittleEndian.PutUint32(buf[c*8:c*8+4], floatBits(ch[i].Max))
			binary.LittleEndian.PutUint32(buf[c*8+4:c*8+8], floatBits(ch[i].Min))
		}
		if _, err := f.Write(buf); err != nil {
			return fmt.Errorf("peaks: write record %d: %w", i, err)
		}
	}
	return nil
}

// ReadFile loads the entire peaks file at path.
func ReadFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("peaks: open %s: %w", path, err)
	}
	defer f.Close()

	_, channels, sampleRate, windowSize, peakCount, dataOffset, err := readHeader(f)
	if err != nil {
		return nil, err
	}
	if _, err := f.Seek(dataOffset, io.SeekStart); err != nil {
		return nil, err
	}
	result := &File{Channels: channels, SampleRate: sampleRate, WindowSize: windowSize, Peaks: make([][]Pair, channels)}
	for c := range result.Peaks {
		result.Peaks[c] = make([]Pair, peakCount)
	}
	buf := make([]byte, 8*channels)
	for i := 0; i < peakCount; i++ {
		if _, err := io.ReadFull(f, buf); err != nil {
			return nil, fmt.Errorf("peaks: read record %d: %w", i, err)
		}
		for c := 0; c < channels; c++ {
			result.Peaks[c][i] = Pair{
				Max: floatFromBits(binary.LittleEndian.Uint32(buf[c*8 : c*8+4])),
				Min: floatFromBits(binary.LittleEndian.Uint32(buf[c*8+4 : c*8+8])),
			}
		}
	}
	return result, nil
}

// ReadRange returns the windows covering [t0, t1) seconds, clamped to
// [0, peakCount).
func ReadRange(path string, t0, t1 float64) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("peaks: open %s: %w", path, err)
	}
	defer f.Close()

	_, channels, sampleRate, windowSize, peakCount, dataOffset, err := readHeader(f)
	if err != nil {
		return nil, err
	}
	start := int(math.Floor(t0 * float64(sampleRate) / float64(windowSize)))
	end := int(math.Ceil(t1 * float64(sampleRate) / float64(windowSize)))
	return readByIndices(f, channels, sampleRate, windowSize, peakCount, dataOffset, start, end)
}

// ReadDownsampled loads every window and merges them down to at most count
// per channel, taking the widest max/min across each merged span — the
// shape a UI asks for when the waveform view is narrower than the file.
func ReadDownsampled(path string, count int) (*File, error) {
	full, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	if count <= 0 || len(full.Peaks) == 0 || len(full.Peaks[0]) <= count {
		return full, nil
	}
	total := len(full.Peaks[0])
	merged := make([][]Pair, full.Channels)
	for c := range merged {
		merged[c] = make([]Pair, count)
		for i := 0; i < count; i++ {
			start := i * total / count
			end := (i + 1) * total / count
			if end <= start {
				end = start + 1
			}
			p := full.Peaks[c][start]
			for _, q := range full.Peaks[c][start:end] {
				if q.Max > p.Max {
					p.Max = q.Max
				}
				if q.Min < p.Min {
					p.Min = q.Min
				}
			}
			merged[c][i] = p
		}
	}
	full.Peaks = merged
	return full, nil
}

// ReadByIndices returns windows [start, end) directly by index, seeking
// straight to the relevant byte range instead of reading the whole file.
func ReadByIndices(path string, start, end int) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("peaks: open %s: %w", path, err)
	}
	defer f.Close()

	_, channels, sampleRate, windowSize, peakCount, dataOffset, err := readHeader(f)
	if err != nil {
		return nil, err
	}
	return readByIndices(f, channels, sampleRate, windowSize, peakCount, dataOffset, start, end)
}

func readByIndices(f *os.File, channels, sampleRate, windowSize, peakCount int, dataOffset int64, start, end int) (*File, error) {
	if start < 0 {
		start = 0
	}
	if end > peakCount {
		end = peakCount
	}
	if end < start {
		end = start
	}
	n := end - start
	recordBytes := int64(8 * channels)
	if _, err := f.Seek(dataOffset+int64(start)*recordBytes, io.SeekStart); err != nil {
		return nil, err
	}
	result := &File{Channels: channels, SampleRate: sampleRate, WindowSize: windowSize, Peaks: make([][]Pair, channels)}
	for c := range result.Peaks {
		result.Peaks[c] = make([]Pair, n)
	}
	buf := make([]byte, 8*channels)
	for i := 0; i < n; i++ {
		if _, err := io.ReadFull(f, buf); err != nil {
			return nil, fmt.Errorf("peaks: read record %d: %w", start+i, err)
		}
		for c := 0; c < channels; c++ {
			result.Peaks[c][i] = Pair{
				Max: floatFromBits(binary.LittleEndian.Uint32(buf[c*8 : c*8+4])),
				Min: floatFromBits(binary.LittleEndian.Uint32(buf[c*8+4 : c*8+8])),
			}
		}
	}
	return result, nil
}

func readHeader(f *os.File) (header []byte, channels, sampleRate, windowSize, peakCount int, dataOffset int64, err error) {
	header = make([]byte, headerSize)
	if _, err = io.ReadFull(f, header); err != nil {
		return nil, 0, 0, 0, 0, 0, fmt.Errorf("peaks: read header: %w", err)
	}
	if string(header[0:8]) != magic {
		return nil, 0, 0, 0, 0, 0, fmt.Errorf("peaks: bad magic %q", header[0:8])
	}
	channels = int(binary.LittleEndian.Uint16(header[10:12]))
	sampleRate = int(binary.LittleEndian.Uint32(header[12:16]))
	windowSize = int(binary.LittleEndian.Uint32(header[16:20]))
	peakCount = int(binary.LittleEndian.Uint64(header[20:28]))
	dataOffset = int64(binary.LittleEndian.Uint64(header[28:36]))
	return
}

func floatBits(v float32) uint32     { return math.Float32bits(v) }
func floatFromBits(b uint32) float32 { return math.Float32frombits(b) }
