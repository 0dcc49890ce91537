// Package meter tracks per-channel output levels for a host UI, and runs
// a background reporter that polls playback state on a fixed interval.
package meter

import (
	"math"
	"sync"
)

// Frame is one bucketized window's per-channel peak and RMS average.
type Frame struct {
	Peak    []float32
	Average []float32
}

// Meter accumulates samples into fixed-size buckets of
// sample_rate/refresh_hz frames (refresh_hz buckets per second of audio)
// and exposes the most recently completed bucket's levels to a polling
// consumer via Advance.
type Meter struct {
	mu sync.Mutex

	sampleRate int
	channels   int
	frameSize  int // frames (not samples) per meter bucket

	accumPeak  []float32
	accumSumSq []float64
	accumCount int

	queue   []Frame
	current Frame
}

// New creates a meter for the given format, bucketing at refreshHz buckets
// per second. A non-positive refreshHz defaults to 30.
func New(sampleRate, channels, refreshHz int) *Meter {
	if refreshHz <= 0 {
		refreshHz = 30
	}
	frameSize := sampleRate / refreshHz
	if frameSize < 1 {
		frameSize = 1
	}
	return &Meter{
		sampleRate: sampleRate,
		channels:   channels,
		frameSize:  frameSize,
		accumPeak:  make([]float32, channels),
		accumSumSq: make([]float64, channels),
		current:    Frame{Peak: make([]float32, channels), Average: make([]float32, channels)},
	}
}

// Feed accumulates interleaved samples (at the meter's configured channel
// count) into the current bucket, completing and queuing buckets as they
// fill.
func (m *Meter) Feed(samples []float32, channels int) {
	if channels != m.channels || channels == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	frames := len(samples) / channels
	for f := 0; f < frames; f++ {
		for ch := 0; ch < channels; ch++ {
			s := samples[f*channels+ch]
			a := s
			if a < 0 {
				a = -a
			}
			if a > m.accumPeak[ch] {
				m.accumPeak[ch] = a
			}
			m.accumSumSq[ch] += float64(s) * float64(s)
		}
		m.accumCount++
		if m.accumCount >= m.frameSize {
			m.finalizeLocked()
		}
	}
}

func (m *Meter) finalizeLocked() {
	frame := Frame{Peak: make([]float32, m.channels), Average: make([]float32, m.channels)}
	for ch := 0; ch < m.channels; ch++ {
		frame.Peak[ch] = m.accumPeak[ch]
		if m.accumCount > 0 {
			frame.Average[ch] = float32(math.Sqrt(m.accumSumSq[ch] / float64(m.accumCount)))
		}
		m.accumPeak[ch] = 0
		m.accumSumSq[ch] = 0
	}
	m.accumCount = 0
	m.queue = append(m.queue, frame)
}

// Advance pops every frame whose nominal duration fits within delta
// (driven by audio time, not wall clock), leaving Levels/Averages
// reporting the most recent of those popped frames.
func (m *Meter) Advance(deltaFrames int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := deltaFrames / m.frameSize
	if n <= 0 {
		return
	}
	if n > len(m.queue) {
		n = len(m.queue)
	}
	if n == 0 {
		return
	}
	m.current = m.queue[n-1]
	m.queue = m.queue[n:]
}

// Levels returns the current per-channel peak levels.
func (m *Meter) Levels() []float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]float32, len(m.current.Peak))
	copy(out, m.current.Peak)
	return out
}

// Averages returns the current per-channel RMS averages.
func (m *Meter) Averages() []float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]float32, len(m.current.Average))
	copy(out, m.current.Average)
	return out
}
