// Package sink drives the platform output device, pulling finished chunks
// off the mix thread's output channel and handing them to the operating
// system's audio backend.
package sink

import (
	"sync"
	"unsafe"

	"github.com/ebitengine/oto/v3"

	"github.com/proteus-audio/proteus/internal/audio"
	"github.com/proteus-audio/proteus/internal/logging"
)

// Sink owns an oto output device and feeds it from a channel of finished
// mix-thread chunks. Chunks arriving faster than the device drains them
// queue up in pending; chunks arriving slower than the device wants them
// produce silence, exactly like a starved ring buffer would.
type Sink struct {
	ctx    *oto.Context
	player *oto.Player

	in <-chan audio.SamplesBuffer

	mu       sync.Mutex
	pending  []float32 // leftover float32s from a partially-consumed chunk
	started  bool
	closed   bool
	channels int
}

// Open creates an output device at sampleRate/channels and begins reading
// chunks from in (typically engine.Mixer.Output()). The backend offers no
// named-device selection, so anything but the default is reported and
// ignored rather than failing the session.
func Open(sampleRate, channels int, device string, in <-chan audio.SamplesBuffer) (*Sink, error) {
	if device != "" && device != "default" {
		logging.L().Warn("sink: named output devices are not supported, using system default", "device", device)
	}
	opts := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatFloat32LE,
		BufferSize:   0, // let oto pick its platform default
	}
	ctx, ready, err := oto.NewContext(opts)
	if err != nil {
		return nil, err
	}
	<-ready

	s := &Sink{ctx: ctx, in: in, channels: channels}
	s.player = ctx.NewPlayer(s)
	return s, nil
}

// Read implements io.Reader for oto.Player: it is called on oto's own
// callback goroutine and must never block indefinitely, since a starved
// sink should emit silence rather than stall the device.
func (s *Sink) Read(p []byte) (int, error) {
	need := len(p) / 4
	out := make([]float32, 0, need)

	s.mu.Lock()
	if len(s.pending) > 0 {
		n := len(s.pending)
		if n > need {
			n = need
		}
		out = append(out, s.pending[:n]...)
		s.pending = s.pending[n:]
	}
	s.mu.Unlock()

fillLoop:
	for len(out) < need {
		select {
		case chunk, ok := <-s.in:
			if !ok {
				for len(out) < need {
					out = append(out, 0)
				}
				break fillLoop
			}
			remaining := need - len(out)
			if len(chunk.Samples) > remaining {
				out = append(out, chunk.Samples[:remaining]...)
				s.mu.Lock()
				s.pending = append(s.pending, chunk.Samples[remaining:]...)
				s.mu.Unlock()
			} else {
				out = append(out, chunk.Samples...)
			}
		default:
			// Nothing ready yet: pad with silence rather than block, so a
			// momentary producer stall never stutters the device clock.
			for len(out) < need {
				out = append(out, 0)
			}
		}
	}

	if len(out) == 0 {
		return 0, nil
	}
	n := len(out) * 4
	if n > len(p) {
		n = len(p)
	}
	copy(p[:n], (*[1 << 30]byte)(unsafe.Pointer(&out[0]))[:n])
	return n, nil
}

// Start begins playback. Safe to call once; subsequent calls are no-ops.
func (s *Sink) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.player.Play()
	s.started = true
}

// Stop pauses playback without releasing the device.
func (s *Sink) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	s.player.Pause()
	s.started = false
}

// IsStarted reports whether playback is currently running.
func (s *Sink) IsStarted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Close releases the player and output device. Safe to call more than
// once.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.player.Close()
}
