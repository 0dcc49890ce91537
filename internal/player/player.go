// Package player implements the transport state machine that owns a
// playback generation's mix thread and sink, and mediates Play/Pause/Seek
// requests from the outside against the internal state that only the mix
// thread itself can safely advance.
package player

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/proteus-audio/proteus/internal/audio"
	"github.com/proteus-audio/proteus/internal/config"
	"github.com/proteus-audio/proteus/internal/engine"
	"github.com/proteus-audio/proteus/internal/logging"
	"github.com/proteus-audio/proteus/internal/meter"
	"github.com/proteus-audio/proteus/internal/ring"
)

// State is one node of the transport state machine.
type State int

const (
	Init State = iota
	Resuming
	Playing
	Pausing
	Paused
	Stopping
	Stopped
	Finished
)

func (s State) String() string {
	switch s {
	case Init:
		return "init"
	case Resuming:
		return "resuming"
	case Playing:
		return "playing"
	case Pausing:
		return "pausing"
	case Paused:
		return "paused"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	case Finished:
		return "finished"
	default:
		return "unknown"
	}
}

const normalFadeMS = 100.0

// Generation bundles everything that belongs to one playback attempt: the
// mix thread and its output, started at a particular source timestamp.
// Seek discards a Generation wholesale rather than trying to rewind it.
type Generation struct {
	Mixer   *engine.Mixer
	StartAt time.Duration
	ID      uuid.UUID
}

// SourceFactory builds a fresh Generation starting at ts. The controller
// calls it once at construction and again on every Seek; it owns spawning
// whatever decoder workers and ring store the new generation needs.
type SourceFactory func(ts time.Duration) (*Generation, error)

// Controller is the playback transport: it owns the current Generation,
// mediates state transitions, and tracks append jitter and audio-time.
type Controller struct {
	cfg     config.Settings
	factory SourceFactory

	mu    sync.Mutex
	state State
	gen   *Generation

	generationSeq atomic.Uint64

	audioTime   time.Duration
	lastAppend  time.Time
	jitterEMA   float64
	jitterMax   float64
	lateCount   atomic.Uint64
	totalChunks atomic.Uint64

	meter *meter.Meter

	sampleRate int
	channels   int

	outCh chan audio.SamplesBuffer
}

// New creates a controller bound to factory, starting in Init. Call
// Play to begin the first generation.
func New(cfg config.Settings, sampleRate, channels int, factory SourceFactory) *Controller {
	// The forwarding channel doubles as the sink queue: it must hold the
	// startup gate's chunks, and caps at max_sink_chunks when that bound
	// is configured so the appender blocks instead of growing unbounded.
	queue := 1
	if cfg.StartSinkChunks > queue {
		queue = cfg.StartSinkChunks
	}
	if cfg.MaxSinkChunks > queue {
		queue = cfg.MaxSinkChunks
	}
	return &Controller{
		cfg:        cfg,
		factory:    factory,
		state:      Init,
		sampleRate: sampleRate,
		channels:   channels,
		meter:      meter.New(sampleRate, channels, int(cfg.MeterRefreshHz)),
		outCh:      make(chan audio.SamplesBuffer, queue),
	}
}

// Output returns a channel that stays valid across Seek-driven generation
// changes: the drain loop forwards every generation's finished chunks
// into it, so a sink can subscribe once for the controller's whole
// lifetime instead of re-subscribing after every seek.
func (c *Controller) Output() <-chan audio.SamplesBuffer { return c.outCh }

// State returns the controller's current transport state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// AudioTime returns the monotonic audio-timeline clock: the sum of
// consumed chunk durations, independent of wall-clock pauses.
func (c *Controller) AudioTime() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.audioTime
}

// Meter exposes the shared output meter for UI polling.
func (c *Controller) Meter() *meter.Meter { return c.meter }

// Play starts playback from Init/Stopped/Finished at the beginning, or
// resumes from Paused with the configured fade-in.
func (c *Controller) Play() error {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()

	switch state {
	case Init, Stopped, Finished:
		return c.spawn(0, c.cfg.StartupFadeMS)
	case Paused:
		c.setState(Resuming)
		return nil
	case Playing, Resuming:
		return nil
	default:
		return nil
	}
}

// Pause requests a fade-out to Paused. The mix thread resolves the
// transition at its next opportunity; until then the state is Pausing.
func (c *Controller) Pause() {
	c.mu.Lock()
	if c.state == Playing || c.state == Resuming {
		c.state = Pausing
	}
	c.mu.Unlock()
}

// Stop requests a full teardown of the current generation.
func (c *Controller) Stop() {
	c.mu.Lock()
	gen := c.gen
	c.state = Stopping
	c.mu.Unlock()
	if gen != nil {
		gen.Mixer.Abort()
	}
	c.setState(Stopped)
}

// Seek fades out the current generation, discards it, and spawns a new one
// at ts, resuming playback if the controller was previously playing.
func (c *Controller) Seek(ts time.Duration) error {
	c.mu.Lock()
	wasPlaying := c.state == Playing || c.state == Resuming
	gen := c.gen
	c.mu.Unlock()

	if gen != nil {
		fadeOut := c.cfg.SeekFadeOutMS
		if !wasPlaying {
			fadeOut = 0
		}
		gen.Mixer.RequestFadeOut(float64(fadeOut))
		// No join by thread id: poll the drop-guard flag, bounded to the
		// nominal fade plus a safety margin, then hard-abort.
		deadline := time.Now().Add(time.Duration(fadeOut)*time.Millisecond + time.Second)
		for gen.Mixer.PlaybackThreadExists() && time.Now().Before(deadline) {
			time.Sleep(10 * time.Millisecond)
		}
		gen.Mixer.Abort()
	}

	fadeMS := c.cfg.SeekFadeInMS
	if !wasPlaying {
		fadeMS = 0
	}
	if err := c.spawn(ts, fadeMS); err != nil {
		return err
	}
	if !wasPlaying {
		c.setState(Paused)
	}
	return nil
}

func (c *Controller) spawn(ts time.Duration, fadeInMS float64) error {
	gen, err := c.factory(ts)
	if err != nil {
		return err
	}
	gen.ID = uuid.New()
	c.mu.Lock()
	c.gen = gen
	c.audioTime = ts
	c.state = Resuming
	c.mu.Unlock()

	go gen.Mixer.Run()
	go c.drain(gen, fadeInMS)
	return nil
}

// drain runs on its own goroutine for the lifetime of one generation,
// pulling finished chunks off the mix thread and updating audio-time,
// jitter, and meter state. It is the controller's only writer of those
// fields, so no lock is needed around the accounting beneath it besides
// the brief critical sections already present.
func (c *Controller) drain(gen *Generation, fadeInMS float64) {
	_ = fadeInMS
	first := c.generationSeq.Add(1) == 1

	// Startup pre-roll: a configurable run of silence ahead of the first
	// generation's real audio, giving the device pipeline time to settle.
	if first && c.cfg.StartupSilenceMS > 0 {
		n := c.sampleRate * c.cfg.StartupSilenceMS / 1000 * c.channels
		c.outCh <- audio.SamplesBuffer{Samples: make([]float32, n), Channels: c.channels, SampleRate: c.sampleRate}
	}

	for chunk := range gen.Mixer.Output() {
		c.mu.Lock()
		if c.gen != gen {
			c.mu.Unlock()
			return
		}
		now := time.Now()
		if !c.lastAppend.IsZero() {
			deltaMS := float64(now.Sub(c.lastAppend)) / float64(time.Millisecond)
			frames := len(chunk.Samples) / c.channels
			expectedMS := float64(frames) / float64(c.sampleRate) * 1000
			c.jitterEMA = c.jitterEMA*0.9 + deltaMS*0.1
			if deltaMS > c.jitterMax {
				c.jitterMax = deltaMS
			}
			if expectedMS > 0 && deltaMS > 1.2*expectedMS {
				c.lateCount.Add(1)
			}
			if c.cfg.AppendJitterLogMS > 0 && deltaMS > float64(c.cfg.AppendJitterLogMS) {
				logging.L().Warn("player: late chunk append", "delta_ms", deltaMS, "expected_ms", expectedMS)
			}
		}
		c.lastAppend = now
		c.totalChunks.Add(1)
		c.audioTime += chunk.Duration()

		switch c.state {
		case Pausing:
			c.state = Paused
		case Resuming:
			c.state = Playing
		}
		state := c.state
		c.mu.Unlock()

		c.meter.Feed(chunk.Samples, chunk.Channels)
		c.meter.Advance(len(chunk.Samples) / chunk.Channels)

		if c.cfg.MaxSinkChunks > 0 {
			// Bounded sink queue: block here so backpressure reaches the
			// mix thread instead of growing the queue past its cap.
			c.outCh <- chunk
		} else {
			select {
			case c.outCh <- chunk:
			default:
				// Unbounded mode has no consumer contract; drop rather
				// than stall a generation nobody is listening to.
			}
		}

		if state == Paused || state == Stopped {
			gen.Mixer.Abort()
		}
	}

	c.mu.Lock()
	if c.gen == gen && c.state != Stopped {
		c.state = Finished
	}
	c.mu.Unlock()
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// JitterStats reports the rolling EMA, max, and late-append count of the
// current generation's chunk delivery timing.
func (c *Controller) JitterStats() (emaMS, maxMS float64, lateCount uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.jitterEMA, c.jitterMax, c.lateCount.Load()
}

// SetWeight forwards to the active generation's mixer, if any.
func (c *Controller) SetWeight(key ring.Key, w engine.Weight) {
	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()
	if gen == nil {
		return
	}
	gen.Mixer.SetWeight(key, w)
}

// GenerationID returns the current generation's correlation id, or the nil
// UUID if no generation has been spawned yet.
func (c *Controller) GenerationID() uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen == nil {
		return uuid.UUID{}
	}
	return c.gen.ID
}

// NewReporter builds a meter.Reporter that polls this controller's state
// on interval and forwards snapshots to onReport. Callers own Start/Stop.
func (c *Controller) NewReporter(interval time.Duration, onReport func(meter.Snapshot)) *meter.Reporter {
	return meter.NewReporter(interval, c.snapshot, onReport)
}

func (c *Controller) snapshot() meter.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	avg := c.meter.Averages()
	var volume float64
	for _, v := range avg {
		if float64(v) > volume {
			volume = float64(v)
		}
	}
	var genID uuid.UUID
	if c.gen != nil {
		genID = c.gen.ID
	}
	return meter.Snapshot{
		Time:         time.Now(),
		Volume:       volume,
		Duration:     c.audioTime,
		Playing:      c.state == Playing,
		GenerationID: genID,
	}
}
