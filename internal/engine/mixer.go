// Package engine implements the mix/DSP thread: the component that drains
// every active track buffer in lockstep, applies per-track weight/pan and
// shuffle-crossfade gain, pushes the result through a premix FIFO into the
// effect chain, and emits finished chunks to the output sink.
package engine

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/proteus-audio/proteus/internal/audio"
	"github.com/proteus-audio/proteus/internal/dsp/chain"
	"github.com/proteus-audio/proteus/internal/dsp/effects"
	"github.com/proteus-audio/proteus/internal/logging"
	"github.com/proteus-audio/proteus/internal/ring"
)

const (
	minMixMS           = 300.0
	shuffleCrossfadeMS = 5.0
)

// Weight is a track's static level/pan, set independently of any
// crossfade in progress.
type Weight struct {
	Level float32
	Pan   float32
}

// ShuffleEvent rotates the listed slots to new sources once the source
// timeline reaches AtMS. Events are handed to the mix thread sorted by
// time and consumed in order.
type ShuffleEvent struct {
	AtMS  int64
	Slots []int
}

// SpawnFunc fills a slot with a freshly chosen source at a shuffle event:
// it picks the slot's next candidate, registers a new ring buffer, starts
// its decoder at atMS, and returns the new key with its static weight.
type SpawnFunc func(slot int, atMS int64) (ring.Key, Weight, error)

// PendingUpdate is a caller-submitted effect chain replacement. A
// TransitionMS of zero is promoted to an immediate swap rather than a
// Transition, per the inline-swap design.
type PendingUpdate struct {
	Chain        []effects.Effect
	TransitionMS float64
}

// Settings configures one mix thread instance.
type Settings struct {
	SampleRate int
	Channels   int
}

// Mixer is the mix/DSP thread's state, shared with the player controller
// through the exported atomics and channels below.
type Mixer struct {
	store  *ring.Store
	set    Settings
	out    chan audio.SamplesBuffer

	weightsMu sync.Mutex
	weights   map[ring.Key]Weight

	fading *fadingSet

	chainMu     sync.Mutex
	activeChain *chain.Chain
	transition  *chain.Transition
	pendingMu   sync.Mutex
	pending     *PendingUpdate

	effectsReset     atomic.Uint64
	lastSeenReset    uint64
	abort            atomic.Bool
	playbackExists   atomic.Bool

	premix     []float32
	premixMax  int
	tail       []float32

	minMixSamples int
	ctx           *effects.Context

	slotKeys []ring.Key
	events   []ShuffleEvent
	spawn    SpawnFunc

	fadeMu           sync.Mutex
	fadeOutTotal     int // frames; 0 = no fade-out in progress
	fadeOutRemaining int

	sourceFrames int64 // frames of source timeline consumed so far
}

// New creates a mix thread bound to store, emitting SamplesBuffer values
// on the returned channel (capacity 1, matching the reference's
// single-slot handoff to the output sink).
func New(store *ring.Store, set Settings, initialChain *chain.Chain, ctx *effects.Context) *Mixer {
	minMixSamples := int(minMixMS / 1000 * float64(set.SampleRate) * float64(set.Channels))
	premixMax := minMixSamples * 4
	if premixMax < minMixSamples {
		premixMax = minMixSamples
	}
	m := &Mixer{
		store:         store,
		set:           set,
		out:           make(chan audio.SamplesBuffer, 1),
		weights:       make(map[ring.Key]Weight),
		fading:        newFadingSet(),
		activeChain:   initialChain,
		minMixSamples: minMixSamples,
		premixMax:     premixMax,
		ctx:           ctx,
	}
	return m
}

// Output returns the channel the mix thread publishes finished chunks on.
func (m *Mixer) Output() <-chan audio.SamplesBuffer { return m.out }

// Abort requests the mix thread stop at its next iteration boundary.
func (m *Mixer) Abort() {
	m.abort.Store(true)
	m.store.AbortAll()
}

// RequestFadeOut starts a linear output fade over ms; once it completes
// the mixer aborts itself. A non-positive ms aborts immediately. Used by
// the transport's seek/stop paths so teardown never clicks.
func (m *Mixer) RequestFadeOut(ms float64) {
	frames := int(ms / 1000 * float64(m.set.SampleRate))
	if frames < 1 {
		m.Abort()
		return
	}
	m.fadeMu.Lock()
	m.fadeOutTotal = frames
	m.fadeOutRemaining = frames
	m.fadeMu.Unlock()
	m.store.Broadcast()
}

// applyFadeOut scales an outgoing block by the in-progress teardown fade,
// arming the abort flag when the fade window has fully elapsed.
func (m *Mixer) applyFadeOut(processed []float32) {
	m.fadeMu.Lock()
	defer m.fadeMu.Unlock()
	if m.fadeOutTotal <= 0 {
		return
	}
	channels := m.set.Channels
	frames := len(processed) / channels
	for f := 0; f < frames; f++ {
		fr := m.fadeOutRemaining - f
		if fr < 0 {
			fr = 0
		}
		g := float32(fr) / float32(m.fadeOutTotal)
		for ch := 0; ch < channels; ch++ {
			processed[f*channels+ch] *= g
		}
	}
	m.fadeOutRemaining -= frames
	if m.fadeOutRemaining <= 0 {
		m.abort.Store(true)
		m.store.AbortAll()
	}
}

// PlaybackThreadExists reports whether Run is currently executing.
func (m *Mixer) PlaybackThreadExists() bool { return m.playbackExists.Load() }

// SetWeight updates a track's static level/pan without touching any
// crossfade currently in progress for that key.
func (m *Mixer) SetWeight(k ring.Key, w Weight) {
	m.weightsMu.Lock()
	m.weights[k] = w
	m.weightsMu.Unlock()
}

// StartFade begins a shuffle-crossfade fade-out for k over the session's
// standard crossfade window.
func (m *Mixer) StartFade(k ring.Key) {
	frames := crossfadeFrames(m.set.SampleRate)
	m.fading.Start(k, frames)
}

func crossfadeFrames(sampleRate int) int {
	f := int(float64(sampleRate) * shuffleCrossfadeMS / 1000)
	if f < 1 {
		f = 1
	}
	return f
}

// SetShufflePlan hands the mix thread its slot→key assignment and the
// schedule of future rotations, called once before Run. spawn may be nil
// when the plan has no events.
func (m *Mixer) SetShufflePlan(slotKeys []ring.Key, events []ShuffleEvent, spawn SpawnFunc) {
	m.slotKeys = slotKeys
	m.events = events
	m.spawn = spawn
}

// RequestReset bumps the hard-reset generation counter; the mix thread
// applies it at the start of its next iteration.
func (m *Mixer) RequestReset(fx []effects.Effect) {
	m.chainMu.Lock()
	m.activeChain = chain.New(fx)
	m.transition = nil
	m.chainMu.Unlock()
	m.effectsReset.Add(1)
}

// RequestInlineUpdate submits a crossfaded effect-chain replacement. A
// TransitionMS of zero is handled as an immediate swap.
func (m *Mixer) RequestInlineUpdate(u PendingUpdate) {
	m.pendingMu.Lock()
	m.pending = &u
	m.pendingMu.Unlock()
}

// Run executes the mix loop on the calling goroutine until Abort is
// called and every source and effect tail has drained. Callers spawn it
// with `go m.Run()`.
func (m *Mixer) Run() {
	m.playbackExists.Store(true)
	defer m.playbackExists.Store(false)
	defer close(m.out)
	// sync.Cond has no timeout; broadcast every 20 ms so Wait never parks longer.
	stopTick := make(chan struct{})
	defer close(stopTick)
	go func() {
		t := time.NewTicker(20 * time.Millisecond)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				m.store.Broadcast()
			case <-stopTick:
				return
			}
		}
	}()

	scratch := make([]float32, m.minMixSamples)

	for {
		if m.abort.Load() {
			return
		}

		m.applyShuffleEvents()
		m.applyPendingChainUpdate()

		snap := m.store.Snapshot()
		activeLen, finishedOnlyLen := m.minAvailable(snap)

		if activeLen < m.minMixSamples && finishedOnlyLen == 0 {
			if m.allDrained(snap) {
				if len(m.events) > 0 {
					// Every current source ended before the next scheduled
					// rotation; jump the source timeline to the event so the
					// replacement slots still spawn.
					m.sourceFrames = m.events[0].AtMS * int64(m.set.SampleRate) / 1000
					continue
				}
				if len(m.premix) > 0 {
					m.emit(true)
					continue
				}
				m.drainChain()
				return
			}
			m.store.Wait()
			continue
		}

		chunk := m.minMixSamples
		if activeLen > 0 && activeLen < chunk {
			chunk = activeLen
		} else if activeLen == 0 {
			chunk = finishedOnlyLen
			if chunk > m.minMixSamples {
				chunk = m.minMixSamples
			}
		}
		// Soft cap: never mix more than the premix FIFO has room for.
		if room := m.premixMax - len(m.premix); chunk > room {
			chunk = room - room%m.set.Channels
		}
		// Clamp to the next shuffle boundary so crossfades start on a
		// frame that is sample-aligned with the event's scheduled time.
		if len(m.events) > 0 {
			eventFrame := m.events[0].AtMS * int64(m.set.SampleRate) / 1000
			remaining := eventFrame - m.sourceFrames
			if remaining > 0 && int64(chunk) > remaining*int64(m.set.Channels) {
				chunk = int(remaining) * m.set.Channels
			}
		}
		if chunk <= 0 {
			m.store.Wait()
			continue
		}
		if chunk > len(scratch) {
			scratch = make([]float32, chunk)
		}
		mixed := m.mixChunk(snap, scratch[:chunk])
		m.sourceFrames += int64(chunk / m.set.Channels)

		m.premix = append(m.premix, mixed...)
		if len(m.premix) >= m.minMixSamples {
			m.emit(false)
		}
		m.cleanupFinished(snap)
	}
}

// applyShuffleEvents rotates every due event's slots: the outgoing key
// starts its crossfade fade-out and keeps draining until it expires, while
// the spawn callback brings up the replacement source.
func (m *Mixer) applyShuffleEvents() {
	for len(m.events) > 0 {
		ev := m.events[0]
		if m.sourceFrames*1000 < ev.AtMS*int64(m.set.SampleRate) {
			return
		}
		m.events = m.events[1:]
		for _, slot := range ev.Slots {
			if slot < 0 || slot >= len(m.slotKeys) {
				continue
			}
			m.StartFade(m.slotKeys[slot])
			if m.spawn == nil {
				continue
			}
			key, w, err := m.spawn(slot, ev.AtMS)
			if err != nil {
				logging.L().Warn("engine: shuffle slot rotation failed, keeping silence", "slot", slot, "err", err)
				continue
			}
			m.slotKeys[slot] = key
			m.SetWeight(key, w)
			m.fading.StartIn(key, crossfadeFrames(m.set.SampleRate))
		}
	}
}

func (m *Mixer) applyPendingChainUpdate() {
	reset := m.effectsReset.Load()
	if reset != m.lastSeenReset {
		m.lastSeenReset = reset
		m.chainMu.Lock()
		m.transition = nil
		ac := m.activeChain
		m.chainMu.Unlock()
		ac.Reset()
		m.premix = m.premix[:0]
		m.tail = m.tail[:0]
		return
	}

	m.pendingMu.Lock()
	upd := m.pending
	m.pending = nil
	m.pendingMu.Unlock()
	if upd == nil {
		return
	}
	newChain := chain.New(upd.Chain)
	newChain.WarmUp(m.ctx)

	if upd.TransitionMS <= 0 {
		m.chainMu.Lock()
		m.activeChain = newChain
		m.transition = nil
		m.chainMu.Unlock()
		return
	}
	m.chainMu.Lock()
	oldChain := m.activeChain
	m.transition = chain.NewTransition(oldChain, newChain, upd.TransitionMS, m.set.SampleRate)
	m.activeChain = newChain
	m.chainMu.Unlock()
}

func (m *Mixer) minAvailable(snap []ring.Snapshot) (activeLen, finishedOnlyLen int) {
	first := true
	firstFinished := true
	for _, s := range snap {
		n := s.Buffer.Len()
		if s.Finished {
			// An exhausted finished buffer is no longer a participant; it
			// must not pull the drain minimum down to zero while siblings
			// still hold samples.
			if n == 0 {
				continue
			}
			if firstFinished || n < finishedOnlyLen {
				finishedOnlyLen = n
				firstFinished = false
			}
			continue
		}
		if first || n < activeLen {
			activeLen = n
			first = false
		}
	}
	if first {
		activeLen = 0
	}
	if firstFinished {
		finishedOnlyLen = 0
	}
	return
}

func (m *Mixer) allDrained(snap []ring.Snapshot) bool {
	for _, s := range snap {
		if !s.Finished || s.Buffer.Len() > 0 {
			return false
		}
	}
	return true
}

func (m *Mixer) mixChunk(snap []ring.Snapshot, scratch []float32) []float32 {
	for i := range scratch {
		scratch[i] = 0
	}
	buf := make([]float32, len(scratch))
	channels := m.set.Channels

	for _, s := range snap {
		n := s.Buffer.Pop(buf[:len(scratch)], len(scratch))
		if n == 0 {
			continue
		}
		m.weightsMu.Lock()
		w, ok := m.weights[s.Key]
		m.weightsMu.Unlock()
		if !ok {
			w = Weight{Level: 1}
		}
		gains := channelGains(w, channels)

		popped := n / channels
		remaining, total, fadeIn, fading := m.fading.State(s.Key)
		for f := 0; f < popped; f++ {
			fade := float32(1)
			if fading {
				fr := remaining - f
				if fr < 0 {
					fr = 0
				}
				fade = float32(fr) / float32(total)
				if fadeIn {
					fade = 1 - fade
				}
			}
			for ch := 0; ch < channels; ch++ {
				scratch[f*channels+ch] += buf[f*channels+ch] * gains[ch] * fade
			}
		}
		if fading {
			m.fading.Advance(s.Key, popped)
		}
	}
	out := make([]float32, len(scratch))
	copy(out, scratch)
	return out
}

// channelGains expands a track's level/pan into one gain per output
// channel. Pan only applies to a stereo session: a pan of -1 is hard left,
// +1 hard right, 0 leaves both channels at the track level.
func channelGains(w Weight, channels int) []float32 {
	gains := make([]float32, channels)
	for ch := range gains {
		gains[ch] = w.Level
	}
	if channels == 2 && w.Pan != 0 {
		pan := w.Pan
		if pan < -1 {
			pan = -1
		} else if pan > 1 {
			pan = 1
		}
		left, right := float32(1), float32(1)
		if pan > 0 {
			left = 1 - pan
		} else {
			right = 1 + pan
		}
		gains[0] = w.Level * left
		gains[1] = w.Level * right
	}
	return gains
}

func (m *Mixer) cleanupFinished(snap []ring.Snapshot) {
	for _, s := range snap {
		if s.Finished && s.Buffer.Len() == 0 {
			// An exhausted source ends its crossfade by definition: there
			// is nothing left to apply the fade gain to.
			m.fading.Drop(s.Key)
			m.store.Remove(s.Key)
		}
	}
}

// emit pops one effect-chain block off the premix FIFO, runs it through
// the active chain (or an in-flight transition), and publishes the result.
// force flushes a final partial block once every source has drained; the
// chain's drain flag stays false here because premixed samples remain by
// definition — tail flushing happens in drainChain.
func (m *Mixer) emit(force bool) {
	n := m.minMixSamples
	if n > len(m.premix) {
		if !force {
			return
		}
		n = len(m.premix)
	}
	if n == 0 {
		return
	}
	block := m.premix[:n]
	m.premix = m.premix[n:]

	m.chainMu.Lock()
	active := m.activeChain
	trans := m.transition
	m.chainMu.Unlock()

	var processed []float32
	if trans != nil {
		processed = trans.Process(block, m.ctx, false)
		if trans.Done() {
			m.chainMu.Lock()
			if m.transition == trans {
				m.transition = nil
			}
			m.chainMu.Unlock()
		}
	} else {
		processed = active.Process(block, m.ctx, false)
	}

	want := len(block)
	if len(processed) > want {
		m.tail = append(m.tail, processed[want:]...)
		processed = processed[:want]
	} else if len(processed) < want {
		pad := make([]float32, want-len(processed))
		if len(m.tail) > 0 {
			n := copy(pad, m.tail)
			m.tail = m.tail[n:]
		}
		processed = append(processed, pad...)
	}

	m.applyFadeOut(processed)
	m.publish(audio.SamplesBuffer{
		Samples:    processed,
		Channels:   m.set.Channels,
		SampleRate: m.set.SampleRate,
	})
}

// publish sends one finished chunk, polling the abort flag so a consumer
// that stopped reading can never wedge the mix thread for more than one
// timeout quantum.
func (m *Mixer) publish(b audio.SamplesBuffer) bool {
	for {
		select {
		case m.out <- b:
			return true
		case <-time.After(20 * time.Millisecond):
			if m.abort.Load() {
				return false
			}
		}
	}
}

// drainChain is the terminal phase: the premix FIFO is empty, so any
// samples still queued in the effects tail buffer go out first, then the
// chain runs with empty input and drain=true until every effect reports
// its tail exhausted.
func (m *Mixer) drainChain() {
	if len(m.tail) > 0 {
		m.publish(audio.SamplesBuffer{Samples: m.tail, Channels: m.set.Channels, SampleRate: m.set.SampleRate})
		m.tail = nil
	}

	m.chainMu.Lock()
	active := m.activeChain
	m.chainMu.Unlock()

	for i := 0; i < 64; i++ {
		if m.abort.Load() {
			return
		}
		out := active.Process(nil, m.ctx, true)
		if len(out) == 0 {
			return
		}
		if !m.publish(audio.SamplesBuffer{Samples: out, Channels: m.set.Channels, SampleRate: m.set.SampleRate}) {
			return
		}
	}
	logging.L().Warn("engine: drain did not terminate within bound, forcing stop")
}

// SourceTime returns how much source-timeline audio has been consumed so
// far, used by the controller's monotonic audio-time clock.
func (m *Mixer) SourceTime() time.Duration {
	secs := float64(m.sourceFrames) / float64(m.set.SampleRate)
	return time.Duration(secs * float64(time.Second))
}
