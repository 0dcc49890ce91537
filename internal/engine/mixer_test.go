package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/proteus-audio/proteus/internal/audio"
	"github.com/proteus-audio/proteus/internal/dsp/chain"
	"github.com/proteus-audio/proteus/internal/dsp/effects"
	"github.com/proteus-audio/proteus/internal/ring"
)

const (
	testRate     = 8000
	testChannels = 2
)

func newTestMixer(store *ring.Store, fx []effects.Effect) (*Mixer, *effects.Context) {
	ctx := &effects.Context{SampleRate: testRate, Channels: testChannels}
	m := New(store, Settings{SampleRate: testRate, Channels: testChannels}, chain.New(fx), ctx)
	return m, ctx
}

func constSamples(n int, v float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func collect(t *testing.T, m *Mixer) []audio.SamplesBuffer {
	t.Helper()
	var chunks []audio.SamplesBuffer
	timeout := time.After(5 * time.Second)
	for {
		select {
		case c, ok := <-m.Output():
			if !ok {
				return chunks
			}
			chunks = append(chunks, c)
		case <-timeout:
			t.Fatal("mix thread did not drain in time")
		}
	}
}

func TestRunMixesTwoTracksInLockstep(t *testing.T) {
	store := ring.NewStore()
	total := m4800() * 2

	kA, bufA := store.Add(total * 2)
	kB, bufB := store.Add(total * 2)
	bufA.Push(constSamples(total, 0.25))
	bufB.Push(constSamples(total, 0.5))
	store.MarkFinished(kA)
	store.MarkFinished(kB)

	m, _ := newTestMixer(store, nil)
	go m.Run()
	chunks := collect(t, m)

	var all []float32
	for _, c := range chunks {
		require.Zero(t, len(c.Samples)%testChannels, "chunk not frame-aligned")
		all = append(all, c.Samples...)
	}
	require.Equal(t, total, len(all))
	for i, v := range all {
		require.InDelta(t, 0.75, v, 1e-6, "sample %d", i)
	}
}

// m4800 is the test session's min mix chunk: 300ms at 8kHz stereo.
func m4800() int {
	return int(minMixMS / 1000 * testRate * testChannels)
}

func TestRunFlushesPartialFinalBlock(t *testing.T) {
	store := ring.NewStore()
	n := m4800() + 702*testChannels // deliberately not a block multiple

	k, buf := store.Add(n * 2)
	buf.Push(constSamples(n, 0.1))
	store.MarkFinished(k)

	m, _ := newTestMixer(store, nil)
	go m.Run()
	chunks := collect(t, m)

	totalOut := 0
	for _, c := range chunks {
		totalOut += len(c.Samples)
	}
	require.Equal(t, n, totalOut, "conservation of samples across partial final block")
}

func TestRunAccumulatedDurationMatchesSampleCount(t *testing.T) {
	store := ring.NewStore()
	n := m4800() * 3

	k, buf := store.Add(n * 2)
	buf.Push(constSamples(n, 0.2))
	store.MarkFinished(k)

	m, _ := newTestMixer(store, nil)
	go m.Run()
	chunks := collect(t, m)

	var dur time.Duration
	for _, c := range chunks {
		dur += c.Duration()
	}
	wantSec := float64(n) / float64(testChannels) / float64(testRate)
	require.InDelta(t, wantSec, dur.Seconds(), 1.0/float64(testRate))
}

func TestMixChunkAppliesWeightAndPan(t *testing.T) {
	store := ring.NewStore()
	k, buf := store.Add(1024)
	buf.Push(constSamples(8, 1))

	m, _ := newTestMixer(store, nil)
	m.SetWeight(k, Weight{Level: 0.5, Pan: 1}) // hard right

	out := m.mixChunk(store.Snapshot(), make([]float32, 8))
	for f := 0; f < 4; f++ {
		require.InDelta(t, 0.0, out[f*2], 1e-6, "left channel at hard right pan")
		require.InDelta(t, 0.5, out[f*2+1], 1e-6, "right channel keeps the level")
	}
}

func TestMixChunkCrossfadeGainsSumToOne(t *testing.T) {
	store := ring.NewStore()
	frames := crossfadeFrames(testRate)
	n := frames * testChannels

	oldKey, oldBuf := store.Add(n * 2)
	newKey, newBuf := store.Add(n * 2)
	oldBuf.Push(constSamples(n, 1))
	newBuf.Push(constSamples(n, 1))

	m, _ := newTestMixer(store, nil)
	m.fading.Start(oldKey, frames)
	m.fading.StartIn(newKey, frames)

	out := m.mixChunk(store.Snapshot(), make([]float32, n))
	for f := 0; f < frames; f++ {
		// Both inputs are constant 1, so the mixed sample is exactly
		// g_old + g_new at that frame.
		require.InDelta(t, 1.0, out[f*testChannels], 1e-5, "frame %d", f)
	}
}

func TestMixChunkFadeOutIsLinearPerFrame(t *testing.T) {
	store := ring.NewStore()
	frames := crossfadeFrames(testRate)
	n := frames * testChannels

	k, buf := store.Add(n * 2)
	buf.Push(constSamples(n, 1))

	m, _ := newTestMixer(store, nil)
	m.fading.Start(k, frames)

	out := m.mixChunk(store.Snapshot(), make([]float32, n))
	for f := 0; f < frames; f++ {
		want := float64(frames-f) / float64(frames)
		require.InDelta(t, want, out[f*testChannels], 1e-5, "frame %d", f)
	}
}

func TestShuffleEventRotatesSlotAtBoundary(t *testing.T) {
	store := ring.NewStore()
	oldKey, oldBuf := store.Add(4096)
	oldBuf.Push(constSamples(256, 0.5))

	m, _ := newTestMixer(store, nil)

	var spawnedSlot int
	var spawnedAt int64
	spawn := func(slot int, atMS int64) (ring.Key, Weight, error) {
		spawnedSlot = slot
		spawnedAt = atMS
		k, buf := store.Add(4096)
		buf.Push(constSamples(256, 0.25))
		return k, Weight{Level: 1}, nil
	}
	m.SetShufflePlan([]ring.Key{oldKey}, []ShuffleEvent{{AtMS: 1000, Slots: []int{0}}}, spawn)

	// Before the boundary nothing rotates.
	m.sourceFrames = int64(testRate) / 2
	m.applyShuffleEvents()
	require.False(t, m.fading.Active(oldKey))
	require.Len(t, m.events, 1)

	// At the boundary the old key fades and the spawn fires.
	m.sourceFrames = int64(testRate)
	m.applyShuffleEvents()
	require.True(t, m.fading.Active(oldKey))
	require.Empty(t, m.events)
	require.Equal(t, 0, spawnedSlot)
	require.Equal(t, int64(1000), spawnedAt)
	require.NotEqual(t, oldKey, m.slotKeys[0])
	require.True(t, m.fading.Active(m.slotKeys[0]), "incoming key fades in")
}

func TestChunkClampedToShuffleBoundary(t *testing.T) {
	store := ring.NewStore()
	k, buf := store.Add(m4800() * 8)
	buf.Push(constSamples(m4800()*4, 0.5))
	store.MarkFinished(k)

	m, _ := newTestMixer(store, nil)
	boundaryMS := int64(100) // 800 frames at 8kHz, well inside the first block
	rotated := make(chan struct{})
	spawn := func(slot int, atMS int64) (ring.Key, Weight, error) {
		close(rotated)
		nk, nbuf := store.Add(m4800() * 8)
		nbuf.Push(constSamples(m4800(), 0.5))
		store.MarkFinished(nk)
		return nk, Weight{Level: 1}, nil
	}
	m.SetShufflePlan([]ring.Key{k}, []ShuffleEvent{{AtMS: boundaryMS, Slots: []int{0}}}, spawn)

	go m.Run()
	chunks := collect(t, m)
	select {
	case <-rotated:
	default:
		t.Fatal("shuffle event never fired")
	}

	// The old source's full 4 blocks all come out (the new source overlaps
	// it rather than extending the timeline), and the first mixed span is
	// clamped to the event boundary: 100ms * 8kHz = 800 frames.
	totalOut := 0
	for _, c := range chunks {
		totalOut += len(c.Samples)
	}
	require.Equal(t, m4800()*4, totalOut)
}

func TestAbortStopsRunPromptly(t *testing.T) {
	store := ring.NewStore()
	_, buf := store.Add(1 << 20)
	buf.Push(constSamples(1024, 0.1)) // forever short of a full block

	m, _ := newTestMixer(store, nil)
	done := make(chan struct{})
	go func() {
		m.Run()
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	m.Abort()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("mix thread did not exit after abort")
	}
}

func TestInlineUpdatePromotesZeroTransitionToImmediateSwap(t *testing.T) {
	store := ring.NewStore()
	m, _ := newTestMixer(store, nil)

	m.RequestInlineUpdate(PendingUpdate{Chain: []effects.Effect{effects.NewGain(0.5)}, TransitionMS: 0})
	m.applyPendingChainUpdate()
	require.Nil(t, m.transition)

	out := m.activeChain.Process([]float32{1, 1}, m.ctx, false)
	require.InDelta(t, 0.5, out[0], 1e-6)
}

func TestInlineUpdateWithTransitionBlendsChains(t *testing.T) {
	store := ring.NewStore()
	m, _ := newTestMixer(store, nil)

	m.RequestInlineUpdate(PendingUpdate{Chain: []effects.Effect{effects.NewGain(0.0)}, TransitionMS: 500})
	m.applyPendingChainUpdate()
	require.NotNil(t, m.transition)

	// A 500ms transition at 8kHz spans 4000 frames; pushing the full
	// window through blends a constant 1.0 input from old gain 1 down to
	// new gain 0.
	in := constSamples(4000*testChannels, 1)
	out := m.transition.Process(in, m.ctx, false)
	require.InDelta(t, 1.0, out[0], 1e-3, "transition start is all old chain")
	last := out[len(out)-1]
	require.Less(t, float64(last), 0.01, "transition end is all new chain")
}

func TestHardResetClearsPremixAndTail(t *testing.T) {
	store := ring.NewStore()
	m, _ := newTestMixer(store, nil)
	m.premix = constSamples(128, 0.3)
	m.tail = constSamples(64, 0.2)

	m.RequestReset([]effects.Effect{effects.NewGain(1)})
	m.applyPendingChainUpdate()
	require.Empty(t, m.premix)
	require.Empty(t, m.tail)
}

func TestChannelGainsCenterPanKeepsLevel(t *testing.T) {
	g := channelGains(Weight{Level: 0.8, Pan: 0}, 2)
	require.InDelta(t, 0.8, g[0], 1e-6)
	require.InDelta(t, 0.8, g[1], 1e-6)
}
