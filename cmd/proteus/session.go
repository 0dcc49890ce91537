package main

import (
	"fmt"
	"io"
	"math/rand"
	"os"
	"time"

	"github.com/proteus-audio/proteus/internal/config"
	"github.com/proteus-audio/proteus/internal/container"
	"github.com/proteus-audio/proteus/internal/decode"
	"github.com/proteus-audio/proteus/internal/dsp/chain"
	"github.com/proteus-audio/proteus/internal/dsp/effects"
	"github.com/proteus-audio/proteus/internal/engine"
	"github.com/proteus-audio/proteus/internal/ir"
	"github.com/proteus-audio/proteus/internal/logging"
	"github.com/proteus-audio/proteus/internal/player"
	"github.com/proteus-audio/proteus/internal/ring"
	"github.com/proteus-audio/proteus/internal/sink"
)

const defaultOutputChannels = 2

// session ties a container, its decode workers, the mix thread, the
// output sink, and the transport controller together for one `play`
// invocation.
type session struct {
	c          *container.Container
	ctrl       *player.Controller
	sink       *sink.Sink
	cfg        config.Settings
	sampleRate int
	channels   int
	gain       float32
	doneCh     chan struct{}
}

func newSession(path string, cfg config.Settings, effectsJSONPath string, gain float32) (*session, error) {
	c, err := container.Open(path)
	if err != nil {
		return nil, err
	}

	sampleRate, err := probeSampleRate(c)
	if err != nil {
		c.Close()
		return nil, err
	}
	channels := defaultOutputChannels

	effectSpecs := c.Settings.Effects
	if effectsJSONPath != "" {
		specs, err := loadEffectsJSON(effectsJSONPath)
		if err != nil {
			c.Close()
			return nil, err
		}
		effectSpecs = specs
	}

	s := &session{c: c, cfg: cfg, sampleRate: sampleRate, channels: channels, gain: gain, doneCh: make(chan struct{})}

	factory := func(ts time.Duration) (*player.Generation, error) {
		return s.buildGeneration(ts, cfg, effectSpecs)
	}
	s.ctrl = player.New(cfg, sampleRate, channels, factory)
	return s, nil
}

func (s *session) buildGeneration(ts time.Duration, cfg config.Settings, effectSpecs []container.EffectSpec) (*player.Generation, error) {
	if ts > 0 {
		logging.L().Warn("play: seeking to an exact timestamp mid-stream is not supported; restarting from the beginning")
	}

	store := ring.NewStore()
	trackBufferSize := max(s.sampleRate*10*s.channels, cfg.StartBufferMS*s.sampleRate*s.channels/1000*2)

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	plan := container.BuildShufflePlan(s.c.Settings.Tracks, rng)

	spawnSlot := func(slot int, trackID uint32) (ring.Key, bool) {
		key, buf := store.Add(trackBufferSize)
		src, err := s.openTrackSource(trackID, fmt.Sprintf("track[%d]", slot))
		if err != nil {
			logging.L().Warn("play: skipping track", "slot", slot, "err", err)
			store.MarkFinished(key)
			return key, false
		}
		w := decode.NewWorker(store, key, buf, s.channels, 4096)
		go w.Run(src)
		return key, true
	}

	// With no rotation scheduled the slot set is static, so the container
	// decode collapses to the single-worker variant: one Cluster scan
	// dispatching packets to every slot's decoder, with the timestamp-gap
	// end-of-stream heuristic. Rotation needs per-slot workers instead,
	// since a mid-play spawn starts its own fresh scan.
	rotating := cfg.ShuffleIntervalMS > 0
	slotKeys := make([]ring.Key, len(plan.Initial))
	slotWeights := make([]engine.Weight, len(plan.Initial))
	var multi []decode.MultiTrack
	for i, src := range plan.Initial {
		t := s.c.Settings.Tracks[i]
		slotWeights[i] = engine.Weight{Level: t.Level, Pan: t.Pan}
		if len(t.IDs) == 0 {
			continue
		}
		if rotating {
			slotKeys[i], _ = spawnSlot(i, src.TrackID)
			continue
		}
		ti, ok := s.c.TrackByNumber(uint64(src.TrackID))
		if !ok {
			logging.L().Warn("play: skipping track", "slot", i, "track", src.TrackID)
			continue
		}
		key, buf := store.Add(trackBufferSize)
		slotKeys[i] = key
		multi = append(multi, decode.MultiTrack{TrackNumber: ti.Number, CodecID: ti.CodecID, Key: key, Buf: buf})
	}
	if len(multi) > 0 {
		pr, err := s.c.Doc.AllPackets()
		if err != nil {
			return nil, fmt.Errorf("play: container scan: %w", err)
		}
		mw := decode.NewMultiWorker(store, multi, s.channels, cfg.TrackEOSMS)
		go mw.Run(pr)
	}

	var events []engine.ShuffleEvent
	if rotating {
		events = periodicShuffleEvents(s.c.Settings.Tracks, cfg.ShuffleIntervalMS)
	}
	spawn := func(slot int, atMS int64) (ring.Key, engine.Weight, error) {
		t := s.c.Settings.Tracks[slot]
		if len(t.IDs) == 0 {
			return 0, engine.Weight{}, fmt.Errorf("track[%d]: no candidate sources", slot)
		}
		trackID := t.IDs[rng.Intn(len(t.IDs))]
		key, ok := spawnSlot(slot, trackID)
		if !ok {
			return 0, engine.Weight{}, fmt.Errorf("track[%d]: candidate %d failed to open", slot, trackID)
		}
		return key, slotWeights[slot], nil
	}

	irLoader := ir.Loader(s.c)
	initialChain := chain.Build(effectSpecs, irLoader)
	if cfg.ReverbWorker {
		// Move convolution off the mix thread behind the request/response
		// worker; every other effect stays inline.
		fx := initialChain.Snapshot()
		for i, e := range fx {
			if _, ok := e.(*effects.ConvolutionReverb); ok {
				fx[i] = engine.NewWorkerReverb(e)
			}
		}
		initialChain.Replace(fx)
	}
	if s.gain != 1 {
		initialChain.Replace(append(initialChain.Snapshot(), effects.NewGain(float64(s.gain))))
	}
	ctx := &effects.Context{
		SampleRate:            s.sampleRate,
		Channels:              s.channels,
		ContainerPath:         s.c.Path,
		ImpulseResponseSpec:   s.c.Settings.ImpulseResponseSpec,
		ImpulseResponseTailDB: s.c.Settings.ImpulseResponseTailDB,
		HasImpulseResponse:    s.c.Settings.ImpulseResponseSpec != "",
	}
	initialChain.WarmUp(ctx)

	mixer := engine.New(store, engine.Settings{SampleRate: s.sampleRate, Channels: s.channels}, initialChain, ctx)
	for i, key := range slotKeys {
		mixer.SetWeight(key, slotWeights[i])
	}
	mixer.SetShufflePlan(slotKeys, events, spawn)
	return &player.Generation{Mixer: mixer, StartAt: ts}, nil
}

// periodicShuffleEvents schedules a rotation of every multi-candidate slot
// at a fixed cadence. Slots with a single candidate never rotate; if no
// slot has alternatives there is nothing to schedule at all.
func periodicShuffleEvents(tracks []container.Track, intervalMS int) []engine.ShuffleEvent {
	var slots []int
	for i, t := range tracks {
		if len(t.IDs) > 1 {
			slots = append(slots, i)
		}
	}
	if len(slots) == 0 {
		return nil
	}
	const maxScheduled = 256
	events := make([]engine.ShuffleEvent, 0, maxScheduled)
	for i := 1; i <= maxScheduled; i++ {
		events = append(events, engine.ShuffleEvent{AtMS: int64(i) * int64(intervalMS), Slots: slots})
	}
	return events
}

// openTrackSource resolves a track id to a decode.Source. Track ids from
// play_settings.json are looked up only among the container's own
// Matroska track numbers; an id with no matching track is an error.
func (s *session) openTrackSource(trackID uint32, label string) (decode.Source, error) {
	ti, ok := s.c.TrackByNumber(uint64(trackID))
	if !ok {
		return decode.Source{}, fmt.Errorf("%s: matroska track %d not found", label, trackID)
	}
	return decode.Source{
		Path:    fmt.Sprintf("%s#%d", s.c.Path, trackID),
		CodecID: ti.CodecID,
		Open: func() (io.ReadCloser, error) {
			rc, _, err := s.c.OpenTrackStream(uint64(trackID))
			return rc, err
		},
	}, nil
}

func probeSampleRate(c *container.Container) (int, error) {
	for _, t := range c.Doc.Tracks {
		if t.SamplingFreqHz > 0 {
			return int(t.SamplingFreqHz), nil
		}
	}
	return 48000, nil
}

func (s *session) Play(seek time.Duration) error {
	if err := s.ctrl.Play(); err != nil {
		return err
	}

	var sk *sink.Sink
	var err error
	const openAttempts = 3
	for attempt := 1; attempt <= openAttempts; attempt++ {
		sk, err = sink.Open(s.sampleRate, s.channels, s.cfg.OutputDevice, s.ctrl.Output())
		if err == nil {
			break
		}
		logging.L().Warn("play: output stream open failed", "attempt", attempt, "err", err)
		if attempt < openAttempts {
			time.Sleep(500 * time.Millisecond)
		}
	}
	if err != nil {
		s.ctrl.Stop()
		return fmt.Errorf("play: output stream: %w", err)
	}
	s.sink = sk

	// Startup gate: hold the device paused until the queue has buffered
	// start_sink_chunks, bounded so a shorter-than-gate file still plays.
	go func() {
		deadline := time.Now().Add(3 * time.Second)
		for len(s.ctrl.Output()) < s.cfg.StartSinkChunks && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
		sk.Start()
	}()

	go s.watch()

	if seek > 0 {
		return s.ctrl.Seek(seek)
	}
	return nil
}

func (s *session) watch() {
	for {
		time.Sleep(10 * time.Millisecond)
		switch s.ctrl.State() {
		case player.Finished, player.Stopped:
			close(s.doneCh)
			return
		}
	}
}

func (s *session) Stop() {
	s.ctrl.Stop()
	if s.sink != nil {
		s.sink.Stop()
	}
}

func (s *session) Done() <-chan struct{} { return s.doneCh }

func (s *session) Close() error {
	if s.sink != nil {
		s.sink.Close()
	}
	return s.c.Close()
}

func loadEffectsJSON(path string) ([]container.EffectSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("effects-json: %w", err)
	}
	return container.ParseEffectSpecsJSON(data)
}
