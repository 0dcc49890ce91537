package player

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/proteus-audio/proteus/internal/config"
	"github.com/proteus-audio/proteus/internal/dsp/chain"
	"github.com/proteus-audio/proteus/internal/dsp/effects"
	"github.com/proteus-audio/proteus/internal/engine"
	"github.com/proteus-audio/proteus/internal/ring"
)

// emptyGenerationFactory builds a Mixer with no tracks at all, which drains
// and closes its output channel immediately — enough to exercise the
// controller's state machine without a real decode pipeline.
func emptyGenerationFactory(ts time.Duration) (*Generation, error) {
	store := ring.NewStore()
	ctx := &effects.Context{SampleRate: 48000, Channels: 2}
	mixer := engine.New(store, engine.Settings{SampleRate: 48000, Channels: 2}, chain.New(nil), ctx)
	return &Generation{Mixer: mixer, StartAt: ts}, nil
}

func newTestController() *Controller {
	return New(config.Settings{}, 48000, 2, emptyGenerationFactory)
}

func TestControllerStartsInInit(t *testing.T) {
	c := newTestController()
	require.Equal(t, Init, c.State())
}

func TestControllerPlayRunsEmptyGenerationToFinished(t *testing.T) {
	c := newTestController()
	require.NoError(t, c.Play())
	require.Eventually(t, func() bool {
		return c.State() == Finished
	}, time.Second, time.Millisecond)
}

func TestControllerStopTransitionsToStopped(t *testing.T) {
	c := newTestController()
	require.NoError(t, c.Play())
	c.Stop()
	require.Equal(t, Stopped, c.State())
}

func TestControllerGenerationIDIsNilBeforePlay(t *testing.T) {
	c := newTestController()
	require.Equal(t, uuid.UUID{}, c.GenerationID())
}

func TestControllerGenerationIDIsSetAfterPlay(t *testing.T) {
	c := newTestController()
	require.NoError(t, c.Play())
	require.Eventually(t, func() bool {
		return c.GenerationID() != uuid.UUID{}
	}, time.Second, time.Millisecond)
}

func TestStateString(t *testing.T) {
	require.Equal(t, "playing", Playing.String())
	require.Equal(t, "unknown", State(999).String())
}

func TestControllerOutputChannelIsAvailable(t *testing.T) {
	c := newTestController()
	out := c.Output()
	require.NotNil(t, out)
}
