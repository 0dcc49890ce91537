package effects

// MaxFeedback caps the delay reverb's feedback coefficient so the loop
// can never ring up to instability.
const MaxFeedback = 0.8

// DelayReverb is a single feedback delay line. It is the implementation
// behind both DelayReverbSettings and the deprecated BasicReverbSettings
// alias. It defers entirely to convolution reverb when the session has an
// impulse response configured — the two reverb types are mutually
// exclusive per session.
type DelayReverb struct {
	DurationMS float64
	Amplitude  float64

	lines [][]float32
	pos   []int
	ready bool
}

func NewDelayReverb(durationMS, amplitude float64) *DelayReverb {
	if durationMS <= 0 {
		durationMS = 100
	}
	if amplitude <= 0 {
		amplitude = 0.7
	}
	if amplitude > MaxFeedback {
		amplitude = MaxFeedback
	}
	return &DelayReverb{DurationMS: durationMS, Amplitude: amplitude}
}

func (d *DelayReverb) Reset() {
	for i := range d.lines {
		for j := range d.lines[i] {
			d.lines[i][j] = 0
		}
		d.pos[i] = 0
	}
}

func (d *DelayReverb) WarmUp(ctx *Context) {
	d.ensure(ctx)
	d.Process(make([]float32, ctx.Channels*len(d.lines[0])), ctx, false)
}

func (d *DelayReverb) ensure(ctx *Context) {
	if d.ready {
		return
	}
	delaySamples := int(d.DurationMS / 1000 * float64(ctx.SampleRate))
	if delaySamples < 1 {
		delaySamples = 1
	}
	d.lines = make([][]float32, ctx.Channels)
	d.pos = make([]int, ctx.Channels)
	for c := range d.lines {
		d.lines[c] = make([]float32, delaySamples)
	}
	d.ready = true
}

func (d *DelayReverb) Process(input []float32, ctx *Context, drain bool) []float32 {
	if ctx.HasImpulseResponse {
		if drain {
			return nil
		}
		out := make([]float32, len(input))
		copy(out, input)
		return out
	}
	d.ensure(ctx)
	channels := ctx.Channels
	if channels <= 0 {
		channels = 1
	}

	if drain {
		n := len(d.lines[0]) * 4
		input = make([]float32, n*channels)
	}
	feedback := float32(d.Amplitude)
	out := make([]float32, len(input))
	frames := len(input) / channels
	for f := 0; f < frames; f++ {
		for ch := 0; ch < channels; ch++ {
			line := d.lines[ch]
			p := d.pos[ch]
			delayed := line[p]
			dry := input[f*channels+ch]
			wet := delayed
			line[p] = dry + delayed*feedback
			d.pos[ch] = (p + 1) % len(line)
			out[f*channels+ch] = dry + wet
		}
	}
	return out
}
