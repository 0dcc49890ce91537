package effects

// DiffusionReverb is a Schroeder-topology algorithmic reverb: a pre-delay
// line feeds four parallel lowpass-damped feedback combs tuned at
// 1.0x/1.33x/1.58x/1.91x the room-size base delay, summed and passed
// through two series allpass filters tuned at 0.28x/0.52x the base delay.
type DiffusionReverb struct {
	PreDelayMS float64
	RoomSizeMS float64
	Decay      float64
	Damping    float64
	Diffusion  float64

	preDelay    []float32
	preDelayPos int

	combs     [4]lowpassComb
	allpasses [2]allpass
	ready     bool
}

var combRatios = [4]float64{1.0, 1.33, 1.58, 1.91}
var allpassRatios = [2]float64{0.28, 0.52}

func NewDiffusionReverb(preDelayMS, roomSizeMS, decay, damping, diffusion float64) *DiffusionReverb {
	if preDelayMS <= 0 {
		preDelayMS = 12
	}
	if roomSizeMS <= 0 {
		roomSizeMS = 48
	}
	return &DiffusionReverb{
		PreDelayMS: preDelayMS,
		RoomSizeMS: roomSizeMS,
		Decay:      clamp(decay, 0, 0.98),
		Damping:    clamp(damping, 0, 0.99),
		Diffusion:  clamp(diffusion, 0, 0.9),
	}
}

type lowpassComb struct {
	buf     []float32
	pos     int
	damping float32
	feed    float32
	lpState float32
}

type allpass struct {
	buf  []float32
	pos  int
	feed float32
}

func (c *lowpassComb) process(x float32) float32 {
	y := c.buf[c.pos]
	c.lpState = y*(1-c.damping) + c.lpState*c.damping
	c.buf[c.pos] = x + c.lpState*c.feed
	c.pos = (c.pos + 1) % len(c.buf)
	return y
}

func (a *allpass) process(x float32) float32 {
	bufOut := a.buf[a.pos]
	y := -x + bufOut
	a.buf[a.pos] = x + bufOut*a.feed
	a.pos = (a.pos + 1) % len(a.buf)
	return y
}

func (d *DiffusionReverb) ensure(ctx *Context) {
	if d.ready {
		return
	}
	sr := float64(ctx.SampleRate)
	preN := maxInt(1, int(d.PreDelayMS/1000*sr))
	d.preDelay = make([]float32, preN)

	for i, ratio := range combRatios {
		n := maxInt(1, int(d.RoomSizeMS*ratio/1000*sr))
		d.combs[i] = lowpassComb{
			buf:     make([]float32, n),
			damping: float32(d.Damping),
			feed:    float32(d.Decay),
		}
	}
	for i, ratio := range allpassRatios {
		n := maxInt(1, int(d.RoomSizeMS*ratio/1000*sr))
		d.allpasses[i] = allpass{
			buf:  make([]float32, n),
			feed: float32(d.Diffusion),
		}
	}
	d.ready = true
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func (d *DiffusionReverb) Reset() {
	for i := range d.preDelay {
		d.preDelay[i] = 0
	}
	d.preDelayPos = 0
	for i := range d.combs {
		for j := range d.combs[i].buf {
			d.combs[i].buf[j] = 0
		}
		d.combs[i].lpState = 0
	}
	for i := range d.allpasses {
		for j := range d.allpasses[i].buf {
			d.allpasses[i].buf[j] = 0
		}
	}
}

func (d *DiffusionReverb) WarmUp(ctx *Context) {
	d.ensure(ctx)
	d.Process(make([]float32, ctx.Channels*len(d.preDelay)*2), ctx, false)
}

func (d *DiffusionReverb) maxTailSamples() int {
	n := len(d.preDelay)
	for _, c := range d.combs {
		if len(c.buf) > n {
			n = len(c.buf)
		}
	}
	return n
}

func (d *DiffusionReverb) Process(input []float32, ctx *Context, drain bool) []float32 {
	d.ensure(ctx)
	channels := ctx.Channels
	if channels <= 0 {
		channels = 1
	}
	if drain {
		n := 4 * d.maxTailSamples()
		input = make([]float32, n*channels)
	}
	out := make([]float32, len(input))
	frames := len(input) / channels
	for f := 0; f < frames; f++ {
		var mono float32
		for ch := 0; ch < channels; ch++ {
			mono += input[f*channels+ch]
		}
		mono /= float32(channels)

		pre := d.preDelay[d.preDelayPos]
		d.preDelay[d.preDelayPos] = mono
		d.preDelayPos = (d.preDelayPos + 1) % len(d.preDelay)

		var sum float32
		for i := range d.combs {
			sum += d.combs[i].process(pre)
		}
		sum /= float32(len(d.combs))
		for i := range d.allpasses {
			sum = d.allpasses[i].process(sum)
		}
		for ch := 0; ch < channels; ch++ {
			out[f*channels+ch] = input[f*channels+ch] + sum
		}
	}
	return out
}
