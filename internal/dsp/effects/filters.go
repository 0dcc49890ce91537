package effects

// filterParams is compared structurally so that reapplying an identical
// configuration never flushes filter memory, while any real change does.
type filterParams struct {
	sampleRate int
	freqHz     float64
	q          float64
}

// LowPass is a single RBJ biquad low-pass, independently stateful per
// channel.
type LowPass struct {
	FreqHz float64
	Q      float64

	coeffs biquadCoeffs
	states []biquadState
	last   filterParams
	ready  bool
}

func NewLowPass(freqHz, q float64) *LowPass {
	if q <= 0 {
		q = 0.707
	}
	return &LowPass{FreqHz: freqHz, Q: q}
}

func (f *LowPass) Reset() {
	for i := range f.states {
		f.states[i].reset()
	}
}

func (f *LowPass) WarmUp(ctx *Context) { f.Process(make([]float32, ctx.Channels*4), ctx, false) }

func (f *LowPass) Process(input []float32, ctx *Context, drain bool) []float32 {
	if drain {
		return nil
	}
	params := filterParams{ctx.SampleRate, f.FreqHz, f.Q}
	if !f.ready || params != f.last {
		f.coeffs = rbjLowPass(ctx.SampleRate, f.FreqHz, f.Q)
		f.states = make([]biquadState, ctx.Channels)
		f.last = params
		f.ready = true
	}
	out := make([]float32, len(input))
	for i, v := range input {
		ch := i % ctx.Channels
		out[i] = float32(f.coeffs.process(&f.states[ch], float64(v)))
	}
	return out
}

// HighPass is the same shape as LowPass with the complementary coefficients.
type HighPass struct {
	FreqHz float64
	Q      float64

	coeffs biquadCoeffs
	states []biquadState
	last   filterParams
	ready  bool
}

func NewHighPass(freqHz, q float64) *HighPass {
	if q <= 0 {
		q = 0.707
	}
	return &HighPass{FreqHz: freqHz, Q: q}
}

func (f *HighPass) Reset() {
	for i := range f.states {
		f.states[i].reset()
	}
}

func (f *HighPass) WarmUp(ctx *Context) { f.Process(make([]float32, ctx.Channels*4), ctx, false) }

func (f *HighPass) Process(input []float32, ctx *Context, drain bool) []float32 {
	if drain {
		return nil
	}
	params := filterParams{ctx.SampleRate, f.FreqHz, f.Q}
	if !f.ready || params != f.last {
		f.coeffs = rbjHighPass(ctx.SampleRate, f.FreqHz, f.Q)
		f.states = make([]biquadState, ctx.Channels)
		f.last = params
		f.ready = true
	}
	out := make([]float32, len(input))
	for i, v := range input {
		ch := i % ctx.Channels
		out[i] = float32(f.coeffs.process(&f.states[ch], float64(v)))
	}
	return out
}
