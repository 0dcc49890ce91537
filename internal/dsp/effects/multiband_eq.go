package effects

// EQPoint is one peaking band of the multiband EQ.
type EQPoint struct {
	FreqHz float64
	Q      float64
	GainDB float64
}

// EdgeFilterKind selects whether an edge of the multiband EQ is a hard cut
// or a shelf; Disabled skips the edge entirely.
type EdgeFilterKind int

const (
	EdgeDisabled EdgeFilterKind = iota
	EdgePass                    // high-pass (low edge) / low-pass (high edge)
	EdgeShelf
)

// MultibandEQ chains an optional low-edge filter, N peaking bands, and an
// optional high-edge filter.
type MultibandEQ struct {
	LowEdgeKind   EdgeFilterKind
	LowEdgeHz     float64
	LowEdgeGainDB float64

	HighEdgeKind   EdgeFilterKind
	HighEdgeHz     float64
	HighEdgeGainDB float64

	Points []EQPoint

	lowState, highState []biquadState
	lowCoeffs, highCoeffs biquadCoeffs
	bandStates            [][]biquadState
	bandCoeffs            []biquadCoeffs
	ready                 bool
	sampleRate            int
}

func defaultEQPoints() []EQPoint {
	return []EQPoint{
		{FreqHz: 120, Q: 0.8, GainDB: 0},
		{FreqHz: 1000, Q: 0.8, GainDB: 0},
		{FreqHz: 8000, Q: 0.8, GainDB: 0},
	}
}

func NewMultibandEQ(points []EQPoint) *MultibandEQ {
	if len(points) == 0 {
		points = defaultEQPoints()
	}
	sanitized := make([]EQPoint, len(points))
	for i, p := range points {
		sanitized[i] = EQPoint{
			FreqHz: p.FreqHz,
			Q:      sanitizeQ(p.Q),
			GainDB: clamp(p.GainDB, -24, 24),
		}
	}
	return &MultibandEQ{Points: sanitized}
}

func (m *MultibandEQ) Reset() {
	for i := range m.lowState {
		m.lowState[i].reset()
	}
	for i := range m.highState {
		m.highState[i].reset()
	}
	for i := range m.bandStates {
		for j := range m.bandStates[i] {
			m.bandStates[i][j].reset()
		}
	}
}

func (m *MultibandEQ) WarmUp(ctx *Context) { m.Process(make([]float32, ctx.Channels*8), ctx, false) }

func (m *MultibandEQ) ensure(ctx *Context) {
	if m.ready && m.sampleRate == ctx.SampleRate {
		return
	}
	m.sampleRate = ctx.SampleRate

	switch m.LowEdgeKind {
	case EdgePass:
		m.lowCoeffs = rbjHighPass(ctx.SampleRate, m.LowEdgeHz, 0.707)
		m.lowState = make([]biquadState, ctx.Channels)
	case EdgeShelf:
		m.lowCoeffs = rbjLowShelf(ctx.SampleRate, m.LowEdgeHz, m.LowEdgeGainDB)
		m.lowState = make([]biquadState, ctx.Channels)
	}
	switch m.HighEdgeKind {
	case EdgePass:
		m.highCoeffs = rbjLowPass(ctx.SampleRate, m.HighEdgeHz, 0.707)
		m.highState = make([]biquadState, ctx.Channels)
	case EdgeShelf:
		m.highCoeffs = rbjHighShelf(ctx.SampleRate, m.HighEdgeHz, m.HighEdgeGainDB)
		m.highState = make([]biquadState, ctx.Channels)
	}

	m.bandCoeffs = make([]biquadCoeffs, len(m.Points))
	m.bandStates = make([][]biquadState, len(m.Points))
	for i, p := range m.Points {
		m.bandCoeffs[i] = rbjPeaking(ctx.SampleRate, p.FreqHz, p.Q, p.GainDB)
		m.bandStates[i] = make([]biquadState, ctx.Channels)
	}
	m.ready = true
}

func (m *MultibandEQ) Process(input []float32, ctx *Context, drain bool) []float32 {
	if drain {
		return nil
	}
	m.ensure(ctx)
	channels := ctx.Channels
	if channels <= 0 {
		channels = 1
	}
	out := make([]float64, len(input))
	for i, v := range input {
		out[i] = float64(v)
	}

	apply := func(coeffs biquadCoeffs, states []biquadState) {
		if states == nil {
			return
		}
		for i := range out {
			ch := i % channels
			out[i] = coeffs.process(&states[ch], out[i])
		}
	}

	apply(m.lowCoeffs, m.lowState)
	for i, c := range m.bandCoeffs {
		apply(c, m.bandStates[i])
	}
	apply(m.highCoeffs, m.highState)

	result := make([]float32, len(out))
	for i, v := range out {
		result[i] = float32(v)
	}
	return result
}
