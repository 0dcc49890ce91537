package effects

import "math"

// Limiter is a peak limiter with a soft knee, implemented as a pure
// per-sample running-gain state machine (no lookahead, no internal sample
// queue) so that splitting an input slice across two Process calls yields
// bit-identical output to processing it in one call.
type Limiter struct {
	ThresholdDB float64
	KneeDB      float64
	AttackMS    float64
	ReleaseMS   float64

	gain   float64 // current linear gain, starts at 1
	primed bool
}

func NewLimiter(thresholdDB, kneeDB, attackMS, releaseMS float64) *Limiter {
	l := &Limiter{ThresholdDB: thresholdDB, KneeDB: kneeDB, AttackMS: attackMS, ReleaseMS: releaseMS}
	if l.ThresholdDB == 0 && l.KneeDB == 0 && l.AttackMS == 0 && l.ReleaseMS == 0 {
		l.ThresholdDB = -1.0
		l.KneeDB = 4.0
		l.AttackMS = 5.0
		l.ReleaseMS = 100.0
	}
	return l
}

func (l *Limiter) Reset() {
	l.gain = 1
	l.primed = false
}

func (l *Limiter) WarmUp(ctx *Context) { l.Process(make([]float32, ctx.Channels*8), ctx, false) }

// targetGain computes the instantaneous gain needed to keep |x| under the
// threshold, with a soft knee of width KneeDB centered on the threshold.
func (l *Limiter) targetGain(sampleDB float64) float64 {
	kneeHalf := l.KneeDB / 2
	lower := l.ThresholdDB - kneeHalf
	upper := l.ThresholdDB + kneeHalf
	switch {
	case sampleDB <= lower:
		return 1.0
	case sampleDB >= upper:
		return DBToLinear(l.ThresholdDB - sampleDB)
	default:
		// Quadratic knee interpolation between unity gain and full limiting.
		t := (sampleDB - lower) / (upper - lower)
		overDB := t * t * kneeHalf
		return DBToLinear(-overDB)
	}
}

func (l *Limiter) Process(input []float32, ctx *Context, drain bool) []float32 {
	if drain {
		return nil
	}
	if !l.primed {
		l.gain = 1
		l.primed = true
	}
	attackCoeff := timeConstant(l.AttackMS, ctx.SampleRate)
	releaseCoeff := timeConstant(l.ReleaseMS, ctx.SampleRate)

	out := make([]float32, len(input))
	for i, v := range input {
		mag := math.Abs(float64(v))
		sampleDB := LinearToDB(mag)
		target := l.targetGain(sampleDB)
		coeff := releaseCoeff
		if target < l.gain {
			coeff = attackCoeff
		}
		l.gain = coeff*l.gain + (1-coeff)*target
		out[i] = float32(float64(v) * l.gain)
	}
	return out
}
