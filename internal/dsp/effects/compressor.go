package effects

import "math"

// Compressor is a single-pole envelope-follower compressor: per-frame peak
// detection feeding a smoothed dB gain-reduction curve with independent
// attack/release time constants.
type Compressor struct {
	ThresholdDB float64
	Ratio       float64
	AttackMS    float64
	ReleaseMS   float64
	MakeupDB    float64

	envelopeDB float64 // current smoothed signal level in dB
	primed     bool
}

func NewCompressor(thresholdDB, ratio, attackMS, releaseMS, makeupDB float64) *Compressor {
	if ratio < 1 {
		ratio = 1
	}
	if attackMS < 0 {
		attackMS = 0
	}
	if releaseMS < 0 {
		releaseMS = 0
	}
	if thresholdDB > 0 {
		thresholdDB = 0
	}
	return &Compressor{ThresholdDB: thresholdDB, Ratio: ratio, AttackMS: attackMS, ReleaseMS: releaseMS, MakeupDB: makeupDB}
}

func (c *Compressor) Reset() {
	c.envelopeDB = 0
	c.primed = false
}

func (c *Compressor) WarmUp(ctx *Context) { c.Process(make([]float32, ctx.Channels*8), ctx, false) }

func timeConstant(ms float64, sampleRate int) float64 {
	if ms <= 0 {
		return 0
	}
	tau := ms / 1000.0
	return math.Exp(-1.0 / (tau * float64(sampleRate)))
}

func (c *Compressor) Process(input []float32, ctx *Context, drain bool) []float32 {
	if drain {
		return nil
	}
	if len(input) == 0 {
		return nil
	}
	attackCoeff := timeConstant(c.AttackMS, ctx.SampleRate)
	releaseCoeff := timeConstant(c.ReleaseMS, ctx.SampleRate)
	channels := ctx.Channels
	if channels <= 0 {
		channels = 1
	}
	makeup := DBToLinear(c.MakeupDB)

	out := make([]float32, len(input))
	frames := len(input) / channels
	for f := 0; f < frames; f++ {
		var peak float32
		for ch := 0; ch < channels; ch++ {
			v := input[f*channels+ch]
			if v < 0 {
				v = -v
			}
			if v > peak {
				peak = v
			}
		}
		levelDB := LinearToDB(float64(peak))
		if !c.primed {
			c.envelopeDB = levelDB
			c.primed = true
		}
		coeff := releaseCoeff
		if levelDB > c.envelopeDB {
			coeff = attackCoeff
		}
		c.envelopeDB = coeff*c.envelopeDB + (1-coeff)*levelDB

		gainDB := 0.0
		if c.envelopeDB > c.ThresholdDB {
			gainDB = (c.ThresholdDB + (c.envelopeDB-c.ThresholdDB)/c.Ratio) - c.envelopeDB
		}
		gainLinear := DBToLinear(gainDB) * makeup
		for ch := 0; ch < channels; ch++ {
			out[f*channels+ch] = input[f*channels+ch] * float32(gainLinear)
		}
	}
	return out
}
