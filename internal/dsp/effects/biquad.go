package effects

import "math"

// biquadCoeffs holds the normalized (a0==1) RBJ audio-cookbook transfer
// function coefficients for one second-order section.
type biquadCoeffs struct {
	b0, b1, b2, a1, a2 float64
}

// biquadState holds one channel's delay-line memory for a biquad section.
type biquadState struct {
	x1, x2, y1, y2 float64
}

func (s *biquadState) reset() { *s = biquadState{} }

func (c biquadCoeffs) process(s *biquadState, x float64) float64 {
	y := c.b0*x + c.b1*s.x1 + c.b2*s.x2 - c.a1*s.y1 - c.a2*s.y2
	s.x2, s.x1 = s.x1, x
	s.y2, s.y1 = s.y1, y
	return y
}

func sanitizeFreq(freqHz float64, sampleRate int) float64 {
	nyquist := float64(sampleRate) / 2
	return clamp(freqHz, 1, nyquist-1)
}

func sanitizeQ(q float64) float64 {
	return clamp(q, 0.1, 10.0)
}

// rbjLowPass builds the RBJ cookbook low-pass biquad.
func rbjLowPass(sampleRate int, freqHz, q float64) biquadCoeffs {
	freqHz = sanitizeFreq(freqHz, sampleRate)
	q = sanitizeQ(q)
	w0 := 2 * math.Pi * freqHz / float64(sampleRate)
	cosw0, sinw0 := math.Cos(w0), math.Sin(w0)
	alpha := sinw0 / (2 * q)

	b0 := (1 - cosw0) / 2
	b1 := 1 - cosw0
	b2 := (1 - cosw0) / 2
	a0 := 1 + alpha
	a1 := -2 * cosw0
	a2 := 1 - alpha
	return normalize(b0, b1, b2, a0, a1, a2)
}

// rbjHighPass builds the RBJ cookbook high-pass biquad.
func rbjHighPass(sampleRate int, freqHz, q float64) biquadCoeffs {
	freqHz = sanitizeFreq(freqHz, sampleRate)
	q = sanitizeQ(q)
	w0 := 2 * math.Pi * freqHz / float64(sampleRate)
	cosw0, sinw0 := math.Cos(w0), math.Sin(w0)
	alpha := sinw0 / (2 * q)

	b0 := (1 + cosw0) / 2
	b1 := -(1 + cosw0)
	b2 := (1 + cosw0) / 2
	a0 := 1 + alpha
	a1 := -2 * cosw0
	a2 := 1 - alpha
	return normalize(b0, b1, b2, a0, a1, a2)
}

// rbjPeaking builds the RBJ cookbook peaking EQ biquad, used as the core
// building block of the multiband EQ.
func rbjPeaking(sampleRate int, freqHz, q, gainDB float64) biquadCoeffs {
	freqHz = sanitizeFreq(freqHz, sampleRate)
	q = sanitizeQ(q)
	gainDB = clamp(gainDB, -24, 24)
	A := math.Pow(10, gainDB/40)
	w0 := 2 * math.Pi * freqHz / float64(sampleRate)
	cosw0, sinw0 := math.Cos(w0), math.Sin(w0)
	alpha := sinw0 / (2 * q)

	b0 := 1 + alpha*A
	b1 := -2 * cosw0
	b2 := 1 - alpha*A
	a0 := 1 + alpha/A
	a1 := -2 * cosw0
	a2 := 1 - alpha/A
	return normalize(b0, b1, b2, a0, a1, a2)
}

// rbjLowShelf / rbjHighShelf provide the optional edge filters the
// multiband EQ may apply instead of a hard cut.
func rbjLowShelf(sampleRate int, freqHz, gainDB float64) biquadCoeffs {
	return rbjShelf(sampleRate, freqHz, gainDB, true)
}

func rbjHighShelf(sampleRate int, freqHz, gainDB float64) biquadCoeffs {
	return rbjShelf(sampleRate, freqHz, gainDB, false)
}

func rbjShelf(sampleRate int, freqHz, gainDB float64, low bool) biquadCoeffs {
	freqHz = sanitizeFreq(freqHz, sampleRate)
	gainDB = clamp(gainDB, -24, 24)
	A := math.Pow(10, gainDB/40)
	w0 := 2 * math.Pi * freqHz / float64(sampleRate)
	cosw0, sinw0 := math.Cos(w0), math.Sin(w0)
	shelfSlope := 1.0
	alpha := sinw0 / 2 * math.Sqrt((A+1/A)*(1/shelfSlope-1)+2)
	sqrtA2alpha := 2 * math.Sqrt(A) * alpha

	var b0, b1, b2, a0, a1, a2 float64
	if low {
		b0 = A * ((A + 1) - (A-1)*cosw0 + sqrtA2alpha)
		b1 = 2 * A * ((A - 1) - (A+1)*cosw0)
		b2 = A * ((A + 1) - (A-1)*cosw0 - sqrtA2alpha)
		a0 = (A + 1) + (A-1)*cosw0 + sqrtA2alpha
		a1 = -2 * ((A - 1) + (A+1)*cosw0)
		a2 = (A + 1) + (A-1)*cosw0 - sqrtA2alpha
	} else {
		b0 = A * ((A + 1) + (A-1)*cosw0 + sqrtA2alpha)
		b1 = -2 * A * ((A - 1) + (A+1)*cosw0)
		b2 = A * ((A + 1) + (A-1)*cosw0 - sqrtA2alpha)
		a0 = (A + 1) - (A-1)*cosw0 + sqrtA2alpha
		a1 = 2 * ((A - 1) - (A+1)*cosw0)
		a2 = (A + 1) - (A-1)*cosw0 - sqrtA2alpha
	}
	return normalize(b0, b1, b2, a0, a1, a2)
}

func normalize(b0, b1, b2, a0, a1, a2 float64) biquadCoeffs {
	return biquadCoeffs{b0: b0 / a0, b1: b1 / a0, b2: b2 / a0, a1: a1 / a0, a2: a2 / a0}
}
