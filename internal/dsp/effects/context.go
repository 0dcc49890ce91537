package effects

// Context carries the per-session properties every effect needs but none
// of them own: sample rate, channel count, and the resolved impulse
// response location used by both the delay reverb (to detect mutual
// exclusion with convolution) and the convolution reverb wrapper itself.
type Context struct {
	SampleRate             int
	Channels               int
	ContainerPath          string
	ImpulseResponseSpec    string
	ImpulseResponseTailDB  float64
	HasImpulseResponse     bool
}

// Effect is the common surface every algorithmic and convolution effect
// implements. drain is true only once every upstream source has finished
// and the caller wants any buffered tail (reverb/delay decay) flushed.
type Effect interface {
	Process(input []float32, ctx *Context, drain bool) []float32
	Reset()
	WarmUp(ctx *Context)
}
