package effects

import (
	"github.com/proteus-audio/proteus/internal/dsp/convolve"
)

// reverbBatchBlocks: the wrapper always feeds the convolver whole
// multiples of this many preferred blocks, buffering any remainder.
const reverbBatchBlocks = 2

// IRLoader resolves an impulse response spec string (attachment:/file:/bare
// path) into per-channel time-domain samples. The convolution reverb
// wrapper takes one as a constructor argument instead of importing the
// container/attachment machinery directly, keeping this package's import
// graph one-directional.
type IRLoader func(spec string, tailDB float64) (channels [][]float32, sampleRate int, err error)

// ConvolutionReverb wraps one Convolver per output channel, lazily built
// from the context's resolved impulse-response spec. Its default dry/wet
// mix is a hair above zero so the effect is technically always active,
// just inaudible until configured.
type ConvolutionReverb struct {
	Mix float64

	loader IRLoader

	resolvedSpec  string
	resolvedTail  float64
	convolvers    []*convolve.Convolver
	inBuf         [][]float32 // per-channel accumulation buffer awaiting a full batch
	outQueue      [][]float32 // per-channel pending output not yet drained
	built         bool
}

func NewConvolutionReverb(mix float64, loader IRLoader) *ConvolutionReverb {
	if mix == 0 {
		mix = 0.000001
	}
	return &ConvolutionReverb{Mix: mix, loader: loader}
}

func (r *ConvolutionReverb) Reset() {
	for _, c := range r.convolvers {
		c.Reset()
	}
	for i := range r.inBuf {
		r.inBuf[i] = r.inBuf[i][:0]
	}
	for i := range r.outQueue {
		r.outQueue[i] = r.outQueue[i][:0]
	}
}

func (r *ConvolutionReverb) WarmUp(ctx *Context) {
	r.ensure(ctx)
	if len(r.convolvers) > 0 {
		batch := r.convolvers[0].PreferredBlock() * reverbBatchBlocks
		r.Process(make([]float32, batch*ctx.Channels), ctx, false)
	}
}

func (r *ConvolutionReverb) ensure(ctx *Context) {
	if r.built && r.resolvedSpec == ctx.ImpulseResponseSpec && r.resolvedTail == ctx.ImpulseResponseTailDB {
		return
	}
	r.resolvedSpec = ctx.ImpulseResponseSpec
	r.resolvedTail = ctx.ImpulseResponseTailDB
	r.built = true
	r.convolvers = nil
	r.inBuf = nil
	r.outQueue = nil

	if r.loader == nil || ctx.ImpulseResponseSpec == "" {
		return
	}
	irChannels, _, err := r.loader(ctx.ImpulseResponseSpec, ctx.ImpulseResponseTailDB)
	if err != nil || len(irChannels) == 0 {
		return
	}
	r.convolvers = make([]*convolve.Convolver, ctx.Channels)
	r.inBuf = make([][]float32, ctx.Channels)
	r.outQueue = make([][]float32, ctx.Channels)
	for ch := 0; ch < ctx.Channels; ch++ {
		irCh := irChannels[ch%len(irChannels)]
		conv, err := convolve.New(irCh, convolve.DefaultFFTSize)
		if err != nil {
			r.convolvers = nil
			return
		}
		r.convolvers[ch] = conv
	}
}

func (r *ConvolutionReverb) Process(input []float32, ctx *Context, drain bool) []float32 {
	r.ensure(ctx)
	if len(r.convolvers) == 0 {
		// No IR resolved: bypass, matching the near-zero default mix.
		if drain {
			return nil
		}
		out := make([]float32, len(input))
		copy(out, input)
		return out
	}

	channels := ctx.Channels
	preferred := r.convolvers[0].PreferredBlock() * reverbBatchBlocks

	deinterleaved := deinterleave(input, channels)
	for ch := 0; ch < channels; ch++ {
		r.inBuf[ch] = append(r.inBuf[ch], deinterleaved[ch]...)
	}

	for len(r.inBuf[0]) >= preferred || (drain && len(r.inBuf[0]) > 0) {
		n := preferred
		if len(r.inBuf[0]) < n {
			n = len(r.inBuf[0])
		}
		for ch := 0; ch < channels; ch++ {
			block := r.inBuf[ch][:n]
			wet := r.convolvers[ch].Process(block)
			r.outQueue[ch] = append(r.outQueue[ch], wet...)
			r.inBuf[ch] = r.inBuf[ch][n:]
		}
		if !drain && len(r.inBuf[0]) < preferred {
			break
		}
	}

	avail := len(r.outQueue[0])
	want := len(input) / channels
	if drain {
		want = avail
	}
	if want > avail {
		want = avail
	}
	wetOut := make([][]float32, channels)
	for ch := 0; ch < channels; ch++ {
		wetOut[ch] = r.outQueue[ch][:want]
		r.outQueue[ch] = r.outQueue[ch][want:]
	}

	dryFrames := len(input) / channels
	outFrames := want
	if !drain && outFrames < dryFrames {
		outFrames = dryFrames // pad with dry/zero for underflow, keep timing exact
	}
	out := make([]float32, outFrames*channels)
	wet := r.Mix
	dry := 1 - wet
	for f := 0; f < outFrames; f++ {
		for ch := 0; ch < channels; ch++ {
			var d, w float64
			if f < dryFrames {
				d = float64(input[f*channels+ch])
			}
			if f < want {
				w = float64(wetOut[ch][f])
			}
			out[f*channels+ch] = float32(dry*d + wet*w)
		}
	}
	return out
}

func deinterleave(in []float32, channels int) [][]float32 {
	if channels <= 0 {
		channels = 1
	}
	frames := len(in) / channels
	out := make([][]float32, channels)
	for ch := 0; ch < channels; ch++ {
		out[ch] = make([]float32, frames)
		for f := 0; f < frames; f++ {
			out[ch][f] = in[f*channels+ch]
		}
	}
	return out
}
