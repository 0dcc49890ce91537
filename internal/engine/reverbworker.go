package engine

import "github.com/proteus-audio/proteus/internal/dsp/effects"

// reverbRequest/reverbResponse are the two sides of the WorkerReverb's
// request/response handoff.
type reverbRequest struct {
	input []float32
	ctx   *effects.Context
	drain bool
}

type reverbResponse struct {
	output []float32
}

// WorkerReverb runs a wrapped convolution (or any other) effect on a
// dedicated goroutine, communicating through buffered (capacity 1)
// channels. Process hands each block to the worker and waits for its
// result, so one job is in flight at a time and the mix thread still
// waits for every pass to finish. It implements effects.Effect so
// it drops into a Chain exactly like an inline effect would — callers
// choose between NewInlineReverb (use the effect directly) and
// NewWorkerReverb (wrap it) purely as a configuration choice.
type WorkerReverb struct {
	inner   effects.Effect
	reqCh   chan reverbRequest
	respCh  chan reverbResponse
	closeCh chan struct{}
}

// NewWorkerReverb spawns the worker goroutine wrapping inner.
func NewWorkerReverb(inner effects.Effect) *WorkerReverb {
	w := &WorkerReverb{
		inner:   inner,
		reqCh:   make(chan reverbRequest, 1),
		respCh:  make(chan reverbResponse, 1),
		closeCh: make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *WorkerReverb) loop() {
	for {
		select {
		case req := <-w.reqCh:
			out := w.inner.Process(req.input, req.ctx, req.drain)
			w.respCh <- reverbResponse{output: out}
		case <-w.closeCh:
			return
		}
	}
}

// Close stops the worker goroutine. Callers must not call Process after
// Close.
func (w *WorkerReverb) Close() { close(w.closeCh) }

func (w *WorkerReverb) Process(input []float32, ctx *effects.Context, drain bool) []float32 {
	w.reqCh <- reverbRequest{input: input, ctx: ctx, drain: drain}
	resp := <-w.respCh
	return resp.output
}

func (w *WorkerReverb) Reset()               { w.inner.Reset() }
func (w *WorkerReverb) WarmUp(ctx *effects.Context) { w.inner.WarmUp(ctx) }

// NewInlineReverb is the default path: the effect runs directly in the
// mix thread with no extra goroutine hop.
func NewInlineReverb(inner effects.Effect) effects.Effect { return inner }
