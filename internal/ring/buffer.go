// Package ring implements the bounded, blocking sample queues that decouple
// decoder workers from the mix thread, and the store that keys them by
// track id. There is no ring-buffer type in the standard library suited to
// bulk float32 copies (container/ring is node-linked), so this is a plain
// circular slice guarded by a mutex and condition variable.
package ring

import "sync"

// Buffer is a bounded FIFO of interleaved float32 samples. One writer
// (a decoder worker) and one reader (the mix thread) share it; both sides
// use the same lock so Cond broadcasts reach whichever side is waiting.
type Buffer struct {
	mu       sync.Mutex
	cond     *sync.Cond
	data     []float32
	head     int // next read position
	size     int // number of valid samples currently stored
	cap      int
	finished bool
	aborted  bool

	// notify, when set, is invoked after every successful write so the
	// store-level condvar the mix thread waits on sees buffer fills, not
	// just key lifecycle changes. Set once by Store.Add before the buffer
	// is shared.
	notify func()
}

// NewBuffer creates a buffer with room for capacity samples.
func NewBuffer(capacity int) *Buffer {
	b := &Buffer{
		data: make([]float32, capacity),
		cap:  capacity,
	}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Push appends samples, blocking until enough free space exists or the
// buffer is aborted. A write no larger than the capacity is queued whole
// once it fits; a larger one is queued in pieces as the reader frees
// space. Push returns false if Abort fires first, possibly after part of
// a larger write was queued.
func (b *Buffer) Push(samples []float32) (ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for len(samples) > 0 {
		for b.cap-b.size < len(samples) && !b.aborted {
			if b.cap-b.size == b.cap {
				break // capacity can never fit this write; drop through and chunk it
			}
			b.cond.Wait()
		}
		if b.aborted {
			return false
		}
		free := b.cap - b.size
		n := len(samples)
		if n > free {
			n = free
		}
		if n == 0 {
			b.cond.Wait()
			continue
		}
		writeAt := (b.head + b.size) % b.cap
		for i := 0; i < n; i++ {
			b.data[(writeAt+i)%b.cap] = samples[i]
		}
		b.size += n
		samples = samples[n:]
		b.cond.Broadcast()
		// Waking the store-level waiter per partial write matters: a push
		// larger than the free space parks here until the reader drains,
		// and the reader may be parked on the store condvar in turn.
		if b.notify != nil {
			b.notify()
		}
	}
	return true
}

// Pop removes up to n samples without blocking, returning the number
// actually copied into out (which must have length >= n).
func (b *Buffer) Pop(out []float32, n int) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if n > b.size {
		n = b.size
	}
	for i := 0; i < n; i++ {
		out[i] = b.data[(b.head+i)%b.cap]
	}
	b.head = (b.head + n) % b.cap
	b.size -= n
	if n > 0 {
		b.cond.Broadcast()
	}
	return n
}

// Len returns the number of samples currently queued.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Free returns the remaining capacity.
func (b *Buffer) Free() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cap - b.size
}

// MarkFinished records that no more data will ever be pushed and wakes
// any waiting reader.
func (b *Buffer) MarkFinished() {
	b.mu.Lock()
	b.finished = true
	b.mu.Unlock()
	b.cond.Broadcast()
}

// Finished reports whether MarkFinished has been called.
func (b *Buffer) Finished() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.finished
}

// Abort unblocks any pending Push immediately, used on playback cancellation.
func (b *Buffer) Abort() {
	b.mu.Lock()
	b.aborted = true
	b.mu.Unlock()
	b.cond.Broadcast()
}
