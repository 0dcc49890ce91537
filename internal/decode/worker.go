package decode

import (
	"errors"
	"io"

	"github.com/proteus-audio/proteus/internal/audio"
	"github.com/proteus-audio/proteus/internal/logging"
	"github.com/proteus-audio/proteus/internal/ring"
)

// Source describes one decodable input: a file path or a container packet
// stream, plus the codec id used to pick a Decoder in Open.
type Source struct {
	Path    string
	CodecID string
	Open    func() (io.ReadCloser, error)
}

// Worker drains one Decoder into one ring.Buffer until the source is
// exhausted, a fatal I/O error occurs, or abort fires. It never returns an
// error to its caller — per the propagation policy, decode failures are
// logged and turned into a finished track, not bubbled across the
// goroutine boundary.
type Worker struct {
	store        *ring.Store
	key          ring.Key
	buf          *ring.Buffer
	outChannels  int
	readChunk    int
}

// NewWorker allocates a worker bound to key/buf. outChannels is the
// session's output channel count; readChunk is the number of native-rate
// samples pulled from the decoder per loop iteration.
func NewWorker(store *ring.Store, key ring.Key, buf *ring.Buffer, outChannels, readChunk int) *Worker {
	if readChunk <= 0 {
		readChunk = 4096
	}
	return &Worker{store: store, key: key, buf: buf, outChannels: outChannels, readChunk: readChunk}
}

// Run executes the decode loop on the calling goroutine; callers spawn it
// with `go w.Run(...)`.
func (w *Worker) Run(src Source) {
	defer w.store.MarkFinished(w.key)

	rc, err := src.Open()
	if err != nil {
		logging.L().Warn("decode: open failed", "path", src.Path, "err", err)
		return
	}
	dec, err := Open(rc, src.CodecID, src.Path)
	if err != nil {
		logging.L().Warn("decode: unsupported source", "path", src.Path, "err", err)
		return
	}
	defer dec.Close()

	native := dec.Channels()
	frame := make([]float32, w.readChunk*native)
	for {
		n, err := dec.Read(frame)
		if n > 0 {
			out := frame[:n]
			if native != w.outChannels {
				out = audio.Remix(out, native, w.outChannels)
			}
			if !w.buf.Push(out) {
				return // aborted
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			logging.L().Warn("decode: read error, ending track", "path", src.Path, "err", err)
			return
		}
	}
}
