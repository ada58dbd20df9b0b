package mjpeg

import (
	"bytes"
	"errors"
	"io"
	"slices"
	"sync/atomic"
)

// DefaultChunkSize is how much the extractor asks the source for per read.
const DefaultChunkSize = 40 * 1024

// Stats is a snapshot of extractor counters.
type Stats struct {
	Frames     uint64 `json:"frames"`
	BytesRead  uint64 `json:"bytesRead"`
	Discarded  uint64 `json:"discarded"`
	SinkErrors uint64 `json:"sinkErrors"`
}

// Extractor reassembles JPEG frames from an MJPEG byte stream.
// An Extractor is single-use: one Run per stream.
type Extractor struct {
	chunkSize int

	acc    []byte
	resume int

	frames     atomic.Uint64
	bytesRead  atomic.Uint64
	discarded  atomic.Uint64
	sinkErrors atomic.Uint64
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithChunkSize overrides DefaultChunkSize.
func WithChunkSize(n int) Option {
	return func(x *Extractor) {
		if n > 0 {
			x.chunkSize = n
		}
	}
}

// NewExtractor creates an Extractor.
func NewExtractor(opts ...Option) *Extractor {
	x := &Extractor{chunkSize: DefaultChunkSize}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Run reads r until it ends, handing every complete frame to sink.
// It blocks for the lifetime of the stream and returns nil on io.EOF or the
// read error otherwise. Sink errors are counted, not returned.
func (x *Extractor) Run(r io.Reader, sink Sink) error {
	for {
		x.acc = slices.Grow(x.acc, x.chunkSize)
		tail := len(x.acc)
		n, err := r.Read(x.acc[tail : tail+x.chunkSize])
		if n > 0 {
			x.acc = x.acc[:tail+n]
			x.bytesRead.Add(uint64(n))
			x.drain(sink)
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// drain emits every complete frame in the accumulator.
func (x *Extractor) drain(sink Sink) {
	for {
		ext := scanFrom(x.acc, x.resume)
		if !ext.Found() {
			x.resume = 0
			return
		}
		if !ext.Complete() {
			if ext.Start > 0 {
				x.consume(ext.Start)
				x.discarded.Add(uint64(ext.Start))
			}
			x.resume = len(x.acc) - 1
			return
		}

		x.discarded.Add(uint64(ext.Start))
		frame := bytes.Clone(x.acc[ext.Start:ext.End])
		x.consume(ext.End)
		x.resume = 0

		x.frames.Add(1)
		if err := sink.SendFrame(frame); err != nil {
			x.sinkErrors.Add(1)
		}
	}
}

// consume drops the first n bytes, keeping the backing array.
func (x *Extractor) consume(n int) {
	m := copy(x.acc, x.acc[n:])
	x.acc = x.acc[:m]
}

// Stats returns a snapshot of the counters. Safe to call from any goroutine.
func (x *Extractor) Stats() Stats {
	return Stats{
		Frames:     x.frames.Load(),
		BytesRead:  x.bytesRead.Load(),
		Discarded:  x.discarded.Load(),
		SinkErrors: x.sinkErrors.Load(),
	}
}
