package mjpeg

// Sink receives complete frames, one call per frame, in stream order.
// It runs on the extraction goroutine and takes ownership of frame, so it
// should hand the frame off and return quickly.
type Sink interface {
	SendFrame(frame []byte) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(frame []byte) error

func (f SinkFunc) SendFrame(frame []byte) error { return f(frame) }
