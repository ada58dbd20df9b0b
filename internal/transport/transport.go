package transport

import "errors"

// ErrBackpressure is returned when a frame was dropped for at least one slow
// receiver.
var ErrBackpressure = errors.New("frame dropped: receiver backlog full")

// FrameSender sends encoded video frames. The frame must not be modified
// after the call.
type FrameSender interface {
	SendFrame(data []byte) error
}

// FrameReceiver receives encoded video frames.
type FrameReceiver interface {
	OnFrame(callback func(data []byte))
}

var (
	_ FrameSender   = (*Hub)(nil)
	_ FrameSender   = (*DataChannelTransport)(nil)
	_ FrameReceiver = (*DataChannelTransport)(nil)
	_ FrameReceiver = (*WebSocketReceiver)(nil)
)
