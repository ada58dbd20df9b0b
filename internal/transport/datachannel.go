package transport

import (
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
)

// maxBufferedAmount caps data queued in the frames channel before new frames
// are dropped.
const maxBufferedAmount = 4 * 1024 * 1024

// DataChannelTransport carries frames over a WebRTC DataChannel. The channel
// must be ordered and reliable: frames are fragmented and reassembled in
// arrival order.
type DataChannelTransport struct {
	mu       sync.Mutex
	framesDC *webrtc.DataChannel
	onFrame  func(data []byte)
	assembly reassembler
}

// NewDataChannelTransport wraps the frames DataChannel, which may be nil
// until SetFramesChannel is called.
func NewDataChannelTransport(framesDC *webrtc.DataChannel) *DataChannelTransport {
	t := &DataChannelTransport{}
	if framesDC != nil {
		t.SetFramesChannel(framesDC)
	}
	return t
}

func (t *DataChannelTransport) SendFrame(data []byte) error {
	t.mu.Lock()
	dc := t.framesDC
	t.mu.Unlock()
	if dc == nil {
		return fmt.Errorf("frames data channel not set")
	}
	if dc.BufferedAmount() > maxBufferedAmount {
		return ErrBackpressure
	}
	for _, msg := range fragment(data, MaxFragment) {
		if err := dc.Send(msg); err != nil {
			return err
		}
	}
	return nil
}

func (t *DataChannelTransport) OnFrame(cb func(data []byte)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onFrame = cb
}

// SetFramesChannel sets or replaces the frames DataChannel (used when receiving negotiated channels).
func (t *DataChannelTransport) SetFramesChannel(dc *webrtc.DataChannel) {
	t.mu.Lock()
	t.framesDC = dc
	t.assembly = reassembler{}
	t.mu.Unlock()

	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		t.mu.Lock()
		frame := t.assembly.push(msg.Data)
		cb := t.onFrame
		t.mu.Unlock()
		if frame != nil && cb != nil {
			cb(frame)
		}
	})
}
