package transport

// Frames larger than one SCTP message are split into fragments. The first
// byte of every fragment is a flag; fragLast closes the frame.
const (
	MaxFragment = 16 * 1024

	fragMore byte = 0
	fragLast byte = 1
)

// fragment splits frame into messages of at most limit bytes, flag included.
func fragment(frame []byte, limit int) [][]byte {
	payload := limit - 1
	var out [][]byte
	for off := 0; ; {
		n := min(payload, len(frame)-off)
		msg := make([]byte, 1+n)
		msg[0] = fragMore
		copy(msg[1:], frame[off:off+n])
		off += n
		if off == len(frame) {
			msg[0] = fragLast
			return append(out, msg)
		}
		out = append(out, msg)
	}
}

// reassembler rebuilds frames from fragments delivered in order.
type reassembler struct {
	buf []byte
}

// push adds one fragment and returns the frame it completes, if any.
func (r *reassembler) push(msg []byte) []byte {
	if len(msg) == 0 {
		return nil
	}
	r.buf = append(r.buf, msg[1:]...)
	if msg[0] != fragLast {
		return nil
	}
	frame := r.buf
	r.buf = nil
	return frame
}
