package mjpeg

import "bytes"

// JPEG start-of-image and end-of-image markers.
var (
	soi = []byte{0xFF, 0xD8}
	eoi = []byte{0xFF, 0xD9}
)

// Extent locates a frame inside an accumulator.
// Start is -1 when no start marker was found. End is -1 while the frame is
// still incomplete; otherwise the frame is buf[Start:End].
type Extent struct {
	Start int
	End   int
}

// Found reports whether a start marker was located.
func (e Extent) Found() bool { return e.Start >= 0 }

// Complete reports whether both markers were located.
func (e Extent) Complete() bool { return e.Start >= 0 && e.End > e.Start }

// Scan finds the first complete frame in buf: the first start marker and the
// first end marker at or after it. The bytes in between are not validated, so
// a marker-like pair inside entropy-coded data ends the frame early.
func Scan(buf []byte) Extent {
	return scanFrom(buf, 0)
}

// scanFrom is Scan with the end-marker search resuming at from. Callers must
// only pass a from for which buf[start:from] is known to hold no end marker.
func scanFrom(buf []byte, from int) Extent {
	start := bytes.Index(buf, soi)
	if start < 0 {
		return Extent{Start: -1, End: -1}
	}
	from = max(from, start)
	i := bytes.Index(buf[from:], eoi)
	if i < 0 {
		return Extent{Start: start, End: -1}
	}
	return Extent{Start: start, End: from + i + len(eoi)}
}
