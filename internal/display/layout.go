package display

import "math"

// Rotation is a clockwise rotation in quarter turns.
type Rotation int

// Left turns counter-clockwise by a quarter.
func (r Rotation) Left() Rotation { return (r + 3) % 4 }

// Right turns clockwise by a quarter.
func (r Rotation) Right() Rotation { return (r + 1) % 4 }

// Degrees returns the rotation in degrees, 0 to 270.
func (r Rotation) Degrees() int { return int(r%4) * 90 }

// Radians returns the rotation angle for a GeoM.
func (r Rotation) Radians() float64 { return float64(r%4) * math.Pi / 2 }

// sideways reports whether width and height swap on screen.
func (r Rotation) sideways() bool { return r%2 == 1 }

// fit returns the scale that letterboxes a frameW x frameH frame, rotated by
// rot, inside a viewW x viewH view, plus the frame's size on screen.
func fit(viewW, viewH, frameW, frameH float64, rot Rotation) (scale, w, h float64) {
	w, h = frameW, frameH
	if rot.sideways() {
		w, h = frameH, frameW
	}
	if w == 0 || h == 0 {
		return 0, 0, 0
	}
	scale = math.Min(viewW/w, viewH/h)
	return scale, w * scale, h * scale
}
