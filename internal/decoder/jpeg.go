package decoder

import (
	"bytes"
	"image"
	"image/draw"
	"image/jpeg"
)

// Tone adjusts decoded pixels the way an e-ink panel looks: slightly more
// contrast, slightly darker. Contrast applies first, each step clamped.
// The zero value leaves pixels unchanged.
type Tone struct {
	Contrast   float64
	Brightness float64
}

// EInkTone matches the panel preview: contrast 1.1, brightness 0.98.
var EInkTone = Tone{Contrast: 1.1, Brightness: 0.98}

// JPEGDecoder decodes JPEG frames into *image.RGBA.
type JPEGDecoder struct {
	lut *[256]uint8
}

// NewJPEGDecoder creates a decoder applying tone. A zero Tone is a no-op.
func NewJPEGDecoder(tone Tone) *JPEGDecoder {
	d := &JPEGDecoder{}
	if tone != (Tone{}) {
		d.lut = tone.table()
	}
	return d
}

func (d *JPEGDecoder) Decode(data []byte) (*image.RGBA, error) {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	var rgba *image.RGBA
	switch src := img.(type) {
	case *image.RGBA:
		rgba = src
	case *image.Gray:
		rgba = grayToRGBA(src)
	default:
		b := img.Bounds()
		rgba = image.NewRGBA(b)
		draw.Draw(rgba, b, img, b.Min, draw.Src)
	}

	if d.lut != nil {
		applyLUT(rgba, d.lut)
	}
	return rgba, nil
}

// grayToRGBA expands a grayscale frame, the common case for e-ink panels.
func grayToRGBA(src *image.Gray) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(b)
	w, h := b.Dx(), b.Dy()
	for y := 0; y < h; y++ {
		srow := src.Pix[y*src.Stride : y*src.Stride+w]
		drow := dst.Pix[y*dst.Stride : y*dst.Stride+w*4]
		for x, v := range srow {
			drow[x*4+0] = v
			drow[x*4+1] = v
			drow[x*4+2] = v
			drow[x*4+3] = 0xFF
		}
	}
	return dst
}

func (t Tone) table() *[256]uint8 {
	contrast, brightness := t.Contrast, t.Brightness
	if contrast == 0 {
		contrast = 1
	}
	if brightness == 0 {
		brightness = 1
	}
	var lut [256]uint8
	for i := range lut {
		v := clamp((float64(i)-127.5)*contrast + 127.5)
		v = clamp(v * brightness)
		lut[i] = uint8(v + 0.5)
	}
	return &lut
}

func clamp(v float64) float64 {
	return min(max(v, 0), 255)
}

func applyLUT(img *image.RGBA, lut *[256]uint8) {
	for i := 0; i+3 < len(img.Pix); i += 4 {
		img.Pix[i] = lut[img.Pix[i]]
		img.Pix[i+1] = lut[img.Pix[i+1]]
		img.Pix[i+2] = lut[img.Pix[i+2]]
	}
}
