package decoder

import "image"

// Decoder decodes an encoded frame into an image.
type Decoder interface {
	Decode(data []byte) (*image.RGBA, error)
}
