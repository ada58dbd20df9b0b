package display

import "image"

// Display renders decoded frames in a window.
type Display interface {
	Run() error
	SetFrame(img *image.RGBA)
	SetStatus(status string)
}
